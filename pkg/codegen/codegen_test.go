package codegen

import (
	"strings"
	"testing"

	"github.com/anxi710/toy-compiler-sub000/pkg/ast"
	"github.com/anxi710/toy-compiler-sub000/pkg/quad"
	"github.com/anxi710/toy-compiler-sub000/pkg/symbols"
	"github.com/anxi710/toy-compiler-sub000/pkg/types"
)

// instr renders one Emit-produced line, tab-indented exactly like Generator.Emit.
func instr(s string) string { return "\t" + s }

func requireLines(t *testing.T, out string, want []string) {
	t.Helper()
	got := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(got) != len(want) {
		t.Fatalf("line count = %d, want %d\ngot:\n%q\nwant:\n%q", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestGenerateEmptyProgram(t *testing.T) {
	out := Generate(&ast.Program{})
	requireLines(t, out, []string{instr(".text")})
}

func TestGenerateSkipsFunctionWithoutSymbol(t *testing.T) {
	fn := &ast.Function{
		Name:  "ghost",
		Quads: []quad.Quad{quad.NewFunc("ghost")},
	}
	out := Generate(&ast.Program{Functions: []*ast.Function{fn}})
	requireLines(t, out, []string{instr(".text")})
}

func TestGenerateSimpleFunctionAddsImmediate(t *testing.T) {
	fn := &ast.Function{
		Name:   "add_one",
		Params: []ast.Param{{Name: "x", Type: types.Int32T}},
		Symbol: &symbols.Function{Name: "add_one"},
		Locals: map[string]types.Type{"x": types.Int32T, "t0": types.Int32T},
		Quads: []quad.Quad{
			quad.NewFunc("add_one"),
			quad.NewBinary(quad.ADD, quad.Sym("x"), quad.Sym("1"), quad.Sym("t0")),
			quad.NewReturn(quad.Sym("t0"), "add_one"),
		},
	}
	out := Generate(&ast.Program{Functions: []*ast.Function{fn}})
	requireLines(t, out, []string{
		instr(".text"),
		instr(".global add_one"),
		"add_one:",
		instr("addi sp, sp, -16"),
		instr("sw ra, 16(sp)"),
		instr("addi a1, a0, 1"),
		instr("mv a0, a1"),
		instr("lw ra, 16(sp)"),
		instr("addi sp, sp, 16"),
		instr("ret"),
	})
}

func TestGenerateComparisonRegisterForm(t *testing.T) {
	fn := &ast.Function{
		Name: "eqfn",
		Params: []ast.Param{
			{Name: "x", Type: types.Int32T},
			{Name: "y", Type: types.Int32T},
		},
		Symbol: &symbols.Function{Name: "eqfn"},
		Locals: map[string]types.Type{
			"x": types.Int32T, "y": types.Int32T, "t0": types.BoolT,
		},
		Quads: []quad.Quad{
			quad.NewFunc("eqfn"),
			quad.NewBinary(quad.EQ, quad.Sym("x"), quad.Sym("y"), quad.Sym("t0")),
			quad.NewReturn(quad.Sym("t0"), "eqfn"),
		},
	}
	out := Generate(&ast.Program{Functions: []*ast.Function{fn}})
	requireLines(t, out, []string{
		instr(".text"),
		instr(".global eqfn"),
		"eqfn:",
		instr("addi sp, sp, -16"),
		instr("sw ra, 16(sp)"),
		instr("xor a2, a0, a1"),
		instr("sltiu a2, a2, 1"),
		instr("mv a0, a2"),
		instr("lw ra, 16(sp)"),
		instr("addi sp, sp, 16"),
		instr("ret"),
	})
}

// A constant on the left of a comparison is folded by reversing the
// predicate against the variable on the right: "5 < x" becomes "x > 5".
func TestGenerateComparisonConstantOnLeftReversesPredicate(t *testing.T) {
	fn := &ast.Function{
		Name:   "cmpfn",
		Params: []ast.Param{{Name: "x", Type: types.Int32T}},
		Symbol: &symbols.Function{Name: "cmpfn"},
		Locals: map[string]types.Type{"x": types.Int32T, "t0": types.BoolT},
		Quads: []quad.Quad{
			quad.NewFunc("cmpfn"),
			quad.NewBinary(quad.LT, quad.Sym("5"), quad.Sym("x"), quad.Sym("t0")),
			quad.NewReturn(quad.Sym("t0"), "cmpfn"),
		},
	}
	out := Generate(&ast.Program{Functions: []*ast.Function{fn}})
	requireLines(t, out, []string{
		instr(".text"),
		instr(".global cmpfn"),
		"cmpfn:",
		instr("addi sp, sp, -16"),
		instr("sw ra, 16(sp)"),
		instr("li a2, 5"),
		instr("slt a1, a2, a0"),
		instr("mv a0, a1"),
		instr("lw ra, 16(sp)"),
		instr("addi sp, sp, 16"),
		instr("ret"),
	})
}

func TestGenerateCallSpillsCallerThenReusesA0(t *testing.T) {
	fn := &ast.Function{
		Name:   "caller",
		Params: []ast.Param{{Name: "y", Type: types.Int32T}},
		Symbol: &symbols.Function{Name: "caller"},
		Locals: map[string]types.Type{"y": types.Int32T, "r": types.Int32T},
		Quads: []quad.Quad{
			quad.NewFunc("caller"),
			quad.NewCall("foo", []quad.Operand{quad.Sym("1"), quad.Sym("y")}, quad.Sym("r")),
			quad.NewReturn(quad.Sym("r"), "caller"),
		},
	}
	out := Generate(&ast.Program{Functions: []*ast.Function{fn}})
	requireLines(t, out, []string{
		instr(".text"),
		instr(".global caller"),
		"caller:",
		instr("addi sp, sp, -16"),
		instr("sw ra, 16(sp)"),
		instr("sw a0, 12(sp)"),
		instr("li a0, 1"),
		instr("lw a1, 12(sp)"),
		instr("call foo"),
		instr("lw ra, 16(sp)"),
		instr("addi sp, sp, 16"),
		instr("ret"),
	})
}

func TestGenerateMakeArrThenIndex(t *testing.T) {
	fn := &ast.Function{
		Name:   "idxfn",
		Symbol: &symbols.Function{Name: "idxfn"},
		Locals: map[string]types.Type{
			"a": &types.Array{Size: 3, Elem: types.Int32T},
			"x": types.Int32T,
		},
		Quads: []quad.Quad{
			quad.NewFunc("idxfn"),
			quad.NewMakeArr([]quad.Operand{quad.Sym("1"), quad.Sym("2"), quad.Sym("3")}, quad.Sym("a")),
			quad.NewIndex(quad.Sym("a"), quad.Sym("1"), quad.Sym("x")),
			quad.NewReturn(quad.Sym("x"), "idxfn"),
		},
	}
	out := Generate(&ast.Program{Functions: []*ast.Function{fn}})
	requireLines(t, out, []string{
		instr(".text"),
		instr(".global idxfn"),
		"idxfn:",
		instr("addi sp, sp, -16"),
		instr("sw ra, 16(sp)"),
		instr("li a0, 1"),
		instr("sw a0, 12(sp)"),
		instr("li a1, 2"),
		instr("sw a1, 16(sp)"),
		instr("li a2, 3"),
		instr("sw a2, 20(sp)"),
		instr("lw a3, 16(sp)"),
		instr("mv a0, a3"),
		instr("lw ra, 16(sp)"),
		instr("addi sp, sp, 16"),
		instr("ret"),
	})
}

// A boolean element of a tuple literal must load as a numeric immediate,
// not the literal spelling "true"/"false".
func TestGenerateMakeTupThenDotConvertsBoolLiteral(t *testing.T) {
	fn := &ast.Function{
		Name:   "tupfn",
		Symbol: &symbols.Function{Name: "tupfn"},
		Locals: map[string]types.Type{
			"t": &types.Tuple{Elems: []types.Type{types.Int32T, types.BoolT, types.Int32T}},
			"y": types.Int32T,
		},
		Quads: []quad.Quad{
			quad.NewFunc("tupfn"),
			quad.NewMakeTup([]quad.Operand{quad.Sym("1"), quad.Sym("true"), quad.Sym("2")}, quad.Sym("t")),
			quad.NewDot(quad.Sym("t"), quad.Sym("2"), quad.Sym("y")),
			quad.NewReturn(quad.Sym("y"), "tupfn"),
		},
	}
	out := Generate(&ast.Program{Functions: []*ast.Function{fn}})
	requireLines(t, out, []string{
		instr(".text"),
		instr(".global tupfn"),
		"tupfn:",
		instr("addi sp, sp, -16"),
		instr("sw ra, 16(sp)"),
		instr("li a0, 1"),
		instr("sw a0, 12(sp)"),
		instr("li a1, 1"),
		instr("sw a1, 16(sp)"),
		instr("li a2, 2"),
		instr("sw a2, 20(sp)"),
		instr("lw a3, 20(sp)"),
		instr("mv a0, a3"),
		instr("lw ra, 16(sp)"),
		instr("addi sp, sp, 16"),
		instr("ret"),
	})
}

func TestGenerateControlFlowSequence(t *testing.T) {
	fn := &ast.Function{
		Name:   "cf",
		Params: []ast.Param{{Name: "x", Type: types.Int32T}},
		Symbol: &symbols.Function{Name: "cf"},
		Locals: map[string]types.Type{"x": types.Int32T},
		Quads: []quad.Quad{
			quad.NewFunc("cf"),
			quad.NewBeqz(quad.Sym("x"), "L1"),
			quad.NewGoto("L2"),
			quad.NewLabel("L1"),
			quad.NewLabel("L2"),
			quad.NewReturn(nil, "cf"),
		},
	}
	out := Generate(&ast.Program{Functions: []*ast.Function{fn}})
	requireLines(t, out, []string{
		instr(".text"),
		instr(".global cf"),
		"cf:",
		instr("addi sp, sp, -16"),
		instr("sw ra, 16(sp)"),
		instr("beq a0, x0, L1"),
		instr("j L2"),
		"L1:",
		"L2:",
		instr("lw ra, 16(sp)"),
		instr("addi sp, sp, 16"),
		instr("ret"),
	})
}
