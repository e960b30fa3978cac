// Package codegen implements the code generator (C13): the final walk that
// turns a lowered program's quads into RISC-V assembly text, driving the
// stack (C10), register (C11) and memory (C12) allocators per quad.
package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anxi710/toy-compiler-sub000/pkg/ast"
	"github.com/anxi710/toy-compiler-sub000/pkg/memalloc"
	"github.com/anxi710/toy-compiler-sub000/pkg/quad"
	"github.com/anxi710/toy-compiler-sub000/pkg/regalloc"
	"github.com/anxi710/toy-compiler-sub000/pkg/reporter"
	"github.com/anxi710/toy-compiler-sub000/pkg/stackalloc"
	"github.com/anxi710/toy-compiler-sub000/pkg/types"
)

// Generator walks one checked, lowered ast.Program and emits its assembly
// listing. It implements Emit itself, so the allocators it constructs per
// function write straight into its own output buffer.
type Generator struct {
	out strings.Builder

	fn    *ast.Function
	stack *stackalloc.Allocator
	reg   *regalloc.Allocator
	mem   *memalloc.Allocator

	// aggBase maps an array/tuple-valued symbol to the stackloc of its
	// backing block. Arrays and tuples have no scalar register home; INDEX,
	// DOT, MAKE_ARR and MAKE_TUP read and write through this map instead.
	aggBase map[string]int
}

// Generate lowers every checked function in prog into one assembly listing.
func Generate(prog *ast.Program) string {
	g := &Generator{}
	g.Emit(".text")
	for _, fn := range prog.Functions {
		if fn.Symbol == nil {
			continue
		}
		g.generateFunction(fn)
	}
	return g.out.String()
}

// Emit implements the Emitter interface pkg/stackalloc, pkg/regalloc and
// pkg/memalloc each depend on.
func (g *Generator) Emit(format string, args ...any) {
	g.out.WriteByte('\t')
	fmt.Fprintf(&g.out, format, args...)
	g.out.WriteByte('\n')
}

func (g *Generator) emitLabel(name string) {
	g.out.WriteString(name)
	g.out.WriteString(":\n")
}

func (g *Generator) generateFunction(fn *ast.Function) {
	g.fn = fn
	g.stack = stackalloc.New(g)
	g.reg = regalloc.New(g, g.stack)
	g.mem = memalloc.New(g, g.stack, g.reg)
	g.aggBase = make(map[string]int)

	for _, q := range fn.Quads {
		g.translateQuad(q)
	}
}

func (g *Generator) translateQuad(q quad.Quad) {
	switch q.Op {
	case quad.FUNC:
		g.translateFunc(q)
	case quad.LABEL:
		g.emitLabel(q.Label)
	case quad.ASSIGN:
		g.translateAssign(q)
	case quad.GOTO:
		g.Emit("j %s", q.Label)
	case quad.BEQZ:
		g.Emit("beq %s, x0, %s", g.loadOperand(q.Arg1), q.Label)
	case quad.BNEZ:
		g.Emit("bne %s, x0, %s", g.loadOperand(q.Arg1), q.Label)
	case quad.BGE:
		g.Emit("bge %s, %s, %s", g.loadOperand(q.Arg1), g.loadOperand(q.Arg2), q.Label)
	case quad.CALL:
		g.translateCall(q)
	case quad.RETURN:
		g.translateReturn(q)
	case quad.INDEX:
		g.translateIndex(q)
	case quad.DOT:
		g.translateDot(q)
	case quad.MAKE_ARR:
		g.translateMakeArr(q)
	case quad.MAKE_TUP:
		g.translateMakeTup(q)
	default:
		g.translateBinary(q)
	}
}

func (g *Generator) translateFunc(q quad.Quad) {
	g.Emit(".global %s", q.Label)
	g.emitLabel(q.Label)
	g.stack.EnterFunction()

	formals := make([]memalloc.Formal, len(g.fn.Params))
	for i, p := range g.fn.Params {
		formals[i] = memalloc.Formal{Name: p.Name, Memory: p.Type.Memory()}
	}
	g.mem.AllocArgv(formals)
}

func (g *Generator) translateAssign(q quad.Quad) {
	dstName := q.Dst.String()
	srcName := q.Arg1.String()

	if base, idx, ok := parseArrElemPlace(dstName); ok {
		srcReg := g.loadOperand(q.Arg1)
		g.storeArrElem(base, idx, srcReg)
		return
	}
	if base, idx, ok := parseTupElemPlace(dstName); ok {
		srcReg := g.loadOperand(q.Arg1)
		g.storeTupElem(base, idx, srcReg)
		return
	}
	if t, ok := g.fn.Locals[dstName]; ok && isAggregate(t) {
		// `let b = a` for an array/tuple just renames a's existing block;
		// this compiler has no notion of a deep aggregate copy.
		if base, ok := g.aggBase[srcName]; ok {
			g.aggBase[dstName] = base
		}
		return
	}

	dstReg := g.mem.Alloc(dstName, g.memoryOf(dstName), true)
	if memalloc.IsConstant(srcName) {
		g.Emit("li %s, %s", dstReg, constLiteral(srcName))
		return
	}
	srcReg := g.mem.Alloc(srcName, g.memoryOf(srcName), false)
	g.Emit("mv %s, %s", dstReg, srcReg)
}

func (g *Generator) translateCall(q quad.Quad) {
	g.reg.SpillCaller()

	params := make([]memalloc.Param, len(q.Elems))
	for i, el := range q.Elems {
		params[i] = memalloc.Param{Name: el.String()}
	}
	g.mem.PrepareParams(params)
	g.Emit("call %s", q.Label)

	if _, absent := q.Dst.(quad.Absent); !absent {
		g.mem.ReuseReg(regalloc.A0, q.Dst.String())
	}
}

func (g *Generator) translateReturn(q quad.Quad) {
	if _, absent := q.Arg1.(quad.Absent); !absent {
		name := q.Arg1.String()
		if memalloc.IsConstant(name) {
			g.Emit("li a0, %s", constLiteral(name))
		} else {
			reg := g.mem.Alloc(name, g.memoryOf(name), false)
			if reg != regalloc.A0 {
				g.Emit("mv a0, %s", reg)
			}
		}
	}
	g.reg.RestoreUsedCallee()
	g.stack.ReturnFromFunction()
	g.Emit("ret")
}

// loadOperand returns a register holding o's value: a freshly materialized
// constant, or the register a tracked value already lives in (loading it
// from the stack first if necessary).
func (g *Generator) loadOperand(o quad.Operand) regalloc.Register {
	name := o.String()
	if memalloc.IsConstant(name) {
		return g.loadConst(name)
	}
	return g.mem.Alloc(name, g.memoryOf(name), false)
}

func (g *Generator) loadConst(literal string) regalloc.Register {
	v := &regalloc.Value{Name: "$imm", Memory: 4}
	reg := g.reg.Alloc(v)
	g.Emit("li %s, %s", reg, constLiteral(literal))
	return reg
}

// constLiteral renders a constant's symbol text as the decimal immediate
// RISC-V's li expects, translating the source language's true/false spelling.
func constLiteral(name string) string {
	switch name {
	case "true":
		return "1"
	case "false":
		return "0"
	default:
		return name
	}
}

func (g *Generator) loadConstInt(k int) regalloc.Register {
	return g.loadConst(strconv.Itoa(k))
}

// memoryOf returns the byte size of the value name denotes, from the types
// the IR builder (C9) recorded on the enclosing function.
func (g *Generator) memoryOf(name string) int {
	if t, ok := g.fn.Locals[name]; ok {
		return t.Memory()
	}
	return 4
}

func isAggregate(t types.Type) bool {
	switch t.(type) {
	case *types.Array, *types.Tuple:
		return true
	default:
		return false
	}
}

// parseArrElemPlace recognizes the textual assignment place pkg/irbuild
// synthesizes for an array element target ("base[idx]").
func parseArrElemPlace(s string) (base, idx string, ok bool) {
	if !strings.HasSuffix(s, "]") {
		return "", "", false
	}
	i := strings.IndexByte(s, '[')
	if i < 0 {
		return "", "", false
	}
	return s[:i], s[i+1 : len(s)-1], true
}

// parseTupElemPlace recognizes the textual assignment place pkg/irbuild
// synthesizes for a tuple projection target ("base.N").
func parseTupElemPlace(s string) (base string, idx int, ok bool) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return "", 0, false
	}
	return s[:i], n, true
}

// aggLayout returns the backing block's stackloc and element size for the
// array name denotes.
func (g *Generator) aggLayout(name string) (stackloc, elemMemory int) {
	base, ok := g.aggBase[name]
	if !ok {
		reporter.Fatal("codegen: UNREACHABLE: %q has no aggregate backing block", name)
	}
	if arr, ok := g.fn.Locals[name].(*types.Array); ok {
		return base, arr.Elem.Memory()
	}
	return base, 4
}

// tupleElemOffset returns the byte offset of the idx-th element of the tuple
// name denotes, accounting for heterogeneous element sizes.
func (g *Generator) tupleElemOffset(name string, idx int) int {
	tup, ok := g.fn.Locals[name].(*types.Tuple)
	if !ok {
		return idx * 4
	}
	off := 0
	for i := 0; i < idx; i++ {
		off += tup.Elems[i].Memory()
	}
	return off
}

func (g *Generator) storeArrElem(base, idxText string, srcReg regalloc.Register) {
	blockOff, elemMem := g.aggLayout(base)
	if n, err := strconv.Atoi(idxText); err == nil {
		g.Emit("sw %s, %d(sp)", srcReg, g.stack.OffsetFromSP(blockOff)+n*elemMem)
		return
	}
	addr := g.computeElemAddr(blockOff, elemMem, idxText)
	g.Emit("sw %s, 0(%s)", srcReg, addr)
}

func (g *Generator) storeTupElem(base string, idx int, srcReg regalloc.Register) {
	blockOff, ok := g.aggBase[base]
	if !ok {
		reporter.Fatal("codegen: UNREACHABLE: %q has no aggregate backing block", base)
	}
	off := g.stack.OffsetFromSP(blockOff) + g.tupleElemOffset(base, idx)
	g.Emit("sw %s, %d(sp)", srcReg, off)
}

func (g *Generator) translateIndex(q quad.Quad) {
	base := q.Arg1.String()
	idxText := q.Arg2.String()
	dstName := q.Dst.String()
	blockOff, elemMem := g.aggLayout(base)
	dstReg := g.mem.Alloc(dstName, g.memoryOf(dstName), true)

	if n, err := strconv.Atoi(idxText); err == nil {
		g.Emit("lw %s, %d(sp)", dstReg, g.stack.OffsetFromSP(blockOff)+n*elemMem)
		return
	}
	addr := g.computeElemAddr(blockOff, elemMem, idxText)
	g.Emit("lw %s, 0(%s)", dstReg, addr)
}

func (g *Generator) translateDot(q quad.Quad) {
	base := q.Arg1.String()
	idx, err := strconv.Atoi(q.Arg2.String())
	if err != nil {
		reporter.Fatal("codegen: UNREACHABLE: DOT index %q is not an integer literal", q.Arg2)
	}
	blockOff, ok := g.aggBase[base]
	if !ok {
		reporter.Fatal("codegen: UNREACHABLE: %q has no aggregate backing block", base)
	}
	dstName := q.Dst.String()
	off := g.stack.OffsetFromSP(blockOff) + g.tupleElemOffset(base, idx)
	dstReg := g.mem.Alloc(dstName, g.memoryOf(dstName), true)
	g.Emit("lw %s, %d(sp)", dstReg, off)
}

// computeElemAddr materializes the absolute address of the idxText-th
// elemMem-byte element of the block at blockOff, for an index that is not
// known at compile time.
func (g *Generator) computeElemAddr(blockOff, elemMem int, idxText string) regalloc.Register {
	idxReg := g.loadOperand(quad.Sym(idxText))
	addrReg := g.loadConstInt(elemMem)
	g.Emit("mul %s, %s, %s", addrReg, idxReg, addrReg)
	g.Emit("addi %s, %s, %d", addrReg, addrReg, g.stack.OffsetFromSP(blockOff))
	g.Emit("add %s, %s, sp", addrReg, addrReg)
	return addrReg
}

func (g *Generator) translateMakeArr(q quad.Quad) {
	dstName := q.Dst.String()
	elemMem := 4
	if arr, ok := g.fn.Locals[dstName].(*types.Array); ok {
		elemMem = arr.Elem.Memory()
	}
	block := g.stack.Alloc(len(q.Elems)*elemMem, 4)
	off := g.stack.OffsetFromSP(block)
	for i, el := range q.Elems {
		reg := g.loadOperand(el)
		g.Emit("sw %s, %d(sp)", reg, off+i*elemMem)
	}
	g.aggBase[dstName] = block
}

func (g *Generator) translateMakeTup(q quad.Quad) {
	dstName := q.Dst.String()
	elemOffsets := make([]int, len(q.Elems))
	size := 0
	if tup, ok := g.fn.Locals[dstName].(*types.Tuple); ok {
		for i, e := range tup.Elems {
			elemOffsets[i] = size
			size += e.Memory()
		}
	} else {
		for i := range q.Elems {
			elemOffsets[i] = i * 4
		}
		size = len(q.Elems) * 4
	}
	block := g.stack.Alloc(size, 4)
	off := g.stack.OffsetFromSP(block)
	for i, el := range q.Elems {
		reg := g.loadOperand(el)
		g.Emit("sw %s, %d(sp)", reg, off+elemOffsets[i])
	}
	g.aggBase[dstName] = block
}

func (g *Generator) translateBinary(q quad.Quad) {
	lhsName := q.Arg1.String()
	rhsName := q.Arg2.String()
	dstName := q.Dst.String()
	lhsConst := memalloc.IsConstant(lhsName)
	rhsConst := memalloc.IsConstant(rhsName)

	switch {
	case lhsConst && rhsConst:
		k := foldConstant(q.Op, lhsName, rhsName)
		dstReg := g.mem.Alloc(dstName, g.memoryOf(dstName), true)
		g.Emit("li %s, %s", dstReg, k)
	case lhsConst != rhsConst:
		g.translateBinaryImmediate(q, lhsConst)
	default:
		lhsReg := g.mem.Alloc(lhsName, g.memoryOf(lhsName), false)
		rhsReg := g.mem.Alloc(rhsName, g.memoryOf(rhsName), false)
		dstReg := g.mem.Alloc(dstName, g.memoryOf(dstName), true)
		g.emitRegisterForm(q.Op, dstReg, lhsReg, rhsReg)
	}
}

// translateBinaryImmediate handles a binary op with exactly one constant
// operand, per spec.md §4.10's immediate-form selection table.
func (g *Generator) translateBinaryImmediate(q quad.Quad, lhsConst bool) {
	var constName, varName string
	if lhsConst {
		constName, varName = q.Arg1.String(), q.Arg2.String()
	} else {
		constName, varName = q.Arg2.String(), q.Arg1.String()
	}
	k := parseConstValue(constName)
	dstName := q.Dst.String()
	varReg := g.mem.Alloc(varName, g.memoryOf(varName), false)
	dstReg := g.mem.Alloc(dstName, g.memoryOf(dstName), true)

	switch {
	case q.Op == quad.SUB && lhsConst:
		// k - var has no addi form; materialize k and subtract in registers.
		kReg := g.loadConstInt(k)
		g.Emit("sub %s, %s, %s", dstReg, kReg, varReg)
	case q.Op == quad.DIV && lhsConst:
		kReg := g.loadConstInt(k)
		g.Emit("div %s, %s, %s", dstReg, kReg, varReg)
	case q.Op == quad.ADD:
		g.Emit("addi %s, %s, %d", dstReg, varReg, k)
	case q.Op == quad.SUB:
		g.Emit("addi %s, %s, %d", dstReg, varReg, -k)
	case q.Op == quad.MUL || q.Op == quad.DIV:
		kReg := g.loadConstInt(k)
		g.emitRegisterForm(q.Op, dstReg, varReg, kReg)
	case q.Op == quad.EQ:
		g.Emit("xori %s, %s, %d", dstReg, varReg, k)
		g.Emit("sltiu %s, %s, 1", dstReg, dstReg)
	case q.Op == quad.NEQ:
		g.Emit("xori %s, %s, %d", dstReg, varReg, k)
		g.Emit("sltu %s, x0, %s", dstReg, dstReg)
	default:
		g.translateComparisonImmediate(q.Op, lhsConst, dstReg, varReg, k)
	}
}

// translateComparisonImmediate handles GT/GEQ/LT/LEQ against a constant. A
// constant on the left is folded into the opposite predicate against the
// variable on the right, per spec.md §4.10.
func (g *Generator) translateComparisonImmediate(op quad.Op, lhsConst bool, dstReg, varReg regalloc.Register, k int) {
	if lhsConst {
		op = reverseComparison(op)
	}
	switch op {
	case quad.LT:
		g.Emit("slti %s, %s, %d", dstReg, varReg, k)
	case quad.GEQ:
		g.Emit("slti %s, %s, %d", dstReg, varReg, k)
		g.Emit("xori %s, %s, 1", dstReg, dstReg)
	case quad.GT:
		kReg := g.loadConstInt(k)
		g.Emit("slt %s, %s, %s", dstReg, kReg, varReg)
	case quad.LEQ:
		kReg := g.loadConstInt(k)
		g.Emit("slt %s, %s, %s", dstReg, kReg, varReg)
		g.Emit("xori %s, %s, 1", dstReg, dstReg)
	default:
		reporter.Fatal("codegen: UNREACHABLE: unknown comparison op %v in immediate form", op)
	}
}

func reverseComparison(op quad.Op) quad.Op {
	switch op {
	case quad.LT:
		return quad.GT
	case quad.GT:
		return quad.LT
	case quad.LEQ:
		return quad.GEQ
	case quad.GEQ:
		return quad.LEQ
	default:
		return op
	}
}

// emitRegisterForm emits the register-register instruction sequence for op,
// per spec.md §4.10's comparison instruction-selection table (RISC-V has
// only slt/slti/sltu/sltiu to build the rest from).
func (g *Generator) emitRegisterForm(op quad.Op, dst, a, b regalloc.Register) {
	switch op {
	case quad.ADD:
		g.Emit("add %s, %s, %s", dst, a, b)
	case quad.SUB:
		g.Emit("sub %s, %s, %s", dst, a, b)
	case quad.MUL:
		g.Emit("mul %s, %s, %s", dst, a, b)
	case quad.DIV:
		g.Emit("div %s, %s, %s", dst, a, b)
	case quad.EQ:
		g.Emit("xor %s, %s, %s", dst, a, b)
		g.Emit("sltiu %s, %s, 1", dst, dst)
	case quad.NEQ:
		g.Emit("xor %s, %s, %s", dst, a, b)
		g.Emit("sltu %s, x0, %s", dst, dst)
	case quad.GT:
		g.Emit("slt %s, %s, %s", dst, b, a)
	case quad.GEQ:
		g.Emit("slt %s, %s, %s", dst, a, b)
		g.Emit("xori %s, %s, 1", dst, dst)
	case quad.LT:
		g.Emit("slt %s, %s, %s", dst, a, b)
	case quad.LEQ:
		g.Emit("slt %s, %s, %s", dst, b, a)
		g.Emit("xori %s, %s, 1", dst, dst)
	default:
		reporter.Fatal("codegen: UNREACHABLE: unknown binary op %v", op)
	}
}

func parseConstValue(name string) int {
	switch name {
	case "true":
		return 1
	case "false":
		return 0
	}
	n, _ := strconv.Atoi(name)
	return n
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func foldConstant(op quad.Op, lhsName, rhsName string) string {
	a, b := parseConstValue(lhsName), parseConstValue(rhsName)
	var r int
	switch op {
	case quad.ADD:
		r = a + b
	case quad.SUB:
		r = a - b
	case quad.MUL:
		r = a * b
	case quad.DIV:
		r = a / b
	case quad.EQ:
		r = boolInt(a == b)
	case quad.NEQ:
		r = boolInt(a != b)
	case quad.GT:
		r = boolInt(a > b)
	case quad.GEQ:
		r = boolInt(a >= b)
	case quad.LT:
		r = boolInt(a < b)
	case quad.LEQ:
		r = boolInt(a <= b)
	default:
		reporter.Fatal("codegen: UNREACHABLE: unknown binary op %v in constant fold", op)
	}
	return strconv.Itoa(r)
}
