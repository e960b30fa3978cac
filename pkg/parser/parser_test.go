package parser

import (
	"testing"

	"github.com/anxi710/toy-compiler-sub000/pkg/ast"
	"github.com/anxi710/toy-compiler-sub000/pkg/lexer"
	"github.com/anxi710/toy-compiler-sub000/pkg/reporter"
	"github.com/anxi710/toy-compiler-sub000/pkg/types"
)

func newParser(input string) (*Parser, *reporter.Reporter) {
	rep := reporter.New(input)
	reg := types.NewRegistry()
	return New(lexer.New(input), rep, reg), rep
}

func requireNoErrors(t *testing.T, rep *reporter.Reporter) {
	t.Helper()
	if rep.HasErrors() {
		t.Fatalf("unexpected parse errors: %s", rep.Format())
	}
}

func TestParseEmptyFunction(t *testing.T) {
	p, rep := newParser(`fn main() {}`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	if len(prog.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(prog.Functions))
	}
	fn := prog.Functions[0]
	if fn.Name != "main" {
		t.Errorf("name = %q, want main", fn.Name)
	}
	if len(fn.Params) != 0 {
		t.Errorf("params = %d, want 0", len(fn.Params))
	}
	if !types.Equal(fn.Return, types.UnitT) {
		t.Errorf("return type = %s, want unit", fn.Return)
	}
	if len(fn.Body.Stmts) != 0 {
		t.Errorf("body stmts = %d, want 0", len(fn.Body.Stmts))
	}
}

func TestParseParamsAndReturnType(t *testing.T) {
	p, rep := newParser(`fn add(x: i32, mut y: i32) -> i32 { return x + y; }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	fn := prog.Functions[0]
	if len(fn.Params) != 2 {
		t.Fatalf("params = %d, want 2", len(fn.Params))
	}
	if fn.Params[0].Name != "x" || fn.Params[0].Mutable {
		t.Errorf("param 0 = %+v, want immutable x", fn.Params[0])
	}
	if fn.Params[1].Name != "y" || !fn.Params[1].Mutable {
		t.Errorf("param 1 = %+v, want mutable y", fn.Params[1])
	}
	if !types.Equal(fn.Return, types.Int32T) {
		t.Errorf("return type = %s, want i32", fn.Return)
	}
}

func TestParseLetStmtWithAnnotation(t *testing.T) {
	p, rep := newParser(`fn f() { let mut x: i32 = 1; }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	body := prog.Functions[0].Body
	if len(body.Stmts) != 1 {
		t.Fatalf("stmts = %d, want 1", len(body.Stmts))
	}
	let, ok := body.Stmts[0].(*ast.LetStmt)
	if !ok {
		t.Fatalf("expected LetStmt, got %T", body.Stmts[0])
	}
	if let.Name != "x" || !let.Mutable {
		t.Errorf("let = %+v, want mutable x", let)
	}
	if !types.Equal(let.Ann, types.Int32T) {
		t.Errorf("ann = %v, want i32", let.Ann)
	}
	num, ok := let.Value.(*ast.Number)
	if !ok || num.Value != 1 {
		t.Errorf("value = %+v, want Number(1)", let.Value)
	}
}

func TestParseTrailingExprIsBlockValue(t *testing.T) {
	p, rep := newParser(`fn f() -> i32 { 1 + 2 }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	body := prog.Functions[0].Body
	if len(body.Stmts) != 1 {
		t.Fatalf("stmts = %d, want 1", len(body.Stmts))
	}
	es, ok := body.Stmts[0].(*ast.ExprStmt)
	if !ok {
		t.Fatalf("expected ExprStmt, got %T", body.Stmts[0])
	}
	if es.HasSemi {
		t.Errorf("HasSemi = true, want false for a trailing value expression")
	}
	if _, ok := es.X.(*ast.AriExpr); !ok {
		t.Errorf("expected AriExpr, got %T", es.X)
	}
}

func TestParseArithmeticPrecedence(t *testing.T) {
	p, rep := newParser(`fn f() { 1 + 2 * 3; }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	es := prog.Functions[0].Body.Stmts[0].(*ast.ExprStmt)
	top, ok := es.X.(*ast.AriExpr)
	if !ok || top.Op != ast.AriAdd {
		t.Fatalf("expected top-level +, got %+v", es.X)
	}
	if _, ok := top.Lhs.(*ast.Number); !ok {
		t.Errorf("lhs = %T, want Number", top.Lhs)
	}
	rhs, ok := top.Rhs.(*ast.AriExpr)
	if !ok || rhs.Op != ast.AriMul {
		t.Fatalf("rhs = %+v, want a * sub-expression", top.Rhs)
	}
}

func TestParseComparisonKeepsOperandOrder(t *testing.T) {
	p, rep := newParser(`fn f() { 5 < x; }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	es := prog.Functions[0].Body.Stmts[0].(*ast.ExprStmt)
	cmp, ok := es.X.(*ast.CmpExpr)
	if !ok || cmp.Op != ast.CmpLt {
		t.Fatalf("expected Lt comparison, got %+v", es.X)
	}
	if _, ok := cmp.Lhs.(*ast.Number); !ok {
		t.Errorf("lhs = %T, want Number(5)", cmp.Lhs)
	}
	if _, ok := cmp.Rhs.(*ast.Variable); !ok {
		t.Errorf("rhs = %T, want Variable(x)", cmp.Rhs)
	}
}

func TestParseUnaryMinus(t *testing.T) {
	p, rep := newParser(`fn f() { let x = -1; }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	let := prog.Functions[0].Body.Stmts[0].(*ast.LetStmt)
	ari, ok := let.Value.(*ast.AriExpr)
	if !ok || ari.Op != ast.AriSub {
		t.Fatalf("expected subtraction from zero, got %+v", let.Value)
	}
	lhs, ok := ari.Lhs.(*ast.Number)
	if !ok || lhs.Value != 0 {
		t.Errorf("lhs = %+v, want Number(0)", ari.Lhs)
	}
}

func TestParseAssignment(t *testing.T) {
	p, rep := newParser(`fn f() { x = 1; }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	es := prog.Functions[0].Body.Stmts[0].(*ast.ExprStmt)
	assign, ok := es.X.(*ast.AssignExpr)
	if !ok {
		t.Fatalf("expected AssignExpr, got %T", es.X)
	}
	if v, ok := assign.LVal.(*ast.Variable); !ok || v.Name != "x" {
		t.Errorf("lval = %+v, want Variable(x)", assign.LVal)
	}
}

func TestParseCallExpr(t *testing.T) {
	p, rep := newParser(`fn f() { let r = add(1, 2); }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	let := prog.Functions[0].Body.Stmts[0].(*ast.LetStmt)
	call, ok := let.Value.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected CallExpr, got %T", let.Value)
	}
	if call.Callee != "add" || len(call.Argv) != 2 {
		t.Errorf("call = %+v, want add(_, _)", call)
	}
}

func TestParseArrayLiteralAndIndex(t *testing.T) {
	p, rep := newParser(`fn f() { let a = [1, 2, 3]; let x = a[0]; }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	letArr := prog.Functions[0].Body.Stmts[0].(*ast.LetStmt)
	arr, ok := letArr.Value.(*ast.ArrElems)
	if !ok || len(arr.Elems) != 3 {
		t.Fatalf("expected 3-element array literal, got %+v", letArr.Value)
	}

	letIdx := prog.Functions[0].Body.Stmts[1].(*ast.LetStmt)
	acc, ok := letIdx.Value.(*ast.ArrAcc)
	if !ok {
		t.Fatalf("expected ArrAcc, got %T", letIdx.Value)
	}
	if base, ok := acc.Base.(*ast.Variable); !ok || base.Name != "a" {
		t.Errorf("base = %+v, want Variable(a)", acc.Base)
	}
}

func TestParseTupleLiteralAndDot(t *testing.T) {
	p, rep := newParser(`fn f() { let t = (1, true); let y = t.1; }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	letTup := prog.Functions[0].Body.Stmts[0].(*ast.LetStmt)
	tup, ok := letTup.Value.(*ast.TupElems)
	if !ok || len(tup.Elems) != 2 {
		t.Fatalf("expected 2-element tuple literal, got %+v", letTup.Value)
	}

	letDot := prog.Functions[0].Body.Stmts[1].(*ast.LetStmt)
	dot, ok := letDot.Value.(*ast.TupAcc)
	if !ok || dot.Idx.Value != 1 {
		t.Fatalf("expected TupAcc at index 1, got %+v", letDot.Value)
	}
}

func TestParseOneElementTupleNeedsTrailingComma(t *testing.T) {
	p, rep := newParser(`fn f() { let x = (1,); let y = (1); }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	tup, ok := prog.Functions[0].Body.Stmts[0].(*ast.LetStmt).Value.(*ast.TupElems)
	if !ok || len(tup.Elems) != 1 {
		t.Fatalf("expected 1-element tuple from trailing comma, got %+v", tup)
	}
	if _, ok := prog.Functions[0].Body.Stmts[1].(*ast.LetStmt).Value.(*ast.BracketExpr); !ok {
		t.Error("expected (1) without a comma to parse as a grouped expression")
	}
}

func TestParseArrayTypeAnnotation(t *testing.T) {
	p, rep := newParser(`fn f(a: [i32; 3]) {}`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	arrT, ok := prog.Functions[0].Params[0].Type.(*types.Array)
	if !ok {
		t.Fatalf("expected *types.Array, got %T", prog.Functions[0].Params[0].Type)
	}
	if arrT.Size != 3 || !types.Equal(arrT.Elem, types.Int32T) {
		t.Errorf("array type = %+v, want [i32; 3]", arrT)
	}
}

func TestParseTupleTypeAnnotation(t *testing.T) {
	p, rep := newParser(`fn f(t: (i32, bool)) {}`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	tupT, ok := prog.Functions[0].Params[0].Type.(*types.Tuple)
	if !ok || len(tupT.Elems) != 2 {
		t.Fatalf("expected a 2-element tuple type, got %+v", prog.Functions[0].Params[0].Type)
	}
}

func TestRegistryIsSharedAcrossAnnotations(t *testing.T) {
	p, rep := newParser(`fn f(a: [i32; 3], b: [i32; 3]) {}`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	if prog.Functions[0].Params[0].Type != prog.Functions[0].Params[1].Type {
		t.Error("two structurally equal array annotations should intern to the same handle")
	}
}

func TestParseIfElseIfElse(t *testing.T) {
	p, rep := newParser(`fn f() -> i32 {
		if x == 0 { 1 } else if x == 1 { 2 } else { 3 }
	}`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	es := prog.Functions[0].Body.Stmts[0].(*ast.ExprStmt)
	ifExpr, ok := es.X.(*ast.IfExpr)
	if !ok {
		t.Fatalf("expected IfExpr, got %T", es.X)
	}
	if len(ifExpr.Elses) != 1 {
		t.Fatalf("expected 1 else-if clause, got %d", len(ifExpr.Elses))
	}
	if ifExpr.Else == nil {
		t.Fatal("expected a terminal else block")
	}
}

func TestParseWhileLoop(t *testing.T) {
	p, rep := newParser(`fn f() { while x > 0 { x = x - 1; } }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	es := prog.Functions[0].Body.Stmts[0].(*ast.ExprStmt)
	if _, ok := es.X.(*ast.WhileLoopExpr); !ok {
		t.Fatalf("expected WhileLoopExpr, got %T", es.X)
	}
}

func TestParseForLoopOverRange(t *testing.T) {
	p, rep := newParser(`fn f() { for i in 0..10 { } }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	es := prog.Functions[0].Body.Stmts[0].(*ast.ExprStmt)
	forExpr, ok := es.X.(*ast.ForLoopExpr)
	if !ok {
		t.Fatalf("expected ForLoopExpr, got %T", es.X)
	}
	if forExpr.Iter != "i" {
		t.Errorf("iter = %q, want i", forExpr.Iter)
	}
	if _, ok := forExpr.Source.(*ast.RangeExpr); !ok {
		t.Errorf("source = %T, want *ast.RangeExpr", forExpr.Source)
	}
}

func TestParseForLoopOverArrayIsIterableVal(t *testing.T) {
	p, rep := newParser(`fn f(a: [i32; 3]) { for x in a { } }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	es := prog.Functions[0].Body.Stmts[0].(*ast.ExprStmt)
	forExpr := es.X.(*ast.ForLoopExpr)
	if _, ok := forExpr.Source.(*ast.IterableVal); !ok {
		t.Errorf("source = %T, want *ast.IterableVal", forExpr.Source)
	}
}

func TestParseLoopWithValuedBreak(t *testing.T) {
	p, rep := newParser(`fn f() -> i32 { loop { break 7; } }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	es := prog.Functions[0].Body.Stmts[0].(*ast.ExprStmt)
	loop, ok := es.X.(*ast.LoopExpr)
	if !ok {
		t.Fatalf("expected LoopExpr, got %T", es.X)
	}
	brk := loop.Body.Stmts[0].(*ast.ExprStmt).X.(*ast.BreakExpr)
	num, ok := brk.Value.(*ast.Number)
	if !ok || num.Value != 7 {
		t.Errorf("break value = %+v, want Number(7)", brk.Value)
	}
}

func TestParseBareReturnAndContinue(t *testing.T) {
	p, rep := newParser(`fn f() { if true { return; } continue; }`)
	prog := p.ParseProgram()
	requireNoErrors(t, rep)

	ifStmt := prog.Functions[0].Body.Stmts[0].(*ast.ExprStmt).X.(*ast.IfExpr)
	ret := ifStmt.Body.Stmts[0].(*ast.ExprStmt).X.(*ast.RetExpr)
	if ret.Value != nil {
		t.Errorf("bare return should have a nil value, got %+v", ret.Value)
	}

	cont := prog.Functions[0].Body.Stmts[1].(*ast.ExprStmt).X
	if _, ok := cont.(*ast.ContinueExpr); !ok {
		t.Errorf("expected ContinueExpr, got %T", cont)
	}
}

func TestParseUnexpectedTokenReportsAndRecovers(t *testing.T) {
	p, rep := newParser(`fn f() { let x = ; let y = 2; } fn g() {}`)
	prog := p.ParseProgram()

	if !rep.HasErrors() {
		t.Fatal("expected a syntax error for the malformed let statement")
	}
	if len(prog.Functions) != 2 {
		t.Fatalf("expected recovery to still find both functions, got %d", len(prog.Functions))
	}
	if prog.Functions[1].Name != "g" {
		t.Errorf("second function = %q, want g", prog.Functions[1].Name)
	}
}
