package semcheck

import (
	"testing"

	"github.com/anxi710/toy-compiler-sub000/pkg/ast"
	"github.com/anxi710/toy-compiler-sub000/pkg/reporter"
	"github.com/anxi710/toy-compiler-sub000/pkg/semctx"
	"github.com/anxi710/toy-compiler-sub000/pkg/types"
)

func exprStmt(e ast.Expr, hasSemi bool) ast.Stmt { return &ast.ExprStmt{X: e, HasSemi: hasSemi} }

func newChecker() (*Checker, *reporter.Reporter) {
	rep := reporter.New("")
	return New(semctx.New(), rep), rep
}

// fn main() -> i32 { return 1; }
func TestSimpleReturnScenario(t *testing.T) {
	c, rep := newChecker()
	fn := &ast.Function{
		Name:   "main",
		Return: types.Int32T,
		Body: &ast.StmtBlockExpr{Stmts: []ast.Stmt{
			exprStmt(&ast.RetExpr{Value: &ast.Number{Value: 1}}, true),
		}},
	}
	c.CheckProgram(&ast.Program{Functions: []*ast.Function{fn}})
	if rep.HasErrors() {
		t.Fatalf("unexpected errors: %s", rep.Format())
	}
	if !fn.HasRet {
		t.Fatal("expected function with unconditional return to have HasRet = true")
	}
}

// fn e(){ let x = 1; x = 2; }
func TestImmutableReassignmentReportsError(t *testing.T) {
	c, rep := newChecker()
	letX := &ast.LetStmt{Name: "x", Value: &ast.Number{Value: 1}}
	reassign := &ast.AssignExpr{LVal: &ast.Variable{Name: "x"}, RVal: &ast.Number{Value: 2}}
	fn := &ast.Function{
		Name:   "e",
		Return: types.UnitT,
		Body: &ast.StmtBlockExpr{Stmts: []ast.Stmt{
			letX,
			exprStmt(reassign, true),
		}},
	}
	c.CheckProgram(&ast.Program{Functions: []*ast.Function{fn}})
	if !rep.HasErrors() {
		t.Fatal("expected assign-immutable error")
	}
	if rep.Diagnostics()[0].Kind != reporter.KindAssignImmutable {
		t.Fatalf("Kind = %v, want KindAssignImmutable", rep.Diagnostics()[0].Kind)
	}
}

func TestUndeclaredVariableReportsErrorAndRecovers(t *testing.T) {
	c, rep := newChecker()
	v := &ast.Variable{Name: "missing"}
	fn := &ast.Function{
		Name:   "f",
		Return: types.UnitT,
		Body:   &ast.StmtBlockExpr{Stmts: []ast.Stmt{exprStmt(v, true)}},
	}
	c.CheckProgram(&ast.Program{Functions: []*ast.Function{fn}})
	if !rep.HasErrors() || rep.Diagnostics()[0].Kind != reporter.KindUndeclaredVar {
		t.Fatalf("expected undeclared-var, got %+v", rep.Diagnostics())
	}
	if !types.Equal(v.Type, types.AnyT) {
		t.Fatalf("Type = %v, want Any for error recovery", v.Type)
	}
	if !v.ResMut {
		t.Fatal("ResMut should be true on an undeclared variable to suppress downstream noise")
	}
}

func TestIfWithoutElseYieldingNonUnitReportsMissingElse(t *testing.T) {
	c, rep := newChecker()
	ifExpr := &ast.IfExpr{
		Cond: &ast.Bool{Value: true},
		Body: &ast.StmtBlockExpr{Stmts: []ast.Stmt{exprStmt(&ast.Number{Value: 1}, false)}},
	}
	fn := &ast.Function{
		Name:   "f",
		Return: types.UnitT,
		Body:   &ast.StmtBlockExpr{Stmts: []ast.Stmt{exprStmt(ifExpr, true)}},
	}
	c.CheckProgram(&ast.Program{Functions: []*ast.Function{fn}})
	found := false
	for _, d := range rep.Diagnostics() {
		if d.Kind == reporter.KindMissingElse {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected missing-else, got %+v", rep.Diagnostics())
	}
}

func TestCallArgumentCountMismatch(t *testing.T) {
	c, rep := newChecker()
	callee := &ast.Function{
		Name:   "add",
		Return: types.Int32T,
		Params: []ast.Param{{Name: "a", Type: types.Int32T}, {Name: "b", Type: types.Int32T}},
		Body:   &ast.StmtBlockExpr{Stmts: []ast.Stmt{exprStmt(&ast.RetExpr{Value: &ast.Number{Value: 0}}, true)}},
	}
	call := &ast.CallExpr{Callee: "add", Argv: []ast.Expr{&ast.Number{Value: 1}}}
	caller := &ast.Function{
		Name:   "main",
		Return: types.UnitT,
		Body:   &ast.StmtBlockExpr{Stmts: []ast.Stmt{exprStmt(call, true)}},
	}
	c.CheckProgram(&ast.Program{Functions: []*ast.Function{callee, caller}})
	found := false
	for _, d := range rep.Diagnostics() {
		if d.Kind == reporter.KindArgCntMismatch {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected arg-cnt-mismatch, got %+v", rep.Diagnostics())
	}
}

func TestEmptyArrayLiteralAssignedIntoConcreteSlotIsAccepted(t *testing.T) {
	c, rep := newChecker()
	concreteArr := c.Ctx.Types.Array(0, types.Int32T)
	letArr := &ast.LetStmt{
		Name:    "arr",
		Mutable: true,
		Ann:     concreteArr,
		Value:   &ast.ArrElems{},
	}
	reassign := &ast.AssignExpr{
		LVal: &ast.Variable{Name: "arr"},
		RVal: &ast.ArrElems{},
	}
	fn := &ast.Function{
		Name:   "f",
		Return: types.UnitT,
		Body: &ast.StmtBlockExpr{Stmts: []ast.Stmt{
			letArr,
			exprStmt(reassign, true),
		}},
	}
	c.CheckProgram(&ast.Program{Functions: []*ast.Function{fn}})
	if rep.HasErrors() {
		t.Fatalf("unexpected errors: %s", rep.Format())
	}
	if !types.Equal(letArr.Symbol.Type, concreteArr) {
		t.Fatalf("let-bound array's type = %v, want the concrete annotation", letArr.Symbol.Type)
	}
}

func TestBreakOutsideLoopReportsContextError(t *testing.T) {
	c, rep := newChecker()
	fn := &ast.Function{
		Name:   "f",
		Return: types.UnitT,
		Body:   &ast.StmtBlockExpr{Stmts: []ast.Stmt{exprStmt(&ast.BreakExpr{}, true)}},
	}
	c.CheckProgram(&ast.Program{Functions: []*ast.Function{fn}})
	if !rep.HasErrors() || rep.Diagnostics()[0].Kind != reporter.KindBreakCtxError {
		t.Fatalf("expected break-ctx-error, got %+v", rep.Diagnostics())
	}
}

func TestForInIterableDeclaresIteratorWithElementType(t *testing.T) {
	c, rep := newChecker()
	letArr := &ast.LetStmt{Name: "xs", Value: &ast.ArrElems{Elems: []ast.Expr{&ast.Number{Value: 1}}}}
	var iterVar *ast.Variable
	forLoop := &ast.ForLoopExpr{
		Iter:   "v",
		Source: &ast.IterableVal{Value: &ast.Variable{Name: "xs"}},
		Body: &ast.StmtBlockExpr{Stmts: []ast.Stmt{
			func() ast.Stmt {
				iterVar = &ast.Variable{Name: "v"}
				return exprStmt(iterVar, true)
			}(),
		}},
	}
	fn := &ast.Function{
		Name:   "f",
		Return: types.UnitT,
		Body: &ast.StmtBlockExpr{Stmts: []ast.Stmt{
			letArr,
			exprStmt(forLoop, true),
		}},
	}
	c.CheckProgram(&ast.Program{Functions: []*ast.Function{fn}})
	if rep.HasErrors() {
		t.Fatalf("unexpected errors: %s", rep.Format())
	}
	if !types.Equal(iterVar.Type, types.Int32T) {
		t.Fatalf("iterator type = %v, want Int32 (the array's element type)", iterVar.Type)
	}
}

func TestDuplicateFunctionDeclaration(t *testing.T) {
	c, rep := newChecker()
	mk := func() *ast.Function {
		return &ast.Function{Name: "f", Return: types.UnitT, Body: &ast.StmtBlockExpr{}}
	}
	c.CheckProgram(&ast.Program{Functions: []*ast.Function{mk(), mk()}})
	if !rep.HasErrors() || rep.Diagnostics()[0].Kind != reporter.KindDuplicateFunction {
		t.Fatalf("expected duplicate-function, got %+v", rep.Diagnostics())
	}
}
