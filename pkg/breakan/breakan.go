// Package breakan implements the break analyzer (C6): inside an
// unconditional loop body, it collects every break-with-value statement at
// the loop's own nesting level and ascertains the common yielded type.
package breakan

import (
	"github.com/anxi710/toy-compiler-sub000/pkg/ast"
	"github.com/anxi710/toy-compiler-sub000/pkg/reporter"
	"github.com/anxi710/toy-compiler-sub000/pkg/types"
)

// Result is the break analyzer's verdict for one loop body.
type Result struct {
	HasBreak  bool
	BreakType types.Type
}

// Analyze walks body's direct statements (not descending into nested
// while/for/loop bodies, which are self-contained) collecting every break
// expression. The first break seen fixes BreakType, coercing Any outward to
// Unit; every later break must match or a break-type-mismatch diagnostic is
// reported at its position. A bare break yields Unit, so mixing bare and
// valued breaks reports the same mismatch.
func Analyze(body *ast.StmtBlockExpr, rep *reporter.Reporter, scope string) Result {
	var breaks []*ast.BreakExpr
	walkBlock(body, &breaks)
	if len(breaks) == 0 {
		return Result{HasBreak: false, BreakType: types.UnitT}
	}

	var breakType types.Type
	for i, b := range breaks {
		t := breakExprType(b)
		if i == 0 {
			breakType = t
			continue
		}
		if !types.Equal(breakType, t) {
			rep.Report(reporter.Diagnostic{
				Severity: reporter.SeveritySemantic,
				Kind:     reporter.KindBreakTypeMismatch,
				Cause:    "break expression type does not match the loop's established break type",
				Scope:    scope,
				Pos:      reporter.Position{Line: b.Pos.Line, Col: b.Pos.Col},
			})
		}
	}
	return Result{HasBreak: true, BreakType: breakType}
}

func breakExprType(b *ast.BreakExpr) types.Type {
	if b.Value == nil {
		return types.UnitT
	}
	t := b.Value.Attributes().Type
	if t == types.AnyT {
		return types.UnitT
	}
	return t
}

func walkBlock(b *ast.StmtBlockExpr, out *[]*ast.BreakExpr) {
	for _, s := range b.Stmts {
		walkStmt(s, out)
	}
}

func walkStmt(s ast.Stmt, out *[]*ast.BreakExpr) {
	switch st := s.(type) {
	case *ast.LetStmt:
		walkExpr(st.Value, out)
	case *ast.ExprStmt:
		walkExpr(st.X, out)
	}
}

// walkExpr descends into every compound expression form except the
// self-contained loop bodies: a break nested inside an inner while/for/loop
// belongs to that inner loop, not this one.
func walkExpr(e ast.Expr, out *[]*ast.BreakExpr) {
	switch ex := e.(type) {
	case nil:
		return
	case *ast.BreakExpr:
		*out = append(*out, ex)
		if ex.Value != nil {
			walkExpr(ex.Value, out)
		}
	case *ast.WhileLoopExpr, *ast.ForLoopExpr, *ast.LoopExpr:
		return
	case *ast.IfExpr:
		walkExpr(ex.Cond, out)
		walkBlock(ex.Body, out)
		for _, clause := range ex.Elses {
			walkExpr(clause, out)
		}
		if ex.Else != nil {
			walkBlock(ex.Else, out)
		}
	case *ast.StmtBlockExpr:
		walkBlock(ex, out)
	case *ast.AssignExpr:
		walkExpr(ex.LVal, out)
		walkExpr(ex.RVal, out)
	case *ast.CmpExpr:
		walkExpr(ex.Lhs, out)
		walkExpr(ex.Rhs, out)
	case *ast.AriExpr:
		walkExpr(ex.Lhs, out)
		walkExpr(ex.Rhs, out)
	case *ast.ArrAcc:
		walkExpr(ex.Base, out)
		walkExpr(ex.Idx, out)
	case *ast.TupAcc:
		walkExpr(ex.Base, out)
	case *ast.ArrElems:
		for _, el := range ex.Elems {
			walkExpr(el, out)
		}
	case *ast.TupElems:
		for _, el := range ex.Elems {
			walkExpr(el, out)
		}
	case *ast.BracketExpr:
		if ex.Inner != nil {
			walkExpr(ex.Inner, out)
		}
	case *ast.CallExpr:
		for _, a := range ex.Argv {
			walkExpr(a, out)
		}
	case *ast.RetExpr:
		if ex.Value != nil {
			walkExpr(ex.Value, out)
		}
	}
}
