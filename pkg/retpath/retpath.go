// Package retpath implements the return-path analyzer (C5): it decides
// whether a block expression guarantees a return on every control path.
package retpath

import "github.com/anxi710/toy-compiler-sub000/pkg/ast"

// AnalyzeBlock walks block and reports whether it guarantees a return.
// Statements found after a statement that itself guarantees return are
// returned in unreachable, for the caller to flag as diagnostic-only dead
// code (spec.md §4.3: "not a hard error").
func AnalyzeBlock(block *ast.StmtBlockExpr) (hasRet bool, unreachable []ast.Stmt) {
	for _, s := range block.Stmts {
		if hasRet {
			unreachable = append(unreachable, s)
			continue
		}
		if stmtReturns(s) {
			hasRet = true
		}
	}
	return hasRet, unreachable
}

func stmtReturns(s ast.Stmt) bool {
	switch st := s.(type) {
	case *ast.LetStmt:
		return st.Value != nil && exprReturns(st.Value)
	case *ast.ExprStmt:
		return exprReturns(st.X)
	default:
		return false
	}
}

// exprReturns recurses into the expression forms that carry nested control
// flow: a bare return, an if expression's branches, or a loop's body
// (assumed to execute at least once). while/for contribute false
// unconditionally since they may run zero iterations.
func exprReturns(e ast.Expr) bool {
	switch ex := e.(type) {
	case *ast.RetExpr:
		return true
	case *ast.WhileLoopExpr, *ast.ForLoopExpr:
		return false
	case *ast.LoopExpr:
		r, _ := AnalyzeBlock(ex.Body)
		return r
	case *ast.IfExpr:
		return ifReturns(ex)
	case *ast.StmtBlockExpr:
		r, _ := AnalyzeBlock(ex)
		return r
	default:
		return false
	}
}

// ifReturns implements spec.md §4.3's if rule: any conditional else-if tail,
// or the absence of a terminal else, contributes false. A terminal
// unconditional else contributes true iff the if-body and every else-clause
// body all guarantee return.
func ifReturns(ifx *ast.IfExpr) bool {
	if len(ifx.Elses) > 0 || ifx.Else == nil {
		return false
	}
	bodyRet, _ := AnalyzeBlock(ifx.Body)
	if !bodyRet {
		return false
	}
	elseRet, _ := AnalyzeBlock(ifx.Else)
	return elseRet
}
