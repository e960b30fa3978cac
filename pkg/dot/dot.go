// Package dot implements the DOT emitter (A5): a thin, boundary-only AST
// dump used by -p/--parse for visual inspection. It does not compute a
// layout - that's Graphviz's job once the .dot file is fed to it - it only
// declares one node per AST construct and an edge to each of its children.
package dot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anxi710/toy-compiler-sub000/pkg/ast"
)

// Emit renders prog as a Graphviz DOT digraph.
func Emit(prog *ast.Program) string {
	e := &emitter{}
	e.b.WriteString("digraph AST {\n")
	root := e.node("Program")
	for _, fn := range prog.Functions {
		e.edge(root, e.function(fn))
	}
	e.b.WriteString("}\n")
	return e.b.String()
}

// emitter holds the running node counter and output buffer. Unlike the
// original implementation's per-node (root, nodeDecls, edgeDecls) string
// tuples - needed there to keep node and edge declarations in separate
// blocks - a single shared builder can interleave them freely, since
// Graphviz does not require node declarations to precede the edges that
// reference them.
type emitter struct {
	b   strings.Builder
	cnt int
}

func (e *emitter) node(label string) string {
	id := fmt.Sprintf("n%d", e.cnt)
	e.cnt++
	fmt.Fprintf(&e.b, "    %s [label = %q]\n", id, label)
	return id
}

func (e *emitter) edge(parent, child string) {
	fmt.Fprintf(&e.b, "    %s -> %s\n", parent, child)
}

func (e *emitter) function(fn *ast.Function) string {
	root := e.node("Function\n" + fn.Name)
	for _, p := range fn.Params {
		e.edge(root, e.param(p))
	}
	e.edge(root, e.node("-> "+fn.Return.String()))
	e.edge(root, e.blockExpr(fn.Body))
	return root
}

func (e *emitter) param(p ast.Param) string {
	root := e.node("Param")
	if p.Mutable {
		e.edge(root, e.node("mut"))
	}
	e.edge(root, e.node("ID\n"+p.Name))
	e.edge(root, e.node(p.Type.String()))
	return root
}

func (e *emitter) blockExpr(b *ast.StmtBlockExpr) string {
	root := e.node("Block")
	for _, s := range b.Stmts {
		e.edge(root, e.stmt(s))
	}
	return root
}

func (e *emitter) stmt(s ast.Stmt) string {
	switch st := s.(type) {
	case *ast.LetStmt:
		return e.letStmt(st)
	case *ast.ExprStmt:
		return e.exprStmt(st)
	default:
		return e.node(fmt.Sprintf("?stmt(%T)", s))
	}
}

func (e *emitter) letStmt(st *ast.LetStmt) string {
	root := e.node("Let")
	if st.Mutable {
		e.edge(root, e.node("mut"))
	}
	e.edge(root, e.node("ID\n"+st.Name))
	if st.Ann != nil {
		e.edge(root, e.node(st.Ann.String()))
	}
	e.edge(root, e.expr(st.Value))
	return root
}

func (e *emitter) exprStmt(st *ast.ExprStmt) string {
	label := "ExprStmt"
	if st.HasSemi {
		label += "\n;"
	}
	root := e.node(label)
	e.edge(root, e.expr(st.X))
	return root
}

func (e *emitter) expr(x ast.Expr) string {
	switch n := x.(type) {
	case *ast.Number:
		return e.node("Integer\n" + strconv.Itoa(int(n.Value)))
	case *ast.Bool:
		return e.node("Bool\n" + strconv.FormatBool(n.Value))
	case *ast.Variable:
		return e.node("ID\n" + n.Name)
	case *ast.ArrAcc:
		root := e.node("[ ]")
		e.edge(root, e.expr(n.Base))
		e.edge(root, e.expr(n.Idx))
		return root
	case *ast.TupAcc:
		root := e.node(".")
		e.edge(root, e.expr(n.Base))
		e.edge(root, e.expr(n.Idx))
		return root
	case *ast.AssignExpr:
		root := e.node("=")
		e.edge(root, e.expr(n.LVal))
		e.edge(root, e.expr(n.RVal))
		return root
	case *ast.CmpExpr:
		root := e.node(cmpOpLabel(n.Op))
		e.edge(root, e.expr(n.Lhs))
		e.edge(root, e.expr(n.Rhs))
		return root
	case *ast.AriExpr:
		root := e.node(ariOpLabel(n.Op))
		e.edge(root, e.expr(n.Lhs))
		e.edge(root, e.expr(n.Rhs))
		return root
	case *ast.ArrElems:
		root := e.node("[ ]-literal")
		for _, el := range n.Elems {
			e.edge(root, e.expr(el))
		}
		return root
	case *ast.TupElems:
		root := e.node("( )-literal")
		for _, el := range n.Elems {
			e.edge(root, e.expr(el))
		}
		return root
	case *ast.BracketExpr:
		root := e.node("( )")
		if n.Inner != nil {
			e.edge(root, e.expr(n.Inner))
		}
		return root
	case *ast.CallExpr:
		root := e.node("Call\n" + n.Callee)
		for _, a := range n.Argv {
			e.edge(root, e.expr(a))
		}
		return root
	case *ast.IfExpr:
		return e.ifExpr(n)
	case *ast.WhileLoopExpr:
		root := e.node("while")
		e.edge(root, e.expr(n.Cond))
		e.edge(root, e.blockExpr(n.Body))
		return root
	case *ast.RangeExpr:
		root := e.node("..")
		e.edge(root, e.expr(n.Start))
		e.edge(root, e.expr(n.End))
		return root
	case *ast.IterableVal:
		return e.expr(n.Value)
	case *ast.ForLoopExpr:
		root := e.node("for")
		e.edge(root, e.node("ID\n"+n.Iter))
		e.edge(root, e.expr(n.Source))
		e.edge(root, e.blockExpr(n.Body))
		return root
	case *ast.LoopExpr:
		root := e.node("loop")
		e.edge(root, e.blockExpr(n.Body))
		return root
	case *ast.RetExpr:
		root := e.node("return")
		if n.Value != nil {
			e.edge(root, e.expr(n.Value))
		}
		return root
	case *ast.BreakExpr:
		root := e.node("break")
		if n.Value != nil {
			e.edge(root, e.expr(n.Value))
		}
		return root
	case *ast.ContinueExpr:
		return e.node("continue")
	case *ast.StmtBlockExpr:
		return e.blockExpr(n)
	default:
		return e.node(fmt.Sprintf("?expr(%T)", x))
	}
}

func (e *emitter) ifExpr(n *ast.IfExpr) string {
	root := e.node("if")
	e.edge(root, e.expr(n.Cond))
	e.edge(root, e.blockExpr(n.Body))
	for _, elseIf := range n.Elses {
		e.edge(root, e.ifExpr(elseIf))
	}
	if n.Else != nil {
		e.edge(root, e.blockExpr(n.Else))
	}
	return root
}

func cmpOpLabel(op ast.CmpOp) string {
	switch op {
	case ast.CmpEq:
		return "=="
	case ast.CmpNeq:
		return "!="
	case ast.CmpGeq:
		return ">="
	case ast.CmpGt:
		return ">"
	case ast.CmpLeq:
		return "<="
	default:
		return "<"
	}
}

func ariOpLabel(op ast.AriOp) string {
	switch op {
	case ast.AriAdd:
		return "+"
	case ast.AriSub:
		return "-"
	case ast.AriMul:
		return "*"
	default:
		return "/"
	}
}
