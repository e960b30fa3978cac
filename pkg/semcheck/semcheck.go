// Package semcheck implements the semantic checker (C7): a bottom-up AST
// walk that attaches type, symbol, mutability and variable-reference
// attributes to every expression node and reports errors into a reporter
// without halting.
package semcheck

import (
	"fmt"
	"strconv"

	"github.com/anxi710/toy-compiler-sub000/pkg/ast"
	"github.com/anxi710/toy-compiler-sub000/pkg/breakan"
	"github.com/anxi710/toy-compiler-sub000/pkg/reporter"
	"github.com/anxi710/toy-compiler-sub000/pkg/retpath"
	"github.com/anxi710/toy-compiler-sub000/pkg/semctx"
	"github.com/anxi710/toy-compiler-sub000/pkg/symbols"
	"github.com/anxi710/toy-compiler-sub000/pkg/types"
)

// Checker walks one translation unit's AST, annotating it in place.
type Checker struct {
	Ctx *semctx.Context
	Rep *reporter.Reporter
}

// New creates a Checker over a fresh semantic context and the given reporter.
func New(ctx *semctx.Context, rep *reporter.Reporter) *Checker {
	return &Checker{Ctx: ctx, Rep: rep}
}

func toSymPos(p ast.Position) symbols.Position  { return symbols.Position{Line: p.Line, Col: p.Col} }
func toRepPos(p ast.Position) reporter.Position { return reporter.Position{Line: p.Line, Col: p.Col} }

func (c *Checker) report(kind reporter.Kind, pos ast.Position, cause string) {
	c.Rep.Report(reporter.Diagnostic{
		Severity: reporter.SeveritySemantic,
		Kind:     kind,
		Cause:    cause,
		Scope:    c.Ctx.Table.CurrentScope(),
		Pos:      toRepPos(pos),
	})
}

// CheckProgram declares every function up front, so forward references and
// mutual recursion resolve, then checks each body.
func (c *Checker) CheckProgram(prog *ast.Program) {
	for _, fn := range prog.Functions {
		c.declareFunction(fn)
	}
	for _, fn := range prog.Functions {
		c.CheckFunction(fn)
	}
}

func (c *Checker) declareFunction(fn *ast.Function) {
	params := make([]*symbols.Value, len(fn.Params))
	for i, p := range fn.Params {
		v := symbols.NewLocal(p.Name, p.Type, toSymPos(p.Pos), p.Mutable, true)
		v.Initialized = true
		params[i] = v
	}
	sym := &symbols.Function{Name: fn.Name, Pos: toSymPos(fn.Pos), Params: params, Return: fn.Return}
	if !c.Ctx.Table.DeclareFunction(fn.Name, sym) {
		c.report(reporter.KindDuplicateFunction, fn.Pos, fmt.Sprintf("function %q is already declared", fn.Name))
		return
	}
	fn.Symbol = sym
}

// CheckFunction checks one function's body. Functions whose name collided
// with an earlier declaration (fn.Symbol is nil) are skipped: the duplicate
// was already reported at declaration time.
func (c *Checker) CheckFunction(fn *ast.Function) {
	if fn.Symbol == nil {
		return
	}
	c.Ctx.EnterFunction(fn.Symbol)
	for _, p := range fn.Symbol.Params {
		c.Ctx.Table.DeclareValue(p.Name, p)
	}

	c.checkStmts(fn.Body.Stmts)
	c.finishBlockType(fn.Body)

	hasRet, _ := retpath.AnalyzeBlock(fn.Body)
	fn.HasRet = hasRet
	if !hasRet && !types.Equal(fn.Body.Type, fn.Return) {
		c.report(reporter.KindRetTypeMismatch, fn.Pos, fmt.Sprintf(
			"function %q must yield %s on every path, got %s", fn.Name, fn.Return.String(), fn.Body.Type.String()))
	}

	c.checkUnresolvedTypes()
	c.Ctx.ExitFunction()
}

func (c *Checker) checkUnresolvedTypes() {
	for _, v := range semctx.CheckUnresolvedTypes(c.Ctx.Table.ScopeLocals()) {
		c.report(reporter.KindTypeInferFailure, ast.Position{Line: v.Pos.Line, Col: v.Pos.Col},
			fmt.Sprintf("could not infer a type for %q", v.Name))
	}
}

func (c *Checker) checkStmts(stmts []ast.Stmt) {
	for _, s := range stmts {
		c.checkStmt(s)
	}
}

func (c *Checker) checkStmt(s ast.Stmt) {
	switch st := s.(type) {
	case *ast.LetStmt:
		c.checkLet(st)
	case *ast.ExprStmt:
		c.CheckExpr(st.X)
	default:
		reporter.Fatal("semcheck: UNREACHABLE: unhandled statement node %T", s)
	}
}

func (c *Checker) checkLet(st *ast.LetStmt) {
	c.CheckExpr(st.Value)
	valueType := st.Value.Attributes().Type

	declaredType := st.Ann
	if declaredType == nil {
		declaredType = valueType
	} else if !assignable(declaredType, valueType) {
		c.report(reporter.KindTypeMismatch, st.Pos, fmt.Sprintf(
			"%q is annotated %s but initialized with %s", st.Name, declaredType.String(), valueType.String()))
	}

	sym := symbols.NewLocal(st.Name, declaredType, toSymPos(st.Pos), st.Mutable, false)
	sym.Initialized = true
	st.Symbol = sym
	c.Ctx.Table.DeclareValue(st.Name, sym)
}

func emptyArrayLiteral(t types.Type) bool {
	a, ok := t.(*types.Array)
	return ok && a.Size == 0 && types.Equal(a.Elem, types.Unknown)
}

// assignable reports whether an rval of type rhs may be stored into a slot
// of type lhs: either they're identical, or rhs is an empty array literal
// and lhs is a concrete array (spec.md §8: assigning [] into a typed slot
// updates the element type if the slot is concrete).
func assignable(lhs, rhs types.Type) bool {
	if types.Equal(lhs, rhs) {
		return true
	}
	if _, ok := lhs.(*types.Array); ok && emptyArrayLiteral(rhs) {
		return true
	}
	return false
}

// CheckExpr dispatches on e's concrete node kind, checks its children
// bottom-up, and attaches the resulting Type/Symbol/ResMut/IsVar.
func (c *Checker) CheckExpr(e ast.Expr) {
	switch ex := e.(type) {
	case *ast.Number:
		c.checkNumber(ex)
	case *ast.Bool:
		c.checkBool(ex)
	case *ast.Variable:
		c.checkVariable(ex, true)
	case *ast.ArrAcc:
		c.checkArrAcc(ex)
	case *ast.TupAcc:
		c.checkTupAcc(ex)
	case *ast.AssignExpr:
		c.checkAssign(ex)
	case *ast.CmpExpr:
		c.checkCmp(ex)
	case *ast.AriExpr:
		c.checkAri(ex)
	case *ast.ArrElems:
		c.checkArrElems(ex)
	case *ast.TupElems:
		c.checkTupElems(ex)
	case *ast.BracketExpr:
		c.checkBracket(ex)
	case *ast.CallExpr:
		c.checkCall(ex)
	case *ast.IfExpr:
		c.checkIf(ex)
	case *ast.WhileLoopExpr:
		c.checkWhile(ex)
	case *ast.ForLoopExpr:
		c.checkFor(ex)
	case *ast.LoopExpr:
		c.checkLoop(ex)
	case *ast.RangeExpr:
		c.checkRange(ex)
	case *ast.IterableVal:
		c.checkIterableVal(ex)
	case *ast.RetExpr:
		c.checkRet(ex)
	case *ast.BreakExpr:
		c.checkBreak(ex)
	case *ast.ContinueExpr:
		c.checkContinue(ex)
	case *ast.StmtBlockExpr:
		c.checkBranchBlock(ex, semctx.FrameBlockExpr)
	default:
		reporter.Fatal("semcheck: UNREACHABLE: unhandled expression node %T", e)
	}
}

func (c *Checker) checkNumber(n *ast.Number) {
	name := strconv.Itoa(int(n.Value))
	n.Symbol = c.Ctx.Table.DeclareConstant(name, symbols.NewConstant(name, types.Int32T, toSymPos(n.Pos)))
	n.Type = types.Int32T
}

func (c *Checker) checkBool(b *ast.Bool) {
	name := strconv.FormatBool(b.Value)
	b.Symbol = c.Ctx.Table.DeclareConstant(name, symbols.NewConstant(name, types.BoolT, toSymPos(b.Pos)))
	b.Type = types.BoolT
}

// checkVariable resolves v against the symbol table. checkInit controls
// whether an uninitialized binding is reported: assignment targets skip
// this check via checkLValueTarget, since being assigned is what
// initializes them.
func (c *Checker) checkVariable(v *ast.Variable, checkInit bool) {
	v.IsVar = true
	sym, ok := c.Ctx.Table.LookupValue(v.Name)
	if !ok {
		c.report(reporter.KindUndeclaredVar, v.Pos, fmt.Sprintf("undeclared variable %q", v.Name))
		v.Type = types.AnyT
		v.ResMut = true
		return
	}
	v.Type = sym.Type
	v.Symbol = sym
	v.ResMut = sym.Mutable
	if checkInit && !sym.Initialized {
		c.report(reporter.KindUninitializedVar, v.Pos, fmt.Sprintf("use of uninitialized variable %q", v.Name))
	}
}

func (c *Checker) checkArrAcc(a *ast.ArrAcc) {
	c.CheckExpr(a.Base)
	c.CheckExpr(a.Idx)
	arrT, ok := a.Base.Attributes().Type.(*types.Array)
	if !ok {
		c.report(reporter.KindUnexpectedExprType, a.Pos, fmt.Sprintf(
			"cannot index into non-array type %s", a.Base.Attributes().Type.String()))
		a.Type = types.AnyT
	} else {
		a.Type = arrT.Elem
	}
	if !types.Equal(a.Idx.Attributes().Type, types.Int32T) {
		c.report(reporter.KindTypeMismatch, a.Pos, "array index must be i32")
	}
	a.ResMut = a.Base.Attributes().ResMut
}

func (c *Checker) checkTupAcc(a *ast.TupAcc) {
	c.CheckExpr(a.Base)
	c.CheckExpr(a.Idx)
	tupT, ok := a.Base.Attributes().Type.(*types.Tuple)
	if !ok {
		c.report(reporter.KindUnexpectedExprType, a.Pos, fmt.Sprintf(
			"cannot project a field out of non-tuple type %s", a.Base.Attributes().Type.String()))
		a.Type = types.AnyT
		return
	}
	idx := int(a.Idx.Value)
	if idx < 0 || idx >= len(tupT.Elems) {
		c.report(reporter.KindOutOfBoundsAccess, a.Pos, fmt.Sprintf(
			"tuple index %d out of bounds for %s", idx, tupT.String()))
		a.Type = types.AnyT
		return
	}
	a.Type = tupT.Elems[idx]
	a.ResMut = a.Base.Attributes().ResMut
}

// checkLValueTarget resolves the left-hand side of an assignment. A bare
// variable is looked up without the uninitialized-use check, since the
// assignment about to happen is what initializes it; any other l-value
// form (array/tuple projection) goes through the normal rvalue path, since
// its base must already be initialized to be indexed.
func (c *Checker) checkLValueTarget(e ast.Expr) {
	if v, ok := e.(*ast.Variable); ok {
		c.checkVariable(v, false)
		return
	}
	c.CheckExpr(e)
}

func (c *Checker) checkAssign(ax *ast.AssignExpr) {
	c.checkLValueTarget(ax.LVal)
	c.CheckExpr(ax.RVal)
	ax.Type = types.UnitT

	rvalType := ax.RVal.Attributes().Type
	if v, ok := ax.LVal.(*ast.Variable); ok && v.Symbol != nil {
		sym := v.Symbol
		switch {
		case types.Equal(sym.Type, types.Unknown):
			sym.Type = rvalType
			ax.LVal.Attributes().Type = sym.Type
		case sym.Initialized && !sym.Mutable:
			c.report(reporter.KindAssignImmutable, ax.Pos, fmt.Sprintf(
				"cannot assign twice to immutable variable %q", v.Name))
		case !assignable(sym.Type, rvalType):
			c.report(reporter.KindAssignMismatch, ax.Pos, fmt.Sprintf(
				"cannot assign %s to %q of type %s", rvalType.String(), v.Name, sym.Type.String()))
		}
		sym.Initialized = true
		return
	}

	lvalAttrs := ax.LVal.Attributes()
	if !lvalAttrs.ResMut {
		c.report(reporter.KindAssignImmutable, ax.Pos, "left-hand side of assignment is not a mutable place")
		return
	}
	if !assignable(lvalAttrs.Type, rvalType) {
		c.report(reporter.KindAssignMismatch, ax.Pos, fmt.Sprintf(
			"cannot assign %s into a place of type %s", rvalType.String(), lvalAttrs.Type.String()))
	}
}

func (c *Checker) checkCmp(cx *ast.CmpExpr) {
	c.CheckExpr(cx.Lhs)
	c.CheckExpr(cx.Rhs)
	if !types.Equal(cx.Lhs.Attributes().Type, types.Int32T) || !types.Equal(cx.Rhs.Attributes().Type, types.Int32T) {
		c.report(reporter.KindIncomparableTypes, cx.Pos, "comparison operands must both be i32")
	}
	cx.Type = types.BoolT
}

func (c *Checker) checkAri(ax *ast.AriExpr) {
	c.CheckExpr(ax.Lhs)
	c.CheckExpr(ax.Rhs)
	if !types.Equal(ax.Lhs.Attributes().Type, types.Int32T) || !types.Equal(ax.Rhs.Attributes().Type, types.Int32T) {
		c.report(reporter.KindNonComputableTypes, ax.Pos, "arithmetic operands must both be i32")
	}
	ax.Type = types.Int32T
}

func (c *Checker) checkArrElems(ae *ast.ArrElems) {
	if len(ae.Elems) == 0 {
		ae.Type = c.Ctx.Types.Array(0, types.Unknown)
		return
	}
	c.CheckExpr(ae.Elems[0])
	elemType := ae.Elems[0].Attributes().Type
	for _, el := range ae.Elems[1:] {
		c.CheckExpr(el)
		if !types.Equal(el.Attributes().Type, elemType) {
			c.report(reporter.KindTypeMismatch, ae.Pos, "array elements must all share the first element's type")
		}
	}
	ae.Type = c.Ctx.Types.Array(len(ae.Elems), elemType)
}

func (c *Checker) checkTupElems(te *ast.TupElems) {
	elemTypes := make([]types.Type, len(te.Elems))
	for i, el := range te.Elems {
		c.CheckExpr(el)
		elemTypes[i] = el.Attributes().Type
	}
	te.Type = c.Ctx.Types.Tuple(elemTypes)
}

func (c *Checker) checkBracket(bx *ast.BracketExpr) {
	if bx.Inner == nil {
		bx.Type = types.UnitT
		return
	}
	c.CheckExpr(bx.Inner)
	inner := bx.Inner.Attributes()
	t := inner.Type
	if types.Equal(t, types.AnyT) {
		t = types.UnitT
	}
	bx.Type = t
	bx.ResMut = inner.ResMut
	bx.Symbol = inner.Symbol
}

func (c *Checker) checkCall(cx *ast.CallExpr) {
	fn, ok := c.Ctx.Table.LookupFunction(cx.Callee)
	if !ok {
		c.report(reporter.KindCallUndeclaredFunc, cx.Pos, fmt.Sprintf("call to undeclared function %q", cx.Callee))
		for _, a := range cx.Argv {
			c.CheckExpr(a)
		}
		cx.Type = types.AnyT
		return
	}
	if len(cx.Argv) != len(fn.Params) {
		c.report(reporter.KindArgCntMismatch, cx.Pos, fmt.Sprintf(
			"function %q expects %d argument(s), got %d", cx.Callee, len(fn.Params), len(cx.Argv)))
	}
	for i, a := range cx.Argv {
		c.CheckExpr(a)
		if i < len(fn.Params) && !types.Equal(a.Attributes().Type, fn.Params[i].Type) {
			c.report(reporter.KindArgTypeMismatch, cx.Pos, fmt.Sprintf(
				"argument %d to %q has type %s, want %s", i+1, cx.Callee, a.Attributes().Type.String(), fn.Params[i].Type.String()))
		}
	}
	cx.Type = fn.Return
}

type ifBranch struct {
	body   *ast.StmtBlockExpr
	hasRet bool
}

func (c *Checker) checkIf(ix *ast.IfExpr) {
	c.CheckExpr(ix.Cond)
	if !types.Equal(ix.Cond.Attributes().Type, types.BoolT) {
		c.report(reporter.KindTypeMismatch, ix.Pos, "if condition must be bool")
	}

	branches := []ifBranch{{ix.Body, c.checkBranchBlock(ix.Body, semctx.FrameIf)}}

	for _, clause := range ix.Elses {
		c.CheckExpr(clause.Cond)
		if !types.Equal(clause.Cond.Attributes().Type, types.BoolT) {
			c.report(reporter.KindTypeMismatch, clause.Pos, "else-if condition must be bool")
		}
		ret := c.checkBranchBlock(clause.Body, semctx.FrameElse)
		branches = append(branches, ifBranch{clause.Body, ret})
		clause.Type = types.UnitT
	}

	hasElse := ix.Else != nil
	if hasElse {
		branches = append(branches, ifBranch{ix.Else, c.checkBranchBlock(ix.Else, semctx.FrameElse)})
	}

	exprType := ix.Body.Type
	for _, b := range branches {
		if !b.hasRet {
			exprType = b.body.Type
			break
		}
	}

	if !types.Equal(exprType, types.UnitT) && !hasElse {
		c.report(reporter.KindMissingElse, ix.Pos, "if used as a non-unit value requires a terminal else")
	}

	for _, b := range branches {
		if !b.hasRet && !types.Equal(b.body.Type, exprType) {
			c.report(reporter.KindTypeMismatch, ix.Pos, fmt.Sprintf(
				"if branch yields %s, want %s", b.body.Type.String(), exprType.String()))
		}
	}

	ix.Type = exprType
}

func (c *Checker) checkWhile(wx *ast.WhileLoopExpr) {
	c.CheckExpr(wx.Cond)
	if !types.Equal(wx.Cond.Attributes().Type, types.BoolT) {
		c.report(reporter.KindTypeMismatch, wx.Pos, "while condition must be bool")
	}
	c.checkBranchBlock(wx.Body, semctx.FrameWhile)
	if !types.Equal(wx.Body.Type, types.UnitT) {
		c.report(reporter.KindUnexpectedExprType, wx.Pos, "while body must yield unit")
	}
	wx.Type = types.UnitT
}

func (c *Checker) checkFor(fx *ast.ForLoopExpr) {
	switch src := fx.Source.(type) {
	case *ast.RangeExpr:
		c.CheckExpr(src.Start)
		c.CheckExpr(src.End)
		if !types.Equal(src.Start.Attributes().Type, types.Int32T) || !types.Equal(src.End.Attributes().Type, types.Int32T) {
			c.report(reporter.KindTypeMismatch, fx.Pos, "range endpoints must be i32")
		}
		src.Type = types.UnitT
		c.checkForBody(fx, types.Int32T)
	case *ast.IterableVal:
		c.CheckExpr(src.Value)
		arrT, ok := src.Value.Attributes().Type.(*types.Array)
		if !ok {
			c.report(reporter.KindUnexpectedExprType, fx.Pos, "for-in iterable must be an array")
			src.Type = types.AnyT
			c.checkForBody(fx, types.AnyT)
			break
		}
		src.Type = arrT
		c.checkForBody(fx, arrT.Elem)
	default:
		reporter.Fatal("semcheck: UNREACHABLE: for-loop source of unexpected kind %T", src)
	}
	fx.Type = types.UnitT
}

// checkForBody declares the iterator with iterType (spec.md §9.1: the
// iterable's element type, not unconditionally Int32) and checks the body
// in a fresh For scope.
func (c *Checker) checkForBody(fx *ast.ForLoopExpr, iterType types.Type) {
	name := c.Ctx.NextBlockName()
	c.Ctx.EnterBlock(semctx.FrameFor, name, true)

	iterSym := symbols.NewLocal(fx.Iter, iterType, toSymPos(fx.Pos), false, false)
	iterSym.Initialized = true
	fx.Symbol = iterSym
	c.Ctx.Table.DeclareValue(fx.Iter, iterSym)

	c.checkStmts(fx.Body.Stmts)
	c.finishBlockType(fx.Body)
	if !types.Equal(fx.Body.Type, types.UnitT) {
		c.report(reporter.KindUnexpectedExprType, fx.Pos, "for body must yield unit")
	}
	c.checkUnresolvedTypes()
	c.Ctx.ExitBlock(semctx.FrameFor)
}

func (c *Checker) checkLoop(lx *ast.LoopExpr) {
	c.checkBranchBlock(lx.Body, semctx.FrameLoop)
	if !types.Equal(lx.Body.Type, types.UnitT) {
		c.report(reporter.KindUnexpectedExprType, lx.Pos, "loop body must yield unit")
	}

	result := breakan.Analyze(lx.Body, c.Rep, c.Ctx.Table.CurrentScope())
	lx.HasBreak = result.HasBreak
	lx.BreakType = result.BreakType
	lx.Type = result.BreakType
}

func (c *Checker) checkRange(rx *ast.RangeExpr) {
	c.CheckExpr(rx.Start)
	c.CheckExpr(rx.End)
	if !types.Equal(rx.Start.Attributes().Type, types.Int32T) || !types.Equal(rx.End.Attributes().Type, types.Int32T) {
		c.report(reporter.KindTypeMismatch, rx.Pos, "range endpoints must be i32")
	}
	rx.Type = types.UnitT
}

func (c *Checker) checkIterableVal(iv *ast.IterableVal) {
	c.CheckExpr(iv.Value)
	if arrT, ok := iv.Value.Attributes().Type.(*types.Array); ok {
		iv.Type = arrT
		return
	}
	c.report(reporter.KindUnexpectedExprType, iv.Pos, "for-in iterable must be an array")
	iv.Type = types.AnyT
}

func (c *Checker) checkRet(rx *ast.RetExpr) {
	fn := c.Ctx.CurrentFunction()
	rx.Type = types.UnitT
	if rx.Value == nil {
		if !types.Equal(fn.Return, types.UnitT) {
			c.report(reporter.KindMissingRetval, rx.Pos, fmt.Sprintf(
				"function %q returns %s; a bare return needs a value", fn.Name, fn.Return.String()))
		}
		return
	}
	c.CheckExpr(rx.Value)
	if !types.Equal(rx.Value.Attributes().Type, fn.Return) {
		c.report(reporter.KindRetTypeMismatch, rx.Pos, fmt.Sprintf(
			"returned %s, function %q declares %s", rx.Value.Attributes().Type.String(), fn.Name, fn.Return.String()))
	}
	rx.Symbol = rx.Value.Attributes().Symbol
}

func (c *Checker) checkBreak(bx *ast.BreakExpr) {
	bx.Type = types.UnitT
	if !c.Ctx.InLoopContext() {
		c.report(reporter.KindBreakCtxError, bx.Pos, "break used outside a loop")
		if bx.Value != nil {
			c.CheckExpr(bx.Value)
		}
		return
	}
	if bx.Value == nil {
		return
	}
	c.CheckExpr(bx.Value)
	if c.Ctx.CurrentLoopFrame().Kind != semctx.FrameLoop {
		c.report(reporter.KindBreakCtxError, bx.Pos, "break with a value is only allowed inside an unconditional loop")
	}
}

func (c *Checker) checkContinue(cx *ast.ContinueExpr) {
	cx.Type = types.UnitT
	if !c.Ctx.InLoopContext() {
		c.report(reporter.KindContinueCtxError, cx.Pos, "continue used outside a loop")
	}
}

// checkBranchBlock enters a fresh scope/frame of kind, checks block's
// statements and type, runs the unresolved-type check on scope exit, and
// reports whether block guarantees a return.
func (c *Checker) checkBranchBlock(block *ast.StmtBlockExpr, kind semctx.FrameKind) bool {
	name := c.Ctx.NextBlockName()
	c.Ctx.EnterBlock(kind, name, true)
	c.checkStmts(block.Stmts)
	c.finishBlockType(block)
	c.checkUnresolvedTypes()
	hasRet, _ := retpath.AnalyzeBlock(block)
	c.Ctx.ExitBlock(kind)
	return hasRet
}

// finishBlockType implements the StmtBlockExpr typing rule: a trailing
// expression statement without a semicolon is the block's value; otherwise
// the block yields Unit.
func (c *Checker) finishBlockType(block *ast.StmtBlockExpr) {
	if n := len(block.Stmts); n > 0 {
		if es, ok := block.Stmts[n-1].(*ast.ExprStmt); ok && !es.HasSemi {
			attrs := es.X.Attributes()
			block.Type = attrs.Type
			block.Symbol = attrs.Symbol
			block.ResMut = attrs.ResMut
			return
		}
	}
	block.Type = types.UnitT
}
