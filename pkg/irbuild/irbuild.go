// Package irbuild implements the IR builder (C9): a second bottom-up walk
// over an already-checked AST that attaches three-address quads to every
// node and to each function, per the lowering rules of spec.md §4.6.
//
// The builder keeps its own semctx.Context, separate from the one the
// checker used. It never looks up a name in that context's symbol table:
// every node already carries the *symbols.Value or *symbols.Function the
// checker resolved for it. The context is used only for two things that
// are specific to code generation: synthesizing unique, scope-qualified
// jump labels (NextBlockName/EnterBlock/LabelBase) and allocating fresh
// temporaries (ProduceTemp).
package irbuild

import (
	"fmt"
	"strconv"

	"github.com/anxi710/toy-compiler-sub000/pkg/ast"
	"github.com/anxi710/toy-compiler-sub000/pkg/quad"
	"github.com/anxi710/toy-compiler-sub000/pkg/reporter"
	"github.com/anxi710/toy-compiler-sub000/pkg/retpath"
	"github.com/anxi710/toy-compiler-sub000/pkg/semctx"
	"github.com/anxi710/toy-compiler-sub000/pkg/symbols"
	"github.com/anxi710/toy-compiler-sub000/pkg/types"
)

// Builder lowers a checked AST into quads, attaching them in place.
type Builder struct {
	Ctx *semctx.Context

	// locals accumulates every value name introduced while lowering the
	// function currently being built, reset at the start of each
	// BuildFunction and flushed into fn.Locals at its end.
	locals map[string]types.Type
}

// New creates a Builder with its own fresh label/temporary bookkeeping.
func New() *Builder {
	return &Builder{Ctx: semctx.New()}
}

// track records that name denotes a value of type t, for the code generator
// (C13) to later look up when it needs to size a stack slot.
func (b *Builder) track(name string, t types.Type) {
	b.locals[name] = t
}

// produceTemp allocates a fresh temporary and records its type alongside it;
// every ProduceTemp call in this file goes through here instead, so no
// temporary can be forgotten from fn.Locals.
func (b *Builder) produceTemp(pos symbols.Position, t types.Type) *symbols.Value {
	temp := b.Ctx.ProduceTemp(pos, t)
	b.track(temp.Name, t)
	return temp
}

func toSymPos(p ast.Position) symbols.Position {
	return symbols.Position{Line: p.Line, Col: p.Col}
}

// BuildProgram lowers every function that was successfully checked (fn.Symbol
// is nil for a function that collided with an earlier declaration; it was
// already reported and carries no body to lower).
func (b *Builder) BuildProgram(prog *ast.Program) {
	for _, fn := range prog.Functions {
		b.BuildFunction(fn)
	}
}

// BuildFunction lowers one function body into fn.Quads. Per spec.md §4.6: a
// FUNC header, the body's quads, then a trailing return synthesized if the
// body doesn't guarantee one — a bare RETURN - for a Unit-returning function,
// or the body's trailing value promoted to RETURN <symbol> otherwise.
func (b *Builder) BuildFunction(fn *ast.Function) {
	if fn.Symbol == nil {
		return
	}
	b.Ctx.EnterFunction(fn.Symbol)
	b.locals = make(map[string]types.Type)
	for _, p := range fn.Params {
		b.track(p.Name, p.Type)
	}

	quads := []quad.Quad{quad.NewFunc(fn.Name)}
	bodyQuads, bodyOperand, _ := b.buildBody(fn.Body)
	quads = append(quads, bodyQuads...)

	switch {
	case fn.HasRet:
		// every path already ends in an explicit return; nothing to add.
	case types.Equal(fn.Return, types.UnitT):
		if len(quads) == 0 || quads[len(quads)-1].Op != quad.RETURN {
			quads = append(quads, quad.NewReturn(quad.Absent{}, fn.Name))
		}
	default:
		quads = append(quads, quad.NewReturn(bodyOperand, fn.Name))
	}

	fn.Quads = quads
	fn.Locals = b.locals
	b.Ctx.ExitFunction()
}

func (b *Builder) buildStmts(stmts []ast.Stmt) []quad.Quad {
	var quads []quad.Quad
	for _, s := range stmts {
		quads = append(quads, b.buildStmt(s)...)
	}
	return quads
}

func (b *Builder) buildStmt(s ast.Stmt) []quad.Quad {
	switch st := s.(type) {
	case *ast.LetStmt:
		return b.buildLet(st)
	case *ast.ExprStmt:
		b.buildExpr(st.X)
		return st.X.Attributes().Quads
	default:
		reporter.Fatal("irbuild: UNREACHABLE: unhandled statement node %T", s)
		return nil
	}
}

func (b *Builder) buildLet(st *ast.LetStmt) []quad.Quad {
	b.track(st.Symbol.Name, st.Symbol.Type)
	valOperand := b.buildExpr(st.Value)
	quads := append([]quad.Quad{}, st.Value.Attributes().Quads...)
	quads = append(quads, quad.NewAssign(valOperand, quad.Sym(st.Symbol.Name)))
	return quads
}

// buildBody lowers a block's statements without pushing a label-scoped
// frame of its own; used for function bodies and loop/if/while branch
// bodies, which are already nested inside their construct's own frame.
func (b *Builder) buildBody(block *ast.StmtBlockExpr) (quads []quad.Quad, trailing quad.Operand, hasRet bool) {
	quads = b.buildStmts(block.Stmts)
	block.Quads = quads
	trailing = trailingOperand(block)
	block.Operand = trailing
	hasRet, _ = retpath.AnalyzeBlock(block)
	return quads, trailing, hasRet
}

func trailingOperand(block *ast.StmtBlockExpr) quad.Operand {
	if n := len(block.Stmts); n > 0 {
		if es, ok := block.Stmts[n-1].(*ast.ExprStmt); ok && !es.HasSemi {
			return es.X.Attributes().Operand
		}
	}
	return quad.Absent{}
}

// buildExpr lowers e, attaches its quads and resulting operand to e's own
// Attrs, and returns that operand for the caller's convenience.
func (b *Builder) buildExpr(e ast.Expr) quad.Operand {
	switch ex := e.(type) {
	case *ast.Number:
		return leaf(ex, quad.Sym(ex.Symbol.Name))
	case *ast.Bool:
		return leaf(ex, quad.Sym(ex.Symbol.Name))
	case *ast.Variable:
		return leaf(ex, quad.Sym(ex.Symbol.Name))
	case *ast.ArrAcc:
		return b.buildArrAcc(ex)
	case *ast.TupAcc:
		return b.buildTupAcc(ex)
	case *ast.AssignExpr:
		return b.buildAssign(ex)
	case *ast.CmpExpr:
		return b.buildCmp(ex)
	case *ast.AriExpr:
		return b.buildAri(ex)
	case *ast.ArrElems:
		return b.buildArrElems(ex)
	case *ast.TupElems:
		return b.buildTupElems(ex)
	case *ast.BracketExpr:
		return b.buildBracket(ex)
	case *ast.CallExpr:
		return b.buildCall(ex)
	case *ast.IfExpr:
		return b.buildIfExpr(ex)
	case *ast.WhileLoopExpr:
		return b.buildWhile(ex)
	case *ast.ForLoopExpr:
		return b.buildFor(ex)
	case *ast.LoopExpr:
		return b.buildLoop(ex)
	case *ast.RetExpr:
		return b.buildRet(ex)
	case *ast.BreakExpr:
		return b.buildBreak(ex)
	case *ast.ContinueExpr:
		return b.buildContinue(ex)
	case *ast.StmtBlockExpr:
		return b.buildBlockAsExpr(ex)
	default:
		reporter.Fatal("irbuild: UNREACHABLE: unhandled expression node %T", e)
		return quad.Absent{}
	}
}

func leaf(e ast.Expr, operand quad.Operand) quad.Operand {
	attrs := e.Attributes()
	attrs.Quads = nil
	attrs.Operand = operand
	return operand
}

func (b *Builder) buildArrAcc(a *ast.ArrAcc) quad.Operand {
	baseOperand := b.buildExpr(a.Base)
	idxOperand := b.buildExpr(a.Idx)
	quads := append(append([]quad.Quad{}, a.Base.Attributes().Quads...), a.Idx.Attributes().Quads...)
	temp := b.produceTemp(toSymPos(a.Pos), a.Type)
	quads = append(quads, quad.NewIndex(baseOperand, idxOperand, quad.Sym(temp.Name)))
	a.Quads = quads
	a.Operand = quad.Sym(temp.Name)
	return a.Operand
}

func (b *Builder) buildTupAcc(a *ast.TupAcc) quad.Operand {
	baseOperand := b.buildExpr(a.Base)
	quads := append([]quad.Quad{}, a.Base.Attributes().Quads...)
	temp := b.produceTemp(toSymPos(a.Pos), a.Type)
	idx := quad.Sym(strconv.Itoa(int(a.Idx.Value)))
	quads = append(quads, quad.NewDot(baseOperand, idx, quad.Sym(temp.Name)))
	a.Quads = quads
	a.Operand = quad.Sym(temp.Name)
	return a.Operand
}

// buildAssign lowers an assignment. A bare variable's place is just its own
// symbol name. An array/tuple projection has no dedicated "store" opcode in
// the quad model (pkg/quad, C8), so its place is rendered as the textual
// operand "base[idx]" / "base.N", consistent with the dst of a plain ASSIGN.
func (b *Builder) buildAssign(ax *ast.AssignExpr) quad.Operand {
	var quads []quad.Quad
	var dst quad.Operand
	switch lv := ax.LVal.(type) {
	case *ast.Variable:
		dst = quad.Sym(lv.Symbol.Name)
	case *ast.ArrAcc:
		baseOperand := b.buildExpr(lv.Base)
		quads = append(quads, lv.Base.Attributes().Quads...)
		idxOperand := b.buildExpr(lv.Idx)
		quads = append(quads, lv.Idx.Attributes().Quads...)
		dst = quad.Sym(fmt.Sprintf("%s[%s]", baseOperand, idxOperand))
	case *ast.TupAcc:
		baseOperand := b.buildExpr(lv.Base)
		quads = append(quads, lv.Base.Attributes().Quads...)
		dst = quad.Sym(fmt.Sprintf("%s.%d", baseOperand, lv.Idx.Value))
	default:
		reporter.Fatal("irbuild: UNREACHABLE: assignment target of unexpected kind %T", ax.LVal)
	}
	rhsOperand := b.buildExpr(ax.RVal)
	quads = append(quads, ax.RVal.Attributes().Quads...)
	quads = append(quads, quad.NewAssign(rhsOperand, dst))
	ax.Quads = quads
	ax.Operand = quad.Absent{}
	return ax.Operand
}

func cmpQuadOp(op ast.CmpOp) quad.Op {
	switch op {
	case ast.CmpEq:
		return quad.EQ
	case ast.CmpNeq:
		return quad.NEQ
	case ast.CmpGeq:
		return quad.GEQ
	case ast.CmpGt:
		return quad.GT
	case ast.CmpLeq:
		return quad.LEQ
	case ast.CmpLt:
		return quad.LT
	default:
		reporter.Fatal("irbuild: UNREACHABLE: unknown comparison operator %v", op)
		return quad.EQ
	}
}

func ariQuadOp(op ast.AriOp) quad.Op {
	switch op {
	case ast.AriAdd:
		return quad.ADD
	case ast.AriSub:
		return quad.SUB
	case ast.AriMul:
		return quad.MUL
	case ast.AriDiv:
		return quad.DIV
	default:
		reporter.Fatal("irbuild: UNREACHABLE: unknown arithmetic operator %v", op)
		return quad.ADD
	}
}

func (b *Builder) buildCmp(cx *ast.CmpExpr) quad.Operand {
	lhsOperand := b.buildExpr(cx.Lhs)
	rhsOperand := b.buildExpr(cx.Rhs)
	quads := append(append([]quad.Quad{}, cx.Lhs.Attributes().Quads...), cx.Rhs.Attributes().Quads...)
	temp := b.produceTemp(toSymPos(cx.Pos), cx.Type)
	quads = append(quads, quad.NewBinary(cmpQuadOp(cx.Op), lhsOperand, rhsOperand, quad.Sym(temp.Name)))
	cx.Quads = quads
	cx.Operand = quad.Sym(temp.Name)
	return cx.Operand
}

func (b *Builder) buildAri(ax *ast.AriExpr) quad.Operand {
	lhsOperand := b.buildExpr(ax.Lhs)
	rhsOperand := b.buildExpr(ax.Rhs)
	quads := append(append([]quad.Quad{}, ax.Lhs.Attributes().Quads...), ax.Rhs.Attributes().Quads...)
	temp := b.produceTemp(toSymPos(ax.Pos), ax.Type)
	quads = append(quads, quad.NewBinary(ariQuadOp(ax.Op), lhsOperand, rhsOperand, quad.Sym(temp.Name)))
	ax.Quads = quads
	ax.Operand = quad.Sym(temp.Name)
	return ax.Operand
}

func (b *Builder) buildArrElems(ae *ast.ArrElems) quad.Operand {
	var quads []quad.Quad
	operands := make([]quad.Operand, len(ae.Elems))
	for i, el := range ae.Elems {
		operands[i] = b.buildExpr(el)
		quads = append(quads, el.Attributes().Quads...)
	}
	temp := b.produceTemp(toSymPos(ae.Pos), ae.Type)
	quads = append(quads, quad.NewMakeArr(operands, quad.Sym(temp.Name)))
	ae.Quads = quads
	ae.Operand = quad.Sym(temp.Name)
	return ae.Operand
}

func (b *Builder) buildTupElems(te *ast.TupElems) quad.Operand {
	var quads []quad.Quad
	operands := make([]quad.Operand, len(te.Elems))
	for i, el := range te.Elems {
		operands[i] = b.buildExpr(el)
		quads = append(quads, el.Attributes().Quads...)
	}
	temp := b.produceTemp(toSymPos(te.Pos), te.Type)
	quads = append(quads, quad.NewMakeTup(operands, quad.Sym(temp.Name)))
	te.Quads = quads
	te.Operand = quad.Sym(temp.Name)
	return te.Operand
}

func (b *Builder) buildBracket(bx *ast.BracketExpr) quad.Operand {
	if bx.Inner == nil {
		bx.Quads = nil
		bx.Operand = quad.Absent{}
		return bx.Operand
	}
	inner := b.buildExpr(bx.Inner)
	bx.Quads = bx.Inner.Attributes().Quads
	bx.Operand = inner
	return inner
}

func (b *Builder) buildCall(cx *ast.CallExpr) quad.Operand {
	var quads []quad.Quad
	args := make([]quad.Operand, len(cx.Argv))
	for i, a := range cx.Argv {
		args[i] = b.buildExpr(a)
		quads = append(quads, a.Attributes().Quads...)
	}
	temp := b.produceTemp(toSymPos(cx.Pos), cx.Type)
	quads = append(quads, quad.NewCall(cx.Callee, args, quad.Sym(temp.Name)))
	cx.Quads = quads
	cx.Operand = quad.Sym(temp.Name)
	return cx.Operand
}

// buildIfExpr implements spec.md §4.6's "if with value" lowering literally:
// each conditional branch (the primary if, and each else-if) is bracketed by
// its own LABEL start/end pair with a BEQZ check at its head; a branch that
// doesn't already return assigns its value into the if's result temporary
// and jumps to a single final label, qualified "<func>_<if_scope>_final". A
// terminal unconditional else, having no condition to check, is emitted
// inline after the last conditional branch's end label.
func (b *Builder) buildIfExpr(ix *ast.IfExpr) quad.Operand {
	ifScopeName := b.Ctx.NextBlockName()
	ifFrame := b.Ctx.EnterBlock(semctx.FrameIf, ifScopeName, true)
	finalLabel := ifFrame.LabelBase + "_final"

	yieldsValue := !types.Equal(ix.Type, types.UnitT)
	var resultSym *symbols.Value
	if yieldsValue {
		resultSym = b.produceTemp(toSymPos(ix.Pos), ix.Type)
	}

	type clause struct {
		cond ast.Expr
		body *ast.StmtBlockExpr
	}
	clauses := []clause{{ix.Cond, ix.Body}}
	for _, cl := range ix.Elses {
		clauses = append(clauses, clause{cl.Cond, cl.Body})
	}

	emitTail := func(quads []quad.Quad, bodyOperand quad.Operand, bodyHasRet bool) []quad.Quad {
		if bodyHasRet {
			return quads
		}
		if yieldsValue {
			quads = append(quads, quad.NewAssign(bodyOperand, quad.Sym(resultSym.Name)))
		}
		return append(quads, quad.NewGoto(finalLabel))
	}

	var quads []quad.Quad
	for _, cl := range clauses {
		branchName := b.Ctx.NextBlockName()
		branchFrame := b.Ctx.EnterBlock(semctx.FrameIf, branchName, true)
		startLabel := branchFrame.LabelBase + "_start"
		endLabel := branchFrame.LabelBase + "_end"

		quads = append(quads, quad.NewLabel(startLabel))
		condOperand := b.buildExpr(cl.cond)
		quads = append(quads, cl.cond.Attributes().Quads...)
		quads = append(quads, quad.NewBeqz(condOperand, endLabel))
		bodyQuads, bodyOperand, bodyHasRet := b.buildBody(cl.body)
		quads = append(quads, bodyQuads...)
		quads = emitTail(quads, bodyOperand, bodyHasRet)
		quads = append(quads, quad.NewLabel(endLabel))

		b.Ctx.ExitBlock(semctx.FrameIf)
	}
	if ix.Else != nil {
		bodyQuads, bodyOperand, bodyHasRet := b.buildBody(ix.Else)
		quads = append(quads, bodyQuads...)
		quads = emitTail(quads, bodyOperand, bodyHasRet)
	}
	quads = append(quads, quad.NewLabel(finalLabel))

	b.Ctx.ExitBlock(semctx.FrameIf)

	ix.Quads = quads
	if yieldsValue {
		ix.Operand = quad.Sym(resultSym.Name)
	} else {
		ix.Operand = quad.Absent{}
	}
	return ix.Operand
}

// buildWhile implements `LABEL start; cond; BEQZ cond, end; body; GOTO start;
// LABEL end` (spec.md §4.6).
func (b *Builder) buildWhile(wx *ast.WhileLoopExpr) quad.Operand {
	name := b.Ctx.NextBlockName()
	frame := b.Ctx.EnterBlock(semctx.FrameWhile, name, true)
	startLabel := frame.LabelBase + "_start"
	endLabel := frame.LabelBase + "_end"

	var quads []quad.Quad
	quads = append(quads, quad.NewLabel(startLabel))
	condOperand := b.buildExpr(wx.Cond)
	quads = append(quads, wx.Cond.Attributes().Quads...)
	quads = append(quads, quad.NewBeqz(condOperand, endLabel))
	bodyQuads, _, _ := b.buildBody(wx.Body)
	quads = append(quads, bodyQuads...)
	quads = append(quads, quad.NewGoto(startLabel))
	quads = append(quads, quad.NewLabel(endLabel))

	b.Ctx.ExitBlock(semctx.FrameWhile)
	wx.Quads = quads
	wx.Operand = quad.Absent{}
	return wx.Operand
}

// buildLoop implements `LABEL start; body; GOTO start; LABEL end`. A `break
// <v>` inside the body assigns v into the frame's YieldSym (set up here when
// the checker found the loop has a valued break) before jumping to end; a
// bare `break` just jumps. `continue` jumps to start.
func (b *Builder) buildLoop(lx *ast.LoopExpr) quad.Operand {
	name := b.Ctx.NextBlockName()
	frame := b.Ctx.EnterBlock(semctx.FrameLoop, name, true)
	startLabel := frame.LabelBase + "_start"
	endLabel := frame.LabelBase + "_end"

	yieldsValue := lx.HasBreak && !types.Equal(lx.BreakType, types.UnitT)
	if yieldsValue {
		frame.YieldSym = b.produceTemp(toSymPos(lx.Pos), lx.BreakType)
	}

	var quads []quad.Quad
	quads = append(quads, quad.NewLabel(startLabel))
	bodyQuads, _, _ := b.buildBody(lx.Body)
	quads = append(quads, bodyQuads...)
	quads = append(quads, quad.NewGoto(startLabel))
	quads = append(quads, quad.NewLabel(endLabel))

	b.Ctx.ExitBlock(semctx.FrameLoop)
	lx.Quads = quads
	if yieldsValue {
		lx.Operand = quad.Sym(frame.YieldSym.Name)
	} else {
		lx.Operand = quad.Absent{}
	}
	return lx.Operand
}

func (b *Builder) buildFor(fx *ast.ForLoopExpr) quad.Operand {
	switch src := fx.Source.(type) {
	case *ast.RangeExpr:
		return b.buildForRange(fx, src)
	case *ast.IterableVal:
		return b.buildForIterable(fx, src)
	default:
		reporter.Fatal("irbuild: UNREACHABLE: for-loop source of unexpected kind %T", src)
		return quad.Absent{}
	}
}

// buildForRange implements `for i in a..b`: `SUB a, 1 -> i; LABEL start;
// ADD i, 1 -> t; ASSIGN t -> i; BGE i, b, end; body; GOTO start; LABEL end`
// (spec.md §4.6). i is pre-decremented so the first loop-top increment
// brings it back to a.
func (b *Builder) buildForRange(fx *ast.ForLoopExpr, rng *ast.RangeExpr) quad.Operand {
	startOperand := b.buildExpr(rng.Start)
	startQuads := rng.Start.Attributes().Quads
	endOperand := b.buildExpr(rng.End)
	endQuads := rng.End.Attributes().Quads

	name := b.Ctx.NextBlockName()
	frame := b.Ctx.EnterBlock(semctx.FrameFor, name, true)
	startLabel := frame.LabelBase + "_start"
	endLabel := frame.LabelBase + "_end"
	iterSym := fx.Symbol
	b.track(iterSym.Name, iterSym.Type)

	var quads []quad.Quad
	quads = append(quads, startQuads...)
	quads = append(quads, endQuads...)
	quads = append(quads, quad.NewBinary(quad.SUB, startOperand, quad.Sym("1"), quad.Sym(iterSym.Name)))
	quads = append(quads, quad.NewLabel(startLabel))
	step := b.produceTemp(toSymPos(fx.Pos), types.Int32T)
	quads = append(quads, quad.NewBinary(quad.ADD, quad.Sym(iterSym.Name), quad.Sym("1"), quad.Sym(step.Name)))
	quads = append(quads, quad.NewAssign(quad.Sym(step.Name), quad.Sym(iterSym.Name)))
	quads = append(quads, quad.NewBge(quad.Sym(iterSym.Name), endOperand, endLabel))
	bodyQuads, _, _ := b.buildBody(fx.Body)
	quads = append(quads, bodyQuads...)
	quads = append(quads, quad.NewGoto(startLabel))
	quads = append(quads, quad.NewLabel(endLabel))

	b.Ctx.ExitBlock(semctx.FrameFor)
	fx.Quads = quads
	fx.Operand = quad.Absent{}
	return fx.Operand
}

// buildForIterable implements `for i in iterable`: an index temporary
// initialized to -1, an ADD/ASSIGN increment at the loop top, a BGE against
// the array's length, and an INDEX load into the iterator (spec.md §4.6).
func (b *Builder) buildForIterable(fx *ast.ForLoopExpr, iv *ast.IterableVal) quad.Operand {
	iterableOperand := b.buildExpr(iv.Value)
	iterableQuads := iv.Value.Attributes().Quads

	name := b.Ctx.NextBlockName()
	frame := b.Ctx.EnterBlock(semctx.FrameFor, name, true)
	startLabel := frame.LabelBase + "_start"
	endLabel := frame.LabelBase + "_end"

	arrT, ok := iv.Value.Attributes().Type.(*types.Array)
	if !ok {
		reporter.Fatal("irbuild: UNREACHABLE: for-in iterable not an array at build time")
	}
	sizeOperand := quad.Sym(strconv.Itoa(arrT.Size))

	idx := b.produceTemp(toSymPos(fx.Pos), types.Int32T)
	iterSym := fx.Symbol
	b.track(iterSym.Name, iterSym.Type)

	var quads []quad.Quad
	quads = append(quads, iterableQuads...)
	quads = append(quads, quad.NewAssign(quad.Sym("-1"), quad.Sym(idx.Name)))
	quads = append(quads, quad.NewLabel(startLabel))
	step := b.produceTemp(toSymPos(fx.Pos), types.Int32T)
	quads = append(quads, quad.NewBinary(quad.ADD, quad.Sym(idx.Name), quad.Sym("1"), quad.Sym(step.Name)))
	quads = append(quads, quad.NewAssign(quad.Sym(step.Name), quad.Sym(idx.Name)))
	quads = append(quads, quad.NewBge(quad.Sym(idx.Name), sizeOperand, endLabel))
	quads = append(quads, quad.NewIndex(iterableOperand, quad.Sym(idx.Name), quad.Sym(iterSym.Name)))
	bodyQuads, _, _ := b.buildBody(fx.Body)
	quads = append(quads, bodyQuads...)
	quads = append(quads, quad.NewGoto(startLabel))
	quads = append(quads, quad.NewLabel(endLabel))

	b.Ctx.ExitBlock(semctx.FrameFor)
	fx.Quads = quads
	fx.Operand = quad.Absent{}
	return fx.Operand
}

func (b *Builder) buildRet(rx *ast.RetExpr) quad.Operand {
	var quads []quad.Quad
	var valOperand quad.Operand = quad.Absent{}
	if rx.Value != nil {
		valOperand = b.buildExpr(rx.Value)
		quads = append(quads, rx.Value.Attributes().Quads...)
	}
	quads = append(quads, quad.NewReturn(valOperand, b.Ctx.CurrentFunction().Name))
	rx.Quads = quads
	rx.Operand = quad.Absent{}
	return rx.Operand
}

func (b *Builder) buildBreak(bx *ast.BreakExpr) quad.Operand {
	loopFrame := b.Ctx.CurrentLoopFrame()
	endLabel := loopFrame.LabelBase + "_end"

	var quads []quad.Quad
	if bx.Value != nil {
		valOperand := b.buildExpr(bx.Value)
		quads = append(quads, bx.Value.Attributes().Quads...)
		if loopFrame.YieldSym != nil {
			quads = append(quads, quad.NewAssign(valOperand, quad.Sym(loopFrame.YieldSym.Name)))
		}
	}
	quads = append(quads, quad.NewGoto(endLabel))
	bx.Quads = quads
	bx.Operand = quad.Absent{}
	return bx.Operand
}

func (b *Builder) buildContinue(cx *ast.ContinueExpr) quad.Operand {
	loopFrame := b.Ctx.CurrentLoopFrame()
	startLabel := loopFrame.LabelBase + "_start"
	cx.Quads = []quad.Quad{quad.NewGoto(startLabel)}
	cx.Operand = quad.Absent{}
	return cx.Operand
}

// buildBlockAsExpr lowers a bare `{ ... }` used directly as an expression
// (as opposed to a function/if/while/for/loop body, which is lowered inline
// by its construct's own builder method).
func (b *Builder) buildBlockAsExpr(block *ast.StmtBlockExpr) quad.Operand {
	name := b.Ctx.NextBlockName()
	b.Ctx.EnterBlock(semctx.FrameBlockExpr, name, true)
	_, operand, _ := b.buildBody(block)
	b.Ctx.ExitBlock(semctx.FrameBlockExpr)
	return operand
}
