// Package semctx implements the semantic context (C4), the runtime
// companion to pkg/symtab: it tracks the current function, a scope stack
// with frame kinds, a per-function temporary counter, loop/if context
// lookup, and type-inference helpers.
package semctx

import (
	"fmt"

	"github.com/anxi710/toy-compiler-sub000/pkg/symbols"
	"github.com/anxi710/toy-compiler-sub000/pkg/symtab"
	"github.com/anxi710/toy-compiler-sub000/pkg/types"
)

// FrameKind names the shape of one scope-stack frame.
type FrameKind int

const (
	FrameFunc FrameKind = iota
	FrameIf
	FrameElse
	FrameBlockExpr
	FrameLoop
	FrameWhile
	FrameFor
)

// Frame is one entry on the semantic scope stack. An If frame may hold the
// yielded-temporary so else branches assign into it; a Loop frame may hold
// the temporary yielded by `break <value>`.
type Frame struct {
	Kind      FrameKind
	ScopeName string // the unqualified name passed to symtab.EnterScope
	YieldSym  *symbols.Value
	LabelBase string // "<func>_<scope>" prefix used for jump-label synthesis
}

// Context wraps a symbol table with the running state of one semantic pass
// over one translation unit.
type Context struct {
	Table       *symtab.Table
	Types       *types.Registry
	frames      []Frame
	curFunc     *symbols.Function
	tempCounter int
	blockCount  int // per-function counter for anonymous L<N> scope names
}

// New creates a Context over a fresh symbol table and type registry.
func New() *Context {
	return &Context{Table: symtab.New(), Types: types.NewRegistry()}
}

// NewWithRegistry creates a Context over a fresh symbol table but a caller
// supplied type registry. cmd/rvcc uses this to share one registry between
// the parser (which interns annotation types) and the checker (which interns
// inferred array/tuple literal types), since types.Equal is pointer identity.
func NewWithRegistry(reg *types.Registry) *Context {
	return &Context{Table: symtab.New(), Types: reg}
}

// EnterFunction records a freshly allocated function entity, enters its
// scope, resets the temp counter, and pushes a Func frame.
func (c *Context) EnterFunction(fn *symbols.Function) {
	c.curFunc = fn
	c.tempCounter = 0
	c.blockCount = 0
	c.Table.EnterScope(fn.Name, true)
	c.frames = append(c.frames, Frame{Kind: FrameFunc, ScopeName: fn.Name, LabelBase: fn.Name})
}

// ExitFunction pops the function's frame and scope.
func (c *Context) ExitFunction() {
	c.popFrame(FrameFunc)
	c.Table.ExitScope()
	c.curFunc = nil
}

// CurrentFunction returns the function currently being checked.
func (c *Context) CurrentFunction() *symbols.Function { return c.curFunc }

// NextBlockName allocates the next anonymous block scope name L1, L2, ...
// The counter resets on EnterFunction.
func (c *Context) NextBlockName() string {
	c.blockCount++
	return fmt.Sprintf("L%d", c.blockCount)
}

// EnterBlock pushes a scope frame of the given kind, entering (or
// re-entering) a child scope under name.
func (c *Context) EnterBlock(kind FrameKind, name string, create bool) *Frame {
	c.Table.EnterScope(name, create)
	parent := &c.frames[len(c.frames)-1]
	f := Frame{Kind: kind, ScopeName: name, LabelBase: parent.LabelBase + "_" + name}
	c.frames = append(c.frames, f)
	return &c.frames[len(c.frames)-1]
}

// ExitBlock pops the innermost frame, asserting it has the expected kind.
// A mismatch is an internal invariant violation (spec.md §4.11: "a pop of
// the wrong kind is a compiler bug").
func (c *Context) ExitBlock(kind FrameKind) {
	c.popFrame(kind)
	c.Table.ExitScope()
}

func (c *Context) popFrame(kind FrameKind) {
	if len(c.frames) == 0 {
		panic("semctx: exit frame with empty stack")
	}
	top := c.frames[len(c.frames)-1]
	if top.Kind != kind {
		panic("semctx: UNREACHABLE: pop of the wrong frame kind")
	}
	c.frames = c.frames[:len(c.frames)-1]
}

// CurrentFrame returns the innermost scope-stack frame.
func (c *Context) CurrentFrame() *Frame {
	if len(c.frames) == 0 {
		return nil
	}
	return &c.frames[len(c.frames)-1]
}

// InLoopContext reports whether some frame in the scope stack has kind
// Loop, While, or For.
func (c *Context) InLoopContext() bool {
	return c.CurrentLoopFrame() != nil
}

// CurrentLoopFrame returns the innermost Loop/While/For frame, or nil.
func (c *Context) CurrentLoopFrame() *Frame {
	for i := len(c.frames) - 1; i >= 0; i-- {
		switch c.frames[i].Kind {
		case FrameLoop, FrameWhile, FrameFor:
			return &c.frames[i]
		}
	}
	return nil
}

// CurrentIfFrame returns the innermost If frame, or nil.
func (c *Context) CurrentIfFrame() *Frame {
	for i := len(c.frames) - 1; i >= 0; i-- {
		if c.frames[i].Kind == FrameIf {
			return &c.frames[i]
		}
	}
	return nil
}

// ProduceTemp creates a temporary named "%<counter>" and increments the
// counter.
func (c *Context) ProduceTemp(pos symbols.Position, t types.Type) *symbols.Value {
	name := fmt.Sprintf("%%%d", c.tempCounter)
	c.tempCounter++
	return symbols.NewTemporary(name, t, pos)
}

// CheckUnresolvedTypes asks whether any value in the given scope locals map
// still has Unknown type; callers report one type-inference-failure error
// per such variable, on scope exit.
func CheckUnresolvedTypes(locals map[string]*symbols.Value) []*symbols.Value {
	var unresolved []*symbols.Value
	for _, v := range locals {
		if v.Type == types.Unknown {
			unresolved = append(unresolved, v)
		}
	}
	return unresolved
}
