// Package memalloc implements the memory allocator (C12): a facade that
// maps named values onto the register file (C11), backed by the stack
// allocator (C10) whenever a value must be spilled or reloaded.
package memalloc

import (
	"strconv"

	"github.com/anxi710/toy-compiler-sub000/pkg/regalloc"
)

// StackAllocator is the slice of pkg/stackalloc.Allocator this package needs.
type StackAllocator interface {
	OffsetFromSP(stackloc int) int
}

// Emitter is the minimal assembly-emission surface the allocator needs.
type Emitter interface {
	Emit(format string, args ...any)
}

// RegisterAllocator is the slice of pkg/regalloc.Allocator this package needs.
type RegisterAllocator interface {
	Alloc(v *regalloc.Value) regalloc.Register
	SpillExcept(v *regalloc.Value)
	Attach(reg regalloc.Register, v *regalloc.Value)
}

// Allocator is the facade the code generator (C13) drives per quad. It owns
// the local symbol map linking a function's value names to the register
// allocator's tracked entities.
type Allocator struct {
	em     Emitter
	stack  StackAllocator
	reg    RegisterAllocator
	values map[string]*regalloc.Value
}

// New returns an allocator with an empty local symbol map.
func New(em Emitter, stack StackAllocator, reg RegisterAllocator) *Allocator {
	return &Allocator{em: em, stack: stack, reg: reg, values: make(map[string]*regalloc.Value)}
}

// Reset clears the local symbol map, for use at each function boundary.
func (a *Allocator) Reset() {
	a.values = make(map[string]*regalloc.Value)
}

// IsConstant reports whether name is a literal's symbol text (an integer or
// "true"/"false"), per how pkg/semcheck names constant entities. Constants
// must never reach Alloc; callers inline their literal form instead.
func IsConstant(name string) bool {
	if name == "true" || name == "false" {
		return true
	}
	_, err := strconv.Atoi(name)
	return err == nil
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

// Alloc maps name onto a register. beAssigned signals that the caller is
// about to overwrite the value, which invalidates any sharers of its
// current register.
func (a *Allocator) Alloc(name string, memory int, beAssigned bool) regalloc.Register {
	v, tracked := a.values[name]
	if !tracked {
		v = &regalloc.Value{Name: name, Memory: memory}
		a.values[name] = v
		return a.reg.Alloc(v)
	}

	if v.InRegister {
		if beAssigned {
			a.reg.SpillExcept(v)
			if v.OnStack {
				v.Dirty = true
			}
		}
		return v.Reg
	}

	reg := a.reg.Alloc(v)
	a.em.Emit("lw %s, %d(sp)", reg, a.stack.OffsetFromSP(v.Slot))
	v.InRegister = true
	v.Dirty = false
	return reg
}

// ReuseReg declares that name now lives in reg without emitting a move,
// used after a CALL to bind its return value to A0.
func (a *Allocator) ReuseReg(reg regalloc.Register, name string) {
	v, tracked := a.values[name]
	if !tracked {
		v = &regalloc.Value{Name: name}
		a.values[name] = v
	}
	a.reg.Attach(reg, v)
}

// Param is one formal or actual argument: either a constant literal's name
// or the name of a value tracked in the local symbol map.
type Param struct {
	Name string
}

// PrepareParams emits the argument-loading sequence ahead of a CALL. The
// caller must have already evicted the caller-saved registers (spill_caller)
// so that every non-constant argument is guaranteed to carry a stack slot.
// The language caps parameters at 8.
func (a *Allocator) PrepareParams(params []Param) {
	for i, p := range params {
		if IsConstant(p.Name) {
			a.em.Emit("li a%d, %s", i, constLiteral(p.Name))
			continue
		}
		v := a.values[p.Name]
		a.em.Emit("lw a%d, %d(sp)", i, a.stack.OffsetFromSP(v.Slot))
	}
}

// Formal is one function parameter at entry: its name and the size in
// bytes of its type, used to size a future spill.
type Formal struct {
	Name   string
	Memory int
}

// AllocArgv records that formals already sit in a0..a<n-1> by calling
// convention, without emitting any move.
func (a *Allocator) AllocArgv(formals []Formal) {
	for i, f := range formals {
		v := &regalloc.Value{Name: f.Name, Memory: f.Memory}
		a.values[f.Name] = v
		a.reg.Attach(regalloc.Register(i), v)
	}
}
