// Package regalloc implements the register allocator (C11): a fixed
// 27-register file with a symbol-pool-per-register model and a
// round-robin spill policy, as opposed to the graph-coloring allocators
// of larger backends.
package regalloc

import "fmt"

// Register names one of the 27 machine registers. Index order is stable:
// fifteen caller-saved (A0..A7, T0..T6) followed by twelve callee-saved
// (S0..S11), matching the ordering bit-shifted operations over pools rely on.
type Register int

const (
	A0 Register = iota
	A1
	A2
	A3
	A4
	A5
	A6
	A7
	T0
	T1
	T2
	T3
	T4
	T5
	T6
	S0
	S1
	S2
	S3
	S4
	S5
	S6
	S7
	S8
	S9
	S10
	S11
	NumRegisters
)

var registerNames = [NumRegisters]string{
	"a0", "a1", "a2", "a3", "a4", "a5", "a6", "a7",
	"t0", "t1", "t2", "t3", "t4", "t5", "t6",
	"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11",
}

func (r Register) String() string {
	if r < 0 || int(r) >= len(registerNames) {
		return "?"
	}
	return registerNames[r]
}

// calleeSaveStart is the first index in the callee-saved range (S0).
const calleeSaveStart = T6 + 1

// IsCalleeSaved reports whether r must be preserved across the function call.
func IsCalleeSaved(r Register) bool { return r >= calleeSaveStart }

// Value is one tracked entity: a named value with its current residency.
// The register slot lifecycle (spec.md §4.11) is: {free} (zero Value) →
// {in_register, clean, no_stack} (first Alloc) → {in_register, dirty,
// no_stack} (the owner writes it) → {stack, clean, no_register} (spilled on
// conflict; writeBack clears Dirty) → {in_register, clean, stack}
// (reloaded). Dirty implies InRegister.
type Value struct {
	Name       string
	Memory     int // size in bytes, from the value's type
	InRegister bool
	Reg        Register
	OnStack    bool
	Slot       int
	Dirty      bool
}

// StackAllocator is the slice of pkg/stackalloc.Allocator this package needs.
type StackAllocator interface {
	Spill(memory int) int
	OffsetFromSP(stackloc int) int
}

// Emitter is the minimal assembly-emission surface the allocator needs.
type Emitter interface {
	Emit(format string, args ...any)
}

// Allocator owns the 27-register file for one function.
type Allocator struct {
	em    Emitter
	stack StackAllocator

	pools      [NumRegisters][]*Value
	usedCallee map[Register]int // register -> its preamble save slot

	spillReg int // next candidate register for round-robin spill
}

// New returns an allocator with every register free.
func New(em Emitter, stack StackAllocator) *Allocator {
	return &Allocator{
		em:         em,
		stack:      stack,
		usedCallee: make(map[Register]int),
	}
}

// writeBack flushes v to its stack slot, allocating one if it has none yet.
func (a *Allocator) writeBack(v *Value) {
	if !v.OnStack {
		v.Slot = a.stack.Spill(v.Memory)
		v.OnStack = true
		a.em.Emit("sw %s, %d(sp)", v.Reg, a.stack.OffsetFromSP(v.Slot))
	} else if v.Dirty {
		a.em.Emit("sw %s, %d(sp)", v.Reg, a.stack.OffsetFromSP(v.Slot))
	}
	v.Dirty = false
	v.InRegister = false
}

// evict writes back every value in reg's pool and empties it.
func (a *Allocator) evict(reg Register) {
	for _, v := range a.pools[reg] {
		a.writeBack(v)
	}
	a.pools[reg] = nil
}

func (a *Allocator) attach(reg Register, v *Value) {
	a.pools[reg] = append(a.pools[reg], v)
	v.InRegister = true
	v.Reg = reg
}

// Alloc finds a register for v: the first register with an empty pool, or,
// failing that, the rotating spill candidate. A freshly used callee-saved
// register gets a one-time preamble store of its caller's value.
func (a *Allocator) Alloc(v *Value) Register {
	for r := Register(0); r < NumRegisters; r++ {
		if len(a.pools[r]) == 0 {
			if IsCalleeSaved(r) {
				if _, used := a.usedCallee[r]; !used {
					slot := a.stack.Spill(8)
					a.em.Emit("sd %s, %d(sp)", r, a.stack.OffsetFromSP(slot))
					a.usedCallee[r] = slot
				}
			}
			a.attach(r, v)
			return r
		}
	}

	reg := Register(a.spillReg)
	a.evict(reg)
	a.spillReg = (a.spillReg + 1) % int(NumRegisters)
	a.attach(reg, v)
	return reg
}

// Attach records that v now resides in reg without emitting any instruction,
// callee-save preamble included. Used by the memory allocator (C12) to bind
// a CALL's return value to A0, and to seat incoming formals in a0..a<n-1>
// at function entry.
func (a *Allocator) Attach(reg Register, v *Value) { a.attach(reg, v) }

// SpillExcept writes back every other value sharing v's register, leaving
// v as the pool's sole occupant. Used before a write invalidates sharers.
func (a *Allocator) SpillExcept(v *Value) {
	reg := v.Reg
	kept := a.pools[reg][:0]
	for _, other := range a.pools[reg] {
		if other == v {
			kept = append(kept, other)
			continue
		}
		a.writeBack(other)
	}
	a.pools[reg] = kept
}

// SpillCaller evicts every value from the caller-saved registers, as
// required before emitting a CALL.
func (a *Allocator) SpillCaller() {
	for r := Register(0); r < calleeSaveStart; r++ {
		a.evict(r)
	}
}

// RestoreUsedCallee emits the epilogue reload for every callee-saved
// register this function actually used, in register order.
func (a *Allocator) RestoreUsedCallee() {
	for r := calleeSaveStart; r < NumRegisters; r++ {
		if slot, used := a.usedCallee[r]; used {
			a.em.Emit("ld %s, %d(sp)", r, a.stack.OffsetFromSP(slot))
		}
	}
}

// Free drops v from its register's pool, writing it back first if dirty
// and already stack-resident.
func (a *Allocator) Free(v *Value) {
	if v.Dirty && v.OnStack {
		a.em.Emit("sw %s, %d(sp)", v.Reg, a.stack.OffsetFromSP(v.Slot))
		v.Dirty = false
	}
	pool := a.pools[v.Reg]
	for i, other := range pool {
		if other == v {
			a.pools[v.Reg] = append(pool[:i], pool[i+1:]...)
			break
		}
	}
	v.InRegister = false
}

// String renders the allocator's live pool occupancy, for debug traces.
func (a *Allocator) String() string {
	occupied := 0
	for _, pool := range a.pools {
		if len(pool) > 0 {
			occupied++
		}
	}
	return fmt.Sprintf("regalloc(occupied=%d/%d)", occupied, NumRegisters)
}
