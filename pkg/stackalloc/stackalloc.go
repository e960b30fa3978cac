// Package stackalloc implements the stack allocator (C10): on-demand
// activation-frame growth for a single function, 16-byte-block aligned,
// with mark/release support for scope-local deallocation.
package stackalloc

import "fmt"

const blockSize = 16

// Emitter is the minimal assembly-emission surface the allocator needs.
// pkg/codegen supplies the real one; tests supply a recording stub.
type Emitter interface {
	Emit(format string, args ...any)
}

// Allocator owns one function's activation frame: how much of it is in use
// (frameUsage) and how much physical space has been reserved for it so far
// (frameSize, always a multiple of 16).
type Allocator struct {
	em         Emitter
	frameUsage int
	frameSize  int
	retAddrOff int
}

// New returns an allocator with an empty frame. Call EnterFunction before
// allocating anything.
func New(em Emitter) *Allocator {
	return &Allocator{em: em}
}

// FrameSize reports the physical frame capacity, always a multiple of 16.
func (a *Allocator) FrameSize() int { return a.frameSize }

func alignUp(n, align int) int {
	if align <= 0 {
		return n
	}
	return ((n + align - 1) / align) * align
}

// grow ensures frameSize can hold `usage` bytes, expanding in 16-byte
// blocks and emitting `addi sp, sp, -delta` for the added space.
func (a *Allocator) grow(usage int) {
	if usage <= a.frameSize {
		return
	}
	needed := alignUp(usage, blockSize)
	delta := needed - a.frameSize
	if delta > 0 {
		a.em.Emit("addi sp, sp, -%d", delta)
		a.frameSize = needed
	}
}

// Alloc rounds frameUsage up to align, grows the frame if needed, and
// returns the resulting offset from the frame base.
func (a *Allocator) Alloc(size, align int) int {
	offset := alignUp(a.frameUsage, align)
	a.frameUsage = offset + size
	a.grow(a.frameUsage)
	return offset
}

// Mark snapshots frameUsage for a later FreeTo.
func (a *Allocator) Mark() int { return a.frameUsage }

// FreeTo drops frameUsage back to a prior Mark, shrinking the physical
// frame if the freed slack is at least one 16-byte block.
func (a *Allocator) FreeTo(mark int) {
	a.frameUsage = mark
	shrunk := alignUp(a.frameUsage, blockSize)
	if a.frameSize-shrunk >= blockSize {
		a.frameSize = shrunk
	}
}

// EnterFunction resets the frame and allocates the 4-byte slot for the
// saved return address, emitting its store.
func (a *Allocator) EnterFunction() {
	a.frameUsage = 0
	a.frameSize = 0
	a.retAddrOff = a.Alloc(4, 4)
	a.em.Emit("sw ra, %d(sp)", a.OffsetFromSP(a.retAddrOff))
}

// ReturnFromFunction restores ra and releases the whole frame.
func (a *Allocator) ReturnFromFunction() {
	a.em.Emit("lw ra, %d(sp)", a.OffsetFromSP(a.retAddrOff))
	if a.frameSize > 0 {
		a.em.Emit("addi sp, sp, %d", a.frameSize)
	}
}

// Spill allocates a fresh stack slot sized to hold value.type.memory bytes.
// Per the specification's boundary behavior, a slot is never reused across
// spills of the same value; each call grows the frame further.
func (a *Allocator) Spill(memory int) int {
	return a.Alloc(memory, memory)
}

// OffsetFromSP converts a frame-base-relative offset into one relative to
// the current sp, since sp sits frameSize bytes below the frame base.
func (a *Allocator) OffsetFromSP(stackloc int) int {
	return a.frameSize - stackloc
}

// String renders the allocator's current frame state, useful for debug
// traces during code generation.
func (a *Allocator) String() string {
	return fmt.Sprintf("frame(usage=%d, size=%d)", a.frameUsage, a.frameSize)
}
