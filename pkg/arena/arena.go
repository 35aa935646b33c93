// Package arena provides a generational slot arena.
//
// Values are addressed by a Handle made of a slot index and a generation.
// Removing a value bumps the slot generation, so handles issued before the
// removal stop resolving even after the slot is reused.
package arena

import (
	"fmt"
	"iter"
	"math"
)

// Handle identifies a value stored in an Arena.
type Handle struct {
	index      uint32
	generation uint32
}

// Invalid is a handle that never resolves.
var Invalid = Handle{index: math.MaxUint32, generation: math.MaxUint32}

// NewHandle builds a handle from its raw parts.
func NewHandle(index, generation uint32) Handle {
	return Handle{index: index, generation: generation}
}

// Unpack is the inverse of Handle.Pack.
func Unpack(packed uint64) Handle {
	return Handle{index: uint32(packed & 0xFFFFFFFF), generation: uint32(packed >> 32)}
}

func (h Handle) Index() uint32      { return h.index }
func (h Handle) Generation() uint32 { return h.generation }

// Pack encodes the generation in the upper 32 bits and the index in the lower 32 bits.
func (h Handle) Pack() uint64 {
	return uint64(h.generation)<<32 | uint64(h.index)
}

func (h Handle) IsInvalid() bool { return h == Invalid }

func (h Handle) String() string {
	if h.IsInvalid() {
		return "Handle(invalid)"
	}
	return fmt.Sprintf("Handle(%dv%d)", h.index, h.generation)
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// Arena stores values in slots and hands out generation-checked handles.
// Freed slots are reused last-in first-out, which keeps handle allocation a
// pure function of the insert/remove history.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// New creates an empty arena with room for capacity values.
func New[T any](capacity int) *Arena[T] {
	return &Arena[T]{
		slots: make([]slot[T], 0, capacity),
	}
}

// Insert stores v and returns its handle.
func (a *Arena[T]) Insert(v T) Handle {
	a.count++

	if n := len(a.free); n > 0 {
		index := a.free[n-1]
		a.free = a.free[:n-1]

		s := &a.slots[index]
		s.value = v
		s.occupied = true
		return Handle{index: index, generation: s.generation}
	}

	index := uint32(len(a.slots))
	a.slots = append(a.slots, slot[T]{value: v, occupied: true})
	return Handle{index: index}
}

// Remove deletes the value behind h. It reports false when h is stale or was never issued.
func (a *Arena[T]) Remove(h Handle) (T, bool) {
	var zero T

	s := a.slot(h)
	if s == nil {
		return zero, false
	}

	value := s.value
	s.value = zero
	s.occupied = false
	s.generation++
	a.free = append(a.free, h.index)
	a.count--

	return value, true
}

// Get returns a copy of the value behind h.
func (a *Arena[T]) Get(h Handle) (T, bool) {
	if s := a.slot(h); s != nil {
		return s.value, true
	}
	var zero T
	return zero, false
}

// GetMut returns a pointer to the value behind h, or nil for stale handles.
// The pointer is only valid until the next Insert.
func (a *Arena[T]) GetMut(h Handle) *T {
	if s := a.slot(h); s != nil {
		return &s.value
	}
	return nil
}

func (a *Arena[T]) Contains(h Handle) bool {
	return a.slot(h) != nil
}

func (a *Arena[T]) Len() int {
	return a.count
}

// All iterates over live values in slot order.
func (a *Arena[T]) All() iter.Seq2[Handle, *T] {
	return func(yield func(Handle, *T) bool) {
		for i := range a.slots {
			s := &a.slots[i]
			if !s.occupied {
				continue
			}
			if !yield(Handle{index: uint32(i), generation: s.generation}, &s.value) {
				return
			}
		}
	}
}

// Handles returns the live handles in slot order.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, 0, a.count)
	for h := range a.All() {
		out = append(out, h)
	}
	return out
}

// Clone returns an independent copy of the arena. cloneValue deep-copies a
// value; nil means values are copied as-is.
func (a *Arena[T]) Clone(cloneValue func(T) T) *Arena[T] {
	out := &Arena[T]{
		slots: make([]slot[T], len(a.slots), cap(a.slots)),
		free:  make([]uint32, len(a.free)),
		count: a.count,
	}
	copy(out.slots, a.slots)
	copy(out.free, a.free)

	if cloneValue != nil {
		for i := range out.slots {
			if out.slots[i].occupied {
				out.slots[i].value = cloneValue(out.slots[i].value)
			}
		}
	}
	return out
}

func (a *Arena[T]) slot(h Handle) *slot[T] {
	if int64(h.index) >= int64(len(a.slots)) {
		return nil
	}
	s := &a.slots[h.index]
	if !s.occupied || s.generation != h.generation {
		return nil
	}
	return s
}
