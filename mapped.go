package taichi

import (
	"sync/atomic"

	"github.com/gogpu/taichi/capi"
)

// Mapped is a host view of a mapped memory allocation, typed as elements of
// T. The view is valid until Close, which unmaps the memory. A Mapped keeps
// its memory alive.
type Mapped[T Elem] struct {
	mem    *Memory
	raw    []byte
	data   []T
	closed atomic.Bool
}

// Map maps mem for host access. The allocation size must be a multiple of
// the size of T. At most one mapping of an allocation may be live.
func Map[T Elem](mem *Memory) (*Mapped[T], error) {
	if err := mem.check(); err != nil {
		return nil, err
	}
	if mem.Size()%sizeOf[T]() != 0 {
		return nil, newError(capi.ErrorInvalidArgument, "memory size %d is not a multiple of %s",
			mem.Size(), DataTypeOf[T]())
	}
	raw, err := mem.mapRaw()
	if err != nil {
		return nil, err
	}
	if !aligned[T](raw) {
		mem.unmapRaw()
		return nil, newError(capi.ErrorInvalidState, "mapped pointer is not aligned for %s", DataTypeOf[T]())
	}
	return &Mapped[T]{mem: mem.Clone(), raw: raw, data: viewAs[T](raw)}, nil
}

// WithMapped maps mem, calls fn with the view and unmaps on every exit path,
// including a panic in fn. fn must not retain the slice.
func WithMapped[T Elem](mem *Memory, fn func(data []T) error) error {
	v, err := Map[T](mem)
	if err != nil {
		return err
	}
	defer v.Close()
	return fn(v.Data())
}

// Data returns the mapped elements.
func (v *Mapped[T]) Data() []T { return v.data }

// Bytes returns the mapped bytes.
func (v *Mapped[T]) Bytes() []byte { return v.raw }

// Len returns the number of mapped elements.
func (v *Mapped[T]) Len() int { return len(v.data) }

// Close unmaps the memory. Further calls are no-ops.
func (v *Mapped[T]) Close() {
	if !v.closed.CompareAndSwap(false, true) {
		return
	}
	v.mem.unmapRaw()
	v.mem.Close()
	v.raw, v.data = nil, nil
}
