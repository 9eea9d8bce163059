// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package taichi

import (
	"math"
	"math/bits"
	"slices"

	"github.com/gogpu/taichi/capi"
)

// NdArray is a memory allocation interpreted as a dense array of T with a
// shape and a per-element shape (for vector and matrix elements). Its byte
// size is sizeof(T) * prod(shape) * prod(elemShape).
type NdArray[T Elem] struct {
	mem       *Memory
	shape     []uint32
	elemShape []uint32
}

// NdArrayBuilder describes an ND-array allocation. Defaults: rank 0, scalar
// elements, storage usage, no host access.
type NdArrayBuilder[T Elem] struct {
	mem       *MemoryBuilder
	shape     []uint32
	elemShape []uint32
}

// NewNdArray starts describing an ND-array of T on rt.
func NewNdArray[T Elem](rt *Runtime) *NdArrayBuilder[T] {
	return &NdArrayBuilder[T]{mem: rt.AllocateMemory()}
}

// Shape sets the array dimensions.
func (b *NdArrayBuilder[T]) Shape(dims ...uint32) *NdArrayBuilder[T] {
	b.shape = slices.Clone(dims)
	return b
}

// ElemShape sets the per-element dimensions.
func (b *NdArrayBuilder[T]) ElemShape(dims ...uint32) *NdArrayBuilder[T] {
	b.elemShape = slices.Clone(dims)
	return b
}

// HostRead allows the host to read the array.
func (b *NdArrayBuilder[T]) HostRead(v bool) *NdArrayBuilder[T] {
	b.mem.HostRead(v)
	return b
}

// HostWrite allows the host to write the array.
func (b *NdArrayBuilder[T]) HostWrite(v bool) *NdArrayBuilder[T] {
	b.mem.HostWrite(v)
	return b
}

// HostAccess sets both host read and host write.
func (b *NdArrayBuilder[T]) HostAccess(v bool) *NdArrayBuilder[T] {
	b.mem.HostAccess(v)
	return b
}

// Usage replaces the memory usage flags.
func (b *NdArrayBuilder[T]) Usage(u capi.MemoryUsage) *NdArrayBuilder[T] {
	b.mem.Usage(u)
	return b
}

// Build allocates the backing memory.
func (b *NdArrayBuilder[T]) Build() (*NdArray[T], error) {
	if len(b.shape) > capi.MaxNdShapeDims {
		return nil, newError(capi.ErrorInvalidArgument, "shape has %d dimensions, at most %d allowed",
			len(b.shape), capi.MaxNdShapeDims)
	}
	if len(b.elemShape) > capi.MaxNdShapeDims {
		return nil, newError(capi.ErrorInvalidArgument, "element shape has %d dimensions, at most %d allowed",
			len(b.elemShape), capi.MaxNdShapeDims)
	}
	size, ok := ndArraySize(sizeOf[T](), b.shape, b.elemShape)
	if !ok {
		return nil, newError(capi.ErrorArgumentOutOfRange, "ndarray of shape %v x %v overflows", b.shape, b.elemShape)
	}
	mem, err := b.mem.Size(size).Build()
	if err != nil {
		return nil, err
	}
	return &NdArray[T]{mem: mem, shape: slices.Clone(b.shape), elemShape: slices.Clone(b.elemShape)}, nil
}

// ndArraySize multiplies the element size by every dimension, reporting
// overflow.
func ndArraySize(elem uint64, shape, elemShape []uint32) (uint64, bool) {
	size := elem
	for _, dims := range [][]uint32{shape, elemShape} {
		for _, d := range dims {
			hi, lo := bits.Mul64(size, uint64(d))
			if hi != 0 || lo > math.MaxInt64 {
				return 0, false
			}
			size = lo
		}
	}
	return size, true
}

// Clone returns another handle sharing the backing memory.
func (a *NdArray[T]) Clone() *NdArray[T] {
	return &NdArray[T]{mem: a.mem.Clone(), shape: a.shape, elemShape: a.elemShape}
}

// Close releases this handle's reference to the backing memory.
func (a *NdArray[T]) Close() { a.mem.Close() }

// Memory returns the backing memory. The handle is owned by the array. A
// nil array has no memory.
func (a *NdArray[T]) Memory() *Memory {
	if a == nil {
		return nil
	}
	return a.mem
}

// Shape returns the array dimensions.
func (a *NdArray[T]) Shape() []uint32 { return slices.Clone(a.shape) }

// ElemShape returns the per-element dimensions.
func (a *NdArray[T]) ElemShape() []uint32 { return slices.Clone(a.elemShape) }

// ElemType returns the runtime tag of T.
func (a *NdArray[T]) ElemType() capi.DataType { return DataTypeOf[T]() }

// ElemCount returns the number of elements, the product of the shape.
func (a *NdArray[T]) ElemCount() int { return product(a.shape) }

// ScalarCount returns the number of scalars of type T.
func (a *NdArray[T]) ScalarCount() int { return product(a.shape) * product(a.elemShape) }

func product(dims []uint32) int {
	n := 1
	for _, d := range dims {
		n *= int(d)
	}
	return n
}

// Read copies the array into dst, which must hold ScalarCount values.
func (a *NdArray[T]) Read(dst []T) error { return Read(a.mem, dst) }

// Write copies src, which must hold ScalarCount values, into the array.
func (a *NdArray[T]) Write(src []T) error { return Write(a.mem, src) }

// ToSlice returns a copy of the array contents.
func (a *NdArray[T]) ToSlice() ([]T, error) {
	out := make([]T, a.ScalarCount())
	if err := a.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Map maps the array for host access.
func (a *NdArray[T]) Map() (*Mapped[T], error) { return Map[T](a.mem) }

// Descriptor returns the array in kernel argument form.
func (a *NdArray[T]) Descriptor() capi.NdArray {
	return capi.NdArray{
		Memory:    a.mem.Handle(),
		Shape:     ndShape(a.shape),
		ElemShape: ndShape(a.elemShape),
		ElemType:  DataTypeOf[T](),
	}
}

func ndShape(dims []uint32) capi.NdShape {
	var s capi.NdShape
	s.DimCount = uint32(copy(s.Dims[:], dims))
	return s
}
