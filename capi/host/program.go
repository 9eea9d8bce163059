// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package host

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"unsafe"

	"github.com/x448/float16"

	"github.com/gogpu/taichi/capi"
)

// Program implements a kernel on the host device. Programs run on the
// goroutine that waits on the runtime and must not retain argument views
// after returning.
type Program func(inv *Invocation) error

var (
	programsMu sync.RWMutex
	programs   = make(map[string]Program)
)

// RegisterProgram registers a program under the symbol module manifests refer
// to in a kernel's host field. Registering an existing symbol replaces it.
func RegisterProgram(symbol string, p Program) {
	programsMu.Lock()
	defer programsMu.Unlock()
	programs[symbol] = p
}

// UnregisterProgram removes a program.
func UnregisterProgram(symbol string) {
	programsMu.Lock()
	defer programsMu.Unlock()
	delete(programs, symbol)
}

// LookupProgram returns the program registered under symbol.
func LookupProgram(symbol string) (Program, bool) {
	programsMu.RLock()
	defer programsMu.RUnlock()
	p, ok := programs[symbol]
	return p, ok
}

// Programs returns the registered symbols, sorted.
func Programs() []string {
	programsMu.RLock()
	defer programsMu.RUnlock()
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// NdArray is a program's view of an ND-array argument.
type NdArray struct {
	Type      capi.DataType
	Shape     []uint32
	ElemShape []uint32
	// Data covers exactly the elements described by Shape and ElemShape.
	Data []byte
}

// Len returns the number of scalars in the array.
func (a NdArray) Len() int {
	n := 1
	for _, d := range a.Shape {
		n *= int(d)
	}
	for _, d := range a.ElemShape {
		n *= int(d)
	}
	return n
}

// Number is the set of element types programs can view arrays as.
type Number interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float16.Float16 | float32 | float64
}

// Elems returns the array data as a slice of T. T must have the size of the
// array's element type.
func Elems[T Number](a NdArray) ([]T, error) {
	var zero T
	if int(unsafe.Sizeof(zero)) != a.Type.Size() {
		return nil, fmt.Errorf("%w: cannot view %s elements as %T", ErrArgumentType, a.Type, zero)
	}
	if len(a.Data) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(a.Data))), a.Len()), nil
}

// Texture is a program's view of a texture argument.
type Texture struct {
	Dimension capi.ImageDimension
	Extent    capi.ImageExtent
	Format    capi.Format
	// Data holds mip level 0.
	Data []byte
	// Sampler is nil when the backend default applies.
	Sampler *capi.SamplerCreateInfo
}

type value struct {
	arg capi.Argument
	nd  NdArray
	tex Texture
}

// Invocation carries the resolved arguments of one kernel launch.
type Invocation struct {
	// Kernel is the name of the kernel being executed.
	Kernel string
	args   []value
}

// NumArgs returns the number of arguments.
func (inv *Invocation) NumArgs() int { return len(inv.args) }

// Kind returns the type of argument i.
func (inv *Invocation) Kind(i int) capi.ArgumentType {
	if i < 0 || i >= len(inv.args) {
		return -1
	}
	return inv.args[i].arg.Type
}

func (inv *Invocation) at(i int, want capi.ArgumentType) (*value, error) {
	if i < 0 || i >= len(inv.args) {
		return nil, fmt.Errorf("%w: %d of %d", ErrArgumentIndex, i, len(inv.args))
	}
	v := &inv.args[i]
	if v.arg.Type != want {
		return nil, fmt.Errorf("%w: arg %d is %s, want %s", ErrArgumentType, i, v.arg.Type, want)
	}
	return v, nil
}

// I32 returns argument i as an int32.
func (inv *Invocation) I32(i int) (int32, error) {
	v, err := inv.at(i, capi.ArgumentTypeI32)
	if err != nil {
		return 0, err
	}
	return v.arg.I32, nil
}

// F32 returns argument i as a float32.
func (inv *Invocation) F32(i int) (float32, error) {
	v, err := inv.at(i, capi.ArgumentTypeF32)
	if err != nil {
		return 0, err
	}
	return v.arg.F32, nil
}

// Scalar returns argument i as a raw scalar.
func (inv *Invocation) Scalar(i int) (capi.Scalar, error) {
	v, err := inv.at(i, capi.ArgumentTypeScalar)
	if err != nil {
		return capi.Scalar{}, err
	}
	return v.arg.Scalar, nil
}

// Float64 returns a numeric argument (i32, f32 or scalar) converted to
// float64.
func (inv *Invocation) Float64(i int) (float64, error) {
	if i < 0 || i >= len(inv.args) {
		return 0, fmt.Errorf("%w: %d of %d", ErrArgumentIndex, i, len(inv.args))
	}
	a := inv.args[i].arg
	switch a.Type {
	case capi.ArgumentTypeI32:
		return float64(a.I32), nil
	case capi.ArgumentTypeF32:
		return float64(a.F32), nil
	case capi.ArgumentTypeScalar:
		return scalarFloat64(a.Scalar)
	default:
		return 0, fmt.Errorf("%w: arg %d is %s, want a number", ErrArgumentType, i, a.Type)
	}
}

// NdArray returns argument i as an ND-array view.
func (inv *Invocation) NdArray(i int) (NdArray, error) {
	v, err := inv.at(i, capi.ArgumentTypeNdArray)
	if err != nil {
		return NdArray{}, err
	}
	return v.nd, nil
}

// Texture returns argument i as a texture view.
func (inv *Invocation) Texture(i int) (Texture, error) {
	v, err := inv.at(i, capi.ArgumentTypeTexture)
	if err != nil {
		return Texture{}, err
	}
	return v.tex, nil
}

func scalarFloat64(s capi.Scalar) (float64, error) {
	switch s.Type {
	case capi.DataTypeF16:
		return float64(float16.Frombits(uint16(s.Bits)).Float32()), nil
	case capi.DataTypeF32:
		return float64(math.Float32frombits(uint32(s.Bits))), nil
	case capi.DataTypeF64:
		return math.Float64frombits(s.Bits), nil
	case capi.DataTypeI8:
		return float64(int8(s.Bits)), nil
	case capi.DataTypeI16:
		return float64(int16(s.Bits)), nil
	case capi.DataTypeI32:
		return float64(int32(s.Bits)), nil
	case capi.DataTypeI64:
		return float64(int64(s.Bits)), nil
	case capi.DataTypeU1, capi.DataTypeU8:
		return float64(uint8(s.Bits)), nil
	case capi.DataTypeU16:
		return float64(uint16(s.Bits)), nil
	case capi.DataTypeU32:
		return float64(uint32(s.Bits)), nil
	case capi.DataTypeU64:
		return float64(s.Bits), nil
	default:
		return 0, fmt.Errorf("%w: scalar of type %s", ErrArgumentType, s.Type)
	}
}
