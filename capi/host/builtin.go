package host

import (
	"fmt"

	"github.com/x448/float16"

	"github.com/gogpu/taichi/capi"
)

// Built-in program symbols.
const (
	ProgramCheckerboard = "checkerboard"
	ProgramFill         = "fill"
	ProgramIota         = "iota"
	ProgramScale        = "scale"
	ProgramAdd          = "add"
)

func init() {
	RegisterProgram(ProgramCheckerboard, checkerboard)
	RegisterProgram(ProgramFill, fill)
	RegisterProgram(ProgramIota, iotaProgram)
	RegisterProgram(ProgramScale, scale)
	RegisterProgram(ProgramAdd, add)
}

// checkerboard writes arr[i, j] = (j*(w+1) + i) % 2 into a w x h i32 array.
func checkerboard(inv *Invocation) error {
	a, err := inv.NdArray(0)
	if err != nil {
		return err
	}
	if len(a.Shape) != 2 || len(a.ElemShape) != 0 {
		return fmt.Errorf("%w: checkerboard wants a 2D scalar array, got shape %v elem %v", ErrShape, a.Shape, a.ElemShape)
	}
	data, err := Elems[int32](a)
	if err != nil {
		return err
	}
	w, h := int(a.Shape[0]), int(a.Shape[1])
	for i := 0; i < w; i++ {
		for j := 0; j < h; j++ {
			data[i*h+j] = int32((j*(w+1) + i) % 2)
		}
	}
	return nil
}

// fill sets every element of arg 0 to the number in arg 1.
func fill(inv *Invocation) error {
	a, err := inv.NdArray(0)
	if err != nil {
		return err
	}
	v, err := inv.Float64(1)
	if err != nil {
		return err
	}
	return mapElems(a, func(int, float64) float64 { return v })
}

// iotaProgram sets every element of arg 0 to its flat index.
func iotaProgram(inv *Invocation) error {
	a, err := inv.NdArray(0)
	if err != nil {
		return err
	}
	return mapElems(a, func(k int, _ float64) float64 { return float64(k) })
}

// scale multiplies every element of arg 0 by the number in arg 1.
func scale(inv *Invocation) error {
	a, err := inv.NdArray(0)
	if err != nil {
		return err
	}
	f, err := inv.Float64(1)
	if err != nil {
		return err
	}
	return mapElems(a, func(_ int, v float64) float64 { return v * f })
}

// add stores arg 1 + arg 2 into arg 0 element-wise.
func add(inv *Invocation) error {
	dst, err := inv.NdArray(0)
	if err != nil {
		return err
	}
	lhs, err := inv.NdArray(1)
	if err != nil {
		return err
	}
	rhs, err := inv.NdArray(2)
	if err != nil {
		return err
	}
	if lhs.Len() != dst.Len() || rhs.Len() != dst.Len() {
		return fmt.Errorf("%w: add of %d and %d elements into %d", ErrShape, lhs.Len(), rhs.Len(), dst.Len())
	}
	l, err := floats(lhs)
	if err != nil {
		return err
	}
	r, err := floats(rhs)
	if err != nil {
		return err
	}
	return mapElems(dst, func(k int, _ float64) float64 { return l[k] + r[k] })
}

type realNumber interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float32 | float64
}

// mapElems replaces every element v at flat index k with fn(k, v).
func mapElems(a NdArray, fn func(k int, v float64) float64) error {
	switch a.Type {
	case capi.DataTypeF16:
		s, err := Elems[float16.Float16](a)
		if err != nil {
			return err
		}
		for k, v := range s {
			s[k] = float16.Fromfloat32(float32(fn(k, float64(v.Float32()))))
		}
		return nil
	case capi.DataTypeF32:
		return mapAs[float32](a, fn)
	case capi.DataTypeF64:
		return mapAs[float64](a, fn)
	case capi.DataTypeI8:
		return mapAs[int8](a, fn)
	case capi.DataTypeI16:
		return mapAs[int16](a, fn)
	case capi.DataTypeI32:
		return mapAs[int32](a, fn)
	case capi.DataTypeI64:
		return mapAs[int64](a, fn)
	case capi.DataTypeU8:
		return mapAs[uint8](a, fn)
	case capi.DataTypeU16:
		return mapAs[uint16](a, fn)
	case capi.DataTypeU32:
		return mapAs[uint32](a, fn)
	case capi.DataTypeU64:
		return mapAs[uint64](a, fn)
	default:
		return fmt.Errorf("%w: unsupported element type %s", ErrArgumentType, a.Type)
	}
}

func mapAs[T realNumber](a NdArray, fn func(int, float64) float64) error {
	s, err := Elems[T](a)
	if err != nil {
		return err
	}
	for k, v := range s {
		s[k] = T(fn(k, float64(v)))
	}
	return nil
}

// floats copies the array elements out as float64.
func floats(a NdArray) ([]float64, error) {
	out := make([]float64, a.Len())
	err := mapElems(a, func(k int, v float64) float64 {
		out[k] = v
		return v
	})
	return out, err
}
