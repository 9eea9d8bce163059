package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/x448/float16"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/taichi"
	"github.com/gogpu/taichi/capi"
)

// argSpec is one entry of an arguments file:
//
//	arr:
//	  kind: ndarray
//	  dtype: i32
//	  shape: [16, 16]
//	n:
//	  kind: i32
//	  value: 3
type argSpec struct {
	Kind      string    `yaml:"kind"`
	DType     string    `yaml:"dtype"`
	Shape     []uint32  `yaml:"shape"`
	ElemShape []uint32  `yaml:"elem_shape"`
	Value     float64   `yaml:"value"`
	Values    []float64 `yaml:"values"`
}

func loadArgs(path string) (map[string]argSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var specs map[string]argSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return specs, nil
}

// sortedNames returns the argument names in a stable order.
func sortedNames(specs map[string]argSpec) []string {
	names := make([]string, 0, len(specs))
	for name := range specs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// array is an ND-array of any element type.
type array interface {
	taichi.NdArrayLike
	Shape() []uint32
	ElemType() capi.DataType
	Close()
	floats() ([]float64, error)
}

type typedArray[T taichi.Elem] struct {
	*taichi.NdArray[T]
}

func (a typedArray[T]) floats() ([]float64, error) {
	vals, err := a.ToSlice()
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = toFloat(v)
	}
	return out, nil
}

func toFloat[T taichi.Elem](v T) float64 {
	if h, ok := any(v).(float16.Float16); ok {
		return float64(h.Float32())
	}
	return float64(v)
}

func fromFloat[T taichi.Elem](f float64) T {
	var zero T
	if _, ok := any(zero).(float16.Float16); ok {
		return any(float16.Fromfloat32(float32(f))).(T)
	}
	return T(f)
}

func buildArray[T taichi.Elem](rt *taichi.Runtime, s argSpec) (array, error) {
	a, err := taichi.NewNdArray[T](rt).Shape(s.Shape...).ElemShape(s.ElemShape...).HostAccess(true).Build()
	if err != nil {
		return nil, err
	}
	if len(s.Values) > 0 {
		if len(s.Values) != a.ScalarCount() {
			a.Close()
			return nil, fmt.Errorf("%d values for %d elements", len(s.Values), a.ScalarCount())
		}
		vals := make([]T, len(s.Values))
		for i, f := range s.Values {
			vals[i] = fromFloat[T](f)
		}
		if err := a.Write(vals); err != nil {
			a.Close()
			return nil, err
		}
	}
	return typedArray[T]{a}, nil
}

func newArray(rt *taichi.Runtime, s argSpec) (array, error) {
	if len(s.Shape) == 0 {
		return nil, fmt.Errorf("ndarray needs a shape")
	}
	dtype, ok := capi.ParseDataType(s.DType)
	if !ok {
		return nil, fmt.Errorf("unknown dtype %q", s.DType)
	}
	switch dtype {
	case capi.DataTypeI8:
		return buildArray[int8](rt, s)
	case capi.DataTypeI16:
		return buildArray[int16](rt, s)
	case capi.DataTypeI32:
		return buildArray[int32](rt, s)
	case capi.DataTypeI64:
		return buildArray[int64](rt, s)
	case capi.DataTypeU8:
		return buildArray[uint8](rt, s)
	case capi.DataTypeU16:
		return buildArray[uint16](rt, s)
	case capi.DataTypeU32:
		return buildArray[uint32](rt, s)
	case capi.DataTypeU64:
		return buildArray[uint64](rt, s)
	case capi.DataTypeF16:
		return buildArray[float16.Float16](rt, s)
	case capi.DataTypeF32:
		return buildArray[float32](rt, s)
	case capi.DataTypeF64:
		return buildArray[float64](rt, s)
	default:
		return nil, fmt.Errorf("dtype %s cannot back an ndarray", dtype)
	}
}

// scalarArg converts a non-array argument spec.
func scalarArg(s argSpec) (taichi.Argument, error) {
	switch s.Kind {
	case "i32":
		return taichi.I32(int32(s.Value)), nil
	case "f32":
		return taichi.F32(float32(s.Value)), nil
	case "scalar":
		dtype, ok := capi.ParseDataType(s.DType)
		if !ok {
			return nil, fmt.Errorf("unknown dtype %q", s.DType)
		}
		switch dtype {
		case capi.DataTypeI8:
			return taichi.ScalarOf(int8(s.Value)), nil
		case capi.DataTypeI16:
			return taichi.ScalarOf(int16(s.Value)), nil
		case capi.DataTypeI32:
			return taichi.ScalarOf(int32(s.Value)), nil
		case capi.DataTypeI64:
			return taichi.ScalarOf(int64(s.Value)), nil
		case capi.DataTypeU8:
			return taichi.ScalarOf(uint8(s.Value)), nil
		case capi.DataTypeU16:
			return taichi.ScalarOf(uint16(s.Value)), nil
		case capi.DataTypeU32:
			return taichi.ScalarOf(uint32(s.Value)), nil
		case capi.DataTypeU64:
			return taichi.ScalarOf(uint64(s.Value)), nil
		case capi.DataTypeF16:
			return taichi.ScalarOf(float16.Fromfloat32(float32(s.Value))), nil
		case capi.DataTypeF32:
			return taichi.ScalarOf(float32(s.Value)), nil
		case capi.DataTypeF64:
			return taichi.ScalarOf(s.Value), nil
		}
		return nil, fmt.Errorf("dtype %s has no scalar form", dtype)
	default:
		return nil, fmt.Errorf("unsupported argument kind %q", s.Kind)
	}
}
