package taichi

import (
	"unsafe"

	"github.com/x448/float16"

	"github.com/gogpu/taichi/capi"
)

// Elem is the set of element types with a runtime data type tag. Using any
// other type with Map, NdArray or the typed read and write helpers does not
// compile.
type Elem interface {
	int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64 | float16.Float16 | float32 | float64
}

// DataTypeOf returns the runtime tag of T.
func DataTypeOf[T Elem]() capi.DataType {
	var zero T
	switch any(zero).(type) {
	case int8:
		return capi.DataTypeI8
	case int16:
		return capi.DataTypeI16
	case int32:
		return capi.DataTypeI32
	case int64:
		return capi.DataTypeI64
	case uint8:
		return capi.DataTypeU8
	case uint16:
		return capi.DataTypeU16
	case uint32:
		return capi.DataTypeU32
	case uint64:
		return capi.DataTypeU64
	case float16.Float16:
		return capi.DataTypeF16
	case float32:
		return capi.DataTypeF32
	default:
		return capi.DataTypeF64
	}
}

func sizeOf[T Elem]() uint64 {
	var zero T
	return uint64(unsafe.Sizeof(zero))
}

// viewAs reinterprets b as a slice of T. The caller guarantees that len(b) is
// a multiple of the element size and that b is suitably aligned.
func viewAs[T Elem](b []byte) []T {
	if len(b) == 0 {
		return nil
	}
	n := uint64(len(b)) / sizeOf[T]()
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n)
}

// bytesOf reinterprets s as its underlying bytes.
func bytesOf[T Elem](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), uint64(len(s))*sizeOf[T]())
}

func aligned[T Elem](b []byte) bool {
	if len(b) == 0 {
		return true
	}
	var zero T
	return uintptr(unsafe.Pointer(unsafe.SliceData(b)))%unsafe.Alignof(zero) == 0
}
