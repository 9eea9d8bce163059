package taichi

import (
	"math"

	"github.com/x448/float16"

	"github.com/gogpu/taichi/capi"
)

// Argument is a kernel or compute graph argument: one of I32, F32, Scalar,
// NdArrayArg or TextureArg. The set is closed.
type Argument interface {
	// Type returns the argument tag.
	Type() capi.ArgumentType

	value() capi.Argument
	// retain returns a copy holding its own references to the resources the
	// argument points at.
	retain() (Argument, error)
	// release drops the references taken by retain.
	release()
}

// I32 is a 32-bit integer argument.
type I32 int32

// Type implements Argument.
func (I32) Type() capi.ArgumentType { return capi.ArgumentTypeI32 }

func (v I32) value() capi.Argument {
	return capi.Argument{Type: capi.ArgumentTypeI32, I32: int32(v)}
}
func (v I32) retain() (Argument, error) { return v, nil }
func (I32) release()                    {}

// F32 is a 32-bit float argument.
type F32 float32

// Type implements Argument.
func (F32) Type() capi.ArgumentType { return capi.ArgumentTypeF32 }

func (v F32) value() capi.Argument {
	return capi.Argument{Type: capi.ArgumentTypeF32, F32: float32(v)}
}
func (v F32) retain() (Argument, error) { return v, nil }
func (F32) release()                    {}

// Scalar is a scalar argument of any element type.
type Scalar struct {
	typ  capi.DataType
	bits uint64
}

// ScalarOf returns a scalar argument holding v.
func ScalarOf[T Elem](v T) Scalar {
	s := Scalar{typ: DataTypeOf[T]()}
	switch x := any(v).(type) {
	case int8:
		s.bits = uint64(uint8(x))
	case int16:
		s.bits = uint64(uint16(x))
	case int32:
		s.bits = uint64(uint32(x))
	case int64:
		s.bits = uint64(x)
	case uint8:
		s.bits = uint64(x)
	case uint16:
		s.bits = uint64(x)
	case uint32:
		s.bits = uint64(x)
	case uint64:
		s.bits = x
	case float16.Float16:
		s.bits = uint64(x.Bits())
	case float32:
		s.bits = uint64(math.Float32bits(x))
	case float64:
		s.bits = math.Float64bits(x)
	}
	return s
}

// Type implements Argument.
func (Scalar) Type() capi.ArgumentType { return capi.ArgumentTypeScalar }

// DataType returns the scalar element type.
func (s Scalar) DataType() capi.DataType { return s.typ }

func (s Scalar) value() capi.Argument {
	return capi.Argument{Type: capi.ArgumentTypeScalar, Scalar: capi.Scalar{Type: s.typ, Bits: s.bits}}
}
func (s Scalar) retain() (Argument, error) { return s, nil }
func (Scalar) release()                    {}

// NdArrayLike is implemented by *NdArray[T] for every element type.
type NdArrayLike interface {
	Descriptor() capi.NdArray
	Memory() *Memory
}

// NdArrayArg is an ND-array argument.
type NdArrayArg struct {
	desc capi.NdArray
	mem  *Memory
}

// NdArrayArgument wraps an ND-array as an argument. An array without
// memory, including a nil *NdArray, yields an argument that binding rejects
// with ArgumentNull.
func NdArrayArgument(a NdArrayLike) NdArrayArg {
	if a == nil || a.Memory() == nil {
		return NdArrayArg{}
	}
	return NdArrayArg{desc: a.Descriptor(), mem: a.Memory()}
}

// Type implements Argument.
func (NdArrayArg) Type() capi.ArgumentType { return capi.ArgumentTypeNdArray }

// Descriptor returns the wrapped array descriptor.
func (a NdArrayArg) Descriptor() capi.NdArray { return a.desc }

func (a NdArrayArg) value() capi.Argument {
	return capi.Argument{Type: capi.ArgumentTypeNdArray, NdArray: a.desc}
}

func (a NdArrayArg) retain() (Argument, error) {
	if a.mem == nil {
		return nil, newError(capi.ErrorArgumentNull, "ndarray argument has no memory")
	}
	if err := a.mem.check(); err != nil {
		return nil, err
	}
	return NdArrayArg{desc: a.desc, mem: a.mem.Clone()}, nil
}

func (a NdArrayArg) release() { a.mem.Close() }

// TextureArg is a texture argument.
type TextureArg struct {
	desc capi.Texture
	tex  *Texture
}

// TextureArgument wraps a texture as an argument.
func TextureArgument(t *Texture) TextureArg {
	if t == nil {
		return TextureArg{}
	}
	return TextureArg{desc: t.Descriptor(), tex: t}
}

// Type implements Argument.
func (TextureArg) Type() capi.ArgumentType { return capi.ArgumentTypeTexture }

// Descriptor returns the wrapped texture descriptor.
func (a TextureArg) Descriptor() capi.Texture { return a.desc }

func (a TextureArg) value() capi.Argument {
	return capi.Argument{Type: capi.ArgumentTypeTexture, Texture: a.desc}
}

func (a TextureArg) retain() (Argument, error) {
	if a.tex == nil {
		return nil, newError(capi.ErrorArgumentNull, "texture argument has no texture")
	}
	tex, err := a.tex.Clone()
	if err != nil {
		return nil, err
	}
	return TextureArg{desc: a.desc, tex: tex}, nil
}

func (a TextureArg) release() { a.tex.Close() }
