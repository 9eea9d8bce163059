// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package capi

// Handles
//
// These opaque handles identify backend objects. Each Library maintains the
// mapping between handles and its own resources. The zero value is the null
// handle for every kind.

// Runtime is an opaque handle to a runtime instance.
type Runtime uint64

// Memory is an opaque handle to a device memory allocation.
type Memory uint64

// Image is an opaque handle to a device image.
type Image uint64

// Sampler is an opaque handle to an image sampler.
type Sampler uint64

// Event is an opaque handle to a device-side event.
type Event uint64

// AotModule is an opaque handle to a loaded ahead-of-time module.
type AotModule uint64

// Kernel is an opaque handle to a kernel inside a module.
type Kernel uint64

// ComputeGraph is an opaque handle to a compute graph inside a module.
type ComputeGraph uint64

// Null is the null handle value shared by all handle kinds.
const Null = 0

// Arch selects a compute backend.
type Arch int32

// Backend architectures.
const (
	ArchX64 Arch = iota
	ArchArm64
	ArchJs
	ArchCc
	ArchWasm
	ArchCuda
	ArchMetal
	ArchOpengl
	ArchDx11
	ArchDx12
	ArchOpencl
	ArchAmdgpu
	ArchVulkan
)

var archNames = [...]string{
	ArchX64:    "x64",
	ArchArm64:  "arm64",
	ArchJs:     "js",
	ArchCc:     "cc",
	ArchWasm:   "wasm",
	ArchCuda:   "cuda",
	ArchMetal:  "metal",
	ArchOpengl: "opengl",
	ArchDx11:   "dx11",
	ArchDx12:   "dx12",
	ArchOpencl: "opencl",
	ArchAmdgpu: "amdgpu",
	ArchVulkan: "vulkan",
}

// String returns the lower-case architecture name.
func (a Arch) String() string {
	if a >= 0 && int(a) < len(archNames) {
		return archNames[a]
	}
	return "unknown"
}

// ParseArch returns the architecture with the given name.
func ParseArch(name string) (Arch, bool) {
	for i, n := range archNames {
		if n == name {
			return Arch(i), true
		}
	}
	return 0, false
}

// Capability identifies an optional device feature.
type Capability int32

// Device capabilities.
const (
	CapabilityReserved Capability = iota
	CapabilitySpirvVersion
	CapabilitySpirvHasInt8
	CapabilitySpirvHasInt16
	CapabilitySpirvHasInt64
	CapabilitySpirvHasFloat16
	CapabilitySpirvHasFloat64
	CapabilitySpirvHasAtomicI64
	CapabilitySpirvHasAtomicFloat16
	CapabilitySpirvHasAtomicFloat32
	CapabilitySpirvHasAtomicFloat64
	CapabilitySpirvHasVariablePtr
	CapabilitySpirvHasPhysicalStorageBuffer
	CapabilitySpirvHasSubgroupBasic
	CapabilitySpirvHasSubgroupVote
	CapabilitySpirvHasSubgroupArithmetic
	CapabilitySpirvHasSubgroupBallot
	CapabilitySpirvHasNonSemanticInfo
	CapabilitySpirvHasNoIntegerWrapDecoration
)

var capabilityNames = [...]string{
	CapabilityReserved:                        "reserved",
	CapabilitySpirvVersion:                    "spirv_version",
	CapabilitySpirvHasInt8:                    "spirv_has_int8",
	CapabilitySpirvHasInt16:                   "spirv_has_int16",
	CapabilitySpirvHasInt64:                   "spirv_has_int64",
	CapabilitySpirvHasFloat16:                 "spirv_has_float16",
	CapabilitySpirvHasFloat64:                 "spirv_has_float64",
	CapabilitySpirvHasAtomicI64:               "spirv_has_atomic_i64",
	CapabilitySpirvHasAtomicFloat16:           "spirv_has_atomic_float16",
	CapabilitySpirvHasAtomicFloat32:           "spirv_has_atomic_float",
	CapabilitySpirvHasAtomicFloat64:           "spirv_has_atomic_float64",
	CapabilitySpirvHasVariablePtr:             "spirv_has_variable_ptr",
	CapabilitySpirvHasPhysicalStorageBuffer:   "spirv_has_physical_storage_buffer",
	CapabilitySpirvHasSubgroupBasic:           "spirv_has_subgroup_basic",
	CapabilitySpirvHasSubgroupVote:            "spirv_has_subgroup_vote",
	CapabilitySpirvHasSubgroupArithmetic:      "spirv_has_subgroup_arithmetic",
	CapabilitySpirvHasSubgroupBallot:          "spirv_has_subgroup_ballot",
	CapabilitySpirvHasNonSemanticInfo:         "spirv_has_non_semantic_info",
	CapabilitySpirvHasNoIntegerWrapDecoration: "spirv_has_no_integer_wrap_decoration",
}

func (c Capability) String() string {
	if c >= 0 && int(c) < len(capabilityNames) {
		return capabilityNames[c]
	}
	return "unknown"
}

// CapabilityLevelInfo pairs a capability with its supported level.
type CapabilityLevelInfo struct {
	Capability Capability
	Level      uint32
}

// DataType is the runtime tag of a scalar element type.
type DataType int32

// Scalar data types.
const (
	DataTypeF16 DataType = iota
	DataTypeF32
	DataTypeF64
	DataTypeI8
	DataTypeI16
	DataTypeI32
	DataTypeI64
	DataTypeU1
	DataTypeU8
	DataTypeU16
	DataTypeU32
	DataTypeU64
	DataTypeGen
	DataTypeUnknown
)

var dataTypeNames = [...]string{
	DataTypeF16:     "f16",
	DataTypeF32:     "f32",
	DataTypeF64:     "f64",
	DataTypeI8:      "i8",
	DataTypeI16:     "i16",
	DataTypeI32:     "i32",
	DataTypeI64:     "i64",
	DataTypeU1:      "u1",
	DataTypeU8:      "u8",
	DataTypeU16:     "u16",
	DataTypeU32:     "u32",
	DataTypeU64:     "u64",
	DataTypeGen:     "gen",
	DataTypeUnknown: "unknown",
}

func (d DataType) String() string {
	if d >= 0 && int(d) < len(dataTypeNames) {
		return dataTypeNames[d]
	}
	return "unknown"
}

// ParseDataType returns the data type with the given name.
func ParseDataType(name string) (DataType, bool) {
	for i, n := range dataTypeNames {
		if n == name {
			return DataType(i), true
		}
	}
	return DataTypeUnknown, false
}

// Size returns the size of one element in bytes, or 0 for types without a
// fixed byte size.
func (d DataType) Size() int {
	switch d {
	case DataTypeI8, DataTypeU8, DataTypeU1:
		return 1
	case DataTypeF16, DataTypeI16, DataTypeU16:
		return 2
	case DataTypeF32, DataTypeI32, DataTypeU32:
		return 4
	case DataTypeF64, DataTypeI64, DataTypeU64:
		return 8
	default:
		return 0
	}
}

// MemoryUsage is a bitmask of device memory usages.
type MemoryUsage uint32

// Memory usage flags.
const (
	MemoryUsageStorage MemoryUsage = 1 << iota
	MemoryUsageUniform
	MemoryUsageVertex
	MemoryUsageIndex
)

// Contains reports whether all bits of other are set in u.
func (u MemoryUsage) Contains(other MemoryUsage) bool { return u&other == other }

// MemoryAllocateInfo describes a memory allocation.
type MemoryAllocateInfo struct {
	Size          uint64
	HostWrite     bool
	HostRead      bool
	ExportSharing bool
	Usage         MemoryUsage
}

// MemorySlice is a byte range inside a memory allocation.
type MemorySlice struct {
	Memory Memory
	Offset uint64
	Size   uint64
}

// MaxNdShapeDims is the maximum rank of an ND-array shape.
const MaxNdShapeDims = 16

// NdShape is a fixed-capacity shape of up to MaxNdShapeDims dimensions.
type NdShape struct {
	DimCount uint32
	Dims     [MaxNdShapeDims]uint32
}

// Slice returns the used dimensions.
func (s NdShape) Slice() []uint32 {
	n := s.DimCount
	if n > MaxNdShapeDims {
		n = MaxNdShapeDims
	}
	return s.Dims[:n]
}

// Product returns the product of the used dimensions (1 for rank 0).
func (s NdShape) Product() uint64 {
	p := uint64(1)
	for _, d := range s.Slice() {
		p *= uint64(d)
	}
	return p
}

// NdArray describes an ND-array view over a memory allocation.
type NdArray struct {
	Memory    Memory
	Shape     NdShape
	ElemShape NdShape
	ElemType  DataType
}

// ImageUsage is a bitmask of image usages.
type ImageUsage uint32

// Image usage flags.
const (
	ImageUsageStorage ImageUsage = 1 << iota
	ImageUsageSampled
	ImageUsageAttachment
)

// Contains reports whether all bits of other are set in u.
func (u ImageUsage) Contains(other ImageUsage) bool { return u&other == other }

// ImageDimension is the dimensionality of an image.
type ImageDimension int32

// Image dimensions.
const (
	ImageDimension1D ImageDimension = iota
	ImageDimension2D
	ImageDimension3D
	ImageDimension1DArray
	ImageDimension2DArray
	ImageDimensionCube
)

// ImageLayout is the device layout an image is in.
type ImageLayout int32

// Image layouts.
const (
	ImageLayoutUndefined ImageLayout = iota
	ImageLayoutShaderRead
	ImageLayoutShaderWrite
	ImageLayoutShaderReadWrite
	ImageLayoutColorAttachment
	ImageLayoutColorAttachmentRead
	ImageLayoutDepthAttachment
	ImageLayoutDepthAttachmentRead
	ImageLayoutTransferDst
	ImageLayoutTransferSrc
	ImageLayoutPresentSrc
)

// Format is an image texel format.
type Format int32

// Image formats.
const (
	FormatUnknown Format = iota
	FormatR8
	FormatRG8
	FormatRGBA8
	FormatRGBA8Srgb
	FormatBGRA8
	FormatBGRA8Srgb
	FormatR8U
	FormatRG8U
	FormatRGBA8U
	FormatR8I
	FormatRG8I
	FormatRGBA8I
	FormatR16
	FormatRG16
	FormatRGB16
	FormatRGBA16
	FormatR16U
	FormatRG16U
	FormatRGB16U
	FormatRGBA16U
	FormatR16I
	FormatRG16I
	FormatRGB16I
	FormatRGBA16I
	FormatR16F
	FormatRG16F
	FormatRGB16F
	FormatRGBA16F
	FormatR32U
	FormatRG32U
	FormatRGB32U
	FormatRGBA32U
	FormatR32I
	FormatRG32I
	FormatRGB32I
	FormatRGBA32I
	FormatR32F
	FormatRG32F
	FormatRGB32F
	FormatRGBA32F
	FormatDepth16
	FormatDepth24Stencil8
	FormatDepth32F
)

// TexelSize returns the size of one texel in bytes, or 0 for unknown formats.
func (f Format) TexelSize() int {
	switch f {
	case FormatR8, FormatR8U, FormatR8I:
		return 1
	case FormatRG8, FormatRG8U, FormatRG8I,
		FormatR16, FormatR16U, FormatR16I, FormatR16F, FormatDepth16:
		return 2
	case FormatRGB16, FormatRGB16U, FormatRGB16I, FormatRGB16F:
		return 6
	case FormatRGBA8, FormatRGBA8Srgb, FormatBGRA8, FormatBGRA8Srgb, FormatRGBA8U, FormatRGBA8I,
		FormatRG16, FormatRG16U, FormatRG16I, FormatRG16F,
		FormatR32U, FormatR32I, FormatR32F, FormatDepth24Stencil8, FormatDepth32F:
		return 4
	case FormatRGBA16, FormatRGBA16U, FormatRGBA16I, FormatRGBA16F,
		FormatRG32U, FormatRG32I, FormatRG32F:
		return 8
	case FormatRGB32U, FormatRGB32I, FormatRGB32F:
		return 12
	case FormatRGBA32U, FormatRGBA32I, FormatRGBA32F:
		return 16
	default:
		return 0
	}
}

// ImageOffset is a texel offset inside an image.
type ImageOffset struct {
	X, Y, Z    uint32
	ArrayLayer uint32
}

// ImageExtent is the size of an image in texels.
type ImageExtent struct {
	Width, Height, Depth uint32
	ArrayLayerCount      uint32
}

// Texels returns the number of texels covered by the extent.
func (e ImageExtent) Texels() uint64 {
	return uint64(e.Width) * uint64(e.Height) * uint64(e.Depth) * uint64(e.ArrayLayerCount)
}

// ImageAllocateInfo describes an image allocation.
type ImageAllocateInfo struct {
	Dimension     ImageDimension
	Extent        ImageExtent
	MipLevelCount uint32
	Format        Format
	ExportSharing bool
	Usage         ImageUsage
}

// ImageSlice is a region of one mip level of an image.
type ImageSlice struct {
	Image    Image
	Offset   ImageOffset
	Extent   ImageExtent
	MipLevel uint32
}

// Filter is a texel filtering mode.
type Filter int32

// Filters.
const (
	FilterNearest Filter = iota
	FilterLinear
)

// AddressMode selects how out-of-range coordinates are resolved.
type AddressMode int32

// Address modes.
const (
	AddressModeRepeat AddressMode = iota
	AddressModeMirroredRepeat
	AddressModeClampToEdge
)

// SamplerCreateInfo describes a sampler.
type SamplerCreateInfo struct {
	MagFilter     Filter
	MinFilter     Filter
	AddressMode   AddressMode
	MaxAnisotropy float32
}

// Texture is an image together with its sampler, as passed to kernels.
type Texture struct {
	Image     Image
	Sampler   Sampler
	Dimension ImageDimension
	Extent    ImageExtent
	Format    Format
}

// ArgumentType tags the payload of an Argument.
type ArgumentType int32

// Argument types.
const (
	ArgumentTypeI32 ArgumentType = iota
	ArgumentTypeF32
	ArgumentTypeNdArray
	ArgumentTypeTexture
	ArgumentTypeScalar
)

var argumentTypeNames = [...]string{
	ArgumentTypeI32:     "i32",
	ArgumentTypeF32:     "f32",
	ArgumentTypeNdArray: "ndarray",
	ArgumentTypeTexture: "texture",
	ArgumentTypeScalar:  "scalar",
}

func (t ArgumentType) String() string {
	if t >= 0 && int(t) < len(argumentTypeNames) {
		return argumentTypeNames[t]
	}
	return "unknown"
}

// ParseArgumentType returns the argument type with the given name.
func ParseArgumentType(name string) (ArgumentType, bool) {
	for i, n := range argumentTypeNames {
		if n == name {
			return ArgumentType(i), true
		}
	}
	return 0, false
}

// Scalar is a scalar of any data type stored as raw little-endian bits.
type Scalar struct {
	Type DataType
	Bits uint64
}

// Argument is a tagged kernel argument. Only the field selected by Type is
// meaningful.
type Argument struct {
	Type    ArgumentType
	I32     int32
	F32     float32
	NdArray NdArray
	Texture Texture
	Scalar  Scalar
}

// NamedArgument is an argument bound to a compute graph parameter name.
type NamedArgument struct {
	Name     string
	Argument Argument
}
