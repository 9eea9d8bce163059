//go:build !nogpu

package wgpu

import (
	"github.com/gogpu/gputypes"

	"github.com/gogpu/taichi/capi"
)

// textureFormat maps a texel format to the GPU format. Only formats with a
// direct equivalent are accepted.
func textureFormat(f capi.Format) (gputypes.TextureFormat, bool) {
	switch f {
	case capi.FormatR8:
		return gputypes.TextureFormatR8Unorm, true
	case capi.FormatRGBA8:
		return gputypes.TextureFormatRGBA8Unorm, true
	case capi.FormatBGRA8:
		return gputypes.TextureFormatBGRA8Unorm, true
	case capi.FormatDepth24Stencil8:
		return gputypes.TextureFormatDepth24PlusStencil8, true
	default:
		return gputypes.TextureFormatUndefined, false
	}
}

// textureDimension maps an image dimension; array images use the base
// dimension with array layers in the depth extent.
func textureDimension(d capi.ImageDimension) (gputypes.TextureDimension, bool) {
	switch d {
	case capi.ImageDimension1D, capi.ImageDimension1DArray:
		return gputypes.TextureDimension1D, true
	case capi.ImageDimension2D, capi.ImageDimension2DArray, capi.ImageDimensionCube:
		return gputypes.TextureDimension2D, true
	case capi.ImageDimension3D:
		return gputypes.TextureDimension3D, true
	default:
		return gputypes.TextureDimension2D, false
	}
}

func textureUsage(u capi.ImageUsage) gputypes.TextureUsage {
	usage := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	if u.Contains(capi.ImageUsageSampled) {
		usage |= gputypes.TextureUsageTextureBinding
	}
	if u.Contains(capi.ImageUsageStorage) {
		usage |= gputypes.TextureUsageStorageBinding
	}
	if u.Contains(capi.ImageUsageAttachment) {
		usage |= gputypes.TextureUsageRenderAttachment
	}
	return usage
}

// layoutUsage maps an image layout to the texture usage it is transitioned
// to.
func layoutUsage(layout capi.ImageLayout) gputypes.TextureUsage {
	switch layout {
	case capi.ImageLayoutShaderRead:
		return gputypes.TextureUsageTextureBinding
	case capi.ImageLayoutShaderWrite, capi.ImageLayoutShaderReadWrite:
		return gputypes.TextureUsageStorageBinding
	case capi.ImageLayoutColorAttachment, capi.ImageLayoutColorAttachmentRead,
		capi.ImageLayoutDepthAttachment, capi.ImageLayoutDepthAttachmentRead,
		capi.ImageLayoutPresentSrc:
		return gputypes.TextureUsageRenderAttachment
	case capi.ImageLayoutTransferDst:
		return gputypes.TextureUsageCopyDst
	case capi.ImageLayoutTransferSrc:
		return gputypes.TextureUsageCopySrc
	default:
		return 0
	}
}

func filterMode(f capi.Filter) gputypes.FilterMode {
	if f == capi.FilterLinear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

func addressMode(m capi.AddressMode) gputypes.AddressMode {
	switch m {
	case capi.AddressModeMirroredRepeat:
		return gputypes.AddressModeMirrorRepeat
	case capi.AddressModeClampToEdge:
		return gputypes.AddressModeClampToEdge
	default:
		return gputypes.AddressModeRepeat
	}
}
