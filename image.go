package taichi

import (
	"github.com/gogpu/taichi/capi"
)

type imageInner struct {
	ref    shared
	rt     *runtimeInner
	handle capi.Image
	info   capi.ImageAllocateInfo
}

// Image is a shared handle to a device image. The image keeps its runtime
// alive.
type Image struct {
	handle
	i *imageInner
}

// ImageBuilder describes an image allocation. Defaults: 2D, 1x1x1 with one
// layer and one mip level, RGBA8, sampled and storage usage, no export
// sharing.
type ImageBuilder struct {
	rt   *Runtime
	info capi.ImageAllocateInfo
}

// AllocateImage starts describing an image allocation on rt.
func (rt *Runtime) AllocateImage() *ImageBuilder {
	return &ImageBuilder{rt: rt, info: defaultImageInfo()}
}

func defaultImageInfo() capi.ImageAllocateInfo {
	return capi.ImageAllocateInfo{
		Dimension:     capi.ImageDimension2D,
		Extent:        capi.ImageExtent{Width: 1, Height: 1, Depth: 1, ArrayLayerCount: 1},
		MipLevelCount: 1,
		Format:        capi.FormatRGBA8,
		Usage:         capi.ImageUsageSampled | capi.ImageUsageStorage,
	}
}

// Dimension sets the image dimensionality.
func (b *ImageBuilder) Dimension(d capi.ImageDimension) *ImageBuilder {
	b.info.Dimension = d
	return b
}

// Extent sets the full extent.
func (b *ImageBuilder) Extent(e capi.ImageExtent) *ImageBuilder {
	b.info.Extent = e
	return b
}

// Width sets the width in texels.
func (b *ImageBuilder) Width(w uint32) *ImageBuilder {
	b.info.Extent.Width = w
	return b
}

// Height sets the height in texels.
func (b *ImageBuilder) Height(h uint32) *ImageBuilder {
	b.info.Extent.Height = h
	return b
}

// Depth sets the depth in texels.
func (b *ImageBuilder) Depth(d uint32) *ImageBuilder {
	b.info.Extent.Depth = d
	return b
}

// ArrayLayers sets the number of array layers.
func (b *ImageBuilder) ArrayLayers(n uint32) *ImageBuilder {
	b.info.Extent.ArrayLayerCount = n
	return b
}

// MipLevels sets the number of mip levels.
func (b *ImageBuilder) MipLevels(n uint32) *ImageBuilder {
	b.info.MipLevelCount = n
	return b
}

// Format sets the texel format.
func (b *ImageBuilder) Format(f capi.Format) *ImageBuilder {
	b.info.Format = f
	return b
}

// Usage replaces the usage flags.
func (b *ImageBuilder) Usage(u capi.ImageUsage) *ImageBuilder {
	b.info.Usage = u
	return b
}

// ExportSharing marks the image as exportable to other APIs.
func (b *ImageBuilder) ExportSharing(v bool) *ImageBuilder {
	b.info.ExportSharing = v
	return b
}

// Info returns the allocation descriptor built so far.
func (b *ImageBuilder) Info() capi.ImageAllocateInfo { return b.info }

// Build allocates the image. Extent consistency with the dimension is
// checked by the library.
func (b *ImageBuilder) Build() (*Image, error) {
	return b.rt.NewImage(b.info)
}

// NewImage allocates an image described by info.
func (rt *Runtime) NewImage(info capi.ImageAllocateInfo) (*Image, error) {
	if err := rt.check(); err != nil {
		return nil, err
	}
	r := rt.r
	h, err := callValue(r.lib, func() capi.Image { return r.lib.AllocateImage(r.handle, &info) })
	if err != nil {
		return nil, err
	}
	if h == capi.Null {
		return nil, newError(capi.ErrorInvalidState, "library returned a null image")
	}

	r.ref.acquire()
	i := &imageInner{rt: r, handle: h, info: info}
	i.ref.init(i.free)
	r.stats.images.Add(1)
	Logger().Debug("taichi: image allocated", "extent", info.Extent, "format", info.Format)
	return &Image{i: i}, nil
}

func (i *imageInner) free() {
	r := i.rt
	if err := call(r.lib, func() { r.lib.FreeImage(r.handle, i.handle) }); err != nil {
		Logger().Warn("taichi: free image", "err", err)
	}
	r.stats.images.Add(-1)
	r.ref.drop()
}

// Clone returns another handle to the same image.
func (img *Image) Clone() *Image {
	img.i.ref.acquire()
	return &Image{i: img.i}
}

// Close releases this handle. Further calls are no-ops.
func (img *Image) Close() {
	if img.close() {
		img.i.ref.drop()
	}
}

func (img *Image) check() error {
	if img.isClosed() {
		return errClosed("image")
	}
	return nil
}

// Handle returns the raw image handle.
func (img *Image) Handle() capi.Image { return img.i.handle }

// Dimension returns the image dimensionality.
func (img *Image) Dimension() capi.ImageDimension { return img.i.info.Dimension }

// Extent returns the image extent.
func (img *Image) Extent() capi.ImageExtent { return img.i.info.Extent }

// MipLevelCount returns the number of mip levels.
func (img *Image) MipLevelCount() uint32 { return img.i.info.MipLevelCount }

// Format returns the texel format.
func (img *Image) Format() capi.Format { return img.i.info.Format }

// Usage returns the usage flags.
func (img *Image) Usage() capi.ImageUsage { return img.i.info.Usage }

// ExportSharing reports whether the image is exportable.
func (img *Image) ExportSharing() bool { return img.i.info.ExportSharing }

// Region returns the full extent of a mip level as a copy region.
func (img *Image) Region(mipLevel uint32) ImageRegion {
	e := img.i.info.Extent
	w, h, d := e.Width>>mipLevel, e.Height>>mipLevel, e.Depth>>mipLevel
	return ImageRegion{
		Image:    img,
		Extent:   capi.ImageExtent{Width: max(w, 1), Height: max(h, 1), Depth: max(d, 1), ArrayLayerCount: e.ArrayLayerCount},
		MipLevel: mipLevel,
	}
}

// Transition records a layout transition of the image.
func (img *Image) Transition(layout capi.ImageLayout) error {
	if err := img.check(); err != nil {
		return err
	}
	i := img.i
	r := i.rt
	return call(r.lib, func() { r.lib.TransitionImage(r.handle, i.handle, layout) })
}

// Track tells the library which layout the image is in after it was used
// outside the runtime.
func (img *Image) Track(layout capi.ImageLayout) error {
	if err := img.check(); err != nil {
		return err
	}
	i := img.i
	r := i.rt
	return call(r.lib, func() { r.lib.TrackImage(r.handle, i.handle, layout) })
}
