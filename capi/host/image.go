package host

import (
	"github.com/gogpu/taichi/capi"
)

type image struct {
	rt     capi.Runtime
	info   capi.ImageAllocateInfo
	levels [][]byte
	layout capi.ImageLayout
}

func mipExtent(e capi.ImageExtent, level uint32) capi.ImageExtent {
	shrink := func(v uint32) uint32 {
		v >>= level
		if v == 0 {
			return 1
		}
		return v
	}
	return capi.ImageExtent{
		Width:           shrink(e.Width),
		Height:          shrink(e.Height),
		Depth:           shrink(e.Depth),
		ArrayLayerCount: e.ArrayLayerCount,
	}
}

func (img *image) size() uint64 {
	var n uint64
	for _, lv := range img.levels {
		n += uint64(len(lv))
	}
	return n
}

func validateImageInfo(info *capi.ImageAllocateInfo) (capi.Error, string) {
	e := info.Extent
	if e.Width == 0 || e.Height == 0 || e.Depth == 0 || e.ArrayLayerCount == 0 {
		return capi.ErrorInvalidArgument, "image extent must be positive in every axis"
	}
	if info.MipLevelCount == 0 {
		return capi.ErrorInvalidArgument, "image needs at least one mip level"
	}
	if info.Format.TexelSize() == 0 {
		return capi.ErrorNotSupported, "unsupported image format"
	}
	switch info.Dimension {
	case capi.ImageDimension1D:
		if e.Height != 1 || e.Depth != 1 || e.ArrayLayerCount != 1 {
			return capi.ErrorInvalidArgument, "1D image must have height, depth and layers of 1"
		}
	case capi.ImageDimension2D:
		if e.Depth != 1 || e.ArrayLayerCount != 1 {
			return capi.ErrorInvalidArgument, "2D image must have depth and layers of 1"
		}
	case capi.ImageDimension3D:
		if e.ArrayLayerCount != 1 {
			return capi.ErrorInvalidArgument, "3D image must have one layer"
		}
	case capi.ImageDimension1DArray:
		if e.Height != 1 || e.Depth != 1 {
			return capi.ErrorInvalidArgument, "1D array image must have height and depth of 1"
		}
	case capi.ImageDimension2DArray:
		if e.Depth != 1 {
			return capi.ErrorInvalidArgument, "2D array image must have depth of 1"
		}
	case capi.ImageDimensionCube:
		if e.Depth != 1 || e.ArrayLayerCount != 6 || e.Width != e.Height {
			return capi.ErrorInvalidArgument, "cube image must be square with 6 layers"
		}
	default:
		return capi.ErrorInvalidArgument, "unknown image dimension"
	}
	return capi.ErrorSuccess, ""
}

// AllocateImage implements capi.Library.
func (l *Library) AllocateImage(rtID capi.Runtime, info *capi.ImageAllocateInfo) capi.Image {
	l.begin()
	if info == nil {
		l.fail(capi.ErrorArgumentNull, "image allocate info is null")
		return capi.Null
	}
	if code, msg := validateImageInfo(info); code != capi.ErrorSuccess {
		l.fail(code, "%s", msg)
		return capi.Null
	}

	texel := uint64(info.Format.TexelSize())
	img := &image{rt: rtID, info: *info, levels: make([][]byte, info.MipLevelCount)}
	var total uint64
	for lv := range img.levels {
		total += mipExtent(info.Extent, uint32(lv)).Texels() * texel
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.runtimeLocked(rtID); !ok {
		return capi.Null
	}
	if !l.reserveLocked(total) {
		l.fail(capi.ErrorOutOfMemory, "allocating a %d byte image exceeds budget", total)
		return capi.Null
	}
	for lv := range img.levels {
		img.levels[lv] = alignedBytes(mipExtent(info.Extent, uint32(lv)).Texels() * texel)
	}
	id := capi.Image(l.newID())
	l.images[id] = img
	l.log().Debug("host: image allocated", "image", id, "bytes", total)
	return id
}

// FreeImage implements capi.Library.
func (l *Library) FreeImage(rtID capi.Runtime, id capi.Image) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	img, ok := l.imageLocked(rtID, id)
	if !ok {
		return
	}
	delete(l.images, id)
	l.usedBytes -= img.size()
	l.stats.imageFrees.Add(1)
}

// TrackImage implements capi.Library. It records the layout the image is
// already in without a transition.
func (l *Library) TrackImage(rtID capi.Runtime, id capi.Image, layout capi.ImageLayout) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	if img, ok := l.imageLocked(rtID, id); ok {
		img.layout = layout
	}
}

// TransitionImage implements capi.Library.
func (l *Library) TransitionImage(rtID capi.Runtime, id capi.Image, layout capi.ImageLayout) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return
	}
	img, ok := l.imageLocked(rtID, id)
	if !ok {
		return
	}
	rt.record("transition_image", func() error {
		img.layout = layout
		return nil
	})
}

// CopyImageDeviceToDevice implements capi.Library.
func (l *Library) CopyImageDeviceToDevice(rtID capi.Runtime, dst, src *capi.ImageSlice) {
	l.begin()
	if dst == nil || src == nil {
		l.fail(capi.ErrorArgumentNull, "image slice is null")
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return
	}
	di, ok := l.imageLocked(rtID, dst.Image)
	if !ok {
		return
	}
	si, ok := l.imageLocked(rtID, src.Image)
	if !ok {
		return
	}
	if di.info.Format.TexelSize() != si.info.Format.TexelSize() {
		l.fail(capi.ErrorInvalidArgument, "image copy between incompatible formats")
		return
	}
	if src.Extent != dst.Extent {
		l.fail(capi.ErrorInvalidArgument, "image copy extent mismatch")
		return
	}
	if !sliceInImage(src, si) || !sliceInImage(dst, di) {
		l.fail(capi.ErrorArgumentOutOfRange, "image copy region exceeds image")
		return
	}

	d, s := *dst, *src
	rt.record("copy_image", func() error {
		copyRegion(di, &d, si, &s)
		return nil
	})
}

func sliceInImage(s *capi.ImageSlice, img *image) bool {
	if s.MipLevel >= uint32(len(img.levels)) {
		return false
	}
	e := mipExtent(img.info.Extent, s.MipLevel)
	fits := func(off, n, max uint32) bool { return off <= max && n <= max-off }
	return fits(s.Offset.X, s.Extent.Width, e.Width) &&
		fits(s.Offset.Y, s.Extent.Height, e.Height) &&
		fits(s.Offset.Z, s.Extent.Depth, e.Depth) &&
		fits(s.Offset.ArrayLayer, s.Extent.ArrayLayerCount, e.ArrayLayerCount)
}

// copyRegion copies texel rows between two image regions of equal extent.
func copyRegion(dst *image, d *capi.ImageSlice, src *image, s *capi.ImageSlice) {
	texel := uint64(src.info.Format.TexelSize())
	de := mipExtent(dst.info.Extent, d.MipLevel)
	se := mipExtent(src.info.Extent, s.MipLevel)
	dl := dst.levels[d.MipLevel]
	sl := src.levels[s.MipLevel]
	row := uint64(s.Extent.Width) * texel

	offset := func(e capi.ImageExtent, o capi.ImageOffset, layer, z, y uint32) uint64 {
		idx := ((uint64(o.ArrayLayer+layer)*uint64(e.Depth)+uint64(o.Z+z))*uint64(e.Height)+uint64(o.Y+y))*uint64(e.Width) + uint64(o.X)
		return idx * texel
	}
	for layer := uint32(0); layer < s.Extent.ArrayLayerCount; layer++ {
		for z := uint32(0); z < s.Extent.Depth; z++ {
			for y := uint32(0); y < s.Extent.Height; y++ {
				so := offset(se, s.Offset, layer, z, y)
				do := offset(de, d.Offset, layer, z, y)
				copy(dl[do:do+row], sl[so:so+row])
			}
		}
	}
}

// imageLocked resolves an image handle owned by rtID. Must be called with mu
// held.
func (l *Library) imageLocked(rtID capi.Runtime, id capi.Image) (*image, bool) {
	if _, ok := l.runtimes[rtID]; !ok {
		l.failHandle(uint64(rtID), "runtime")
		return nil, false
	}
	img, ok := l.images[id]
	if !ok {
		l.failHandle(uint64(id), "image")
		return nil, false
	}
	if img.rt != rtID {
		l.fail(capi.ErrorInvalidArgument, "image %d belongs to another runtime", id)
		return nil, false
	}
	return img, true
}

type sampler struct {
	rt   capi.Runtime
	info capi.SamplerCreateInfo
}

// CreateSampler implements capi.Library.
func (l *Library) CreateSampler(rtID capi.Runtime, info *capi.SamplerCreateInfo) capi.Sampler {
	l.begin()
	if info == nil {
		l.fail(capi.ErrorArgumentNull, "sampler create info is null")
		return capi.Null
	}
	if info.MaxAnisotropy < 0 {
		l.fail(capi.ErrorArgumentOutOfRange, "max anisotropy %g is negative", info.MaxAnisotropy)
		return capi.Null
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.runtimeLocked(rtID); !ok {
		return capi.Null
	}
	id := capi.Sampler(l.newID())
	l.samplers[id] = &sampler{rt: rtID, info: *info}
	return id
}

// DestroySampler implements capi.Library.
func (l *Library) DestroySampler(rtID capi.Runtime, id capi.Sampler) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.runtimeLocked(rtID); !ok {
		return
	}
	s, ok := l.samplers[id]
	if !ok {
		l.failHandle(uint64(id), "sampler")
		return
	}
	if s.rt != rtID {
		l.fail(capi.ErrorInvalidArgument, "sampler %d belongs to another runtime", id)
		return
	}
	delete(l.samplers, id)
	l.stats.samplerDestroys.Add(1)
}
