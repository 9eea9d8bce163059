//go:build !nogpu

package wgpu

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/taichi/capi"
)

type image struct {
	rt     capi.Runtime
	info   capi.ImageAllocateInfo
	tex    hal.Texture
	layout capi.ImageLayout
}

type sampler struct {
	rt   capi.Runtime
	info capi.SamplerCreateInfo
	s    hal.Sampler
}

// AllocateImage implements capi.Library.
func (l *Library) AllocateImage(rtID capi.Runtime, info *capi.ImageAllocateInfo) capi.Image {
	l.begin()
	if info == nil {
		l.fail(capi.ErrorArgumentNull, "image allocate info is nil")
		return capi.Null
	}
	format, ok := textureFormat(info.Format)
	if !ok {
		l.fail(capi.ErrorNotSupported, "format %d is not supported by the wgpu device", info.Format)
		return capi.Null
	}
	dim, ok := textureDimension(info.Dimension)
	if !ok {
		l.fail(capi.ErrorInvalidArgument, "unknown image dimension %d", info.Dimension)
		return capi.Null
	}
	e := info.Extent
	if e.Width == 0 || e.Height == 0 || e.Depth == 0 || e.ArrayLayerCount == 0 || info.MipLevelCount == 0 {
		l.fail(capi.ErrorInvalidArgument, "image extent %dx%dx%d layers %d mips %d has a zero component",
			e.Width, e.Height, e.Depth, e.ArrayLayerCount, info.MipLevelCount)
		return capi.Null
	}
	depth := e.Depth
	if e.ArrayLayerCount > 1 {
		depth = e.ArrayLayerCount
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return capi.Null
	}
	tex, err := rt.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "taichi_image",
		Size:          hal.Extent3D{Width: e.Width, Height: e.Height, DepthOrArrayLayers: depth},
		MipLevelCount: info.MipLevelCount,
		SampleCount:   1,
		Dimension:     dim,
		Format:        format,
		Usage:         textureUsage(info.Usage),
	})
	if err != nil {
		l.fail(capi.ErrorOutOfMemory, "create texture: %v", err)
		return capi.Null
	}
	id := capi.Image(l.newID())
	l.images[id] = &image{rt: rtID, info: *info, tex: tex}
	return id
}

// FreeImage implements capi.Library.
func (l *Library) FreeImage(rtID capi.Runtime, id capi.Image) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, img, ok := l.imageLocked(rtID, id)
	if !ok {
		return
	}
	if err := l.waitLocked(rt); err != nil {
		l.log().Warn("wgpu: wait before free", "image", id, "err", err)
	}
	rt.device.DestroyTexture(img.tex)
	delete(l.images, id)
}

// TrackImage implements capi.Library. It records the layout the image is in
// without a device command.
func (l *Library) TrackImage(rtID capi.Runtime, id capi.Image, layout capi.ImageLayout) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, img, ok := l.imageLocked(rtID, id); ok {
		img.layout = layout
	}
}

// TransitionImage implements capi.Library.
func (l *Library) TransitionImage(rtID capi.Runtime, id capi.Image, layout capi.ImageLayout) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, img, ok := l.imageLocked(rtID, id)
	if !ok {
		return
	}
	barrier := hal.TextureBarrier{
		Texture: img.tex,
		Usage: hal.TextureUsageTransition{
			OldUsage: layoutUsage(img.layout),
			NewUsage: layoutUsage(layout),
		},
	}
	img.layout = layout
	rt.record("transition_image", func(f *frame) error {
		f.enc.TransitionTextures([]hal.TextureBarrier{barrier})
		return nil
	})
}

// CopyImageDeviceToDevice implements capi.Library. Texture to texture
// copies are not exposed by the HAL encoder.
func (l *Library) CopyImageDeviceToDevice(rtID capi.Runtime, dst, src *capi.ImageSlice) {
	l.begin()
	if dst == nil || src == nil {
		l.fail(capi.ErrorArgumentNull, "image slice is nil")
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, _, ok := l.imageLocked(rtID, dst.Image); !ok {
		return
	}
	if _, _, ok := l.imageLocked(rtID, src.Image); !ok {
		return
	}
	l.fail(capi.ErrorNotSupported, "image copies are not supported by the wgpu device")
}

// CreateSampler implements capi.Library.
func (l *Library) CreateSampler(rtID capi.Runtime, info *capi.SamplerCreateInfo) capi.Sampler {
	l.begin()
	if info == nil {
		l.fail(capi.ErrorArgumentNull, "sampler create info is nil")
		return capi.Null
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return capi.Null
	}
	mode := addressMode(info.AddressMode)
	s, err := rt.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "taichi_sampler",
		AddressModeU: mode,
		AddressModeV: mode,
		AddressModeW: mode,
		MagFilter:    filterMode(info.MagFilter),
		MinFilter:    filterMode(info.MinFilter),
		MipmapFilter: filterMode(info.MinFilter),
	})
	if err != nil {
		l.fail(capi.ErrorInvalidState, "create sampler: %v", err)
		return capi.Null
	}
	id := capi.Sampler(l.newID())
	l.samplers[id] = &sampler{rt: rtID, info: *info, s: s}
	return id
}

// DestroySampler implements capi.Library.
func (l *Library) DestroySampler(rtID capi.Runtime, id capi.Sampler) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return
	}
	s, ok := l.samplers[id]
	if !ok || s.rt != rtID {
		l.failHandle(uint64(id), "sampler")
		return
	}
	rt.device.DestroySampler(s.s)
	delete(l.samplers, id)
}

// imageLocked resolves an image handle owned by rtID. Must be called with mu
// held.
func (l *Library) imageLocked(rtID capi.Runtime, id capi.Image) (*runtime, *image, bool) {
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return nil, nil, false
	}
	img, ok := l.images[id]
	if !ok {
		l.failHandle(uint64(id), "image")
		return nil, nil, false
	}
	if img.rt != rtID {
		l.fail(capi.ErrorInvalidArgument, "image %d belongs to another runtime", id)
		return nil, nil, false
	}
	return rt, img, true
}
