package taichi

import (
	"github.com/gogpu/taichi/capi"
)

type samplerInner struct {
	ref    shared
	rt     *runtimeInner
	handle capi.Sampler
	info   capi.SamplerCreateInfo
}

// Sampler is a shared handle to an image sampler.
type Sampler struct {
	handle
	s *samplerInner
}

// SamplerBuilder describes a sampler. Defaults: nearest filtering, repeat
// addressing, no anisotropy.
type SamplerBuilder struct {
	rt   *Runtime
	info capi.SamplerCreateInfo
}

// CreateSampler starts describing a sampler on rt.
func (rt *Runtime) CreateSampler() *SamplerBuilder {
	return &SamplerBuilder{rt: rt}
}

// MagFilter sets the magnification filter.
func (b *SamplerBuilder) MagFilter(f capi.Filter) *SamplerBuilder {
	b.info.MagFilter = f
	return b
}

// MinFilter sets the minification filter.
func (b *SamplerBuilder) MinFilter(f capi.Filter) *SamplerBuilder {
	b.info.MinFilter = f
	return b
}

// Filter sets both filters.
func (b *SamplerBuilder) Filter(f capi.Filter) *SamplerBuilder {
	b.info.MagFilter = f
	b.info.MinFilter = f
	return b
}

// AddressMode sets the address mode of every axis.
func (b *SamplerBuilder) AddressMode(m capi.AddressMode) *SamplerBuilder {
	b.info.AddressMode = m
	return b
}

// MaxAnisotropy sets the anisotropy clamp.
func (b *SamplerBuilder) MaxAnisotropy(v float32) *SamplerBuilder {
	b.info.MaxAnisotropy = v
	return b
}

// Build creates the sampler.
func (b *SamplerBuilder) Build() (*Sampler, error) {
	rt := b.rt
	if err := rt.check(); err != nil {
		return nil, err
	}
	r := rt.r
	info := b.info
	h, err := callValue(r.lib, func() capi.Sampler { return r.lib.CreateSampler(r.handle, &info) })
	if err != nil {
		return nil, err
	}
	if h == capi.Null {
		return nil, newError(capi.ErrorInvalidState, "library returned a null sampler")
	}

	r.ref.acquire()
	s := &samplerInner{rt: r, handle: h, info: info}
	s.ref.init(s.destroy)
	r.stats.samplers.Add(1)
	return &Sampler{s: s}, nil
}

func (s *samplerInner) destroy() {
	r := s.rt
	if err := call(r.lib, func() { r.lib.DestroySampler(r.handle, s.handle) }); err != nil {
		Logger().Warn("taichi: destroy sampler", "err", err)
	}
	r.stats.samplers.Add(-1)
	r.ref.drop()
}

// Clone returns another handle to the same sampler.
func (s *Sampler) Clone() *Sampler {
	s.s.ref.acquire()
	return &Sampler{s: s.s}
}

// Close releases this handle. Further calls are no-ops.
func (s *Sampler) Close() {
	if s.close() {
		s.s.ref.drop()
	}
}

// Handle returns the raw sampler handle.
func (s *Sampler) Handle() capi.Sampler { return s.s.handle }

// Info returns the sampler descriptor.
func (s *Sampler) Info() capi.SamplerCreateInfo { return s.s.info }
