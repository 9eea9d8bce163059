package taichi

import (
	"testing"

	"github.com/gogpu/taichi/capi"
)

func TestImage(t *testing.T) {
	rt, lib := newHostRuntime(t)
	img, err := rt.AllocateImage().Width(8).Height(4).MipLevels(2).Format(capi.FormatR32F).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if img.Dimension() != capi.ImageDimension2D || img.MipLevelCount() != 2 || img.Format() != capi.FormatR32F {
		t.Errorf("image = %v %d %v", img.Dimension(), img.MipLevelCount(), img.Format())
	}
	if got := lib.Stats().UsedBytes; got != (8*4+4*2)*4 {
		t.Errorf("UsedBytes = %d, want %d", got, (8*4+4*2)*4)
	}

	r := img.Region(1)
	if r.Extent.Width != 4 || r.Extent.Height != 2 || r.Extent.Depth != 1 {
		t.Errorf("Region(1) extent = %+v", r.Extent)
	}

	if err := img.Transition(capi.ImageLayoutShaderReadWrite); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if err := img.Track(capi.ImageLayoutShaderRead); err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if err := rt.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	img.Close()
	if s := lib.Stats(); s.ImageFrees != 1 || s.UsedBytes != 0 {
		t.Errorf("after Close: %v", s)
	}
	wantCode(t, img.Transition(capi.ImageLayoutShaderRead), capi.ErrorInvalidState)
}

func TestImageErrors(t *testing.T) {
	rt, _ := newHostRuntime(t)

	_, err := rt.AllocateImage().Width(0).Build()
	wantCode(t, err, capi.ErrorInvalidArgument)

	_, err = rt.AllocateImage().Dimension(capi.ImageDimensionCube).Width(4).Height(4).Build()
	wantCode(t, err, capi.ErrorInvalidArgument)

	_, err = rt.AllocateImage().Format(capi.FormatUnknown).Build()
	wantCode(t, err, capi.ErrorNotSupported)
}

func TestCopyImage(t *testing.T) {
	rt, _ := newHostRuntime(t)
	a, err := rt.AllocateImage().Width(4).Height(4).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer a.Close()
	b, err := rt.AllocateImage().Width(4).Height(4).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer b.Close()

	if err := rt.CopyImage(b.Region(0), a.Region(0)); err != nil {
		t.Fatalf("CopyImage() error = %v", err)
	}
	if err := rt.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	small := a.Region(0)
	small.Extent.Width = 2
	wantCode(t, rt.CopyImage(b.Region(0), small), capi.ErrorInvalidArgument)

	moved := b.Region(0)
	moved.Offset.X = 1
	wantCode(t, rt.CopyImage(moved, a.Region(0)), capi.ErrorArgumentOutOfRange)

	wantCode(t, rt.CopyImage(ImageRegion{}, a.Region(0)), capi.ErrorArgumentNull)
}

func TestTexture(t *testing.T) {
	rt, lib := newHostRuntime(t)
	s, err := rt.CreateSampler().Filter(capi.FilterLinear).AddressMode(capi.AddressModeClampToEdge).Build()
	if err != nil {
		t.Fatalf("CreateSampler() error = %v", err)
	}
	tex, err := rt.AllocateTexture().Width(16).Height(16).Sampler(s).Build()
	if err != nil {
		t.Fatalf("AllocateTexture() error = %v", err)
	}
	s.Close()

	d := tex.Descriptor()
	if d.Image != tex.Image().Handle() || d.Sampler != tex.Sampler().Handle() {
		t.Errorf("Descriptor() = %+v", d)
	}
	if d.Extent.Width != 16 || d.Format != capi.FormatRGBA8 {
		t.Errorf("Descriptor() extent %+v format %v", d.Extent, d.Format)
	}
	if info := tex.Sampler().Info(); info.MagFilter != capi.FilterLinear || info.MinFilter != capi.FilterLinear {
		t.Errorf("sampler info = %+v", info)
	}

	arg := TextureArgument(tex)
	held, err := arg.retain()
	if err != nil {
		t.Fatalf("retain() error = %v", err)
	}
	tex.Close()
	tex.Close()
	if st := lib.Stats(); st.ImageFrees != 0 || st.SamplerDestroys != 0 {
		t.Fatalf("released while an argument holds the texture: %v", st)
	}
	held.release()
	if st := lib.Stats(); st.ImageFrees != 1 || st.SamplerDestroys != 1 {
		t.Errorf("ImageFrees = %d, SamplerDestroys = %d, want 1 and 1", st.ImageFrees, st.SamplerDestroys)
	}
	if _, err := arg.retain(); !IsCode(err, capi.ErrorInvalidState) {
		t.Errorf("retain() of closed texture error = %v", err)
	}
}

func TestNewTextureClosedHandles(t *testing.T) {
	rt, lib := newHostRuntime(t)
	img, err := rt.AllocateImage().Build()
	if err != nil {
		t.Fatalf("AllocateImage() error = %v", err)
	}
	s, err := rt.CreateSampler().Build()
	if err != nil {
		t.Fatalf("CreateSampler() error = %v", err)
	}

	tex, err := NewTexture(img, s)
	if err != nil {
		t.Fatalf("NewTexture() error = %v", err)
	}
	clone, err := tex.Clone()
	if err != nil {
		t.Fatalf("Clone() error = %v", err)
	}
	tex.Close()
	if _, err := tex.Clone(); !IsCode(err, capi.ErrorInvalidState) {
		t.Errorf("Clone() of closed texture error = %v, want InvalidState", err)
	}
	clone.Close()

	s.Close()
	if _, err := NewTexture(img, s); !IsCode(err, capi.ErrorInvalidState) {
		t.Errorf("NewTexture(closed sampler) error = %v, want InvalidState", err)
	}
	img.Close()
	if _, err := NewTexture(img, nil); !IsCode(err, capi.ErrorInvalidState) {
		t.Errorf("NewTexture(closed image) error = %v, want InvalidState", err)
	}
	if _, err := NewTexture(nil, nil); !IsCode(err, capi.ErrorArgumentNull) {
		t.Errorf("NewTexture(nil) error = %v, want ArgumentNull", err)
	}
	if st := lib.Stats(); st.ImageFrees != 1 || st.SamplerDestroys != 1 {
		t.Errorf("ImageFrees = %d, SamplerDestroys = %d, want 1 and 1", st.ImageFrees, st.SamplerDestroys)
	}
}

func TestEvents(t *testing.T) {
	rt, lib := newHostRuntime(t)
	ev, err := rt.CreateEvent()
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}

	if err := ev.Signal(); err != nil {
		t.Fatalf("Signal() error = %v", err)
	}
	if err := ev.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if err := rt.Wait(); err != nil {
		t.Fatalf("runtime Wait() error = %v", err)
	}

	// Waiting on a reset event fails when the batch executes.
	if err := ev.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	if err := ev.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	wantCode(t, rt.Wait(), capi.ErrorInvalidState)

	c := ev.Clone()
	ev.Close()
	if got := lib.Stats().EventDestroys; got != 0 {
		t.Fatalf("EventDestroys = %d, want 0", got)
	}
	c.Close()
	if got := lib.Stats().EventDestroys; got != 1 {
		t.Errorf("EventDestroys = %d, want 1", got)
	}
	wantCode(t, ev.Signal(), capi.ErrorInvalidState)
}

func TestEventsAcrossRuntimes(t *testing.T) {
	rt, lib := newHostRuntime(t)
	other, err := NewRuntime(capi.ArchX64, WithLibrary(lib))
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	defer other.Close()

	ev, err := other.CreateEvent()
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	defer ev.Close()

	err = call(lib, func() { lib.SignalEvent(rt.Handle(), ev.Handle()) })
	wantCode(t, err, capi.ErrorInvalidArgument)
}
