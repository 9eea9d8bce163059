package taichi

import (
	"testing"

	"github.com/gogpu/taichi/capi"
	"github.com/gogpu/taichi/capi/host"
)

func TestNewRuntime(t *testing.T) {
	rt, _ := newHostRuntime(t)
	if rt.Arch() != capi.ArchX64 {
		t.Errorf("Arch() = %s, want x64", rt.Arch())
	}
	if got := rt.LibraryVersion().String(); got != "1.7.0" {
		t.Errorf("LibraryVersion() = %s, want 1.7.0", got)
	}
	caps, err := rt.Capabilities()
	if err != nil {
		t.Fatalf("Capabilities() error = %v", err)
	}
	if caps[capi.CapabilitySpirvHasFloat64] != 1 {
		t.Errorf("Capabilities()[spirv_has_float64] = %d, want 1", caps[capi.CapabilitySpirvHasFloat64])
	}
}

func TestNewRuntimeErrors(t *testing.T) {
	lib := host.New()
	t.Cleanup(func() { libraries.Delete(lib) })

	tests := []struct {
		name string
		arch capi.Arch
		opts []RuntimeOption
		want capi.Error
	}{
		{"unsupported arch", capi.ArchVulkan, nil, capi.ErrorNotSupported},
		{"device index", capi.ArchX64, []RuntimeOption{WithDeviceIndex(1)}, capi.ErrorArgumentOutOfRange},
		{"native device", capi.ArchX64, []RuntimeOption{WithNativeDevice(struct{}{})}, capi.ErrorNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]RuntimeOption{WithLibrary(lib)}, tt.opts...)
			rt, err := NewRuntime(tt.arch, opts...)
			if err == nil {
				rt.Close()
				t.Fatal("NewRuntime() succeeded")
			}
			wantCode(t, err, tt.want)
		})
	}
}

func TestNewRuntimeCapabilities(t *testing.T) {
	lib := host.New()
	t.Cleanup(func() { libraries.Delete(lib) })
	rt, err := NewRuntime(capi.ArchArm64, WithLibrary(lib),
		WithCapabilities(capi.CapabilityLevelInfo{Capability: capi.CapabilitySpirvVersion, Level: 0x10500}))
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	defer rt.Close()

	caps, err := rt.Capabilities()
	if err != nil {
		t.Fatalf("Capabilities() error = %v", err)
	}
	if len(caps) != 1 || caps[capi.CapabilitySpirvVersion] != 0x10500 {
		t.Errorf("Capabilities() = %v, want only spirv_version", caps)
	}
}

func TestRuntimeCloneAndClose(t *testing.T) {
	rt, lib := newHostRuntime(t)
	c := rt.Clone()

	rt.Close()
	rt.Close()
	if got := lib.Stats().RuntimeDestroys; got != 0 {
		t.Fatalf("RuntimeDestroys after first Close = %d, want 0", got)
	}
	if _, err := rt.AllocateMemory().Size(4).Build(); !IsCode(err, capi.ErrorInvalidState) {
		t.Errorf("AllocateMemory on closed handle error = %v, want invalid state", err)
	}

	c.Close()
	if got := lib.Stats().RuntimeDestroys; got != 1 {
		t.Errorf("RuntimeDestroys = %d, want 1", got)
	}
}

// Resources keep their runtime alive and every object is released exactly
// once, whatever order the handles are closed in.
func TestRuntimeOutlivedByResources(t *testing.T) {
	rt, lib := newHostRuntime(t)

	mem, err := rt.AllocateMemory().Size(64).HostAccess(true).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	mod, err := rt.LoadModule(chessBoardModule)
	if err != nil {
		t.Fatalf("LoadModule() error = %v", err)
	}
	g, err := mod.ComputeGraph("g_run")
	if err != nil {
		t.Fatalf("ComputeGraph() error = %v", err)
	}

	rt.Close()
	mod.Close()
	if s := lib.Stats(); s.RuntimeDestroys != 0 || s.ModuleDestroys != 0 {
		t.Fatalf("released too early: %v", s)
	}

	mem.Close()
	if got := lib.Stats().MemoryFrees; got != 1 {
		t.Errorf("MemoryFrees = %d, want 1", got)
	}
	g.Close()
	g.Close()
	s := lib.Stats()
	if s.ModuleDestroys != 1 || s.RuntimeDestroys != 1 {
		t.Errorf("ModuleDestroys = %d, RuntimeDestroys = %d, want 1 and 1", s.ModuleDestroys, s.RuntimeDestroys)
	}
	if s.Runtimes != 0 || s.Memories != 0 || s.Modules != 0 {
		t.Errorf("live objects remain: %v", s)
	}
}

func TestRuntimeStats(t *testing.T) {
	rt, _ := newHostRuntime(t)

	mem, err := rt.AllocateMemory().Size(128).Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	ev, err := rt.CreateEvent()
	if err != nil {
		t.Fatalf("CreateEvent() error = %v", err)
	}
	if err := rt.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if err := rt.Wait(); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	s := rt.Stats()
	if s.Memories != 1 || s.MemoryBytes != 128 || s.Events != 1 {
		t.Errorf("Stats() = %+v", s)
	}
	if s.Submits != 1 || s.Waits != 1 {
		t.Errorf("Submits = %d, Waits = %d, want 1 and 1", s.Submits, s.Waits)
	}

	mem.Close()
	ev.Close()
	s = rt.Stats()
	if s.Memories != 0 || s.MemoryBytes != 0 || s.Events != 0 {
		t.Errorf("Stats() after close = %+v", s)
	}
}

func TestVersionFromUint32(t *testing.T) {
	v := VersionFromUint32(1_004_002)
	if v != (Version{Major: 1, Minor: 4, Patch: 2}) {
		t.Errorf("VersionFromUint32() = %+v", v)
	}
	if v.Uint32() != 1_004_002 {
		t.Errorf("Uint32() = %d", v.Uint32())
	}
	if v.String() != "1.4.2" {
		t.Errorf("String() = %q", v.String())
	}
}
