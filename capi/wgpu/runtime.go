//go:build !nogpu

package wgpu

import (
	"fmt"
	"slices"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/taichi/capi"
)

// defaultCapabilities are reported by runtimes created without an override.
// naga emits SPIR-V 1.3 with 32-bit types only.
var defaultCapabilities = []capi.CapabilityLevelInfo{
	{Capability: capi.CapabilitySpirvVersion, Level: 0x10300},
}

// command is a recorded device operation, encoded at flush time.
type command struct {
	name   string
	encode func(*frame) error
}

type runtime struct {
	id   capi.Runtime
	arch capi.Arch
	caps []capi.CapabilityLevelInfo

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  string
	// external is set for runtimes built on a device owned by the caller.
	external bool

	recorded []command
	inflight []*frame
}

// CreateRuntime implements capi.Library.
func (l *Library) CreateRuntime(arch capi.Arch, deviceIndex uint32) capi.Runtime {
	return l.CreateRuntimeExt(arch, deviceIndex, nil)
}

// CreateRuntimeExt implements capi.RuntimeCreatorExt. deviceIndex selects the
// adapter in enumeration order.
func (l *Library) CreateRuntimeExt(arch capi.Arch, deviceIndex uint32, capabilities []capi.CapabilityLevelInfo) capi.Runtime {
	l.begin()
	if arch != capi.ArchVulkan {
		l.fail(capi.ErrorNotSupported, "arch %s is not supported by the wgpu device", arch)
		return capi.Null
	}
	instance, err := l.newInstance(arch)
	if err != nil {
		l.fail(capi.ErrorNotSupported, "create instance: %v", err)
		return capi.Null
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		l.fail(capi.ErrorNotSupported, "no GPU adapters found")
		return capi.Null
	}
	if int(deviceIndex) >= len(adapters) {
		instance.Destroy()
		l.fail(capi.ErrorArgumentOutOfRange, "device index %d out of range: %d adapters", deviceIndex, len(adapters))
		return capi.Null
	}
	selected := &adapters[deviceIndex]
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		l.fail(capi.ErrorInvalidState, "open device: %v", err)
		return capi.Null
	}

	rt := &runtime{
		arch:     arch,
		instance: instance,
		device:   openDev.Device,
		queue:    openDev.Queue,
		adapter:  selected.Info.Name,
	}
	return l.addRuntime(rt, capabilities)
}

// ImportRuntime implements capi.RuntimeImporter. device must expose the HAL
// device and queue through HalDevice and HalQueue methods, as the
// gpucontext.DeviceProvider of a gogpu application does. The device stays
// owned by the caller.
func (l *Library) ImportRuntime(arch capi.Arch, device any) capi.Runtime {
	l.begin()
	if arch != capi.ArchVulkan {
		l.fail(capi.ErrorNotSupported, "arch %s is not supported by the wgpu device", arch)
		return capi.Null
	}
	if device == nil {
		l.fail(capi.ErrorArgumentNull, "native device is nil")
		return capi.Null
	}
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := device.(halProvider)
	if !ok {
		l.fail(capi.ErrorInvalidInterop, "%T does not expose HAL types", device)
		return capi.Null
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		l.fail(capi.ErrorInvalidInterop, "provider HalDevice is not hal.Device")
		return capi.Null
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		l.fail(capi.ErrorInvalidInterop, "provider HalQueue is not hal.Queue")
		return capi.Null
	}

	name := "external"
	if p, ok := device.(gpucontext.DeviceProvider); ok && p.Adapter() != nil {
		name = fmt.Sprintf("%T", p.Adapter())
	}
	rt := &runtime{arch: arch, device: dev, queue: queue, adapter: name, external: true}
	return l.addRuntime(rt, nil)
}

func (l *Library) addRuntime(rt *runtime, capabilities []capi.CapabilityLevelInfo) capi.Runtime {
	caps := defaultCapabilities
	if capabilities != nil {
		caps = capabilities
	}
	rt.caps = slices.Clone(caps)
	rt.id = capi.Runtime(l.newID())

	l.mu.Lock()
	l.runtimes[rt.id] = rt
	l.mu.Unlock()

	l.log().Info("wgpu: runtime created", "runtime", rt.id, "adapter", rt.adapter, "external", rt.external)
	return rt.id
}

// DestroyRuntime implements capi.Library. Pending work is waited for and
// objects still owned by the runtime are released with it.
func (l *Library) DestroyRuntime(id capi.Runtime) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimes[id]
	if !ok {
		l.failHandle(uint64(id), "runtime")
		return
	}
	if n := len(rt.recorded); n > 0 {
		l.log().Warn("wgpu: runtime destroyed with unsubmitted commands", "runtime", id, "commands", n)
	}
	if err := l.waitLocked(rt); err != nil {
		l.log().Warn("wgpu: wait on destroy", "runtime", id, "err", err)
	}
	delete(l.runtimes, id)

	leaked := 0
	for h, m := range l.modules {
		if m.rt == id {
			l.dropModuleLocked(h, m)
			leaked++
		}
	}
	for h, m := range l.memories {
		if m.rt == id {
			rt.device.DestroyBuffer(m.buf)
			delete(l.memories, h)
			leaked++
		}
	}
	for h, img := range l.images {
		if img.rt == id {
			rt.device.DestroyTexture(img.tex)
			delete(l.images, h)
			leaked++
		}
	}
	for h, s := range l.samplers {
		if s.rt == id {
			rt.device.DestroySampler(s.s)
			delete(l.samplers, h)
			leaked++
		}
	}
	for h, e := range l.events {
		if e.rt == id {
			delete(l.events, h)
			leaked++
		}
	}
	if leaked > 0 {
		l.log().Warn("wgpu: runtime destroyed with live objects", "runtime", id, "objects", leaked)
	}

	if !rt.external {
		rt.device.Destroy()
		rt.instance.Destroy()
	}
	l.log().Debug("wgpu: runtime destroyed", "runtime", id)
}

// GetRuntimeCapabilities implements capi.Library.
func (l *Library) GetRuntimeCapabilities(id capi.Runtime) []capi.CapabilityLevelInfo {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(id)
	if !ok {
		return nil
	}
	return slices.Clone(rt.caps)
}

// runtimeLocked resolves a runtime handle. Must be called with mu held.
func (l *Library) runtimeLocked(id capi.Runtime) (*runtime, bool) {
	rt, ok := l.runtimes[id]
	if !ok {
		l.failHandle(uint64(id), "runtime")
		return nil, false
	}
	return rt, true
}

// record appends a command to the runtime's open command list.
func (rt *runtime) record(name string, encode func(*frame) error) {
	rt.recorded = append(rt.recorded, command{name: name, encode: encode})
}
