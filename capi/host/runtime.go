// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package host

import (
	"slices"

	"github.com/gogpu/taichi/capi"
)

// defaultCapabilities are reported by runtimes created without an override.
var defaultCapabilities = []capi.CapabilityLevelInfo{
	{Capability: capi.CapabilitySpirvHasInt8, Level: 1},
	{Capability: capi.CapabilitySpirvHasInt16, Level: 1},
	{Capability: capi.CapabilitySpirvHasInt64, Level: 1},
	{Capability: capi.CapabilitySpirvHasFloat16, Level: 1},
	{Capability: capi.CapabilitySpirvHasFloat64, Level: 1},
}

// command is a recorded device operation.
type command struct {
	name string
	run  func() error
}

type runtime struct {
	id   capi.Runtime
	arch capi.Arch
	caps []capi.CapabilityLevelInfo

	// recorded holds commands launched since the last flush, submitted
	// holds flushed commands not yet executed.
	recorded  []command
	submitted []command
}

// CreateRuntime implements capi.Library.
func (l *Library) CreateRuntime(arch capi.Arch, deviceIndex uint32) capi.Runtime {
	return l.CreateRuntimeExt(arch, deviceIndex, nil)
}

// CreateRuntimeExt implements capi.RuntimeCreatorExt. A non-nil capability
// list replaces the reported capabilities.
func (l *Library) CreateRuntimeExt(arch capi.Arch, deviceIndex uint32, capabilities []capi.CapabilityLevelInfo) capi.Runtime {
	l.begin()
	if !slices.Contains(l.GetAvailableArchs(), arch) {
		l.fail(capi.ErrorNotSupported, "arch %s is not supported by the host device", arch)
		return capi.Null
	}
	if deviceIndex != 0 {
		l.fail(capi.ErrorArgumentOutOfRange, "device index %d out of range: host has 1 device", deviceIndex)
		return capi.Null
	}

	caps := defaultCapabilities
	if capabilities != nil {
		caps = capabilities
	}
	rt := &runtime{
		id:   capi.Runtime(l.newID()),
		arch: arch,
		caps: slices.Clone(caps),
	}

	l.mu.Lock()
	l.runtimes[rt.id] = rt
	l.mu.Unlock()

	l.log().Debug("host: runtime created", "runtime", rt.id, "arch", arch)
	return rt.id
}

// DestroyRuntime implements capi.Library. Objects still owned by the
// runtime are released with it.
func (l *Library) DestroyRuntime(id capi.Runtime) {
	l.begin()
	l.mu.Lock()
	rt, ok := l.runtimes[id]
	if !ok {
		l.mu.Unlock()
		l.failHandle(uint64(id), "runtime")
		return
	}
	delete(l.runtimes, id)

	leaked := 0
	for h, m := range l.memories {
		if m.rt == id {
			l.usedBytes -= uint64(len(m.data))
			delete(l.memories, h)
			leaked++
		}
	}
	for h, img := range l.images {
		if img.rt == id {
			l.usedBytes -= img.size()
			delete(l.images, h)
			leaked++
		}
	}
	for h, s := range l.samplers {
		if s.rt == id {
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
	for h, m := range l.modules {
		if m.rt == id {
			l.dropModuleLocked(h, m)
			leaked++
		}
	}
	l.mu.Unlock()

	if leaked > 0 {
		l.log().Warn("host: runtime destroyed with live objects", "runtime", id, "objects", leaked)
	}
	if n := len(rt.recorded) + len(rt.submitted); n > 0 {
		l.log().Warn("host: runtime destroyed with pending commands", "runtime", id, "commands", n)
	}
	l.stats.runtimeDestroys.Add(1)
}

// GetRuntimeCapabilities implements capi.Library.
func (l *Library) GetRuntimeCapabilities(id capi.Runtime) []capi.CapabilityLevelInfo {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimes[id]
	if !ok {
		l.failHandle(uint64(id), "runtime")
		return nil
	}
	return slices.Clone(rt.caps)
}

// Flush implements capi.Library.
func (l *Library) Flush(id capi.Runtime) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimes[id]
	if !ok {
		l.failHandle(uint64(id), "runtime")
		return
	}
	l.flushLocked(rt)
}

func (l *Library) flushLocked(rt *runtime) {
	if len(rt.recorded) == 0 {
		return
	}
	rt.submitted = append(rt.submitted, rt.recorded...)
	rt.recorded = nil
	l.stats.submits.Add(1)
}

// Wait implements capi.Library. Submitted commands execute in submission
// order; the first failure is reported and the remaining commands of the
// batch are dropped.
func (l *Library) Wait(id capi.Runtime) {
	l.begin()
	l.mu.Lock()
	rt, ok := l.runtimes[id]
	if !ok {
		l.mu.Unlock()
		l.failHandle(uint64(id), "runtime")
		return
	}
	l.flushLocked(rt)
	batch := rt.submitted
	rt.submitted = nil
	l.mu.Unlock()

	for i, cmd := range batch {
		if err := cmd.run(); err != nil {
			l.failErr(err)
			l.log().Warn("host: command failed", "runtime", id, "command", cmd.name,
				"dropped", len(batch)-i-1, "err", err)
			return
		}
	}
}

// record appends a command to the runtime's open command list.
// Must be called with mu held.
func (rt *runtime) record(name string, run func() error) {
	rt.recorded = append(rt.recorded, command{name: name, run: run})
}

// runtimeLocked resolves a runtime handle. Must be called with mu held.
func (l *Library) runtimeLocked(id capi.Runtime) (*runtime, bool) {
	rt, ok := l.runtimes[id]
	if !ok {
		l.failHandle(uint64(id), "runtime")
	}
	return rt, ok
}

// failHandle reports a null or unknown handle.
func (l *Library) failHandle(h uint64, kind string) {
	if h == capi.Null {
		l.fail(capi.ErrorArgumentNull, "%s handle is null", kind)
		return
	}
	l.fail(capi.ErrorInvalidArgument, "unknown %s handle %d", kind, h)
}
