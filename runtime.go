// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package taichi

import (
	"errors"
	"sync/atomic"

	"github.com/gogpu/taichi/capi"
)

type runtimeInner struct {
	ref         shared
	lib         capi.Library
	handle      capi.Runtime
	arch        capi.Arch
	deviceIndex uint32
	stats       runtimeCounters
}

// Runtime is a shared handle to a backend runtime instance.
//
// A Runtime is meant to be driven from one goroutine at a time. Handles may
// be cloned and closed from any goroutine: the instance is destroyed once
// every handle and every resource created from it has been closed.
type Runtime struct {
	handle
	r *runtimeInner
}

// NewRuntime creates a runtime for arch using the registered library for it
// unless WithLibrary is given.
func NewRuntime(arch capi.Arch, opts ...RuntimeOption) (*Runtime, error) {
	o := defaultRuntimeOptions()
	for _, opt := range opts {
		opt(&o)
	}

	lib := o.library
	if lib == nil {
		var err error
		lib, err = capi.ForArch(arch)
		if err != nil {
			return nil, newError(capi.ErrorNotSupported, "arch %s: %v", arch, err)
		}
	}
	trackLibrary(lib)

	var h capi.Runtime
	var err error
	switch {
	case o.device != nil:
		importer, ok := lib.(capi.RuntimeImporter)
		if !ok {
			return nil, newError(capi.ErrorNotSupported, "library cannot import a native device")
		}
		h, err = callValue(lib, func() capi.Runtime { return importer.ImportRuntime(arch, o.device) })
	case o.overrideCaps:
		ext, ok := lib.(capi.RuntimeCreatorExt)
		if !ok {
			return nil, newError(capi.ErrorNotSupported, "library does not accept capability overrides")
		}
		h, err = callValue(lib, func() capi.Runtime {
			return ext.CreateRuntimeExt(arch, o.deviceIndex, o.capabilities)
		})
	default:
		h, err = callValue(lib, func() capi.Runtime { return lib.CreateRuntime(arch, o.deviceIndex) })
	}
	if err != nil {
		return nil, err
	}
	if h == capi.Null {
		return nil, newError(capi.ErrorInvalidState, "library returned a null runtime for %s", arch)
	}

	r := &runtimeInner{lib: lib, handle: h, arch: arch, deviceIndex: o.deviceIndex}
	r.ref.init(r.destroy)
	Logger().Info("taichi: runtime created", "arch", arch, "device", o.deviceIndex)
	return &Runtime{r: r}, nil
}

func (r *runtimeInner) destroy() {
	if err := call(r.lib, func() { r.lib.DestroyRuntime(r.handle) }); err != nil {
		Logger().Warn("taichi: destroy runtime", "arch", r.arch, "err", err)
		return
	}
	Logger().Debug("taichi: runtime destroyed", "arch", r.arch)
}

// Clone returns another handle to the same runtime instance.
func (rt *Runtime) Clone() *Runtime {
	rt.r.ref.acquire()
	return &Runtime{r: rt.r}
}

// Close releases this handle. Further calls are no-ops.
func (rt *Runtime) Close() {
	if rt.close() {
		rt.r.ref.drop()
	}
}

// Arch returns the runtime architecture.
func (rt *Runtime) Arch() capi.Arch { return rt.r.arch }

// DeviceIndex returns the device index the runtime was created with.
func (rt *Runtime) DeviceIndex() uint32 { return rt.r.deviceIndex }

// Handle returns the raw runtime handle for use with Library.
func (rt *Runtime) Handle() capi.Runtime { return rt.r.handle }

// Library returns the backend library driving the runtime.
func (rt *Runtime) Library() capi.Library { return rt.r.lib }

// LibraryVersion returns the version of the backend library.
func (rt *Runtime) LibraryVersion() Version {
	return VersionFromUint32(rt.r.lib.GetVersion())
}

func (rt *Runtime) check() error {
	if rt.isClosed() {
		return errClosed("runtime")
	}
	return nil
}

// Capabilities returns the device capabilities and their levels.
func (rt *Runtime) Capabilities() (map[capi.Capability]uint32, error) {
	if err := rt.check(); err != nil {
		return nil, err
	}
	r := rt.r
	list, err := callValue(r.lib, func() []capi.CapabilityLevelInfo {
		return r.lib.GetRuntimeCapabilities(r.handle)
	})
	if err != nil {
		return nil, err
	}
	caps := make(map[capi.Capability]uint32, len(list))
	for _, c := range list {
		caps[c.Capability] = c.Level
	}
	return caps, nil
}

// Flush submits recorded commands to the device without waiting.
func (rt *Runtime) Flush() error {
	if err := rt.check(); err != nil {
		return err
	}
	r := rt.r
	r.stats.submits.Add(1)
	return call(r.lib, func() { r.lib.Flush(r.handle) })
}

// Wait submits recorded commands and blocks until the device finished all
// of them.
func (rt *Runtime) Wait() error {
	if err := rt.check(); err != nil {
		return err
	}
	r := rt.r
	r.stats.waits.Add(1)
	return call(r.lib, func() { r.lib.Wait(r.handle) })
}

// MemoryRegion is a byte range of a memory allocation.
type MemoryRegion struct {
	Memory *Memory
	Offset uint64
	Size   uint64
}

func (m MemoryRegion) slice() (capi.MemorySlice, error) {
	if m.Memory == nil {
		return capi.MemorySlice{}, newError(capi.ErrorArgumentNull, "memory region has no memory")
	}
	if err := m.Memory.check(); err != nil {
		return capi.MemorySlice{}, err
	}
	return capi.MemorySlice{Memory: m.Memory.m.handle, Offset: m.Offset, Size: m.Size}, nil
}

// CopyMemory records a device-side copy between two memory regions of the
// same size.
func (rt *Runtime) CopyMemory(dst, src MemoryRegion) error {
	if err := rt.check(); err != nil {
		return err
	}
	d, err := dst.slice()
	if err != nil {
		return err
	}
	s, err := src.slice()
	if err != nil {
		return err
	}
	r := rt.r
	return call(r.lib, func() { r.lib.CopyMemoryDeviceToDevice(r.handle, &d, &s) })
}

// ImageRegion is a region of one mip level of an image.
type ImageRegion struct {
	Image    *Image
	Offset   capi.ImageOffset
	Extent   capi.ImageExtent
	MipLevel uint32
}

func (i ImageRegion) slice() (capi.ImageSlice, error) {
	if i.Image == nil {
		return capi.ImageSlice{}, newError(capi.ErrorArgumentNull, "image region has no image")
	}
	if err := i.Image.check(); err != nil {
		return capi.ImageSlice{}, err
	}
	return capi.ImageSlice{Image: i.Image.i.handle, Offset: i.Offset, Extent: i.Extent, MipLevel: i.MipLevel}, nil
}

// CopyImage records a device-side copy between two image regions.
func (rt *Runtime) CopyImage(dst, src ImageRegion) error {
	if err := rt.check(); err != nil {
		return err
	}
	d, err := dst.slice()
	if err != nil {
		return err
	}
	s, err := src.slice()
	if err != nil {
		return err
	}
	r := rt.r
	return call(r.lib, func() { r.lib.CopyImageDeviceToDevice(r.handle, &d, &s) })
}

// AvailableArchs returns the architectures served by registered libraries
// on this machine.
func AvailableArchs() []capi.Arch {
	return capi.AvailableArchs()
}

// Stats is a snapshot of a runtime's live resources and activity.
type Stats struct {
	Arch        capi.Arch
	DeviceIndex uint32

	Memories    int64
	MemoryBytes int64
	Images      int64
	Samplers    int64
	Events      int64
	Modules     int64

	KernelLaunches uint64
	GraphLaunches  uint64
	Submits        uint64
	Waits          uint64
}

type runtimeCounters struct {
	memories    atomic.Int64
	memoryBytes atomic.Int64
	images      atomic.Int64
	samplers    atomic.Int64
	events      atomic.Int64
	modules     atomic.Int64

	kernelLaunches atomic.Uint64
	graphLaunches  atomic.Uint64
	submits        atomic.Uint64
	waits          atomic.Uint64
}

// Stats returns a snapshot of the runtime counters. It is valid on closed
// handles.
func (rt *Runtime) Stats() Stats {
	c := &rt.r.stats
	return Stats{
		Arch:           rt.r.arch,
		DeviceIndex:    rt.r.deviceIndex,
		Memories:       c.memories.Load(),
		MemoryBytes:    c.memoryBytes.Load(),
		Images:         c.images.Load(),
		Samplers:       c.samplers.Load(),
		Events:         c.events.Load(),
		Modules:        c.modules.Load(),
		KernelLaunches: c.kernelLaunches.Load(),
		GraphLaunches:  c.graphLaunches.Load(),
		Submits:        c.submits.Load(),
		Waits:          c.waits.Load(),
	}
}

// IsCode reports whether err is a taichi error with the given code.
func IsCode(err error, code capi.Error) bool {
	var te *Error
	return errors.As(err, &te) && te.Code == code
}
