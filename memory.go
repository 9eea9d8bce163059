// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package taichi

import (
	"github.com/gogpu/taichi/capi"
)

type memoryInner struct {
	ref    shared
	rt     *runtimeInner
	handle capi.Memory
	info   capi.MemoryAllocateInfo
}

// Memory is a shared handle to a device memory allocation. The allocation
// keeps its runtime alive.
type Memory struct {
	handle
	m *memoryInner
}

// MemoryBuilder describes a memory allocation. The zero configuration is a
// zero-sized storage allocation without host access.
type MemoryBuilder struct {
	rt   *Runtime
	info capi.MemoryAllocateInfo
}

// AllocateMemory starts describing a memory allocation on rt.
func (rt *Runtime) AllocateMemory() *MemoryBuilder {
	return &MemoryBuilder{
		rt:   rt,
		info: capi.MemoryAllocateInfo{Usage: capi.MemoryUsageStorage},
	}
}

// Size sets the allocation size in bytes.
func (b *MemoryBuilder) Size(size uint64) *MemoryBuilder {
	b.info.Size = size
	return b
}

// HostRead allows the host to read the allocation.
func (b *MemoryBuilder) HostRead(v bool) *MemoryBuilder {
	b.info.HostRead = v
	return b
}

// HostWrite allows the host to write the allocation.
func (b *MemoryBuilder) HostWrite(v bool) *MemoryBuilder {
	b.info.HostWrite = v
	return b
}

// HostAccess sets both host read and host write.
func (b *MemoryBuilder) HostAccess(v bool) *MemoryBuilder {
	b.info.HostRead = v
	b.info.HostWrite = v
	return b
}

// ExportSharing marks the allocation as exportable to other APIs.
func (b *MemoryBuilder) ExportSharing(v bool) *MemoryBuilder {
	b.info.ExportSharing = v
	return b
}

// Usage replaces the usage flags.
func (b *MemoryBuilder) Usage(u capi.MemoryUsage) *MemoryBuilder {
	b.info.Usage = u
	return b
}

// Info returns the allocation descriptor built so far.
func (b *MemoryBuilder) Info() capi.MemoryAllocateInfo { return b.info }

// Build allocates the memory.
func (b *MemoryBuilder) Build() (*Memory, error) {
	return b.rt.NewMemory(b.info)
}

// NewMemory allocates memory described by info.
func (rt *Runtime) NewMemory(info capi.MemoryAllocateInfo) (*Memory, error) {
	if err := rt.check(); err != nil {
		return nil, err
	}
	r := rt.r
	h, err := callValue(r.lib, func() capi.Memory { return r.lib.AllocateMemory(r.handle, &info) })
	if err != nil {
		return nil, err
	}
	if h == capi.Null {
		return nil, newError(capi.ErrorInvalidState, "library returned a null memory")
	}

	r.ref.acquire()
	m := &memoryInner{rt: r, handle: h, info: info}
	m.ref.init(m.free)
	r.stats.memories.Add(1)
	r.stats.memoryBytes.Add(int64(info.Size))
	Logger().Debug("taichi: memory allocated", "size", info.Size,
		"host_read", info.HostRead, "host_write", info.HostWrite)
	return &Memory{m: m}, nil
}

func (m *memoryInner) free() {
	r := m.rt
	if err := call(r.lib, func() { r.lib.FreeMemory(r.handle, m.handle) }); err != nil {
		Logger().Warn("taichi: free memory", "size", m.info.Size, "err", err)
	}
	r.stats.memories.Add(-1)
	r.stats.memoryBytes.Add(-int64(m.info.Size))
	r.ref.drop()
}

// Clone returns another handle to the same allocation.
func (mem *Memory) Clone() *Memory {
	mem.m.ref.acquire()
	return &Memory{m: mem.m}
}

// Close releases this handle. Further calls are no-ops.
func (mem *Memory) Close() {
	if mem.close() {
		mem.m.ref.drop()
	}
}

func (mem *Memory) check() error {
	if mem.isClosed() {
		return errClosed("memory")
	}
	return nil
}

// Handle returns the raw memory handle.
func (mem *Memory) Handle() capi.Memory { return mem.m.handle }

// Size returns the allocation size in bytes.
func (mem *Memory) Size() uint64 { return mem.m.info.Size }

// HostRead reports whether the host may read the allocation.
func (mem *Memory) HostRead() bool { return mem.m.info.HostRead }

// HostWrite reports whether the host may write the allocation.
func (mem *Memory) HostWrite() bool { return mem.m.info.HostWrite }

// ExportSharing reports whether the allocation is exportable.
func (mem *Memory) ExportSharing() bool { return mem.m.info.ExportSharing }

// Usage returns the usage flags.
func (mem *Memory) Usage() capi.MemoryUsage { return mem.m.info.Usage }

// Region returns a byte range of the allocation for copies.
func (mem *Memory) Region(offset, size uint64) MemoryRegion {
	return MemoryRegion{Memory: mem, Offset: offset, Size: size}
}

// mapRaw maps the whole allocation. The caller must call unmapRaw.
func (mem *Memory) mapRaw() ([]byte, error) {
	if err := mem.check(); err != nil {
		return nil, err
	}
	m := mem.m
	r := m.rt
	data, err := callValue(r.lib, func() []byte { return r.lib.MapMemory(r.handle, m.handle) })
	if err != nil {
		return nil, err
	}
	if uint64(len(data)) < m.info.Size {
		mem.unmapRaw()
		return nil, newError(capi.ErrorInvalidState, "library mapped %d of %d bytes", len(data), m.info.Size)
	}
	return data[:m.info.Size], nil
}

func (mem *Memory) unmapRaw() {
	m := mem.m
	r := m.rt
	if err := call(r.lib, func() { r.lib.UnmapMemory(r.handle, m.handle) }); err != nil {
		Logger().Warn("taichi: unmap memory", "size", m.info.Size, "err", err)
	}
}

// ReadBytes copies the whole allocation into dst, which must have exactly
// Size bytes. It fails with ErrInvalidState when the memory was allocated
// without host read access.
func (mem *Memory) ReadBytes(dst []byte) error {
	if err := mem.check(); err != nil {
		return err
	}
	if !mem.m.info.HostRead {
		return newError(capi.ErrorInvalidState, "memory is not host readable")
	}
	if uint64(len(dst)) != mem.m.info.Size {
		return newError(capi.ErrorInvalidArgument, "read of %d bytes from a %d byte memory", len(dst), mem.m.info.Size)
	}
	data, err := mem.mapRaw()
	if err != nil {
		return err
	}
	defer mem.unmapRaw()
	copy(dst, data)
	return nil
}

// WriteBytes copies src, which must have exactly Size bytes, into the
// allocation. It fails with ErrInvalidState when the memory was allocated
// without host write access.
func (mem *Memory) WriteBytes(src []byte) error {
	if err := mem.check(); err != nil {
		return err
	}
	if !mem.m.info.HostWrite {
		return newError(capi.ErrorInvalidState, "memory is not host writable")
	}
	if uint64(len(src)) != mem.m.info.Size {
		return newError(capi.ErrorInvalidArgument, "write of %d bytes to a %d byte memory", len(src), mem.m.info.Size)
	}
	data, err := mem.mapRaw()
	if err != nil {
		return err
	}
	defer mem.unmapRaw()
	copy(data, src)
	return nil
}

// Read copies the allocation into dst viewed as elements of T.
func Read[T Elem](mem *Memory, dst []T) error {
	if err := checkElems[T](mem, len(dst)); err != nil {
		return err
	}
	return mem.ReadBytes(bytesOf(dst))
}

// Write copies src viewed as elements of T into the allocation.
func Write[T Elem](mem *Memory, src []T) error {
	if err := checkElems[T](mem, len(src)); err != nil {
		return err
	}
	return mem.WriteBytes(bytesOf(src))
}

func checkElems[T Elem](mem *Memory, n int) error {
	size := mem.Size()
	elem := sizeOf[T]()
	if size%elem != 0 {
		return newError(capi.ErrorInvalidArgument, "memory size %d is not a multiple of %s", size, DataTypeOf[T]())
	}
	if uint64(n) != size/elem {
		return newError(capi.ErrorInvalidArgument, "%d elements do not cover %d %s elements", n, size/elem, DataTypeOf[T]())
	}
	return nil
}
