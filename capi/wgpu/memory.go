//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/taichi/capi"
)

const (
	storageUsage = gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	uniformUsage = gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	stagingUsage = gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst
)

// minBufferSize keeps bindings of tiny arrays valid.
const minBufferSize = 4

// alignCopy rounds size up to the 4-byte granularity of buffer copies.
func alignCopy(size uint64) uint64 { return (size + 3) &^ 3 }

type memory struct {
	rt   capi.Runtime
	info capi.MemoryAllocateInfo
	buf  hal.Buffer

	// shadow is the host copy handed out by MapMemory.
	shadow []byte
	mapped bool
}

func createBuffer(dev hal.Device, label string, size uint64, usage gputypes.BufferUsage) (hal.Buffer, error) {
	size = alignCopy(size)
	if size < minBufferSize {
		size = minBufferSize
	}
	buf, err := dev.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create buffer %s: %v", ErrDevice, label, err)
	}
	return buf, nil
}

// AllocateMemory implements capi.Library.
func (l *Library) AllocateMemory(rtID capi.Runtime, info *capi.MemoryAllocateInfo) capi.Memory {
	l.begin()
	if info == nil {
		l.fail(capi.ErrorArgumentNull, "memory allocate info is nil")
		return capi.Null
	}
	if info.Size == 0 {
		l.fail(capi.ErrorInvalidArgument, "memory size is zero")
		return capi.Null
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return capi.Null
	}

	usage := storageUsage
	if info.Usage.Contains(capi.MemoryUsageUniform) {
		usage |= gputypes.BufferUsageUniform
	}
	buf, err := createBuffer(rt.device, "taichi_memory", info.Size, usage)
	if err != nil {
		l.fail(capi.ErrorOutOfMemory, "%v", err)
		return capi.Null
	}
	id := capi.Memory(l.newID())
	l.memories[id] = &memory{rt: rtID, info: *info, buf: buf}
	l.log().Debug("wgpu: memory allocated", "memory", id, "size", info.Size)
	return id
}

// FreeMemory implements capi.Library.
func (l *Library) FreeMemory(rtID capi.Runtime, id capi.Memory) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, m, ok := l.memoryLocked(rtID, id)
	if !ok {
		return
	}
	if err := l.waitLocked(rt); err != nil {
		l.log().Warn("wgpu: wait before free", "memory", id, "err", err)
	}
	rt.device.DestroyBuffer(m.buf)
	delete(l.memories, id)
}

// MapMemory implements capi.Library. Pending work is waited for; memory
// with host read access is read back through a staging buffer.
func (l *Library) MapMemory(rtID capi.Runtime, id capi.Memory) []byte {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, m, ok := l.memoryLocked(rtID, id)
	if !ok {
		return nil
	}
	if !m.info.HostRead && !m.info.HostWrite {
		l.fail(capi.ErrorInvalidState, "memory %d has no host access", id)
		return nil
	}
	if m.mapped {
		l.fail(capi.ErrorInvalidState, "memory %d is already mapped", id)
		return nil
	}
	if err := l.waitLocked(rt); err != nil {
		l.failErr(err)
		return nil
	}
	if m.shadow == nil {
		m.shadow = make([]byte, m.info.Size)
	}
	if m.info.HostRead {
		if err := l.readBackLocked(rt, m); err != nil {
			l.failErr(err)
			return nil
		}
	}
	m.mapped = true
	return m.shadow
}

func (l *Library) readBackLocked(rt *runtime, m *memory) error {
	staging, err := createBuffer(rt.device, "taichi_staging", m.info.Size, stagingUsage)
	if err != nil {
		return err
	}
	defer rt.device.DestroyBuffer(staging)

	err = l.runOnce(rt, "taichi_readback", func(f *frame) error {
		f.enc.CopyBufferToBuffer(m.buf, staging, []hal.BufferCopy{
			{SrcOffset: 0, DstOffset: 0, Size: alignCopy(m.info.Size)},
		})
		return nil
	})
	if err != nil {
		return err
	}
	if err := rt.queue.ReadBuffer(staging, 0, m.shadow); err != nil {
		return fmt.Errorf("%w: readback: %v", ErrDevice, err)
	}
	return nil
}

// UnmapMemory implements capi.Library. Memory with host write access is
// uploaded from the host copy.
func (l *Library) UnmapMemory(rtID capi.Runtime, id capi.Memory) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, m, ok := l.memoryLocked(rtID, id)
	if !ok {
		return
	}
	if !m.mapped {
		l.fail(capi.ErrorInvalidState, "memory %d is not mapped", id)
		return
	}
	m.mapped = false
	if m.info.HostWrite {
		rt.queue.WriteBuffer(m.buf, 0, m.shadow)
	}
}

// CopyMemoryDeviceToDevice implements capi.Library.
func (l *Library) CopyMemoryDeviceToDevice(rtID capi.Runtime, dst, src *capi.MemorySlice) {
	l.begin()
	if dst == nil || src == nil {
		l.fail(capi.ErrorArgumentNull, "memory slice is nil")
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, d, ok := l.memoryLocked(rtID, dst.Memory)
	if !ok {
		return
	}
	_, s, ok := l.memoryLocked(rtID, src.Memory)
	if !ok {
		return
	}
	if dst.Size != src.Size {
		l.fail(capi.ErrorInvalidArgument, "copy size mismatch: dst %d, src %d", dst.Size, src.Size)
		return
	}
	if dst.Offset+dst.Size > d.info.Size || src.Offset+src.Size > s.info.Size {
		l.fail(capi.ErrorArgumentOutOfRange, "copy of %d bytes exceeds memory bounds", dst.Size)
		return
	}
	region := hal.BufferCopy{SrcOffset: src.Offset, DstOffset: dst.Offset, Size: dst.Size}
	rt.record("copy_memory", func(f *frame) error {
		f.enc.CopyBufferToBuffer(s.buf, d.buf, []hal.BufferCopy{region})
		return nil
	})
}

// memoryLocked resolves a memory handle owned by rtID. Must be called with
// mu held.
func (l *Library) memoryLocked(rtID capi.Runtime, id capi.Memory) (*runtime, *memory, bool) {
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return nil, nil, false
	}
	m, ok := l.memories[id]
	if !ok {
		l.failHandle(uint64(id), "memory")
		return nil, nil, false
	}
	if m.rt != rtID {
		l.fail(capi.ErrorInvalidArgument, "memory %d belongs to another runtime", id)
		return nil, nil, false
	}
	return rt, m, true
}
