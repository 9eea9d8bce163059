package host

import (
	"unsafe"

	"github.com/gogpu/taichi/capi"
)

type memory struct {
	rt     capi.Runtime
	info   capi.MemoryAllocateInfo
	data   []byte
	mapped bool
}

// alignedBytes returns a zeroed n-byte slice aligned to 8 bytes, so host views
// of any scalar element type are properly aligned.
func alignedBytes(n uint64) []byte {
	if n == 0 {
		return nil
	}
	words := make([]uint64, (n+7)/8)
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), n)
}

// reserveLocked charges n bytes against the budget. Must be called with mu
// held.
func (l *Library) reserveLocked(n uint64) bool {
	if l.budget != 0 && l.usedBytes+n > l.budget {
		return false
	}
	l.usedBytes += n
	return true
}

// AllocateMemory implements capi.Library.
func (l *Library) AllocateMemory(rtID capi.Runtime, info *capi.MemoryAllocateInfo) capi.Memory {
	l.begin()
	if info == nil {
		l.fail(capi.ErrorArgumentNull, "memory allocate info is null")
		return capi.Null
	}
	if info.Size == 0 {
		l.fail(capi.ErrorInvalidArgument, "memory size must be positive")
		return capi.Null
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.runtimeLocked(rtID); !ok {
		return capi.Null
	}
	if !l.reserveLocked(info.Size) {
		l.fail(capi.ErrorOutOfMemory, "allocating %d bytes exceeds budget (%d of %d used)",
			info.Size, l.usedBytes, l.budget)
		return capi.Null
	}

	m := &memory{rt: rtID, info: *info, data: alignedBytes(info.Size)}
	id := capi.Memory(l.newID())
	l.memories[id] = m
	l.log().Debug("host: memory allocated", "memory", id, "size", info.Size)
	return id
}

// FreeMemory implements capi.Library.
func (l *Library) FreeMemory(rtID capi.Runtime, id capi.Memory) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.memoryLocked(rtID, id)
	if !ok {
		return
	}
	if m.mapped {
		l.log().Warn("host: memory freed while mapped", "memory", id)
	}
	delete(l.memories, id)
	l.usedBytes -= uint64(len(m.data))
	l.stats.memoryFrees.Add(1)
}

// MapMemory implements capi.Library. The returned slice aliases the
// allocation; device commands executed while it is mapped see host writes.
func (l *Library) MapMemory(rtID capi.Runtime, id capi.Memory) []byte {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.memoryLocked(rtID, id)
	if !ok {
		return nil
	}
	if !m.info.HostRead && !m.info.HostWrite {
		l.fail(capi.ErrorInvalidState, "memory %d was allocated without host access", id)
		return nil
	}
	if m.mapped {
		l.fail(capi.ErrorInvalidState, "memory %d is already mapped", id)
		return nil
	}
	m.mapped = true
	return m.data
}

// UnmapMemory implements capi.Library.
func (l *Library) UnmapMemory(rtID capi.Runtime, id capi.Memory) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.memoryLocked(rtID, id)
	if !ok {
		return
	}
	if !m.mapped {
		l.fail(capi.ErrorInvalidState, "memory %d is not mapped", id)
		return
	}
	m.mapped = false
}

// CopyMemoryDeviceToDevice implements capi.Library.
func (l *Library) CopyMemoryDeviceToDevice(rtID capi.Runtime, dst, src *capi.MemorySlice) {
	l.begin()
	if dst == nil || src == nil {
		l.fail(capi.ErrorArgumentNull, "memory slice is null")
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return
	}
	dm, ok := l.memoryLocked(rtID, dst.Memory)
	if !ok {
		return
	}
	sm, ok := l.memoryLocked(rtID, src.Memory)
	if !ok {
		return
	}
	if src.Size != dst.Size {
		l.fail(capi.ErrorInvalidArgument, "copy size mismatch: src %d, dst %d", src.Size, dst.Size)
		return
	}
	if !inRange(src, uint64(len(sm.data))) || !inRange(dst, uint64(len(dm.data))) {
		l.fail(capi.ErrorArgumentOutOfRange, "copy range exceeds allocation")
		return
	}

	d, s := *dst, *src
	rt.record("copy_memory", func() error {
		copy(dm.data[d.Offset:d.Offset+d.Size], sm.data[s.Offset:s.Offset+s.Size])
		return nil
	})
}

func inRange(s *capi.MemorySlice, size uint64) bool {
	return s.Offset <= size && s.Size <= size-s.Offset
}

// memoryLocked resolves a memory handle owned by rtID. Must be called with mu
// held.
func (l *Library) memoryLocked(rtID capi.Runtime, id capi.Memory) (*memory, bool) {
	if _, ok := l.runtimes[rtID]; !ok {
		l.failHandle(uint64(rtID), "runtime")
		return nil, false
	}
	m, ok := l.memories[id]
	if !ok {
		l.failHandle(uint64(id), "memory")
		return nil, false
	}
	if m.rt != rtID {
		l.fail(capi.ErrorInvalidArgument, "memory %d belongs to another runtime", id)
		return nil, false
	}
	return m, true
}
