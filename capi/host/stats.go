package host

import (
	"fmt"
	"sync/atomic"
)

type counters struct {
	runtimeDestroys atomic.Uint64
	memoryFrees     atomic.Uint64
	imageFrees      atomic.Uint64
	samplerDestroys atomic.Uint64
	eventDestroys   atomic.Uint64
	moduleDestroys  atomic.Uint64
	kernelLaunches  atomic.Uint64
	graphLaunches   atomic.Uint64
	submits         atomic.Uint64
}

// Stats is a snapshot of live objects and lifetime counters.
type Stats struct {
	Runtimes int
	Memories int
	Images   int
	Samplers int
	Events   int
	Modules  int

	// UsedBytes is the size of live memory and image allocations.
	UsedBytes uint64
	// BudgetBytes is the configured budget, 0 when unlimited.
	BudgetBytes uint64

	RuntimeDestroys uint64
	MemoryFrees     uint64
	ImageFrees      uint64
	SamplerDestroys uint64
	EventDestroys   uint64
	ModuleDestroys  uint64
	KernelLaunches  uint64
	GraphLaunches   uint64
	Submits         uint64
}

// String returns a human-readable summary.
func (s Stats) String() string {
	return fmt.Sprintf("Host[%d runtimes, %d memories, %d images, %d modules, %d bytes used]",
		s.Runtimes, s.Memories, s.Images, s.Modules, s.UsedBytes)
}

// Stats returns a snapshot of the library state.
func (l *Library) Stats() Stats {
	l.mu.Lock()
	s := Stats{
		Runtimes:    len(l.runtimes),
		Memories:    len(l.memories),
		Images:      len(l.images),
		Samplers:    len(l.samplers),
		Events:      len(l.events),
		Modules:     len(l.modules),
		UsedBytes:   l.usedBytes,
		BudgetBytes: l.budget,
	}
	l.mu.Unlock()

	s.RuntimeDestroys = l.stats.runtimeDestroys.Load()
	s.MemoryFrees = l.stats.memoryFrees.Load()
	s.ImageFrees = l.stats.imageFrees.Load()
	s.SamplerDestroys = l.stats.samplerDestroys.Load()
	s.EventDestroys = l.stats.eventDestroys.Load()
	s.ModuleDestroys = l.stats.moduleDestroys.Load()
	s.KernelLaunches = l.stats.kernelLaunches.Load()
	s.GraphLaunches = l.stats.graphLaunches.Load()
	s.Submits = l.stats.submits.Load()
	return s
}
