package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gogpu/taichi"
	"github.com/gogpu/taichi/capi"
	_ "github.com/gogpu/taichi/capi/host"
)

type fakeSource taichi.Stats

func (f fakeSource) Stats() taichi.Stats { return taichi.Stats(f) }

func TestCollectorMetrics(t *testing.T) {
	c := NewCollector()
	c.Add("rt0", fakeSource{
		Arch:           capi.ArchX64,
		Memories:       2,
		MemoryBytes:    1024,
		KernelLaunches: 3,
		GraphLaunches:  1,
		Submits:        4,
		Waits:          5,
	})

	// 5 live kinds, memory bytes, 2 launch kinds, submits, waits.
	if n := testutil.CollectAndCount(c); n != 10 {
		t.Errorf("CollectAndCount() = %d, want 10", n)
	}

	want := `
# HELP taichi_runtime_memory_bytes Bytes of live memory allocations.
# TYPE taichi_runtime_memory_bytes gauge
taichi_runtime_memory_bytes{arch="x64",runtime="rt0"} 1024
# HELP taichi_runtime_launches_total Kernel and compute graph launches.
# TYPE taichi_runtime_launches_total counter
taichi_runtime_launches_total{arch="x64",kind="graph",runtime="rt0"} 1
taichi_runtime_launches_total{arch="x64",kind="kernel",runtime="rt0"} 3
`
	err := testutil.CollectAndCompare(c, strings.NewReader(want),
		"taichi_runtime_memory_bytes", "taichi_runtime_launches_total")
	if err != nil {
		t.Errorf("CollectAndCompare() error = %v", err)
	}
}

func TestCollectorRemove(t *testing.T) {
	c := NewCollector()
	c.Add("a", fakeSource{})
	c.Add("b", fakeSource{})
	c.Remove("a")
	if n := testutil.CollectAndCount(c, "taichi_runtime_waits_total"); n != 1 {
		t.Errorf("CollectAndCount() = %d, want 1", n)
	}
}

func TestCollectorRuntime(t *testing.T) {
	rt, err := taichi.NewRuntime(capi.ArchX64)
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	defer rt.Close()

	mem, err := rt.AllocateMemory().Size(256).Build()
	if err != nil {
		t.Fatalf("AllocateMemory() error = %v", err)
	}
	defer mem.Close()

	c := NewCollector()
	c.Add("host", rt)
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	want := `
# HELP taichi_runtime_memory_bytes Bytes of live memory allocations.
# TYPE taichi_runtime_memory_bytes gauge
taichi_runtime_memory_bytes{arch="x64",runtime="host"} 256
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "taichi_runtime_memory_bytes"); err != nil {
		t.Errorf("GatherAndCompare() error = %v", err)
	}
}
