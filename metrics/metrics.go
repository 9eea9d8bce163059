// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package metrics exports runtime statistics to Prometheus.
//
//	c := metrics.NewCollector()
//	c.Add("main", rt)
//	prometheus.MustRegister(c)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/gogpu/taichi"
)

const namespace = "taichi"

// StatsSource provides runtime statistics. *taichi.Runtime implements it.
type StatsSource interface {
	Stats() taichi.Stats
}

var (
	labels = []string{"runtime", "arch"}

	liveDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "runtime", "live_objects"),
		"Live objects created from the runtime.",
		append(labels, "kind"), nil,
	)
	memoryBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "runtime", "memory_bytes"),
		"Bytes of live memory allocations.",
		labels, nil,
	)
	launchesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "runtime", "launches_total"),
		"Kernel and compute graph launches.",
		append(labels, "kind"), nil,
	)
	submitsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "runtime", "submits_total"),
		"Flush calls.",
		labels, nil,
	)
	waitsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "runtime", "waits_total"),
		"Wait calls.",
		labels, nil,
	)
)

// Collector is a prometheus.Collector over a set of named runtimes.
type Collector struct {
	mu      sync.RWMutex
	sources map[string]StatsSource
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{sources: make(map[string]StatsSource)}
}

// Add registers src under name, replacing an earlier source of that name.
func (c *Collector) Add(name string, src StatsSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[name] = src
}

// Remove stops collecting the named source.
func (c *Collector) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, name)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- liveDesc
	ch <- memoryBytesDesc
	ch <- launchesDesc
	ch <- submitsDesc
	ch <- waitsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for name, src := range c.sources {
		s := src.Stats()
		arch := s.Arch.String()

		live := []struct {
			kind string
			n    int64
		}{
			{"memory", s.Memories},
			{"image", s.Images},
			{"sampler", s.Samplers},
			{"event", s.Events},
			{"module", s.Modules},
		}
		for _, l := range live {
			ch <- prometheus.MustNewConstMetric(liveDesc, prometheus.GaugeValue, float64(l.n), name, arch, l.kind)
		}
		ch <- prometheus.MustNewConstMetric(memoryBytesDesc, prometheus.GaugeValue, float64(s.MemoryBytes), name, arch)
		ch <- prometheus.MustNewConstMetric(launchesDesc, prometheus.CounterValue, float64(s.KernelLaunches), name, arch, "kernel")
		ch <- prometheus.MustNewConstMetric(launchesDesc, prometheus.CounterValue, float64(s.GraphLaunches), name, arch, "graph")
		ch <- prometheus.MustNewConstMetric(submitsDesc, prometheus.CounterValue, float64(s.Submits), name, arch)
		ch <- prometheus.MustNewConstMetric(waitsDesc, prometheus.CounterValue, float64(s.Waits), name, arch)
	}
}
