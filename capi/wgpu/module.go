//go:build !nogpu

package wgpu

import (
	"fmt"
	"strings"

	"github.com/gogpu/taichi/capi"
	"github.com/gogpu/taichi/internal/manifest"
)

type module struct {
	rt      capi.Runtime
	bundle  *manifest.Bundle
	kernels map[string]capi.Kernel
	graphs  map[string]capi.ComputeGraph
}

type kernel struct {
	module capi.AotModule
	spec   *manifest.Kernel
	pipe   *pipeline
}

type graph struct {
	module capi.AotModule
	spec   *manifest.Graph
	steps  []*kernel
}

// LoadAotModule implements capi.Library.
func (l *Library) LoadAotModule(rtID capi.Runtime, path string) capi.AotModule {
	l.begin()
	if strings.IndexByte(path, 0) >= 0 {
		l.fail(capi.ErrorInvalidArgument, "module path contains a NUL byte")
		return capi.Null
	}
	b, err := manifest.Open(path)
	if err != nil {
		l.failErr(err)
		return capi.Null
	}
	return l.registerModule(rtID, b)
}

// CreateAotModule implements capi.Library.
func (l *Library) CreateAotModule(rtID capi.Runtime, data []byte) capi.AotModule {
	l.begin()
	if len(data) == 0 {
		l.fail(capi.ErrorArgumentNull, "module data is empty")
		return capi.Null
	}
	b, err := manifest.FromArchive(data)
	if err != nil {
		l.failErr(err)
		return capi.Null
	}
	return l.registerModule(rtID, b)
}

// registerModule compiles every kernel of the bundle. A kernel that fails
// to compile fails the whole module.
func (l *Library) registerModule(rtID capi.Runtime, b *manifest.Bundle) capi.AotModule {
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return capi.Null
	}
	if err := b.CompatibleWith(rt.arch); err != nil {
		l.failErr(err)
		return capi.Null
	}

	id := capi.AotModule(l.newID())
	byName := make(map[string]*kernel, len(b.Kernels))
	release := func() {
		for _, k := range byName {
			k.pipe.destroy(rt.device)
		}
	}
	for i := range b.Kernels {
		spec := &b.Kernels[i]
		if spec.Source == "" {
			release()
			l.fail(capi.ErrorIncompatibleModule, "kernel %q has no shader source", spec.Name)
			return capi.Null
		}
		src, err := b.ReadFile(spec.Source)
		if err != nil {
			release()
			l.failErr(fmt.Errorf("kernel %q: %w", spec.Name, err))
			return capi.Null
		}
		pipe, err := newPipeline(rt.device, spec, string(src))
		if err != nil {
			release()
			l.failErr(fmt.Errorf("kernel %q: %w", spec.Name, err))
			return capi.Null
		}
		byName[spec.Name] = &kernel{module: id, spec: spec, pipe: pipe}
	}

	m := &module{
		rt:      rtID,
		bundle:  b,
		kernels: make(map[string]capi.Kernel, len(byName)),
		graphs:  make(map[string]capi.ComputeGraph, len(b.Graphs)),
	}
	for name, k := range byName {
		kid := capi.Kernel(l.newID())
		l.kernels[kid] = k
		m.kernels[name] = kid
	}
	for i := range b.Graphs {
		spec := &b.Graphs[i]
		g := &graph{module: id, spec: spec}
		for _, d := range spec.Dispatches {
			g.steps = append(g.steps, byName[d.Kernel])
		}
		gid := capi.ComputeGraph(l.newID())
		l.graphs[gid] = g
		m.graphs[spec.Name] = gid
	}
	l.modules[id] = m
	l.log().Debug("wgpu: module loaded", "module", id, "kernels", len(m.kernels), "graphs", len(m.graphs))
	return id
}

// DestroyAotModule implements capi.Library.
func (l *Library) DestroyAotModule(id capi.AotModule) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.modules[id]
	if !ok {
		l.failHandle(uint64(id), "module")
		return
	}
	if rt, ok := l.runtimes[m.rt]; ok {
		if err := l.waitLocked(rt); err != nil {
			l.log().Warn("wgpu: wait before module destroy", "module", id, "err", err)
		}
	}
	l.dropModuleLocked(id, m)
}

func (l *Library) dropModuleLocked(id capi.AotModule, m *module) {
	rt := l.runtimes[m.rt]
	for _, kid := range m.kernels {
		if rt != nil {
			l.kernels[kid].pipe.destroy(rt.device)
		}
		delete(l.kernels, kid)
	}
	for _, gid := range m.graphs {
		delete(l.graphs, gid)
	}
	delete(l.modules, id)
}

// GetAotModuleKernel implements capi.Library.
func (l *Library) GetAotModuleKernel(id capi.AotModule, name string) capi.Kernel {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.modules[id]
	if !ok {
		l.failHandle(uint64(id), "module")
		return capi.Null
	}
	k, ok := m.kernels[name]
	if !ok {
		l.fail(capi.ErrorNameNotFound, "kernel %q not found", name)
		return capi.Null
	}
	return k
}

// GetAotModuleComputeGraph implements capi.Library.
func (l *Library) GetAotModuleComputeGraph(id capi.AotModule, name string) capi.ComputeGraph {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.modules[id]
	if !ok {
		l.failHandle(uint64(id), "module")
		return capi.Null
	}
	g, ok := m.graphs[name]
	if !ok {
		l.fail(capi.ErrorNameNotFound, "compute graph %q not found", name)
		return capi.Null
	}
	return g
}
