package host

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
	module  capi.AotModule
	spec    *manifest.Kernel
	program Program
}

type graph struct {
	module capi.AotModule
	spec   *manifest.Graph
	steps  []*kernel
}

// LoadAotModule implements capi.Library. path names a module directory or a
// zip archive of one.
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

// CreateAotModule implements capi.Library. data is a zip archive of a module
// directory.
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
	m := &module{
		rt:      rtID,
		bundle:  b,
		kernels: make(map[string]capi.Kernel, len(b.Kernels)),
		graphs:  make(map[string]capi.ComputeGraph, len(b.Graphs)),
	}
	byName := make(map[string]*kernel, len(b.Kernels))
	for i := range b.Kernels {
		spec := &b.Kernels[i]
		if spec.Host == "" {
			l.fail(capi.ErrorIncompatibleModule, "kernel %q has no host program", spec.Name)
			return capi.Null
		}
		prog, ok := LookupProgram(spec.Host)
		if !ok {
			l.fail(capi.ErrorIncompatibleModule, "kernel %q: host program %q is not registered", spec.Name, spec.Host)
			return capi.Null
		}
		byName[spec.Name] = &kernel{module: id, spec: spec, program: prog}
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
	l.log().Debug("host: module loaded", "module", id, "kernels", len(m.kernels), "graphs", len(m.graphs))
	return id
}

// DestroyAotModule implements capi.Library. Kernel and graph handles of the
// module become invalid.
func (l *Library) DestroyAotModule(id capi.AotModule) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.modules[id]
	if !ok {
		l.failHandle(uint64(id), "module")
		return
	}
	l.dropModuleLocked(id, m)
}

func (l *Library) dropModuleLocked(id capi.AotModule, m *module) {
	for _, k := range m.kernels {
		delete(l.kernels, k)
	}
	for _, g := range m.graphs {
		delete(l.graphs, g)
	}
	delete(l.modules, id)
	l.stats.moduleDestroys.Add(1)
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

func (k *kernel) String() string {
	return fmt.Sprintf("kernel %q", k.spec.Name)
}
