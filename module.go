// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package taichi

import (
	"strings"

	"github.com/gogpu/taichi/capi"
)

type moduleInner struct {
	ref    shared
	rt     *runtimeInner
	handle capi.AotModule
	source string
}

// Module is a shared handle to a loaded ahead-of-time compiled module. The
// module keeps its runtime alive; kernels and compute graphs looked up from
// it keep the module alive.
type Module struct {
	handle
	m *moduleInner
}

// LoadModule loads a module from a directory or archive at path.
func (rt *Runtime) LoadModule(path string) (*Module, error) {
	if err := rt.check(); err != nil {
		return nil, err
	}
	if strings.IndexByte(path, 0) >= 0 {
		return nil, newError(capi.ErrorInvalidArgument, "module path contains a NUL byte")
	}
	r := rt.r
	h, err := callValue(r.lib, func() capi.AotModule { return r.lib.LoadAotModule(r.handle, path) })
	if err != nil {
		return nil, err
	}
	return rt.newModule(h, path)
}

// CreateModule loads a module from an in-memory archive.
func (rt *Runtime) CreateModule(data []byte) (*Module, error) {
	if err := rt.check(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, newError(capi.ErrorArgumentNull, "module data is empty")
	}
	r := rt.r
	h, err := callValue(r.lib, func() capi.AotModule { return r.lib.CreateAotModule(r.handle, data) })
	if err != nil {
		return nil, err
	}
	return rt.newModule(h, "<memory>")
}

func (rt *Runtime) newModule(h capi.AotModule, source string) (*Module, error) {
	if h == capi.Null {
		return nil, newError(capi.ErrorInvalidState, "library returned a null module")
	}
	r := rt.r
	r.ref.acquire()
	m := &moduleInner{rt: r, handle: h, source: source}
	m.ref.init(m.destroy)
	r.stats.modules.Add(1)
	Logger().Debug("taichi: module loaded", "source", source)
	return &Module{m: m}, nil
}

func (m *moduleInner) destroy() {
	r := m.rt
	if err := call(r.lib, func() { r.lib.DestroyAotModule(m.handle) }); err != nil {
		Logger().Warn("taichi: destroy module", "source", m.source, "err", err)
	}
	r.stats.modules.Add(-1)
	r.ref.drop()
}

// Clone returns another handle to the same module.
func (m *Module) Clone() *Module {
	m.m.ref.acquire()
	return &Module{m: m.m}
}

// Close releases this handle. Further calls are no-ops.
func (m *Module) Close() {
	if m.close() {
		m.m.ref.drop()
	}
}

func (m *Module) check() error {
	if m.isClosed() {
		return errClosed("module")
	}
	return nil
}

// Handle returns the raw module handle.
func (m *Module) Handle() capi.AotModule { return m.m.handle }

// Source returns the path the module was loaded from.
func (m *Module) Source() string { return m.m.source }
