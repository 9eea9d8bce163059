// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package taichi

import (
	"strings"

	"github.com/emirpasic/gods/maps/treemap"

	"github.com/gogpu/taichi/capi"
)

// ComputeGraph is a named sequence of kernel dispatches inside a module,
// launched with arguments bound by parameter name.
//
// Arguments are kept sorted by name; setting a name again replaces the
// previous value. Resource arguments are retained by the graph until they
// are replaced, reset or the graph is closed, so launching never refers to
// freed memory.
type ComputeGraph struct {
	handle
	module *moduleInner
	h      capi.ComputeGraph
	name   string
	args   *treemap.Map
}

// ComputeGraph looks up a compute graph by name. The graph keeps the module
// alive.
func (m *Module) ComputeGraph(name string) (*ComputeGraph, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	mi := m.m
	lib := mi.rt.lib
	h, err := callValue(lib, func() capi.ComputeGraph { return lib.GetAotModuleComputeGraph(mi.handle, name) })
	if err != nil {
		return nil, err
	}
	if h == capi.Null {
		return nil, newError(capi.ErrorNameNotFound, "compute graph %q", name)
	}
	mi.ref.acquire()
	return &ComputeGraph{module: mi, h: h, name: name, args: treemap.NewWithStringComparator()}, nil
}

// checkName rejects names that cannot cross the C boundary.
func checkName(name string) error {
	if strings.IndexByte(name, 0) >= 0 {
		return newError(capi.ErrorInvalidArgument, "name %q contains a NUL byte", name)
	}
	return nil
}

// Name returns the graph name.
func (g *ComputeGraph) Name() string { return g.name }

// Handle returns the raw compute graph handle.
func (g *ComputeGraph) Handle() capi.ComputeGraph { return g.h }

// SetArg binds arg to the parameter name.
func (g *ComputeGraph) SetArg(name string, arg Argument) error {
	if g.isClosed() {
		return errClosed("compute graph")
	}
	if err := checkName(name); err != nil {
		return err
	}
	if arg == nil {
		return newError(capi.ErrorArgumentNull, "argument %q is nil", name)
	}
	held, err := arg.retain()
	if err != nil {
		return err
	}
	if old, ok := g.args.Get(name); ok {
		old.(Argument).release()
	}
	g.args.Put(name, held)
	return nil
}

// SetArgI32 binds a 32-bit integer.
func (g *ComputeGraph) SetArgI32(name string, v int32) error { return g.SetArg(name, I32(v)) }

// SetArgF32 binds a 32-bit float.
func (g *ComputeGraph) SetArgF32(name string, v float32) error { return g.SetArg(name, F32(v)) }

// SetArgScalar binds a scalar of any element type.
func (g *ComputeGraph) SetArgScalar(name string, s Scalar) error { return g.SetArg(name, s) }

// SetArgNdArray binds an ND-array.
func (g *ComputeGraph) SetArgNdArray(name string, a NdArrayLike) error {
	if a == nil || a.Memory() == nil {
		return newError(capi.ErrorArgumentNull, "argument %q is nil", name)
	}
	return g.SetArg(name, NdArrayArgument(a))
}

// SetArgTexture binds a texture.
func (g *ComputeGraph) SetArgTexture(name string, t *Texture) error {
	if t == nil {
		return newError(capi.ErrorArgumentNull, "argument %q is nil", name)
	}
	return g.SetArg(name, TextureArgument(t))
}

// Arg returns the argument bound to name.
func (g *ComputeGraph) Arg(name string) (Argument, bool) {
	v, ok := g.args.Get(name)
	if !ok {
		return nil, false
	}
	return v.(Argument), true
}

// Args returns the bound arguments in launch order, sorted by name.
func (g *ComputeGraph) Args() []capi.NamedArgument {
	out := make([]capi.NamedArgument, 0, g.args.Size())
	it := g.args.Iterator()
	for it.Next() {
		out = append(out, capi.NamedArgument{
			Name:     it.Key().(string),
			Argument: it.Value().(Argument).value(),
		})
	}
	return out
}

// ResetArgs unbinds every argument.
func (g *ComputeGraph) ResetArgs() {
	for _, v := range g.args.Values() {
		v.(Argument).release()
	}
	g.args.Clear()
}

// Launch records one execution of the graph with the bound arguments. It
// does not wait for completion; call Runtime.Wait for that.
func (g *ComputeGraph) Launch() error {
	if g.isClosed() {
		return errClosed("compute graph")
	}
	args := g.Args()
	r := g.module.rt
	err := call(r.lib, func() { r.lib.LaunchComputeGraph(r.handle, g.h, args) })
	if err != nil {
		return err
	}
	r.stats.graphLaunches.Add(1)
	Logger().Debug("taichi: compute graph launched", "graph", g.name, "args", len(args))
	return nil
}

// Close releases the bound arguments and the module reference. Further calls
// are no-ops.
func (g *ComputeGraph) Close() {
	if !g.close() {
		return
	}
	g.ResetArgs()
	g.module.ref.drop()
}
