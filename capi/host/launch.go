package host

import (
	"fmt"

	"github.com/gogpu/taichi/capi"
)

// LaunchKernel implements capi.Library. Arguments are validated and resolved
// now; the program runs when the runtime is waited on.
func (l *Library) LaunchKernel(rtID capi.Runtime, kID capi.Kernel, args []capi.Argument) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return
	}
	k, ok := l.kernels[kID]
	if !ok {
		l.failHandle(uint64(kID), "kernel")
		return
	}
	if l.modules[k.module].rt != rtID {
		l.fail(capi.ErrorInvalidArgument, "kernel %d belongs to another runtime", kID)
		return
	}
	if err := k.spec.CheckArgs(args); err != nil {
		l.failErr(err)
		return
	}
	inv, err := l.resolveLocked(rtID, k, args)
	if err != nil {
		l.failErr(err)
		return
	}
	rt.record(k.spec.Name, func() error { return k.run(inv) })
	l.stats.kernelLaunches.Add(1)
}

// LaunchComputeGraph implements capi.Library. The named arguments must match
// the graph parameters exactly: a count mismatch is ArgumentOutOfRange, an
// unbound parameter ArgumentNotFound and a type mismatch InvalidArgument.
func (l *Library) LaunchComputeGraph(rtID capi.Runtime, gID capi.ComputeGraph, args []capi.NamedArgument) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return
	}
	g, ok := l.graphs[gID]
	if !ok {
		l.failHandle(uint64(gID), "compute graph")
		return
	}
	if l.modules[g.module].rt != rtID {
		l.fail(capi.ErrorInvalidArgument, "compute graph %d belongs to another runtime", gID)
		return
	}
	bound, err := g.spec.Bind(args)
	if err != nil {
		l.failErr(err)
		return
	}

	invs := make([]*Invocation, len(g.steps))
	for i, k := range g.steps {
		pos := g.spec.Dispatches[i].DispatchArgs(bound)
		if err := k.spec.CheckArgs(pos); err != nil {
			l.failErr(fmt.Errorf("graph %q dispatch %d: %w", g.spec.Name, i, err))
			return
		}
		inv, err := l.resolveLocked(rtID, k, pos)
		if err != nil {
			l.failErr(err)
			return
		}
		invs[i] = inv
	}
	for i, k := range g.steps {
		inv := invs[i]
		rt.record(k.spec.Name, func() error { return k.run(inv) })
	}
	l.stats.graphLaunches.Add(1)
}

func (k *kernel) run(inv *Invocation) error {
	if err := k.program(inv); err != nil {
		return fmt.Errorf("%s: %w", k, err)
	}
	return nil
}

// resolveLocked turns argument handles into host views. Must be called with
// mu held.
func (l *Library) resolveLocked(rtID capi.Runtime, k *kernel, args []capi.Argument) (*Invocation, error) {
	inv := &Invocation{Kernel: k.spec.Name, args: make([]value, len(args))}
	for i, a := range args {
		v := value{arg: a}
		switch a.Type {
		case capi.ArgumentTypeNdArray:
			nd, err := l.resolveNdArrayLocked(rtID, a.NdArray)
			if err != nil {
				return nil, fmt.Errorf("arg %d: %w", i, err)
			}
			v.nd = nd
		case capi.ArgumentTypeTexture:
			tex, err := l.resolveTextureLocked(rtID, a.Texture)
			if err != nil {
				return nil, fmt.Errorf("arg %d: %w", i, err)
			}
			v.tex = tex
		}
		inv.args[i] = v
	}
	return inv, nil
}

func (l *Library) resolveNdArrayLocked(rtID capi.Runtime, nd capi.NdArray) (NdArray, error) {
	m, ok := l.memories[nd.Memory]
	if !ok || m.rt != rtID {
		return NdArray{}, errorf(capi.ErrorInvalidArgument, "unknown memory handle %d", nd.Memory)
	}
	if nd.Shape.DimCount > capi.MaxNdShapeDims || nd.ElemShape.DimCount > capi.MaxNdShapeDims {
		return NdArray{}, errorf(capi.ErrorArgumentOutOfRange, "ndarray rank exceeds %d", capi.MaxNdShapeDims)
	}
	elem := nd.ElemType.Size()
	if elem == 0 {
		return NdArray{}, errorf(capi.ErrorInvalidArgument, "ndarray element type %s has no size", nd.ElemType)
	}
	need := uint64(elem) * nd.Shape.Product() * nd.ElemShape.Product()
	if need > uint64(len(m.data)) {
		return NdArray{}, errorf(capi.ErrorArgumentOutOfRange,
			"ndarray needs %d bytes, memory %d has %d", need, nd.Memory, len(m.data))
	}
	return NdArray{
		Type:      nd.ElemType,
		Shape:     append([]uint32(nil), nd.Shape.Slice()...),
		ElemShape: append([]uint32(nil), nd.ElemShape.Slice()...),
		Data:      m.data[:need],
	}, nil
}

func (l *Library) resolveTextureLocked(rtID capi.Runtime, t capi.Texture) (Texture, error) {
	img, ok := l.images[t.Image]
	if !ok || img.rt != rtID {
		return Texture{}, errorf(capi.ErrorInvalidArgument, "unknown image handle %d", t.Image)
	}
	tex := Texture{
		Dimension: img.info.Dimension,
		Extent:    img.info.Extent,
		Format:    img.info.Format,
		Data:      img.levels[0],
	}
	if t.Sampler != capi.Null {
		s, ok := l.samplers[t.Sampler]
		if !ok || s.rt != rtID {
			return Texture{}, errorf(capi.ErrorInvalidArgument, "unknown sampler handle %d", t.Sampler)
		}
		info := s.info
		tex.Sampler = &info
	}
	return tex, nil
}
