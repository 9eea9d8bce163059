//go:build !nogpu

package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/taichi/capi"
)

var defaultWorkgroup = [3]uint32{64, 1, 1}

// binding is one resolved kernel parameter.
type binding struct {
	buf     hal.Buffer // storage buffer of an ND-array
	uniform []byte     // shape or scalar bytes
}

// dispatch is a fully resolved kernel launch.
type dispatch struct {
	kernel   *kernel
	bindings []binding
	grid     [3]uint32
}

// LaunchKernel implements capi.Library.
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
	d, err := l.resolveLocked(rtID, k, args)
	if err != nil {
		l.failErr(err)
		return
	}
	rt.record(k.spec.Name, d.encode)
}

// LaunchComputeGraph implements capi.Library.
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

	ds := make([]*dispatch, len(g.steps))
	for i, k := range g.steps {
		pos := g.spec.Dispatches[i].DispatchArgs(bound)
		if err := k.spec.CheckArgs(pos); err != nil {
			l.failErr(fmt.Errorf("graph %q dispatch %d: %w", g.spec.Name, i, err))
			return
		}
		d, err := l.resolveLocked(rtID, k, pos)
		if err != nil {
			l.failErr(err)
			return
		}
		ds[i] = d
	}
	for i, d := range ds {
		rt.record(g.steps[i].spec.Name, d.encode)
	}
}

// resolveLocked binds argument handles to device buffers and computes the
// workgroup grid. Must be called with mu held.
func (l *Library) resolveLocked(rtID capi.Runtime, k *kernel, args []capi.Argument) (*dispatch, error) {
	d := &dispatch{kernel: k, bindings: make([]binding, len(args))}
	var first *capi.NdArray
	for i, a := range args {
		switch a.Type {
		case capi.ArgumentTypeNdArray:
			nd := a.NdArray
			m, ok := l.memories[nd.Memory]
			if !ok || m.rt != rtID {
				return nil, errorf(capi.ErrorInvalidArgument, "arg %d: unknown memory handle %d", i, nd.Memory)
			}
			if nd.Shape.DimCount > capi.MaxNdShapeDims || nd.ElemShape.DimCount > capi.MaxNdShapeDims {
				return nil, errorf(capi.ErrorArgumentOutOfRange, "arg %d: ndarray rank exceeds %d", i, capi.MaxNdShapeDims)
			}
			need := uint64(nd.ElemType.Size()) * nd.Shape.Product() * nd.ElemShape.Product()
			if need > m.info.Size {
				return nil, errorf(capi.ErrorArgumentOutOfRange,
					"arg %d: ndarray needs %d bytes, memory %d has %d", i, need, nd.Memory, m.info.Size)
			}
			shape := make([]byte, shapeUniformSize)
			for j, dim := range nd.Shape.Dims {
				binary.LittleEndian.PutUint32(shape[4*j:], dim)
			}
			d.bindings[i] = binding{buf: m.buf, uniform: shape}
			if first == nil {
				first = &args[i].NdArray
			}
		case capi.ArgumentTypeI32:
			d.bindings[i] = binding{uniform: scalarBytes(uint64(uint32(a.I32)))}
		case capi.ArgumentTypeF32:
			d.bindings[i] = binding{uniform: scalarBytes(uint64(math.Float32bits(a.F32)))}
		case capi.ArgumentTypeScalar:
			d.bindings[i] = binding{uniform: scalarBytes(a.Scalar.Bits)}
		default:
			return nil, errorf(capi.ErrorNotSupported, "arg %d: %s arguments are not supported by the wgpu device", i, a.Type)
		}
	}
	d.grid = grid(k.spec.Dispatch, k.spec.WorkgroupSize, first)
	return d, nil
}

func scalarBytes(bits uint64) []byte {
	b := make([]byte, scalarUniformSize)
	binary.LittleEndian.PutUint64(b, bits)
	return b
}

// grid returns the fixed dispatch when given, otherwise enough workgroups
// to cover the leading dimensions of nd.
func grid(fixed, workgroup []uint32, nd *capi.NdArray) [3]uint32 {
	g := [3]uint32{1, 1, 1}
	if len(fixed) > 0 {
		copy(g[:], fixed)
		return g
	}
	if nd == nil {
		return g
	}
	wg := defaultWorkgroup
	if len(workgroup) > 0 {
		wg = [3]uint32{1, 1, 1}
		copy(wg[:], workgroup)
	}
	shape := nd.Shape.Slice()
	for i := 0; i < 3 && i < len(shape); i++ {
		size := max(wg[i], 1)
		g[i] = max((shape[i]+size-1)/size, 1)
	}
	return g
}

// encode records the dispatch into the frame. The bind group and uniform
// buffers live until the frame completes.
func (d *dispatch) encode(f *frame) error {
	k := d.kernel
	if k.pipe == nil || k.pipe.compute == nil {
		return errorf(capi.ErrorInvalidState, "kernel %q has no pipeline", k.spec.Name)
	}
	var entries []gputypes.BindGroupEntry
	for p, b := range d.bindings {
		slot := uint32(2 * p)
		if b.buf != nil {
			entries = append(entries, gputypes.BindGroupEntry{
				Binding:  slot,
				Resource: gputypes.BufferBinding{Buffer: b.buf.NativeHandle()},
			})
			slot++
		}
		u, err := f.uniform(fmt.Sprintf("taichi_%s_arg%d", k.spec.Name, p), b.uniform)
		if err != nil {
			return err
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  slot,
			Resource: gputypes.BufferBinding{Buffer: u.NativeHandle()},
		})
	}

	bg, err := f.rt.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "taichi_" + k.spec.Name,
		Layout:  k.pipe.bgLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("%w: create bind group for %s: %v", ErrDevice, k.spec.Name, err)
	}
	f.bindGroups = append(f.bindGroups, bg)

	pass := f.enc.BeginComputePass(&hal.ComputePassDescriptor{Label: k.spec.Name})
	pass.SetPipeline(k.pipe.compute)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch(d.grid[0], d.grid[1], d.grid[2])
	pass.End()
	return nil
}
