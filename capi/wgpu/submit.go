//go:build !nogpu

package wgpu

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/taichi/capi"
)

// frame holds one submission: the encoder while commands are encoded, then
// the command buffer, its fence and the transient objects it references.
type frame struct {
	l   *Library
	rt  *runtime
	enc hal.CommandEncoder

	cmdBuf     hal.CommandBuffer
	fence      hal.Fence
	bindGroups []hal.BindGroup
	buffers    []hal.Buffer
}

// cleanup destroys all transient objects of the frame.
func (f *frame) cleanup() {
	dev := f.rt.device
	if f.fence != nil {
		dev.DestroyFence(f.fence)
	}
	if f.cmdBuf != nil {
		dev.FreeCommandBuffer(f.cmdBuf)
	}
	for _, g := range f.bindGroups {
		dev.DestroyBindGroup(g)
	}
	for _, b := range f.buffers {
		dev.DestroyBuffer(b)
	}
	*f = frame{l: f.l, rt: f.rt}
}

// uniform creates a transient uniform buffer holding data.
func (f *frame) uniform(label string, data []byte) (hal.Buffer, error) {
	buf, err := createBuffer(f.rt.device, label, uint64(len(data)), uniformUsage)
	if err != nil {
		return nil, err
	}
	f.buffers = append(f.buffers, buf)
	f.rt.queue.WriteBuffer(buf, 0, data)
	return buf, nil
}

// Flush implements capi.Library. Recorded commands are encoded into one
// command buffer and submitted without waiting.
func (l *Library) Flush(id capi.Runtime) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(id)
	if !ok {
		return
	}
	if err := l.flushLocked(rt); err != nil {
		l.failErr(err)
	}
}

// Wait implements capi.Library.
func (l *Library) Wait(id capi.Runtime) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(id)
	if !ok {
		return
	}
	if err := l.waitLocked(rt); err != nil {
		l.failErr(err)
	}
}

// flushLocked encodes and submits the recorded commands. The first command
// that fails to encode drops the batch. Must be called with mu held.
func (l *Library) flushLocked(rt *runtime) error {
	if len(rt.recorded) == 0 {
		return nil
	}
	batch := rt.recorded
	rt.recorded = nil

	f := &frame{l: l, rt: rt}
	enc, err := rt.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "taichi_batch"})
	if err != nil {
		return fmt.Errorf("%w: create command encoder: %v", ErrDevice, err)
	}
	if err := enc.BeginEncoding("taichi_batch"); err != nil {
		return fmt.Errorf("%w: begin encoding: %v", ErrDevice, err)
	}
	f.enc = enc

	for i, cmd := range batch {
		if err := cmd.encode(f); err != nil {
			enc.DiscardEncoding()
			f.cleanup()
			l.log().Warn("wgpu: command failed", "runtime", rt.id, "command", cmd.name,
				"dropped", len(batch)-i-1, "err", err)
			return fmt.Errorf("%s: %w", cmd.name, err)
		}
	}

	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		f.cleanup()
		return fmt.Errorf("%w: end encoding: %v", ErrDevice, err)
	}
	f.cmdBuf = cmdBuf
	if err := l.submitLocked(f); err != nil {
		f.cleanup()
		return err
	}
	rt.inflight = append(rt.inflight, f)
	l.log().Debug("wgpu: batch submitted", "runtime", rt.id, "commands", len(batch))
	return nil
}

func (l *Library) submitLocked(f *frame) error {
	fence, err := f.rt.device.CreateFence()
	if err != nil {
		return fmt.Errorf("%w: create fence: %v", ErrDevice, err)
	}
	f.fence = fence
	if err := f.rt.queue.Submit([]hal.CommandBuffer{f.cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("%w: submit: %v", ErrDevice, err)
	}
	return nil
}

// waitLocked flushes and blocks on every in-flight submission. Must be
// called with mu held.
func (l *Library) waitLocked(rt *runtime) error {
	err := l.flushLocked(rt)
	for _, f := range rt.inflight {
		if werr := l.waitFrame(f); werr != nil && err == nil {
			err = werr
		}
		f.cleanup()
	}
	rt.inflight = nil
	return err
}

func (l *Library) waitFrame(f *frame) error {
	ok, err := f.rt.device.Wait(f.fence, 1, l.timeout)
	if err != nil {
		return fmt.Errorf("%w: wait for GPU: %v", ErrDevice, err)
	}
	if !ok {
		return fmt.Errorf("%w after %v", ErrTimeout, l.timeout)
	}
	return nil
}

// runOnce encodes, submits and waits for a single private submission.
// Must be called with mu held.
func (l *Library) runOnce(rt *runtime, label string, encode func(*frame) error) error {
	f := &frame{l: l, rt: rt}
	defer f.cleanup()

	enc, err := rt.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("%w: create command encoder: %v", ErrDevice, err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		return fmt.Errorf("%w: begin encoding: %v", ErrDevice, err)
	}
	f.enc = enc
	if err := encode(f); err != nil {
		enc.DiscardEncoding()
		return err
	}
	cmdBuf, err := enc.EndEncoding()
	if err != nil {
		return fmt.Errorf("%w: end encoding: %v", ErrDevice, err)
	}
	f.cmdBuf = cmdBuf
	if err := l.submitLocked(f); err != nil {
		return err
	}
	return l.waitFrame(f)
}
