//go:build !nogpu

package wgpu

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/taichi/capi"
	"github.com/gogpu/taichi/internal/manifest"
)

// Binding layout of kernel parameters. Parameter p binds at 2p: an
// ND-array as a read-write storage buffer followed by its shape uniform at
// 2p+1, a scalar as a 16-byte uniform.
const (
	shapeUniformSize  = 4 * capi.MaxNdShapeDims
	scalarUniformSize = 16
)

// compileWGSL compiles WGSL source to SPIR-V words.
func compileWGSL(src string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: compile shader: %v", manifest.ErrCorrupted, err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: SPIR-V length %d is not a multiple of 4", manifest.ErrCorrupted, len(spirvBytes))
	}
	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return words, nil
}

// pipeline is the compiled form of one kernel.
type pipeline struct {
	shader   hal.ShaderModule
	bgLayout hal.BindGroupLayout
	layout   hal.PipelineLayout
	compute  hal.ComputePipeline
}

func bindingEntries(args []manifest.Arg) ([]gputypes.BindGroupLayoutEntry, error) {
	var entries []gputypes.BindGroupLayoutEntry
	uniform := func(binding uint32) gputypes.BindGroupLayoutEntry {
		return gputypes.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		}
	}
	for p, a := range args {
		t, err := a.Type()
		if err != nil {
			return nil, err
		}
		binding := uint32(2 * p)
		switch t {
		case capi.ArgumentTypeNdArray:
			entries = append(entries, gputypes.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: gputypes.ShaderStageCompute,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
			}, uniform(binding+1))
		case capi.ArgumentTypeI32, capi.ArgumentTypeF32, capi.ArgumentTypeScalar:
			entries = append(entries, uniform(binding))
		default:
			return nil, fmt.Errorf("%w: arg %q: %s parameters", ErrUnsupported, a.Name, t)
		}
	}
	return entries, nil
}

// newPipeline compiles a kernel's shader and builds its compute pipeline.
func newPipeline(dev hal.Device, spec *manifest.Kernel, src string) (*pipeline, error) {
	entries, err := bindingEntries(spec.Args)
	if err != nil {
		return nil, err
	}
	words, err := compileWGSL(src)
	if err != nil {
		return nil, err
	}

	p := &pipeline{}
	label := "taichi_" + spec.Name
	p.shader, err = dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create shader module for %s: %v", ErrDevice, spec.Name, err)
	}
	p.bgLayout, err = dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   label + "_bgl",
		Entries: entries,
	})
	if err != nil {
		p.destroy(dev)
		return nil, fmt.Errorf("%w: create bind group layout for %s: %v", ErrDevice, spec.Name, err)
	}
	p.layout, err = dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            label + "_pl",
		BindGroupLayouts: []hal.BindGroupLayout{p.bgLayout},
	})
	if err != nil {
		p.destroy(dev)
		return nil, fmt.Errorf("%w: create pipeline layout for %s: %v", ErrDevice, spec.Name, err)
	}
	entry := spec.Entry
	if entry == "" {
		entry = "main"
	}
	p.compute, err = dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  label,
		Layout: p.layout,
		Compute: hal.ComputeState{
			Module:     p.shader,
			EntryPoint: entry,
		},
	})
	if err != nil {
		p.destroy(dev)
		return nil, fmt.Errorf("%w: create compute pipeline for %s: %v", ErrDevice, spec.Name, err)
	}
	return p, nil
}

// destroy releases the pipeline objects in reverse creation order.
func (p *pipeline) destroy(dev hal.Device) {
	if p.compute != nil {
		dev.DestroyComputePipeline(p.compute)
	}
	if p.layout != nil {
		dev.DestroyPipelineLayout(p.layout)
	}
	if p.bgLayout != nil {
		dev.DestroyBindGroupLayout(p.bgLayout)
	}
	if p.shader != nil {
		dev.DestroyShaderModule(p.shader)
	}
	*p = pipeline{}
}
