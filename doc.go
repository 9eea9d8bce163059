// Package taichi is a host-side client for Taichi compute backends.
//
// # Overview
//
// taichi wraps the flat backend function table of package capi with owned
// handles: runtimes, memory allocations, images, samplers, textures, events,
// ahead-of-time modules, kernels and compute graphs. Every handle releases
// its backend object exactly once, when the last handle and the last
// dependent resource have been closed.
//
// # Quick Start
//
//	import (
//		"github.com/gogpu/taichi"
//		"github.com/gogpu/taichi/capi"
//		_ "github.com/gogpu/taichi/capi/host"
//	)
//
//	rt, err := taichi.NewRuntime(capi.ArchX64)
//	if err != nil {
//		return err
//	}
//	defer rt.Close()
//
//	arr, err := taichi.NewNdArray[int32](rt).Shape(16, 16).HostRead(true).Build()
//	if err != nil {
//		return err
//	}
//	defer arr.Close()
//
//	mod, err := rt.LoadModule("testdata/chess_board")
//	...
//	g, err := mod.ComputeGraph("g_run")
//	...
//	g.SetArgNdArray("arr", arr)
//	g.Launch()
//	rt.Wait()
//	data, err := arr.ToSlice()
//
// # Backends
//
// Backends register themselves with capi.Register from init functions:
//   - capi/host: pure Go reference device for x64 and arm64
//   - capi/wgpu: GPU device over gogpu/wgpu (Vulkan, Metal, DX12, GL)
//   - capi/native: cgo binding to libtaichi_c_api (build tag taichi)
//
// When several libraries serve an architecture, the native binding wins
// over wgpu and wgpu over host.
//
// # Errors
//
// Backend calls report failures through a per-library error slot. The
// package queries the slot after every call and returns *Error, which
// matches the Err* sentinels with errors.Is. Close never returns an error;
// teardown failures are logged at warn level.
//
// # Threading
//
// A Runtime and the resources created from it are driven from one goroutine
// at a time. Close and Clone may be called from any goroutine.
package taichi
