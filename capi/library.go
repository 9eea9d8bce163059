// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package capi

import "log/slog"

// Library is the flat function table of a compute backend.
//
// Functions never return errors directly. A failing call records a code and
// a message in the library's process-wide last-error slot and returns a
// zero value; callers query the slot with GetLastError after every call.
//
// Handles are only meaningful to the library that created them.
type Library interface {
	// GetVersion returns major*1000000 + minor*1000 + patch.
	GetVersion() uint32

	// GetAvailableArchs returns the architectures this library can create
	// runtimes for on the current machine.
	GetAvailableArchs() []Arch

	// GetLastError reports the last error code. With a nil message it only
	// stores the required message length in *messageSize. With a non-nil
	// message it copies up to len(message) bytes, stores the required length
	// and clears the slot when the whole message fit.
	GetLastError(messageSize *uint64, message []byte) Error

	// SetLastError overwrites the last-error slot.
	SetLastError(code Error, message string)

	CreateRuntime(arch Arch, deviceIndex uint32) Runtime
	DestroyRuntime(runtime Runtime)
	GetRuntimeCapabilities(runtime Runtime) []CapabilityLevelInfo

	AllocateMemory(runtime Runtime, info *MemoryAllocateInfo) Memory
	FreeMemory(runtime Runtime, memory Memory)
	// MapMemory returns a host view of the whole allocation. The view is valid
	// until UnmapMemory.
	MapMemory(runtime Runtime, memory Memory) []byte
	UnmapMemory(runtime Runtime, memory Memory)

	AllocateImage(runtime Runtime, info *ImageAllocateInfo) Image
	FreeImage(runtime Runtime, image Image)
	CreateSampler(runtime Runtime, info *SamplerCreateInfo) Sampler
	DestroySampler(runtime Runtime, sampler Sampler)

	CreateEvent(runtime Runtime) Event
	DestroyEvent(event Event)

	CopyMemoryDeviceToDevice(runtime Runtime, dst, src *MemorySlice)
	CopyImageDeviceToDevice(runtime Runtime, dst, src *ImageSlice)
	TrackImage(runtime Runtime, image Image, layout ImageLayout)
	TransitionImage(runtime Runtime, image Image, layout ImageLayout)

	LaunchKernel(runtime Runtime, kernel Kernel, args []Argument)
	LaunchComputeGraph(runtime Runtime, graph ComputeGraph, args []NamedArgument)
	SignalEvent(runtime Runtime, event Event)
	ResetEvent(runtime Runtime, event Event)
	WaitEvent(runtime Runtime, event Event)

	// Flush submits all recorded commands to the device.
	Flush(runtime Runtime)
	// Wait flushes and blocks until every submitted command completed.
	Wait(runtime Runtime)

	LoadAotModule(runtime Runtime, path string) AotModule
	CreateAotModule(runtime Runtime, data []byte) AotModule
	DestroyAotModule(module AotModule)
	GetAotModuleKernel(module AotModule, name string) Kernel
	GetAotModuleComputeGraph(module AotModule, name string) ComputeGraph
}

// RuntimeCreatorExt is implemented by libraries that accept a capability
// override at runtime creation.
type RuntimeCreatorExt interface {
	CreateRuntimeExt(arch Arch, deviceIndex uint32, capabilities []CapabilityLevelInfo) Runtime
}

// RuntimeImporter is implemented by libraries that can build a runtime on
// top of a device created by the host application.
type RuntimeImporter interface {
	ImportRuntime(arch Arch, device any) Runtime
}

// LoggerSetter is implemented by libraries that accept a logger.
type LoggerSetter interface {
	SetLogger(*slog.Logger)
}
