//go:build taichi

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package native

// #cgo LDFLAGS: -ltaichi_c_api
// #cgo linux LDFLAGS: -Wl,-rpath,$ORIGIN
// #include <stdlib.h>
// #include <string.h>
// #include <taichi/taichi_core.h>
//
// static void tgo_arg_i32(TiArgument* a, int32_t v) { a->type = TI_ARGUMENT_TYPE_I32; a->value.i32 = v; }
// static void tgo_arg_f32(TiArgument* a, float v) { a->type = TI_ARGUMENT_TYPE_F32; a->value.f32 = v; }
// static void tgo_arg_ndarray(TiArgument* a, TiNdArray v) { a->type = TI_ARGUMENT_TYPE_NDARRAY; a->value.ndarray = v; }
// static void tgo_arg_texture(TiArgument* a, TiTexture v) { a->type = TI_ARGUMENT_TYPE_TEXTURE; a->value.texture = v; }
import "C"

import (
	"strings"
	"sync"
	"unsafe"

	"github.com/gogpu/taichi/capi"
)

// errorBufferSize bounds messages read from the library.
const errorBufferSize = 4096

func init() {
	capi.Register(capi.LibraryNative, availableArchs(), New)
}

// Available reports whether the binding was built in.
func Available() bool { return true }

// New returns the library backed by libtaichi_c_api.
func New() (capi.Library, error) {
	return &Library{sizes: make(map[capi.Memory]uint64)}, nil
}

// Library forwards every call to libtaichi_c_api. Handles are the library's
// own pointers; the last-error slot lives in the C library.
type Library struct {
	mu sync.Mutex
	// sizes remembers allocation sizes for MapMemory.
	sizes map[capi.Memory]uint64
}

// ptr turns a handle back into the pointer the C library issued.
func ptr(h uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(h)) //nolint:govet // C-owned handle
}

func handle(p unsafe.Pointer) uint64 { return uint64(uintptr(p)) }

func cbool(b bool) C.TiBool {
	if b {
		return C.TI_TRUE
	}
	return C.TI_FALSE
}

func availableArchs() []capi.Arch {
	var n C.uint32_t
	C.ti_get_available_archs(&n, nil)
	if n == 0 {
		return nil
	}
	buf := make([]C.TiArch, n)
	C.ti_get_available_archs(&n, &buf[0])
	archs := make([]capi.Arch, 0, n)
	for _, a := range buf[:n] {
		archs = append(archs, capi.Arch(a))
	}
	return archs
}

// GetVersion implements capi.Library.
func (l *Library) GetVersion() uint32 { return uint32(C.ti_get_version()) }

// GetAvailableArchs implements capi.Library.
func (l *Library) GetAvailableArchs() []capi.Arch { return availableArchs() }

// GetLastError implements capi.Library. The C slot has no length query, so
// the message is read through a bounded buffer and the slot is cleared when
// the caller's buffer holds all of it.
func (l *Library) GetLastError(messageSize *uint64, message []byte) capi.Error {
	buf := (*C.char)(C.malloc(errorBufferSize))
	defer C.free(unsafe.Pointer(buf))
	C.memset(unsafe.Pointer(buf), 0, errorBufferSize)

	code := capi.Error(C.ti_get_last_error(errorBufferSize, buf))
	msg := C.GoString(buf)
	if messageSize != nil {
		*messageSize = uint64(len(msg))
	}
	if message != nil {
		if n := copy(message, msg); n == len(msg) {
			C.ti_set_last_error(C.TI_ERROR_SUCCESS, nil)
		}
	}
	return code
}

// SetLastError implements capi.Library.
func (l *Library) SetLastError(code capi.Error, message string) {
	cmsg := C.CString(message)
	defer C.free(unsafe.Pointer(cmsg))
	C.ti_set_last_error(C.TiError(code), cmsg)
}

// CreateRuntime implements capi.Library. The C library always opens its
// default device.
func (l *Library) CreateRuntime(arch capi.Arch, deviceIndex uint32) capi.Runtime {
	if deviceIndex != 0 {
		l.SetLastError(capi.ErrorArgumentOutOfRange, "device selection is not supported by the native library")
		return capi.Null
	}
	return capi.Runtime(handle(unsafe.Pointer(C.ti_create_runtime(C.TiArch(arch)))))
}

// DestroyRuntime implements capi.Library.
func (l *Library) DestroyRuntime(rt capi.Runtime) {
	C.ti_destroy_runtime(cRuntime(rt))
}

// GetRuntimeCapabilities implements capi.Library.
func (l *Library) GetRuntimeCapabilities(rt capi.Runtime) []capi.CapabilityLevelInfo {
	var n C.uint32_t
	C.ti_get_runtime_capabilities(cRuntime(rt), &n, nil)
	if n == 0 {
		return nil
	}
	buf := make([]C.TiCapabilityLevelInfo, n)
	C.ti_get_runtime_capabilities(cRuntime(rt), &n, &buf[0])
	caps := make([]capi.CapabilityLevelInfo, 0, n)
	for _, c := range buf[:n] {
		caps = append(caps, capi.CapabilityLevelInfo{
			Capability: capi.Capability(c.capability),
			Level:      uint32(c.level),
		})
	}
	return caps
}

// AllocateMemory implements capi.Library.
func (l *Library) AllocateMemory(rt capi.Runtime, info *capi.MemoryAllocateInfo) capi.Memory {
	if info == nil {
		l.SetLastError(capi.ErrorArgumentNull, "memory allocate info is nil")
		return capi.Null
	}
	ci := C.TiMemoryAllocateInfo{
		size:           C.uint64_t(info.Size),
		host_write:     cbool(info.HostWrite),
		host_read:      cbool(info.HostRead),
		export_sharing: cbool(info.ExportSharing),
		usage:          C.TiMemoryUsageFlags(info.Usage),
	}
	m := capi.Memory(handle(unsafe.Pointer(C.ti_allocate_memory(cRuntime(rt), &ci))))
	if m != capi.Null {
		l.mu.Lock()
		l.sizes[m] = info.Size
		l.mu.Unlock()
	}
	return m
}

// FreeMemory implements capi.Library.
func (l *Library) FreeMemory(rt capi.Runtime, m capi.Memory) {
	C.ti_free_memory(cRuntime(rt), cMemory(m))
	l.mu.Lock()
	delete(l.sizes, m)
	l.mu.Unlock()
}

// MapMemory implements capi.Library. The view aliases the C mapping.
func (l *Library) MapMemory(rt capi.Runtime, m capi.Memory) []byte {
	l.mu.Lock()
	size, ok := l.sizes[m]
	l.mu.Unlock()
	if !ok {
		l.SetLastError(capi.ErrorInvalidArgument, "memory was not allocated by this library")
		return nil
	}
	p := C.ti_map_memory(cRuntime(rt), cMemory(m))
	if p == nil {
		return nil
	}
	return unsafe.Slice((*byte)(p), size)
}

// UnmapMemory implements capi.Library.
func (l *Library) UnmapMemory(rt capi.Runtime, m capi.Memory) {
	C.ti_unmap_memory(cRuntime(rt), cMemory(m))
}

// AllocateImage implements capi.Library.
func (l *Library) AllocateImage(rt capi.Runtime, info *capi.ImageAllocateInfo) capi.Image {
	if info == nil {
		l.SetLastError(capi.ErrorArgumentNull, "image allocate info is nil")
		return capi.Null
	}
	ci := C.TiImageAllocateInfo{
		dimension:       C.TiImageDimension(info.Dimension),
		extent:          cExtent(info.Extent),
		mip_level_count: C.uint32_t(info.MipLevelCount),
		format:          C.TiFormat(info.Format),
		export_sharing:  cbool(info.ExportSharing),
		usage:           C.TiImageUsageFlags(info.Usage),
	}
	return capi.Image(handle(unsafe.Pointer(C.ti_allocate_image(cRuntime(rt), &ci))))
}

// FreeImage implements capi.Library.
func (l *Library) FreeImage(rt capi.Runtime, img capi.Image) {
	C.ti_free_image(cRuntime(rt), cImage(img))
}

// CreateSampler implements capi.Library.
func (l *Library) CreateSampler(rt capi.Runtime, info *capi.SamplerCreateInfo) capi.Sampler {
	if info == nil {
		l.SetLastError(capi.ErrorArgumentNull, "sampler create info is nil")
		return capi.Null
	}
	ci := C.TiSamplerCreateInfo{
		mag_filter:     C.TiFilter(info.MagFilter),
		min_filter:     C.TiFilter(info.MinFilter),
		address_mode:   C.TiAddressMode(info.AddressMode),
		max_anisotropy: C.float(info.MaxAnisotropy),
	}
	return capi.Sampler(handle(unsafe.Pointer(C.ti_create_sampler(cRuntime(rt), &ci))))
}

// DestroySampler implements capi.Library.
func (l *Library) DestroySampler(rt capi.Runtime, s capi.Sampler) {
	C.ti_destroy_sampler(cRuntime(rt), cSampler(s))
}

// CreateEvent implements capi.Library.
func (l *Library) CreateEvent(rt capi.Runtime) capi.Event {
	return capi.Event(handle(unsafe.Pointer(C.ti_create_event(cRuntime(rt)))))
}

// DestroyEvent implements capi.Library.
func (l *Library) DestroyEvent(e capi.Event) {
	C.ti_destroy_event(cEvent(e))
}

// CopyMemoryDeviceToDevice implements capi.Library.
func (l *Library) CopyMemoryDeviceToDevice(rt capi.Runtime, dst, src *capi.MemorySlice) {
	if dst == nil || src == nil {
		l.SetLastError(capi.ErrorArgumentNull, "memory slice is nil")
		return
	}
	d, s := cMemorySlice(*dst), cMemorySlice(*src)
	C.ti_copy_memory_device_to_device(cRuntime(rt), &d, &s)
}

// CopyImageDeviceToDevice implements capi.Library.
func (l *Library) CopyImageDeviceToDevice(rt capi.Runtime, dst, src *capi.ImageSlice) {
	if dst == nil || src == nil {
		l.SetLastError(capi.ErrorArgumentNull, "image slice is nil")
		return
	}
	d, s := cImageSlice(*dst), cImageSlice(*src)
	C.ti_copy_image_device_to_device(cRuntime(rt), &d, &s)
}

// TrackImage implements capi.Library.
func (l *Library) TrackImage(rt capi.Runtime, img capi.Image, layout capi.ImageLayout) {
	C.ti_track_image_ext(cRuntime(rt), cImage(img), C.TiImageLayout(layout))
}

// TransitionImage implements capi.Library.
func (l *Library) TransitionImage(rt capi.Runtime, img capi.Image, layout capi.ImageLayout) {
	C.ti_transition_image(cRuntime(rt), cImage(img), C.TiImageLayout(layout))
}

// LaunchKernel implements capi.Library.
func (l *Library) LaunchKernel(rt capi.Runtime, k capi.Kernel, args []capi.Argument) {
	cargs, ok := l.cArguments(args)
	if !ok {
		return
	}
	var p *C.TiArgument
	if len(cargs) > 0 {
		p = &cargs[0]
	}
	C.ti_launch_kernel(cRuntime(rt), cKernel(k), C.uint32_t(len(cargs)), p)
}

// LaunchComputeGraph implements capi.Library.
func (l *Library) LaunchComputeGraph(rt capi.Runtime, g capi.ComputeGraph, args []capi.NamedArgument) {
	plain := make([]capi.Argument, len(args))
	for i, a := range args {
		plain[i] = a.Argument
	}
	cargs, ok := l.cArguments(plain)
	if !ok {
		return
	}
	named := make([]C.TiNamedArgument, len(args))
	for i, a := range args {
		name := C.CString(a.Name)
		defer C.free(unsafe.Pointer(name))
		named[i].name = name
		named[i].argument = cargs[i]
	}
	var p *C.TiNamedArgument
	if len(named) > 0 {
		p = &named[0]
	}
	C.ti_launch_compute_graph(cRuntime(rt), cComputeGraph(g), C.uint32_t(len(named)), p)
}

// SignalEvent implements capi.Library.
func (l *Library) SignalEvent(rt capi.Runtime, e capi.Event) {
	C.ti_signal_event(cRuntime(rt), cEvent(e))
}

// ResetEvent implements capi.Library.
func (l *Library) ResetEvent(rt capi.Runtime, e capi.Event) {
	C.ti_reset_event(cRuntime(rt), cEvent(e))
}

// WaitEvent implements capi.Library.
func (l *Library) WaitEvent(rt capi.Runtime, e capi.Event) {
	C.ti_wait_event(cRuntime(rt), cEvent(e))
}

// Flush implements capi.Library.
func (l *Library) Flush(rt capi.Runtime) {
	C.ti_submit(cRuntime(rt))
}

// Wait implements capi.Library.
func (l *Library) Wait(rt capi.Runtime) {
	C.ti_wait(cRuntime(rt))
}

// LoadAotModule implements capi.Library.
func (l *Library) LoadAotModule(rt capi.Runtime, path string) capi.AotModule {
	if strings.IndexByte(path, 0) >= 0 {
		l.SetLastError(capi.ErrorInvalidArgument, "module path contains a NUL byte")
		return capi.Null
	}
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	return capi.AotModule(handle(unsafe.Pointer(C.ti_load_aot_module(cRuntime(rt), cpath))))
}

// CreateAotModule implements capi.Library.
func (l *Library) CreateAotModule(rt capi.Runtime, data []byte) capi.AotModule {
	if len(data) == 0 {
		l.SetLastError(capi.ErrorArgumentNull, "module data is empty")
		return capi.Null
	}
	buf := C.CBytes(data)
	defer C.free(buf)
	return capi.AotModule(handle(unsafe.Pointer(C.ti_create_aot_module(cRuntime(rt), buf, C.uint64_t(len(data))))))
}

// DestroyAotModule implements capi.Library.
func (l *Library) DestroyAotModule(m capi.AotModule) {
	C.ti_destroy_aot_module(cAotModule(m))
}

// GetAotModuleKernel implements capi.Library.
func (l *Library) GetAotModuleKernel(m capi.AotModule, name string) capi.Kernel {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return capi.Kernel(handle(unsafe.Pointer(C.ti_get_aot_module_kernel(cAotModule(m), cname))))
}

// GetAotModuleComputeGraph implements capi.Library.
func (l *Library) GetAotModuleComputeGraph(m capi.AotModule, name string) capi.ComputeGraph {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return capi.ComputeGraph(handle(unsafe.Pointer(C.ti_get_aot_module_compute_graph(cAotModule(m), cname))))
}

// cArguments converts arguments. Scalars other than i32 and f32 have no
// slot in the C argument union.
func (l *Library) cArguments(args []capi.Argument) ([]C.TiArgument, bool) {
	out := make([]C.TiArgument, len(args))
	for i, a := range args {
		switch a.Type {
		case capi.ArgumentTypeI32:
			C.tgo_arg_i32(&out[i], C.int32_t(a.I32))
		case capi.ArgumentTypeF32:
			C.tgo_arg_f32(&out[i], C.float(a.F32))
		case capi.ArgumentTypeNdArray:
			C.tgo_arg_ndarray(&out[i], cNdArray(a.NdArray))
		case capi.ArgumentTypeTexture:
			C.tgo_arg_texture(&out[i], cTexture(a.Texture))
		default:
			l.SetLastError(capi.ErrorNotSupported, a.Type.String()+" arguments are not supported by the native library")
			return nil, false
		}
	}
	return out, true
}

func cRuntime(h capi.Runtime) C.TiRuntime { return C.TiRuntime(ptr(uint64(h))) }
func cMemory(h capi.Memory) C.TiMemory { return C.TiMemory(ptr(uint64(h))) }
func cImage(h capi.Image) C.TiImage { return C.TiImage(ptr(uint64(h))) }
func cSampler(h capi.Sampler) C.TiSampler { return C.TiSampler(ptr(uint64(h))) }
func cEvent(h capi.Event) C.TiEvent { return C.TiEvent(ptr(uint64(h))) }
func cAotModule(h capi.AotModule) C.TiAotModule { return C.TiAotModule(ptr(uint64(h))) }
func cKernel(h capi.Kernel) C.TiKernel { return C.TiKernel(ptr(uint64(h))) }
func cComputeGraph(h capi.ComputeGraph) C.TiComputeGraph {
	return C.TiComputeGraph(ptr(uint64(h)))
}

func cExtent(e capi.ImageExtent) C.TiImageExtent {
	return C.TiImageExtent{
		width:             C.uint32_t(e.Width),
		height:            C.uint32_t(e.Height),
		depth:             C.uint32_t(e.Depth),
		array_layer_count: C.uint32_t(e.ArrayLayerCount),
	}
}

func cMemorySlice(s capi.MemorySlice) C.TiMemorySlice {
	return C.TiMemorySlice{
		memory: cMemory(s.Memory),
		offset: C.uint64_t(s.Offset),
		size:   C.uint64_t(s.Size),
	}
}

func cImageSlice(s capi.ImageSlice) C.TiImageSlice {
	return C.TiImageSlice{
		image: cImage(s.Image),
		offset: C.TiImageOffset{
			x:                  C.uint32_t(s.Offset.X),
			y:                  C.uint32_t(s.Offset.Y),
			z:                  C.uint32_t(s.Offset.Z),
			array_layer_offset: C.uint32_t(s.Offset.ArrayLayer),
		},
		extent:    cExtent(s.Extent),
		mip_level: C.uint32_t(s.MipLevel),
	}
}

func cShape(s capi.NdShape) C.TiNdShape {
	var out C.TiNdShape
	out.dim_count = C.uint32_t(s.DimCount)
	for i, d := range s.Dims {
		out.dims[i] = C.uint32_t(d)
	}
	return out
}

func cNdArray(nd capi.NdArray) C.TiNdArray {
	return C.TiNdArray{
		memory:     cMemory(nd.Memory),
		shape:      cShape(nd.Shape),
		elem_shape: cShape(nd.ElemShape),
		elem_type:  C.TiDataType(nd.ElemType),
	}
}

func cTexture(t capi.Texture) C.TiTexture {
	return C.TiTexture{
		image:     cImage(t.Image),
		sampler:   cSampler(t.Sampler),
		dimension: C.TiImageDimension(t.Dimension),
		extent:    cExtent(t.Extent),
		format:    C.TiFormat(t.Format),
	}
}
