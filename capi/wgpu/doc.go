// Package wgpu provides a GPU compute device over the gogpu/wgpu HAL
// implementing capi.Library.
//
// Importing the package registers it for the Vulkan architecture:
//
//	import _ "github.com/gogpu/taichi/capi/wgpu"
//
// Module kernels name a WGSL artifact in the manifest. Shaders are compiled
// to SPIR-V with naga when the module is loaded. Parameter p binds at
// binding 2p of group 0: an ND-array as a storage buffer with its shape as
// a uniform of sixteen u32 at 2p+1, a scalar as a 16-byte uniform.
//
// Images may be allocated, transitioned and sampled objects created, but
// image copies and texture kernel arguments report NotSupported.
//
// Build with the nogpu tag to leave the package empty.
package wgpu
