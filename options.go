package taichi

import (
	"slices"

	"github.com/gogpu/taichi/capi"
)

// RuntimeOption configures a Runtime during creation.
// Use functional options to customize runtime creation.
//
// Example:
//
//	// Default device of the best library for the arch
//	rt, err := taichi.NewRuntime(capi.ArchVulkan)
//
//	// Second GPU, explicit library (dependency injection)
//	rt, err := taichi.NewRuntime(capi.ArchVulkan,
//	    taichi.WithDeviceIndex(1),
//	    taichi.WithLibrary(lib))
type RuntimeOption func(*runtimeOptions)

// runtimeOptions holds optional configuration for Runtime creation.
type runtimeOptions struct {
	deviceIndex  uint32
	library      capi.Library
	capabilities []capi.CapabilityLevelInfo
	overrideCaps bool
	device       any
}

// defaultRuntimeOptions returns the default runtime options.
func defaultRuntimeOptions() runtimeOptions {
	return runtimeOptions{
		deviceIndex: 0,
		library:     nil, // Resolved from the registry if nil
	}
}

// WithDeviceIndex selects the device when the library exposes several.
// The default is device 0.
func WithDeviceIndex(index uint32) RuntimeOption {
	return func(o *runtimeOptions) {
		o.deviceIndex = index
	}
}

// WithLibrary uses lib instead of the registered library for the arch.
func WithLibrary(lib capi.Library) RuntimeOption {
	return func(o *runtimeOptions) {
		o.library = lib
	}
}

// WithCapabilities overrides the capabilities the runtime reports and
// compiles for. The library must implement capi.RuntimeCreatorExt,
// otherwise NewRuntime fails with ErrNotSupported.
func WithCapabilities(caps ...capi.CapabilityLevelInfo) RuntimeOption {
	return func(o *runtimeOptions) {
		o.capabilities = slices.Clone(caps)
		o.overrideCaps = true
	}
}

// WithNativeDevice builds the runtime on a device owned by the host
// application, for example a gpucontext.DeviceProvider for the wgpu library.
// The library must implement capi.RuntimeImporter, otherwise NewRuntime
// fails with ErrNotSupported. WithDeviceIndex is ignored.
func WithNativeDevice(device any) RuntimeOption {
	return func(o *runtimeOptions) {
		o.device = device
	}
}
