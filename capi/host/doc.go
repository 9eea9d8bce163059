// Package host provides a pure Go compute device implementing capi.Library.
//
// The host device is the reference backend: it needs no GPU and no native
// library, which makes it the default for tests and for machines without a
// supported accelerator. Importing the package registers it for the x64 and
// arm64 architectures:
//
//	import _ "github.com/gogpu/taichi/capi/host"
//
// Kernels are Go programs looked up by the host symbol named in the module
// manifest:
//
//	[[kernels]]
//	name = "chess_board"
//	host = "checkerboard"
//
// A few programs are built in (see ProgramCheckerboard and friends); others
// are added with RegisterProgram before the module is loaded.
//
// Launches validate their arguments immediately and record a command.
// Flush moves recorded commands to the device queue and Wait executes the
// queue in order on the calling goroutine, so program failures are reported
// by Wait.
package host
