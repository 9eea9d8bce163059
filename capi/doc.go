// Package capi is the backend surface of the taichi client: opaque handles,
// enums, descriptor structs and the Library function table.
//
// The layout follows the Taichi runtime C API. Every backend package
// (host, wgpu, native) provides a Library; the root taichi package wraps a
// Library with ownership tracking and typed errors.
//
// Values in this package carry no ownership. Freeing a handle twice, or using
// one after it was freed, is reported through the last-error slot by well
// behaved libraries but is undefined for the native one.
package capi
