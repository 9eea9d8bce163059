// Package native binds libtaichi_c_api through cgo.
//
// The binding is compiled only with the taichi build tag and needs the C
// library and its headers installed:
//
//	go build -tags taichi ./...
//
// When built in, importing the package registers the library under
// capi.LibraryNative for every architecture the C library reports, which
// makes it the preferred backend. Without the tag New reports ErrNotBuilt
// and nothing is registered.
package native
