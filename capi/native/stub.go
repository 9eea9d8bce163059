//go:build !taichi

package native

import (
	"errors"

	"github.com/gogpu/taichi/capi"
)

// ErrNotBuilt is returned when the binary was built without the taichi tag.
var ErrNotBuilt = errors.New("native: libtaichi_c_api support requires building with '-tags taichi'")

// Available reports whether the binding was built in.
func Available() bool { return false }

// New returns ErrNotBuilt.
func New() (capi.Library, error) {
	return nil, ErrNotBuilt
}
