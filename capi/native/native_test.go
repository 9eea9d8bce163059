//go:build taichi

package native

import (
	"testing"

	"github.com/gogpu/taichi/capi"
)

func TestLastErrorRoundTrip(t *testing.T) {
	lib, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	lib.SetLastError(capi.ErrorInvalidArgument, "boom")

	var size uint64
	if got := lib.GetLastError(&size, nil); got != capi.ErrorInvalidArgument {
		t.Fatalf("GetLastError() = %v, want %v", got, capi.ErrorInvalidArgument)
	}
	if size != 4 {
		t.Errorf("message size = %d, want 4", size)
	}
	msg := make([]byte, size)
	lib.GetLastError(&size, msg)
	if string(msg) != "boom" {
		t.Errorf("message = %q, want %q", msg, "boom")
	}
	if got := lib.GetLastError(&size, nil); got != capi.ErrorSuccess {
		t.Errorf("GetLastError() after full read = %v, want success", got)
	}
}

func TestMapUnknownMemory(t *testing.T) {
	lib, _ := New()
	if data := lib.MapMemory(capi.Null, 42); data != nil {
		t.Errorf("MapMemory() = %d bytes, want nil", len(data))
	}
	var size uint64
	if got := lib.GetLastError(&size, nil); got != capi.ErrorInvalidArgument {
		t.Errorf("GetLastError() = %v, want %v", got, capi.ErrorInvalidArgument)
	}
}
