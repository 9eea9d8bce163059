package taichi

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/gogpu/taichi/capi"
	"github.com/gogpu/taichi/capi/host"
)

const chessBoardModule = "testdata/chess_board"

// fakeLibrary scripts the error slot for tests that never reach a device.
// Calls not overridden panic through the nil embedded Library.
type fakeLibrary struct {
	capi.Library
	slot capi.ErrorSlot

	// grow makes the message longer after the size query, once.
	grow string
	// outgrow doubles the message on every fetch so it never fits.
	outgrow bool
	// queries counts GetLastError calls.
	queries int

	logger     *slog.Logger
	loggerSets int
}

func (f *fakeLibrary) GetLastError(size *uint64, msg []byte) capi.Error {
	f.queries++
	if msg != nil && f.grow != "" {
		code, _ := f.peek()
		f.slot.SetLastError(code, f.grow)
		f.grow = ""
	}
	if msg != nil && f.outgrow {
		code, n := f.peek()
		f.slot.SetLastError(code, strings.Repeat("x", int(n)*2+1))
	}
	return f.slot.GetLastError(size, msg)
}

func (f *fakeLibrary) peek() (capi.Error, uint64) {
	var n uint64
	return f.slot.GetLastError(&n, nil), n
}

func (f *fakeLibrary) SetLastError(code capi.Error, msg string) { f.slot.SetLastError(code, msg) }

func (f *fakeLibrary) SetLogger(l *slog.Logger) {
	f.logger = l
	f.loggerSets++
}

// newHostRuntime creates an x64 runtime on a private host library.
func newHostRuntime(t *testing.T, opts ...host.Option) (*Runtime, *host.Library) {
	t.Helper()
	lib := host.New(opts...)
	rt, err := NewRuntime(capi.ArchX64, WithLibrary(lib))
	if err != nil {
		t.Fatalf("NewRuntime() error = %v", err)
	}
	t.Cleanup(func() {
		rt.Close()
		libraries.Delete(lib)
	})
	return rt, lib
}

func wantCode(t *testing.T, err error, code capi.Error) {
	t.Helper()
	if !IsCode(err, code) {
		t.Fatalf("error = %v, want code %s", err, code)
	}
}
