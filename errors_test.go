package taichi

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gogpu/taichi/capi"
)

func TestLastErrorSuccess(t *testing.T) {
	lib := &fakeLibrary{}
	if err := LastError(lib); err != nil {
		t.Fatalf("LastError() = %v, want nil", err)
	}
	if lib.queries != 1 {
		t.Errorf("queries = %d, want 1 (size query only)", lib.queries)
	}
}

func TestLastErrorTwoPhase(t *testing.T) {
	lib := &fakeLibrary{}
	lib.SetLastError(capi.ErrorNameNotFound, "kernel \"k\" not found")

	err := LastError(lib)
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("LastError() = %v, want *Error", err)
	}
	if te.Code != capi.ErrorNameNotFound {
		t.Errorf("Code = %s, want %s", te.Code, capi.ErrorNameNotFound)
	}
	if te.Message != "kernel \"k\" not found" {
		t.Errorf("Message = %q", te.Message)
	}
	if lib.queries != 2 {
		t.Errorf("queries = %d, want 2", lib.queries)
	}

	// The fetch cleared the slot.
	if err := LastError(lib); err != nil {
		t.Errorf("second LastError() = %v, want nil", err)
	}
}

func TestLastErrorMessageGrows(t *testing.T) {
	lib := &fakeLibrary{}
	lib.SetLastError(capi.ErrorInvalidState, "short")
	lib.grow = strings.Repeat("x", 100)

	err := LastError(lib)
	var te *Error
	if !errors.As(err, &te) {
		t.Fatalf("LastError() = %v, want *Error", err)
	}
	if te.Message != strings.Repeat("x", 100) {
		t.Errorf("Message = %q, want the grown message", te.Message)
	}
	if lib.queries != 3 {
		t.Errorf("queries = %d, want 3 (measure, short fetch, retry)", lib.queries)
	}
}

func TestLastErrorMessageNeverFits(t *testing.T) {
	lib := &fakeLibrary{outgrow: true}
	lib.SetLastError(capi.ErrorInvalidState, "short")

	wantCode(t, LastError(lib), capi.ErrorInvalidState)
	if lib.queries != 1+maxErrorQueries {
		t.Errorf("queries = %d, want %d", lib.queries, 1+maxErrorQueries)
	}

	// The unread error is dropped and does not leak into the next call.
	lib.outgrow = false
	if err := LastError(lib); err != nil {
		t.Errorf("second LastError() = %v, want nil", err)
	}
}

func TestLastErrorWarningIsNil(t *testing.T) {
	lib := &fakeLibrary{}
	lib.SetLastError(capi.ErrorTruncated, "partial")
	if err := LastError(lib); err != nil {
		t.Fatalf("LastError() = %v, want nil for a non-fatal code", err)
	}
}

func TestSetLastError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode capi.Error
		wantMsg  string
	}{
		{"nil clears", nil, capi.ErrorSuccess, ""},
		{"taichi error", newError(capi.ErrorOutOfMemory, "budget"), capi.ErrorOutOfMemory, "budget"},
		{"wrapped", fmt.Errorf("load: %w", ErrCorruptedData), capi.ErrorCorruptedData, ""},
		{"foreign", errors.New("boom"), capi.ErrorInvalidState, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib := &fakeLibrary{}
			lib.SetLastError(capi.ErrorInvalidArgument, "stale")
			SetLastError(lib, tt.err)

			var size uint64
			code := lib.GetLastError(&size, nil)
			if code != tt.wantCode {
				t.Errorf("code = %s, want %s", code, tt.wantCode)
			}
			buf := make([]byte, size)
			lib.GetLastError(&size, buf)
			if string(buf) != tt.wantMsg {
				t.Errorf("message = %q, want %q", buf, tt.wantMsg)
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("lookup: %w", newError(capi.ErrorNameNotFound, "graph %q", "g"))
	if !errors.Is(err, ErrNameNotFound) {
		t.Error("errors.Is(err, ErrNameNotFound) = false")
	}
	if errors.Is(err, ErrInvalidArgument) {
		t.Error("errors.Is(err, ErrInvalidArgument) = true")
	}
	if !errors.Is(err, &Error{Code: capi.ErrorNameNotFound, Message: `graph "g"`}) {
		t.Error("errors.Is with matching message = false")
	}
	if errors.Is(err, &Error{Code: capi.ErrorNameNotFound, Message: "other"}) {
		t.Error("errors.Is with different message = true")
	}
	if !IsCode(err, capi.ErrorNameNotFound) {
		t.Error("IsCode() = false")
	}
}

func TestErrorString(t *testing.T) {
	if got := ErrOutOfMemory.Error(); got != "taichi: out of memory" {
		t.Errorf("Error() = %q", got)
	}
	if got := newError(capi.ErrorArgumentNull, "nil %s", "memory").Error(); got != "taichi: argument null: nil memory" {
		t.Errorf("Error() = %q", got)
	}
}
