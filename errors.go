// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package taichi

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/taichi/capi"
)

// Error is a failure reported by a backend library or detected by the client
// before reaching it.
type Error struct {
	Code    capi.Error
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "taichi: " + e.Code.String()
	}
	return fmt.Sprintf("taichi: %s: %s", e.Code, e.Message)
}

// Is matches errors by code, so errors.Is(err, ErrNameNotFound) holds for
// every NameNotFound failure regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// Sentinel errors, one per failure code.
var (
	ErrNotSupported       = &Error{Code: capi.ErrorNotSupported}
	ErrCorruptedData      = &Error{Code: capi.ErrorCorruptedData}
	ErrNameNotFound       = &Error{Code: capi.ErrorNameNotFound}
	ErrInvalidArgument    = &Error{Code: capi.ErrorInvalidArgument}
	ErrArgumentNull       = &Error{Code: capi.ErrorArgumentNull}
	ErrArgumentOutOfRange = &Error{Code: capi.ErrorArgumentOutOfRange}
	ErrArgumentNotFound   = &Error{Code: capi.ErrorArgumentNotFound}
	ErrInvalidInterop     = &Error{Code: capi.ErrorInvalidInterop}
	ErrInvalidState       = &Error{Code: capi.ErrorInvalidState}
	ErrIncompatibleModule = &Error{Code: capi.ErrorIncompatibleModule}
	ErrOutOfMemory        = &Error{Code: capi.ErrorOutOfMemory}
)

func newError(code capi.Error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// errClosed is returned by operations on a handle after Close.
func errClosed(kind string) *Error {
	return newError(capi.ErrorInvalidState, "use of closed %s", kind)
}

// maxErrorQueries bounds the grow-and-retry loop of the message query.
const maxErrorQueries = 4

// callLocks serializes call-then-query pairs per library, since the error
// slot is shared by every runtime of a library.
var callLocks sync.Map

func lockFor(lib capi.Library) *sync.Mutex {
	v, _ := callLocks.LoadOrStore(lib, new(sync.Mutex))
	return v.(*sync.Mutex)
}

// call invokes a backend function and converts the error slot.
func call(lib capi.Library, fn func()) error {
	mu := lockFor(lib)
	mu.Lock()
	defer mu.Unlock()
	fn()
	return lastError(lib)
}

// callValue invokes a backend function returning a value and converts the
// error slot.
func callValue[T any](lib capi.Library, fn func() T) (T, error) {
	mu := lockFor(lib)
	mu.Lock()
	defer mu.Unlock()
	v := fn()
	if err := lastError(lib); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

// LastError queries and clears the error slot of lib. It returns nil when the
// slot holds success or a non-fatal code.
func LastError(lib capi.Library) error {
	mu := lockFor(lib)
	mu.Lock()
	defer mu.Unlock()
	return lastError(lib)
}

// lastError runs the two-phase query: measure the message, then fetch it,
// growing the buffer if the message changed in between.
func lastError(lib capi.Library) error {
	var size uint64
	code := lib.GetLastError(&size, nil)
	if code == capi.ErrorSuccess {
		return nil
	}

	buf := make([]byte, size)
	for range maxErrorQueries {
		code = lib.GetLastError(&size, buf)
		if size <= uint64(len(buf)) {
			break
		}
		buf = make([]byte, size)
	}
	if size > uint64(len(buf)) {
		// The message never fit; drop it so later calls start clean.
		lib.SetLastError(capi.ErrorSuccess, "")
		size = uint64(len(buf))
	}
	msg := string(buf[:size])

	if !code.Failed() {
		if code != capi.ErrorSuccess {
			Logger().Debug("taichi: backend warning", "code", code, "message", msg)
		}
		return nil
	}
	return &Error{Code: code, Message: msg}
}

// SetLastError stores err in the error slot of lib. A nil err clears it and
// errors that are not *Error are recorded as InvalidState.
func SetLastError(lib capi.Library, err error) {
	mu := lockFor(lib)
	mu.Lock()
	defer mu.Unlock()

	var te *Error
	switch {
	case err == nil:
		lib.SetLastError(capi.ErrorSuccess, "")
	case errors.As(err, &te):
		lib.SetLastError(te.Code, te.Message)
	default:
		lib.SetLastError(capi.ErrorInvalidState, err.Error())
	}
}
