package host

import (
	"errors"
	"fmt"

	"github.com/gogpu/taichi/capi"
	"github.com/gogpu/taichi/internal/manifest"
)

// Errors returned to programs by Invocation accessors.
var (
	// ErrArgumentType is returned when an argument is read as the wrong kind.
	ErrArgumentType = errors.New("host: argument type mismatch")

	// ErrArgumentIndex is returned for argument positions past the end.
	ErrArgumentIndex = errors.New("host: argument index out of range")

	// ErrShape is returned when argument shapes do not agree.
	ErrShape = errors.New("host: shape mismatch")
)

// codeError carries a status code through recorded commands.
type codeError struct {
	code capi.Error
	msg  string
}

func (e *codeError) Error() string { return e.msg }

func errorf(code capi.Error, format string, args ...any) error {
	return &codeError{code: code, msg: fmt.Sprintf(format, args...)}
}

// codeOf maps an error to the status code reported through the slot.
func codeOf(err error) capi.Error {
	var ce *codeError
	switch {
	case errors.As(err, &ce):
		return ce.code
	case errors.Is(err, manifest.ErrArgumentCount):
		return capi.ErrorArgumentOutOfRange
	case errors.Is(err, manifest.ErrArgumentMissing):
		return capi.ErrorArgumentNotFound
	case errors.Is(err, manifest.ErrArgumentMismatch):
		return capi.ErrorInvalidArgument
	case errors.Is(err, manifest.ErrNotFound):
		return capi.ErrorNameNotFound
	case errors.Is(err, manifest.ErrIncompatible):
		return capi.ErrorIncompatibleModule
	case errors.Is(err, manifest.ErrCorrupted):
		return capi.ErrorCorruptedData
	case errors.Is(err, ErrArgumentType), errors.Is(err, ErrShape):
		return capi.ErrorInvalidArgument
	case errors.Is(err, ErrArgumentIndex):
		return capi.ErrorArgumentOutOfRange
	default:
		return capi.ErrorInvalidState
	}
}

func (l *Library) failErr(err error) {
	l.fail(codeOf(err), "%v", err)
}
