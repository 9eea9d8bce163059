// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package capi

// Error is a status code reported through a library's last-error slot.
// Negative values are failures, zero is success and positive values are
// non-fatal conditions.
type Error int32

// Status codes.
const (
	ErrorTruncated          Error = 1
	ErrorSuccess            Error = 0
	ErrorNotSupported       Error = -1
	ErrorCorruptedData      Error = -2
	ErrorNameNotFound       Error = -3
	ErrorInvalidArgument    Error = -4
	ErrorArgumentNull       Error = -5
	ErrorArgumentOutOfRange Error = -6
	ErrorArgumentNotFound   Error = -7
	ErrorInvalidInterop     Error = -8
	ErrorInvalidState       Error = -9
	ErrorIncompatibleModule Error = -10
	ErrorOutOfMemory        Error = -11
)

// Failed reports whether the code is a failure.
func (e Error) Failed() bool { return e < ErrorSuccess }

func (e Error) String() string {
	switch e {
	case ErrorTruncated:
		return "truncated"
	case ErrorSuccess:
		return "success"
	case ErrorNotSupported:
		return "not supported"
	case ErrorCorruptedData:
		return "corrupted data"
	case ErrorNameNotFound:
		return "name not found"
	case ErrorInvalidArgument:
		return "invalid argument"
	case ErrorArgumentNull:
		return "argument null"
	case ErrorArgumentOutOfRange:
		return "argument out of range"
	case ErrorArgumentNotFound:
		return "argument not found"
	case ErrorInvalidInterop:
		return "invalid interop"
	case ErrorInvalidState:
		return "invalid state"
	case ErrorIncompatibleModule:
		return "incompatible module"
	case ErrorOutOfMemory:
		return "out of memory"
	default:
		if e > 0 {
			return "warning"
		}
		return "unknown error"
	}
}
