//go:build !nogpu

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	_ "github.com/gogpu/wgpu/hal/vulkan" // Vulkan backend registration

	"github.com/gogpu/taichi/capi"
	"github.com/gogpu/taichi/internal/manifest"
)

// Version is the C API version the wgpu device implements.
const Version = 1_007_000

// defaultFenceTimeout bounds every wait on a submission fence.
const defaultFenceTimeout = 5 * time.Second

func init() {
	capi.Register(capi.LibraryWGPU, []capi.Arch{capi.ArchVulkan}, func() (capi.Library, error) {
		return New(), nil
	})
}

// InstanceCreator opens a HAL instance for an architecture.
type InstanceCreator func(arch capi.Arch) (hal.Instance, error)

// Option configures a Library.
type Option func(*Library)

// WithInstanceCreator replaces the HAL instance factory. Tests use it to run
// on the noop backend.
func WithInstanceCreator(fn InstanceCreator) Option {
	return func(l *Library) {
		l.newInstance = fn
	}
}

// WithFenceTimeout sets how long Wait blocks on one submission.
func WithFenceTimeout(d time.Duration) Option {
	return func(l *Library) {
		l.timeout = d
	}
}

// WithLogger sets the library logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) {
		l.SetLogger(logger)
	}
}

// Library is a GPU compute device over the gogpu/wgpu HAL implementing
// capi.Library.
//
// Kernels are WGSL shaders compiled with naga when a module is loaded.
// Launches are recorded per runtime and encoded into one command buffer at
// Flush; Wait blocks on the submission fences.
//
// Library is safe for concurrent use.
type Library struct {
	capi.ErrorSlot

	mu     sync.Mutex
	nextID atomic.Uint64

	runtimes map[capi.Runtime]*runtime
	memories map[capi.Memory]*memory
	images   map[capi.Image]*image
	samplers map[capi.Sampler]*sampler
	events   map[capi.Event]*event
	modules  map[capi.AotModule]*module
	kernels  map[capi.Kernel]*kernel
	graphs   map[capi.ComputeGraph]*graph

	newInstance InstanceCreator
	timeout     time.Duration
	logger      atomic.Pointer[slog.Logger]
}

// New creates a wgpu library. No device is opened until a runtime is created.
func New(opts ...Option) *Library {
	l := &Library{
		runtimes:    make(map[capi.Runtime]*runtime),
		memories:    make(map[capi.Memory]*memory),
		images:      make(map[capi.Image]*image),
		samplers:    make(map[capi.Sampler]*sampler),
		events:      make(map[capi.Event]*event),
		modules:     make(map[capi.AotModule]*module),
		kernels:     make(map[capi.Kernel]*kernel),
		graphs:      make(map[capi.ComputeGraph]*graph),
		newInstance: defaultInstance,
		timeout:     defaultFenceTimeout,
	}
	l.logger.Store(slog.New(nopHandler{}))
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func defaultInstance(arch capi.Arch) (hal.Instance, error) {
	if arch != capi.ArchVulkan {
		return nil, fmt.Errorf("arch %s has no HAL backend", arch)
	}
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("vulkan backend not available")
	}
	return backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
}

// SetLogger sets the logger used for diagnostics. Nil silences the library.
func (l *Library) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.New(nopHandler{})
	}
	l.logger.Store(logger)
}

func (l *Library) log() *slog.Logger { return l.logger.Load() }

// GetVersion implements capi.Library.
func (l *Library) GetVersion() uint32 { return Version }

// GetAvailableArchs implements capi.Library. An architecture is available
// when its HAL backend was compiled in.
func (l *Library) GetAvailableArchs() []capi.Arch {
	if _, ok := hal.GetBackend(gputypes.BackendVulkan); ok {
		return []capi.Arch{capi.ArchVulkan}
	}
	return nil
}

func (l *Library) begin() { l.Reset() }

func (l *Library) fail(code capi.Error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.SetLastError(code, msg)
	l.log().Debug("wgpu: call failed", "code", code, "message", msg)
}

func (l *Library) failErr(err error) {
	l.fail(codeOf(err), "%v", err)
}

func (l *Library) failHandle(h uint64, kind string) {
	if h == capi.Null {
		l.fail(capi.ErrorArgumentNull, "%s handle is null", kind)
		return
	}
	l.fail(capi.ErrorInvalidArgument, "unknown %s handle %d", kind, h)
}

func (l *Library) newID() uint64 {
	return l.nextID.Add(1)
}

// Device errors.
var (
	// ErrUnsupported is returned for features the HAL device cannot express.
	ErrUnsupported = errors.New("wgpu: not supported")

	// ErrDevice wraps failures reported by the HAL.
	ErrDevice = errors.New("wgpu: device error")

	// ErrTimeout is returned when a submission does not finish in time.
	ErrTimeout = errors.New("wgpu: fence timeout")
)

// codeError carries an explicit status code.
type codeError struct {
	code capi.Error
	msg  string
}

func (e *codeError) Error() string { return e.msg }

func errorf(code capi.Error, format string, args ...any) error {
	return &codeError{code: code, msg: fmt.Sprintf(format, args...)}
}

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
	case errors.Is(err, ErrUnsupported):
		return capi.ErrorNotSupported
	default:
		return capi.ErrorInvalidState
	}
}

// nopHandler discards all records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
