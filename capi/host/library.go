// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/taichi/capi"
)

// Version is the C API version the host device implements.
const Version = 1_007_000

func init() {
	capi.Register(capi.LibraryHost, []capi.Arch{capi.ArchX64, capi.ArchArm64}, func() (capi.Library, error) {
		return New(), nil
	})
}

// Option configures a Library.
type Option func(*Library)

// WithMemoryBudget limits the total bytes of live memory and image
// allocations. Allocations beyond the budget fail with OutOfMemory.
// Zero means unlimited.
func WithMemoryBudget(bytes uint64) Option {
	return func(l *Library) {
		l.budget = bytes
	}
}

// WithLogger sets the library logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) {
		l.SetLogger(logger)
	}
}

// Library is a pure Go compute device implementing capi.Library.
//
// Memory and images live in host memory, kernels are Go programs registered
// with RegisterProgram. Commands are recorded at launch and executed in
// order when the runtime is waited on.
//
// Library is safe for concurrent use.
type Library struct {
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

	budget    uint64
	usedBytes uint64

	capi.ErrorSlot

	logger atomic.Pointer[slog.Logger]
	stats  counters
}

// New creates a host library.
func New(opts ...Option) *Library {
	l := &Library{
		runtimes: make(map[capi.Runtime]*runtime),
		memories: make(map[capi.Memory]*memory),
		images:   make(map[capi.Image]*image),
		samplers: make(map[capi.Sampler]*sampler),
		events:   make(map[capi.Event]*event),
		modules:  make(map[capi.AotModule]*module),
		kernels:  make(map[capi.Kernel]*kernel),
		graphs:   make(map[capi.ComputeGraph]*graph),
	}
	l.logger.Store(slog.New(nopHandler{}))
	for _, opt := range opts {
		opt(l)
	}
	return l
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

// GetAvailableArchs implements capi.Library. The host device does not depend
// on the instruction set, so both CPU architectures are served.
func (l *Library) GetAvailableArchs() []capi.Arch {
	return []capi.Arch{capi.ArchX64, capi.ArchArm64}
}

// begin resets the error slot at the start of every fallible entry point.
func (l *Library) begin() {
	l.Reset()
}

func (l *Library) fail(code capi.Error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	l.SetLastError(code, msg)
	l.log().Debug("host: call failed", "code", code, "message", msg)
}

func (l *Library) newID() uint64 {
	return l.nextID.Add(1)
}

// nopHandler discards all records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
