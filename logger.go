package taichi

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/taichi/capi"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

// libraries holds every library a runtime was created on, so SetLogger can
// reach them.
var libraries sync.Map

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for taichi and the backend libraries it
// drives. By default nothing is logged. Pass nil to restore silence.
//
// Log levels used by taichi:
//   - [slog.LevelDebug]: allocations, launches, frees, backend warnings
//   - [slog.LevelInfo]: runtime creation
//   - [slog.LevelWarn]: failures while releasing resources
//
// Example:
//
//	taichi.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	libraries.Range(func(key, _ any) bool {
		propagateLogger(key.(capi.Library), l)
		return true
	})
}

// Logger returns the current logger used by taichi.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// trackLibrary remembers lib and hands it the current logger.
func trackLibrary(lib capi.Library) {
	if _, loaded := libraries.LoadOrStore(lib, struct{}{}); !loaded {
		propagateLogger(lib, Logger())
	}
}

func propagateLogger(lib capi.Library, l *slog.Logger) {
	if ls, ok := lib.(capi.LoggerSetter); ok {
		ls.SetLogger(l)
	}
}
