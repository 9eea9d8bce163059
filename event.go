package taichi

import (
	"github.com/gogpu/taichi/capi"
)

type eventInner struct {
	ref    shared
	rt     *runtimeInner
	handle capi.Event
}

// Event orders work on the device: commands recorded after Wait do not
// start before a Signal recorded earlier has executed.
type Event struct {
	handle
	e *eventInner
}

// CreateEvent creates an unsignaled event.
func (rt *Runtime) CreateEvent() (*Event, error) {
	if err := rt.check(); err != nil {
		return nil, err
	}
	r := rt.r
	h, err := callValue(r.lib, func() capi.Event { return r.lib.CreateEvent(r.handle) })
	if err != nil {
		return nil, err
	}
	if h == capi.Null {
		return nil, newError(capi.ErrorInvalidState, "library returned a null event")
	}
	r.ref.acquire()
	e := &eventInner{rt: r, handle: h}
	e.ref.init(e.destroy)
	r.stats.events.Add(1)
	return &Event{e: e}, nil
}

func (e *eventInner) destroy() {
	r := e.rt
	if err := call(r.lib, func() { r.lib.DestroyEvent(e.handle) }); err != nil {
		Logger().Warn("taichi: destroy event", "err", err)
	}
	r.stats.events.Add(-1)
	r.ref.drop()
}

func (ev *Event) record(op func(capi.Library, capi.Runtime, capi.Event)) error {
	if ev.isClosed() {
		return errClosed("event")
	}
	r := ev.e.rt
	return call(r.lib, func() { op(r.lib, r.handle, ev.e.handle) })
}

// Signal records a command that signals the event.
func (ev *Event) Signal() error { return ev.record(capi.Library.SignalEvent) }

// Reset records a command that returns the event to the unsignaled state.
func (ev *Event) Reset() error { return ev.record(capi.Library.ResetEvent) }

// Wait records a command that blocks later device work until the event is
// signaled.
func (ev *Event) Wait() error { return ev.record(capi.Library.WaitEvent) }

// Clone returns another handle to the same event.
func (ev *Event) Clone() *Event {
	ev.e.ref.acquire()
	return &Event{e: ev.e}
}

// Close releases this handle. Further calls are no-ops.
func (ev *Event) Close() {
	if ev.close() {
		ev.e.ref.drop()
	}
}

// Handle returns the raw event handle.
func (ev *Event) Handle() capi.Event { return ev.e.handle }
