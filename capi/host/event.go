package host

import (
	"github.com/gogpu/taichi/capi"
)

type event struct {
	rt       capi.Runtime
	signaled bool
}

// CreateEvent implements capi.Library.
func (l *Library) CreateEvent(rtID capi.Runtime) capi.Event {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.runtimeLocked(rtID); !ok {
		return capi.Null
	}
	id := capi.Event(l.newID())
	l.events[id] = &event{rt: rtID}
	return id
}

// DestroyEvent implements capi.Library.
func (l *Library) DestroyEvent(id capi.Event) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.events[id]; !ok {
		l.failHandle(uint64(id), "event")
		return
	}
	delete(l.events, id)
	l.stats.eventDestroys.Add(1)
}

// SignalEvent implements capi.Library.
func (l *Library) SignalEvent(rtID capi.Runtime, id capi.Event) {
	l.recordEvent(rtID, id, "signal_event", func(e *event) error {
		e.signaled = true
		return nil
	})
}

// ResetEvent implements capi.Library.
func (l *Library) ResetEvent(rtID capi.Runtime, id capi.Event) {
	l.recordEvent(rtID, id, "reset_event", func(e *event) error {
		e.signaled = false
		return nil
	})
}

// WaitEvent implements capi.Library. Commands execute in order on a single
// queue, so waiting on an event nothing has signaled yet can never complete
// and is reported as InvalidState.
func (l *Library) WaitEvent(rtID capi.Runtime, id capi.Event) {
	l.recordEvent(rtID, id, "wait_event", func(e *event) error {
		if !e.signaled {
			return errorf(capi.ErrorInvalidState, "wait on event %d that is never signaled", id)
		}
		return nil
	})
}

func (l *Library) recordEvent(rtID capi.Runtime, id capi.Event, name string, fn func(*event) error) {
	l.begin()
	l.mu.Lock()
	defer l.mu.Unlock()
	rt, ok := l.runtimeLocked(rtID)
	if !ok {
		return
	}
	e, ok := l.events[id]
	if !ok {
		l.failHandle(uint64(id), "event")
		return
	}
	if e.rt != rtID {
		l.fail(capi.ErrorInvalidArgument, "event %d belongs to another runtime", id)
		return
	}
	rt.record(name, func() error { return fn(e) })
}
