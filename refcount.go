package taichi

import "sync/atomic"

// shared counts the references to one backend object. The object is
// released exactly once, when the count drops to zero. Counts are atomic so
// references may be dropped from any goroutine.
type shared struct {
	refs    atomic.Int64
	release func()
}

func (s *shared) init(release func()) {
	s.release = release
	s.refs.Store(1)
}

func (s *shared) acquire() {
	if s.refs.Add(1) <= 1 {
		panic("taichi: acquire of a released object")
	}
}

func (s *shared) drop() {
	switch n := s.refs.Add(-1); {
	case n == 0:
		s.release()
	case n < 0:
		panic("taichi: reference count underflow")
	}
}

// handle is the per-value state of a public handle type. Close on one value
// drops exactly one reference however often it is called.
type handle struct {
	closed atomic.Bool
}

// close reports whether this call performed the close.
func (h *handle) close() bool {
	return h.closed.CompareAndSwap(false, true)
}

func (h *handle) isClosed() bool {
	return h.closed.Load()
}
