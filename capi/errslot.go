package capi

import "sync"

// ErrorSlot is a last-error slot with the query semantics of
// Library.GetLastError. Library implementations embed it.
type ErrorSlot struct {
	mu   sync.Mutex
	code Error
	msg  string
}

// GetLastError implements Library.
func (s *ErrorSlot) GetLastError(messageSize *uint64, message []byte) Error {
	s.mu.Lock()
	defer s.mu.Unlock()

	code := s.code
	if messageSize != nil {
		*messageSize = uint64(len(s.msg))
	}
	if message == nil {
		return code
	}
	if n := copy(message, s.msg); n == len(s.msg) {
		s.code = ErrorSuccess
		s.msg = ""
	}
	return code
}

// SetLastError implements Library.
func (s *ErrorSlot) SetLastError(code Error, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
	s.msg = message
}

// Reset clears the slot.
func (s *ErrorSlot) Reset() { s.SetLastError(ErrorSuccess, "") }
