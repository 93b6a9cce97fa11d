package stream

import (
	"sync"

	"github.com/docbase/rag-backend/internal/entity"
)

// Session is the ordered event stream of one streaming query. A session
// emits exactly one start event, any number of token events and exactly one
// terminal event. It has a single producer; any goroutine may cancel it.
//
// The release callback frees the generation-engine handle and is invoked
// exactly once, on cancellation or on the terminal event, whichever comes
// first.
type Session struct {
	events  chan entity.StreamEvent
	done    chan struct{}
	release func()

	cancelOnce  sync.Once
	releaseOnce sync.Once
	closeOnce   sync.Once

	mu        sync.Mutex
	started   bool
	terminal  bool
	cancelled bool
}

func NewSession(buffer int, release func()) *Session {
	if release == nil {
		release = func() {}
	}
	return &Session{
		events:  make(chan entity.StreamEvent, buffer),
		done:    make(chan struct{}),
		release: release,
	}
}

// Events is the consumer side of the session. The channel is closed after
// the terminal event, or without one when the session was cancelled.
func (s *Session) Events() <-chan entity.StreamEvent {
	return s.events
}

// Start emits the start event carrying provenance. It must be the first
// event of the session.
func (s *Session) Start(activityID string, sources []string) error {
	s.mu.Lock()
	if s.started || s.terminal {
		s.mu.Unlock()
		return entity.ErrStreamAborted
	}
	s.started = true
	s.mu.Unlock()

	return s.emit(entity.StreamEvent{
		Type:       entity.StreamStart,
		ActivityID: activityID,
		Sources:    sources,
	})
}

// Token emits one incremental text fragment.
func (s *Session) Token(content string) error {
	s.mu.Lock()
	if !s.started || s.terminal {
		s.mu.Unlock()
		return entity.ErrStreamAborted
	}
	s.mu.Unlock()

	return s.emit(entity.StreamEvent{Type: entity.StreamToken, Content: content})
}

// Done terminates the session successfully. After a cancellation it emits
// nothing and only closes the stream.
func (s *Session) Done(timings entity.Timings) {
	s.finish(entity.StreamEvent{Type: entity.StreamDone, Timings: &timings})
}

// Fail terminates the session with an error event.
func (s *Session) Fail(message string) {
	s.finish(entity.StreamEvent{Type: entity.StreamError, Message: message})
}

func (s *Session) finish(ev entity.StreamEvent) {
	s.mu.Lock()
	already := s.terminal
	s.terminal = true
	cancelled := s.cancelled
	s.mu.Unlock()

	if !already && !cancelled {
		// Best effort: the consumer may already be gone.
		select {
		case s.events <- ev:
		case <-s.done:
		}
	}
	s.releaseOnce.Do(s.release)
	s.closeOnce.Do(func() { close(s.events) })
}

// Cancel aborts the session. It is idempotent and safe to call from any
// goroutine; no done event is emitted afterwards.
func (s *Session) Cancel() {
	s.cancelOnce.Do(func() {
		s.mu.Lock()
		s.cancelled = true
		s.mu.Unlock()
		close(s.done)
		s.releaseOnce.Do(s.release)
	})
}

// Cancelled reports whether the session was aborted before completing.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *Session) emit(ev entity.StreamEvent) error {
	select {
	case <-s.done:
		return entity.ErrStreamAborted
	default:
	}

	select {
	case s.events <- ev:
		return nil
	case <-s.done:
		return entity.ErrStreamAborted
	}
}
