package stream

import (
	"sync"
	"testing"
	"time"

	"github.com/docbase/rag-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(s *Session) []entity.StreamEvent {
	var out []entity.StreamEvent
	for ev := range s.Events() {
		out = append(out, ev)
	}
	return out
}

func TestSessionHappyPath(t *testing.T) {
	s := NewSession(8, nil)

	go func() {
		require.NoError(t, s.Start("act-1", []string{"a.json"}))
		require.NoError(t, s.Token("Hello"))
		require.NoError(t, s.Token(" world"))
		s.Done(entity.Timings{TotalMS: 5})
	}()

	events := collect(s)
	require.Len(t, events, 4)

	assert.Equal(t, entity.StreamStart, events[0].Type)
	assert.Equal(t, "act-1", events[0].ActivityID)
	assert.Equal(t, []string{"a.json"}, events[0].Sources)

	assert.Equal(t, entity.StreamToken, events[1].Type)
	assert.Equal(t, "Hello", events[1].Content)
	assert.Equal(t, " world", events[2].Content)

	assert.Equal(t, entity.StreamDone, events[3].Type)
	require.NotNil(t, events[3].Timings)
	assert.EqualValues(t, 5, events[3].Timings.TotalMS)
}

func TestSessionExactlyOneTerminalEvent(t *testing.T) {
	s := NewSession(8, nil)

	require.NoError(t, s.Start("act", nil))
	s.Fail("boom")
	s.Done(entity.Timings{})
	s.Fail("again")

	terminals := 0
	for _, ev := range collect(s) {
		if ev.IsTerminal() {
			terminals++
			assert.Equal(t, entity.StreamError, ev.Type)
			assert.Equal(t, "boom", ev.Message)
		}
	}
	assert.Equal(t, 1, terminals)
}

func TestSessionTokenBeforeStartRejected(t *testing.T) {
	s := NewSession(8, nil)
	assert.ErrorIs(t, s.Token("early"), entity.ErrStreamAborted)
}

func TestSessionCancelIsIdempotent(t *testing.T) {
	released := 0
	s := NewSession(8, func() { released++ })

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Cancel()
		}()
	}
	wg.Wait()

	assert.True(t, s.Cancelled())
	assert.Equal(t, 1, released)
}

func TestSessionNoDoneEventAfterCancel(t *testing.T) {
	s := NewSession(1, nil)

	require.NoError(t, s.Start("act", nil))

	// consume the start event so the producer is not blocked
	ev := <-s.Events()
	assert.Equal(t, entity.StreamStart, ev.Type)

	s.Cancel()

	// producer keeps going, none of it reaches the consumer
	assert.ErrorIs(t, s.Token("late"), entity.ErrStreamAborted)
	s.Done(entity.Timings{})

	_, open := <-s.Events()
	assert.False(t, open, "channel should be closed without a terminal event")
}

func TestSessionCancelUnblocksProducer(t *testing.T) {
	s := NewSession(1, nil)
	require.NoError(t, s.Start("act", nil))

	// the buffer is full and nobody is consuming; the emit would block forever
	blocked := make(chan error, 1)
	go func() {
		blocked <- s.Token("stuck")
	}()

	s.Cancel()

	select {
	case err := <-blocked:
		assert.ErrorIs(t, err, entity.ErrStreamAborted)
	case <-time.After(time.Second):
		t.Fatal("producer still blocked after cancel")
	}
}

func TestSessionReleaseRunsExactlyOnceOnDone(t *testing.T) {
	released := 0
	s := NewSession(8, func() { released++ })

	require.NoError(t, s.Start("act", nil))
	s.Done(entity.Timings{})
	s.Cancel()

	collect(s)
	assert.Equal(t, 1, released)
}
