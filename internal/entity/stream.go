package entity

// StreamEventType discriminates the events of one streaming session.
type StreamEventType string

const (
	StreamStart StreamEventType = "start"
	StreamToken StreamEventType = "token"
	StreamDone  StreamEventType = "done"
	StreamError StreamEventType = "error"
)

// StreamEvent is one frame of a streaming query session. A session emits
// exactly one start, zero or more tokens and exactly one terminal event
// (done or error). Fields are populated per event type.
type StreamEvent struct {
	Type       StreamEventType `json:"type"`
	ActivityID string          `json:"activity_id,omitempty"`
	Sources    []string        `json:"sources,omitempty"`
	Content    string          `json:"content,omitempty"`
	Timings    *Timings        `json:"timings,omitempty"`
	Message    string          `json:"message,omitempty"`
}

// IsTerminal reports whether the event closes the session.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == StreamDone || e.Type == StreamError
}
