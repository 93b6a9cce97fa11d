package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/docbase/rag-backend/internal/entity"
)

// Writer frames stream events as server-sent events on an HTTP response,
// flushing after every event so tokens reach the client incrementally.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
}

// NewWriter prepares an SSE response. The returned writer flushes each
// event when the underlying ResponseWriter supports it.
func NewWriter(w http.ResponseWriter) *Writer {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

func (sw *Writer) WriteEvent(ev entity.StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write stream event: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// Decoder reads server-sent events from a response body, reassembling event
// boundaries regardless of how the transport fragments or batches the
// frames.
type Decoder struct {
	scanner *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanFrames)
	return &Decoder{scanner: scanner}
}

// Next returns the next complete event, or io.EOF when the stream ends.
func (d *Decoder) Next() (entity.StreamEvent, error) {
	for d.scanner.Scan() {
		frame := d.scanner.Bytes()

		var payload []byte
		for _, line := range bytes.Split(frame, []byte("\n")) {
			if rest, ok := bytes.CutPrefix(line, []byte("data: ")); ok {
				payload = rest
				break
			}
		}
		if payload == nil {
			continue
		}

		var ev entity.StreamEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return entity.StreamEvent{}, fmt.Errorf("decode stream event: %w", err)
		}
		return ev, nil
	}
	if err := d.scanner.Err(); err != nil {
		return entity.StreamEvent{}, err
	}
	return entity.StreamEvent{}, io.EOF
}

// scanFrames splits the byte stream at blank-line event boundaries.
func scanFrames(data []byte, atEOF bool) (int, []byte, error) {
	if i := bytes.Index(data, []byte("\n\n")); i >= 0 {
		return i + 2, data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
