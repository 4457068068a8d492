package intake

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SSEWriter writes Server-Sent Events to an http.ResponseWriter.
// Call Init once before writing any events to set the required headers.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSEWriter wrapping the given ResponseWriter.
// The ResponseWriter must implement http.Flusher for streaming to work;
// if it does not, writes will still succeed but may be buffered.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	f, _ := w.(http.Flusher)
	return &SSEWriter{
		w:       w,
		flusher: f,
	}
}

// Init sets the SSE response headers and flushes them to the client.
// Call this exactly once before the first WriteEvent call.
func (sw *SSEWriter) Init() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}

// WriteEvent serializes the StreamEvent as JSON and writes it in SSE format:
//
//	data: {json}\n\n
//
// After writing, the underlying connection is flushed so the client receives
// the event immediately.
func (sw *SSEWriter) WriteEvent(event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// ReadEvents parses Server-Sent Events from body and delivers them on the
// returned channel. The channel is closed when the body is exhausted, an
// unrecoverable read error occurs, or ctx is cancelled. The body is closed
// when reading finishes.
//
// SSE format rules applied:
//   - Lines prefixed with "data:" carry the JSON payload; a single leading
//     space after the colon is stripped.
//   - Lines starting with ":" are comments and are ignored.
//   - An empty line signals the end of an event.
//   - Multiple "data:" lines within a single event are concatenated (joined
//     with newlines) before JSON unmarshaling.
//   - Malformed JSON produces a StreamEvent with Err set; the reader continues.
func ReadEvents(ctx context.Context, body io.ReadCloser) <-chan StreamEvent {
	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		defer body.Close()

		// Scanning runs in its own goroutine so cancellation can interrupt a
		// read blocked on a quiet stream. Closing the body on return unblocks
		// the scanner.
		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(body)
			for scanner.Scan() {
				select {
				case lines <- scanner.Text():
				case <-ctx.Done():
					return
				}
			}
		}()

		var dataBuf strings.Builder

		flush := func() {
			if dataBuf.Len() > 0 {
				emit(ctx, ch, dataBuf.String())
				dataBuf.Reset()
			}
		}

		for {
			var line string
			select {
			case <-ctx.Done():
				return
			case l, ok := <-lines:
				if !ok {
					// Emit any accumulated data when the stream ends.
					flush()
					return
				}
				line = l
			}

			switch {
			case line == "":
				flush()

			case strings.HasPrefix(line, ":"):
				// Comment line, ignore.

			case strings.HasPrefix(line, "data:"):
				payload := strings.TrimPrefix(line, "data:")
				payload = strings.TrimPrefix(payload, " ")
				if dataBuf.Len() > 0 {
					dataBuf.WriteByte('\n')
				}
				dataBuf.WriteString(payload)

			default:
				// Unknown field, ignore per SSE spec.
			}
		}
	}()
	return ch
}

// emit unmarshals raw into a StreamEvent and sends it on ch.
// If unmarshaling fails, a StreamEvent with Err set is sent instead.
func emit(ctx context.Context, ch chan<- StreamEvent, raw string) {
	var ev StreamEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		ev = StreamEvent{Err: fmt.Errorf("sse: unmarshal event: %w", err)}
	}
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
