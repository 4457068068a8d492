package intake

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEWriter_WritesValidSSEFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)
	w.Init()

	events := []StreamEvent{
		{Progress: &ProgressEvent{RunID: "r1", Phase: "collect"}},
		{Progress: &ProgressEvent{RunID: "r1", Phase: "detect"}},
		{Run: &RunStatus{RunID: "r1", Phase: "merge", Submissions: 2}},
	}

	for _, ev := range events {
		require.NoError(t, w.WriteEvent(ev))
	}

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))

	body := rec.Body.String()
	frames := strings.Split(body, "\n\n")
	nonEmpty := make([]string, 0, len(frames))
	for _, f := range frames {
		if strings.TrimSpace(f) != "" {
			nonEmpty = append(nonEmpty, f)
		}
	}
	require.Len(t, nonEmpty, 3, "expected 3 SSE frames")

	for _, frame := range nonEmpty {
		assert.True(t, strings.HasPrefix(frame, "data: "), "each frame must start with 'data: ', got: %s", frame)
		payload := strings.TrimPrefix(frame, "data: ")
		assert.True(t, len(payload) > 0 && payload[0] == '{', "payload must be a JSON object, got: %s", payload)
	}
}

func TestSSEReader_ParsesEvents(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		fmt.Fprint(pw, "data: {\"progress\":{\"runId\":\"r1\",\"phase\":\"collect\"}}\n\n")
		fmt.Fprint(pw, "data: {\"progress\":{\"runId\":\"r1\",\"phase\":\"verify\"}}\n\n")
	}()

	ch := ReadEvents(context.Background(), pr)

	ev1 := <-ch
	require.NoError(t, ev1.Err)
	require.NotNil(t, ev1.Progress)
	assert.Equal(t, "collect", ev1.Progress.Phase)

	ev2 := <-ch
	require.NoError(t, ev2.Err)
	require.NotNil(t, ev2.Progress)
	assert.Equal(t, "verify", ev2.Progress.Phase)

	_, open := <-ch
	assert.False(t, open, "channel should be closed after body is exhausted")
}

func TestSSEReader_OneOfFieldsExclusive(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		fmt.Fprint(pw, "data: {\"run\":{\"runId\":\"r9\",\"phase\":\"resolve\",\"submissions\":4}}\n\n")
	}()

	ch := ReadEvents(context.Background(), pr)
	ev := <-ch

	require.NoError(t, ev.Err)
	require.NotNil(t, ev.Run)
	assert.Nil(t, ev.Progress)
	assert.Nil(t, ev.Submission)
	assert.Equal(t, "resolve", ev.Run.Phase)
	assert.Equal(t, 4, ev.Run.Submissions)
}

func TestSSEReader_ContextCancellation(t *testing.T) {
	pr, pw := io.Pipe()
	// Keep the pipe open so the reader blocks.
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := ReadEvents(ctx, pr)
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open, "channel should be closed after context cancellation")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel to close after context cancellation")
	}
}

func TestSSEReader_MalformedDataContinues(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		fmt.Fprint(pw, "data: {not valid json!!!}\n\n")
		fmt.Fprint(pw, "data: {\"progress\":{\"phase\":\"merge\"}}\n\n")
	}()

	ch := ReadEvents(context.Background(), pr)

	ev1 := <-ch
	assert.Error(t, ev1.Err, "malformed JSON should produce an error event")
	assert.Contains(t, ev1.Err.Error(), "unmarshal")

	ev2 := <-ch
	require.NoError(t, ev2.Err)
	require.NotNil(t, ev2.Progress)
	assert.Equal(t, "merge", ev2.Progress.Phase)

	_, open := <-ch
	assert.False(t, open)
}

func TestSSEReader_CommentsIgnored(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		fmt.Fprint(pw, ": heartbeat\n")
		fmt.Fprint(pw, "data: {\"progress\":{\"phase\":\"collect\"}}\n\n")
	}()

	ch := ReadEvents(context.Background(), pr)
	ev := <-ch
	require.NoError(t, ev.Err)
	require.NotNil(t, ev.Progress)
	assert.Equal(t, "collect", ev.Progress.Phase)
}

func TestSSEReader_DataNoSpace(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		fmt.Fprint(pw, "data:{\"progress\":{\"phase\":\"detect\"}}\n\n")
	}()

	ch := ReadEvents(context.Background(), pr)
	ev := <-ch
	require.NoError(t, ev.Err)
	require.NotNil(t, ev.Progress)
	assert.Equal(t, "detect", ev.Progress.Phase)
}

func TestSSEWriter_RoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)
	w.Init()

	sent := []StreamEvent{
		{Progress: &ProgressEvent{RunID: "rt", Phase: "collect"}},
		{Progress: &ProgressEvent{RunID: "rt", Phase: "merge", Message: "2 conflicts resolved"}},
		{Run: &RunStatus{RunID: "rt", Phase: "verify", Submissions: 3}},
	}
	for _, ev := range sent {
		require.NoError(t, w.WriteEvent(ev))
	}

	body := io.NopCloser(strings.NewReader(rec.Body.String()))
	ch := ReadEvents(context.Background(), body)

	var received []StreamEvent
	for ev := range ch {
		require.NoError(t, ev.Err)
		received = append(received, ev)
	}

	require.Len(t, received, 3)
	require.NotNil(t, received[0].Progress)
	assert.Equal(t, "collect", received[0].Progress.Phase)
	require.NotNil(t, received[1].Progress)
	assert.Equal(t, "2 conflicts resolved", received[1].Progress.Message)
	require.NotNil(t, received[2].Run)
	assert.Equal(t, 3, received[2].Run.Submissions)
}
