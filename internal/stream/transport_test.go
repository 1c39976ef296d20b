package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectFrames(t *testing.T, frames <-chan Frame) []Frame {
	t.Helper()
	var out []Frame
	timeout := time.After(5 * time.Second)
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return out
			}
			out = append(out, f)
		case <-timeout:
			t.Fatal("timed out waiting for frames")
		}
	}
}

func TestSSETransportParsesFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultStreamPath, r.URL.Path)
		assert.Equal(t, "run-1", r.URL.Query().Get("stream_id"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte(": keepalive comment\n\n"))
		_, _ = w.Write([]byte("event: log\ndata: hello world\n\n"))
		_, _ = w.Write([]byte("data: untyped text\n\n"))
		_, _ = w.Write([]byte("event: judgement\ndata: {\"case_id\":\ndata: \"c1\"}\n\n"))
		flusher.Flush()
	}))
	defer srv.Close()

	tr := NewSSETransport(srv.URL)
	frames, err := tr.Stream(context.Background(), url.Values{"stream_id": {"run-1"}})
	require.NoError(t, err)

	got := collectFrames(t, frames)
	require.Len(t, got, 3)

	assert.Equal(t, "log", got[0].Channel)
	assert.Equal(t, "hello world", got[0].Payload)

	assert.Equal(t, DefaultChannel, got[1].Channel)
	assert.Equal(t, "untyped text", got[1].Payload)

	assert.Equal(t, "judgement", got[2].Channel)
	assert.Equal(t, "{\"case_id\":\n\"c1\"}", got[2].Payload, "multi-line data joins with newline")
}

func TestSSETransportNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such scenario", http.StatusNotFound)
	}))
	defer srv.Close()

	tr := NewSSETransport(srv.URL)
	_, err := tr.Stream(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "no such scenario")
}

func TestSSETransportContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	tr := NewSSETransport(srv.URL)
	frames, err := tr.Stream(ctx, nil)
	require.NoError(t, err)

	cancel()
	got := collectFrames(t, frames)
	// A canceled body read surfaces as a transport error frame before close.
	if len(got) > 0 {
		assert.Error(t, got[len(got)-1].Err)
	}
}

func TestSSETransportLargeEvent(t *testing.T) {
	big := make([]byte, 200*1024)
	for i := range big {
		big[i] = 'a'
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: log\ndata: "))
		_, _ = w.Write(big)
		_, _ = w.Write([]byte("\n\n"))
	}))
	defer srv.Close()

	tr := NewSSETransport(srv.URL)
	frames, err := tr.Stream(context.Background(), nil)
	require.NoError(t, err)

	got := collectFrames(t, frames)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Payload, len(big))
}
