package stream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// DefaultStreamPath is the backend's fixed, versionless stream endpoint.
const DefaultStreamPath = "/api/simulation/stream"

// Frame is one wire-level server-push event. A non-nil Err marks a
// transport-level failure; the frame channel is closed right after.
type Frame struct {
	Channel string
	Payload string
	Err     error
}

// Transport opens the long-lived server-push connection for a run.
// Implementations deliver frames in arrival order and close the channel
// when the connection ends, for any reason.
type Transport interface {
	Stream(ctx context.Context, query url.Values) (<-chan Frame, error)
}

// SSETransport reads text/event-stream responses from the backend.
type SSETransport struct {
	BaseURL string
	Path    string
	Client  *http.Client
	Header  http.Header
}

// NewSSETransport returns a transport for the given backend base URL.
func NewSSETransport(baseURL string) *SSETransport {
	return &SSETransport{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Path:    DefaultStreamPath,
		Client:  &http.Client{},
	}
}

// Stream opens the connection and feeds parsed frames until the server
// closes the stream, the context is canceled, or a read error occurs.
// Connection setup errors are returned synchronously; mid-stream failures
// arrive as a final Frame with Err set.
func (t *SSETransport) Stream(ctx context.Context, query url.Values) (<-chan Frame, error) {
	endpoint := t.BaseURL + t.Path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	for k, vs := range t.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("stream request failed: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	out := make(chan Frame, 32)
	go readFrames(resp.Body, out)
	return out, nil
}

// readFrames parses the event-stream wire format: "event:"/"data:" lines
// accumulate until a blank line flushes one frame. Frames without an event
// name belong to the default channel.
func readFrames(body io.ReadCloser, out chan<- Frame) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 2*1024*1024)

	var channel string
	var dataLines []string

	flush := func() {
		if len(dataLines) == 0 {
			channel = ""
			return
		}
		if channel == "" {
			channel = DefaultChannel
		}
		out <- Frame{Channel: channel, Payload: strings.Join(dataLines, "\n")}
		channel = ""
		dataLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "event:"):
			channel = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			part := strings.TrimPrefix(line, "data:")
			part = strings.TrimPrefix(part, " ")
			dataLines = append(dataLines, part)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		out <- Frame{Err: fmt.Errorf("read stream: %w", err)}
	}
}
