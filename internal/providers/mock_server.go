// Package providers contains an httptest-based stand-in for the inference
// backend, its OAuth token endpoint and the direct vendor APIs.
package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"
)

// MockServer is a mock HTTP server for testing translators, probes and routes.
type MockServer struct {
	server    *httptest.Server
	responses map[string]MockResponse
	counts    map[string]int
	bodies    map[string][]byte
	headers   map[string]http.Header
	total     int
	mu        sync.Mutex
}

// MockResponse defines a mock response configuration.
type MockResponse struct {
	// StatusCode defaults to 200.
	StatusCode int

	// Body is written as-is for string and []byte, JSON-encoded otherwise.
	Body any

	// Delay is slept before anything is written.
	Delay time.Duration

	// Headers are set on the response.
	Headers map[string]string

	// StreamEvents are written as SSE events. Entries that already contain
	// "data:" are written verbatim; others are wrapped as "data: <entry>".
	StreamEvents []string

	// StreamDelay is slept between events.
	StreamDelay time.Duration

	// NoDone suppresses the trailing "data: [DONE]" event.
	NoDone bool

	// ContentType overrides the stream content type.
	ContentType string

	// FailAfter closes the connection after this many stream events (0 = never).
	FailAfter int
}

// NewMockServer creates a new mock server.
func NewMockServer() *MockServer {
	ms := &MockServer{
		responses: make(map[string]MockResponse),
		counts:    make(map[string]int),
		bodies:    make(map[string][]byte),
		headers:   make(map[string]http.Header),
	}
	ms.server = httptest.NewServer(http.HandlerFunc(ms.handler))
	return ms
}

// URL returns the mock server's base URL.
func (ms *MockServer) URL() string {
	return ms.server.URL
}

// Close closes the mock server.
func (ms *MockServer) Close() {
	ms.server.Close()
}

// SetResponse sets a mock response for a path (without query string).
func (ms *MockServer) SetResponse(path string, response MockResponse) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.responses[path] = response
}

// EnableOAuth serves client-credentials tokens at /oauth/token.
func (ms *MockServer) EnableOAuth(token string) {
	ms.SetResponse("/oauth/token", MockResponse{
		Body: map[string]any{"access_token": token, "token_type": "bearer", "expires_in": 3600},
	})
}

// SetDeployments serves a deployment list at /v2/lm/deployments mapping
// model names to running deployment IDs.
func (ms *MockServer) SetDeployments(deployments map[string]string) {
	resources := make([]map[string]any, 0, len(deployments))
	for model, id := range deployments {
		resources = append(resources, map[string]any{
			"id":     id,
			"status": "RUNNING",
			"details": map[string]any{
				"resources": map[string]any{
					"backend_details": map[string]any{
						"model": map[string]any{"name": model, "version": "latest"},
					},
				},
			},
		})
	}
	ms.SetResponse("/v2/lm/deployments", MockResponse{
		Body: map[string]any{"count": len(resources), "resources": resources},
	})
}

// GetRequestCount returns the number of requests received on all paths.
func (ms *MockServer) GetRequestCount() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.total
}

// RequestCount returns the number of requests received on path.
func (ms *MockServer) RequestCount(path string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.counts[path]
}

// LastBody returns the body of the most recent request on path.
func (ms *MockServer) LastBody(path string) []byte {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.bodies[path]
}

// LastHeader returns the headers of the most recent request on path.
func (ms *MockServer) LastHeader(path string) http.Header {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.headers[path]
}

// ResetRequestCount resets all request counters.
func (ms *MockServer) ResetRequestCount() {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.total = 0
	ms.counts = make(map[string]int)
}

func (ms *MockServer) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	ms.mu.Lock()
	ms.total++
	ms.counts[r.URL.Path]++
	ms.bodies[r.URL.Path] = body
	ms.headers[r.URL.Path] = r.Header.Clone()
	response, ok := ms.responses[r.URL.Path]
	ms.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}

	if response.Delay > 0 {
		select {
		case <-time.After(response.Delay):
		case <-r.Context().Done():
			return
		}
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}

	if len(response.StreamEvents) > 0 {
		ms.handleStream(w, r, response)
		return
	}

	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	switch v := response.Body.(type) {
	case nil:
		w.WriteHeader(status)
	case string:
		w.WriteHeader(status)
		_, _ = w.Write([]byte(v))
	case []byte:
		w.WriteHeader(status)
		_, _ = w.Write(v)
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
}

func (ms *MockServer) handleStream(w http.ResponseWriter, r *http.Request, response MockResponse) {
	contentType := response.ContentType
	if contentType == "" {
		contentType = "text/event-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	status := response.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)

	for i, event := range response.StreamEvents {
		if response.FailAfter > 0 && i >= response.FailAfter {
			// abort the connection mid-stream
			panic(http.ErrAbortHandler)
		}
		if strings.Contains(event, "data:") {
			fmt.Fprintf(w, "%s\n\n", strings.TrimRight(event, "\n"))
		} else {
			fmt.Fprintf(w, "data: %s\n\n", event)
		}
		flusher.Flush()

		if response.StreamDelay > 0 {
			select {
			case <-time.After(response.StreamDelay):
			case <-r.Context().Done():
				return
			}
		}
	}

	if !response.NoDone {
		fmt.Fprint(w, "data: [DONE]\n\n")
		flusher.Flush()
	}
}
