package bankr

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"
)

// writeJSON encodes v as JSON into w.
func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		panic("test helper writeJSON: " + err.Error())
	}
}

// recordedRequest captures what the mock backend received.
type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// mockBackend is an httptest server whose responses are set per route.
type mockBackend struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]func(w http.ResponseWriter, r *http.Request)
}

func newMockBackend(t *testing.T) *mockBackend {
	t.Helper()
	m := &mockBackend{routes: map[string]func(http.ResponseWriter, *http.Request){}}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		m.mu.Lock()
		m.requests = append(m.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
		h, ok := m.routes[r.Method+" "+r.URL.Path]
		m.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			writeJSON(w, map[string]string{"error": "route not found"})
			return
		}
		h(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// on registers a fixed status + raw JSON body for "METHOD /path".
func (m *mockBackend) on(route string, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[route] = func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func (m *mockBackend) last() recordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func (m *mockBackend) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func newTestClient(m *mockBackend, apiKey APIKeyFunc) *Client {
	return NewClient(zap.NewNop(), nil, m.Client(), m.URL+"/", apiKey)
}
