package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/claude/healthmerge/internal/storage"
	"github.com/claude/healthmerge/internal/store"
)

// newTestServer creates an httptest server that routes requests to handler functions
// keyed by path. Verifies the HTTP client sends correct paths and query params.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := handlers[r.URL.Path]
		if !ok {
			t.Errorf("unexpected request path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
}

func writeTestJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(err)
	}
}

// TestHTTPClientLoadData verifies the aggregated data round-trips and that
// missing lists come back as empty slices.
func TestHTTPClientLoadData(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/data": func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("X-API-Key"); got != "k" {
				t.Errorf("X-API-Key = %q, want k", got)
			}
			w.Write([]byte(`{"steps":[{"date":"2024-01-01","steps":4200}],"events":[],"sources":["withings"]}`))
		},
	})
	defer ts.Close()

	data, err := NewHTTPClient(ts.URL+"/", "k").LoadData(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data.Steps) != 1 || data.Steps[0].Steps != 4200 {
		t.Errorf("steps = %+v, want one 4200 entry", data.Steps)
	}
	if data.Sleep == nil {
		t.Error("sleep = nil, want empty slice")
	}
	if len(data.Sources) != 1 || data.Sources[0] != "withings" {
		t.Errorf("sources = %v, want [withings]", data.Sources)
	}
}

func TestHTTPClientSources(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sources": func(w http.ResponseWriter, r *http.Request) {
			writeTestJSON(t, w, []store.SourceSummary{{ID: "withings", Label: "Withings", Records: 12}})
		},
	})
	defer ts.Close()

	sources, err := NewHTTPClient(ts.URL, "").Sources(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sources) != 1 || sources[0].Records != 12 {
		t.Errorf("sources = %+v", sources)
	}
}

// TestHTTPClientImportLogsLimit verifies the limit is passed as a query param.
func TestHTTPClientImportLogsLimit(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/imports": func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("limit"); got != "5" {
				t.Errorf("limit=%q, want 5", got)
			}
			writeTestJSON(t, w, []storage.ImportLog{{ID: "a", Status: storage.ImportSuccess}})
		},
	})
	defer ts.Close()

	logs, err := NewHTTPClient(ts.URL, "").QueryImportLogs(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 || logs[0].ID != "a" {
		t.Errorf("logs = %+v", logs)
	}
}

// TestHTTPClientErrorStatus verifies non-200 responses surface the body.
func TestHTTPClientErrorStatus(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/data": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		},
	})
	defer ts.Close()

	_, err := NewHTTPClient(ts.URL, "").LoadData(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "boom") {
		t.Errorf("error = %v, want status and body", err)
	}
}

// TestHTTPClientBadJSON verifies decode failures are reported.
func TestHTTPClientBadJSON(t *testing.T) {
	ts := newTestServer(t, map[string]http.HandlerFunc{
		"/api/v1/sources": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		},
	})
	defer ts.Close()

	if _, err := NewHTTPClient(ts.URL, "").Sources(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}
