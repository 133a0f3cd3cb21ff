package upload

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/claude/healthmerge/internal/ingest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// importServer answers every import with a result counting the body bytes
// as steps, after failing the first failFirst requests with status.
func importServer(t *testing.T, failFirst int32, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if r.URL.Path != "/api/v1/import" {
			t.Errorf("path = %s, want /api/v1/import", r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "key" {
			t.Errorf("X-API-Key = %q, want key", got)
		}
		if got := r.Header.Get("Content-Type"); got != "application/zip" {
			t.Errorf("Content-Type = %q, want application/zip", got)
		}
		if n <= failFirst {
			http.Error(w, `{"error":"nope"}`, status)
			return
		}
		body, _ := io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(ingest.Result{SourceID: r.URL.Query().Get("source"), Steps: len(body)})
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func fastClient(url string) *Client {
	c := NewClient(url, "key")
	c.backoff = time.Millisecond
	return c
}

func TestSendArchive(t *testing.T) {
	ts, calls := importServer(t, 0, 0)
	res, err := fastClient(ts.URL).SendArchive(context.Background(), []byte("zipdata"), "withings")
	if err != nil {
		t.Fatalf("SendArchive: %v", err)
	}
	if res.SourceID != "withings" || res.Steps != 7 {
		t.Errorf("result = %+v", res)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

// TestSendArchiveRetries verifies server errors are retried and client
// errors are not.
func TestSendArchiveRetries(t *testing.T) {
	tests := []struct {
		name      string
		failFirst int32
		status    int
		wantErr   bool
		wantCalls int32
	}{
		{"recovers after 500", 2, http.StatusInternalServerError, false, 3},
		{"gives up after 3", 5, http.StatusBadGateway, true, 3},
		{"400 is final", 5, http.StatusBadRequest, true, 1},
		{"429 is retried", 1, http.StatusTooManyRequests, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, calls := importServer(t, tt.failFirst, tt.status)
			_, err := fastClient(ts.URL).SendArchive(context.Background(), []byte("x"), "")
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestStateDB(t *testing.T) {
	ctx := context.Background()
	state, err := OpenStateDB(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	defer state.Close()

	prev, err := state.Lookup(ctx, "/a.zip", "withings")
	if err != nil || prev != nil {
		t.Fatalf("Lookup before record = %+v, %v; want nil", prev, err)
	}
	if prev.Same(10, "h1") {
		t.Error("nil record reported as same")
	}

	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	if err := state.Record(ctx, Sent{Path: "/a.zip", Source: "withings", Size: 10, Hash: "h1", Records: 42, UploadedAt: at}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	prev, err = state.Lookup(ctx, "/a.zip", "withings")
	if err != nil || prev == nil {
		t.Fatalf("Lookup after record = %+v, %v", prev, err)
	}
	if !prev.Same(10, "h1") {
		t.Error("recorded archive not reported as same")
	}
	if prev.Same(10, "h2") {
		t.Error("changed hash reported as same")
	}
	if prev.Records != 42 || !prev.UploadedAt.Equal(at) {
		t.Errorf("record = %+v, want 42 records at %v", prev, at)
	}
	if other, _ := state.Lookup(ctx, "/a.zip", "tracker"); other != nil {
		t.Error("other source has a record")
	}
}

func TestStateDBHistory(t *testing.T) {
	ctx := context.Background()
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	defer state.Close()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, p := range []string{"/a.zip", "/b.zip", "/c.zip"} {
		sent := Sent{Path: p, Source: "withings", Size: 1, Hash: "h", UploadedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := state.Record(ctx, sent); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := state.History(ctx, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(all) != 3 || all[0].Path != "/c.zip" {
		t.Errorf("History = %+v, want 3 entries newest first", all)
	}
	limited, _ := state.History(ctx, 2)
	if len(limited) != 2 {
		t.Errorf("History(2) = %d entries, want 2", len(limited))
	}
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	os.WriteFile(path, []byte("abc"), 0o644)
	got, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
}

// TestUploaderSkipsUnchanged runs twice over a directory; the second run
// sends nothing.
func TestUploaderSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	ts, calls := importServer(t, 0, 0)
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.zip"), []byte("first"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.ZIP"), []byte("second"), 0o644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644)

	state, err := OpenStateDB(filepath.Join(t.TempDir(), "state"))
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	defer state.Close()

	stats, err := New(fastClient(ts.URL), state, "withings", false, testLogger()).Run(ctx, []string{dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.FilesTotal != 2 || stats.FilesUploaded != 2 || stats.RecordsSent != 11 {
		t.Errorf("first run = %+v, want 2 uploaded, 11 records", stats)
	}

	stats, err = New(fastClient(ts.URL), state, "withings", false, testLogger()).Run(ctx, []string{dir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.FilesSkipped != 2 || stats.FilesUploaded != 0 {
		t.Errorf("second run = %+v, want 2 skipped", stats)
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
}

func TestUploaderDryRun(t *testing.T) {
	ts, calls := importServer(t, 0, 0)
	path := filepath.Join(t.TempDir(), "a.zip")
	os.WriteFile(path, []byte("zip"), 0o644)
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	defer state.Close()

	stats, err := New(fastClient(ts.URL), state, "withings", true, testLogger()).Run(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.FilesUploaded != 1 || calls.Load() != 0 {
		t.Errorf("dry run: stats %+v, calls %d", stats, calls.Load())
	}
}

func TestUploaderMissingPath(t *testing.T) {
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	defer state.Close()
	_, err = New(NewClient("http://unused", "key"), state, "", false, testLogger()).Run(context.Background(), []string{"/does/not/exist"})
	if err == nil {
		t.Error("expected error for missing path")
	}
}
