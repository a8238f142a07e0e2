package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestFetcher(t *testing.T) (*MediaFetcher, string) {
	t.Helper()
	settings := DefaultSettings()
	settings.MediaDir = t.TempDir()
	return NewMediaFetcher(settings), settings.MediaDir
}

func TestFetchSavesFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	fetcher, mediaDir := newTestFetcher(t)

	outcome := fetcher.Fetch(context.Background(), "my-post", server.URL+"/uploads/photo.png")
	if outcome.Status != StatusFetched {
		t.Fatalf("Fetch() status = %v, error = %v, want StatusFetched", outcome.Status, outcome.Error)
	}

	wantPath := filepath.Join(mediaDir, "my-post", "photo.png")
	if outcome.LocalPath != wantPath {
		t.Errorf("Fetch() local path = %q, want %q", outcome.LocalPath, wantPath)
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("reading fetched file: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("fetched file content = %q, want %q", data, "image-bytes")
	}
}

func TestFetchSkipsExistingFile(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("new-bytes"))
	}))
	defer server.Close()

	fetcher, mediaDir := newTestFetcher(t)

	dest := filepath.Join(mediaDir, "my-post", "photo.png")
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dest, []byte("old-bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	outcome := fetcher.Fetch(context.Background(), "my-post", server.URL+"/uploads/photo.png")
	if outcome.Status != StatusAlreadyPresent {
		t.Fatalf("Fetch() status = %v, want StatusAlreadyPresent", outcome.Status)
	}
	if hits.Load() != 0 {
		t.Errorf("server hit %d times, want 0", hits.Load())
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "old-bytes" {
		t.Errorf("existing file overwritten: content = %q", data)
	}
}

func TestFetchQueryStringStripped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer server.Close()

	fetcher, mediaDir := newTestFetcher(t)

	outcome := fetcher.Fetch(context.Background(), "my-post", server.URL+"/uploads/photo.png?w=640")
	if outcome.Status != StatusFetched {
		t.Fatalf("Fetch() status = %v, error = %v", outcome.Status, outcome.Error)
	}
	if filepath.Base(outcome.LocalPath) != "photo.png" {
		t.Errorf("local filename = %q, want query string stripped", filepath.Base(outcome.LocalPath))
	}
	if _, err := os.Stat(filepath.Join(mediaDir, "my-post", "photo.png")); err != nil {
		t.Errorf("expected file on disk: %v", err)
	}
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	fetcher, _ := newTestFetcher(t)

	outcome := fetcher.Fetch(context.Background(), "my-post", server.URL+"/gone.png")
	if outcome.Status != StatusFailed {
		t.Fatalf("Fetch() status = %v, want StatusFailed", outcome.Status)
	}
	var httpErr *HTTPError
	if !errors.As(outcome.Error, &httpErr) {
		t.Fatalf("Fetch() error = %v, want *HTTPError", outcome.Error)
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("HTTPError status = %d, want 404", httpErr.StatusCode)
	}
	if _, err := os.Stat(outcome.LocalPath); !os.IsNotExist(err) {
		t.Errorf("no file should be written on failure")
	}
}

// redirectChain serves /chain/<n>/<file>: any n > 0 redirects to n-1, and
// n == 0 answers with the payload.
func redirectChain(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/chain/"), "/")
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		n, err := strconv.Atoi(parts[0])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		if n > 0 {
			http.Redirect(w, r, fmt.Sprintf("/chain/%d/%s", n-1, parts[1]), http.StatusFound)
			return
		}
		w.Write([]byte("payload"))
	}))
}

func TestFetchFollowsRedirects(t *testing.T) {
	server := redirectChain(t)
	defer server.Close()

	fetcher, _ := newTestFetcher(t)

	outcome := fetcher.Fetch(context.Background(), "my-post", server.URL+"/chain/5/five.png")
	if outcome.Status != StatusFetched {
		t.Fatalf("five redirects must succeed, got status %v, error %v", outcome.Status, outcome.Error)
	}
	data, err := os.ReadFile(outcome.LocalPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("file content = %q, want %q", data, "payload")
	}
}

func TestFetchRedirectLimit(t *testing.T) {
	server := redirectChain(t)
	defer server.Close()

	fetcher, _ := newTestFetcher(t)

	outcome := fetcher.Fetch(context.Background(), "my-post", server.URL+"/chain/6/six.png")
	if outcome.Status != StatusFailed {
		t.Fatalf("six redirects must fail, got status %v", outcome.Status)
	}
	if outcome.Error == nil {
		t.Fatal("expected a redirect error")
	}
}

func TestFetchAllMixedOutcomes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "broken.png") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fetcher, _ := newTestFetcher(t)

	urls := []string{
		server.URL + "/a.png",
		server.URL + "/broken.png",
		server.URL + "/b.png",
	}
	outcomes := fetcher.FetchAll(context.Background(), "my-post", urls)
	if len(outcomes) != len(urls) {
		t.Fatalf("FetchAll() returned %d outcomes, want %d", len(outcomes), len(urls))
	}

	// Outcomes are positional, one failure must not abort the rest.
	wantStatus := []FetchStatus{StatusFetched, StatusFailed, StatusFetched}
	for i, want := range wantStatus {
		if outcomes[i].Status != want {
			t.Errorf("outcome[%d].Status = %v, want %v (error: %v)", i, outcomes[i].Status, want, outcomes[i].Error)
		}
		if outcomes[i].SourceURL != urls[i] {
			t.Errorf("outcome[%d].SourceURL = %q, want %q", i, outcomes[i].SourceURL, urls[i])
		}
	}
}
