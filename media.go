package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
)

// maxRedirects caps the redirect chain followed per asset. Exceeding it
// fails that asset, not the run.
const maxRedirects = 5

// HTTPError represents an HTTP error with status code
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for %s", e.StatusCode, e.URL)
}

// MediaFetcher downloads externally hosted assets into the local media
// directory, namespaced by slug. Fetching is idempotent: an asset whose
// destination already exists is skipped.
type MediaFetcher struct {
	client      *http.Client
	mediaDir    string
	concurrency int
}

// NewMediaFetcher creates a fetcher with a redirect-capped HTTP client.
func NewMediaFetcher(settings *Settings) *MediaFetcher {
	return &MediaFetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		mediaDir:    settings.MediaDir,
		concurrency: settings.Concurrency,
	}
}

// FetchAll downloads one item's assets with a bounded worker pool. Assets
// are independent of each other; each failure is captured in its outcome
// and never aborts the rest.
func (f *MediaFetcher) FetchAll(ctx context.Context, slug string, urls []string) []FetchOutcome {
	outcomes := make([]FetchOutcome, len(urls))

	g := new(errgroup.Group)
	g.SetLimit(f.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			outcomes[i] = f.Fetch(ctx, slug, u)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// Fetch resolves one asset to its local destination and downloads it
// unless the file is already present.
func (f *MediaFetcher) Fetch(ctx context.Context, slug, srcURL string) FetchOutcome {
	dest := filepath.Join(f.mediaDir, slug, assetFilename(srcURL))
	outcome := FetchOutcome{SourceURL: srcURL, LocalPath: dest}

	if _, err := os.Stat(dest); err == nil {
		outcome.Status = StatusAlreadyPresent
		return outcome
	}

	if err := f.download(ctx, srcURL, dest); err != nil {
		outcome.Status = StatusFailed
		outcome.Error = err
		return outcome
	}

	outcome.Status = StatusFetched
	return outcome
}

func (f *MediaFetcher) download(ctx context.Context, srcURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", srcURL, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", srcURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{StatusCode: resp.StatusCode, URL: srcURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body for %s: %w", srcURL, err)
	}

	// MkdirAll is safe when several workers share a slug directory.
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating media directory: %w", err)
	}

	return writeFileAtomic(dest, body)
}

// writeFileAtomic writes data to a temp file in the destination directory
// and renames it into place, so a killed run never leaves a partial file.
func writeFileAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), dest)
}
