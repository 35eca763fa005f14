package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
)

const (
	defaultRetryMax = 2
	userAgent       = "vidqc-provision"
)

// retryTransport retries idempotent requests on transport errors. HTTP error
// statuses are returned as-is.
type retryTransport struct {
	base     http.RoundTripper
	retryMax int
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	max := t.retryMax
	if max < 0 || req.Body != nil || (req.Method != http.MethodGet && req.Method != http.MethodHead) {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" {
			r.Header.Set("User-Agent", userAgent)
		}
		resp, err := base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// NewClient returns an HTTP client with a bounded retry policy.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &retryTransport{base: http.DefaultTransport, retryMax: defaultRetryMax},
	}
}

// Downloader fetches archives over HTTP.
type Downloader struct {
	Client *http.Client
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
}

// Download fetches url into dest with the default client and no progress output.
func Download(ctx context.Context, url, dest string) (int64, error) {
	return Downloader{}.Download(ctx, url, dest)
}

// Download streams url to dest.part and renames it to dest once complete, so
// an interrupted transfer never leaves a truncated file at dest.
func (d Downloader) Download(ctx context.Context, url, dest string) (int64, error) {
	client := d.Client
	if client == nil {
		client = NewClient(0)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create download directory: %w", err)
	}
	partial := dest + ".part"
	out, err := os.Create(partial)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", partial, err)
	}

	var w io.Writer = out
	var bar *progressbar.ProgressBar
	if d.Progress != nil {
		bar = progressbar.NewOptions64(resp.ContentLength,
			progressbar.OptionSetWriter(d.Progress),
			progressbar.OptionSetDescription("downloading ffmpeg"),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(d.Progress) }),
		)
		w = io.MultiWriter(out, bar)
	}

	written, copyErr := io.Copy(w, resp.Body)
	closeErr := out.Close()
	if copyErr == nil && closeErr != nil {
		copyErr = closeErr
	}
	if copyErr == nil && resp.ContentLength > 0 && written != resp.ContentLength {
		copyErr = fmt.Errorf("short body: got %d of %d bytes", written, resp.ContentLength)
	}
	if copyErr != nil {
		_ = os.Remove(partial)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(copyErr, ctxErr) {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("download %s: %w", url, copyErr)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if err := os.Rename(partial, dest); err != nil {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("finalize download: %w", err)
	}
	return written, nil
}
