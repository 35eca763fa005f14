package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"vidqc/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := accessRWX(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckBinary resolves a tool and runs it with -version.
func CheckBinary(ctx context.Context, name string, resolve func() (deps.Resolution, error)) Result {
	res, err := resolve()
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if err := deps.Verify(ctx, res.Path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", res.Path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", res.Path, res.Source)}
}

// CheckDownloadURL confirms the ffmpeg archive URL answers a HEAD request.
func CheckDownloadURL(ctx context.Context, url string) Result {
	const name = "FFmpeg download"

	url = strings.TrimSpace(url)
	if url == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodHead, url, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("request failed (%v)", err)}
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		detail := "reachable"
		if resp.ContentLength > 0 {
			detail = fmt.Sprintf("reachable (%d bytes)", resp.ContentLength)
		}
		return Result{Name: name, Passed: true, Detail: detail}
	case resp.StatusCode == http.StatusMethodNotAllowed:
		return Result{Name: name, Passed: true, Detail: "reachable (HEAD not allowed)"}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out (host unreachable)"
	}
	return err.Error()
}
