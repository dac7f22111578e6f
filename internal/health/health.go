// Package health provides startup connectivity checks: is the upstream
// watch-graph feed reachable, and is our own resolver surface answering.
// Run these as best-effort diagnostics at process start; a failure here
// never blocks the scheduler or resolver (§4.7's "best-effort" rule).
package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CheckWatchGraph fetches the upstream feed URL and reports whether it
// answered with a 2xx status.
func CheckWatchGraph(ctx context.Context, watchGraphURL string) error {
	if watchGraphURL == "" {
		return fmt.Errorf("no watch-graph URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchGraphURL, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("watch-graph unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("watch-graph returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// CheckResolverSurface hits /health and /channels_db on our own resolver
// at baseURL and returns the first error, or nil. Useful as a
// post-startup smoke check before declaring the process ready.
func CheckResolverSurface(ctx context.Context, baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	for _, path := range []string{"/health", "/channels_db"} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s: HTTP %d", path, resp.StatusCode)
		}
	}
	return nil
}
