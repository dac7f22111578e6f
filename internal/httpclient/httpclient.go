package httpclient

import (
	"net/http"
	"time"

	"golang.org/x/net/http2"
)

// Default returns an HTTP client with timeouts so that dead upstreams don't hang a
// build cycle forever. The ingest client is built on it.
func Default() *http.Client {
	transport := &http.Transport{
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 5 * time.Second,
		IdleConnTimeout:       30 * time.Second,
	}
	// The watch-graph API is a modern HTTPS endpoint; upgrade to HTTP/2
	// where the server offers it instead of sticking to HTTP/1.1.
	_ = http2.ConfigureTransport(transport)
	return &http.Client{
		Timeout:   60 * time.Second,
		Transport: transport,
	}
}

// ForStreaming returns a client with no overall timeout (stream may be long-lived) but
// ResponseHeaderTimeout so that failover can happen when the upstream never responds.
func ForStreaming() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			ResponseHeaderTimeout: 15 * time.Second,
			ExpectContinueTimeout: 5 * time.Second,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}
