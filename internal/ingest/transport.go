package ingest

import (
	"compress/gzip"
	"io"
	"net/http"

	"github.com/andybalholm/brotli"
)

// brotliTransport wraps an http.RoundTripper, advertising brotli support
// and transparently decompressing br-encoded responses — the upstream
// watch-graph API accepts Accept-Encoding: br and Go's net/http only
// auto-decompresses gzip.
type brotliTransport struct {
	base http.RoundTripper
}

func newBrotliTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &brotliTransport{base: base}
}

func (t *brotliTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "br, gzip")
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		resp.Body = &decodingBody{reader: brotli.NewReader(resp.Body), closer: resp.Body}
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
		resp.ContentLength = -1
	case "gzip":
		gz, gzErr := gzip.NewReader(resp.Body)
		if gzErr == nil {
			resp.Body = &decodingBody{reader: gz, closer: resp.Body}
			resp.Header.Del("Content-Encoding")
			resp.Header.Del("Content-Length")
			resp.ContentLength = -1
		}
	}
	return resp, nil
}

// decodingBody adapts a decompressing io.Reader to io.ReadCloser, closing
// the underlying compressed body when the caller is done.
type decodingBody struct {
	reader io.Reader
	closer io.Closer
}

func (d *decodingBody) Read(p []byte) (int, error) { return d.reader.Read(p) }
func (d *decodingBody) Close() error                { return d.closer.Close() }
