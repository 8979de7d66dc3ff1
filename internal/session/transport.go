package session

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

// errUndecodable marks a response body whose encoding could not be handled.
var errUndecodable = errors.New("undecodable response body")

type proxyKey struct{}

// withProxy routes requests made with ctx through proxyURL. A nil proxy means
// a direct connection.
func withProxy(ctx context.Context, proxyURL *url.URL) context.Context {
	return context.WithValue(ctx, proxyKey{}, proxyURL)
}

// proxyFromContext is the http.Transport Proxy hook.
func proxyFromContext(req *http.Request) (*url.URL, error) {
	u, _ := req.Context().Value(proxyKey{}).(*url.URL)
	return u, nil
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:               proxyFromContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 15 * time.Second,
	}
}

// RequestOption adjusts an outgoing request.
type RequestOption func(*http.Request)

// CloseConnection sends "Connection: close", which the search index expects
// from clients that do not reuse connections across proxies.
func CloseConnection() RequestOption {
	return func(req *http.Request) {
		req.Close = true
	}
}

// NoCache sends "Cache-Control: no-cache" and makes Fetch bypass the page
// cache in both directions.
func NoCache() RequestOption {
	return func(req *http.Request) {
		req.Header.Set("Cache-Control", "no-cache")
	}
}

// cacheable reports whether a GET of rawURL with opts may use the page cache.
func cacheable(rawURL string, opts []RequestOption) bool {
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		return false
	}
	for _, opt := range opts {
		opt(req)
	}
	return req.Header.Get("Cache-Control") != "no-cache"
}

// WithHeader sets a single request header.
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// readBody decompresses and transcodes a response body to UTF-8.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "br":
		r = brotli.NewReader(r)
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: gzip: %v", errUndecodable, err)
		}
		defer gz.Close()
		r = gz
	case "deflate":
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: deflate: %v", errUndecodable, err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("%w: content encoding %q", errUndecodable, resp.Header.Get("Content-Encoding"))
	}

	utf8, err := charset.NewReader(r, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: charset: %v", errUndecodable, err)
	}

	body, err := io.ReadAll(utf8)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", errUndecodable, err)
	}
	return body, nil
}
