package session

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/law-makers/forumgrep/internal/cache"
	"github.com/law-makers/forumgrep/internal/engine"
	"github.com/law-makers/forumgrep/internal/proxy"
	"github.com/law-makers/forumgrep/internal/retry"
)

func newTestManager(t *testing.T, baseURL string, opts ...func(*Options)) *Manager {
	t.Helper()
	o := Options{BaseURL: baseURL}
	for _, fn := range opts {
		fn(&o)
	}
	m, err := New(o)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}
	return m
}

func TestNew_InvalidBaseURL(t *testing.T) {
	if _, err := New(Options{BaseURL: "not a url"}); err == nil {
		t.Error("Expected error for invalid base URL")
	}
}

func TestFetch_RetryBound(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	page, ok := m.Fetch(context.Background(), server.URL+"/threads/1")

	if ok {
		t.Error("Expected fetch to fail")
	}
	if !page.Empty() {
		t.Error("Expected empty page")
	}
	if got := hits.Load(); got != retry.FetchAttempts {
		t.Errorf("Expected %d attempts, got %d", retry.FetchAttempts, got)
	}
}

func TestFetch_RecoversAfterFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, "<html><body>ok</body></html>")
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	page, ok := m.Fetch(context.Background(), server.URL+"/page")

	if !ok {
		t.Fatal("Expected fetch to succeed")
	}
	if !strings.Contains(string(page.HTML), "ok") {
		t.Errorf("Unexpected body %q", page.HTML)
	}
	if page.Link != server.URL+"/page" {
		t.Errorf("Expected link %s, got %s", server.URL+"/page", page.Link)
	}
	if hits.Load() != 4 {
		t.Errorf("Expected 4 attempts, got %d", hits.Load())
	}
}

func TestFetch_RotatesProxies(t *testing.T) {
	var badHits, goodHits atomic.Int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		badHits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodHits.Add(1)
		fmt.Fprintf(w, "via proxy for %s", r.URL.Host)
	}))
	defer good.Close()

	pool := proxy.NewPool(proxy.Static{bad.URL, good.URL}, 0)
	m := newTestManager(t, "http://forum.invalid", func(o *Options) { o.Proxies = pool })

	page, ok := m.Fetch(context.Background(), "http://forum.invalid/threads/7")
	if !ok {
		t.Fatal("Expected fetch through the second proxy to succeed")
	}
	if string(page.HTML) != "via proxy for forum.invalid" {
		t.Errorf("Unexpected body %q", page.HTML)
	}
	if badHits.Load() != 1 || goodHits.Load() != 1 {
		t.Errorf("Expected one hit per proxy, got bad=%d good=%d", badHits.Load(), goodHits.Load())
	}
}

func TestFetch_Decoding(t *testing.T) {
	cp1251 := []byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2} // "Привет"

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write([]byte("gzipped body"))
	gw.Close()

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	bw.Write([]byte("brotli body"))
	bw.Close()

	tests := []struct {
		name        string
		contentType string
		encoding    string
		body        []byte
		want        string
	}{
		{"windows-1251", "text/html; charset=windows-1251", "", cp1251, "Привет"},
		{"gzip", "text/html; charset=utf-8", "gzip", gz.Bytes(), "gzipped body"},
		{"brotli", "text/html; charset=utf-8", "br", br.Bytes(), "brotli body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				if tt.encoding != "" {
					w.Header().Set("Content-Encoding", tt.encoding)
				}
				w.Write(tt.body)
			}))
			defer server.Close()

			m := newTestManager(t, server.URL)
			page, ok := m.Fetch(context.Background(), server.URL)
			if !ok {
				t.Fatal("Expected fetch to succeed")
			}
			if string(page.HTML) != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, page.HTML)
			}
		})
	}
}

func TestFetch_UndecodableIsEmpty(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Encoding", "compress")
		w.Write([]byte{0x1f, 0x9d, 0x90})
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	if _, ok := m.Fetch(context.Background(), server.URL); ok {
		t.Error("Expected undecodable body to yield no page")
	}
	if hits.Load() != 1 {
		t.Errorf("Expected undecodable body not to be retried, got %d attempts", hits.Load())
	}
}

func TestFetchMany_LossBounded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/threads/7/" {
			http.Redirect(w, r, "/threads/some-title.7/", http.StatusMovedPermanently)
			return
		}
		fmt.Fprintf(w, "<p>%s</p>", r.URL.Path)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL, func(o *Options) {
		o.Retry = retry.Config{MaxAttempts: 2, RetryAnyStatus: true}
	})

	urls := []string{
		server.URL + "/threads/1",
		server.URL + "/threads/missing-2",
		server.URL + "/threads/3",
		server.URL + "/threads/missing-4",
		server.URL + "/threads/5",
		server.URL + "/threads/7/",
	}
	input := make(map[string]bool)
	for _, u := range urls {
		input[u] = true
	}

	pages := m.FetchMany(context.Background(), urls)
	if len(pages) != 4 {
		t.Errorf("Expected 4 pages, got %d", len(pages))
	}
	if len(pages) > len(urls) {
		t.Errorf("Returned more pages than URLs")
	}
	for _, p := range pages {
		if !input[p.Link] {
			t.Errorf("Page link %s not in input set", p.Link)
		}
	}
}

func TestRequestSearch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><form><input type="hidden" name="_xfToken" value="1599119586,abc"></form></html>`)
	})
	mux.HandleFunc("POST /search/search", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("keywords") != "+380" {
			t.Errorf("Expected keywords +380, got %q", r.PostForm.Get("keywords"))
		}
		if r.PostForm.Get("_xfToken") != "1599119586,abc" {
			t.Errorf("Expected token to be forwarded, got %q", r.PostForm.Get("_xfToken"))
		}
		http.Redirect(w, r, "/search/42/?q=%2B380", http.StatusSeeOther)
	})
	mux.HandleFunc("GET /search/42/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><a href="/threads/phones.1/">phones</a></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	m := newTestManager(t, server.URL)
	page, err := m.RequestSearch(context.Background(), "+380")
	if err != nil {
		t.Fatalf("RequestSearch failed: %v", err)
	}
	if !strings.HasSuffix(page.Link, "/search/42/?q=%2B380") {
		t.Errorf("Expected redirected result link, got %s", page.Link)
	}
	if !strings.Contains(string(page.HTML), "/threads/phones.1/") {
		t.Errorf("Unexpected result page %q", page.HTML)
	}
}

func TestRequestSearch_RetriesRateLimitedTokenPage(t *testing.T) {
	var tokenHits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		if tokenHits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `<input type="hidden" name="_xfToken" value="t">`)
	})
	mux.HandleFunc("POST /search/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html>results</html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	m := newTestManager(t, server.URL)
	if _, err := m.RequestSearch(context.Background(), "+380"); err != nil {
		t.Fatalf("Expected rate limited token page to be retried, got %v", err)
	}
	if tokenHits.Load() != 2 {
		t.Errorf("Expected 2 token requests, got %d", tokenHits.Load())
	}
}

func TestRequestSearch_ClientErrorIsNotUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	_, err := m.RequestSearch(context.Background(), "+380")
	if err == nil {
		t.Fatal("Expected an error for a missing base page")
	}
	if errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("Expected a status error, not ErrUnauthorized: %v", err)
	}
	var sc retry.StatusCoder
	if !errors.As(err, &sc) || sc.GetStatusCode() != http.StatusNotFound {
		t.Errorf("Expected status 404 in error, got %v", err)
	}
}

func TestRequestSearch_UndecodableBodyIsPermanent(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Encoding", "compress")
		fmt.Fprint(w, "garbage")
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	if _, err := m.RequestSearch(context.Background(), "+380"); err == nil {
		t.Fatal("Expected an error for an undecodable token page")
	}
	if hits.Load() != 1 {
		t.Errorf("Expected no retries on an undecodable body, got %d requests", hits.Load())
	}
}

func TestRequestSearch_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>Log in</body></html>`)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	_, err := m.RequestSearch(context.Background(), "+380")
	if !errors.Is(err, engine.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized, got %v", err)
	}
}

func TestRequestSearch_ServerDown(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL)
	_, err := m.RequestSearch(context.Background(), "+380")
	if !errors.Is(err, engine.ErrServerIsDown) {
		t.Errorf("Expected ErrServerIsDown, got %v", err)
	}
	if !engine.IsSessionFatal(err) {
		t.Error("Expected server down to be session fatal")
	}
	if hits.Load() != 1 {
		t.Errorf("Expected no retries on server down, got %d requests", hits.Load())
	}
}

func TestFetch_SendsConfiguredHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "agent-a" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("X-Forum") != "bhf" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.Header.Get("Connection") != "close" && !r.Close {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "ok")
	}))
	defer server.Close()

	m := newTestManager(t, server.URL, func(o *Options) {
		o.UserAgents = []string{"agent-a"}
		o.Headers = map[string]string{"X-Forum": "bhf"}
		o.Retry = retry.Config{MaxAttempts: 1}
	})
	if _, ok := m.Fetch(context.Background(), server.URL, CloseConnection()); !ok {
		t.Error("Expected request with configured headers to succeed")
	}
}

func TestFetch_UsesCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, "<p>thread</p>")
	}))
	defer server.Close()

	pages := cache.NewPageCache(time.Minute, 0)
	defer pages.Close()
	m := newTestManager(t, server.URL, func(o *Options) { o.Cache = pages })

	for range 3 {
		if _, ok := m.Fetch(context.Background(), server.URL+"/threads/1/"); !ok {
			t.Fatal("Fetch failed")
		}
	}
	if hits.Load() != 1 {
		t.Errorf("Expected 1 request with cache, got %d", hits.Load())
	}

	for range 2 {
		if _, ok := m.Fetch(context.Background(), server.URL+"/search?q=x", NoCache()); !ok {
			t.Fatal("Fetch failed")
		}
	}
	if hits.Load() != 3 {
		t.Errorf("Expected no-cache fetches to reach the server, got %d requests", hits.Load())
	}
	if pages.Len() != 1 {
		t.Errorf("Expected only the thread page cached, got %d entries", pages.Len())
	}
}

func TestFetchMany_ConcurrencyLimit(t *testing.T) {
	var active, peak atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		fmt.Fprint(w, "<p>ok</p>")
	}))
	defer server.Close()

	m := newTestManager(t, server.URL, func(o *Options) { o.Concurrency = 2 })

	var urls []string
	for i := range 6 {
		urls = append(urls, fmt.Sprintf("%s/threads/%d/", server.URL, i))
	}
	if pages := m.FetchMany(context.Background(), urls); len(pages) != 6 {
		t.Errorf("Expected 6 pages, got %d", len(pages))
	}
	if peak.Load() > 2 {
		t.Errorf("Expected at most 2 concurrent requests, got %d", peak.Load())
	}
}
