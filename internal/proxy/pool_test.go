package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type countingSource struct {
	lists [][]string
	calls int
	err   error
}

func (s *countingSource) Proxies(ctx context.Context) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.lists[(s.calls-1)%len(s.lists)], nil
}

func TestPool_Rotation(t *testing.T) {
	pool := NewPool(Static{"p1:80", "p2:80", "p3:80"}, time.Hour)
	ctx := context.Background()

	want := []string{"p1:80", "p2:80", "p3:80", "p1:80"}
	for i, w := range want {
		if p := pool.Next(ctx); p == nil || p.Host != w {
			t.Errorf("Next #%d: expected %s, got %v", i, w, p)
		}
	}
}

func TestPool_EmptyMeansDirect(t *testing.T) {
	pool := NewPool(Static{}, time.Hour)
	if p := pool.Next(context.Background()); p != nil {
		t.Errorf("Expected nil proxy from empty pool, got %v", p)
	}
}

func TestPool_LazyRefresh(t *testing.T) {
	src := &countingSource{lists: [][]string{{"a:1", "b:1"}, {"c:1"}}}
	pool := NewPool(src, 15*time.Minute)

	now := time.Date(2020, 8, 22, 12, 0, 0, 0, time.UTC)
	pool.now = func() time.Time { return now }
	ctx := context.Background()

	if p := pool.Next(ctx); p.Host != "a:1" {
		t.Errorf("Expected a:1, got %s", p.Host)
	}
	now = now.Add(10 * time.Minute)
	if p := pool.Next(ctx); p.Host != "b:1" {
		t.Errorf("Expected b:1, got %s", p.Host)
	}
	if src.calls != 1 {
		t.Errorf("Expected 1 refresh before timeout, got %d", src.calls)
	}

	now = now.Add(6 * time.Minute)
	if p := pool.Next(ctx); p.Host != "c:1" {
		t.Errorf("Expected replaced list to start at c:1, got %s", p.Host)
	}
	if src.calls != 2 {
		t.Errorf("Expected 2 refreshes, got %d", src.calls)
	}
	if !pool.RefreshedAt().Equal(now) {
		t.Errorf("Expected refreshed at %v, got %v", now, pool.RefreshedAt())
	}
}

func TestPool_FailedRefreshKeepsList(t *testing.T) {
	src := &countingSource{lists: [][]string{{"a:1"}}}
	pool := NewPool(src, time.Minute)
	now := time.Now()
	pool.now = func() time.Time { return now }

	pool.Next(context.Background())
	src.err = errors.New("list down")
	now = now.Add(2 * time.Minute)

	if p := pool.Next(context.Background()); p == nil || p.Host != "a:1" {
		t.Errorf("Expected old list to be kept, got %v", p)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1.2.3.4:8080", "http://1.2.3.4:8080", false},
		{"socks5://127.0.0.1:9050", "socks5://127.0.0.1:9050", false},
		{"ftp://x:21", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		u, err := Parse(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Parse(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && u.String() != tt.want {
			t.Errorf("Parse(%q) = %s, want %s", tt.in, u, tt.want)
		}
	}
}

func TestListSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "# free list\n1.1.1.1:80\n\n2.2.2.2:3128\n3.3.3.3:8080\n")
	}))
	defer server.Close()

	proxies, err := ListSource{URL: server.URL, Limit: 2}.Proxies(context.Background())
	if err != nil {
		t.Fatalf("Proxies failed: %v", err)
	}
	if len(proxies) != 2 || proxies[0] != "1.1.1.1:80" || proxies[1] != "2.2.2.2:3128" {
		t.Errorf("Unexpected proxies %v", proxies)
	}
}

func TestChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "2.2.2.2:3128\n")
	}))
	defer server.Close()

	proxies, err := Chain{Static{"1.1.1.1:80"}, ListSource{URL: server.URL}}.Proxies(context.Background())
	if err != nil {
		t.Fatalf("Proxies failed: %v", err)
	}
	if len(proxies) != 2 || proxies[1] != "2.2.2.2:3128" {
		t.Errorf("Unexpected proxies %v", proxies)
	}

	server.Close()
	if _, err := (Chain{Static{"1.1.1.1:80"}, ListSource{URL: server.URL}}).Proxies(context.Background()); err == nil {
		t.Error("Expected error when one source fails")
	}
}
