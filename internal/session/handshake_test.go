package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/law-makers/forumgrep/internal/engine"
	"github.com/law-makers/forumgrep/pkg/models"
)

func xenforoLogin() LoginHandshake {
	return LoginHandshake{
		ScriptPath:    "/js/xf/bootstrap.js",
		ClientIDExpr:  "XF.config.clientId",
		ClientIDField: "_xfClientId",
		LoginPath:     "/login/login",
		SessionCookie: "xf_session",
		UserCookie:    "xf_user",
	}
}

func loginServer(t *testing.T, posts *atomic.Int32, setUser bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /js/xf/bootstrap.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/javascript")
		fmt.Fprint(w, `window.XF = { config: { clientId: "c" + (40 + 2) } };`)
	})
	mux.HandleFunc("POST /login/login", func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		r.ParseForm()
		if r.PostForm.Get("_xfClientId") != "c42" || r.PostForm.Get("password") != "hunter2" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.PostForm.Get("remember") == "1" {
			if setUser {
				http.SetCookie(w, &http.Cookie{Name: "xf_user", Value: "359935-token", Path: "/"})
			}
		} else {
			http.SetCookie(w, &http.Cookie{Name: "xf_session", Value: "sess", Path: "/"})
		}
		fmt.Fprint(w, "<html>welcome</html>")
	})
	return httptest.NewServer(mux)
}

func TestLoginHandshake(t *testing.T) {
	var posts atomic.Int32
	server := loginServer(t, &posts, true)
	defer server.Close()

	m := newTestManager(t, server.URL, func(o *Options) { o.Handshake = xenforoLogin() })
	creds := models.Credentials{Site: "bhf", Username: "alice", Password: "hunter2"}

	state, err := m.Authenticate(context.Background(), creds)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if missing := state.Missing("xf_session", "xf_user"); len(missing) > 0 {
		t.Errorf("Expected both cookies, got %v", state.CookieNames())
	}
	if posts.Load() != 2 {
		t.Errorf("Expected 2 login posts, got %d", posts.Load())
	}

	// A second call returns the first outcome without another handshake
	if _, err := m.Authenticate(context.Background(), creds); err != nil {
		t.Errorf("Second Authenticate failed: %v", err)
	}
	if posts.Load() != 2 {
		t.Errorf("Expected handshake to run once, got %d posts", posts.Load())
	}
}

func TestLoginHandshake_MissingUserCookie(t *testing.T) {
	var posts atomic.Int32
	server := loginServer(t, &posts, false)
	defer server.Close()

	m := newTestManager(t, server.URL, func(o *Options) { o.Handshake = xenforoLogin() })
	_, err := m.Authenticate(context.Background(), models.Credentials{Username: "alice", Password: "hunter2"})

	if !errors.Is(err, engine.ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication, got %v", err)
	}
	if posts.Load() != 2 {
		t.Errorf("Expected authentication failure not to be retried, got %d posts", posts.Load())
	}
}

func TestLoginHandshake_NoCredentials(t *testing.T) {
	m := newTestManager(t, "http://forum.invalid", func(o *Options) { o.Handshake = xenforoLogin() })
	_, err := m.Authenticate(context.Background(), models.Credentials{})
	if !errors.Is(err, engine.ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication, got %v", err)
	}
}

func TestLoginHandshake_ServerDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	m := newTestManager(t, server.URL, func(o *Options) { o.Handshake = xenforoLogin() })
	_, err := m.Authenticate(context.Background(), models.Credentials{Username: "a", Password: "b"})
	if !errors.Is(err, engine.ErrServerIsDown) {
		t.Errorf("Expected ErrServerIsDown, got %v", err)
	}
}

func TestCookieHandshake(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("xf_user")
		if err != nil || c.Value != "359935-token" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, "members only")
	}))
	defer server.Close()

	m := newTestManager(t, server.URL, func(o *Options) {
		o.Handshake = CookieHandshake{Required: []string{"xf_session", "xf_user"}}
	})
	creds := models.Credentials{
		Cookies: []models.Cookie{
			{Name: "xf_session", Value: "sess", Domain: ".forum.example"},
			{Name: "xf_user", Value: "359935-token"},
		},
		Headers: map[string]string{"X-Requested-With": "XMLHttpRequest"},
	}

	if _, err := m.Authenticate(context.Background(), creds); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	page, ok := m.Fetch(context.Background(), server.URL+"/threads/1")
	if !ok || string(page.HTML) != "members only" {
		t.Errorf("Expected authenticated fetch, got ok=%v body=%q", ok, page.HTML)
	}
}

func TestCookieHandshake_MissingCookie(t *testing.T) {
	m := newTestManager(t, "http://forum.invalid", func(o *Options) {
		o.Handshake = CookieHandshake{Required: []string{"xf_user"}}
	})
	_, err := m.Authenticate(context.Background(), models.Credentials{
		Cookies: []models.Cookie{{Name: "xf_session", Value: "sess"}},
	})
	if !errors.Is(err, engine.ErrAuthentication) {
		t.Errorf("Expected ErrAuthentication, got %v", err)
	}
}

func TestEvalClientID(t *testing.T) {
	tests := []struct {
		name    string
		script  string
		expr    string
		want    string
		wantErr bool
	}{
		{"global var", `var cid = "abc";`, "cid", "abc", false},
		{"window property", `window.cfg = {id: 7};`, "cfg.id", "7", false},
		{"document access", `document.cookie = "x=1"; var id = "ok";`, "id", "ok", false},
		{"undefined", `var a = 1;`, "window.missing", "", true},
		{"syntax error", `var = ;`, "a", "", true},
		{"empty", `var id = "  ";`, "id", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvalClientID(tt.script, tt.expr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("EvalClientID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("EvalClientID() = %q, want %q", got, tt.want)
			}
		})
	}
}
