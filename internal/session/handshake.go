package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/law-makers/forumgrep/internal/engine"
	"github.com/law-makers/forumgrep/pkg/models"
	"github.com/rs/zerolog/log"
)

// Handshake turns credentials into an authenticated State. Implementations
// may be rerun from the start after a transport failure.
type Handshake interface {
	Name() string
	Run(ctx context.Context, m *Manager, creds models.Credentials) (State, error)
}

// CookieHandshake installs an already obtained cookie set, e.g. one captured
// from a browser, and checks that the cookies the forum needs are there.
type CookieHandshake struct {
	Required []string
}

func (h CookieHandshake) Name() string { return "cookies" }

func (h CookieHandshake) Run(ctx context.Context, m *Manager, creds models.Credentials) (State, error) {
	cookies := make([]*http.Cookie, 0, len(creds.Cookies))
	for _, c := range creds.Cookies {
		hc := c.HTTPCookie()
		// Host-only for the forum root, whatever domain the capture recorded
		hc.Domain = ""
		cookies = append(cookies, hc)
	}
	m.setCookies(cookies)

	state := State{Cookies: creds.CookieMap(), Headers: http.Header{}}
	if missing := state.Missing(h.Required...); len(missing) > 0 {
		return State{}, engine.AuthenticationFailed("cookies", strings.Join(missing, ","))
	}
	return state, nil
}

// LoginHandshake logs in with a username and password in three steps:
//
//  1. fetch the bootstrap script and evaluate ClientIDExpr in a JS VM to get
//     the client identifier the login form must carry;
//  2. post the login form, which must set SessionCookie;
//  3. post it again with remember=1, which must set UserCookie.
type LoginHandshake struct {
	ScriptPath    string
	ClientIDExpr  string
	ClientIDField string
	LoginPath     string
	SessionCookie string
	UserCookie    string
}

func (h LoginHandshake) Name() string { return "login" }

func (h LoginHandshake) Run(ctx context.Context, m *Manager, creds models.Credentials) (State, error) {
	if !creds.HasLogin() {
		return State{}, engine.AuthenticationFailed("credentials", "username/password")
	}

	clientID, err := h.clientID(ctx, m)
	if err != nil {
		return State{}, err
	}

	form := url.Values{}
	form.Set("login", creds.Username)
	form.Set("password", creds.Password)
	form.Set(h.ClientIDField, clientID)

	if err := h.post(ctx, m, form, "login", h.SessionCookie); err != nil {
		return State{}, err
	}

	form.Set("remember", "1")
	if err := h.post(ctx, m, form, "remember", h.UserCookie); err != nil {
		return State{}, err
	}

	return State{Cookies: m.cookies(), Headers: http.Header{}}, nil
}

func (h LoginHandshake) clientID(ctx context.Context, m *Manager) (string, error) {
	scriptURL := m.resolve(h.ScriptPath)

	resp, err := m.do(m.proxied(ctx), http.MethodGet, scriptURL, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", engine.ServerDown(scriptURL, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", engine.AuthenticationFailed("bootstrap", fmt.Sprintf("script (HTTP %d)", resp.StatusCode))
	}

	script, err := readBody(resp)
	if err != nil {
		return "", err
	}

	id, err := EvalClientID(string(script), h.ClientIDExpr)
	if err != nil {
		log.Debug().Err(err).Str("url", scriptURL).Msg("Bootstrap script evaluation failed")
		return "", engine.AuthenticationFailed("bootstrap", h.ClientIDExpr)
	}
	return id, nil
}

func (h LoginHandshake) post(ctx context.Context, m *Manager, form url.Values, step, cookie string) error {
	loginURL := m.resolve(h.LoginPath)

	resp, err := m.do(m.proxied(ctx), http.MethodPost, loginURL, strings.NewReader(form.Encode()),
		WithHeader("Content-Type", "application/x-www-form-urlencoded"))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return engine.ServerDown(loginURL, resp.StatusCode)
	}
	if m.cookies()[cookie] == "" {
		return engine.AuthenticationFailed(step, cookie)
	}

	log.Debug().Str("step", step).Str("cookie", cookie).Msg("Handshake step complete")
	return nil
}

// scriptTimeout bounds bootstrap script evaluation.
const scriptTimeout = 5 * time.Second

// EvalClientID runs script in a fresh VM with a minimal browser-like global
// scope and returns the string value of expr.
func EvalClientID(script, expr string) (string, error) {
	vm := goja.New()

	timer := time.AfterFunc(scriptTimeout, func() {
		vm.Interrupt("bootstrap script timed out")
	})
	defer timer.Stop()

	global := vm.GlobalObject()
	if err := vm.Set("window", global); err != nil {
		return "", err
	}
	if err := vm.Set("self", global); err != nil {
		return "", err
	}
	document := vm.NewObject()
	_ = document.Set("cookie", "")
	if err := vm.Set("document", document); err != nil {
		return "", err
	}

	if _, err := vm.RunString(script); err != nil {
		return "", fmt.Errorf("run bootstrap script: %w", err)
	}

	v, err := vm.RunString(expr)
	if err != nil {
		return "", fmt.Errorf("evaluate %q: %w", expr, err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", fmt.Errorf("%q is undefined", expr)
	}

	id := strings.TrimSpace(v.String())
	if id == "" {
		return "", fmt.Errorf("%q is empty", expr)
	}
	return id, nil
}
