package models

import (
	"net/http"
	"time"
)

// Cookie is a stored browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// HTTPCookie converts c for use with a cookie jar.
func (c Cookie) HTTPCookie() *http.Cookie {
	hc := &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HttpOnly: c.HTTPOnly,
		Secure:   c.Secure,
	}
	if hc.Path == "" {
		hc.Path = "/"
	}
	if c.Expires > 0 {
		hc.Expires = time.Unix(int64(c.Expires), 0)
	}
	return hc
}

// Credentials authenticate a session against one site. Either a username and
// password for the login handshake, or a captured cookie set, or both.
type Credentials struct {
	Site      string            `json:"site"`
	Username  string            `json:"username,omitempty"`
	Password  string            `json:"password,omitempty"`
	Cookies   []Cookie          `json:"cookies,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at,omitempty"`
}

// HasLogin reports whether the credentials can drive a login handshake.
func (c Credentials) HasLogin() bool {
	return c.Username != "" && c.Password != ""
}

// Expired reports whether the stored cookies are past their expiry.
func (c Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// CookieMap returns the cookies keyed by name.
func (c Credentials) CookieMap() map[string]string {
	m := make(map[string]string, len(c.Cookies))
	for _, ck := range c.Cookies {
		m[ck.Name] = ck.Value
	}
	return m
}
