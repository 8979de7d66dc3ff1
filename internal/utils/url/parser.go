package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL performs comprehensive URL validation
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: must be http or https, got %s", parsed.Scheme)
	}

	if parsed.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}

	return nil
}

// ResolveURL resolves a possibly-relative href against a base URL and returns a string
func ResolveURL(base, href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return u.String()
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(u).String()
}

// ResolveAll resolves hrefs against base, dropping fragments and duplicates.
// Order of first occurrence is kept.
func ResolveAll(base string, hrefs []string) []string {
	seen := make(map[string]bool, len(hrefs))
	out := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		abs := ResolveURL(base, href)
		if i := strings.IndexByte(abs, '#'); i >= 0 {
			abs = abs[:i]
		}
		if abs == "" || seen[abs] {
			continue
		}
		seen[abs] = true
		out = append(out, abs)
	}
	return out
}

// HasSegment reports whether segment is one of the path segments of rawURL.
func HasSegment(rawURL, segment string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(rawURL, "/"+segment+"/")
	}
	for _, s := range strings.Split(u.Path, "/") {
		if s == segment {
			return true
		}
	}
	return false
}

// UnwrapRedirect returns the target of a search engine redirect link such as
// "/url?q=https://site/page&sa=U". Other links are returned unchanged.
func UnwrapRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.Path != "/url" {
		return href
	}
	for _, key := range []string{"q", "url"} {
		if target := u.Query().Get(key); target != "" {
			return target
		}
	}
	return href
}
