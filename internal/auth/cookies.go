// internal/auth/cookies.go
package auth

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/law-makers/forumgrep/pkg/models"
)

// NewCredentials builds cookie credentials for site. They expire with the
// earliest-expiring persistent cookie.
func NewCredentials(site string, cookies []models.Cookie, headers map[string]string) models.Credentials {
	creds := models.Credentials{
		Site:      site,
		Cookies:   cookies,
		Headers:   headers,
		CreatedAt: time.Now(),
	}

	minExpires := 0.0
	for _, c := range cookies {
		if c.Expires > 0 && (minExpires == 0 || c.Expires < minExpires) {
			minExpires = c.Expires
		}
	}
	if minExpires > 0 {
		creds.ExpiresAt = time.Unix(int64(minExpires), 0)
	}
	return creds
}

// ParseCookiesJSON reads the cookie array exported by browser devtools or
// cookie editor extensions. Both "expires" and "expirationDate" are accepted.
func ParseCookiesJSON(r io.Reader) ([]models.Cookie, error) {
	var raw []struct {
		models.Cookie
		ExpirationDate float64 `json:"expirationDate"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	cookies := make([]models.Cookie, 0, len(raw))
	for _, c := range raw {
		if c.Name == "" {
			continue
		}
		cookie := c.Cookie
		if cookie.Expires <= 0 && c.ExpirationDate > 0 {
			cookie.Expires = c.ExpirationDate
		}
		cookies = append(cookies, cookie)
	}
	return cookies, nil
}

// ParseNetscape reads a Netscape/curl cookies.txt file.
func ParseNetscape(r io.Reader) ([]models.Cookie, error) {
	var cookies []models.Cookie
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		httpOnly := false
		if rest, ok := strings.CutPrefix(line, "#HttpOnly_"); ok {
			line, httpOnly = rest, true
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			fields = strings.Fields(line)
		}
		if len(fields) < 7 {
			continue
		}

		cookie := models.Cookie{
			Domain:   fields[0],
			Path:     fields[2],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			Name:     fields[5],
			Value:    fields[6],
			HTTPOnly: httpOnly,
		}
		if expiry, err := strconv.ParseInt(fields[4], 10, 64); err == nil && expiry > 0 {
			cookie.Expires = float64(expiry)
		}
		cookies = append(cookies, cookie)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cookies, nil
}
