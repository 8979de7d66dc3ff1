package app

import (
	"context"
	"fmt"
	"time"

	"github.com/law-makers/forumgrep/pkg/models"
)

// Login runs the site's handshake with creds and returns credentials that
// carry the resulting session cookies, ready to store. Username/password
// credentials need a site with a configured login handshake; cookie-only
// credentials are checked against the site's required cookies.
func (a *Application) Login(ctx context.Context, name string, creds models.Credentials) (models.Credentials, error) {
	name, site, err := a.Config.Site(name)
	if err != nil {
		return models.Credentials{}, err
	}
	if creds.HasLogin() && !site.Login.Enabled() {
		return models.Credentials{}, fmt.Errorf("site %s has no login handshake configured (set sites.%s.login in the config file, or use --browser)", name, name)
	}

	sess, err := a.NewSession(site, creds)
	if err != nil {
		return models.Credentials{}, err
	}

	state, err := sess.Authenticate(ctx, creds)
	if err != nil {
		return models.Credentials{}, err
	}

	base := sess.BaseURL()
	out := creds
	out.Site = name
	out.CreatedAt = time.Now()
	out.Cookies = nil

	// Keep the attributes of cookies that were supplied
	supplied := make(map[string]models.Cookie, len(creds.Cookies))
	for _, c := range creds.Cookies {
		supplied[c.Name] = c
	}
	for _, cookieName := range state.CookieNames() {
		c, ok := supplied[cookieName]
		if !ok {
			c = models.Cookie{
				Name:     cookieName,
				Domain:   base.Hostname(),
				Path:     "/",
				Secure:   base.Scheme == "https",
				HTTPOnly: true,
			}
		}
		c.Value = state.Cookies[cookieName]
		out.Cookies = append(out.Cookies, c)
	}

	a.Logger.Info().
		Str("site", name).
		Strs("cookies", state.CookieNames()).
		Msg("Login succeeded")
	return out, nil
}
