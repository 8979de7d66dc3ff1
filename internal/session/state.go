package session

import (
	"maps"
	"net/http"
	"sort"
)

// State is what authentication leaves behind: cookie values by name and the
// headers sent with every request. It is written once by Authenticate and
// only read afterwards.
type State struct {
	Cookies map[string]string
	Headers http.Header
}

// Clone returns a deep copy safe to hand to callers.
func (s State) Clone() State {
	out := State{
		Cookies: maps.Clone(s.Cookies),
		Headers: s.Headers.Clone(),
	}
	if out.Cookies == nil {
		out.Cookies = map[string]string{}
	}
	if out.Headers == nil {
		out.Headers = http.Header{}
	}
	return out
}

// Missing returns the named cookies that are absent or empty.
func (s State) Missing(names ...string) []string {
	var missing []string
	for _, name := range names {
		if s.Cookies[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// CookieNames lists cookie names in sorted order, for logging without values.
func (s State) CookieNames() []string {
	names := make([]string, 0, len(s.Cookies))
	for name := range s.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
