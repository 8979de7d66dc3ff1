package headers

import (
	"errors"
	"fmt"
	"net/textproto"
	"strings"
)

// Parse converts "Name: value" arguments into a map keyed by canonical
// header name. Malformed entries are all reported, not just the first.
func Parse(h []string) (map[string]string, error) {
	m := make(map[string]string, len(h))
	var errs []error
	for _, hdr := range h {
		name, value, ok := strings.Cut(hdr, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.ContainsAny(name, " \t") {
			errs = append(errs, fmt.Errorf("invalid header %q, expected \"Name: value\"", hdr))
			continue
		}
		m[textproto.CanonicalMIMEHeaderKey(name)] = strings.TrimSpace(value)
	}
	return m, errors.Join(errs...)
}
