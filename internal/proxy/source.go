package proxy

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ListSource downloads a plain-text proxy list, one endpoint per line.
// Blank lines and lines starting with '#' are ignored. Limit caps the number
// of endpoints kept, 0 keeps all of them.
type ListSource struct {
	URL    string
	Client *http.Client
	Limit  int
}

// Proxies fetches and parses the list
func (s ListSource) Proxies(ctx context.Context) ([]string, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch proxy list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("proxy list %s answered %d", s.URL, resp.StatusCode)
	}

	return parseList(resp.Body, s.Limit)
}

func parseList(r io.Reader, limit int) ([]string, error) {
	var proxies []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		proxies = append(proxies, line)
		if limit > 0 && len(proxies) >= limit {
			break
		}
	}
	return proxies, scanner.Err()
}

// Chain concatenates several sources. A failing source fails the whole
// refresh so the pool keeps its previous list.
type Chain []Source

// Proxies returns every source's endpoints in order
func (c Chain) Proxies(ctx context.Context) ([]string, error) {
	var all []string
	for _, src := range c {
		proxies, err := src.Proxies(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, proxies...)
	}
	return all, nil
}
