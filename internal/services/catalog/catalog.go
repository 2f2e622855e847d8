// Package catalog queries an external card-catalog text search and mines
// the response for catalog-number tokens. The brittle text parsing lives
// here so number resolution logic can be tested against a typed port.
package catalog

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"cardscan/internal/services"
)

// numberToken matches printed catalog numbers like 025/025 or 134/109.
var numberToken = regexp.MustCompile(`\b\d{1,3}/\d{2,3}\b`)

// Client performs catalog searches against a text-search endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a catalog client. An empty baseURL leaves the source
// unconfigured; searches then fail as unreachable.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// SearchNumbers runs a text search and returns every distinct
// catalog-number token found in the response, in order of appearance.
func (c *Client) SearchNumbers(ctx context.Context, query string) ([]string, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrTransient, "verify-number", "catalog search", "no catalog source configured", nil)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "verify-number", "catalog search", "empty query", nil)
	}

	endpoint := c.baseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "verify-number", "catalog search", "http error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "verify-number", "catalog search", resp.Status, nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "verify-number", "catalog search", "read body", err)
	}
	return MineNumbers(string(body)), nil
}

// MineNumbers extracts deduplicated catalog-number tokens from free text.
func MineNumbers(text string) []string {
	tokens := numberToken.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}
