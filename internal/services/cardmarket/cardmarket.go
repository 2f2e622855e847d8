// Package cardmarket queries an external market-price search endpoint and
// returns typed price candidates for scoring by the pricing resolver.
package cardmarket

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cardscan/internal/services"
)

// PriceStats carries the per-candidate price statistics, in the candidate's
// native currency. Zero values mean the statistic is unavailable.
type PriceStats struct {
	Avg30          float64 `json:"avg30"`
	Avg7           float64 `json:"avg7"`
	Trend          float64 `json:"trend"`
	LowestNearMint float64 `json:"lowest_near_mint"`
	Sell           float64 `json:"sell"`
	Average        float64 `json:"average"`
}

// Candidate is one ranked search result.
type Candidate struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Number   string     `json:"number"`
	SetName  string     `json:"set_name"`
	Currency string     `json:"currency"`
	Stats    PriceStats `json:"prices"`
}

type searchResponse struct {
	Results []Candidate `json:"results"`
}

// Client performs price searches.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a price-search client. An empty baseURL leaves the
// source unconfigured; searches then fail as unreachable.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// Search looks up candidates by card name and optional catalog number.
func (c *Client) Search(ctx context.Context, name, number string) ([]Candidate, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrTransient, "pricing", "search", "no pricing source configured", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "pricing", "search", "empty name", nil)
	}

	params := url.Values{}
	params.Set("name", name)
	if number = strings.TrimSpace(number); number != "" {
		params.Set("number", number)
	}
	endpoint := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pricing", "search", "http error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrTransient, "pricing", "search", resp.Status, nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "pricing", "search", "read body", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, services.Wrap(services.ErrUnparsable, "pricing", "search", "decode response", err)
	}
	return parsed.Results, nil
}
