// Package fx converts amounts between currencies using a
// frankfurter-compatible exchange-rate API.
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cardscan/internal/services"
)

type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// Client performs live exchange-rate lookups.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs an FX client.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
	}
}

// Convert turns amount from one currency into another, returning the
// converted value and the effective rate. Same-currency conversions are a
// no-op at rate 1.
func (c *Client) Convert(ctx context.Context, amount float64, from, to string) (float64, float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == "" || to == "" {
		return 0, 0, services.Wrap(services.ErrValidation, "pricing", "convert currency", "currency codes required", nil)
	}
	if from == to {
		return amount, 1, nil
	}
	if c.baseURL == "" {
		return 0, 0, services.Wrap(services.ErrTransient, "pricing", "convert currency", "no fx source configured", nil)
	}

	params := url.Values{}
	params.Set("amount", fmt.Sprintf("%g", amount))
	params.Set("from", from)
	params.Set("to", to)
	endpoint := c.baseURL + "/latest?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, services.Wrap(services.ErrTransient, "pricing", "convert currency", "http error", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, services.Wrap(services.ErrTransient, "pricing", "convert currency", resp.Status, nil)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, services.Wrap(services.ErrTransient, "pricing", "convert currency", "read body", err)
	}

	var parsed ratesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, 0, services.Wrap(services.ErrUnparsable, "pricing", "convert currency", "decode response", err)
	}
	converted, ok := parsed.Rates[to]
	if !ok {
		return 0, 0, services.Wrap(services.ErrUnparsable, "pricing", "convert currency", "target currency missing from response", nil)
	}
	rate := float64(1)
	if amount != 0 {
		rate = converted / amount
	}
	return converted, rate, nil
}
