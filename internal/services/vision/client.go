package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cardscan/internal/services"
)

const defaultHTTPTimeout = 60 * time.Second

// Config captures the runtime settings required to talk to the model
// provider.
type Config struct {
	APIKey         string
	BaseURL        string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client wraps the chat-completions API for multimodal extraction calls.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a vision client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = "https://openrouter.ai/api/v1/chat/completions"
	}
	return client
}

// Usage reports the token counts of one completed call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Extraction is the structured record the model returns for a full card
// identification.
type Extraction struct {
	Language       string   `json:"language"`
	Name           string   `json:"name"`
	NameEnglish    string   `json:"name_english"`
	SetName        string   `json:"set_name"`
	SetNameEnglish string   `json:"set_name_english"`
	CardNumber     string   `json:"card_number"`
	Rarity         string   `json:"rarity"`
	Confidence     int      `json:"confidence"`
	Alternatives   []string `json:"alternatives"`
	Reasoning      string   `json:"reasoning"`
}

// NumberReading is the focused response for a catalog-number crop re-query.
type NumberReading struct {
	Number     string `json:"card_number"`
	Confidence int    `json:"confidence"`
}

// ExtractCard sends the image with the full extraction prompt and parses the
// structured identification.
func (c *Client) ExtractCard(ctx context.Context, model string, imageJPEG []byte, languageHint string) (Extraction, Usage, error) {
	var empty Extraction
	content, usage, err := c.complete(ctx, model, extractionPrompt(languageHint), imageJPEG, "extract card")
	if err != nil {
		return empty, usage, err
	}
	var parsed Extraction
	if err := decodeModelJSON(content, &parsed); err != nil {
		return empty, usage, services.Wrap(services.ErrUnparsable, "identify", "extract card", "", err)
	}
	parsed.Confidence = clampConfidence(parsed.Confidence)
	if len(parsed.Alternatives) > 3 {
		parsed.Alternatives = parsed.Alternatives[:3]
	}
	return parsed, usage, nil
}

// ReadSetNumber sends a bottom-band crop with a narrow prompt asking only
// for the printed catalog number.
func (c *Client) ReadSetNumber(ctx context.Context, model string, cropJPEG []byte) (NumberReading, Usage, error) {
	var empty NumberReading
	content, usage, err := c.complete(ctx, model, numberPrompt, cropJPEG, "read set number")
	if err != nil {
		return empty, usage, err
	}
	var parsed NumberReading
	if err := decodeModelJSON(content, &parsed); err != nil {
		return empty, usage, services.Wrap(services.ErrUnparsable, "verify-number", "read set number", "", err)
	}
	parsed.Confidence = clampConfidence(parsed.Confidence)
	parsed.Number = strings.TrimSpace(parsed.Number)
	return parsed, usage, nil
}

func clampConfidence(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, model, prompt string, imageJPEG []byte, op string) (string, Usage, error) {
	var usage Usage
	if c.cfg.APIKey == "" {
		return "", usage, services.Wrap(services.ErrValidation, "identify", op, "api key required", nil)
	}
	if model = strings.TrimSpace(model); model == "" {
		return "", usage, services.Wrap(services.ErrValidation, "identify", op, "model required", nil)
	}
	if len(imageJPEG) == 0 {
		return "", usage, services.Wrap(services.ErrValidation, "identify", op, "image required", nil)
	}

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(imageJPEG)
	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
				},
			},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", usage, fmt.Errorf("%s: encode body: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", usage, fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", usage, services.Wrap(services.ErrTransient, "identify", op, "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", usage, services.Wrap(services.ErrTransient, "identify", op, "read body", err)
	}

	if err := classifyStatus(resp.StatusCode, body, op); err != nil {
		return "", usage, err
	}

	var completion chatResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", usage, services.Wrap(services.ErrUnparsable, "identify", op, "decode response", err)
	}
	usage = completion.Usage
	if completion.Error != nil {
		return "", usage, fmt.Errorf("%s: api error: %s", op, strings.TrimSpace(completion.Error.Message))
	}
	for _, choice := range completion.Choices {
		if content := strings.TrimSpace(choice.Message.Content); content != "" {
			return content, usage, nil
		}
	}
	return "", usage, services.Wrap(services.ErrUnparsable, "identify", op, "empty completion content", nil)
}

// classifyStatus maps provider HTTP statuses onto the error taxonomy:
// 402 means billing/credit exhaustion, 429 and server errors are retryable.
func classifyStatus(status int, body []byte, op string) error {
	if status < http.StatusMultipleChoices {
		return nil
	}
	snippet := summarizeSnippet(string(body))
	switch {
	case status == http.StatusPaymentRequired:
		return services.Wrap(services.ErrQuota, "identify", op, snippet, nil)
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, "identify", op, fmt.Sprintf("http %d: %s", status, snippet), nil)
	default:
		return fmt.Errorf("%s: http %d: %s", op, status, snippet)
	}
}

// decodeModelJSON decodes JSON from a model response, tolerating code fences
// and leading prose.
func decodeModelJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}
	sanitized := stripToJSONObject(trimmed)
	if sanitized == "" {
		return fmt.Errorf("no JSON object in payload: %s", summarizeSnippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (payload snippet: %s)", err, summarizeSnippet(sanitized))
	}
	return nil
}

func stripToJSONObject(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		body := strings.TrimPrefix(trimmed, "```")
		body = strings.TrimLeft(body, " \t\r\n")
		if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
			body = strings.TrimLeft(body[4:], " \t\r\n")
		}
		if idx := strings.LastIndex(body, "```"); idx >= 0 {
			body = body[:idx]
		}
		trimmed = strings.TrimSpace(body)
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return ""
}

func summarizeSnippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	if clean == "" {
		return "<empty>"
	}
	return clean
}
