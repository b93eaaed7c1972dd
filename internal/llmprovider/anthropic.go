package llmprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/worldline-go/klient"
)

// DefaultBaseURL is Anthropic's public API endpoint, used when Anthropic is
// constructed with an empty baseURL.
const DefaultBaseURL = "https://api.anthropic.com"

// Anthropic is a Provider backed by the Anthropic Messages API. It speaks a
// single non-streaming request per Chat call, since LLM blocks only need a
// blocking prompt-in/text-out round trip.
type Anthropic struct {
	APIKey string
	Model  string

	client *klient.Client
}

type anthropicResponse struct {
	Type       string         `json:"type"`
	Error      anthropicError `json:"error"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// NewAnthropic builds an Anthropic provider. baseURL, proxy and
// insecureSkipVerify may be left at their zero values for the common case.
func NewAnthropic(apiKey, model, baseURL, proxy string, insecureSkipVerify bool) (*Anthropic, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	opts := []klient.OptionClientFn{
		klient.WithBaseURL(baseURL),
		klient.WithLogger(slog.Default()),
		klient.WithHeaderSet(http.Header{
			"X-Api-Key":         []string{apiKey},
			"Anthropic-Version": []string{"2023-06-01"},
			"Content-Type":      []string{"application/json"},
		}),
	}
	if proxy != "" {
		opts = append(opts, klient.WithProxy(proxy))
	}
	if insecureSkipVerify {
		opts = append(opts, klient.WithInsecureSkipVerify(true))
	}

	client, err := klient.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("llmprovider: build anthropic client: %w", err)
	}

	return &Anthropic{APIKey: apiKey, Model: model, client: client}, nil
}

// Chat sends prompt as a single user message and returns the concatenated
// text content blocks of the reply. model overrides a.Model when non-empty.
func (a *Anthropic) Chat(ctx context.Context, model string, prompt string) (string, error) {
	if model == "" {
		model = a.Model
	}

	reqBody := map[string]any{
		"model":      model,
		"max_tokens": 4096,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("llmprovider: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("llmprovider: build request: %w", err)
	}

	var result anthropicResponse
	if err := a.client.Do(req, func(r *http.Response) error {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &result); err != nil {
			return fmt.Errorf("decode response: %w (body: %s)", err, string(body))
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("llmprovider: anthropic request failed: %w", err)
	}

	if result.Type == "error" {
		return "", fmt.Errorf("llmprovider: anthropic error: %s", result.Error.Message)
	}

	var text string
	for _, block := range result.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return text, nil
}
