// Package llm talks to chat-style language models used as sentiment
// classifiers: a local Ollama server, the OpenAI API or Gemini.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/TobiSchelling/hypetrack/internal/logging"
)

// ErrNotConfigured is returned when no provider can be reached.
var ErrNotConfigured = errors.New("no LLM provider available")

// Provider turns a prompt into a model reply.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
	Name() string
}

// Options selects and configures a provider.
type Options struct {
	Provider    string // ollama | openai | gemini
	Model       string
	OllamaURL   string
	OpenAIModel string
	APIKeyEnv   string
	Timeout     time.Duration
}

// OllamaProvider chats with a model served by a local Ollama.
type OllamaProvider struct {
	Model   string
	BaseURL string
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(model, baseURL string, timeout time.Duration) *OllamaProvider {
	return &OllamaProvider{
		Model:   model,
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: orDefault(timeout)},
	}
}

func (o *OllamaProvider) Name() string { return "ollama/" + o.Model }

// IsConfigured reports whether the server answers and has pulled a model
// whose base name matches Model.
func (o *OllamaProvider) IsConfigured() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := doJSON(ctx, o.client, http.MethodGet, o.BaseURL+"/api/tags", "", nil, &tags); err != nil {
		return false
	}

	base, _, _ := strings.Cut(o.Model, ":")
	for _, m := range tags.Models {
		if strings.HasPrefix(m.Name, base) {
			return true
		}
	}
	return false
}

// Generate sends a prompt to Ollama and returns the response. Ollama is
// asked for JSON output at temperature 0.
func (o *OllamaProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"num_predict": maxTokens,
			"temperature": 0,
		},
	}

	var result struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	if err := doJSON(ctx, o.client, http.MethodPost, o.BaseURL+"/api/chat", "", body, &result); err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	return result.Message.Content, nil
}

// OpenAIProvider uses the OpenAI chat completions API. BaseURL can point at
// any compatible server.
type OpenAIProvider struct {
	Model   string
	APIKey  string
	BaseURL string
	client  *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(model, apiKeyEnv string, timeout time.Duration) *OpenAIProvider {
	return &OpenAIProvider{
		Model:   model,
		APIKey:  os.Getenv(apiKeyEnv),
		BaseURL: "https://api.openai.com/v1",
		client:  &http.Client{Timeout: orDefault(timeout)},
	}
}

func (o *OpenAIProvider) Name() string { return "openai/" + o.Model }

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.APIKey != ""
}

// Generate sends a prompt to OpenAI and returns the response.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if o.APIKey == "" {
		return "", fmt.Errorf("openai: %w", ErrNotConfigured)
	}

	body := map[string]any{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":      maxTokens,
		"temperature":     0,
		"response_format": map[string]string{"type": "json_object"},
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := doJSON(ctx, o.client, http.MethodPost, o.BaseURL+"/chat/completions", o.APIKey, body, &result); err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("openai: empty choices")
	}
	return result.Choices[0].Message.Content, nil
}

// doJSON sends body, if any, as JSON and decodes a 200 response into out.
func doJSON(ctx context.Context, client *http.Client, method, url, bearer string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, url, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func orDefault(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 120 * time.Second
	}
	return timeout
}

// CreateProvider creates an LLM provider based on configuration. An
// unreachable Ollama falls back to OpenAI.
func CreateProvider(ctx context.Context, opts Options, logger *zap.Logger) (Provider, error) {
	logger = logging.OrNop(logger).Named("llm")

	switch strings.ToLower(opts.Provider) {
	case "gemini":
		p, err := NewGeminiProvider(ctx, opts.Model, opts.APIKeyEnv)
		if err != nil {
			return nil, err
		}
		logger.Info("Using Gemini", zap.String("model", p.Model))
		return p, nil
	case "ollama":
		p := NewOllamaProvider(opts.Model, opts.OllamaURL, opts.Timeout)
		if p.IsConfigured() {
			logger.Info("Using Ollama", zap.String("model", opts.Model))
			return p, nil
		}
		logger.Warn("Ollama not available, trying OpenAI fallback", zap.String("url", opts.OllamaURL))
	}

	p := NewOpenAIProvider(opts.OpenAIModel, opts.APIKeyEnv, opts.Timeout)
	if p.IsConfigured() {
		logger.Info("Using OpenAI", zap.String("model", opts.OpenAIModel))
		return p, nil
	}

	return nil, fmt.Errorf("%w: check Ollama is running or set %s", ErrNotConfigured, opts.APIKeyEnv)
}
