package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// HuggingFace calls the hosted Inference API for a text-classification model.
type HuggingFace struct {
	URL    string
	Model  string
	token  string
	client *http.Client
}

// NewHuggingFace creates a backend for model at baseURL. The bearer token
// is read from tokenEnv and may be empty for public endpoints.
func NewHuggingFace(baseURL, model, tokenEnv string, timeout time.Duration) *HuggingFace {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HuggingFace{
		URL:    strings.TrimRight(baseURL, "/"),
		Model:  model,
		token:  os.Getenv(tokenEnv),
		client: &http.Client{Timeout: timeout},
	}
}

type hfScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

func (h *HuggingFace) Predict(ctx context.Context, text string) (Prediction, error) {
	body, err := json.Marshal(map[string]any{
		"inputs":  text,
		"options": map[string]bool{"wait_for_model": true},
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", h.URL+"/"+h.Model, bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("huggingface API error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Prediction{}, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Prediction{}, fmt.Errorf("huggingface API returned %d: %s", resp.StatusCode, truncateBody(data))
	}

	scores, err := decodeScores(data)
	if err != nil {
		return Prediction{}, err
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return Prediction{Label: Label(best.Label), Confidence: best.Score}, nil
}

// decodeScores accepts both the nested [[...]] shape the API returns for a
// single input and a flat list.
func decodeScores(data []byte) ([]hfScore, error) {
	var nested [][]hfScore
	if err := json.Unmarshal(data, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return nested[0], nil
	}
	var flat []hfScore
	if err := json.Unmarshal(data, &flat); err == nil && len(flat) > 0 {
		return flat, nil
	}
	return nil, fmt.Errorf("unexpected huggingface response: %s", truncateBody(data))
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

func (h *HuggingFace) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
