package sentiment

import (
	"context"
	"fmt"
	"io"

	"github.com/TobiSchelling/hypetrack/internal/llm"
)

const classifyPrompt = `You are a sentiment classifier for YouTube comments on TV series trailers.
Classify the overall sentiment of the comment below as POSITIVE or NEGATIVE.
Excitement, hype and anticipation are POSITIVE. Complaints, boredom and disappointment are NEGATIVE.

Comment:
"""
%s
"""

Respond with JSON only: {"label": "POSITIVE" or "NEGATIVE", "confidence": number between 0 and 1}`

// Prompted classifies by asking a chat model and parsing its JSON reply.
type Prompted struct {
	provider llm.Provider
}

// NewPrompted wraps an LLM provider as a backend.
func NewPrompted(provider llm.Provider) *Prompted {
	return &Prompted{provider: provider}
}

func (p *Prompted) Predict(ctx context.Context, text string) (Prediction, error) {
	reply, err := p.provider.Generate(ctx, fmt.Sprintf(classifyPrompt, text), 50)
	if err != nil {
		return Prediction{}, err
	}

	result, err := llm.ParseJSONResponse(reply)
	if err != nil {
		return Prediction{}, err
	}

	label, ok := result["label"].(string)
	if !ok {
		return Prediction{}, fmt.Errorf("%s reply has no label: %v", p.provider.Name(), result)
	}
	conf, _ := result["confidence"].(float64)
	return Prediction{Label: Label(label), Confidence: conf}, nil
}

func (p *Prompted) Close() error {
	if c, ok := p.provider.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
