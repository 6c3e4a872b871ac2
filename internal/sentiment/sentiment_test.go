package sentiment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/TobiSchelling/hypetrack/internal/config"
)

// mockBackend returns label for every text and records what it saw.
type mockBackend struct {
	label  Label
	err    error
	seen   []string
	closed bool
}

func (m *mockBackend) Predict(_ context.Context, text string) (Prediction, error) {
	m.seen = append(m.seen, text)
	if m.err != nil {
		return Prediction{}, m.err
	}
	return Prediction{Label: m.label, Confidence: 0.99}, nil
}

func (m *mockBackend) Close() error {
	m.closed = true
	return nil
}

func openService(t *testing.T, b Backend, maxRunes int) *Service {
	t.Helper()
	s := NewService(func(context.Context) (Backend, error) { return b, nil }, maxRunes, nil)
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestParseLabel(t *testing.T) {
	cases := map[string]Label{
		"POSITIVE":   Positive,
		" negative ": Negative,
		"Positive\t": Positive,
	}
	for in, want := range cases {
		got, err := ParseLabel(in)
		if err != nil || got != want {
			t.Errorf("ParseLabel(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "Neutral", "pos", "POSITIVE!"} {
		if _, err := ParseLabel(bad); !errors.Is(err, ErrUnknownLabel) {
			t.Errorf("ParseLabel(%q): expected ErrUnknownLabel, got %v", bad, err)
		}
	}
}

func TestClassifySuccess(t *testing.T) {
	s := openService(t, &mockBackend{label: "positive"}, 512)
	out := s.Classify(context.Background(), "I love this trailer so much!")
	if !out.OK() || out.Prediction.Label != Positive {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestClassifyMalformedInput(t *testing.T) {
	b := &mockBackend{label: Positive}
	s := openService(t, b, 512)
	for _, text := range []string{"", "   \n\t", "bad \xff bytes"} {
		out := s.Classify(context.Background(), text)
		if out.Reason != ReasonMalformedInput {
			t.Errorf("Classify(%q) = %+v, want malformed_input", text, out)
		}
	}
	if len(b.seen) != 0 {
		t.Error("backend should not see malformed input")
	}
}

func TestClassifyBackendError(t *testing.T) {
	boom := errors.New("inference failed")
	s := openService(t, &mockBackend{err: boom}, 512)
	out := s.Classify(context.Background(), "some text")
	if out.Reason != ReasonClassifierError || !errors.Is(out.Err, boom) {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestClassifyRejectsThirdLabel(t *testing.T) {
	s := openService(t, &mockBackend{label: "NEUTRAL"}, 512)
	out := s.Classify(context.Background(), "some text")
	if out.Reason != ReasonClassifierError || !errors.Is(out.Err, ErrUnknownLabel) {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

type panicBackend struct{}

func (panicBackend) Predict(context.Context, string) (Prediction, error) { panic("tensor mismatch") }
func (panicBackend) Close() error                                        { return nil }

func TestClassifyRecoversPanic(t *testing.T) {
	s := openService(t, panicBackend{}, 512)
	out := s.Classify(context.Background(), "some text")
	if out.Reason != ReasonClassifierError || out.Err == nil {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func TestClassifyTruncates(t *testing.T) {
	b := &mockBackend{label: Positive}
	s := openService(t, b, 5)
	s.Classify(context.Background(), "héllo wörld")
	if len(b.seen) != 1 || b.seen[0] != "héllo" {
		t.Errorf("expected truncated input, got %q", b.seen)
	}
}

func TestLifecycle(t *testing.T) {
	b := &mockBackend{label: Positive}
	opened := 0
	s := NewService(func(context.Context) (Backend, error) {
		opened++
		return b, nil
	}, 512, nil)

	if out := s.Classify(context.Background(), "before open"); out.Reason != ReasonClassifierError {
		t.Errorf("expected classifier_error before Open, got %+v", out)
	}

	s.Open(context.Background())
	s.Open(context.Background())
	if opened != 1 {
		t.Errorf("expected backend built once, got %d", opened)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !b.closed {
		t.Error("expected backend to be closed")
	}
	if out := s.Classify(context.Background(), "after close"); out.Reason != ReasonClassifierError {
		t.Errorf("expected classifier_error after Close, got %+v", out)
	}
	if err := s.Open(context.Background()); err == nil {
		t.Error("expected reopen to fail")
	}
}

func TestOpenFactoryError(t *testing.T) {
	boom := errors.New("no model")
	s := NewService(func(context.Context) (Backend, error) { return nil, boom }, 512, nil)
	if err := s.Open(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected factory error, got %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abc", 0); got != "abc" {
		t.Errorf("expected no truncation, got %q", got)
	}
	if got := Truncate("abc", 3); got != "abc" {
		t.Errorf("expected unchanged, got %q", got)
	}
	if got := Truncate("日本語テキスト", 3); got != "日本語" {
		t.Errorf("expected rune-safe cut, got %q", got)
	}
}

func TestHuggingFacePredict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/distilbert" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer hf-test" {
			t.Error("missing bearer token")
		}
		w.Write([]byte(`[[{"label":"NEGATIVE","score":0.1},{"label":"POSITIVE","score":0.9}]]`))
	}))
	defer srv.Close()

	t.Setenv("TEST_HF_TOKEN", "hf-test")
	h := NewHuggingFace(srv.URL+"/", "distilbert", "TEST_HF_TOKEN", time.Second)
	p, err := h.Predict(context.Background(), "great")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Label != Positive || p.Confidence != 0.9 {
		t.Errorf("unexpected prediction: %+v", p)
	}
}

func TestHuggingFaceFlatResponse(t *testing.T) {
	scores, err := decodeScores([]byte(`[{"label":"NEGATIVE","score":0.8}]`))
	if err != nil || len(scores) != 1 || scores[0].Label != "NEGATIVE" {
		t.Errorf("unexpected scores %+v err=%v", scores, err)
	}
	if _, err := decodeScores([]byte(`{"error":"Model is loading"}`)); err == nil {
		t.Error("expected error for error body")
	}
}

func TestHuggingFaceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer srv.Close()

	h := NewHuggingFace(srv.URL, "m", "", time.Second)
	if _, err := h.Predict(context.Background(), "great"); err == nil {
		t.Error("expected error for 503")
	}
}

type fakeProvider struct {
	reply string
}

func (f fakeProvider) Generate(context.Context, string, int) (string, error) { return f.reply, nil }
func (f fakeProvider) IsConfigured() bool                                    { return true }
func (f fakeProvider) Name() string                                          { return "fake" }

func TestPromptedPredict(t *testing.T) {
	p := NewPrompted(fakeProvider{reply: "```json\n{\"label\": \"negative\", \"confidence\": 0.7}\n```"})
	pred, err := p.Predict(context.Background(), "boring")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pred.Label != "negative" || pred.Confidence != 0.7 {
		t.Errorf("unexpected prediction: %+v", pred)
	}

	s := openService(t, p, 512)
	if out := s.Classify(context.Background(), "boring"); out.Prediction.Label != Negative {
		t.Errorf("expected normalized label, got %+v", out)
	}
}

func TestPromptedMissingLabel(t *testing.T) {
	p := NewPrompted(fakeProvider{reply: `{"sentiment": "good"}`})
	if _, err := p.Predict(context.Background(), "x"); err == nil {
		t.Error("expected error for reply without label")
	}
}

func TestBackendFactoryUnknownProvider(t *testing.T) {
	f := NewBackendFactory(config.Classifier{Provider: "bert-local"}, nil)
	if _, err := f(context.Background()); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestBackendFactoryHuggingFace(t *testing.T) {
	f := NewBackendFactory(config.Classifier{Provider: "huggingface", URL: "http://localhost", Model: "m"}, nil)
	b, err := f(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := b.(*HuggingFace); !ok {
		t.Errorf("expected *HuggingFace, got %T", b)
	}
}

func TestBackendFactoryOpenAIUsesModel(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	f := NewBackendFactory(config.Classifier{Provider: "openai", Model: "gpt-4o", APIKeyEnv: "TEST_OPENAI_KEY", OpenAIModel: "gpt-4o-mini"}, nil)
	b, err := f(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, ok := b.(*Prompted)
	if !ok {
		t.Fatalf("expected *Prompted, got %T", b)
	}
	if name := p.provider.Name(); name != "openai/gpt-4o" {
		t.Errorf("expected openai/gpt-4o, got %s", name)
	}
}
