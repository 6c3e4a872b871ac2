// Package sentiment provides the two-class sentiment classifier used by
// classification and validation. A Service is built once per process,
// opened before use and closed on shutdown; its backend does the actual
// inference.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/TobiSchelling/hypetrack/internal/logging"
)

// Label is a sentiment class.
type Label string

const (
	Positive Label = "POSITIVE"
	Negative Label = "NEGATIVE"
)

// Labels lists the classes in the order reports use.
var Labels = []Label{Positive, Negative}

// ErrUnknownLabel is returned by ParseLabel for values outside the two classes.
var ErrUnknownLabel = errors.New("unknown sentiment label")

// ParseLabel trims and uppercases s and accepts only POSITIVE or NEGATIVE.
func ParseLabel(s string) (Label, error) {
	switch l := Label(strings.ToUpper(strings.TrimSpace(s))); l {
	case Positive, Negative:
		return l, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLabel, s)
}

// Prediction is a backend's answer for one text.
type Prediction struct {
	Label      Label
	Confidence float64
}

// Reason explains why a text has no prediction.
type Reason string

const (
	ReasonMalformedInput  Reason = "malformed_input"
	ReasonClassifierError Reason = "classifier_error"
)

// Outcome is the result of classifying one text. Reason is empty on success.
type Outcome struct {
	Prediction Prediction
	Reason     Reason
	Err        error
}

// OK reports whether the outcome carries a prediction.
func (o Outcome) OK() bool { return o.Reason == "" }

// Backend runs inference for a single text.
type Backend interface {
	Predict(ctx context.Context, text string) (Prediction, error)
	Close() error
}

// BackendFactory creates a backend when the service is opened.
type BackendFactory func(ctx context.Context) (Backend, error)

// Classifier is what classification and validation need from the service.
type Classifier interface {
	Classify(ctx context.Context, text string) Outcome
}

var (
	errNotOpen = errors.New("sentiment service not open")
	errClosed  = errors.New("sentiment service closed")
)

// Service owns one backend for its whole life.
type Service struct {
	mu       sync.Mutex
	factory  BackendFactory
	backend  Backend
	closed   bool
	maxRunes int
	logger   *zap.Logger
}

// NewService creates an unopened service. Inputs longer than maxRunes are
// truncated before reaching the backend; maxRunes below 1 disables truncation.
func NewService(factory BackendFactory, maxRunes int, logger *zap.Logger) *Service {
	return &Service{
		factory:  factory,
		maxRunes: maxRunes,
		logger:   logging.OrNop(logger).Named("sentiment"),
	}
}

// Open creates the backend. Opening an open service is a no-op.
func (s *Service) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed
	}
	if s.backend != nil {
		return nil
	}
	b, err := s.factory(ctx)
	if err != nil {
		return fmt.Errorf("opening classifier: %w", err)
	}
	s.backend = b
	s.logger.Debug("Classifier ready")
	return nil
}

// Close releases the backend. The service cannot be reopened.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.backend == nil {
		return nil
	}
	err := s.backend.Close()
	s.backend = nil
	return err
}

// Classify predicts the sentiment of text. Blank or invalid UTF-8 input is
// malformed; backend failures and labels outside the two classes are
// classifier errors.
func (s *Service) Classify(ctx context.Context, text string) (out Outcome) {
	if strings.TrimSpace(text) == "" || !utf8.ValidString(text) {
		return Outcome{Reason: ReasonMalformedInput}
	}

	s.mu.Lock()
	backend, closed := s.backend, s.closed
	s.mu.Unlock()
	if closed {
		return Outcome{Reason: ReasonClassifierError, Err: errClosed}
	}
	if backend == nil {
		return Outcome{Reason: ReasonClassifierError, Err: errNotOpen}
	}

	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Reason: ReasonClassifierError, Err: fmt.Errorf("backend panic: %v", r)}
		}
	}()

	p, err := backend.Predict(ctx, Truncate(text, s.maxRunes))
	if err != nil {
		return Outcome{Reason: ReasonClassifierError, Err: err}
	}
	label, err := ParseLabel(string(p.Label))
	if err != nil {
		return Outcome{Reason: ReasonClassifierError, Err: err}
	}
	p.Label = label
	return Outcome{Prediction: p}
}

// Truncate cuts text to at most n runes.
func Truncate(text string, n int) string {
	if n < 1 || utf8.RuneCountInString(text) <= n {
		return text
	}
	i := 0
	for pos := range text {
		if i == n {
			return text[:pos]
		}
		i++
	}
	return text
}
