// Package language wraps language identification behind a small interface
// so the comment filter can be tested without loading detection models.
package language

import (
	"errors"
	"strings"
	"sync"

	"github.com/pemistahl/lingua-go"
)

// ErrUndetermined is returned when the detector cannot decide on a language.
var ErrUndetermined = errors.New("language could not be determined")

// Detector identifies the language of a text as an ISO 639-1 code.
type Detector interface {
	Detect(text string) (string, error)
}

// Lingua detects languages with lingua-go. The underlying models are
// loaded lazily on first use and shared for the life of the detector.
type Lingua struct {
	once     sync.Once
	detector lingua.LanguageDetector
}

// NewLingua returns a detector covering all languages lingua supports.
func NewLingua() *Lingua {
	return &Lingua{}
}

func (l *Lingua) Detect(text string) (string, error) {
	l.once.Do(func() {
		l.detector = lingua.NewLanguageDetectorBuilder().
			FromAllLanguages().
			Build()
	})

	lang, ok := l.detector.DetectLanguageOf(text)
	if !ok {
		return "", ErrUndetermined
	}
	return strings.ToLower(lang.IsoCode639_1().String()), nil
}

// Func adapts a plain function to the Detector interface.
type Func func(text string) (string, error)

func (f Func) Detect(text string) (string, error) {
	return f(text)
}
