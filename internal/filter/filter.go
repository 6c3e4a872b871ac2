// Package filter decides whether a raw comment is admissible: written in
// English and published on or before its season's release date.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/TobiSchelling/hypetrack/internal/language"
)

// Reason explains why a comment was rejected.
type Reason string

const (
	ReasonTooShort             Reason = "too_short"
	ReasonDetectorError        Reason = "detector_error"
	ReasonNotEnglish           Reason = "not_english"
	ReasonMalformedTimestamp   Reason = "malformed_timestamp"
	ReasonMalformedReleaseDate Reason = "malformed_release_date"
	ReasonPostRelease          Reason = "post_release"
)

// Verdict is the outcome of a single predicate or a full evaluation.
// Err is set only for detector and parse failures.
type Verdict struct {
	Accepted bool
	Reason   Reason
	Err      error
}

func accept() Verdict { return Verdict{Accepted: true} }

func reject(r Reason, err error) Verdict {
	return Verdict{Reason: r, Err: err}
}

// Filter applies the language and temporal predicates.
type Filter struct {
	detector  language.Detector
	minTokens int
	language  string
}

// New creates a filter. minTokens below 1 defaults to 3 and an empty
// language to "en".
func New(detector language.Detector, minTokens int, lang string) *Filter {
	if minTokens < 1 {
		minTokens = 3
	}
	if lang == "" {
		lang = "en"
	}
	return &Filter{
		detector:  detector,
		minTokens: minTokens,
		language:  strings.ToLower(lang),
	}
}

// Language accepts text with at least minTokens whitespace-separated tokens
// that the detector identifies as the target language. Detector failures
// reject.
func (f *Filter) Language(text string) (v Verdict) {
	if len(strings.Fields(text)) < f.minTokens {
		return reject(ReasonTooShort, nil)
	}

	defer func() {
		if r := recover(); r != nil {
			v = reject(ReasonDetectorError, fmt.Errorf("detector panic: %v", r))
		}
	}()

	code, err := f.detector.Detect(text)
	if err != nil {
		return reject(ReasonDetectorError, err)
	}
	if strings.ToLower(code) != f.language {
		return reject(ReasonNotEnglish, nil)
	}
	return accept()
}

// PreRelease accepts a comment whose publication date is on or before the
// release date. Only calendar dates are compared; the publication date is
// read in the timestamp's own zone.
func PreRelease(publishedAt, releaseDate string) Verdict {
	published, err := ParseDate(publishedAt)
	if err != nil {
		return reject(ReasonMalformedTimestamp, err)
	}
	release, err := time.Parse("2006-01-02", strings.TrimSpace(releaseDate))
	if err != nil {
		return reject(ReasonMalformedReleaseDate, err)
	}
	if published.After(release) {
		return reject(ReasonPostRelease, nil)
	}
	return accept()
}

// Evaluate runs the language predicate, then the temporal one.
func (f *Filter) Evaluate(text, publishedAt, releaseDate string) Verdict {
	if v := f.Language(text); !v.Accepted {
		return v
	}
	return PreRelease(publishedAt, releaseDate)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 timestamp and returns its calendar date at
// midnight UTC.
func ParseDate(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, ts)
		if err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", ts)
}
