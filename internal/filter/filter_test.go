package filter

import (
	"errors"
	"testing"

	"github.com/TobiSchelling/hypetrack/internal/language"
)

func english() language.Detector {
	return language.Func(func(string) (string, error) { return "en", nil })
}

func TestScenarioAcceptedBeforeRelease(t *testing.T) {
	f := New(english(), 3, "en")
	v := f.Evaluate("I love this trailer so much!", "2016-07-10T12:00:00Z", "2016-07-15")
	if !v.Accepted {
		t.Errorf("expected accepted, got %+v", v)
	}
}

func TestScenarioRejectedAfterRelease(t *testing.T) {
	f := New(english(), 3, "en")
	v := f.Evaluate("I love this trailer so much!", "2016-07-20T12:00:00Z", "2016-07-15")
	if v.Accepted || v.Reason != ReasonPostRelease {
		t.Errorf("expected post_release rejection, got %+v", v)
	}
}

func TestShortTextRejectedWithoutDetection(t *testing.T) {
	called := false
	d := language.Func(func(string) (string, error) {
		called = true
		return "en", nil
	})
	f := New(d, 3, "en")

	for _, text := range []string{"", "   ", "wow", "so good", "  so \t good\n "} {
		v := f.Language(text)
		if v.Accepted || v.Reason != ReasonTooShort {
			t.Errorf("Language(%q) = %+v, want too_short", text, v)
		}
	}
	if called {
		t.Error("detector should not be invoked for short texts")
	}
}

func TestDetectorErrorFailsClosed(t *testing.T) {
	boom := errors.New("boom")
	f := New(language.Func(func(string) (string, error) { return "", boom }), 3, "en")

	v := f.Language("this is long enough")
	if v.Accepted || v.Reason != ReasonDetectorError || !errors.Is(v.Err, boom) {
		t.Errorf("expected detector_error, got %+v", v)
	}
}

func TestDetectorPanicFailsClosed(t *testing.T) {
	f := New(language.Func(func(string) (string, error) { panic("model exploded") }), 3, "en")

	v := f.Language("this is long enough")
	if v.Accepted || v.Reason != ReasonDetectorError || v.Err == nil {
		t.Errorf("expected detector_error, got %+v", v)
	}
}

func TestNonEnglishRejected(t *testing.T) {
	f := New(language.Func(func(string) (string, error) { return "de", nil }), 3, "en")
	v := f.Language("das ist ja toll")
	if v.Accepted || v.Reason != ReasonNotEnglish {
		t.Errorf("expected not_english, got %+v", v)
	}
}

func TestDetectorCodeCaseInsensitive(t *testing.T) {
	f := New(language.Func(func(string) (string, error) { return "EN", nil }), 3, "")
	if v := f.Language("one two three"); !v.Accepted {
		t.Errorf("expected accepted, got %+v", v)
	}
}

func TestPreReleaseInclusiveBoundary(t *testing.T) {
	cases := []struct {
		ts   string
		want bool
	}{
		{"2016-07-15T00:00:00Z", true},
		{"2016-07-15T23:59:59Z", true},
		{"2016-07-15T23:59:59.999Z", true},
		{"2016-07-14T10:00:00Z", true},
		{"2016-07-16T00:00:00Z", false},
		{"2016-07-15T23:30:00-05:00", true},
		{"2016-07-16T01:00:00+09:00", false},
		{"2016-07-15T12:00:00", true},
		{"2016-07-15 08:00:00", true},
	}
	for _, c := range cases {
		v := PreRelease(c.ts, "2016-07-15")
		if v.Accepted != c.want {
			t.Errorf("PreRelease(%q) = %+v, want accepted=%v", c.ts, v, c.want)
		}
	}
}

func TestPreReleaseMalformed(t *testing.T) {
	v := PreRelease("yesterday", "2016-07-15")
	if v.Accepted || v.Reason != ReasonMalformedTimestamp || v.Err == nil {
		t.Errorf("expected malformed_timestamp, got %+v", v)
	}

	v = PreRelease("2016-07-10T00:00:00Z", "15/07/2016")
	if v.Accepted || v.Reason != ReasonMalformedReleaseDate {
		t.Errorf("expected malformed_release_date, got %+v", v)
	}
}

func TestEvaluateChecksLanguageFirst(t *testing.T) {
	f := New(english(), 3, "en")
	v := f.Evaluate("too short", "not a date", "2016-07-15")
	if v.Reason != ReasonTooShort {
		t.Errorf("expected too_short before timestamp check, got %+v", v)
	}
}

func TestParseDateKeepsOwnZone(t *testing.T) {
	d, err := ParseDate("2016-07-15T23:30:00-05:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := d.Format("2006-01-02"); got != "2016-07-15" {
		t.Errorf("expected 2016-07-15, got %s", got)
	}
}
