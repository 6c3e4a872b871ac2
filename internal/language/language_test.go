package language

import (
	"errors"
	"testing"
)

func TestLinguaDetectsEnglish(t *testing.T) {
	if testing.Short() {
		t.Skip("loads language models")
	}
	d := NewLingua()
	code, err := d.Detect("I love this trailer so much, cannot wait for the new season!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "en" {
		t.Errorf("expected en, got %q", code)
	}
}

func TestLinguaDetectsGerman(t *testing.T) {
	if testing.Short() {
		t.Skip("loads language models")
	}
	d := NewLingua()
	code, err := d.Detect("Ich freue mich so sehr auf die neue Staffel, das wird großartig")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != "de" {
		t.Errorf("expected de, got %q", code)
	}
}

func TestFuncAdapter(t *testing.T) {
	boom := errors.New("boom")
	var d Detector = Func(func(string) (string, error) { return "", boom })
	if _, err := d.Detect("x"); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}
