package validate

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/TobiSchelling/hypetrack/internal/config"
	"github.com/TobiSchelling/hypetrack/internal/database"
	"github.com/TobiSchelling/hypetrack/internal/dataset"
	"github.com/TobiSchelling/hypetrack/internal/sentiment"
)

func rec(gt, pred string) dataset.ValidationRecord {
	return dataset.ValidationRecord{Text: "t", GroundTruthLabel: gt, PredictedLabel: pred}
}

func scenario() []dataset.ValidationRecord {
	return []dataset.ValidationRecord{
		rec("POSITIVE", "POSITIVE"),
		rec("POSITIVE", "NEGATIVE"),
		rec("NEGATIVE", "NEGATIVE"),
		rec("NEGATIVE", "NEGATIVE"),
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestMetricsScenario(t *testing.T) {
	m := ComputeMetrics(scenario())
	if m.Accuracy != 0.75 {
		t.Errorf("expected accuracy 0.75, got %v", m.Accuracy)
	}

	if !reflect.DeepEqual(m.Confusion.Labels, []string{"NEGATIVE", "POSITIVE"}) {
		t.Errorf("expected sorted axis, got %v", m.Confusion.Labels)
	}
	pn := m.Confusion.WithAxis([]string{"POSITIVE", "NEGATIVE"})
	if !reflect.DeepEqual(pn.Matrix, [][]int{{1, 1}, {0, 2}}) {
		t.Errorf("unexpected matrix: %v", pn.Matrix)
	}

	pos, _ := m.Class("POSITIVE")
	if pos.Precision != 1 || pos.Recall != 0.5 || !near(pos.F1, 2.0/3.0) || pos.Support != 2 {
		t.Errorf("unexpected POSITIVE metrics: %+v", pos)
	}
	neg, _ := m.Class("NEGATIVE")
	if !near(neg.Precision, 2.0/3.0) || neg.Recall != 1 || neg.Support != 2 {
		t.Errorf("unexpected NEGATIVE metrics: %+v", neg)
	}
	if !near(m.MacroAvg.Recall, 0.75) {
		t.Errorf("unexpected macro recall: %v", m.MacroAvg.Recall)
	}
}

func TestConfusionSums(t *testing.T) {
	records := append(scenario(), rec("NEGATIVE", "POSITIVE"), rec("POSITIVE", "POSITIVE"))
	cm := NewConfusionMatrix(records)

	for i, label := range cm.Labels {
		gt, pred := 0, 0
		for _, r := range records {
			if r.GroundTruthLabel == label {
				gt++
			}
			if r.PredictedLabel == label {
				pred++
			}
		}
		if cm.RowSum(i) != gt {
			t.Errorf("%s row sum %d, want %d", label, cm.RowSum(i), gt)
		}
		if cm.ColSum(i) != pred {
			t.Errorf("%s col sum %d, want %d", label, cm.ColSum(i), pred)
		}
	}
}

func TestMetricsSingleObservedLabel(t *testing.T) {
	m := ComputeMetrics([]dataset.ValidationRecord{rec("POSITIVE", "POSITIVE")})
	if len(m.Confusion.Labels) != 1 || m.Accuracy != 1 {
		t.Errorf("unexpected metrics: %+v", m)
	}
	full := m.Confusion.WithAxis([]string{"POSITIVE", "NEGATIVE"})
	if !reflect.DeepEqual(full.Matrix, [][]int{{1, 0}, {0, 0}}) {
		t.Errorf("unexpected re-projected matrix: %v", full.Matrix)
	}
}

func TestMetricsEmpty(t *testing.T) {
	m := ComputeMetrics(nil)
	if m.Accuracy != 0 || m.Support != 0 || len(m.Classes) != 0 {
		t.Errorf("unexpected metrics for empty input: %+v", m)
	}
}

func TestNormalize(t *testing.T) {
	rows := []dataset.LabeledRow{
		{Text: "great", GroundTruthLabel: " positive "},
		{Text: "awful", GroundTruthLabel: "NEGATIVE"},
		{Text: "hmm", GroundTruthLabel: "Neutral"},
		{Text: "blank label", GroundTruthLabel: "  "},
		{Text: "", GroundTruthLabel: "POSITIVE"},
		{Text: "abbrev", GroundTruthLabel: "pos "},
	}
	items, d := Normalize(rows)
	want := []Item{{Text: "great", Label: sentiment.Positive}, {Text: "awful", Label: sentiment.Negative}}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("unexpected items: %+v", items)
	}
	if d.UnknownLabel != 2 || d.MissingLabel != 1 || d.MissingText != 1 {
		t.Errorf("unexpected drop counts: %+v", d)
	}
}

// scriptedClassifier returns predictions keyed by text.
type scriptedClassifier map[string]sentiment.Label

func (s scriptedClassifier) Classify(_ context.Context, text string) sentiment.Outcome {
	label, ok := s[text]
	if !ok {
		return sentiment.Outcome{Reason: sentiment.ReasonClassifierError, Err: errors.New("no script")}
	}
	return sentiment.Outcome{Prediction: sentiment.Prediction{Label: label}}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{Output: config.Output{DataDir: t.TempDir()}}
}

func writeLabeled(t *testing.T, cfg *config.Config, content string) {
	t.Helper()
	path := cfg.Paths().LabeledInput
	os.MkdirAll(filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing labeled input: %v", err)
	}
}

func TestRunScenario(t *testing.T) {
	cfg := testConfig(t)
	writeLabeled(t, cfg, strings.Join([]string{
		" text ,Ground_Truth_Label",
		"a,POSITIVE",
		"b,positive",
		"c,NEGATIVE",
		"d, Negative",
		"e,Neutral",
		"f,",
		"g,POSITIVE",
	}, "\n")+"\n")

	cls := scriptedClassifier{"a": sentiment.Positive, "b": sentiment.Negative, "c": sentiment.Negative, "d": sentiment.Negative}
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	defer db.Close()

	r, err := NewValidator(cfg, db, cls, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Input != 7 || r.Rows != 4 {
		t.Errorf("expected 7 input / 4 scored rows, got %d / %d", r.Input, r.Rows)
	}
	if r.Dropped.UnknownLabel != 1 || r.Dropped.MissingLabel != 1 || r.Dropped.Unclassified != 1 {
		t.Errorf("unexpected drops: %+v", r.Dropped)
	}
	if r.Metrics.Accuracy != 0.75 {
		t.Errorf("expected accuracy 0.75, got %v", r.Metrics.Accuracy)
	}

	persisted, err := dataset.ReadValidation(cfg.Paths().ValidationPredictions)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if len(persisted) != 4 || persisted[1].GroundTruthLabel != "POSITIVE" || persisted[1].PredictedLabel != "NEGATIVE" {
		t.Errorf("unexpected artifact: %+v", persisted)
	}

	loaded, err := LoadMetrics(cfg.Paths().ValidationPredictions)
	if err != nil {
		t.Fatalf("loading metrics: %v", err)
	}
	if loaded.Accuracy != r.Metrics.Accuracy {
		t.Errorf("on-demand accuracy %v differs from run %v", loaded.Accuracy, r.Metrics.Accuracy)
	}

	runs, _ := db.GetValidationRuns(1)
	if len(runs) != 1 || runs[0].RowCount != 4 || runs[0].DroppedLabels != 2 || runs[0].DroppedFailures != 1 {
		t.Errorf("unexpected validation history: %+v", runs)
	}
}

func TestRunMissingSample(t *testing.T) {
	cfg := testConfig(t)
	_, err := NewValidator(cfg, nil, scriptedClassifier{}, nil).Run(context.Background())
	if !errors.Is(err, ErrLabeledSampleMissing) {
		t.Fatalf("expected ErrLabeledSampleMissing, got %v", err)
	}
	if exists, _, _ := dataset.Stat(cfg.Paths().ValidationPredictions); exists {
		t.Error("no artifact should be written when the sample is missing")
	}
}

func TestRunUnreadableSample(t *testing.T) {
	cfg := testConfig(t)
	writeLabeled(t, cfg, "comment,label\nx,POSITIVE\n")
	_, err := NewValidator(cfg, nil, scriptedClassifier{}, nil).Run(context.Background())
	if !errors.Is(err, ErrLabeledSampleMissing) {
		t.Errorf("expected ErrLabeledSampleMissing, got %v", err)
	}
}

func TestLoadMetricsMissing(t *testing.T) {
	_, err := LoadMetrics(filepath.Join(t.TempDir(), "none.csv"))
	if !errors.Is(err, dataset.ErrArtifactMissing) {
		t.Errorf("expected ErrArtifactMissing, got %v", err)
	}
}
