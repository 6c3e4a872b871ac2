// Package validate measures the classifier against a hand-labeled sample.
package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/hypetrack/internal/config"
	"github.com/TobiSchelling/hypetrack/internal/database"
	"github.com/TobiSchelling/hypetrack/internal/dataset"
	"github.com/TobiSchelling/hypetrack/internal/logging"
	"github.com/TobiSchelling/hypetrack/internal/sentiment"
)

// ErrLabeledSampleMissing is returned when the labeled input is absent or
// cannot be read. No output is written in that case.
var ErrLabeledSampleMissing = errors.New("labeled sample missing or unreadable")

// Item is a labeled row that survived normalization.
type Item struct {
	Text  string
	Label sentiment.Label
}

// Dropped counts rows removed before scoring.
type Dropped struct {
	MissingText  int
	MissingLabel int
	UnknownLabel int
	Unclassified int
}

// Normalize keeps rows with non-blank text and a ground-truth label that is
// POSITIVE or NEGATIVE after trimming and uppercasing.
func Normalize(rows []dataset.LabeledRow) ([]Item, Dropped) {
	var d Dropped
	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		if strings.TrimSpace(r.GroundTruthLabel) == "" {
			d.MissingLabel++
			continue
		}
		if strings.TrimSpace(r.Text) == "" {
			d.MissingText++
			continue
		}
		label, err := sentiment.ParseLabel(r.GroundTruthLabel)
		if err != nil {
			d.UnknownLabel++
			continue
		}
		items = append(items, Item{Text: r.Text, Label: label})
	}
	return items, d
}

// Report holds the results of a validation run.
type Report struct {
	Input    int
	Rows     int
	Dropped  Dropped
	Metrics  Metrics
	Artifact dataset.WriteResult
}

// Validator re-classifies the labeled sample and scores the predictions.
type Validator struct {
	db         *database.DB
	classifier sentiment.Classifier
	paths      config.Paths
	logger     *zap.Logger
}

// NewValidator creates a validator. db may be nil.
func NewValidator(cfg *config.Config, db *database.DB, classifier sentiment.Classifier, logger *zap.Logger) *Validator {
	return &Validator{
		db:         db,
		classifier: classifier,
		paths:      cfg.Paths(),
		logger:     logging.OrNop(logger).Named("validate"),
	}
}

// Run reads the labeled sample, classifies the retained rows, overwrites
// the validation-predictions artifact and returns the metrics.
func (v *Validator) Run(ctx context.Context) (*Report, error) {
	path := v.paths.LabeledInput
	rows, err := dataset.ReadLabeled(path)
	if err != nil {
		v.logger.Warn("Labeled sample not available", zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLabeledSampleMissing, err)
	}

	items, dropped := Normalize(rows)
	r := &Report{Input: len(rows)}

	records := make([]dataset.ValidationRecord, 0, len(items))
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out := v.classifier.Classify(ctx, it.Text)
		if !out.OK() {
			dropped.Unclassified++
			continue
		}
		records = append(records, dataset.ValidationRecord{
			Text:             it.Text,
			GroundTruthLabel: string(it.Label),
			PredictedLabel:   string(out.Prediction.Label),
		})
	}
	r.Rows = len(records)
	r.Dropped = dropped

	res, err := dataset.WriteValidation(v.paths.ValidationPredictions, records)
	if err != nil {
		return nil, fmt.Errorf("writing validation predictions: %w", err)
	}
	r.Artifact = res
	r.Metrics = ComputeMetrics(records)

	if v.db != nil {
		if err := v.db.RecordWrite(res); err != nil {
			v.logger.Warn("Registering validation artifact failed", zap.Error(err))
		}
		if _, err := v.db.InsertValidationRun(database.ValidationRun{
			RowCount:        r.Rows,
			DroppedLabels:   dropped.MissingText + dropped.MissingLabel + dropped.UnknownLabel,
			DroppedFailures: dropped.Unclassified,
			Accuracy:        r.Metrics.Accuracy,
		}); err != nil {
			v.logger.Warn("Recording validation run failed", zap.Error(err))
		}
	}

	v.logger.Info("Validation complete",
		zap.Int("input", r.Input),
		zap.Int("scored", r.Rows),
		zap.Int("dropped_labels", dropped.MissingText+dropped.MissingLabel+dropped.UnknownLabel),
		zap.Int("unclassified", dropped.Unclassified),
		zap.Float64("accuracy", r.Metrics.Accuracy))
	return r, nil
}
