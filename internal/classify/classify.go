// Package classify runs the sentiment classifier over every season's
// accepted records and writes the combined predictions artifact.
package classify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/TobiSchelling/hypetrack/internal/config"
	"github.com/TobiSchelling/hypetrack/internal/database"
	"github.com/TobiSchelling/hypetrack/internal/dataset"
	"github.com/TobiSchelling/hypetrack/internal/logging"
	"github.com/TobiSchelling/hypetrack/internal/sentiment"
)

// SeasonResult counts what happened to one season's records.
type SeasonResult struct {
	Season     string
	Missing    bool
	Unreadable bool
	Records    int
	Classified int
	Dropped    map[sentiment.Reason]int
}

// Result holds the results of a classification run.
type Result struct {
	Seasons     []SeasonResult
	Predictions []dataset.PredictionRecord
	Artifact    dataset.WriteResult
}

// Classified returns the number of records that received a label.
func (r *Result) Classified() int {
	return len(r.Predictions)
}

// Dropped returns the number of records without a prediction.
func (r *Result) Dropped() int {
	n := 0
	for _, s := range r.Seasons {
		for _, c := range s.Dropped {
			n += c
		}
	}
	return n
}

// Orchestrator classifies accepted records season by season.
type Orchestrator struct {
	db         *database.DB
	classifier sentiment.Classifier
	seasons    []config.Season
	paths      config.Paths
	logger     *zap.Logger
}

// NewOrchestrator creates an orchestrator. db may be nil, in which case
// the written artifact is not registered.
func NewOrchestrator(cfg *config.Config, db *database.DB, classifier sentiment.Classifier, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		db:         db,
		classifier: classifier,
		seasons:    cfg.Seasons,
		paths:      cfg.Paths(),
		logger:     logging.OrNop(logger).Named("classify"),
	}
}

// Run classifies every season in configured order and overwrites the
// predictions artifact. Records that cannot be classified are dropped.
// Only a failure to write the artifact is returned as an error.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	r := &Result{}
	for _, season := range o.seasons {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr, preds := o.classifySeason(ctx, season)
		r.Seasons = append(r.Seasons, sr)
		r.Predictions = append(r.Predictions, preds...)
	}

	res, err := dataset.WritePredictions(o.paths.Predictions, r.Predictions)
	if err != nil {
		return nil, fmt.Errorf("writing predictions: %w", err)
	}
	r.Artifact = res
	if o.db != nil {
		if err := o.db.RecordWrite(res); err != nil {
			o.logger.Warn("Registering predictions artifact failed", zap.Error(err))
		}
	}

	o.logger.Info("Classification complete",
		zap.Int("classified", r.Classified()),
		zap.Int("dropped", r.Dropped()),
		zap.String("path", res.Path))
	return r, nil
}

func (o *Orchestrator) classifySeason(ctx context.Context, season config.Season) (SeasonResult, []dataset.PredictionRecord) {
	sr := SeasonResult{Season: season.ID, Dropped: make(map[sentiment.Reason]int)}
	log := o.logger.With(zap.String("season", season.ID))

	path := o.paths.Accepted(season)
	records, err := dataset.ReadAccepted(path)
	if errors.Is(err, dataset.ErrArtifactMissing) {
		sr.Missing = true
		log.Debug("No accepted records, skipping")
		return sr, nil
	}
	if err != nil {
		sr.Unreadable = true
		log.Warn("Accepted records unreadable, skipping", zap.Error(err))
		return sr, nil
	}
	sr.Records = len(records)

	var preds []dataset.PredictionRecord
	for i, rec := range records {
		out := o.classifier.Classify(ctx, rec.Text)
		if !out.OK() {
			sr.Dropped[out.Reason]++
			if out.Err != nil {
				log.Debug("Record dropped", zap.Int("row", i+1), zap.String("reason", string(out.Reason)), zap.Error(out.Err))
			}
			continue
		}
		preds = append(preds, dataset.PredictionRecord{
			Text:           rec.Text,
			Time:           rec.Time,
			Season:         season.ID,
			PredictedLabel: string(out.Prediction.Label),
		})
	}
	sr.Classified = len(preds)

	log.Info("Season classified",
		zap.Int("records", sr.Records),
		zap.Int("classified", sr.Classified),
		zap.Int("malformed", sr.Dropped[sentiment.ReasonMalformedInput]),
		zap.Int("errors", sr.Dropped[sentiment.ReasonClassifierError]))
	return sr, preds
}
