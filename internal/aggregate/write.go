package aggregate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/TobiSchelling/hypetrack/internal/config"
	"github.com/TobiSchelling/hypetrack/internal/database"
	"github.com/TobiSchelling/hypetrack/internal/dataset"
	"github.com/TobiSchelling/hypetrack/internal/logging"
)

// Result holds the results of an aggregation run.
type Result struct {
	Stats    []dataset.SeasonStat
	Counts   []Count
	Artifact dataset.WriteResult
}

// Run reads the predictions artifact, computes season stats and overwrites
// the season-stats artifact. db may be nil.
func Run(cfg *config.Config, db *database.DB, logger *zap.Logger) (*Result, error) {
	logger = logging.OrNop(logger).Named("aggregate")
	paths := cfg.Paths()

	preds, err := dataset.ReadPredictions(paths.Predictions)
	if err != nil {
		return nil, fmt.Errorf("reading predictions: %w", err)
	}

	order := cfg.SeasonIDs()
	r := &Result{
		Stats:  Compute(preds, order),
		Counts: Counts(preds, order),
	}

	res, err := dataset.WriteSeasonStats(paths.SeasonStats, r.Stats)
	if err != nil {
		return nil, fmt.Errorf("writing season stats: %w", err)
	}
	r.Artifact = res
	if db != nil {
		if err := db.RecordWrite(res); err != nil {
			logger.Warn("Registering season stats artifact failed", zap.Error(err))
		}
	}

	logger.Info("Season stats written", zap.Int("rows", len(r.Stats)), zap.String("path", res.Path))
	return r, nil
}
