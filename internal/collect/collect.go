// Package collect gathers each season's pre-release English comments into
// an accepted-records artifact and records a completion marker for it.
package collect

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/TobiSchelling/hypetrack/internal/config"
	"github.com/TobiSchelling/hypetrack/internal/database"
	"github.com/TobiSchelling/hypetrack/internal/dataset"
	"github.com/TobiSchelling/hypetrack/internal/filter"
	"github.com/TobiSchelling/hypetrack/internal/logging"
)

// minArtifactBytes is the size an accepted-records artifact must exceed to
// count as a finished collection. A header-only file is smaller.
const minArtifactBytes = 100

// SeasonResult reports what happened to one season.
type SeasonResult struct {
	Season     string
	Read       int
	Accepted   int
	Skipped    bool
	SkipReason string
	Partial    bool
	Rejected   map[filter.Reason]int
	Err        error
}

// Result holds the results of a collection run.
type Result struct {
	Seasons       []SeasonResult
	TotalRead     int
	NewlyAccepted int
}

// Failed returns the seasons that ended with an error.
func (r *Result) Failed() []SeasonResult {
	var out []SeasonResult
	for _, s := range r.Seasons {
		if s.Err != nil {
			out = append(out, s)
		}
	}
	return out
}

// Collector runs collection season by season.
type Collector struct {
	db      *database.DB
	source  Source
	filter  *filter.Filter
	seasons []config.Season
	paths   config.Paths
	logger  *zap.Logger
}

// NewCollector creates a collector for the configured seasons.
func NewCollector(cfg *config.Config, db *database.DB, source Source, f *filter.Filter, logger *zap.Logger) *Collector {
	return &Collector{
		db:      db,
		source:  source,
		filter:  f,
		seasons: cfg.Seasons,
		paths:   cfg.Paths(),
		logger:  logging.OrNop(logger).Named("collect"),
	}
}

// Collect processes every season in configured order. A failing season
// does not stop the others.
func (c *Collector) Collect(ctx context.Context) *Result {
	r := &Result{}
	for _, season := range c.seasons {
		if err := ctx.Err(); err != nil {
			r.Seasons = append(r.Seasons, SeasonResult{Season: season.ID, Err: err})
			continue
		}
		sr := c.CollectSeason(ctx, season)
		r.Seasons = append(r.Seasons, sr)
		r.TotalRead += sr.Read
		r.NewlyAccepted += sr.Accepted
	}

	c.logger.Info("Collection complete",
		zap.Int("seasons", len(r.Seasons)),
		zap.Int("read", r.TotalRead),
		zap.Int("accepted", r.NewlyAccepted),
		zap.Int("failed", len(r.Failed())))
	return r
}

// CollectSeason collects a single season unless its artifact is already
// complete.
func (c *Collector) CollectSeason(ctx context.Context, season config.Season) SeasonResult {
	sr := SeasonResult{Season: season.ID, Rejected: make(map[filter.Reason]int)}
	log := c.logger.With(zap.String("season", season.ID))

	skip, why, err := c.Checkpoint(season)
	if err != nil {
		sr.Err = fmt.Errorf("checking %s: %w", season.ID, err)
		log.Error("Checkpoint failed", zap.Error(err))
		return sr
	}
	if skip {
		sr.Skipped = true
		sr.SkipReason = why
		log.Info("Skipping season", zap.String("reason", why))
		return sr
	}

	var accepted []dataset.AcceptedRecord
	streamErr := c.source.Comments(ctx, season.ContentID, func(rc RawComment) error {
		sr.Read++
		v := c.filter.Evaluate(rc.Text, rc.PublishedAt, season.ReleaseDate)
		if !v.Accepted {
			sr.Rejected[v.Reason]++
			if v.Err != nil {
				log.Debug("Comment rejected", zap.String("reason", string(v.Reason)), zap.Error(v.Err))
			}
			return nil
		}
		accepted = append(accepted, dataset.AcceptedRecord{
			Text:   rc.Text,
			Time:   rc.PublishedAt,
			Season: season.ID,
		})
		return nil
	})

	if streamErr != nil && sr.Read == 0 {
		sr.Err = fmt.Errorf("collecting %s: %w", season.ID, streamErr)
		log.Error("Source failed, season aborted", zap.Error(streamErr))
		return sr
	}

	status := database.StatusComplete
	if streamErr != nil {
		status = database.StatusPartial
		sr.Partial = true
		sr.Err = fmt.Errorf("collecting %s: %w", season.ID, streamErr)
		log.Warn("Source failed mid-stream, keeping partial results",
			zap.Int("read", sr.Read), zap.Error(streamErr))
	}

	path := c.paths.Accepted(season)
	res, err := dataset.WriteAccepted(path, accepted)
	if err != nil {
		sr.Err = fmt.Errorf("writing %s: %w", path, err)
		log.Error("Writing accepted records failed", zap.Error(err))
		return sr
	}
	sr.Accepted = len(accepted)

	if err := c.mark(season, status, sr.Read, res); err != nil {
		sr.Err = fmt.Errorf("marking %s: %w", season.ID, err)
		log.Error("Writing completion marker failed", zap.Error(err))
		return sr
	}

	log.Info("Season collected",
		zap.String("status", status),
		zap.Int("read", sr.Read),
		zap.Int("accepted", sr.Accepted),
		zap.String("rejected", formatRejections(sr.Rejected)))
	return sr
}

// Checkpoint reports whether a season can be skipped. An artifact with no
// marker predates bookkeeping and is adopted as complete.
func (c *Collector) Checkpoint(season config.Season) (bool, string, error) {
	return c.checkpoint(season, true)
}

// Peek answers the same question as Checkpoint without writing anything.
// An unmarked artifact is reported as skippable but not adopted.
func (c *Collector) Peek(season config.Season) (bool, string, error) {
	return c.checkpoint(season, false)
}

func (c *Collector) checkpoint(season config.Season, adopt bool) (bool, string, error) {
	path := c.paths.Accepted(season)
	exists, size, err := dataset.Stat(path)
	if err != nil {
		return false, "", err
	}
	if !exists || size <= minArtifactBytes {
		return false, "", nil
	}

	marker, err := c.db.GetCollection(season.ID)
	if err != nil {
		return false, "", err
	}

	hash, err := dataset.HashFile(path)
	if err != nil {
		return false, "", err
	}

	if marker == nil {
		records, err := dataset.ReadAccepted(path)
		if err != nil {
			c.logger.Warn("Existing artifact unreadable, re-collecting",
				zap.String("season", season.ID), zap.Error(err))
			return false, "", nil
		}
		if !adopt {
			return true, "existing artifact would be adopted", nil
		}
		err = c.db.UpsertCollection(database.SeasonCollection{
			SeasonID:      season.ID,
			ContentID:     season.ContentID,
			Status:        database.StatusComplete,
			RecordCount:   len(records),
			ContentSHA256: hash,
			SchemaVersion: dataset.AcceptedSchema.Version,
		})
		if err != nil {
			return false, "", err
		}
		return true, "existing artifact adopted", nil
	}

	if marker.Status != database.StatusComplete {
		return false, "", nil
	}
	if marker.ContentSHA256 != hash {
		c.logger.Warn("Artifact changed since last collection, re-collecting",
			zap.String("season", season.ID))
		return false, "", nil
	}
	return true, "already collected", nil
}

func (c *Collector) mark(season config.Season, status string, read int, res dataset.WriteResult) error {
	if err := c.db.RecordWrite(res); err != nil {
		return err
	}
	return c.db.UpsertCollection(database.SeasonCollection{
		SeasonID:      season.ID,
		ContentID:     season.ContentID,
		Status:        status,
		RecordCount:   res.Rows,
		TotalRead:     read,
		ContentSHA256: res.SHA256,
		SchemaVersion: res.Schema.Version,
	})
}

func formatRejections(m map[filter.Reason]int) string {
	if len(m) == 0 {
		return "none"
	}
	order := []filter.Reason{
		filter.ReasonTooShort,
		filter.ReasonNotEnglish,
		filter.ReasonDetectorError,
		filter.ReasonPostRelease,
		filter.ReasonMalformedTimestamp,
		filter.ReasonMalformedReleaseDate,
	}
	var parts []string
	for _, r := range order {
		if n := m[r]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", r, n))
		}
	}
	return strings.Join(parts, " ")
}
