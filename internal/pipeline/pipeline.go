// Package pipeline runs the full collect, classify, aggregate and validate
// sequence and records a run report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TobiSchelling/hypetrack/internal/aggregate"
	"github.com/TobiSchelling/hypetrack/internal/classify"
	"github.com/TobiSchelling/hypetrack/internal/collect"
	"github.com/TobiSchelling/hypetrack/internal/config"
	"github.com/TobiSchelling/hypetrack/internal/database"
	"github.com/TobiSchelling/hypetrack/internal/dataset"
	"github.com/TobiSchelling/hypetrack/internal/filter"
	"github.com/TobiSchelling/hypetrack/internal/logging"
	"github.com/TobiSchelling/hypetrack/internal/sentiment"
	"github.com/TobiSchelling/hypetrack/internal/validate"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	RunID string
	Steps []StepResult
}

// Failed reports whether any step ended with an error.
func (r *Result) Failed() bool {
	for _, s := range r.Steps {
		if s.Err != nil {
			return true
		}
	}
	return false
}

// Pipeline orchestrates the 4-step sentiment pipeline.
type Pipeline struct {
	cfg        *config.Config
	db         *database.DB
	source     collect.Source
	filter     *filter.Filter
	classifier sentiment.Classifier
	logger     *zap.Logger
}

// New creates a new pipeline. The classifier must already be open.
func New(cfg *config.Config, db *database.DB, source collect.Source, f *filter.Filter, classifier sentiment.Classifier, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		db:         db,
		source:     source,
		filter:     f,
		classifier: classifier,
		logger:     logging.OrNop(logger).Named("pipeline"),
	}
}

// Run executes the full pipeline. A season failing to collect does not
// stop classification. A failed classification skips aggregation, but
// validation still runs. A missing labeled sample only skips validation.
// The run report counts the seasons that produced stats.
func (p *Pipeline) Run(ctx context.Context) *Result {
	r := &Result{RunID: uuid.NewString()}
	started := time.Now().UTC()
	report := database.RunReport{ID: r.RunID}

	// Step 1: Collect
	step, accepted := p.runCollect(ctx)
	r.Steps = append(r.Steps, step)
	report.AcceptedCount = accepted

	// Step 2: Classify
	step, predicted := p.runClassify(ctx)
	r.Steps = append(r.Steps, step)
	report.PredictionCount = predicted

	// Step 3: Aggregate
	if step.Err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Aggregate", Summary: "Skipped: no predictions written"})
	} else {
		step, seasons := p.runAggregate()
		r.Steps = append(r.Steps, step)
		report.SeasonCount = seasons
	}

	// Step 4: Validate
	step, accuracy := p.runValidate(ctx)
	r.Steps = append(r.Steps, step)
	report.Accuracy = accuracy

	p.finish(report, started)
	return r
}

func (p *Pipeline) finish(report database.RunReport, started time.Time) {
	report.StartedAt = started.Format(time.RFC3339)
	report.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	if err := p.db.InsertRunReport(report); err != nil {
		p.logger.Warn("Recording run report failed", zap.Error(err))
	}
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun() *Result {
	r := &Result{}
	collector := collect.NewCollector(p.cfg, p.db, p.source, p.filter, p.logger)
	paths := p.cfg.Paths()

	var toCollect, done int
	for _, s := range p.cfg.Seasons {
		skip, _, err := collector.Peek(s)
		if err != nil || !skip {
			toCollect++
		} else {
			done++
		}
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Collect",
		Summary: fmt.Sprintf("[dry-run] %d seasons to collect, %d already collected", toCollect, done),
	})

	var records int
	for _, s := range p.cfg.Seasons {
		if recs, err := dataset.ReadAccepted(paths.Accepted(s)); err == nil {
			records += len(recs)
		}
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Classify",
		Summary: fmt.Sprintf("[dry-run] %d accepted records on disk would be classified", records),
	})

	r.Steps = append(r.Steps, StepResult{
		Name:    "Aggregate",
		Summary: fmt.Sprintf("[dry-run] Would overwrite %s", paths.SeasonStats),
	})

	if exists, _, _ := dataset.Stat(paths.LabeledInput); exists {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Validate",
			Summary: fmt.Sprintf("[dry-run] Would validate against %s", paths.LabeledInput),
		})
	} else {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Validate",
			Summary: "[dry-run] No labeled sample, validation would be skipped",
		})
	}

	return r
}

func (p *Pipeline) runCollect(ctx context.Context) (StepResult, int) {
	p.logger.Info("Step 1/4: Collecting comments...")
	collector := collect.NewCollector(p.cfg, p.db, p.source, p.filter, p.logger)
	result := collector.Collect(ctx)

	skipped := 0
	for _, s := range result.Seasons {
		if s.Skipped {
			skipped++
		}
	}
	step := StepResult{
		Name: "Collect",
		Summary: fmt.Sprintf("Accepted %d new comments from %d read (%d seasons skipped, %d failed)",
			result.NewlyAccepted, result.TotalRead, skipped, len(result.Failed())),
	}
	if failed := result.Failed(); len(failed) == len(result.Seasons) && len(failed) > 0 {
		step.Err = fmt.Errorf("all seasons failed: %w", failed[0].Err)
	}
	return step, result.NewlyAccepted
}

func (p *Pipeline) runClassify(ctx context.Context) (StepResult, int) {
	p.logger.Info("Step 2/4: Classifying accepted comments...")
	orch := classify.NewOrchestrator(p.cfg, p.db, p.classifier, p.logger)
	result, err := orch.Run(ctx)
	if err != nil {
		return StepResult{Name: "Classify", Err: err}, 0
	}
	return StepResult{
		Name:    "Classify",
		Summary: fmt.Sprintf("Classified %d comments, %d dropped", result.Classified(), result.Dropped()),
	}, result.Classified()
}

func (p *Pipeline) runAggregate() (StepResult, int) {
	p.logger.Info("Step 3/4: Aggregating season stats...")
	result, err := aggregate.Run(p.cfg, p.db, p.logger)
	if err != nil {
		return StepResult{Name: "Aggregate", Err: err}, 0
	}
	seasons := make(map[string]bool)
	for _, s := range result.Stats {
		seasons[s.Season] = true
	}
	return StepResult{
		Name:    "Aggregate",
		Summary: fmt.Sprintf("Wrote %d stat rows for %d seasons", len(result.Stats), len(seasons)),
	}, len(seasons)
}

func (p *Pipeline) runValidate(ctx context.Context) (StepResult, *float64) {
	p.logger.Info("Step 4/4: Validating classifier...")
	v := validate.NewValidator(p.cfg, p.db, p.classifier, p.logger)
	report, err := v.Run(ctx)
	if errors.Is(err, validate.ErrLabeledSampleMissing) {
		return StepResult{Name: "Validate", Summary: "Skipped: no labeled sample"}, nil
	}
	if err != nil {
		return StepResult{Name: "Validate", Err: err}, nil
	}
	acc := report.Metrics.Accuracy
	return StepResult{
		Name:    "Validate",
		Summary: fmt.Sprintf("Accuracy %.3f over %d rows", acc, report.Rows),
	}, &acc
}
