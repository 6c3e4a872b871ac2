// Package sample draws the random subset of accepted comments that is
// handed to a human for labeling.
package sample

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/TobiSchelling/hypetrack/internal/config"
	"github.com/TobiSchelling/hypetrack/internal/dataset"
	"github.com/TobiSchelling/hypetrack/internal/logging"
)

// DefaultSize is the sample size used when none is configured.
const DefaultSize = 300

// ErrOutputExists is returned when the labeling sample already exists.
// Nothing is written in that case.
var ErrOutputExists = errors.New("labeling sample already exists")

// ErrNoRecords is returned when no season has accepted records to sample.
// Nothing is written, so a later run can still create the sample.
var ErrNoRecords = errors.New("no accepted records to sample")

// Draw returns size records chosen uniformly without replacement. When the
// pool holds no more than size records it is returned unmodified.
func Draw[T any](pool []T, size int, rng *rand.Rand) []T {
	if size <= 0 {
		size = DefaultSize
	}
	if len(pool) <= size {
		return pool
	}

	idx := rng.Perm(len(pool))[:size]
	out := make([]T, size)
	for i, j := range idx {
		out[i] = pool[j]
	}
	return out
}

// NewRand returns a generator seeded from the operating system's entropy
// source, so repeated runs draw different samples.
func NewRand() *rand.Rand {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewChaCha8(seed))
}

// Result holds the results of creating a labeling sample.
type Result struct {
	Path       string
	PoolSize   int
	Sampled    int
	Unreadable []string
}

// Sampler writes the labeling sample from all seasons' accepted records.
type Sampler struct {
	seasons []config.Season
	paths   config.Paths
	size    int
	rng     *rand.Rand
	logger  *zap.Logger
}

// NewSampler creates a sampler. A nil rng draws a fresh crypto seed.
func NewSampler(cfg *config.Config, rng *rand.Rand, logger *zap.Logger) *Sampler {
	if rng == nil {
		rng = NewRand()
	}
	return &Sampler{
		seasons: cfg.Seasons,
		paths:   cfg.Paths(),
		size:    cfg.Sampling.Size,
		rng:     rng,
		logger:  logging.OrNop(logger).Named("sample"),
	}
}

// Create draws the sample and writes it. If the destination exists it
// returns ErrOutputExists before reading anything.
func (s *Sampler) Create(ctx context.Context) (*Result, error) {
	dest := s.paths.LabelingSample
	exists, _, err := dataset.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", dest, err)
	}
	if exists {
		return nil, fmt.Errorf("%s: %w", dest, ErrOutputExists)
	}

	r := &Result{Path: dest}
	var pool []string
	for _, season := range s.seasons {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := s.paths.Accepted(season)
		records, err := dataset.ReadAccepted(path)
		if errors.Is(err, dataset.ErrArtifactMissing) {
			continue
		}
		if err != nil {
			s.logger.Warn("Skipping unreadable artifact", zap.String("path", path), zap.Error(err))
			r.Unreadable = append(r.Unreadable, path)
			continue
		}
		for _, rec := range records {
			pool = append(pool, rec.Text)
		}
	}
	r.PoolSize = len(pool)
	if r.PoolSize == 0 {
		return nil, ErrNoRecords
	}

	texts := Draw(pool, s.size, s.rng)
	if _, err := dataset.WriteLabelingSample(dest, texts); err != nil {
		return nil, fmt.Errorf("writing sample: %w", err)
	}
	r.Sampled = len(texts)

	s.logger.Info("Labeling sample written",
		zap.String("path", dest),
		zap.Int("pool", r.PoolSize),
		zap.Int("sampled", r.Sampled))
	return r, nil
}
