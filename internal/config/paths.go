package config

import "path/filepath"

// Paths locates every artifact the pipeline reads or writes.
type Paths struct {
	ProcessedDir          string
	ResultsDir            string
	ValidationDir         string
	Database              string
	Predictions           string
	SeasonStats           string
	ValidationPredictions string
	LabelingSample        string
	LabeledInput          string
}

// Paths derives artifact locations from the data directory.
func (c *Config) Paths() Paths {
	return NewPaths(c.GetDataDir())
}

func NewPaths(dataDir string) Paths {
	results := filepath.Join(dataDir, "results")
	validation := filepath.Join(dataDir, "validation")
	return Paths{
		ProcessedDir:          filepath.Join(dataDir, "processed"),
		ResultsDir:            results,
		ValidationDir:         validation,
		Database:              filepath.Join(dataDir, "hypetrack.db"),
		Predictions:           filepath.Join(results, "sentiment_analysis_results_full.csv"),
		SeasonStats:           filepath.Join(results, "sentiment_analysis_results.csv"),
		ValidationPredictions: filepath.Join(results, "validation_predictions.csv"),
		LabelingSample:        filepath.Join(validation, "new_validation_set_to_label.csv"),
		LabeledInput:          filepath.Join(validation, "validation_set_labeled.csv"),
	}
}

// Accepted returns the accepted-records artifact path for a season.
func (p Paths) Accepted(s Season) string {
	prefix := s.FilePrefix
	if prefix == "" {
		prefix = s.ID + "_Hype"
	}
	return filepath.Join(p.ProcessedDir, prefix+"_processed.csv")
}
