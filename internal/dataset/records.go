package dataset

import (
	"fmt"
	"strconv"
)

// AcceptedRecord is a comment that passed the collection filters.
type AcceptedRecord struct {
	Text   string
	Time   string
	Season string
}

// PredictionRecord is an accepted record with its predicted sentiment label.
type PredictionRecord struct {
	Text           string
	Time           string
	Season         string
	PredictedLabel string
}

// SeasonStat is the share of one label among a season's classified records.
type SeasonStat struct {
	Season     string
	Label      string
	Percentage float64
}

// LabeledRow is one row of the hand-labeled sample, unnormalized.
type LabeledRow struct {
	Text             string
	GroundTruthLabel string
}

// ValidationRecord pairs a normalized ground-truth label with a prediction.
type ValidationRecord struct {
	Text             string
	GroundTruthLabel string
	PredictedLabel   string
}

func WriteAccepted(path string, records []AcceptedRecord) (WriteResult, error) {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{r.Text, r.Time, r.Season}
	}
	return Write(path, AcceptedSchema, rows)
}

func ReadAccepted(path string) ([]AcceptedRecord, error) {
	rows, err := Read(path, AcceptedSchema)
	if err != nil {
		return nil, err
	}
	out := make([]AcceptedRecord, len(rows))
	for i, r := range rows {
		out[i] = AcceptedRecord{Text: r[0], Time: r[1], Season: r[2]}
	}
	return out, nil
}

func WritePredictions(path string, records []PredictionRecord) (WriteResult, error) {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{r.Text, r.Time, r.Season, r.PredictedLabel}
	}
	return Write(path, PredictionsSchema, rows)
}

func ReadPredictions(path string) ([]PredictionRecord, error) {
	rows, err := Read(path, PredictionsSchema)
	if err != nil {
		return nil, err
	}
	out := make([]PredictionRecord, len(rows))
	for i, r := range rows {
		out[i] = PredictionRecord{Text: r[0], Time: r[1], Season: r[2], PredictedLabel: r[3]}
	}
	return out, nil
}

func WriteSeasonStats(path string, stats []SeasonStat) (WriteResult, error) {
	rows := make([][]string, len(stats))
	for i, s := range stats {
		rows[i] = []string{s.Season, s.Label, strconv.FormatFloat(s.Percentage, 'f', -1, 64)}
	}
	return Write(path, SeasonStatsSchema, rows)
}

func ReadSeasonStats(path string) ([]SeasonStat, error) {
	rows, err := Read(path, SeasonStatsSchema)
	if err != nil {
		return nil, err
	}
	out := make([]SeasonStat, 0, len(rows))
	for i, r := range rows {
		pct, err := strconv.ParseFloat(r[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad percentage %q: %w", path, i+1, r[2], err)
		}
		out = append(out, SeasonStat{Season: r[0], Label: r[1], Percentage: pct})
	}
	return out, nil
}

// WriteLabelingSample writes texts with an empty ground-truth column.
func WriteLabelingSample(path string, texts []string) (WriteResult, error) {
	rows := make([][]string, len(texts))
	for i, t := range texts {
		rows[i] = []string{t, ""}
	}
	return Write(path, LabelingSampleSchema, rows)
}

func ReadLabeled(path string) ([]LabeledRow, error) {
	rows, err := Read(path, LabeledInputSchema)
	if err != nil {
		return nil, err
	}
	out := make([]LabeledRow, len(rows))
	for i, r := range rows {
		out[i] = LabeledRow{Text: r[0], GroundTruthLabel: r[1]}
	}
	return out, nil
}

func WriteValidation(path string, records []ValidationRecord) (WriteResult, error) {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = []string{r.Text, r.GroundTruthLabel, r.PredictedLabel}
	}
	return Write(path, ValidationPredictionsSchema, rows)
}

func ReadValidation(path string) ([]ValidationRecord, error) {
	rows, err := Read(path, ValidationPredictionsSchema)
	if err != nil {
		return nil, err
	}
	out := make([]ValidationRecord, len(rows))
	for i, r := range rows {
		out[i] = ValidationRecord{Text: r[0], GroundTruthLabel: r[1], PredictedLabel: r[2]}
	}
	return out, nil
}
