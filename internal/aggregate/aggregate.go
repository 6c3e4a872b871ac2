// Package aggregate turns per-record predictions into per-season label
// percentages.
package aggregate

import (
	"sort"

	"github.com/TobiSchelling/hypetrack/internal/dataset"
	"github.com/TobiSchelling/hypetrack/internal/sentiment"
)

// Count is the absolute number of records with a label in a season.
type Count struct {
	Season string
	Label  sentiment.Label
	Count  int
}

// Counts tallies predictions per season and label. Records whose label is
// not one of the two classes are ignored. Seasons are ordered by
// seasonOrder, unknown seasons last in order of first appearance; within a
// season labels are ordered by count descending, POSITIVE first on ties.
func Counts(preds []dataset.PredictionRecord, seasonOrder []string) []Count {
	type key struct {
		season string
		label  sentiment.Label
	}
	tally := make(map[key]int)
	var seasons []string
	seen := make(map[string]bool)
	for _, p := range preds {
		label, err := sentiment.ParseLabel(p.PredictedLabel)
		if err != nil {
			continue
		}
		if !seen[p.Season] {
			seen[p.Season] = true
			seasons = append(seasons, p.Season)
		}
		tally[key{p.Season, label}]++
	}

	rank := make(map[string]int, len(seasonOrder))
	for i, s := range seasonOrder {
		rank[s] = i
	}
	sort.SliceStable(seasons, func(i, j int) bool {
		ri, iok := rank[seasons[i]]
		rj, jok := rank[seasons[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		default:
			return false
		}
	})

	var out []Count
	for _, s := range seasons {
		var rows []Count
		for _, l := range sentiment.Labels {
			if n := tally[key{s, l}]; n > 0 {
				rows = append(rows, Count{Season: s, Label: l, Count: n})
			}
		}
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
		out = append(out, rows...)
	}
	return out
}

// Compute returns the percentage share of each observed label among a
// season's classified records. Seasons with no classified records are
// omitted, and each season's percentages sum to 100.
func Compute(preds []dataset.PredictionRecord, seasonOrder []string) []dataset.SeasonStat {
	counts := Counts(preds, seasonOrder)

	totals := make(map[string]int)
	for _, c := range counts {
		totals[c.Season] += c.Count
	}

	stats := make([]dataset.SeasonStat, 0, len(counts))
	for _, c := range counts {
		stats = append(stats, dataset.SeasonStat{
			Season:     c.Season,
			Label:      string(c.Label),
			Percentage: 100 * float64(c.Count) / float64(totals[c.Season]),
		})
	}
	return stats
}
