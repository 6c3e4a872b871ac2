package validate

import (
	"fmt"
	"sort"

	"github.com/TobiSchelling/hypetrack/internal/dataset"
)

// ConfusionMatrix counts ground truth (rows) against predictions (columns).
type ConfusionMatrix struct {
	Labels []string `json:"labels"`
	Matrix [][]int  `json:"matrix"`
}

// NewConfusionMatrix builds a matrix whose axis is the sorted union of the
// observed ground-truth and predicted labels.
func NewConfusionMatrix(records []dataset.ValidationRecord) ConfusionMatrix {
	seen := make(map[string]bool)
	for _, r := range records {
		seen[r.GroundTruthLabel] = true
		seen[r.PredictedLabel] = true
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return buildMatrix(records, labels)
}

func buildMatrix(records []dataset.ValidationRecord, labels []string) ConfusionMatrix {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	m := make([][]int, len(labels))
	for i := range m {
		m[i] = make([]int, len(labels))
	}
	for _, r := range records {
		gi, gok := idx[r.GroundTruthLabel]
		pi, pok := idx[r.PredictedLabel]
		if gok && pok {
			m[gi][pi]++
		}
	}
	return ConfusionMatrix{Labels: labels, Matrix: m}
}

// WithAxis returns the matrix re-projected onto labels. Labels missing from
// the original axis get zero rows and columns.
func (c ConfusionMatrix) WithAxis(labels []string) ConfusionMatrix {
	idx := make(map[string]int, len(c.Labels))
	for i, l := range c.Labels {
		idx[l] = i
	}
	m := make([][]int, len(labels))
	for i, gl := range labels {
		m[i] = make([]int, len(labels))
		gi, ok := idx[gl]
		if !ok {
			continue
		}
		for j, pl := range labels {
			if pj, ok := idx[pl]; ok {
				m[i][j] = c.Matrix[gi][pj]
			}
		}
	}
	return ConfusionMatrix{Labels: append([]string(nil), labels...), Matrix: m}
}

// RowSum is the number of records whose ground truth is Labels[i].
func (c ConfusionMatrix) RowSum(i int) int {
	n := 0
	for _, v := range c.Matrix[i] {
		n += v
	}
	return n
}

// ColSum is the number of records predicted as Labels[j].
func (c ConfusionMatrix) ColSum(j int) int {
	n := 0
	for _, row := range c.Matrix {
		n += row[j]
	}
	return n
}

// ClassMetrics are precision, recall and F1 for one label.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Average is an aggregate over all classes.
type Average struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

// Metrics summarizes classifier reliability over the retained rows.
type Metrics struct {
	Support     int             `json:"support"`
	Accuracy    float64         `json:"accuracy"`
	Classes     []ClassMetrics  `json:"classes"`
	MacroAvg    Average         `json:"macro_avg"`
	WeightedAvg Average         `json:"weighted_avg"`
	Confusion   ConfusionMatrix `json:"confusion"`
}

// ComputeMetrics scores predictions against ground truth. Per-class metrics
// follow the confusion-matrix axis; a zero denominator yields 0.
func ComputeMetrics(records []dataset.ValidationRecord) Metrics {
	cm := NewConfusionMatrix(records)
	m := Metrics{Support: len(records), Confusion: cm}

	correct := 0
	for i := range cm.Labels {
		correct += cm.Matrix[i][i]
	}
	m.Accuracy = ratio(correct, len(records))

	for i, label := range cm.Labels {
		tp := cm.Matrix[i][i]
		c := ClassMetrics{
			Label:     label,
			Precision: ratio(tp, cm.ColSum(i)),
			Recall:    ratio(tp, cm.RowSum(i)),
			Support:   cm.RowSum(i),
		}
		if c.Precision+c.Recall > 0 {
			c.F1 = 2 * c.Precision * c.Recall / (c.Precision + c.Recall)
		}
		m.Classes = append(m.Classes, c)

		m.MacroAvg.Precision += c.Precision
		m.MacroAvg.Recall += c.Recall
		m.MacroAvg.F1 += c.F1
		w := ratio(c.Support, len(records))
		m.WeightedAvg.Precision += w * c.Precision
		m.WeightedAvg.Recall += w * c.Recall
		m.WeightedAvg.F1 += w * c.F1
	}
	if n := float64(len(cm.Labels)); n > 0 {
		m.MacroAvg.Precision /= n
		m.MacroAvg.Recall /= n
		m.MacroAvg.F1 /= n
	}
	return m
}

// Class returns the metrics for label, if observed.
func (m Metrics) Class(label string) (ClassMetrics, bool) {
	for _, c := range m.Classes {
		if c.Label == label {
			return c, true
		}
	}
	return ClassMetrics{}, false
}

// LoadMetrics computes metrics from a persisted validation-predictions artifact.
func LoadMetrics(path string) (*Metrics, error) {
	records, err := dataset.ReadValidation(path)
	if err != nil {
		return nil, err
	}
	for i, r := range records {
		if r.GroundTruthLabel == "" || r.PredictedLabel == "" {
			return nil, fmt.Errorf("%s row %d: empty label", path, i+1)
		}
	}
	m := ComputeMetrics(records)
	return &m, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}
