package evaluation

import (
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/relevance"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

// Metric names a rank metric.
type Metric string

const (
	MetricNDCG      Metric = "ndcg"
	MetricPrecision Metric = "precision"
)

// Metrics lists the supported metrics.
var Metrics = []Metric{MetricNDCG, MetricPrecision}

func ParseMetric(name string) (Metric, error) {
	for _, m := range Metrics {
		if string(m) == name {
			return m, nil
		}
	}
	return "", apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage,
		"unknown metric %q (want ndcg or precision)", name)
}

// RelevanceMode is the grading the metric is computed over: graded overlap
// for NDCG, binary for precision.
func (m Metric) RelevanceMode() relevance.Mode {
	if m == MetricPrecision {
		return relevance.ModeBinary
	}
	return relevance.ModeGraded
}

// Compute evaluates the metric over the grades of one ranking at cutoff k.
func (m Metric) Compute(grades []float64, k int) float64 {
	if m == MetricPrecision {
		return PrecisionAtK(grades, k)
	}
	return NDCGAtK(grades, k)
}

// PrecisionAtK is the fraction of positive grades among the first min(k, len)
// entries.
func PrecisionAtK(grades []float64, k int) float64 {
	if k > len(grades) {
		k = len(grades)
	}
	if k <= 0 {
		return 0
	}
	relevant := 0
	for i := 0; i < k; i++ {
		if grades[i] > 0 {
			relevant++
		}
	}
	return float64(relevant) / float64(k)
}

// DCGAtK sums grade_i / log2(i+1) over positions 1..k. Positions past the end
// of grades count as zero.
func DCGAtK(grades []float64, k int) float64 {
	if k > len(grades) {
		k = len(grades)
	}
	var dcg float64
	for i := 0; i < k; i++ {
		dcg += grades[i] / math.Log2(float64(i+2))
	}
	return dcg
}

// NDCGAtK normalises DCGAtK by the DCG of the ideal ordering. A ranking with
// no positive grade scores 0.
func NDCGAtK(grades []float64, k int) float64 {
	ideal := make([]float64, len(grades))
	copy(ideal, grades)
	sort.Sort(sort.Reverse(sort.Float64Slice(ideal)))

	idcg := DCGAtK(ideal, k)
	if idcg == 0 {
		return 0
	}
	return DCGAtK(grades, k) / idcg
}
