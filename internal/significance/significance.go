// Package significance compares the pooled metric values of a candidate
// expansion method with the baseline using a paired t-test per cutoff.
package significance

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/evaluation"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

// TTest is the result of a paired two-sided t-test.
type TTest struct {
	Statistic float64 `json:"t"`
	PValue    float64 `json:"p_value"`
	DF        int     `json:"df"`
}

// Report is the comparison at one cutoff.
type Report struct {
	K             int     `json:"k"`
	Samples       int     `json:"samples"`
	BaselineMean  float64 `json:"baseline_mean"`
	CandidateMean float64 `json:"candidate_mean"`
	TTest
}

// Significant reports whether the difference is significant at level alpha.
func (r Report) Significant(alpha float64) bool {
	return r.PValue < alpha
}

// MarshalJSON writes an infinite statistic as the string "+Inf" or "-Inf".
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	var t any = r.Statistic
	if math.IsInf(r.Statistic, 0) {
		t = fmt.Sprint(r.Statistic)
	}
	return json.Marshal(struct {
		plain
		Statistic any `json:"t"`
	}{plain(r), t})
}

// PairedTTest tests whether the mean of a[i]-b[i] differs from zero. The sign
// of the statistic follows a-b: a positive t means a is larger.
func PairedTTest(a, b []float64) (TTest, error) {
	if len(a) != len(b) {
		return TTest{}, apperrors.Newf(apperrors.ErrMismatchedSample, apperrors.ExitIntegrity,
			"paired samples differ in length: %d vs %d", len(a), len(b))
	}
	n := len(a)
	if n < 2 {
		return TTest{}, apperrors.Newf(apperrors.ErrInsufficientSamples, apperrors.ExitIntegrity,
			"paired t-test needs at least 2 samples, got %d", n)
	}

	diffs := make([]float64, n)
	for i := range a {
		diffs[i] = a[i] - b[i]
	}
	mean := stat.Mean(diffs, nil)
	sd := stat.StdDev(diffs, nil)
	df := n - 1

	if sd == 0 {
		if mean == 0 {
			return TTest{Statistic: 0, PValue: 1, DF: df}, nil
		}
		return TTest{Statistic: math.Copysign(math.Inf(1), mean), PValue: 0, DF: df}, nil
	}

	t := mean / (sd / math.Sqrt(float64(n)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	return TTest{Statistic: t, PValue: 2 * dist.Survival(math.Abs(t)), DF: df}, nil
}

// Compare tests baseline against candidate at every cutoff of the baseline,
// in ascending order. Both sets must hold the same number of samples per
// cutoff, since samples are paired by position.
func Compare(baseline, candidate *evaluation.MetricSet) ([]Report, error) {
	ks := baseline.SortedKs()
	if len(ks) == 0 {
		return nil, apperrors.New(apperrors.ErrInsufficientSamples, apperrors.ExitIntegrity, "baseline has no samples")
	}
	reports := make([]Report, 0, len(ks))
	for _, k := range ks {
		if !candidate.Has(k) {
			return nil, apperrors.Newf(apperrors.ErrMismatchedSample, apperrors.ExitIntegrity,
				"candidate has no samples for k=%d", k)
		}
		base, cand := baseline.Samples(k), candidate.Samples(k)
		if len(base) != len(cand) {
			return nil, apperrors.Newf(apperrors.ErrMismatchedSample, apperrors.ExitIntegrity,
				"k=%d: baseline has %d samples, candidate has %d", k, len(base), len(cand))
		}
		tt, err := PairedTTest(base, cand)
		if err != nil {
			return nil, fmt.Errorf("k=%d: %w", k, err)
		}
		reports = append(reports, Report{
			K:             k,
			Samples:       len(base),
			BaselineMean:  stat.Mean(base, nil),
			CandidateMean: stat.Mean(cand, nil),
			TTest:         tt,
		})
	}
	return reports, nil
}

// WriteText prints reports as an aligned table.
func WriteText(w io.Writer, method string, reports []Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "k\tsamples\tbaseline\t%s\tt\tp-value\n", method)
	for _, r := range reports {
		fmt.Fprintf(tw, "%d\t%d\t%.6f\t%.6f\t%.4f\t%.4g\n",
			r.K, r.Samples, r.BaselineMean, r.CandidateMean, r.Statistic, r.PValue)
	}
	return tw.Flush()
}
