package significance

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/evaluation"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

func TestPairedTTestKnownValue(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	b := []float64{2, 2, 4, 4, 7}
	tt, err := PairedTTest(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(tt.Statistic-(-2.138089935299395)) > 1e-9 {
		t.Errorf("t = %v, want -2.1381", tt.Statistic)
	}
	if tt.DF != 4 {
		t.Errorf("df = %d, want 4", tt.DF)
	}
	if math.Abs(tt.PValue-0.0993) > 1e-3 {
		t.Errorf("p = %v, want about 0.0993", tt.PValue)
	}
}

func TestPairedTTestSymmetry(t *testing.T) {
	a := []float64{0.1, 0.5, 0.3, 0.9, 0.4}
	b := []float64{0.2, 0.4, 0.6, 0.7, 0.1}
	ab, _ := PairedTTest(a, b)
	ba, _ := PairedTTest(b, a)
	if ab.Statistic != -ba.Statistic || ab.PValue != ba.PValue {
		t.Errorf("swapping samples should negate t only: %+v vs %+v", ab, ba)
	}
}

func TestPairedTTestZeroVariance(t *testing.T) {
	same := []float64{0.3, 0.3, 0.7}
	tt, err := PairedTTest(same, same)
	if err != nil {
		t.Fatal(err)
	}
	if tt.Statistic != 0 || tt.PValue != 1 {
		t.Errorf("identical samples: %+v, want t=0 p=1", tt)
	}

	tt, err = PairedTTest([]float64{1, 1, 1}, []float64{0.5, 0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsInf(tt.Statistic, 1) || tt.PValue != 0 {
		t.Errorf("constant shift: %+v, want t=+Inf p=0", tt)
	}
}

func TestPairedTTestErrors(t *testing.T) {
	if _, err := PairedTTest([]float64{1, 2}, []float64{1}); !errors.Is(err, apperrors.ErrMismatchedSample) {
		t.Errorf("expected ErrMismatchedSample, got %v", err)
	}
	if _, err := PairedTTest([]float64{1}, []float64{2}); !errors.Is(err, apperrors.ErrInsufficientSamples) {
		t.Errorf("expected ErrInsufficientSamples, got %v", err)
	}
}

func TestCompareDetectsConsistentShift(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	baseline := evaluation.NewMetricSet(10)
	candidate := evaluation.NewMetricSet(10)
	for i := 0; i < 100; i++ {
		v := 0.40 + (rng.Float64()-0.5)*0.2
		baseline.Append(10, v)
		candidate.Append(10, v+0.15)
	}

	reports, err := Compare(baseline, candidate)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports", len(reports))
	}
	r := reports[0]
	if r.Samples != 100 {
		t.Errorf("samples = %d", r.Samples)
	}
	if math.Abs((r.CandidateMean-r.BaselineMean)-0.15) > 1e-9 {
		t.Errorf("mean difference = %v, want 0.15", r.CandidateMean-r.BaselineMean)
	}
	if !(r.Statistic < 0) {
		t.Errorf("baseline below candidate should give negative t, got %v", r.Statistic)
	}
	if !r.Significant(0.001) {
		t.Errorf("p = %v, want < 0.001", r.PValue)
	}
}

func TestCompareMismatchedSamples(t *testing.T) {
	baseline := evaluation.NewMetricSet(10, 20)
	baseline.Append(10, 0.1, 0.2, 0.3)
	baseline.Append(20, 0.1, 0.2, 0.3)
	candidate := evaluation.NewMetricSet(10, 20)
	candidate.Append(10, 0.1, 0.2, 0.3)
	candidate.Append(20, 0.1, 0.2)

	if _, err := Compare(baseline, candidate); !errors.Is(err, apperrors.ErrMismatchedSample) {
		t.Fatalf("expected ErrMismatchedSample, got %v", err)
	}

	missingK := evaluation.NewMetricSet(10)
	missingK.Append(10, 0.1, 0.2, 0.3)
	if _, err := Compare(baseline, missingK); !errors.Is(err, apperrors.ErrMismatchedSample) {
		t.Fatalf("expected ErrMismatchedSample for missing k, got %v", err)
	}
}

func TestCompareOrdersCutoffs(t *testing.T) {
	baseline := evaluation.NewMetricSet(30, 10)
	candidate := evaluation.NewMetricSet(10, 30)
	for _, k := range []int{10, 30} {
		baseline.Append(k, 0.1, 0.4, 0.2)
		candidate.Append(k, 0.3, 0.5, 0.2)
	}
	reports, err := Compare(baseline, candidate)
	if err != nil {
		t.Fatal(err)
	}
	if reports[0].K != 10 || reports[1].K != 30 {
		t.Errorf("cutoff order = %d, %d", reports[0].K, reports[1].K)
	}
}

func TestReportOutput(t *testing.T) {
	reports := []Report{
		{K: 10, Samples: 3, BaselineMean: 0.4, CandidateMean: 0.55, TTest: TTest{Statistic: math.Inf(-1), PValue: 0, DF: 2}},
	}
	data, err := json.Marshal(reports)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"t":"-Inf"`) || !strings.Contains(string(data), `"df":2`) {
		t.Errorf("json = %s", data)
	}

	var buf bytes.Buffer
	if err := WriteText(&buf, "synonym", reports); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "synonym") || !strings.Contains(buf.String(), "0.550000") {
		t.Errorf("text = %q", buf.String())
	}
}
