package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/evaluation"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/kafka"
)

func TestMethodMetricArgs(t *testing.T) {
	validate := MethodMetricArgs(evaluation.Methods)
	tests := []struct {
		name string
		args []string
		ok   bool
	}{
		{"valid", []string{"synonym", "ndcg"}, true},
		{"baseline precision", []string{"no", "precision"}, true},
		{"missing metric", []string{"synonym"}, false},
		{"unknown method", []string{"tfidf", "ndcg"}, false},
		{"result-only method", []string{"lda_symptoms", "ndcg"}, false},
		{"unknown metric", []string{"no", "map"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate(&cobra.Command{}, tt.args)
			if tt.ok {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if code := apperrors.ExitCode(err); code != apperrors.ExitUsage {
				t.Errorf("exit code = %d, want %d", code, apperrors.ExitUsage)
			}
		})
	}
}

func TestSetupDefaults(t *testing.T) {
	env, err := Setup("")
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close()
	if _, ok := env.Events.(kafka.Noop); !ok {
		t.Errorf("events = %T, want kafka.Noop when Kafka is disabled", env.Events)
	}
	if len(env.Health.Names()) != 0 {
		t.Errorf("health checks registered before any connection: %v", env.Health.Names())
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	src, err := env.Source(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := src.(*record.FileSource); !ok {
		t.Errorf("source = %T, want *record.FileSource", src)
	}
}

func TestSetupBadConfigIsUsageError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("bm25: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Setup(path)
	if apperrors.ExitCode(err) != apperrors.ExitUsage {
		t.Fatalf("exit code = %d (%v), want usage", apperrors.ExitCode(err), err)
	}
}

func TestLoaderCountsSkippedLines(t *testing.T) {
	env, err := Setup("")
	if err != nil {
		t.Fatal(err)
	}
	defer env.Close()

	path := filepath.Join(t.TempDir(), "train_no_expansion_0.txt")
	data := "flu:\ta\t1970\t2015\ts1:\th1:\nbroken line\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	l := env.Loader()
	l.Strict = false
	recs, err := l.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	got := testutil.ToFloat64(env.Metrics.RecordsSkippedTotal.WithLabelValues("train_no_expansion_0.txt"))
	if got != 1 {
		t.Errorf("records skipped = %v, want 1", got)
	}
}

func TestCloseRunsInReverse(t *testing.T) {
	var order []int
	env := &Env{}
	for i := 0; i < 3; i++ {
		i := i
		env.closers = append(env.closers, func() error {
			order = append(order, i)
			if i == 1 {
				return errors.New("close failed")
			}
			return nil
		})
	}
	if err := env.Close(); err == nil {
		t.Error("expected joined close error")
	}
	if len(order) != 3 || order[0] != 2 || order[2] != 0 {
		t.Errorf("close order = %v, want [2 1 0]", order)
	}
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	if len(a) != 16 || a == b {
		t.Errorf("run ids %q, %q", a, b)
	}
}
