package evaluation

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

type memHash struct {
	data map[string]map[string]string
	ttls map[string]time.Duration
}

func newMemHash() *memHash {
	return &memHash{data: map[string]map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memHash) HSet(_ context.Context, key, field string, value []byte, ttl time.Duration) error {
	if m.data[key] == nil {
		m.data[key] = map[string]string{}
	}
	m.data[key][field] = string(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memHash) HGetAll(_ context.Context, key string) (map[string]string, error) {
	out := map[string]string{}
	for f, v := range m.data[key] {
		out[f] = v
	}
	return out, nil
}

func TestExchangeCollectsInFoldOrder(t *testing.T) {
	store := newMemHash()
	x := NewExchange(store, "", time.Hour)
	ctx := context.Background()

	e := newTestEvaluator(t, foldData(3), MetricNDCG, 3, 1)
	want, err := e.Run(ctx, "no")
	if err != nil {
		t.Fatal(err)
	}
	// publish out of order, as independent workers would
	for _, fold := range []int{2, 0, 1} {
		fr, err := e.EvaluateFold(ctx, "no", fold)
		if err != nil {
			t.Fatal(err)
		}
		if err := x.Publish(ctx, fr); err != nil {
			t.Fatal(err)
		}
	}
	if key := x.Key("no", MetricNDCG); key != "qeval:no:ndcg" || store.ttls[key] != time.Hour {
		t.Fatalf("key %q ttl %v", key, store.ttls[key])
	}

	got, err := x.Collect(ctx, "no", MetricNDCG, 3, []int{1, 3})
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range want.Ks() {
		a, b := want.Samples(k), got.Samples(k)
		if len(a) != len(b) {
			t.Fatalf("k=%d: %d vs %d samples", k, len(a), len(b))
		}
		for i := range a {
			if a[i] != b[i] {
				t.Errorf("k=%d sample %d: %v vs %v", k, i, a[i], b[i])
			}
		}
	}
}

func TestExchangeMissingFold(t *testing.T) {
	store := newMemHash()
	x := NewExchange(store, "test", 0)
	ctx := context.Background()
	fr := FoldResult{Method: "synonym", Metric: MetricPrecision, Fold: 0, Samples: []KSamples{{K: 10, Values: []float64{1}}}}
	if err := x.Publish(ctx, fr); err != nil {
		t.Fatal(err)
	}
	_, err := x.Collect(ctx, "synonym", MetricPrecision, 2, []int{10})
	if !errors.Is(err, apperrors.ErrFoldMissing) {
		t.Fatalf("expected ErrFoldMissing, got %v", err)
	}
}

func TestExchangeMalformedFold(t *testing.T) {
	store := newMemHash()
	store.data["qeval:no:ndcg"] = map[string]string{"0": "{not json"}
	_, err := NewExchange(store, "qeval", 0).Collect(context.Background(), "no", MetricNDCG, 1, []int{10})
	if !errors.Is(err, apperrors.ErrMalformedResult) {
		t.Fatalf("expected ErrMalformedResult, got %v", err)
	}
}
