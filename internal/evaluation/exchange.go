package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

// HashStore is the subset of the Redis client the exchange needs.
type HashStore interface {
	HSet(ctx context.Context, key, field string, value []byte, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
}

// Exchange lets folds evaluated by separate processes be gathered into one
// result. Each fold is stored as JSON in the hash "<prefix>:<method>:<metric>"
// under its fold number.
type Exchange struct {
	store  HashStore
	prefix string
	ttl    time.Duration
}

func NewExchange(store HashStore, prefix string, ttl time.Duration) *Exchange {
	if prefix == "" {
		prefix = "qeval"
	}
	return &Exchange{store: store, prefix: prefix, ttl: ttl}
}

func (x *Exchange) Key(method string, metric Metric) string {
	return fmt.Sprintf("%s:%s:%s", x.prefix, method, metric)
}

// Publish stores one fold's result, replacing an earlier one for that fold.
func (x *Exchange) Publish(ctx context.Context, fr FoldResult) error {
	data, err := json.Marshal(fr)
	if err != nil {
		return fmt.Errorf("encoding fold %d: %w", fr.Fold, err)
	}
	if err := x.store.HSet(ctx, x.Key(fr.Method, fr.Metric), strconv.Itoa(fr.Fold), data, x.ttl); err != nil {
		return fmt.Errorf("publishing fold %d: %w", fr.Fold, err)
	}
	return nil
}

// Collect gathers folds 0..folds-1 and pools them in fold order. Every fold
// must be present.
func (x *Exchange) Collect(ctx context.Context, method string, metric Metric, folds int, ks []int) (*MetricSet, error) {
	key := x.Key(method, metric)
	fields, err := x.store.HGetAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("collecting %s: %w", key, err)
	}

	pooled := NewMetricSet(ks...)
	for fold := 0; fold < folds; fold++ {
		raw, ok := fields[strconv.Itoa(fold)]
		if !ok {
			return nil, apperrors.Newf(apperrors.ErrFoldMissing, apperrors.ExitIntegrity,
				"%s has no result for fold %d", key, fold)
		}
		var fr FoldResult
		if err := json.Unmarshal([]byte(raw), &fr); err != nil {
			return nil, apperrors.Newf(apperrors.ErrMalformedResult, apperrors.ExitIntegrity,
				"%s fold %d: %v", key, fold, err)
		}
		pooled.Merge(fr.Set())
	}
	return pooled, nil
}
