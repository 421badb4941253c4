// Package evaluation drives fold-level retrieval evaluation: it ranks each
// fold's test queries against that fold's training corpus, computes rank
// metrics at every cutoff and pools the values across folds.
package evaluation

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/ranker"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/relevance"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/tracing"
)

// Options configure an Evaluator.
type Options struct {
	Params ranker.Params
	// TermSet is "auto", "symptoms" or "symptoms_herbs".
	TermSet string
	// TrainTag is the file tag of the training corpus, "no_expansion" by
	// default.
	TrainTag string
	Metric   Metric
	Ks       []int
	Folds    int
	Workers  int
}

// FoldResult is the outcome of evaluating one fold.
type FoldResult struct {
	Method    string        `json:"method"`
	Metric    Metric        `json:"metric"`
	Fold      int           `json:"fold"`
	Queries   int           `json:"queries"`
	Documents int           `json:"documents"`
	AvgDocLen float64       `json:"avg_doc_len"`
	Duration  time.Duration `json:"duration"`
	Samples   []KSamples    `json:"samples"`
	// QueryIDs names the queries behind every KSamples.Values, in order.
	QueryIDs  []string      `json:"query_ids,omitempty"`
}

// Sample is one metric value tagged with where it came from.
type Sample struct {
	Value   float64 `json:"value"`
	K       int     `json:"k"`
	Fold    int     `json:"fold"`
	QueryID string  `json:"query_id"`
}

// KSamples are the per-query values of one cutoff, in query order.
type KSamples struct {
	K      int       `json:"k"`
	Values []float64 `json:"values"`
}

// Points flattens the fold's values, cutoffs in configured order and queries
// in file order. QueryID is empty for results that carry no query ids.
func (fr FoldResult) Points() []Sample {
	var out []Sample
	for _, ks := range fr.Samples {
		for i, v := range ks.Values {
			p := Sample{Value: v, K: ks.K, Fold: fr.Fold}
			if i < len(fr.QueryIDs) {
				p.QueryID = fr.QueryIDs[i]
			}
			out = append(out, p)
		}
	}
	return out
}

// Set converts the fold's samples into a MetricSet.
func (fr FoldResult) Set() *MetricSet {
	s := NewMetricSet()
	for _, ks := range fr.Samples {
		s.Append(ks.K, ks.Values...)
	}
	return s
}

type Evaluator struct {
	source  record.Source
	opts    Options
	metrics *metrics.Metrics
	events  kafka.Publisher
	logger  *slog.Logger
}

// NewEvaluator validates opts and fills in defaults. m and events may be nil.
func NewEvaluator(source record.Source, opts Options, m *metrics.Metrics, events kafka.Publisher) (*Evaluator, error) {
	if _, err := ParseMetric(string(opts.Metric)); err != nil {
		return nil, err
	}
	if len(opts.Ks) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage, "no cutoffs configured")
	}
	for _, k := range opts.Ks {
		if k <= 0 {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "cutoff must be positive, got %d", k)
		}
	}
	if opts.Folds <= 0 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "fold count must be positive, got %d", opts.Folds)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.TrainTag == "" {
		opts.TrainTag = MethodTag(BaselineMethod)
	}
	if opts.TermSet == "" {
		opts.TermSet = "auto"
	}
	if events == nil {
		events = kafka.Noop{}
	}
	return &Evaluator{
		source:  source,
		opts:    opts,
		metrics: m,
		events:  events,
		logger:  logger.WithComponent("evaluator"),
	}, nil
}

// Run evaluates every fold of method and returns the pooled samples.
func (e *Evaluator) Run(ctx context.Context, method string) (*MetricSet, error) {
	folds := make([]int, e.opts.Folds)
	for i := range folds {
		folds[i] = i
	}
	results, err := e.RunFolds(ctx, method, folds)
	if err != nil {
		return nil, err
	}
	return e.Pool(ctx, method, results), nil
}

// Pool concatenates fold results in the order given, records the per-k
// means and announces the completed run.
func (e *Evaluator) Pool(ctx context.Context, method string, results []FoldResult) *MetricSet {
	pooled := NewMetricSet(e.opts.Ks...)
	for _, fr := range results {
		pooled.Merge(fr.Set())
	}
	for _, k := range pooled.Ks() {
		mean := pooled.Mean(k)
		if e.metrics != nil {
			e.metrics.SetMean(method, string(e.opts.Metric), k, mean)
		}
		logger.FromContext(ctx).Info("pooled metric",
			"method", method,
			"metric", e.opts.Metric,
			"k", k,
			"samples", pooled.Len(k),
			"mean", mean,
		)
	}
	e.publish(ctx, "run_completed", method, map[string]any{
		"folds":   len(results),
		"queries": pooled.Len(e.opts.Ks[0]),
	})
	return pooled
}

// RunFolds evaluates the listed folds and returns their results in the
// order given. With more than one worker folds run concurrently; every fold
// builds its own index, so results match a sequential run.
func (e *Evaluator) RunFolds(ctx context.Context, method string, folds []int) ([]FoldResult, error) {
	parent := tracing.SpanFromContext(ctx)
	var span *tracing.Span
	if parent == nil {
		ctx, span = tracing.StartSpan(ctx, "run", logger.RunID(ctx))
	} else {
		ctx, span = tracing.StartChildSpan(ctx, "run")
	}
	span.SetAttr("method", method)
	span.SetAttr("folds", len(folds))
	defer func() {
		span.End()
		if parent == nil {
			span.Log(logger.FromContext(ctx))
		}
	}()

	for _, fold := range folds {
		if fold < 0 || fold >= e.opts.Folds {
			return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage,
				"fold %d out of range [0,%d)", fold, e.opts.Folds)
		}
	}

	results := make([]FoldResult, len(folds))
	if e.opts.Workers == 1 || len(folds) < 2 {
		for i, fold := range folds {
			fr, err := e.EvaluateFold(ctx, method, fold)
			if err != nil {
				return nil, err
			}
			results[i] = fr
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, fold := range folds {
		i, fold := i, fold
		g.Go(func() error {
			fr, err := e.EvaluateFold(gctx, method, fold)
			if err != nil {
				return err
			}
			results[i] = fr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// EvaluateFold ranks fold's test queries for method against the fold's
// training corpus.
func (e *Evaluator) EvaluateFold(ctx context.Context, method string, fold int) (FoldResult, error) {
	start := time.Now()
	log := logger.FromContext(ctx).With("method", method, "fold", fold)
	ctx, span := tracing.StartChildSpan(ctx, "fold")
	span.SetAttr("fold", fold)
	defer span.End()

	termSet, err := index.ParseTermSet(e.opts.TermSet, method)
	if err != nil {
		return FoldResult{}, err
	}

	_, loadSpan := tracing.StartChildSpan(ctx, "load")
	corpus, queries, err := record.LoadFold(ctx, e.source, e.opts.TrainTag, MethodTag(method), fold)
	loadSpan.End()
	if err != nil {
		return FoldResult{}, err
	}

	_, indexSpan := tracing.StartChildSpan(ctx, "index")
	idx, err := index.Build(corpus, termSet, false)
	indexSpan.End()
	if err != nil {
		return FoldResult{}, fmt.Errorf("fold %d: %w", fold, err)
	}
	log.Debug("index built",
		"documents", idx.NumDocs(),
		"terms", idx.NumTerms(),
		"avg_doc_len", idx.AvgDocLen(),
		"term_set", termSet,
	)

	rk, err := ranker.New(corpus, idx, e.opts.Params)
	if err != nil {
		return FoldResult{}, fmt.Errorf("fold %d: %w", fold, err)
	}
	judge, err := relevance.Judge(e.opts.Metric.RelevanceMode())
	if err != nil {
		return FoldResult{}, err
	}

	_, rankSpan := tracing.StartChildSpan(ctx, "rank")
	samples := make([]KSamples, len(e.opts.Ks))
	for i, k := range e.opts.Ks {
		samples[i] = KSamples{K: k, Values: make([]float64, 0, len(queries))}
	}
	queryIDs := make([]string, 0, len(queries))
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			rankSpan.End()
			return FoldResult{}, err
		}
		result, err := rk.Rank(q, judge)
		if err != nil {
			rankSpan.End()
			return FoldResult{}, fmt.Errorf("fold %d: %w", fold, err)
		}
		queryIDs = append(queryIDs, result.QueryID)
		grades := result.Grades()
		for i, k := range e.opts.Ks {
			samples[i].Values = append(samples[i].Values, e.opts.Metric.Compute(grades, k))
		}
	}
	rankSpan.SetAttr("queries", len(queries))
	rankSpan.End()

	fr := FoldResult{
		Method:    method,
		Metric:    e.opts.Metric,
		Fold:      fold,
		Queries:   len(queries),
		Documents: len(corpus),
		AvgDocLen: idx.AvgDocLen(),
		Duration:  time.Since(start),
		Samples:   samples,
		QueryIDs:  queryIDs,
	}

	if e.metrics != nil {
		e.metrics.FoldsEvaluatedTotal.WithLabelValues(method, string(e.opts.Metric)).Inc()
		e.metrics.QueriesRankedTotal.WithLabelValues(method).Add(float64(len(queries)))
		e.metrics.DocumentsScoredTotal.WithLabelValues(method).Add(float64(len(queries) * len(corpus)))
		e.metrics.FoldDuration.WithLabelValues(method).Observe(fr.Duration.Seconds())
	}
	log.Info("fold evaluated",
		"metric", e.opts.Metric,
		"queries", fr.Queries,
		"documents", fr.Documents,
		"avg_doc_len", fr.AvgDocLen,
		"duration", fr.Duration,
	)
	e.publish(ctx, "fold_evaluated", method, map[string]any{
		"fold":      fold,
		"queries":   fr.Queries,
		"documents": fr.Documents,
		"duration":  fr.Duration.Seconds(),
	})
	return fr, nil
}

// ResultPath is where Run's output for method is written under dir.
func (e *Evaluator) ResultPath(dir, method string) string {
	return filepath.Join(dir, ResultFileName(method, e.opts.Metric))
}

// publish sends a lifecycle event. Event delivery does not affect the
// evaluation outcome, so failures are only logged.
func (e *Evaluator) publish(ctx context.Context, eventType, method string, fields map[string]any) {
	payload := map[string]any{
		"type":   eventType,
		"method": method,
		"metric": e.opts.Metric,
		"run_id": logger.RunID(ctx),
		"time":   time.Now().UTC(),
	}
	for k, v := range fields {
		payload[k] = v
	}
	if err := e.events.Publish(ctx, kafka.Event{Key: method, Value: payload}); err != nil {
		e.logger.Warn("publishing evaluation event", "type", eventType, "error", err)
	}
}
