package expansion

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/logger"
)

// Stats summarises one expanded query file.
type Stats struct {
	Queries   int
	Expanded  int
	Terms     int
	Malformed int
}

// ExpandFile writes a copy of the query file in to out with each query's
// symptom field extended by ex. Lines that do not parse are copied unchanged
// so the evaluator's loader reports them.
func ExpandFile(in, out string, ex Expander) (Stats, error) {
	lines, err := record.ReadLines(in)
	if err != nil {
		return Stats{}, err
	}
	var stats Stats
	written := make([]string, 0, len(lines))
	for i, line := range lines {
		if line == "" {
			continue
		}
		q, err := record.ParseLine(line)
		if err != nil {
			stats.Malformed++
			slog.Warn("copying malformed query unchanged", "source", in, "line", i+1, "error", err)
			written = append(written, line)
			continue
		}
		stats.Queries++
		terms := ex.Expand(q.Symptoms)
		expanded := q.WithSymptoms(terms)
		if added := len(expanded.Symptoms) - len(q.Symptoms); added > 0 {
			stats.Expanded++
			stats.Terms += added
		}
		written = append(written, record.FormatLine(expanded))
	}
	if err := record.WriteLines(out, written); err != nil {
		return stats, fmt.Errorf("writing expanded queries: %w", err)
	}
	return stats, nil
}

// BuildFunc prepares the expander of one fold from its training corpus.
type BuildFunc func(fold int, train record.Corpus) (Expander, error)

// Generator writes "test_<tag>_<fold>.txt" files from the baseline fold
// files in a data directory.
type Generator struct {
	dataDir  string
	trainTag string
	folds    int
	loader   *record.Loader
}

func NewGenerator(dataDir, trainTag string, folds int, loader *record.Loader) *Generator {
	return &Generator{dataDir: dataDir, trainTag: trainTag, folds: folds, loader: loader}
}

// Run expands the baseline queries of every fold into files tagged outTag.
func (g *Generator) Run(ctx context.Context, outTag string, build BuildFunc) error {
	log := logger.FromContext(ctx).With("component", "expansion", "tag", outTag)
	for fold := 0; fold < g.folds; fold++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		train, err := g.loader.Load(g.path(record.SplitTrain, g.trainTag, fold))
		if err != nil {
			return fmt.Errorf("fold %d: loading training corpus: %w", fold, err)
		}
		ex, err := build(fold, train)
		if err != nil {
			return fmt.Errorf("fold %d: %w", fold, err)
		}
		stats, err := ExpandFile(
			g.path(record.SplitTest, g.trainTag, fold),
			g.path(record.SplitTest, outTag, fold),
			ex,
		)
		if err != nil {
			return fmt.Errorf("fold %d: %w", fold, err)
		}
		log.Info("queries expanded",
			"fold", fold,
			"queries", stats.Queries,
			"expanded", stats.Expanded,
			"terms", stats.Terms,
		)
	}
	return nil
}

func (g *Generator) path(split record.Split, tag string, fold int) string {
	return filepath.Join(g.dataDir, record.FileName(split, tag, fold))
}
