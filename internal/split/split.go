// Package split partitions a cleaned record file into the train/test fold
// files that evaluation runs read.
package split

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

// Fold holds the lines of one train/test partition.
type Fold struct {
	Test  []string
	Train []string
}

// Bounds returns the [start, end) ranges that cut n items into parts
// near-equal consecutive pieces, using round(n/parts*i) as boundaries.
func Bounds(n, parts int) [][2]int {
	size := float64(n) / float64(parts)
	bounds := make([][2]int, parts)
	for i := range bounds {
		bounds[i] = [2]int{
			int(math.Round(size * float64(i))),
			int(math.Round(size * float64(i+1))),
		}
	}
	return bounds
}

// Folds shuffles line positions with seed and cuts them into folds pieces.
// Fold i tests on piece i, in shuffled order, and trains on every other
// line in file order.
func Folds(lines []string, folds int, seed int64) ([]Fold, error) {
	if folds < 2 {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "need at least 2 folds, got %d", folds)
	}
	if len(lines) < folds {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage,
			"%d records cannot fill %d folds", len(lines), folds)
	}
	order := rand.New(rand.NewSource(seed)).Perm(len(lines))

	out := make([]Fold, folds)
	for i, b := range Bounds(len(lines), folds) {
		testIdx := order[b[0]:b[1]]
		inTest := make(map[int]struct{}, len(testIdx))
		test := make([]string, 0, len(testIdx))
		for _, idx := range testIdx {
			inTest[idx] = struct{}{}
			test = append(test, lines[idx])
		}
		train := make([]string, 0, len(lines)-len(testIdx))
		for idx, line := range lines {
			if _, ok := inTest[idx]; !ok {
				train = append(train, line)
			}
		}
		out[i] = Fold{Test: test, Train: train}
	}
	return out, nil
}

// WriteFolds splits the non-blank lines of in and writes
// "test_<tag>_<i>.txt" and "train_<tag>_<i>.txt" under dir.
func WriteFolds(in, dir, tag string, folds int, seed int64) error {
	raw, err := record.ReadLines(in)
	if err != nil {
		return err
	}
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l != "" {
			lines = append(lines, l)
		}
	}
	parts, err := Folds(lines, folds, seed)
	if err != nil {
		return err
	}
	for i, f := range parts {
		testPath := filepath.Join(dir, record.FileName(record.SplitTest, tag, i))
		if err := record.WriteLines(testPath, f.Test); err != nil {
			return fmt.Errorf("fold %d: %w", i, err)
		}
		trainPath := filepath.Join(dir, record.FileName(record.SplitTrain, tag, i))
		if err := record.WriteLines(trainPath, f.Train); err != nil {
			return fmt.Errorf("fold %d: %w", i, err)
		}
		slog.Debug("fold written", "fold", i, "test", len(f.Test), "train", len(f.Train))
	}
	slog.Info("folds written", "records", len(lines), "folds", folds, "dir", dir)
	return nil
}
