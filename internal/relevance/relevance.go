// Package relevance turns the disease overlap between a query visit and a
// corpus visit into a relevance grade.
package relevance

import (
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

// Mode selects graded or binary judgments.
type Mode string

const (
	// ModeGraded is the overlap fraction in [0,1], used for NDCG.
	ModeGraded Mode = "graded"
	// ModeBinary is 1 for any overlap and 0 otherwise, used for precision.
	ModeBinary Mode = "binary"
)

// Func grades one (query diseases, document diseases) pair.
type Func func(query, doc []string) (float64, error)

// Judge returns the grading function for mode.
func Judge(mode Mode) (Func, error) {
	switch mode {
	case ModeGraded:
		return Graded, nil
	case ModeBinary:
		return func(query, doc []string) (float64, error) {
			return Binary(query, doc), nil
		}, nil
	default:
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unknown relevance mode %q", mode)
	}
}

// Graded returns |set(query) ∩ set(doc)| / len(query). The denominator is the
// raw length of the query's disease list, duplicates included.
func Graded(query, doc []string) (float64, error) {
	if len(query) == 0 {
		return 0, apperrors.New(apperrors.ErrUndefinedRelevance, apperrors.ExitIntegrity, "query has no disease labels")
	}
	return float64(overlap(query, doc)) / float64(len(query)), nil
}

// Binary returns 1 when query and doc share at least one disease.
func Binary(query, doc []string) float64 {
	if overlap(query, doc) > 0 {
		return 1
	}
	return 0
}

func overlap(query, doc []string) int {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	inDoc := make(map[string]struct{}, len(doc))
	for _, d := range doc {
		inDoc[d] = struct{}{}
	}
	counted := make(map[string]struct{}, len(query))
	n := 0
	for _, q := range query {
		if _, ok := counted[q]; ok {
			continue
		}
		counted[q] = struct{}{}
		if _, ok := inDoc[q]; ok {
			n++
		}
	}
	return n
}
