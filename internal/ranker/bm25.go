package ranker

import "math"

// Params are the BM25 constants. They are configuration, not fixed: runs
// with different k1 values are compared in the same study.
type Params struct {
	K1 float64
	B  float64
	// ClampNegativeIDF floors idf at zero. Off by default: terms present in
	// more than half of the corpus then lower the score.
	ClampNegativeIDF bool
}

// DefaultParams returns k1=1.5, b=0.75, unclamped idf.
func DefaultParams() Params {
	return Params{K1: 1.5, B: 0.75}
}

// CorpusStats is the view of a frozen index the scorer needs.
type CorpusStats interface {
	DocFreq(term string) int
	NumDocs() int
	AvgDocLen() float64
}

// Score computes the BM25 score of doc for query. Both are code lists;
// every code occurs at most once in a document, so term frequency is 1 and
// only codes shared by query and document contribute.
func Score(query, doc []string, stats CorpusStats, p Params) float64 {
	return scoreSet(query, termSet(doc), stats, p)
}

func termSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}

func scoreSet(query []string, doc map[string]struct{}, stats CorpusStats, p Params) float64 {
	if len(query) == 0 || len(doc) == 0 {
		return 0
	}
	tfNorm := computeTFNorm(float64(len(doc)), stats.AvgDocLen(), p)
	totalDocs := int64(stats.NumDocs())

	var score float64
	counted := make(map[string]struct{}, len(query))
	for _, term := range query {
		if _, ok := doc[term]; !ok {
			continue
		}
		if _, ok := counted[term]; ok {
			continue
		}
		counted[term] = struct{}{}
		idf := computeIDF(totalDocs, int64(stats.DocFreq(term)), p.ClampNegativeIDF)
		score += tfNorm * idf
	}
	return score
}

// computeIDF is the Robertson–Spärck Jones idf, ln((N-df+0.5)/(df+0.5)).
func computeIDF(totalDocs int64, docFreq int64, clamp bool) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	idf := math.Log(numerator / denominator)
	if clamp && idf < 0 {
		return 0
	}
	return idf
}

// computeTFNorm is the BM25 tf component for a single occurrence.
func computeTFNorm(docLength float64, avgDocLength float64, p Params) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	return (p.K1 + 1) / (1 + p.K1*(1-p.B+p.B*lengthRatio))
}
