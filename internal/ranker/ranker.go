// Package ranker scores corpus visits against a query visit with BM25 and
// orders them for evaluation.
package ranker

import (
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/relevance"
)

// RankedDoc is one corpus document in a query's ranking.
type RankedDoc struct {
	DocID   string  `json:"doc_id"`
	Ordinal int     `json:"ordinal"`
	Grade   float64 `json:"grade"`
	Score   float64 `json:"score"`
}

// RankedResult is the full ranking of the corpus for one query, best first.
type RankedResult struct {
	QueryID string      `json:"query_id"`
	Docs    []RankedDoc `json:"docs"`
}

// Grades returns the relevance grades in rank order.
func (r RankedResult) Grades() []float64 {
	grades := make([]float64, len(r.Docs))
	for i, d := range r.Docs {
		grades[i] = d.Grade
	}
	return grades
}

type corpusDoc struct {
	id       string
	diseases []string
	terms    map[string]struct{}
}

// Ranker ranks queries against one fold's corpus. The document term sets are
// prepared once; a Ranker is read-only afterwards and may be shared by
// goroutines ranking different queries.
type Ranker struct {
	idx    *index.Index
	docs   []corpusDoc
	params Params
}

// New prepares a Ranker over corpus, which must be the corpus idx was built
// from, in the same order.
func New(corpus record.Corpus, idx *index.Index, params Params) (*Ranker, error) {
	if len(corpus) != idx.NumDocs() {
		return nil, fmt.Errorf("corpus has %d documents but index has %d", len(corpus), idx.NumDocs())
	}
	docs := make([]corpusDoc, len(corpus))
	for i, r := range corpus {
		docs[i] = corpusDoc{
			id:       r.ID(),
			diseases: r.Diseases,
			terms:    termSet(idx.DocTerms(r)),
		}
	}
	return &Ranker{idx: idx, docs: docs, params: params}, nil
}

// NumDocs is the corpus size.
func (rk *Ranker) NumDocs() int {
	return len(rk.docs)
}

// Rank scores every corpus document against the query's symptom field,
// which may already hold expansion terms, and sorts by score descending.
// Equal scores keep corpus order.
func (rk *Ranker) Rank(query record.VisitRecord, judge relevance.Func) (RankedResult, error) {
	result := RankedResult{
		QueryID: query.ID(),
		Docs:    make([]RankedDoc, len(rk.docs)),
	}
	for i, doc := range rk.docs {
		grade, err := judge(query.Diseases, doc.diseases)
		if err != nil {
			return RankedResult{}, fmt.Errorf("judging query %s: %w", result.QueryID, err)
		}
		result.Docs[i] = RankedDoc{
			DocID:   doc.id,
			Ordinal: i,
			Grade:   grade,
			Score:   scoreSet(query.Symptoms, doc.terms, rk.idx, rk.params),
		}
	}
	sort.SliceStable(result.Docs, func(i, j int) bool {
		return result.Docs[i].Score > result.Docs[j].Score
	})
	return result, nil
}

// Rank ranks a single query against corpus. Evaluating many queries over the
// same corpus should go through New and Ranker.Rank instead.
func Rank(query record.VisitRecord, corpus record.Corpus, idx *index.Index, judge relevance.Func, p Params) (RankedResult, error) {
	rk, err := New(corpus, idx, p)
	if err != nil {
		return RankedResult{}, err
	}
	return rk.Rank(query, judge)
}
