// Package index builds the per-fold inverted index: document frequencies,
// optional posting lists and the corpus average document length. An Index
// only exists after Builder.Freeze, so the average length can never be read
// while it is still being accumulated.
package index

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

// TermSet selects which record fields make up a document's terms.
type TermSet string

const (
	TermSetSymptoms      TermSet = "symptoms"
	TermSetSymptomsHerbs TermSet = "symptoms_herbs"
)

// TermSetForMethod derives the document term set from an evaluation method
// name: mixed, both and synonym expansions put herbs into queries, so
// documents carry herbs too.
func TermSetForMethod(method string) TermSet {
	for _, wide := range []string{"mixed", "both", "synonym"} {
		if strings.Contains(method, wide) {
			return TermSetSymptomsHerbs
		}
	}
	return TermSetSymptoms
}

// ParseTermSet resolves a configured term set; "auto" or "" defers to the
// method name.
func ParseTermSet(value string, method string) (TermSet, error) {
	switch value {
	case "", "auto":
		return TermSetForMethod(method), nil
	case string(TermSetSymptoms):
		return TermSetSymptoms, nil
	case string(TermSetSymptomsHerbs):
		return TermSetSymptomsHerbs, nil
	default:
		return "", apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "unknown term set %q", value)
	}
}

// DocTerms returns the effective term list of a record. Symptoms and herbs
// are already deduplicated per field; a code present in both is kept once.
func (ts TermSet) DocTerms(r record.VisitRecord) []string {
	if ts != TermSetSymptomsHerbs {
		return r.Symptoms
	}
	terms := make([]string, 0, len(r.Symptoms)+len(r.Herbs))
	seen := make(map[string]struct{}, len(r.Symptoms)+len(r.Herbs))
	for _, group := range [][]string{r.Symptoms, r.Herbs} {
		for _, t := range group {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			terms = append(terms, t)
		}
	}
	return terms
}

// TermEntry is one term of a snapshot with its document frequency and, for
// posting-list indexes, the ordinals of the containing documents.
type TermEntry struct {
	Term     string
	DocFreq  int
	Postings []int
}

// Builder accumulates term statistics. It is not safe for concurrent use;
// each fold owns its own builder.
type Builder struct {
	termSet      TermSet
	withPostings bool
	docFreq      map[string]int
	postings     map[string][]int
	docCount     int
	totalLen     int64
	frozen       bool
}

func NewBuilder(termSet TermSet, withPostings bool) *Builder {
	b := &Builder{
		termSet:      termSet,
		withPostings: withPostings,
		docFreq:      make(map[string]int),
	}
	if withPostings {
		b.postings = make(map[string][]int)
	}
	return b
}

// Add indexes one document. Its ordinal is the number of documents added
// before it.
func (b *Builder) Add(r record.VisitRecord) error {
	if b.frozen {
		return apperrors.ErrIndexFrozen
	}
	terms := b.termSet.DocTerms(r)
	for _, term := range terms {
		b.docFreq[term]++
		if b.withPostings {
			b.postings[term] = append(b.postings[term], b.docCount)
		}
	}
	b.totalLen += int64(len(terms))
	b.docCount++
	return nil
}

// Freeze finishes construction. The average document length is computed
// here, once, after every document has been added.
func (b *Builder) Freeze() (*Index, error) {
	if b.frozen {
		return nil, apperrors.ErrIndexFrozen
	}
	if b.docCount == 0 {
		return nil, apperrors.New(apperrors.ErrEmptyCorpus, apperrors.ExitIntegrity, "no documents to index")
	}
	b.frozen = true
	return &Index{
		termSet:   b.termSet,
		docFreq:   b.docFreq,
		postings:  b.postings,
		numDocs:   b.docCount,
		avgDocLen: float64(b.totalLen) / float64(b.docCount),
	}, nil
}

// Build indexes every record of corpus and freezes the result.
func Build(corpus record.Corpus, termSet TermSet, withPostings bool) (*Index, error) {
	b := NewBuilder(termSet, withPostings)
	for _, r := range corpus {
		if err := b.Add(r); err != nil {
			return nil, fmt.Errorf("indexing %s: %w", r.ID(), err)
		}
	}
	return b.Freeze()
}

// Index is a frozen inverted index. It is read-only and safe for concurrent
// readers.
type Index struct {
	termSet   TermSet
	docFreq   map[string]int
	postings  map[string][]int
	numDocs   int
	avgDocLen float64
}

func (idx *Index) TermSet() TermSet {
	return idx.termSet
}

// DocFreq returns the number of documents containing term, 0 if unseen.
func (idx *Index) DocFreq(term string) int {
	return idx.docFreq[term]
}

// Postings returns the ordinals of the documents containing term, or nil
// when the index was built without posting lists. The slice must not be
// modified.
func (idx *Index) Postings(term string) []int {
	if idx.postings == nil {
		return nil
	}
	return idx.postings[term]
}

func (idx *Index) HasPostings() bool {
	return idx.postings != nil
}

func (idx *Index) NumDocs() int {
	return idx.numDocs
}

func (idx *Index) AvgDocLen() float64 {
	return idx.avgDocLen
}

func (idx *Index) NumTerms() int {
	return len(idx.docFreq)
}

// DocTerms returns the effective term list of r under this index's term set.
func (idx *Index) DocTerms(r record.VisitRecord) []string {
	return idx.termSet.DocTerms(r)
}

// Snapshot returns every term sorted lexically.
func (idx *Index) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(idx.docFreq))
	for term, df := range idx.docFreq {
		entries = append(entries, TermEntry{
			Term:     term,
			DocFreq:  df,
			Postings: idx.Postings(term),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}
