package expansion

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

type codePair struct {
	a, b string
}

// Similarity holds pairwise code similarities.
type Similarity struct {
	known  map[string]struct{}
	scores map[codePair]float64
}

// LoadSimilarity reads a similarity matrix file. See ReadSimilarity.
func LoadSimilarity(path string, codes []string) (*Similarity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening similarity matrix: %w", err)
	}
	defer f.Close()
	return ReadSimilarity(f, path, codes)
}

// ReadSimilarity parses "i j score" lines, where i and j are 1-based
// positions in codes. Scores are stored as absolute values; when both
// orientations of a pair appear, the first one read is kept.
func ReadSimilarity(r io.Reader, name string, codes []string) (*Similarity, error) {
	s := &Similarity{
		known:  make(map[string]struct{}, len(codes)),
		scores: make(map[codePair]float64),
	}
	for _, c := range codes {
		s.known[c] = struct{}{}
	}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, apperrors.Newf(apperrors.ErrMalformedRecord, apperrors.ExitIntegrity,
				"%s line %d: want 3 fields, got %d", name, lineNo, len(fields))
		}
		i, errI := strconv.Atoi(fields[0])
		j, errJ := strconv.Atoi(fields[1])
		score, errS := strconv.ParseFloat(fields[2], 64)
		if errI != nil || errJ != nil || errS != nil {
			return nil, apperrors.Newf(apperrors.ErrMalformedRecord, apperrors.ExitIntegrity,
				"%s line %d: unparsable entry %q", name, lineNo, scanner.Text())
		}
		if i < 1 || i > len(codes) || j < 1 || j > len(codes) {
			return nil, apperrors.Newf(apperrors.ErrMalformedRecord, apperrors.ExitIntegrity,
				"%s line %d: index out of range 1..%d", name, lineNo, len(codes))
		}
		a, b := codes[i-1], codes[j-1]
		if _, ok := s.scores[codePair{b, a}]; ok {
			continue
		}
		s.scores[codePair{a, b}] = math.Abs(score)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return s, nil
}

// Known reports whether code has a row in the matrix.
func (s *Similarity) Known(code string) bool {
	_, ok := s.known[code]
	return ok
}

// Score returns the similarity of a and b in either orientation.
func (s *Similarity) Score(a, b string) (float64, bool) {
	if v, ok := s.scores[codePair{a, b}]; ok {
		return v, true
	}
	v, ok := s.scores[codePair{b, a}]
	return v, ok
}

// EmbeddingExpander adds the training codes most similar to any of the
// query's symptoms.
type EmbeddingExpander struct {
	sim        *Similarity
	candidates []string
	threshold  float64
	maxTerms   int
}

// NewEmbeddingExpander considers candidates (the fold's training codes) that
// score above threshold and keeps at most maxTerms of them.
func NewEmbeddingExpander(sim *Similarity, candidates []string, threshold float64, maxTerms int) *EmbeddingExpander {
	known := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if sim.Known(c) {
			known = append(known, c)
		}
	}
	return &EmbeddingExpander{sim: sim, candidates: known, threshold: threshold, maxTerms: maxTerms}
}

type scoredCode struct {
	code  string
	score float64
	order int
}

// Expand returns up to maxTerms candidates not already in the query, best
// first. A candidate's score is its highest similarity to any query symptom;
// equal scores keep candidate order.
func (e *EmbeddingExpander) Expand(symptoms []string) []string {
	inQuery := make(map[string]struct{}, len(symptoms))
	for _, s := range symptoms {
		inQuery[s] = struct{}{}
	}

	best := make(map[string]*scoredCode)
	for _, sym := range symptoms {
		if !e.sim.Known(sym) {
			continue
		}
		for order, cand := range e.candidates {
			if _, ok := inQuery[cand]; ok {
				continue
			}
			score, ok := e.sim.Score(sym, cand)
			if !ok || score <= e.threshold {
				continue
			}
			if sc, ok := best[cand]; ok {
				sc.score = math.Max(sc.score, score)
				continue
			}
			best[cand] = &scoredCode{code: cand, score: score, order: order}
		}
	}

	ranked := make([]*scoredCode, 0, len(best))
	for _, sc := range best {
		ranked = append(ranked, sc)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].order < ranked[j].order
	})
	if e.maxTerms > 0 && len(ranked) > e.maxTerms {
		ranked = ranked[:e.maxTerms]
	}
	terms := make([]string, len(ranked))
	for i, sc := range ranked {
		terms[i] = sc.code
	}
	return terms
}
