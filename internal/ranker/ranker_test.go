package ranker

import (
	"errors"
	"math"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/index"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/record"
	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/relevance"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

type fakeStats struct {
	df        map[string]int
	numDocs   int
	avgDocLen float64
}

func (f fakeStats) DocFreq(term string) int { return f.df[term] }
func (f fakeStats) NumDocs() int            { return f.numDocs }
func (f fakeStats) AvgDocLen() float64      { return f.avgDocLen }

func visit(name string, diseases, symptoms []string) record.VisitRecord {
	return record.VisitRecord{
		Identity: record.Identity{Name: name, DateOfBirth: "1970", VisitDate: "2014"},
		Diseases: diseases,
		Symptoms: symptoms,
	}
}

func TestScoreNoSharedTerms(t *testing.T) {
	stats := fakeStats{df: map[string]int{"fever": 1}, numDocs: 10, avgDocLen: 2}
	if s := Score([]string{"fever"}, []string{"cough", "chills"}, stats, DefaultParams()); s != 0 {
		t.Errorf("Score = %v, want 0", s)
	}
	if s := Score(nil, []string{"cough"}, stats, DefaultParams()); s != 0 {
		t.Errorf("Score with empty query = %v, want 0", s)
	}
}

func TestScoreFormula(t *testing.T) {
	stats := fakeStats{df: map[string]int{"fever": 2}, numDocs: 10, avgDocLen: 4}
	p := Params{K1: 1.5, B: 0.75}
	got := Score([]string{"fever", "fever"}, []string{"fever", "cough"}, stats, p)

	idf := math.Log((10 - 2 + 0.5) / (2 + 0.5))
	tf := (1.5 + 1) / (1 + 1.5*(1-0.75+0.75*2.0/4.0))
	if want := tf * idf; math.Abs(got-want) > 1e-12 {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestScoreUsesDocumentLength(t *testing.T) {
	stats := fakeStats{df: map[string]int{"fever": 1}, numDocs: 10, avgDocLen: 3}
	short := Score([]string{"fever"}, []string{"fever"}, stats, DefaultParams())
	long := Score([]string{"fever"}, []string{"fever", "a", "b", "c", "d"}, stats, DefaultParams())
	if !(short > long) {
		t.Errorf("shorter document should score higher: short=%v long=%v", short, long)
	}
}

func TestNegativeIDF(t *testing.T) {
	stats := fakeStats{df: map[string]int{"cough": 9}, numDocs: 10, avgDocLen: 1}
	unclamped := Score([]string{"cough"}, []string{"cough"}, stats, Params{K1: 1.5, B: 0.75})
	if !(unclamped < 0) {
		t.Errorf("majority term should score negative, got %v", unclamped)
	}
	clamped := Score([]string{"cough"}, []string{"cough"}, stats, Params{K1: 1.5, B: 0.75, ClampNegativeIDF: true})
	if clamped != 0 {
		t.Errorf("clamped score = %v, want 0", clamped)
	}
}

func TestUnseenTermUsesZeroDocFreq(t *testing.T) {
	stats := fakeStats{df: map[string]int{}, numDocs: 4, avgDocLen: 1}
	got := Score([]string{"mahuang"}, []string{"mahuang"}, stats, DefaultParams())
	want := math.Log(4.5 / 0.5)
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("Score = %v, want %v", got, want)
	}
}

func TestRankTwoDocumentScenario(t *testing.T) {
	corpus := []record.VisitRecord{
		visit("a", []string{"flu", "cold"}, []string{"fever", "cough"}),
		visit("b", []string{"cold"}, []string{"cough"}),
	}
	idx, err := index.Build(corpus, index.TermSetSymptoms, false)
	if err != nil {
		t.Fatal(err)
	}
	if idx.DocFreq("fever") != 1 || idx.DocFreq("cough") != 2 {
		t.Fatalf("df(fever)=%d df(cough)=%d", idx.DocFreq("fever"), idx.DocFreq("cough"))
	}
	p := DefaultParams()
	query := visit("q", []string{"flu"}, []string{"fever", "cough"})
	scoreA := Score(query.Symptoms, corpus[0].Symptoms, idx, p)
	scoreB := Score(query.Symptoms, corpus[1].Symptoms, idx, p)
	if !(scoreA > scoreB) {
		t.Errorf("score(A)=%v should exceed score(B)=%v", scoreA, scoreB)
	}

	rk, err := New(corpus, idx, p)
	if err != nil {
		t.Fatal(err)
	}
	judge, _ := relevance.Judge(relevance.ModeGraded)
	result, err := rk.Rank(query, judge)
	if err != nil {
		t.Fatal(err)
	}
	if result.Docs[0].DocID != corpus[0].ID() {
		t.Errorf("top document = %s, want %s", result.Docs[0].DocID, corpus[0].ID())
	}
	grades := result.Grades()
	if grades[0] != 1 || grades[1] != 0 {
		t.Errorf("grades = %v, want [1 0]", grades)
	}
}

func TestRankTiesKeepCorpusOrder(t *testing.T) {
	corpus := []record.VisitRecord{
		visit("d0", []string{"x"}, []string{"chills"}),
		visit("d1", []string{"x"}, []string{"fever"}),
		visit("d2", []string{"x"}, []string{"thirst"}),
		visit("d3", []string{"x"}, []string{"fever"}),
		visit("d4", []string{"x"}, []string{"sweat"}),
	}
	idx, err := index.Build(corpus, index.TermSetSymptoms, false)
	if err != nil {
		t.Fatal(err)
	}
	rk, err := New(corpus, idx, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	judge, _ := relevance.Judge(relevance.ModeBinary)
	result, err := rk.Rank(visit("q", []string{"x"}, []string{"fever"}), judge)
	if err != nil {
		t.Fatal(err)
	}
	wantOrder := []int{1, 3, 0, 2, 4}
	for i, want := range wantOrder {
		if result.Docs[i].Ordinal != want {
			t.Fatalf("rank %d ordinal = %d, want %d (full: %+v)", i, result.Docs[i].Ordinal, want, result.Docs)
		}
	}
}

func TestRankUndefinedRelevance(t *testing.T) {
	corpus := []record.VisitRecord{visit("a", []string{"flu"}, []string{"fever"})}
	idx, _ := index.Build(corpus, index.TermSetSymptoms, false)
	rk, _ := New(corpus, idx, DefaultParams())
	judge, _ := relevance.Judge(relevance.ModeGraded)
	_, err := rk.Rank(visit("q", nil, []string{"fever"}), judge)
	if !errors.Is(err, apperrors.ErrUndefinedRelevance) {
		t.Fatalf("expected ErrUndefinedRelevance, got %v", err)
	}
}

func TestNewRejectsMismatchedCorpus(t *testing.T) {
	corpus := []record.VisitRecord{visit("a", []string{"flu"}, []string{"fever"})}
	idx, _ := index.Build(corpus, index.TermSetSymptoms, false)
	if _, err := New(append(corpus, corpus[0]), idx, DefaultParams()); err == nil {
		t.Error("expected error for corpus/index size mismatch")
	}
}

func TestRankConvenienceMatchesRanker(t *testing.T) {
	corpus := []record.VisitRecord{
		visit("a", []string{"flu"}, []string{"fever", "cough"}),
		visit("b", []string{"cold"}, []string{"cough"}),
	}
	idx, _ := index.Build(corpus, index.TermSetSymptoms, false)
	judge, _ := relevance.Judge(relevance.ModeBinary)
	query := visit("q", []string{"cold"}, []string{"cough"})

	got, err := Rank(query, corpus, idx, judge, DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	rk, _ := New(corpus, idx, DefaultParams())
	want, _ := rk.Rank(query, judge)
	for i := range want.Docs {
		if got.Docs[i] != want.Docs[i] {
			t.Errorf("rank %d: %+v, want %+v", i, got.Docs[i], want.Docs[i])
		}
	}
}
