package expansion

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

// TopicModels are the word distribution families prepare can expand with.
var TopicModels = []string{"lda", "bilda"}

// DefaultTopWords is how many of a topic's most probable codes define it.
const DefaultTopWords = 200

// CodeListPath is "<dir>/code_list_<fold>.txt".
func CodeListPath(dir string, fold int) string {
	return filepath.Join(dir, fmt.Sprintf("code_list_%d.txt", fold))
}

// TopicMatrixPath is
// "<dir>/<model>_word_distributions/<model>_word_distribution_<fold>.txt".
func TopicMatrixPath(dir, model string, fold int) string {
	return filepath.Join(dir, model+"_word_distributions",
		fmt.Sprintf("%s_word_distribution_%d.txt", model, fold))
}

// TopicModel is a topics × codes word distribution matrix. Column i belongs
// to Codes[i].
type TopicModel struct {
	Codes  []string
	Topics [][]float64
	// top[t] holds the topWords most probable codes of topic t.
	top []map[string]struct{}
}

// LoadTopicModel reads a code list and the matching matrix of one fold.
func LoadTopicModel(codeListPath, matrixPath string, topWords int) (*TopicModel, error) {
	cf, err := os.Open(codeListPath)
	if err != nil {
		return nil, fmt.Errorf("opening code list: %w", err)
	}
	defer cf.Close()
	codes, err := ReadCodeList(cf, codeListPath)
	if err != nil {
		return nil, err
	}

	mf, err := os.Open(matrixPath)
	if err != nil {
		return nil, fmt.Errorf("opening word distribution: %w", err)
	}
	defer mf.Close()
	return ReadTopicModel(mf, matrixPath, codes, topWords)
}

// ReadCodeList reads one code per line, skipping blank lines.
func ReadCodeList(r io.Reader, name string) ([]string, error) {
	var codes []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if c := strings.TrimSpace(scanner.Text()); c != "" {
			codes = append(codes, c)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(codes) == 0 {
		return nil, apperrors.Newf(apperrors.ErrMalformedRecord, apperrors.ExitIntegrity, "%s: empty code list", name)
	}
	return codes, nil
}

// ReadTopicModel parses one whitespace-separated row of probabilities per
// topic, one column per code. topWords <= 0 means DefaultTopWords.
func ReadTopicModel(r io.Reader, name string, codes []string, topWords int) (*TopicModel, error) {
	if topWords <= 0 {
		topWords = DefaultTopWords
	}
	m := &TopicModel{Codes: codes}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != len(codes) {
			return nil, apperrors.Newf(apperrors.ErrMalformedRecord, apperrors.ExitIntegrity,
				"%s line %d: want %d columns, got %d", name, lineNo, len(codes), len(fields))
		}
		row := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, apperrors.Newf(apperrors.ErrMalformedRecord, apperrors.ExitIntegrity,
					"%s line %d column %d: %q is not a number", name, lineNo, i+1, f)
			}
			row[i] = v
		}
		m.Topics = append(m.Topics, row)
		m.top = append(m.top, topCodes(codes, row, topWords))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	if len(m.Topics) == 0 {
		return nil, apperrors.Newf(apperrors.ErrMalformedRecord, apperrors.ExitIntegrity, "%s: no topics", name)
	}
	return m, nil
}

// topCodes returns the n highest-probability codes of row. Equal
// probabilities keep code list order.
func topCodes(codes []string, row []float64, n int) map[string]struct{} {
	order := make([]int, len(row))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return row[order[a]] > row[order[b]] })
	if n > len(order) {
		n = len(order)
	}
	top := make(map[string]struct{}, n)
	for _, i := range order[:n] {
		top[codes[i]] = struct{}{}
	}
	return top
}

// Scores weights every topic's distribution by the number of distinct query
// symptoms among the topic's top codes and sums them per code.
func (m *TopicModel) Scores(symptoms []string) []float64 {
	scores := make([]float64, len(m.Codes))
	seen := make(map[string]struct{}, len(symptoms))
	for _, s := range symptoms {
		seen[s] = struct{}{}
	}
	for t, dist := range m.Topics {
		shared := 0
		for s := range seen {
			if _, ok := m.top[t][s]; ok {
				shared++
			}
		}
		if shared > 0 {
			floats.AddScaled(scores, float64(shared), dist)
		}
	}
	return scores
}

// TopicExpander adds the codes that the topics sharing the query's symptoms
// make most probable.
type TopicExpander struct {
	model    *TopicModel
	symptoms map[string]struct{}
	mixed    bool
	maxTerms int
}

// NewTopicExpander proposes only codes in symptoms (the training symptom
// codes of the fold) unless mixed is set, in which case herbs qualify too.
func NewTopicExpander(m *TopicModel, symptoms map[string]struct{}, mixed bool, maxTerms int) *TopicExpander {
	return &TopicExpander{model: m, symptoms: symptoms, mixed: mixed, maxTerms: maxTerms}
}

// Expand returns up to maxTerms codes with a positive score that are not in
// the query, highest score first. Equal scores keep code list order.
func (e *TopicExpander) Expand(symptoms []string) []string {
	scores := e.model.Scores(symptoms)
	inQuery := make(map[string]struct{}, len(symptoms))
	for _, s := range symptoms {
		inQuery[s] = struct{}{}
	}

	order := make([]int, 0, len(scores))
	for i, v := range scores {
		if v > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	var terms []string
	for _, i := range order {
		code := e.model.Codes[i]
		if _, ok := inQuery[code]; ok {
			continue
		}
		if !e.mixed {
			if _, ok := e.symptoms[code]; !ok {
				continue
			}
		}
		terms = append(terms, code)
		if e.maxTerms > 0 && len(terms) == e.maxTerms {
			break
		}
	}
	return terms
}

// SymptomSet is the set of symptom codes used in corpus.
func SymptomSet(corpus record.Corpus) map[string]struct{} {
	set := make(map[string]struct{})
	for _, c := range TrainingCodes(corpus, false) {
		set[c] = struct{}{}
	}
	return set
}
