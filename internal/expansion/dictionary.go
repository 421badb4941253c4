// Package expansion generates expanded query files: each test query's
// symptom field gets extra codes chosen from the fold's training corpus,
// through a herb-symptom dictionary, embedding similarity or topic model
// word distributions.
package expansion

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

// Entry is one herb-treats-symptom pair of the dictionary.
type Entry struct {
	Herb    string
	Symptom string
}

// Dictionary is the herb-symptom dictionary in file order.
type Dictionary struct {
	Entries []Entry
}

// LoadDictionary reads a dictionary file.
func LoadDictionary(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dictionary: %w", err)
	}
	defer f.Close()
	return ReadDictionary(f, path)
}

// ReadDictionary parses a tab-separated dictionary. The first line is a
// header. Rows have two columns (herb, symptom) or five, where the last three
// (English name, source database, source id) are ignored.
func ReadDictionary(r io.Reader, name string) (*Dictionary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	d := &Dictionary{}
	for i, line := range strings.Split(string(data), "\n") {
		if i == 0 {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 && len(fields) != 5 {
			return nil, apperrors.Newf(apperrors.ErrMalformedRecord, apperrors.ExitIntegrity,
				"%s line %d: want 2 or 5 columns, got %d", name, i+1, len(fields))
		}
		d.Entries = append(d.Entries, Entry{Herb: fields[0], Symptom: fields[1]})
	}
	return d, nil
}

// Codes lists every herb and symptom in first-seen order, herb before
// symptom within a row. Position i+1 is the code's row and column in the
// similarity matrix.
func (d *Dictionary) Codes() []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, e := range d.Entries {
		for _, c := range []string{e.Herb, e.Symptom} {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			codes = append(codes, c)
		}
	}
	return codes
}

// TrainingCodes lists the symptom codes of a training corpus in first-seen
// order, followed by its herb codes when withHerbs is set.
func TrainingCodes(corpus record.Corpus, withHerbs bool) []string {
	seen := make(map[string]struct{})
	var codes []string
	add := func(list []string) {
		for _, c := range list {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			codes = append(codes, c)
		}
	}
	for _, r := range corpus {
		add(r.Symptoms)
	}
	if withHerbs {
		for _, r := range corpus {
			add(r.Herbs)
		}
	}
	return codes
}

// CodeSet is the set of every symptom and herb code used in corpus.
func CodeSet(corpus record.Corpus) map[string]struct{} {
	set := make(map[string]struct{})
	for _, c := range TrainingCodes(corpus, true) {
		set[c] = struct{}{}
	}
	return set
}
