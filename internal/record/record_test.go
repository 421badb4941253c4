package record

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

func TestParseLine(t *testing.T) {
	rec, err := ParseLine("flu:cold:flu:\tzhang\t1970-01-01\t2014-03-02\tfever:cough:fever:\tmahuang:guizhi:\n")
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	want := VisitRecord{
		Identity: Identity{Name: "zhang", DateOfBirth: "1970-01-01", VisitDate: "2014-03-02"},
		Diseases: []string{"flu", "cold", "flu"},
		Symptoms: []string{"fever", "cough"},
		Herbs:    []string{"mahuang", "guizhi"},
	}
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("ParseLine = %+v, want %+v", rec, want)
	}
}

func TestParseLineWrongFieldCount(t *testing.T) {
	_, err := ParseLine("flu:\tzhang\t1970\tfever:")
	if !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestSplitCodes(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"a:", []string{"a"}},
		{"a:b:", []string{"a", "b"}},
		{"a:b::", []string{"a", "b"}},
		{"a:b", []string{"a", "b"}},
	}
	for _, tt := range tests {
		if got := SplitCodes(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitCodes(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatLineRoundTrip(t *testing.T) {
	line := "flu:\tli\t1980\t2015\tfever:cough:\tgancao:"
	rec, err := ParseLine(line)
	if err != nil {
		t.Fatal(err)
	}
	if got := FormatLine(rec); got != line {
		t.Errorf("FormatLine = %q, want %q", got, line)
	}
}

func TestWithSymptoms(t *testing.T) {
	rec := VisitRecord{Symptoms: []string{"fever", "cough"}}
	expanded := rec.WithSymptoms([]string{"cough", "mahuang"})
	if want := []string{"fever", "cough", "mahuang"}; !reflect.DeepEqual(expanded.Symptoms, want) {
		t.Errorf("expanded = %v, want %v", expanded.Symptoms, want)
	}
	if len(rec.Symptoms) != 2 {
		t.Errorf("original record mutated: %v", rec.Symptoms)
	}
}

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoaderDisambiguatesIdentity(t *testing.T) {
	path := writeFile(t, t.TempDir(), "records.txt",
		"flu:\twang\t1960\t2014\tfever:\tgancao:",
		"cold:\twang\t1960\t2014\tcough:\tgancao:",
		"cold:\twang\t1960\t2014\tcough:\tguizhi:",
	)
	records, err := NewLoader(true).Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	seen := make(map[string]bool)
	for _, r := range records {
		if seen[r.ID()] {
			t.Errorf("duplicate id %q", r.ID())
		}
		seen[r.ID()] = true
	}
	if records[0].Identity.VisitDate != "2014" || records[1].Identity.VisitDate != "2014#1" || records[2].Identity.VisitDate != "2014#2" {
		t.Errorf("visit dates = %q %q %q", records[0].Identity.VisitDate, records[1].Identity.VisitDate, records[2].Identity.VisitDate)
	}
}

func TestLoaderLenientSkipsMalformed(t *testing.T) {
	path := writeFile(t, t.TempDir(), "records.txt",
		"flu:\twang\t1960\t2014\tfever:\tgancao:",
		"broken line",
		"cold:\tli\t1970\t2015\tcough:\tguizhi:",
	)
	loader := NewLoader(false)
	var skippedLines []int
	loader.OnSkip = func(_ string, line int, err error) {
		if !errors.Is(err, apperrors.ErrMalformedRecord) {
			t.Errorf("OnSkip error = %v", err)
		}
		skippedLines = append(skippedLines, line)
	}
	records, err := loader.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("got %d records, want 2", len(records))
	}
	if !reflect.DeepEqual(skippedLines, []int{2}) {
		t.Errorf("skipped = %v, want [2]", skippedLines)
	}
}

func TestLoaderStrictFails(t *testing.T) {
	path := writeFile(t, t.TempDir(), "records.txt",
		"flu:\twang\t1960\t2014\tfever:\tgancao:",
		"broken line",
	)
	_, err := NewLoader(true).Load(path)
	if !errors.Is(err, apperrors.ErrMalformedRecord) {
		t.Fatalf("expected ErrMalformedRecord, got %v", err)
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "test_synonym_expansion_3.txt", "flu:\twang\t1960\t2014\tfever:gancao:\tgancao:")
	src := NewFileSource(dir, NewLoader(true))
	records, err := src.Load(context.Background(), SplitTest, "synonym_expansion", 3)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 || len(records[0].Symptoms) != 2 {
		t.Errorf("records = %+v", records)
	}
	if _, err := src.Load(context.Background(), SplitTrain, "no_expansion", 3); err == nil {
		t.Error("expected error for missing train file")
	}
}

func TestLoadFold(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "train_no_expansion_1.txt",
		"flu:\twang\t1960\t2014\tfever:\tgancao:",
		"cold:\tli\t1970\t2015\tcough:\tmahuang:",
	)
	writeFile(t, dir, "test_lda_expansion_1.txt", "flu:\tzhao\t1980\t2016\tfever:cough:\tgancao:")
	src := NewFileSource(dir, NewLoader(true))

	corpus, queries, err := LoadFold(context.Background(), src, "no_expansion", "lda_expansion", 1)
	if err != nil {
		t.Fatalf("LoadFold: %v", err)
	}
	if len(corpus) != 2 || len(queries) != 1 {
		t.Fatalf("corpus %d, queries %d", len(corpus), len(queries))
	}
	if corpus[1].Identity.Name != "li" || queries[0].Symptoms[1] != "cough" {
		t.Errorf("corpus = %+v, queries = %+v", corpus, queries)
	}

	_, _, err = LoadFold(context.Background(), src, "no_expansion", "bilda_expansion", 1)
	if err == nil || !strings.Contains(err.Error(), "loading queries") {
		t.Errorf("expected query load error, got %v", err)
	}
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "raw.txt",
		"flu:\twang\t1960\t2014\tfever:\tgancao:",
		"flu:\tnull\t1960\t2014\tfever:\tgancao:",
		"flu:\tli\t1960\t2014\t\tgancao:",
		"\tzhao\t1960\t2014\tfever:\tgancao:",
		"flu:\tsun\t1960\t2014\tfever:\t:",
		"not a record",
		"cold:\tzhou\t1971\t2016\tcough:\tguizhi:",
	)
	out := filepath.Join(dir, "clean.txt")
	stats, err := Clean(in, out)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if stats.Read != 7 || stats.Kept != 2 || stats.Malformed != 1 || stats.Blank != 4 {
		t.Errorf("stats = %+v", stats)
	}
	lines, err := ReadLines(out)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"flu:\twang\t1960\t2014\tfever:\tgancao:",
		"cold:\tzhou\t1971\t2016\tcough:\tguizhi:",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("cleaned lines = %q", lines)
	}
}
