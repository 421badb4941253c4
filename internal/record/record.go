// Package record models patient visit records and reads them from the
// tab-separated fold files (or a PostgreSQL table holding the same fields).
package record

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

const (
	fieldCount     = 6
	fieldSeparator = "\t"
	codeTerminator = ":"
)

// Identity is the (name, date of birth, visit date) triple of a visit. It is
// not unique in the source data; Loader disambiguates collisions.
type Identity struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"dob"`
	VisitDate   string `json:"visit_date"`
}

// Key returns the identity as a single string usable as a document id.
func (id Identity) Key() string {
	return id.Name + "|" + id.DateOfBirth + "|" + id.VisitDate
}

// VisitRecord is one patient visit. Records are treated as immutable once
// loaded; callers must not modify the slices.
type VisitRecord struct {
	Identity Identity `json:"identity"`
	// Diseases keeps the order and duplicates of the source field.
	Diseases []string `json:"diseases"`
	// Symptoms and Herbs are deduplicated in first-seen order.
	Symptoms []string `json:"symptoms"`
	Herbs    []string `json:"herbs"`
}

// ID is the record's identity key.
func (r VisitRecord) ID() string {
	return r.Identity.Key()
}

// Corpus is the ordered set of retrieval targets of one fold.
type Corpus []VisitRecord

// QuerySet is the ordered set of queries of one fold.
type QuerySet []VisitRecord

// ParseLine parses one tab-separated record line.
func ParseLine(line string) (VisitRecord, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, fieldSeparator)
	if len(fields) != fieldCount {
		return VisitRecord{}, apperrors.Newf(apperrors.ErrMalformedRecord, apperrors.ExitIntegrity,
			"expected %d fields, got %d", fieldCount, len(fields))
	}
	return fromFields(fields[0], fields[1], fields[2], fields[3], fields[4], fields[5]), nil
}

func fromFields(diseases, name, dob, visitDate, symptoms, herbs string) VisitRecord {
	return VisitRecord{
		Identity: Identity{
			Name:        name,
			DateOfBirth: dob,
			VisitDate:   visitDate,
		},
		Diseases: SplitCodes(diseases),
		Symptoms: dedupe(SplitCodes(symptoms)),
		Herbs:    dedupe(SplitCodes(herbs)),
	}
}

// SplitCodes splits a colon-terminated code list. Empty tokens, including
// the one after the trailing colon, are dropped.
func SplitCodes(field string) []string {
	parts := strings.Split(field, codeTerminator)
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		codes = append(codes, p)
	}
	return codes
}

// JoinCodes is the inverse of SplitCodes.
func JoinCodes(codes []string) string {
	if len(codes) == 0 {
		return ""
	}
	return strings.Join(codes, codeTerminator) + codeTerminator
}

// FormatLine renders a record in the fold file format, without a trailing
// newline.
func FormatLine(r VisitRecord) string {
	return strings.Join([]string{
		JoinCodes(r.Diseases),
		r.Identity.Name,
		r.Identity.DateOfBirth,
		r.Identity.VisitDate,
		JoinCodes(r.Symptoms),
		JoinCodes(r.Herbs),
	}, fieldSeparator)
}

// WithSymptoms returns a copy of r whose symptom field has extra appended,
// skipping codes already present.
func (r VisitRecord) WithSymptoms(extra []string) VisitRecord {
	symptoms := make([]string, 0, len(r.Symptoms)+len(extra))
	symptoms = append(symptoms, r.Symptoms...)
	symptoms = append(symptoms, extra...)
	r.Symptoms = dedupe(symptoms)
	return r
}

func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// disambiguate makes id unique among taken by appending a counter to the
// visit date.
func disambiguate(id Identity, taken map[string]struct{}) Identity {
	if _, dup := taken[id.Key()]; !dup {
		return id
	}
	base := id.VisitDate
	for n := 1; ; n++ {
		id.VisitDate = fmt.Sprintf("%s#%d", base, n)
		if _, dup := taken[id.Key()]; !dup {
			return id
		}
	}
}
