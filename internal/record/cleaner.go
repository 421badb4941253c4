package record

import (
	"fmt"
	"log/slog"
	"strings"
)

const nullField = "null"

// CleanStats reports what Clean kept and dropped.
type CleanStats struct {
	Read      int
	Kept      int
	Malformed int
	Blank     int
}

// Clean copies the usable lines of in to out. A line is dropped when it does
// not parse, when any identity field is "null", or when its disease, symptom
// or herb list is empty. Kept lines are copied verbatim.
func Clean(in, out string) (CleanStats, error) {
	lines, err := ReadLines(in)
	if err != nil {
		return CleanStats{}, err
	}
	var stats CleanStats
	kept := make([]string, 0, len(lines))
	for i, line := range lines {
		if line == "" {
			continue
		}
		stats.Read++
		rec, err := ParseLine(line)
		if err != nil {
			stats.Malformed++
			slog.Warn("dropping malformed record", "source", in, "line", i+1, "error", err)
			continue
		}
		if !Usable(rec) {
			stats.Blank++
			continue
		}
		kept = append(kept, strings.TrimRight(line, "\r"))
	}
	stats.Kept = len(kept)
	if err := WriteLines(out, kept); err != nil {
		return stats, fmt.Errorf("writing cleaned records: %w", err)
	}
	return stats, nil
}

// Usable reports whether a record has a full identity and non-empty disease,
// symptom and herb lists.
func Usable(r VisitRecord) bool {
	if r.Identity.Name == nullField || r.Identity.DateOfBirth == nullField || r.Identity.VisitDate == nullField {
		return false
	}
	return len(r.Diseases) > 0 && len(r.Symptoms) > 0 && len(r.Herbs) > 0
}
