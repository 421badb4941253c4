package evaluation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

// MetricSet pools per-query metric values by cutoff k. Values for each k are
// kept in append order; ks are kept in the order they were first seen.
type MetricSet struct {
	ks      []int
	samples map[int][]float64
}

// NewMetricSet creates an empty set with ks registered in order.
func NewMetricSet(ks ...int) *MetricSet {
	s := &MetricSet{samples: make(map[int][]float64, len(ks))}
	for _, k := range ks {
		s.addK(k)
	}
	return s
}

func (s *MetricSet) addK(k int) {
	if _, ok := s.samples[k]; ok {
		return
	}
	s.ks = append(s.ks, k)
	s.samples[k] = []float64{}
}

// Append adds values to the pool for k.
func (s *MetricSet) Append(k int, values ...float64) {
	s.addK(k)
	s.samples[k] = append(s.samples[k], values...)
}

// Merge appends every sample of other, k by k.
func (s *MetricSet) Merge(other *MetricSet) {
	for _, k := range other.ks {
		s.Append(k, other.samples[k]...)
	}
}

// Ks returns the cutoffs in insertion order.
func (s *MetricSet) Ks() []int {
	return slices.Clone(s.ks)
}

// SortedKs returns the cutoffs ascending.
func (s *MetricSet) SortedKs() []int {
	ks := slices.Clone(s.ks)
	slices.Sort(ks)
	return ks
}

// Has reports whether k has been registered.
func (s *MetricSet) Has(k int) bool {
	_, ok := s.samples[k]
	return ok
}

// Samples returns the pooled values for k. The slice must not be modified.
func (s *MetricSet) Samples(k int) []float64 {
	return s.samples[k]
}

// Len is the number of pooled values for k.
func (s *MetricSet) Len(k int) int {
	return len(s.samples[k])
}

// Mean is the arithmetic mean of the values for k, NaN when there are none.
func (s *MetricSet) Mean(k int) float64 {
	return stat.Mean(s.samples[k], nil)
}

// WriteTo writes one "<value>\t<k>" line per sample, k-major.
func (s *MetricSet) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64
	for _, k := range s.ks {
		for _, v := range s.samples[k] {
			n, err := bw.WriteString(formatSample(v, k) + "\n")
			written += int64(n)
			if err != nil {
				return written, err
			}
		}
	}
	return written, bw.Flush()
}

// WriteFile replaces path with the set's lines.
func (s *MetricSet) WriteFile(path string) error {
	var lines []string
	for _, k := range s.ks {
		for _, v := range s.samples[k] {
			lines = append(lines, formatSample(v, k))
		}
	}
	if err := record.WriteLines(path, lines); err != nil {
		return fmt.Errorf("writing metric set %s: %w", path, err)
	}
	return nil
}

// formatSample uses the shortest representation that parses back to v.
func formatSample(v float64, k int) string {
	return strconv.FormatFloat(v, 'g', -1, 64) + "\t" + strconv.Itoa(k)
}

// ReadMetricSet parses lines written by WriteTo. Blank lines are ignored;
// name is used in error messages.
func ReadMetricSet(r io.Reader, name string) (*MetricSet, error) {
	s := NewMetricSet()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, apperrors.Newf(apperrors.ErrMalformedResult, apperrors.ExitIntegrity,
				"%s line %d: want 2 fields, got %d", name, lineNo, len(fields))
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, apperrors.Newf(apperrors.ErrMalformedResult, apperrors.ExitIntegrity,
				"%s line %d: bad value %q", name, lineNo, fields[0])
		}
		k, err := strconv.Atoi(fields[1])
		if err != nil || k <= 0 {
			return nil, apperrors.Newf(apperrors.ErrMalformedResult, apperrors.ExitIntegrity,
				"%s line %d: bad cutoff %q", name, lineNo, fields[1])
		}
		s.Append(k, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return s, nil
}

// ReadMetricSetFile loads a result file.
func ReadMetricSetFile(path string) (*MetricSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ReadMetricSet(f, path)
}

// WriteSamplesFile writes one "<fold>\t<query>\t<k>\t<value>" line per
// sample of results, in the order given.
func WriteSamplesFile(path string, results []FoldResult) error {
	var lines []string
	for _, fr := range results {
		for _, p := range fr.Points() {
			lines = append(lines, strings.Join([]string{
				strconv.Itoa(p.Fold),
				p.QueryID,
				strconv.Itoa(p.K),
				strconv.FormatFloat(p.Value, 'g', -1, 64),
			}, "\t"))
		}
	}
	if err := record.WriteLines(path, lines); err != nil {
		return fmt.Errorf("writing samples %s: %w", path, err)
	}
	return nil
}
