package record

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const maxLineBytes = 4 * 1024 * 1024

// Loader reads fold files. In lenient mode malformed lines are logged and
// skipped; in strict mode the first malformed line fails the load.
type Loader struct {
	Strict bool
	// OnSkip, if set, is called for every skipped line.
	OnSkip func(name string, line int, err error)
	logger *slog.Logger
}

func NewLoader(strict bool) *Loader {
	return &Loader{
		Strict: strict,
		logger: slog.Default().With("component", "record-loader"),
	}
}

// Load reads every record of the file at path.
func (l *Loader) Load(path string) ([]VisitRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening record file: %w", err)
	}
	defer f.Close()
	records, err := l.Read(f, path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, nil
}

// Read parses records from r. name is only used in log lines.
func (l *Loader) Read(r io.Reader, name string) ([]VisitRecord, error) {
	lines, err := scanLines(r)
	if err != nil {
		return nil, fmt.Errorf("scanning records: %w", err)
	}
	return l.parseLines(lines, name)
}

func (l *Loader) parseLines(lines []string, name string) ([]VisitRecord, error) {
	records := make([]VisitRecord, 0, len(lines))
	taken := make(map[string]struct{}, len(lines))
	skipped := 0
	for i, line := range lines {
		if line == "" {
			continue
		}
		rec, err := ParseLine(line)
		if err != nil {
			if l.Strict {
				return nil, fmt.Errorf("line %d: %w", i+1, err)
			}
			skipped++
			l.log().Warn("skipping malformed record",
				"source", name,
				"line", i+1,
				"error", err,
			)
			if l.OnSkip != nil {
				l.OnSkip(name, i+1, err)
			}
			continue
		}
		rec.Identity = disambiguate(rec.Identity, taken)
		taken[rec.Identity.Key()] = struct{}{}
		records = append(records, rec)
	}
	l.log().Debug("records loaded",
		"source", name,
		"records", len(records),
		"skipped", skipped,
	)
	return records, nil
}

func (l *Loader) log() *slog.Logger {
	if l.logger == nil {
		return slog.Default()
	}
	return l.logger
}

// WriteFile atomically writes records to path, one line each. It writes to a
// .tmp file first and renames on success.
func WriteFile(path string, records []VisitRecord) error {
	lines := make([]string, len(records))
	for i, r := range records {
		lines[i] = FormatLine(r)
	}
	return WriteLines(path, lines)
}

// WriteLines atomically writes raw lines to path.
func WriteLines(path string, lines []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", path, err)
	}
	f.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s: %w", tmpPath, err)
	}
	return nil
}

// ReadLines returns the raw lines of a file without parsing them.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	lines, err := scanLines(f)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return lines, nil
}

func scanLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
