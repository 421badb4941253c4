package record

import (
	"context"
	"fmt"
	"path/filepath"
)

// Split names one side of a train/test partition.
type Split string

const (
	SplitTrain Split = "train"
	SplitTest  Split = "test"
)

// Source produces the records of one split of one fold. tag identifies the
// file variant, e.g. "no_expansion" or "synonym_expansion".
type Source interface {
	Load(ctx context.Context, split Split, tag string, fold int) ([]VisitRecord, error)
}

// LoadFold reads the training corpus of fold and its test queries tagged
// queryTag.
func LoadFold(ctx context.Context, src Source, trainTag, queryTag string, fold int) (Corpus, QuerySet, error) {
	corpus, err := src.Load(ctx, SplitTrain, trainTag, fold)
	if err != nil {
		return nil, nil, fmt.Errorf("fold %d: loading corpus: %w", fold, err)
	}
	queries, err := src.Load(ctx, SplitTest, queryTag, fold)
	if err != nil {
		return nil, nil, fmt.Errorf("fold %d: loading queries: %w", fold, err)
	}
	return corpus, queries, nil
}

// FileName is the fold file name for split, tag and fold:
// "<split>_<tag>_<fold>.txt".
func FileName(split Split, tag string, fold int) string {
	return fmt.Sprintf("%s_%s_%d.txt", split, tag, fold)
}

// FileSource reads fold files from a directory.
type FileSource struct {
	dir    string
	loader *Loader
}

func NewFileSource(dir string, loader *Loader) *FileSource {
	return &FileSource{dir: dir, loader: loader}
}

// Path returns the file FileSource reads for split, tag and fold.
func (s *FileSource) Path(split Split, tag string, fold int) string {
	return filepath.Join(s.dir, FileName(split, tag, fold))
}

func (s *FileSource) Load(ctx context.Context, split Split, tag string, fold int) ([]VisitRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.loader.Load(s.Path(split, tag, fold))
}
