package evaluation

import (
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Query-Expansion-Evaluation/pkg/errors"
)

// BaselineMethod is the run without query expansion.
const BaselineMethod = "no"

// Methods are the expansion variants an evaluation run accepts.
var Methods = []string{
	"no", "lda", "lda_mixed", "bilda", "bilda_mixed",
	"embedding", "embedding_mixed", "synonym",
}

// ResultMethods additionally names the symptom-only and herb-only result
// files produced by earlier studies, which can still be compared.
var ResultMethods = append(slices.Clone(Methods),
	"lda_symptoms", "lda_herbs", "bilda_symptoms", "bilda_herbs",
	"embedding_symptoms", "embedding_herbs",
)

// ValidateMethod checks name against allowed.
func ValidateMethod(name string, allowed []string) error {
	if slices.Contains(allowed, name) {
		return nil
	}
	return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage,
		"unknown method %q (want one of %s)", name, strings.Join(allowed, ", "))
}

// MethodTag is the file tag of a method's fold and result files.
func MethodTag(method string) string {
	return method + "_expansion"
}

// ResultFileName is "<method>_expansion_<metric>.txt".
func ResultFileName(method string, metric Metric) string {
	return fmt.Sprintf("%s_%s.txt", MethodTag(method), metric)
}
