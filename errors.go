package legalrisk

import (
	"errors"
	"fmt"

	"github.com/brunobiangulo/legalrisk/extractor"
	"github.com/brunobiangulo/legalrisk/parser"
)

var (
	// ErrInput is the kind of every failure caused by the document itself:
	// missing, unreadable, unsupported or empty.
	ErrInput = errors.New("legalrisk: invalid input document")

	// ErrExtraction is the kind of model failures during extraction.
	ErrExtraction = errors.New("legalrisk: extraction failed")

	// ErrSchemaViolation is the kind of extraction output that does not
	// match the report schema.
	ErrSchemaViolation = errors.New("legalrisk: extraction output violates schema")

	// ErrSynthesis is the kind of model failures during synthesis.
	ErrSynthesis = errors.New("legalrisk: synthesis failed")

	// ErrEmptyDocument is returned (as an ErrInput) for whitespace-only
	// documents.
	ErrEmptyDocument = extractor.ErrEmptyDocument

	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("legalrisk: invalid configuration")

	// ErrEmbeddingFailed is returned when no clause of an ingested source
	// could be embedded.
	ErrEmbeddingFailed = errors.New("legalrisk: embedding generation failed")
)

// PipelineError reports a failed analysis. Both Kind and the original
// cause match errors.Is.
type PipelineError struct {
	RunID string
	Phase Phase // phase that was running when the failure happened
	Kind  error // one of ErrInput, ErrExtraction, ErrSchemaViolation, ErrSynthesis
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%v (%s): %v", e.Kind, e.Phase, e.Err)
}

func (e *PipelineError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// loadError marks a failure of the Loader. Any loader failure is an input
// problem, whatever its cause.
type loadError struct{ err error }

func (e *loadError) Error() string { return e.err.Error() }
func (e *loadError) Unwrap() error { return e.err }

// classify maps a stage error to its kind.
func classify(phase Phase, err error) error {
	var le *loadError
	switch {
	case errors.As(err, &le),
		errors.Is(err, parser.ErrNotFound),
		errors.Is(err, parser.ErrUnreadable),
		errors.Is(err, parser.ErrUnsupportedFormat),
		errors.Is(err, extractor.ErrEmptyDocument):
		return ErrInput
	case errors.Is(err, extractor.ErrSchemaViolation):
		return ErrSchemaViolation
	case phase == PhaseSynthesizing:
		return ErrSynthesis
	default:
		return ErrExtraction
	}
}
