package convert

import (
	"errors"
	"fmt"

	"github.com/hibiki-gg/scoretrack/internal/domain/model"
)

// The converter failure taxonomy. Conversion failures are typed so callers
// can classify them per item without aborting the batch:
//
//   - InvalidScoreError: the item is structurally or semantically invalid.
//     Reported back to the submitter.
//   - DataNotFoundError: the referenced chart/song does not exist in the
//     catalog. Correctable by resubmission once the catalog updates.
//   - InternalError: catalog or pipeline inconsistency. Logged severe and
//     surfaced as a generic failure without internal detail.
//   - ParseError: the whole payload is unparsable. Aborts the batch before
//     per-item processing begins.

// InvalidScoreError marks a structurally or semantically invalid item.
type InvalidScoreError struct {
	Reason string
}

func (e *InvalidScoreError) Error() string { return e.Reason }

func invalidScoref(format string, args ...interface{}) error {
	return &InvalidScoreError{Reason: fmt.Sprintf(format, args...)}
}

// invalidField builds the schema-violation message: field path, expected
// constraint, received value and its type tag.
func invalidField(field, expected string, received interface{}) error {
	return &InvalidScoreError{
		Reason: fmt.Sprintf("%s | expected %s | received %v (%T)", field, expected, received, received),
	}
}

// DataNotFoundError marks a missing chart/song/identifier in the catalog.
type DataNotFoundError struct {
	Reason string
}

func (e *DataNotFoundError) Error() string { return e.Reason }

func notFoundf(format string, args ...interface{}) error {
	return &DataNotFoundError{Reason: fmt.Sprintf(format, args...)}
}

// InternalError marks a catalog or pipeline inconsistency.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string { return e.Reason }

func internalf(format string, args ...interface{}) error {
	return &InternalError{Reason: fmt.Sprintf(format, args...)}
}

// ParseError marks a structurally unparsable payload; it aborts the batch.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return e.Reason }

func parseErrorf(format string, args ...interface{}) error {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// IsParseError reports whether err is a batch-fatal parse failure.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// FailureKindOf classifies a conversion error for the per-item report.
// Internal failures surface a generic message to the submitter; the detailed
// reason only goes to the logs.
func FailureKindOf(err error) (model.FailureKind, string) {
	var invalid *InvalidScoreError
	if errors.As(err, &invalid) {
		return model.FailureInvalidScore, invalid.Reason
	}
	var notFound *DataNotFoundError
	if errors.As(err, &notFound) {
		return model.FailureDataNotFound, notFound.Reason
	}
	return model.FailureInternal, "an internal error occurred while processing this score"
}
