package dataprocessing

import (
	"errors"
	"fmt"
)

// IngestErrorType classifies problems found while ingesting source files.
type IngestErrorType string

const (
	ErrorTypeClassificationAmbiguity IngestErrorType = "classification_ambiguity"
	ErrorTypeMissingHierarchyContext IngestErrorType = "missing_hierarchy_context"
	ErrorTypePeriodDetectionFailure  IngestErrorType = "period_detection_failure"
	ErrorTypeNumericCoercionFailure  IngestErrorType = "numeric_coercion_failure"
	ErrorTypeDuplicateKeyCollision   IngestErrorType = "duplicate_key_collision"
	ErrorTypeUnreadableFile          IngestErrorType = "unreadable_file"
	ErrorTypeEmptyFile               IngestErrorType = "empty_file"
	ErrorTypePersistenceFailure      IngestErrorType = "persistence_failure"
)

// ErrNoValidData is returned when an ingestion run produced no usable rows
// from any file.
var ErrNoValidData = errors.New("no valid rows in any source file")

// IngestError describes a row- or file-level ingestion problem.
type IngestError struct {
	Type    IngestErrorType `json:"type"`
	Stage   string          `json:"stage,omitempty"`
	File    string          `json:"file,omitempty"`
	Row     int             `json:"row,omitempty"`
	Message string          `json:"message"`
	Cause   error           `json:"-"`
}

func (e *IngestError) Error() string {
	if e == nil {
		return "unknown ingest error"
	}
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.File != "" {
		msg = fmt.Sprintf("%s (file %s", msg, e.File)
		if e.Row > 0 {
			msg = fmt.Sprintf("%s, row %d", msg, e.Row)
		}
		msg += ")"
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *IngestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewPeriodDetectionError reports a file with no usable period columns.
func NewPeriodDetectionError(file string) *IngestError {
	return &IngestError{
		Type:    ErrorTypePeriodDetectionFailure,
		Stage:   "reshape",
		File:    file,
		Message: "no period columns found",
	}
}

// NewUnreadableFileError wraps a failure to open or read a workbook.
func NewUnreadableFileError(file string, cause error) *IngestError {
	return &IngestError{
		Type:    ErrorTypeUnreadableFile,
		Stage:   "read",
		File:    file,
		Message: "failed to read workbook",
		Cause:   cause,
	}
}

// NewEmptyFileError reports a file that yielded zero valid rows.
func NewEmptyFileError(file string) *IngestError {
	return &IngestError{
		Type:    ErrorTypeEmptyFile,
		Stage:   "assemble",
		File:    file,
		Message: "file yielded no valid rows",
	}
}

// NewPersistenceError wraps a store write failure.
func NewPersistenceError(target string, cause error) *IngestError {
	return &IngestError{
		Type:    ErrorTypePersistenceFailure,
		Stage:   "persist",
		File:    target,
		Message: "failed to persist fact table",
		Cause:   cause,
	}
}

// GetErrorType returns the ingest error type of err, or "" if err is not an
// IngestError.
func GetErrorType(err error) IngestErrorType {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Type
	}
	return ""
}
