// Package storeerr defines the error taxonomy shared by every layer of the
// record store.
//
// Each failure carries a Kind that tells the command boundary how to react:
//   - KindValidation: user-correctable input, reported per field, nothing mutated
//   - KindNotFound: a requested id or key is absent
//   - KindCorruption: stored payload failed to parse or failed shape checks
//   - KindConfiguration: programmer error (unknown type, bad key, bad driver)
//   - KindBackend: the key-value backend itself failed
//
// Only validation errors are expected to be caught and translated into
// feedback; everything else propagates to the dispatcher unchanged.
package storeerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes store errors.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindNotFound      Kind = "NOT_FOUND"
	KindCorruption    Kind = "CORRUPTION"
	KindConfiguration Kind = "CONFIGURATION"
	KindBackend       Kind = "BACKEND"
)

// Error codes. Each maps to exactly one Kind.
const (
	CodeCorruptIndex      = "CORRUPT_INDEX"
	CodeDuplicateID       = "DUPLICATE_ID"
	CodeIndexWriteFailed  = "INDEX_WRITE_FAILED"
	CodeDuplicateType     = "DUPLICATE_TYPE"
	CodeUnknownType       = "UNKNOWN_TYPE"
	CodeInvalidKey        = "INVALID_KEY"
	CodeInvalidValue      = "INVALID_VALUE"
	CodeInvalidAssignment = "INVALID_ASSIGNMENT"
	CodeRecordNotFound    = "RECORD_NOT_FOUND"
	CodeCorruptRecord     = "CORRUPT_RECORD"
	CodeEncodeFailed      = "ENCODE_FAILED"
	CodeNoID              = "NO_ID"
	CodeInvalidPayload    = "INVALID_PAYLOAD"
	CodeUnknownDriver     = "UNKNOWN_DRIVER"
	CodeBackend           = "BACKEND_FAILURE"
)

// FieldError is a single per-field validation message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Error is the concrete error type returned by the store packages.
type Error struct {
	Kind    Kind
	Code    string
	Op      string // operation that failed, e.g. "record.save"
	Message string
	Fields  []FieldError // only set for KindValidation
	Err     error        // underlying cause, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Code)
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Error()
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error without an underlying cause.
func New(kind Kind, code, op, message string) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Message: message}
}

// Wrap creates an Error around an underlying cause.
func Wrap(kind Kind, code, op, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Op: op, Message: message, Err: err}
}

// Validation creates a validation error carrying per-field messages.
func Validation(op, message string, fields []FieldError) *Error {
	return &Error{Kind: KindValidation, Code: CodeInvalidAssignment, Op: op, Message: message, Fields: fields}
}

// Backend wraps a driver failure. errors.Is still reaches err.
func Backend(op string, err error) *Error {
	return &Error{Kind: KindBackend, Code: CodeBackend, Op: op, Err: err}
}

// KindOf returns the Kind of err, or "" if err is not a store error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// CodeOf returns the code of err, or "" if err is not a store error.
func CodeOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// FieldsOf returns the per-field messages of a validation error.
func FieldsOf(err error) []FieldError {
	var se *Error
	if errors.As(err, &se) {
		return se.Fields
	}
	return nil
}

// IsValidation reports whether err is a validation error.
// Uses errors.As to handle wrapped errors.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsCorruption reports whether err is a corruption error.
func IsCorruption(err error) bool { return KindOf(err) == KindCorruption }

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool { return KindOf(err) == KindConfiguration }

// IsBackend reports whether err is a backend error.
func IsBackend(err error) bool { return KindOf(err) == KindBackend }
