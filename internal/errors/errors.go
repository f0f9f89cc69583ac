// Package errors provides error handling utilities for ptmdb.
// It maps the import error taxonomy onto a small set of kinds and offers
// counters for the per-record errors that are swallowed during an import.
package errors

import (
	stderrors "errors"
	"strings"

	"github.com/charmbracelet/log"
)

// Op represents an operation name for error context.
type Op string

// Error represents an application error with context.
type Error struct {
	Op   Op     // Operation that failed
	Kind Kind   // Category of error
	Err  error  // Underlying error
	Msg  string // Additional context message
}

// Kind represents the category of error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindDatabase
	KindIO
	KindConfig
	KindParse
	KindValidation
	// KindSchema marks a source file whose header no longer matches the
	// declared one. Always fatal.
	KindSchema
	// KindMalformed marks a single unusable record.
	KindMalformed
	// KindReference marks a record pointing at an entity that does not exist.
	KindReference
	// KindAmbiguous marks a domain merge with more than one candidate.
	KindAmbiguous
	// KindIntegrity marks a constraint violation on insert.
	KindIntegrity
	KindNotFound
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindDatabase:
		return "database"
	case KindIO:
		return "io"
	case KindConfig:
		return "config"
	case KindParse:
		return "parse"
	case KindValidation:
		return "validation"
	case KindSchema:
		return "schema"
	case KindMalformed:
		return "malformed"
	case KindReference:
		return "reference"
	case KindAmbiguous:
		return "ambiguous"
	case KindIntegrity:
		return "integrity"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Fatal reports whether errors of this kind must abort an import run.
func (k Kind) Fatal() bool {
	switch k {
	case KindMalformed, KindReference, KindAmbiguous:
		return false
	}
	return true
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(string(e.Op))
		b.WriteString(": ")
	}
	if e.Msg != "" {
		b.WriteString(e.Msg)
		if e.Err != nil {
			b.WriteString(": ")
		}
	}
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error with the given arguments.
// Arguments can be: Op, Kind, error, string (message).
func E(args ...interface{}) *Error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case error:
			e.Err = a
		case string:
			e.Msg = a
		}
	}
	return e
}

// Wrap wraps an error with an operation name for context.
func Wrap(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: GetKind(err), Err: err}
}

// WrapMsg wraps an error with an operation name and message.
func WrapMsg(op Op, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: GetKind(err), Msg: msg, Err: err}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return stderrors.New(text)
}

// IsKind checks if any error in the chain is of the given kind.
func IsKind(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// GetKind returns the kind of the outermost classified error in the chain,
// or KindUnknown.
func GetKind(err error) Kind {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind != KindUnknown {
			return e.Kind
		}
		err = stderrors.Unwrap(err)
	}
	return KindUnknown
}

// SkipCounter tracks how many records have been skipped for one reason.
// Use this to provide visibility into silent error patterns.
type SkipCounter struct {
	Op         string
	Kind       Kind
	Count      int
	LastErr    error
	LastDetail string
}

// NewSkipCounter creates a new skip counter for the given operation.
func NewSkipCounter(op string, kind Kind) *SkipCounter {
	return &SkipCounter{Op: op, Kind: kind}
}

// Skip records a skipped record due to an error.
func (s *SkipCounter) Skip(err error, detail string) {
	s.Count++
	s.LastErr = err
	s.LastDetail = detail
	log.Debug("record skipped", "op", s.Op, "kind", s.Kind, "err", err, "record", detail)
}

// Report logs a summary if any records were skipped.
func (s *SkipCounter) Report() {
	if s.Count > 0 {
		log.Warn("records skipped", "op", s.Op, "kind", s.Kind, "count", s.Count,
			"last_error", s.LastErr, "last_record", s.LastDetail)
	}
}

// IgnoreError explicitly ignores an error with a reason.
//
// Example:
//
//	errors.IgnoreError(file.Close(), "cleanup during error recovery")
func IgnoreError(err error, reason string) {
	if err != nil {
		log.Debugf("ignoring error (%s): %v", reason, err)
	}
}
