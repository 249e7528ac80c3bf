package cellite

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SourceRegistry/cel-lite/internal/evaluator"
)

// Kind identifies which of spec §7's error categories an *Error belongs
// to, so a host can branch on it (e.g. surface parse errors to a policy
// author's editor at a specific offset) without string-matching messages.
type Kind string

const (
	KindTooLong            Kind = "too_long"
	KindLex                Kind = "lex"
	KindParse              Kind = "parse"
	KindTooComplex         Kind = "too_complex"
	KindMaxCallDepth       Kind = "max_call_depth"
	KindFunctionNotAllowed Kind = "function_not_allowed"
	KindInvalidCallTarget  Kind = "invalid_call_target"
	KindRegexCompile       Kind = "regex_compile"
	KindUnknownOperator    Kind = "unknown_operator"
	KindEvaluation         Kind = "evaluation"
)

// Sentinel errors, one per spec §7 category, usable with errors.Is.
var (
	ErrTooLong            = errors.New("expression too long")
	ErrLex                = errors.New("lex error")
	ErrParse              = errors.New("parse error")
	ErrTooComplex         = errors.New("expression too complex")
	ErrMaxCallDepth       = errors.New("max call depth exceeded")
	ErrFunctionNotAllowed = errors.New("function not allowed")
	ErrInvalidCallTarget  = errors.New("invalid function call target")
	ErrRegexCompile       = errors.New("regex compilation failed")
	ErrUnknownOperator    = errors.New("unknown binary operator")
	ErrEvaluation         = errors.New("evaluation error")
)

// Error is CEL-lite's single error type: a human-readable message, a
// Kind for programmatic branching, and an optional source byte offset.
// It wraps one of the package sentinel errors so callers can use
// errors.Is(err, cellite.ErrParse) etc.
//
// Shaped after stacklok-toolhive-core/cel/errors.go's ParseError/
// CheckError (structured detail + Unwrap), collapsed into one type since
// spec §6 calls for "a single error type" rather than one type per phase.
type Error struct {
	Kind    Kind
	Message string
	// Offset is the byte offset of the offending character, or nil when
	// not applicable (most evaluation-time errors have no single offset).
	Offset *int
	Source string

	sentinel error
}

func (e *Error) Error() string {
	if e.Offset != nil {
		return fmt.Sprintf("%s: %s (at byte %d)", e.Kind, e.Message, *e.Offset)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying sentinel so errors.Is(err, cellite.ErrX)
// works across the wrapper.
func (e *Error) Unwrap() error { return e.sentinel }

func newError(kind Kind, sentinel error, offset *int, source, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Offset: offset, Source: source, sentinel: sentinel}
}

// offsetOf builds a *int without the caller needing a local variable.
func offsetOf(pos int) *int {
	p := pos
	return &p
}

// wrapEvalError classifies an internal evaluator/functions error into the
// matching *Error kind. Evaluation-time errors carry no byte offset:
// spec §7 only requires positions for compile-time errors.
func wrapEvalError(err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	msg := err.Error()
	switch {
	case errors.Is(err, evaluator.ErrMaxCallDepth):
		return newError(KindMaxCallDepth, ErrMaxCallDepth, nil, "", msg)
	case errors.Is(err, evaluator.ErrInvalidCallTarget):
		return newError(KindInvalidCallTarget, ErrInvalidCallTarget, nil, "", msg)
	case errors.Is(err, evaluator.ErrUnknownOperator):
		return newError(KindUnknownOperator, ErrUnknownOperator, nil, "", msg)
	case strings.HasPrefix(msg, "Function not allowed:"):
		return newError(KindFunctionNotAllowed, ErrFunctionNotAllowed, nil, "", msg)
	case strings.Contains(msg, "regex compilation failed"):
		return newError(KindRegexCompile, ErrRegexCompile, nil, "", msg)
	default:
		return newError(KindEvaluation, ErrEvaluation, nil, "", msg)
	}
}
