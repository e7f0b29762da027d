package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies why a run failed. Every kind is terminal for the run
// that produced it; nothing is retried inside the engine.
type ErrorKind string

const (
	// ErrorKindEngineInit indicates the evaluation session could not be created.
	ErrorKindEngineInit ErrorKind = "EngineInitFailed"

	// ErrorKindScriptLoad indicates the script could not be read, parsed or resolved.
	ErrorKindScriptLoad ErrorKind = "ScriptLoadFailed"

	// ErrorKindScriptExecution indicates the script top level failed.
	ErrorKindScriptExecution ErrorKind = "ScriptExecutionFailed"

	// ErrorKindEntryPointMissing indicates the script defines no callable entry point.
	ErrorKindEntryPointMissing ErrorKind = "EntryPointMissing"

	// ErrorKindEntryPointCall indicates the entry point raised an error.
	ErrorKindEntryPointCall ErrorKind = "EntryPointCallFailed"

	// ErrorKindInvalidResult indicates the entry point returned nothing or a
	// value that is not a composite.
	ErrorKindInvalidResult ErrorKind = "InvalidEntryPointResult"

	// ErrorKindUnsupportedKey indicates a composite key that is neither a
	// string nor an integer.
	ErrorKindUnsupportedKey ErrorKind = "UnsupportedKeyKind"

	// ErrorKindUnsupportedValue indicates a value with no settings variant.
	ErrorKindUnsupportedValue ErrorKind = "UnsupportedValueKind"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrEngineInit           = &Error{Kind: ErrorKindEngineInit}
	ErrScriptLoad           = &Error{Kind: ErrorKindScriptLoad}
	ErrScriptExecution      = &Error{Kind: ErrorKindScriptExecution}
	ErrEntryPointMissing    = &Error{Kind: ErrorKindEntryPointMissing}
	ErrEntryPointCall       = &Error{Kind: ErrorKindEntryPointCall}
	ErrInvalidResult        = &Error{Kind: ErrorKindInvalidResult}
	ErrUnsupportedKeyKind   = &Error{Kind: ErrorKindUnsupportedKey}
	ErrUnsupportedValueKind = &Error{Kind: ErrorKindUnsupportedValue}
)

// Error is a classified run failure.
type Error struct {
	// Kind is the failure classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Script is the path (or name) of the script being run.
	Script string `json:"script,omitempty"`

	// Depth is the nesting depth of a conversion failure; 0 is the
	// top-level composite.
	Depth int `json:"depth,omitempty"`

	// Path is the key path of a conversion failure, dot separated.
	Path string `json:"path,omitempty"`

	// TypeName is the evaluator type name of the offending key or value.
	TypeName string `json:"type,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(e.Kind))
	b.WriteString("] ")
	b.WriteString(e.Message)

	var ctx []string
	if e.Script != "" {
		ctx = append(ctx, "script="+e.Script)
	}
	if e.isConversion() {
		ctx = append(ctx, fmt.Sprintf("depth=%d", e.Depth))
		if e.Path != "" {
			ctx = append(ctx, "path="+e.Path)
		}
	}
	if e.TypeName != "" {
		ctx = append(ctx, "type="+e.TypeName)
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) isConversion() bool {
	return e.Kind == ErrorKindUnsupportedKey || e.Kind == ErrorKindUnsupportedValue
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithScript records the script the error belongs to, unless one is already set.
func (e *Error) WithScript(script string) *Error {
	if e.Script == "" {
		e.Script = script
	}
	return e
}

func newError(kind ErrorKind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// KindOf returns the classification of err, or "" when err carries no *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsConversionError reports whether err was raised while converting the
// entry point result.
func IsConversionError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.isConversion()
	}
	return false
}
