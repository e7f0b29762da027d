package engine

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  &Error{Kind: ErrorKindEntryPointMissing, Message: "script does not define build_configuration"},
			want: "[EntryPointMissing] script does not define build_configuration",
		},
		{
			name: "with script and cause",
			err: &Error{
				Kind:    ErrorKindScriptLoad,
				Message: "cannot read script",
				Script:  "rover.star",
				Err:     errors.New("permission denied"),
			},
			want: "[ScriptLoadFailed] cannot read script (script=rover.star): permission denied",
		},
		{
			name: "conversion failure at root",
			err: &Error{
				Kind:     ErrorKindUnsupportedKey,
				Message:  "unsupported key 1.5",
				TypeName: "float",
			},
			want: "[UnsupportedKeyKind] unsupported key 1.5 (depth=0, type=float)",
		},
		{
			name: "nested conversion failure",
			err: &Error{
				Kind:     ErrorKindUnsupportedValue,
				Message:  "unsupported value kind",
				Script:   "rover.star",
				Depth:    2,
				Path:     "a.b.c",
				TypeName: "function",
			},
			want: "[UnsupportedValueKind] unsupported value kind (script=rover.star, depth=2, path=a.b.c, type=function)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("got  %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("running settings: %w", newError(ErrorKindEntryPointCall, "entry point failed", errors.New("boom")))

	if !errors.Is(err, ErrEntryPointCall) {
		t.Error("expected wrapped error to match ErrEntryPointCall")
	}
	if errors.Is(err, ErrEntryPointMissing) {
		t.Error("expected wrapped error not to match ErrEntryPointMissing")
	}
	if KindOf(err) != ErrorKindEntryPointCall {
		t.Errorf("KindOf = %s, want %s", KindOf(err), ErrorKindEntryPointCall)
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("expected empty kind for an unclassified error")
	}
	if KindOf(nil) != "" {
		t.Error("expected empty kind for nil")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	err := newError(ErrorKindScriptExecution, "script top level failed", cause)
	if !errors.Is(err, cause) {
		t.Error("expected error chain to include the cause")
	}
}

func TestError_WithScript(t *testing.T) {
	err := newError(ErrorKindScriptLoad, "cannot stat script", nil).WithScript("first.star")
	err.WithScript("second.star")
	if err.Script != "first.star" {
		t.Errorf("WithScript overwrote script: %s", err.Script)
	}
}

func TestIsConversionError(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{ErrorKindEngineInit, false},
		{ErrorKindScriptLoad, false},
		{ErrorKindScriptExecution, false},
		{ErrorKindEntryPointMissing, false},
		{ErrorKindEntryPointCall, false},
		{ErrorKindInvalidResult, false},
		{ErrorKindUnsupportedKey, true},
		{ErrorKindUnsupportedValue, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if got := IsConversionError(&Error{Kind: tt.kind}); got != tt.want {
				t.Errorf("IsConversionError(%s) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}
