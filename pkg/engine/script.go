package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// Script is the raw source of a settings script.
type Script struct {
	// Path identifies the script in errors and logs. It is also the file name
	// reported in evaluator stack traces.
	Path string

	// Source is the script text.
	Source []byte
}

// InlineScript wraps source that did not come from a file.
func InlineScript(name, source string) Script {
	return Script{Path: name, Source: []byte(source)}
}

// LoadScript reads the script at path. The path must name a regular,
// readable file.
func LoadScript(path string) (Script, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Script{}, newError(ErrorKindScriptLoad, "cannot stat script", err).WithScript(path)
	}
	if !info.Mode().IsRegular() {
		return Script{}, newError(ErrorKindScriptLoad,
			fmt.Sprintf("script is not a regular file (mode %s)", info.Mode().Type()), nil).WithScript(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, newError(ErrorKindScriptLoad, "cannot read script", err).WithScript(path)
	}

	return Script{Path: filepath.Clean(path), Source: data}, nil
}

// Name returns the script file name used by the evaluator.
func (s Script) Name() string {
	if s.Path == "" {
		return "<inline>"
	}
	return s.Path
}
