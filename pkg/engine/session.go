package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// Name labels the evaluator thread in backtraces.
	Name string

	// MaxSteps cancels evaluation after this many execution steps. Zero
	// means unlimited.
	MaxSteps uint64

	// Globals are extra predeclared names visible to the script. Values
	// must be nil, bool, int, int64, float64, string, []interface{} or
	// map[string]interface{}.
	Globals map[string]interface{}

	// Logger receives print() output from the script at debug level.
	Logger zerolog.Logger
}

type sessionState int

const (
	sessionFresh sessionState = iota
	sessionLoaded
	sessionClosed
)

// Session is one isolated evaluator instance. It runs exactly one script
// and is discarded afterwards; a Session must not be shared between
// goroutines, although Cancel may be called from any goroutine.
type Session struct {
	thread      *starlark.Thread
	predeclared starlark.StringDict
	globals     starlark.StringDict
	script      string
	state       sessionState
	logger      zerolog.Logger
	unbind      func() bool
}

// NewSession creates a fresh evaluation session.
func NewSession(opts SessionOptions) (*Session, error) {
	name := opts.Name
	if name == "" {
		name = "progset"
	}

	s := &Session{
		logger: opts.Logger,
	}

	s.thread = &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			s.logger.Debug().Str("source", "print").Msg(msg)
		},
	}
	if opts.MaxSteps > 0 {
		s.thread.SetMaxExecutionSteps(opts.MaxSteps)
	}

	s.predeclared = starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
	names := make([]string, 0, len(opts.Globals))
	for k := range opts.Globals {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, key := range names {
		val, err := toStarlarkValue(opts.Globals[key])
		if err != nil {
			return nil, newError(ErrorKindEngineInit, fmt.Sprintf("cannot predeclare %q", key), err)
		}
		s.predeclared[key] = val
	}
	s.predeclared.Freeze()

	return s, nil
}

// Exec loads script and runs its top level. A parse or resolve failure is
// reported as ScriptLoadFailed, a runtime failure as ScriptExecutionFailed.
// Exec may be called once per session.
func (s *Session) Exec(script Script) error {
	switch s.state {
	case sessionLoaded:
		return newError(ErrorKindEngineInit, "session already ran a script", nil).WithScript(script.Name())
	case sessionClosed:
		return newError(ErrorKindEngineInit, "session is closed", nil).WithScript(script.Name())
	}
	s.script = script.Name()
	s.state = sessionLoaded

	_, prog, err := starlark.SourceProgram(script.Name(), script.Source, s.predeclared.Has)
	if err != nil {
		return newError(ErrorKindScriptLoad, "cannot compile script", err).WithScript(s.script)
	}

	globals, err := prog.Init(s.thread, s.predeclared)
	if err != nil {
		return newError(ErrorKindScriptExecution, "script top level failed", withBacktrace(err)).WithScript(s.script)
	}
	globals.Freeze()
	s.globals = globals
	return nil
}

// Global returns the top-level binding name, if the script defined one.
func (s *Session) Global(name string) (starlark.Value, bool) {
	v, ok := s.globals[name]
	return v, ok
}

// GlobalNames returns the names the script defined at top level, sorted.
func (s *Session) GlobalNames() []string {
	return s.globals.Keys()
}

// Call invokes fn with string arguments.
func (s *Session) Call(fn starlark.Value, args ...string) (starlark.Value, error) {
	if s.state != sessionLoaded {
		return nil, newError(ErrorKindEntryPointCall, "session has no loaded script", nil).WithScript(s.script)
	}
	tuple := make(starlark.Tuple, len(args))
	for i, a := range args {
		tuple[i] = starlark.String(a)
	}
	v, err := starlark.Call(s.thread, fn, tuple, nil)
	if err != nil {
		return nil, withBacktrace(err)
	}
	return v, nil
}

// Cancel aborts any evaluation in progress. It is safe to call from another
// goroutine.
func (s *Session) Cancel(reason string) {
	s.thread.Cancel(reason)
}

// Bind cancels the session when ctx is done. The binding ends when the
// session is closed.
func (s *Session) Bind(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		s.Cancel(context.Cause(ctx).Error())
		return
	}
	s.unbind = context.AfterFunc(ctx, func() {
		s.Cancel(context.Cause(ctx).Error())
	})
}

// Close releases the session. Any evaluation still running is cancelled.
// Close is idempotent.
func (s *Session) Close() error {
	if s.state == sessionClosed {
		return nil
	}
	if s.unbind != nil {
		s.unbind()
	}
	s.thread.Cancel("session closed")
	s.globals = nil
	s.state = sessionClosed
	return nil
}

// withBacktrace replaces a Starlark evaluation error with its backtrace so
// the script line that failed is reported.
func withBacktrace(err error) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return errors.New(evalErr.Backtrace())
	}
	return err
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			starlarkItem, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = starlarkItem
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			starlarkVal, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), starlarkVal); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
