// Package engine evaluates settings scripts and converts their result into
// a settings.Table.
//
// # Overview
//
// A run goes through three phases, each traced as its own span:
//
//  1. Load - a fresh Session compiles the script and runs its top level
//  2. Call - the entry point is called as build_configuration(vehicle, component)
//  3. Convert - the returned composite is copied into a settings.Table
//
// Sessions are never reused. Every Runner.Run creates one, and closes it
// before returning, so a Runner may be shared between goroutines and scripts
// cannot leak state from one run into the next.
//
// # Value mapping
//
// Dicts, lists, tuples and structs are composites. Dict keys must be strings
// or integers; lists and tuples are keyed by 0-based index and structs by
// field name. Integers that fit in int64 become settings.Integer, floats
// become settings.Double, None becomes settings.Nil. Anything else, such as
// functions, sets, bytes or integers beyond int64, fails the run with
// UnsupportedValueKind. Conversion is all or nothing.
//
// # Errors
//
// Every failure is an *Error with a Kind that names the phase and reason:
//
//	result, err := runner.RunFile(ctx, "rover.star", "rover", "drive")
//	if errors.Is(err, engine.ErrEntryPointMissing) {
//	    // the script has no build_configuration
//	}
//
// Cancelling the context passed to Run cancels the evaluator. There is no
// built-in timeout; use a context deadline or Options.MaxSteps.
package engine
