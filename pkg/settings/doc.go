// Package settings defines the typed value tree produced from a settings
// script.
//
// # Overview
//
// A script evaluation yields one dynamically typed composite. The engine
// converts it once, at the boundary, into a Table: a mapping from Key to
// Value where every Value is one of a closed set of variants:
//
//   - Double: a number the evaluator did not report as an exact integer
//   - Integer: an exact integer
//   - String: text
//   - Bool: a boolean
//   - Nil: an explicit null marker, distinct from a missing key
//   - Table: a nested mapping, owned by its parent entry
//
// Keys are either strings or integers. Key is a comparable struct, so a
// string key "1" and an integer key 1 are distinct map entries.
//
// # Matching on values
//
// Consumers handle every variant through Visit and the Visitor interface.
// Adding a variant adds a Visitor method, so every visitor stops compiling
// until it handles the new case:
//
//	type sum struct{ total float64 }
//
//	func (s *sum) VisitDouble(v settings.Double) error   { s.total += float64(v); return nil }
//	func (s *sum) VisitInteger(v settings.Integer) error { s.total += float64(v); return nil }
//	...
//
//	err := settings.Visit(value, &sum{})
//
// # Output
//
// Print writes the line oriented text format consumed by existing tooling
// (S:, D:, B:, I: and N: tags). Tables also marshal to a tagged JSON form
// that round trips exactly and is used for run history snapshots.
package settings
