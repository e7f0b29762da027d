package settings

import (
	"fmt"
	"math"
)

// Kind identifies a Value variant.
type Kind uint8

const (
	KindDouble Kind = iota + 1
	KindInteger
	KindString
	KindBool
	KindNil
	KindTable
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDouble:
		return "double"
	case KindInteger:
		return "integer"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindNil:
		return "nil"
	case KindTable:
		return "table"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is one node of a settings tree. The set of implementations is
// closed: Double, Integer, String, Bool, Nil and Table.
type Value interface {
	Kind() Kind
	settingsValue()
}

// Double is a number that was not an exact integer in the script.
type Double float64

// Integer is an exact integer.
type Integer int64

// String is a text value.
type String string

// Bool is a boolean value.
type Bool bool

// Nil marks an explicit null.
type Nil struct{}

// Table maps keys to values. A Table owns its nested tables.
type Table map[Key]Value

func (Double) Kind() Kind  { return KindDouble }
func (Integer) Kind() Kind { return KindInteger }
func (String) Kind() Kind  { return KindString }
func (Bool) Kind() Kind    { return KindBool }
func (Nil) Kind() Kind     { return KindNil }
func (Table) Kind() Kind   { return KindTable }

func (Double) settingsValue()  {}
func (Integer) settingsValue() {}
func (String) settingsValue()  {}
func (Bool) settingsValue()    {}
func (Nil) settingsValue()     {}
func (Table) settingsValue()   {}

// Equal reports whether a and b are the same variant with equal payloads.
// Tables compare recursively. NaN doubles are never equal.
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch av := a.(type) {
	case Double:
		bv := b.(Double)
		if math.IsNaN(float64(av)) || math.IsNaN(float64(bv)) {
			return false
		}
		return av == bv
	case Table:
		return av.Equal(b.(Table))
	default:
		return a == b
	}
}
