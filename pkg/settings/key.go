package settings

import (
	"fmt"
	"strconv"
)

// KeyKind discriminates the two key variants.
type KeyKind uint8

const (
	// KeyString is a text key.
	KeyString KeyKind = iota + 1

	// KeyInteger is an integer key.
	KeyInteger
)

// String returns the kind name.
func (k KeyKind) String() string {
	switch k {
	case KeyString:
		return "string"
	case KeyInteger:
		return "integer"
	default:
		return fmt.Sprintf("KeyKind(%d)", uint8(k))
	}
}

// Key is a table key: either a string or an integer.
//
// Key is comparable. Two keys are equal only when both the kind and the
// payload match, and Go map hashing follows the same fields, so
// StringKey("1") and IntegerKey(1) never collide.
type Key struct {
	kind KeyKind
	str  string
	num  int64
}

// StringKey returns a string key.
func StringKey(s string) Key {
	return Key{kind: KeyString, str: s}
}

// IntegerKey returns an integer key.
func IntegerKey(n int64) Key {
	return Key{kind: KeyInteger, num: n}
}

// Kind returns the key variant. The zero Key has kind 0 and is never
// produced by the engine.
func (k Key) Kind() KeyKind { return k.kind }

// Str returns the payload of a string key and "" otherwise.
func (k Key) Str() string { return k.str }

// Int returns the payload of an integer key and 0 otherwise.
func (k Key) Int() int64 { return k.num }

// IsString reports whether k is a string key.
func (k Key) IsString() bool { return k.kind == KeyString }

// IsInteger reports whether k is an integer key.
func (k Key) IsInteger() bool { return k.kind == KeyInteger }

// String returns the bare key text. Integer and string keys with the same
// text render identically; use Label when the distinction must be visible.
func (k Key) String() string {
	if k.kind == KeyInteger {
		return strconv.FormatInt(k.num, 10)
	}
	return k.str
}

// Label renders the key with its kind visible: string keys bare, integer
// keys in brackets.
func (k Key) Label() string {
	if k.kind == KeyInteger {
		return "[" + strconv.FormatInt(k.num, 10) + "]"
	}
	return k.str
}

// GoString implements fmt.GoStringer.
func (k Key) GoString() string {
	if k.kind == KeyInteger {
		return fmt.Sprintf("settings.IntegerKey(%d)", k.num)
	}
	return fmt.Sprintf("settings.StringKey(%q)", k.str)
}

// Less orders integer keys before string keys, integers ascending and
// strings lexicographically.
func (k Key) Less(o Key) bool {
	if k.kind != o.kind {
		return k.kind == KeyInteger
	}
	if k.kind == KeyInteger {
		return k.num < o.num
	}
	return k.str < o.str
}
