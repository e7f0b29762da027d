package engine

import (
	"errors"
	"fmt"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/progset/pkg/settings"
)

// valueClass is the classification of a dynamic value at the conversion
// boundary.
type valueClass int

const (
	classUnsupported valueClass = iota
	classInteger
	classNumber
	classNil
	classBool
	classString
	classComposite
)

// classifyValue reports how v maps onto the settings variants. Integers that
// do not fit in int64 have no variant and classify as unsupported.
func classifyValue(v starlark.Value) valueClass {
	switch val := v.(type) {
	case starlark.Int:
		if _, ok := val.Int64(); ok {
			return classInteger
		}
		return classUnsupported
	case starlark.Float:
		return classNumber
	case starlark.NoneType:
		return classNil
	case starlark.Bool:
		return classBool
	case starlark.String:
		return classString
	case *starlark.Dict, *starlark.List, starlark.Tuple, *starlarkstruct.Struct:
		return classComposite
	default:
		return classUnsupported
	}
}

// IsComposite reports whether v can be converted into a settings.Table.
func IsComposite(v starlark.Value) bool {
	return classifyValue(v) == classComposite
}

// convertKey maps a composite key onto settings.Key.
func convertKey(k starlark.Value) (settings.Key, bool) {
	switch key := k.(type) {
	case starlark.Int:
		if n, ok := key.Int64(); ok {
			return settings.IntegerKey(n), true
		}
	case starlark.String:
		return settings.StringKey(string(key)), true
	}
	return settings.Key{}, false
}

// Convert walks the composite v and returns it as a fully materialised
// settings.Table.
//
// Dicts contribute their keys, lists and tuples contribute 0-based integer
// keys, and structs contribute their field names as string keys. Conversion
// stops at the first key or value that has no settings variant and returns
// no table; the *Error carries the nesting depth and key path of the
// offending entry. A key that occurs twice keeps the value iterated last.
func Convert(v starlark.Value) (settings.Table, error) {
	if v == nil {
		return nil, &Error{
			Kind:     ErrorKindUnsupportedValue,
			Message:  "no value to convert",
			TypeName: "nil",
		}
	}
	if !IsComposite(v) {
		return nil, &Error{
			Kind:     ErrorKindUnsupportedValue,
			Message:  "value is not a composite",
			TypeName: v.Type(),
		}
	}
	c := &converter{active: make(map[starlark.Value]struct{})}
	return c.table(v, 0, nil)
}

type converter struct {
	// active holds the mutable composites on the current descent path.
	active map[starlark.Value]struct{}
}

func (c *converter) table(v starlark.Value, depth int, path []settings.Key) (settings.Table, error) {
	switch v.(type) {
	case *starlark.Dict, *starlark.List, *starlarkstruct.Struct:
		if _, ok := c.active[v]; ok {
			return nil, &Error{
				Kind:     ErrorKindUnsupportedValue,
				Message:  "composite contains itself",
				Depth:    depth,
				Path:     settings.FormatPath(path),
				TypeName: v.Type(),
			}
		}
		c.active[v] = struct{}{}
		defer delete(c.active, v)
	}

	out := make(settings.Table)
	err := eachEntry(v, func(k, val starlark.Value) error {
		key, ok := convertKey(k)
		if !ok {
			return &Error{
				Kind:     ErrorKindUnsupportedKey,
				Message:  fmt.Sprintf("unsupported key %s", k.String()),
				Depth:    depth,
				Path:     settings.FormatPath(path),
				TypeName: k.Type(),
			}
		}

		entryPath := append(path[:len(path):len(path)], key)
		value, err := c.value(val, depth, entryPath)
		if err != nil {
			return err
		}
		out[key] = value
		return nil
	})
	if err != nil {
		var convErr *Error
		if errors.As(err, &convErr) {
			return nil, err
		}
		return nil, &Error{
			Kind:     ErrorKindUnsupportedValue,
			Message:  "cannot read composite entries",
			Depth:    depth,
			Path:     settings.FormatPath(path),
			TypeName: v.Type(),
			Err:      err,
		}
	}
	return out, nil
}

func (c *converter) value(v starlark.Value, depth int, path []settings.Key) (settings.Value, error) {
	switch classifyValue(v) {
	case classInteger:
		n, _ := v.(starlark.Int).Int64()
		return settings.Integer(n), nil
	case classNumber:
		return settings.Double(v.(starlark.Float)), nil
	case classNil:
		return settings.Nil{}, nil
	case classBool:
		return settings.Bool(v.(starlark.Bool)), nil
	case classString:
		return settings.String(v.(starlark.String)), nil
	case classComposite:
		return c.table(v, depth+1, path)
	}

	msg := "unsupported value kind"
	if _, ok := v.(starlark.Int); ok {
		msg = "integer out of int64 range"
	}
	return nil, &Error{
		Kind:     ErrorKindUnsupportedValue,
		Message:  msg,
		Depth:    depth,
		Path:     settings.FormatPath(path),
		TypeName: v.Type(),
	}
}

// eachEntry calls fn for every entry of the composite v. Iterators are
// released before eachEntry returns, on every path, so the composite is
// mutable again once conversion finishes.
func eachEntry(v starlark.Value, fn func(k, v starlark.Value) error) error {
	switch comp := v.(type) {
	case *starlark.Dict:
		iter := comp.Iterate()
		defer iter.Done()
		var k starlark.Value
		for iter.Next(&k) {
			val, found, err := comp.Get(k)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			if err := fn(k, val); err != nil {
				return err
			}
		}
		return nil

	case *starlarkstruct.Struct:
		for _, name := range comp.AttrNames() {
			val, err := comp.Attr(name)
			if err != nil {
				return err
			}
			if err := fn(starlark.String(name), val); err != nil {
				return err
			}
		}
		return nil

	case starlark.Iterable:
		iter := comp.Iterate()
		defer iter.Done()
		var elem starlark.Value
		for i := 0; iter.Next(&elem); i++ {
			if err := fn(starlark.MakeInt(i), elem); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("cannot iterate %s", v.Type())
}
