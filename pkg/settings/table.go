package settings

import (
	"sort"
	"strings"
)

// Len returns the number of entries.
func (t Table) Len() int { return len(t) }

// Get returns the value stored under k.
func (t Table) Get(k Key) (Value, bool) {
	v, ok := t[k]
	return v, ok
}

// Field returns the value stored under the string key name.
func (t Table) Field(name string) (Value, bool) {
	return t.Get(StringKey(name))
}

// Lookup follows path through nested tables. It returns false when a key is
// missing or an intermediate value is not a table.
func (t Table) Lookup(path ...Key) (Value, bool) {
	var cur Value = t
	for _, k := range path {
		tbl, ok := cur.(Table)
		if !ok {
			return nil, false
		}
		cur, ok = tbl[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// SortedKeys returns the keys of t in a stable order: integer keys ascending,
// then string keys lexicographically.
func (t Table) SortedKeys() []Key {
	keys := make([]Key, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Equal reports whether t and o hold the same keys with Equal values.
func (t Table) Equal(o Table) bool {
	if len(t) != len(o) {
		return false
	}
	for k, v := range t {
		ov, ok := o[k]
		if !ok || !Equal(v, ov) {
			return false
		}
	}
	return true
}

// Count returns the number of entries in t including all nested entries.
func (t Table) Count() int {
	n := 0
	for _, v := range t {
		n++
		if sub, ok := v.(Table); ok {
			n += sub.Count()
		}
	}
	return n
}

// FormatPath joins a key path with dots, using Label for each key.
func FormatPath(path []Key) string {
	parts := make([]string, len(path))
	for i, k := range path {
		parts[i] = k.Label()
	}
	return strings.Join(parts, ".")
}
