package settings

import "fmt"

// Visitor handles every Value variant. Implementations must provide a
// method per variant; there is no default case.
type Visitor interface {
	VisitDouble(Double) error
	VisitInteger(Integer) error
	VisitString(String) error
	VisitBool(Bool) error
	VisitNil(Nil) error
	VisitTable(Table) error
}

// Visit dispatches v to the matching Visitor method.
func Visit(v Value, visitor Visitor) error {
	switch val := v.(type) {
	case Double:
		return visitor.VisitDouble(val)
	case Integer:
		return visitor.VisitInteger(val)
	case String:
		return visitor.VisitString(val)
	case Bool:
		return visitor.VisitBool(val)
	case Nil:
		return visitor.VisitNil(val)
	case Table:
		return visitor.VisitTable(val)
	default:
		return fmt.Errorf("settings: unknown value type %T", v)
	}
}

// Walk calls fn for every entry of t in SortedKeys order, descending into
// nested tables after their own entry. depth is 0 for entries of t.
func Walk(t Table, fn func(path []Key, v Value, depth int) error) error {
	return walk(t, nil, fn)
}

func walk(t Table, prefix []Key, fn func([]Key, Value, int) error) error {
	for _, k := range t.SortedKeys() {
		path := append(prefix[:len(prefix):len(prefix)], k)
		v := t[k]
		if err := fn(path, v, len(prefix)); err != nil {
			return err
		}
		if sub, ok := v.(Table); ok {
			if err := walk(sub, path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
