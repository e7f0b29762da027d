package settings

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// The tagged JSON form keeps every distinction the tree makes: the key kind
// and the value variant are explicit, so Integer(2) and Double(2) survive a
// round trip, as do the string key "1" and the integer key 1.
//
//	{"entries":[
//	  {"key":{"s":"gain"},"value":{"D":1.5}},
//	  {"key":{"i":1},"value":{"T":{"entries":[]}}}
//	]}

type jsonTable struct {
	Entries []jsonEntry `json:"entries"`
}

type jsonEntry struct {
	Key   jsonKey   `json:"key"`
	Value jsonValue `json:"value"`
}

type jsonKey struct {
	S *string `json:"s,omitempty"`
	I *int64  `json:"i,omitempty"`
}

type jsonValue struct {
	S *string    `json:"S,omitempty"`
	D *jsonFloat `json:"D,omitempty"`
	B *bool      `json:"B,omitempty"`
	I *int64     `json:"I,omitempty"`
	N *bool      `json:"N,omitempty"`
	T *Table     `json:"T,omitempty"`
}

// jsonFloat encodes non-finite doubles as strings.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

func (f *jsonFloat) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid double %q: %w", s, err)
		}
		*f = jsonFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = jsonFloat(v)
	return nil
}

// MarshalJSON encodes t in the tagged form with entries in SortedKeys order.
func (t Table) MarshalJSON() ([]byte, error) {
	out := jsonTable{Entries: make([]jsonEntry, 0, len(t))}
	for _, k := range t.SortedKeys() {
		e, err := encodeEntry(k, t[k])
		if err != nil {
			return nil, err
		}
		out.Entries = append(out.Entries, e)
	}
	return json.Marshal(out)
}

func encodeEntry(k Key, v Value) (jsonEntry, error) {
	var e jsonEntry
	switch k.Kind() {
	case KeyString:
		s := k.Str()
		e.Key.S = &s
	case KeyInteger:
		n := k.Int()
		e.Key.I = &n
	default:
		return e, fmt.Errorf("cannot encode key of kind %s", k.Kind())
	}

	switch val := v.(type) {
	case String:
		s := string(val)
		e.Value.S = &s
	case Double:
		f := jsonFloat(val)
		e.Value.D = &f
	case Bool:
		b := bool(val)
		e.Value.B = &b
	case Integer:
		n := int64(val)
		e.Value.I = &n
	case Nil:
		t := true
		e.Value.N = &t
	case Table:
		e.Value.T = &val
	default:
		return e, fmt.Errorf("cannot encode value of type %T at key %s", v, k.Label())
	}
	return e, nil
}

// UnmarshalJSON decodes the tagged form produced by MarshalJSON.
func (t *Table) UnmarshalJSON(data []byte) error {
	var in jsonTable
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Table, len(in.Entries))
	for i, e := range in.Entries {
		k, err := decodeKey(e.Key)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		v, err := decodeValue(e.Value)
		if err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, k.Label(), err)
		}
		out[k] = v
	}
	*t = out
	return nil
}

func decodeKey(k jsonKey) (Key, error) {
	switch {
	case k.S != nil && k.I == nil:
		return StringKey(*k.S), nil
	case k.I != nil && k.S == nil:
		return IntegerKey(*k.I), nil
	default:
		return Key{}, fmt.Errorf("key must carry exactly one of s or i")
	}
}

func decodeValue(v jsonValue) (Value, error) {
	var out Value
	n := 0
	if v.S != nil {
		out, n = String(*v.S), n+1
	}
	if v.D != nil {
		out, n = Double(*v.D), n+1
	}
	if v.B != nil {
		out, n = Bool(*v.B), n+1
	}
	if v.I != nil {
		out, n = Integer(*v.I), n+1
	}
	if v.N != nil {
		out, n = Nil{}, n+1
	}
	if v.T != nil {
		tbl := *v.T
		if tbl == nil {
			tbl = Table{}
		}
		out, n = tbl, n+1
	}
	if n != 1 {
		return nil, fmt.Errorf("value must carry exactly one tag, got %d", n)
	}
	return out, nil
}

// ToNative converts v into plain Go values suitable for generic encoders:
// float64, int64, string, bool, nil and map[string]any. Integer and string
// keys both become map keys in Label form, so the conversion is lossy.
func ToNative(v Value) any {
	switch val := v.(type) {
	case Double:
		return float64(val)
	case Integer:
		return int64(val)
	case String:
		return string(val)
	case Bool:
		return bool(val)
	case Nil:
		return nil
	case Table:
		m := make(map[string]any, len(val))
		for k, sub := range val {
			m[k.Label()] = ToNative(sub)
		}
		return m
	default:
		return nil
	}
}
