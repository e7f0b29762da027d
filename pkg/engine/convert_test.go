package engine

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/openfroyo/progset/pkg/settings"
)

// evalValue runs src and returns its global v.
func evalValue(t *testing.T, src string) starlark.Value {
	t.Helper()

	thread := &starlark.Thread{Name: "convert-test"}
	globals, err := starlark.ExecFile(thread, "convert_test.star", src, starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
	})
	if err != nil {
		t.Fatalf("failed to evaluate test source: %v", err)
	}
	v, ok := globals["v"]
	if !ok {
		t.Fatal("test source does not define v")
	}
	return v
}

func TestConvert_Scalars(t *testing.T) {
	v := evalValue(t, `
v = {
    "max_speed": 120,
    "gain": 1.5,
    "whole": 2.0,
    "name": "rover",
    "debug": True,
    "quiet": False,
    "unset": None,
    "negative": -7,
}
`)

	got, err := Convert(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := settings.Table{
		settings.StringKey("max_speed"): settings.Integer(120),
		settings.StringKey("gain"):      settings.Double(1.5),
		settings.StringKey("whole"):     settings.Double(2),
		settings.StringKey("name"):      settings.String("rover"),
		settings.StringKey("debug"):     settings.Bool(true),
		settings.StringKey("quiet"):     settings.Bool(false),
		settings.StringKey("unset"):     settings.Nil{},
		settings.StringKey("negative"):  settings.Integer(-7),
	}
	if !got.Equal(want) {
		t.Errorf("converted table mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}

	// A float with an integral value stays a Double.
	if w, _ := got.Field("whole"); w.Kind() != settings.KindDouble {
		t.Errorf("expected whole to be a Double, got %s", w.Kind())
	}
}

func TestConvert_KeyDiscrimination(t *testing.T) {
	v := evalValue(t, `v = {1: "integer", "1": "string"}`)

	got, err := Convert(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", got.Len())
	}
	if s, _ := got.Get(settings.IntegerKey(1)); s != settings.String("integer") {
		t.Errorf("integer key 1 = %v, want integer", s)
	}
	if s, _ := got.Get(settings.StringKey("1")); s != settings.String("string") {
		t.Errorf("string key \"1\" = %v, want string", s)
	}
}

func TestConvert_Nested(t *testing.T) {
	v := evalValue(t, `
v = {
    "a": {
        "b": {"c": 1},
        "sibling": 2,
    },
    "z": 3,
}
`)

	got, err := Convert(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := settings.Table{
		settings.StringKey("a"): settings.Table{
			settings.StringKey("b"): settings.Table{
				settings.StringKey("c"): settings.Integer(1),
			},
			settings.StringKey("sibling"): settings.Integer(2),
		},
		settings.StringKey("z"): settings.Integer(3),
	}
	if !got.Equal(want) {
		t.Errorf("converted table mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
}

func TestConvert_Empty(t *testing.T) {
	got, err := Convert(evalValue(t, `v = {}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Len() != 0 {
		t.Errorf("expected empty non-nil table, got %#v", got)
	}
}

func TestConvert_Sequences(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want settings.Table
	}{
		{
			name: "list",
			src:  `v = ["a", "b"]`,
			want: settings.Table{
				settings.IntegerKey(0): settings.String("a"),
				settings.IntegerKey(1): settings.String("b"),
			},
		},
		{
			name: "tuple",
			src:  `v = (1, 2.5)`,
			want: settings.Table{
				settings.IntegerKey(0): settings.Integer(1),
				settings.IntegerKey(1): settings.Double(2.5),
			},
		},
		{
			name: "struct",
			src:  `v = struct(x = 1, y = [True])`,
			want: settings.Table{
				settings.StringKey("x"): settings.Integer(1),
				settings.StringKey("y"): settings.Table{
					settings.IntegerKey(0): settings.Bool(true),
				},
			},
		},
		{
			name: "list comprehension",
			src:  `v = {"squares": [x * x for x in range(3)]}`,
			want: settings.Table{
				settings.StringKey("squares"): settings.Table{
					settings.IntegerKey(0): settings.Integer(0),
					settings.IntegerKey(1): settings.Integer(1),
					settings.IntegerKey(2): settings.Integer(4),
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(evalValue(t, tt.src))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("converted table mismatch (-want +got):\n%s", cmp.Diff(tt.want, got))
			}
		})
	}
}

func TestConvert_Failures(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantKind  ErrorKind
		wantDepth int
		wantPath  string
		wantType  string
	}{
		{
			name:     "function value",
			src:      `v = {"a": 1, "b": len, "c": "x"}`,
			wantKind: ErrorKindUnsupportedValue,
			wantPath: "b",
			wantType: "builtin_function_or_method",
		},
		{
			name:      "nested function value",
			src:       "def f():\n    pass\nv = {\"a\": {\"b\": {\"c\": f}}}",
			wantKind:  ErrorKindUnsupportedValue,
			wantDepth: 2,
			wantPath:  "a.b.c",
			wantType:  "function",
		},
		{
			name:     "float key",
			src:      `v = {1.5: "x"}`,
			wantKind: ErrorKindUnsupportedKey,
			wantType: "float",
		},
		{
			name:     "bool key",
			src:      `v = {True: "x"}`,
			wantKind: ErrorKindUnsupportedKey,
			wantType: "bool",
		},
		{
			name:      "tuple key",
			src:       `v = {"outer": {(1, 2): "x"}}`,
			wantKind:  ErrorKindUnsupportedKey,
			wantDepth: 1,
			wantPath:  "outer",
			wantType:  "tuple",
		},
		{
			name:     "integer beyond int64",
			src:      `v = {"big": 1 << 70}`,
			wantKind: ErrorKindUnsupportedValue,
			wantPath: "big",
			wantType: "int",
		},
		{
			name:     "integer key beyond int64",
			src:      `v = {1 << 70: "x"}`,
			wantKind: ErrorKindUnsupportedKey,
			wantType: "int",
		},
		{
			name:      "bytes inside list",
			src:       `v = {"list": ["ok", b"raw"]}`,
			wantKind:  ErrorKindUnsupportedValue,
			wantDepth: 1,
			wantPath:  "list.[1]",
			wantType:  "bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(evalValue(t, tt.src))
			if err == nil {
				t.Fatalf("expected error, got table %v", got)
			}
			if got != nil {
				t.Errorf("expected no partial table, got %v", got)
			}

			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("expected *Error, got %T: %v", err, err)
			}
			if e.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", e.Kind, tt.wantKind)
			}
			if e.Depth != tt.wantDepth {
				t.Errorf("depth = %d, want %d", e.Depth, tt.wantDepth)
			}
			if e.Path != tt.wantPath {
				t.Errorf("path = %q, want %q", e.Path, tt.wantPath)
			}
			if e.TypeName != tt.wantType {
				t.Errorf("type = %q, want %q", e.TypeName, tt.wantType)
			}
			if !IsConversionError(err) {
				t.Error("expected IsConversionError to be true")
			}
		})
	}
}

func TestConvert_BigIntMessage(t *testing.T) {
	_, err := Convert(evalValue(t, `v = {"big": -(1 << 64)}`))
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if e.Message != "integer out of int64 range" {
		t.Errorf("unexpected message %q", e.Message)
	}
}

func TestConvert_Int64Bounds(t *testing.T) {
	d := starlark.NewDict(2)
	_ = d.SetKey(starlark.String("max"), starlark.MakeInt64(math.MaxInt64))
	_ = d.SetKey(starlark.MakeInt64(math.MinInt64), starlark.String("min"))

	got, err := Convert(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v, _ := got.Field("max"); v != settings.Integer(math.MaxInt64) {
		t.Errorf("max = %v, want %d", v, int64(math.MaxInt64))
	}
	if v, _ := got.Get(settings.IntegerKey(math.MinInt64)); v != settings.String("min") {
		t.Errorf("min key = %v, want min", v)
	}
}

func TestConvert_Cycle(t *testing.T) {
	d := starlark.NewDict(1)
	if err := d.SetKey(starlark.String("self"), d); err != nil {
		t.Fatal(err)
	}

	_, err := Convert(d)
	if !errors.Is(err, ErrUnsupportedValueKind) {
		t.Fatalf("expected UnsupportedValueKind, got %v", err)
	}
	var e *Error
	errors.As(err, &e)
	if e.Message != "composite contains itself" || e.Path != "self" || e.Depth != 1 {
		t.Errorf("unexpected cycle error: %+v", e)
	}
}

func TestConvert_SharedSubtree(t *testing.T) {
	// The same composite reachable twice is not a cycle.
	v := evalValue(t, `
limits = {"min": 0, "max": 10}
v = {"left": limits, "right": limits}
`)

	got, err := Convert(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	left, _ := got.Field("left")
	right, _ := got.Field("right")
	if !settings.Equal(left, right) {
		t.Errorf("expected equal subtrees, got %v and %v", left, right)
	}
}

func TestConvert_NotComposite(t *testing.T) {
	for _, v := range []starlark.Value{starlark.MakeInt(1), starlark.String("x"), starlark.None} {
		_, err := Convert(v)
		if !errors.Is(err, ErrUnsupportedValueKind) {
			t.Errorf("Convert(%s): expected UnsupportedValueKind, got %v", v.Type(), err)
		}
	}
}

func TestConvert_ReleasesIterators(t *testing.T) {
	inner := starlark.NewDict(1)
	_ = inner.SetKey(starlark.String("fn"), starlark.NewBuiltin("fn", nil))
	outer := starlark.NewDict(2)
	_ = outer.SetKey(starlark.String("ok"), starlark.MakeInt(1))
	_ = outer.SetKey(starlark.String("inner"), inner)

	if _, err := Convert(outer); err == nil {
		t.Fatal("expected conversion to fail")
	}

	// Inserting during an unfinished iteration fails, so both dicts must
	// have been released on the failure path.
	if err := outer.SetKey(starlark.String("after"), starlark.True); err != nil {
		t.Errorf("outer dict still locked: %v", err)
	}
	if err := inner.SetKey(starlark.String("after"), starlark.True); err != nil {
		t.Errorf("inner dict still locked: %v", err)
	}

	_ = inner.SetKey(starlark.String("fn"), starlark.None)
	if _, err := Convert(outer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := outer.SetKey(starlark.String("again"), starlark.True); err != nil {
		t.Errorf("outer dict locked after successful conversion: %v", err)
	}
}

func TestConvert_Nil(t *testing.T) {
	_, err := Convert(nil)
	if KindOf(err) != ErrorKindUnsupportedValue {
		t.Fatalf("expected UnsupportedValueKind, got %v", err)
	}
}

// opaque is a value with no way to enumerate its entries.
type opaque struct{}

func (opaque) String() string        { return "opaque" }
func (opaque) Type() string          { return "opaque" }
func (opaque) Freeze()               {}
func (opaque) Truth() starlark.Bool  { return starlark.True }
func (opaque) Hash() (uint32, error) { return 0, nil }

func TestConvert_UnreadableEntries(t *testing.T) {
	c := &converter{active: make(map[starlark.Value]struct{})}
	path := []settings.Key{settings.StringKey("drive"), settings.IntegerKey(3)}

	_, err := c.table(opaque{}, 2, path)
	if KindOf(err) != ErrorKindUnsupportedValue {
		t.Fatalf("expected UnsupportedValueKind, got %v", err)
	}
	var e *Error
	errors.As(err, &e)
	if e.Depth != 2 || e.Path != settings.FormatPath(path) || e.TypeName != "opaque" {
		t.Errorf("unexpected error: %+v", e)
	}
	if e.Err == nil {
		t.Error("expected the iteration error to be wrapped")
	}
}
