package engine

import (
	"errors"
	"testing"

	"go.starlark.net/starlark"
)

func TestSession_SingleUse(t *testing.T) {
	s, err := NewSession(SessionOptions{Name: "single"})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	script := InlineScript("a.star", "a = 1\n")
	if err := s.Exec(script); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Exec(script); !errors.Is(err, ErrEngineInit) {
		t.Errorf("expected EngineInitFailed on second Exec, got %v", err)
	}
}

func TestSession_Globals(t *testing.T) {
	s, err := NewSession(SessionOptions{})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	src := "b = 2\na = 1\n_private = 3\ndef f(x, y):\n    return {x: y}\n"
	if err := s.Exec(InlineScript("g.star", src)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	names := s.GlobalNames()
	want := []string{"_private", "a", "b", "f"}
	if len(names) != len(want) {
		t.Fatalf("expected globals %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("global %d = %s, want %s", i, names[i], want[i])
		}
	}

	if v, ok := s.Global("a"); !ok || v.String() != "1" {
		t.Errorf("a = %v, want 1", v)
	}
	if _, ok := s.Global("missing"); ok {
		t.Error("expected missing global to be absent")
	}

	fn, _ := s.Global("f")
	v, err := s.Call(fn, "k", "v")
	if err != nil {
		t.Fatalf("unexpected call error: %v", err)
	}
	d, ok := v.(*starlark.Dict)
	if !ok {
		t.Fatalf("expected dict, got %s", v.Type())
	}
	if got, _, _ := d.Get(starlark.String("k")); got != starlark.String("v") {
		t.Errorf("f(k, v)[k] = %v, want v", got)
	}
}

func TestSession_GlobalsAreFrozen(t *testing.T) {
	s, err := NewSession(SessionOptions{})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	src := "cfg = {}\ndef mutate():\n    cfg[\"x\"] = 1\n    return cfg\n"
	if err := s.Exec(InlineScript("frozen.star", src)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn, _ := s.Global("mutate")
	if _, err := s.Call(fn); err == nil {
		t.Error("expected mutation of a frozen global to fail")
	}
}

func TestSession_CallBeforeExec(t *testing.T) {
	s, err := NewSession(SessionOptions{})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	if _, err := s.Call(starlark.NewBuiltin("noop", nil)); !errors.Is(err, ErrEntryPointCall) {
		t.Errorf("expected EntryPointCallFailed, got %v", err)
	}
}

func TestSession_Close(t *testing.T) {
	s, err := NewSession(SessionOptions{})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	if err := s.Exec(InlineScript("c.star", "a = 1\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second close should be a no-op, got %v", err)
	}
	if _, ok := s.Global("a"); ok {
		t.Error("expected globals to be dropped on close")
	}
	if err := s.Exec(InlineScript("c.star", "a = 1\n")); !errors.Is(err, ErrEngineInit) {
		t.Errorf("expected EngineInitFailed after close, got %v", err)
	}
}

func TestSession_PredeclaredStruct(t *testing.T) {
	s, err := NewSession(SessionOptions{Globals: map[string]interface{}{"answer": 42}})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	defer s.Close()

	if err := s.Exec(InlineScript("s.star", "v = struct(answer = answer)\n")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := s.Global("v")
	if !IsComposite(v) {
		t.Errorf("expected struct to be a composite, got %s", v.Type())
	}
}

func TestToStarlarkValue(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		want    string
		wantErr bool
	}{
		{name: "nil", in: nil, want: "None"},
		{name: "bool", in: true, want: "True"},
		{name: "int", in: 42, want: "42"},
		{name: "int64", in: int64(-7), want: "-7"},
		{name: "float", in: 19.5, want: "19.5"},
		{name: "string", in: "test", want: `"test"`},
		{name: "list", in: []interface{}{"a", 1}, want: `["a", 1]`},
		{name: "dict", in: map[string]interface{}{"host": "localhost"}, want: `{"host": "localhost"}`},
		{name: "unsupported", in: struct{}{}, wantErr: true},
		{name: "nested unsupported", in: []interface{}{make(chan int)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toStarlarkValue(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got.String(), tt.want)
			}
		})
	}
}
