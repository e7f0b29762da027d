package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/progset/pkg/config"
	"github.com/openfroyo/progset/pkg/engine"
	"github.com/openfroyo/progset/pkg/settings"
)

// renderer writes settings trees in the configured output format.
type renderer struct {
	format   string
	color    bool
	brackets bool
}

// newRenderer resolves the output format and colour mode. The --json flag
// wins over the --output flag, which wins over the configuration file.
func newRenderer(cfg config.OutputConfig, outputFlag string, w io.Writer) (renderer, error) {
	format := cfg.Format
	if outputFlag != "" {
		format = outputFlag
	}
	if jsonOutput {
		format = config.FormatJSON
	}
	switch format {
	case config.FormatText, config.FormatFlat, config.FormatJSON, config.FormatYAML:
	default:
		return renderer{}, fmt.Errorf("unknown output format %q (want text, flat, json or yaml)", format)
	}

	return renderer{
		format:   format,
		color:    useColor(cfg.Color, w),
		brackets: cfg.IntegerKeyBrackets,
	}, nil
}

// useColor reports whether output to w should be coloured.
func useColor(mode string, w io.Writer) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// resultDoc is the json and yaml form of a run result.
type resultDoc struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Script     string    `json:"script" yaml:"script"`
	Vehicle    string    `json:"vehicle" yaml:"vehicle"`
	Component  string    `json:"component" yaml:"component"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	DurationMS int64     `json:"duration_ms" yaml:"duration_ms"`
	Settings   any       `json:"settings" yaml:"settings"`
	Error      *errorDoc `json:"error,omitempty" yaml:"error,omitempty"`
}

type errorDoc struct {
	Kind    string `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

func newResultDoc(format string, res *engine.Result) resultDoc {
	doc := resultDoc{
		RunID:      res.RunID,
		Script:     res.Script,
		Vehicle:    res.Vehicle,
		Component:  res.Component,
		StartedAt:  res.StartedAt.UTC(),
		DurationMS: res.Duration.Milliseconds(),
	}
	// JSON keeps the tagged form so the tree can be decoded losslessly;
	// YAML is for reading.
	if format == config.FormatJSON {
		doc.Settings = res.Settings
	} else {
		doc.Settings = settings.ToNative(res.Settings)
	}
	return doc
}

// table writes a bare settings tree.
func (r renderer) table(w io.Writer, t settings.Table) error {
	switch r.format {
	case config.FormatJSON:
		return writeJSON(w, t)
	case config.FormatYAML:
		return writeYAML(w, settings.ToNative(t))
	case config.FormatFlat:
		return settings.PrintFlat(w, t, r.printOptions())
	default:
		return settings.Print(w, t, r.printOptions())
	}
}

func (r renderer) printOptions() settings.PrintOptions {
	return settings.PrintOptions{
		Color:           r.color,
		BareIntegerKeys: !r.brackets,
	}
}

// result writes one run result. Text and flat output are the settings tree
// alone.
func (r renderer) result(w io.Writer, res *engine.Result) error {
	switch r.format {
	case config.FormatJSON:
		return writeJSON(w, newResultDoc(r.format, res))
	case config.FormatYAML:
		return writeYAML(w, newResultDoc(r.format, res))
	default:
		return r.table(w, res.Settings)
	}
}

// batch writes the results of several components. Failed components are
// included with their error.
func (r renderer) batch(w io.Writer, results []engine.BatchResult) error {
	if r.format == config.FormatText || r.format == config.FormatFlat {
		for _, br := range results {
			if _, err := fmt.Fprintf(w, "== %s ==\n", br.Component); err != nil {
				return err
			}
			if br.Err != nil {
				if _, err := fmt.Fprintf(w, "error: %v\n", br.Err); err != nil {
					return err
				}
				continue
			}
			if err := r.table(w, br.Result.Settings); err != nil {
				return err
			}
		}
		return nil
	}

	docs := make([]resultDoc, 0, len(results))
	for _, br := range results {
		if br.Err != nil {
			docs = append(docs, resultDoc{
				Component: br.Component,
				Error:     &errorDoc{Kind: string(engine.KindOf(br.Err)), Message: br.Err.Error()},
			})
			continue
		}
		docs = append(docs, newResultDoc(r.format, br.Result))
	}
	if r.format == config.FormatJSON {
		return writeJSON(w, docs)
	}
	return writeYAML(w, docs)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
