package settings

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// PrintOptions controls Print.
type PrintOptions struct {
	// Color wraps keys and tags in ANSI colours. Only enable it for
	// terminals; coloured output is not the interchange format.
	Color bool

	// BareIntegerKeys renders integer keys as plain digits instead of "[n]".
	// String key "1" and integer key 1 then print alike.
	BareIntegerKeys bool
}

// printer writes the tagged text format: every key on its own line, the
// value on the following line indented by two more spaces and prefixed with
// its tag. Nested tables recurse without a value line.
type printer struct {
	w      *bufio.Writer
	opts   PrintOptions
	key    func(a ...interface{}) string
	tag    map[Kind]func(a ...interface{}) string
	indent string
}

// Print writes t to w in the tagged text format.
func Print(w io.Writer, t Table, opts PrintOptions) error {
	p := newPrinter(w, opts)
	if err := p.table(t); err != nil {
		return err
	}
	return p.w.Flush()
}

// PrintFlat writes one line per non-table entry of t: the dotted key path,
// a space and the tagged value, e.g. "motor.gain D:0.5". Tables contribute
// no line of their own, so an empty table prints nothing.
func PrintFlat(w io.Writer, t Table, opts PrintOptions) error {
	p := newPrinter(w, opts)
	err := Walk(t, func(path []Key, v Value, _ int) error {
		if _, ok := v.(Table); ok {
			return nil
		}
		p.indent = p.key(FormatPath(path)) + " "
		return Visit(v, p)
	})
	if err != nil {
		return err
	}
	return p.w.Flush()
}

func newPrinter(w io.Writer, opts PrintOptions) *printer {
	p := &printer{
		w:    bufio.NewWriter(w),
		opts: opts,
		key:  fmt.Sprint,
		tag: map[Kind]func(a ...interface{}) string{
			KindString:  fmt.Sprint,
			KindDouble:  fmt.Sprint,
			KindBool:    fmt.Sprint,
			KindInteger: fmt.Sprint,
			KindNil:     fmt.Sprint,
		},
	}
	if opts.Color {
		p.key = colorFunc(color.FgCyan, color.Bold)
		p.tag[KindString] = colorFunc(color.FgGreen)
		p.tag[KindDouble] = colorFunc(color.FgBlue)
		p.tag[KindBool] = colorFunc(color.FgYellow)
		p.tag[KindInteger] = colorFunc(color.FgMagenta)
		p.tag[KindNil] = colorFunc(color.FgRed)
	}
	return p
}

func colorFunc(attrs ...color.Attribute) func(a ...interface{}) string {
	c := color.New(attrs...)
	c.EnableColor()
	return c.SprintFunc()
}

func (p *printer) table(t Table) error {
	for _, k := range t.SortedKeys() {
		label := k.Label()
		if p.opts.BareIntegerKeys {
			label = k.String()
		}
		if _, err := fmt.Fprintf(p.w, "%s%s\n", p.indent, p.key(label)); err != nil {
			return err
		}
		p.indent += "  "
		if err := Visit(t[k], p); err != nil {
			return err
		}
		p.indent = p.indent[:len(p.indent)-2]
	}
	return nil
}

func (p *printer) line(kind Kind, tag, text string) error {
	_, err := fmt.Fprintf(p.w, "%s%s%s\n", p.indent, p.tag[kind](tag), text)
	return err
}

func (p *printer) VisitString(v String) error {
	return p.line(KindString, "S:", string(v))
}

func (p *printer) VisitDouble(v Double) error {
	return p.line(KindDouble, "D:", FormatDouble(float64(v)))
}

func (p *printer) VisitBool(v Bool) error {
	if v {
		return p.line(KindBool, "B:", "1")
	}
	return p.line(KindBool, "B:", "0")
}

func (p *printer) VisitInteger(v Integer) error {
	return p.line(KindInteger, "I:", strconv.FormatInt(int64(v), 10))
}

func (p *printer) VisitNil(Nil) error {
	return p.line(KindNil, "N:", "<NIL>")
}

func (p *printer) VisitTable(t Table) error {
	return p.table(t)
}

// FormatDouble renders f with six significant digits, dropping trailing
// zeros: 1.5, 2, 1e-07, 3.14159.
func FormatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', 6, 64)
	if strings.ContainsAny(s, "e") {
		mant, exp, _ := strings.Cut(s, "e")
		if strings.Contains(mant, ".") {
			mant = strings.TrimRight(strings.TrimRight(mant, "0"), ".")
		}
		// two digit exponent minimum: 1e-07
		sign := exp[:1]
		digits := exp[1:]
		if len(digits) < 2 {
			digits = "0" + digits
		}
		return mant + "e" + sign + digits
	}
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	switch s {
	case "NaN":
		return "nan"
	case "+Inf":
		return "inf"
	case "-Inf":
		return "-inf"
	}
	return s
}
