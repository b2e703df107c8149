package stage

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

const indentUnit = "    "

// ExportToString renders the layer as usda text.
func (s *Stage) ExportToString() string {
	var b strings.Builder
	_ = s.Export(&b)
	return b.String()
}

// Export writes the layer as usda text.
func (s *Stage) Export(w io.Writer) error {
	ew := &errWriter{w: w}
	ew.printf("#usda 1.0\n")
	if s.doc != "" {
		ew.printf("(\n%sdoc = %s\n)\n", indentUnit, quote(s.doc))
	}
	ew.printf("\n")
	for _, c := range s.root.children {
		writePrim(ew, c, 0)
	}
	return ew.err
}

// Save writes the layer to the stage path.
func (s *Stage) Save() error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("save stage: %w", err)
	}
	if err := s.Export(f); err != nil {
		f.Close()
		return fmt.Errorf("save stage %s: %w", s.path, err)
	}
	return f.Close()
}

func writePrim(ew *errWriter, p *Prim, depth int) {
	ind := strings.Repeat(indentUnit, depth)
	ew.printf("%sdef ", ind)
	if p.kind != "" {
		ew.printf("%s ", p.kind)
	}
	ew.printf("%s", quote(p.name))

	if len(p.metadata) > 0 {
		ew.printf(" (\n")
		keys := make([]string, 0, len(p.metadata))
		for k := range p.metadata {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			ew.printf("%s%s%s = %s\n", ind, indentUnit, k, formatValue(p.metadata[k]))
		}
		ew.printf("%s)", ind)
	}
	ew.printf("\n%s{\n", ind)

	for _, a := range p.attrs {
		ew.printf("%s%s%s %s = %s\n", ind, indentUnit, a.typeName, a.name, formatValue(a.value))
	}
	for i, c := range p.children {
		if i > 0 || len(p.attrs) > 0 {
			ew.printf("\n")
		}
		writePrim(ew, c, depth+1)
	}
	ew.printf("%s}\n", ind)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return quote(x)
	case bool:
		if x {
			return "true"
		}
		return "false"
	case float32:
		return formatFloat(float64(x))
	case float64:
		return formatFloat(x)
	case [3]float64:
		return "(" + formatFloat(x[0]) + ", " + formatFloat(x[1]) + ", " + formatFloat(x[2]) + ")"
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = quote(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func quote(s string) string {
	if strings.Contains(s, "\n") {
		return `"""` + strings.ReplaceAll(s, `"""`, `\"""`) + `"""`
	}
	return strconv.Quote(s)
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
