package topology

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/leekchan/gtf"

	"github.com/meshpage/meshpage/filter"
)

//go:embed templates
var templateFS embed.FS

var fragmentTemplate = template.Must(
	template.New("").
		Funcs(gtf.GtfFuncMap).
		Funcs(template.FuncMap{
			"link": safeLink,
			"item": newTemplateItem,
		}).
		ParseFS(templateFS, "templates/*.html"),
)

type templateItem struct {
	Item   any
	Active map[string]bool
}

func newTemplateItem(item any, active map[string]bool) templateItem {
	return templateItem{
		Item:   item,
		Active: active,
	}
}

// safeLink allows links of any scheme found in the mesh, except for
// schemes that execute code in the browser.
func safeLink(link string) template.URL {
	lower := strings.ToLower(strings.TrimSpace(link))
	for _, scheme := range []string{"javascript:", "vbscript:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return "#"
		}
	}
	return template.URL(link) //nolint:gosec // Dangerous schemes are filtered above.
}

// WriteHTML writes the HTML fragment of the view to w.
// Elements active in the given state are marked with the "active" class.
func (v *View) WriteHTML(w io.Writer, state filter.State) error {
	err := fragmentTemplate.ExecuteTemplate(w, "fragment", struct {
		View   *View
		Active map[string]bool
	}{
		View:   v,
		Active: state.ActiveSet(),
	})
	if err != nil {
		return fmt.Errorf("render fragment: %w", err)
	}
	return nil
}

// HTML returns the HTML fragment of the view.
func (v *View) HTML(state filter.State) (template.HTML, error) {
	buf := &bytes.Buffer{}
	if err := v.WriteHTML(buf, state); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil //nolint:gosec // Rendered by html/template.
}

// WriteText writes a plain text rendition of the view to w.
// When filtering, active elements are marked with a "*".
func (v *View) WriteText(w io.Writer, state filter.State, colorize bool) error {
	var (
		heading = color.New(color.FgCyan, color.Bold)
		host    = color.New(color.Bold)
		faint   = color.New(color.Faint)
		active  = color.New(color.FgYellow, color.Bold)
	)
	for _, c := range []*color.Color{heading, host, faint, active} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	set := state.ActiveSet()
	mark := func(id string) string {
		switch {
		case !state.Filtering:
			return ""
		case set[id]:
			return active.Sprint("* ")
		default:
			return "  "
		}
	}

	ew := &errWriter{w: w}
	for _, b := range v.Blocks {
		if len(b.Nodes) == 0 {
			continue
		}
		ew.printf("%s\n", heading.Sprintf("== %s ==", b.Label()))
		for _, n := range b.Nodes {
			ew.printf("%s%s (%s) etx=%s %s\n",
				mark(n.ID), host.Sprint(n.Hostname), n.Node, n.ETXLabel(), faint.Sprint(n.Link),
			)
			writeTextServices(ew, n.Services, "    ", mark, faint)
			for _, lh := range n.LANHosts {
				ew.printf("%s    %s\n", mark(lh.ID), lh.Hostname)
				writeTextServices(ew, lh.Services, "        ", mark, faint)
			}
		}
	}
	return ew.err
}

func writeTextServices(ew *errWriter, services []*Service, indent string, mark func(string) string, faint *color.Color) {
	for _, svc := range services {
		if svc.Link == "" {
			ew.printf("%s%s%s\n", mark(svc.ID), indent, svc.Name)
			continue
		}
		ew.printf("%s%s%s %s\n", mark(svc.ID), indent, svc.Name, faint.Sprint(svc.Link))
	}
}

// Text returns a plain text rendition of the view without colors.
func (v *View) Text(state filter.State) (string, error) {
	b := &strings.Builder{}
	if err := v.WriteText(b, state, false); err != nil {
		return "", err
	}
	return b.String(), nil
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
