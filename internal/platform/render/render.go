// Package render turns workflow view models into HTML fragments. Fragments
// have no <html> or <body>; the dashboard injects them into its modals.
package render

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"io/fs"

	"github.com/labstack/echo/v4"
)

// Renderer implements echo.Renderer over a set of named templates.
type Renderer struct {
	templates *template.Template
}

// New parses every template in fsys matching pattern.
func New(fsys fs.FS, pattern string) (*Renderer, error) {
	t, err := template.New("").Funcs(Funcs()).ParseFS(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{templates: t}, nil
}

func (r *Renderer) Render(w io.Writer, name string, data any, _ echo.Context) error {
	if r.templates.Lookup(name) == nil {
		return fmt.Errorf("template %q not found", name)
	}
	return r.templates.ExecuteTemplate(w, name, data)
}

func Funcs() template.FuncMap {
	return template.FuncMap{
		"json":    dataIsland,
		"checked": checked,
		"yesno":   yesNo,
	}
}

// dataIsland encodes v for a <script type="application/json"> block.
// encoding/json escapes <, > and & so the payload cannot close the tag.
func dataIsland(v any) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return template.JS(b), nil
}

func checked(b *bool, want bool) template.HTMLAttr {
	if b != nil && *b == want {
		return "checked"
	}
	return ""
}

func yesNo(b *bool) string {
	switch {
	case b == nil:
		return ""
	case *b:
		return "Yes"
	default:
		return "No"
	}
}
