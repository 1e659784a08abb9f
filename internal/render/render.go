// Package render draws list fragments and the index page from embedded
// html/template files.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/dukerupert/shoplist/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page is the data for the index page.
type Page struct {
	Title      string
	Categories []string
}

// NewPage returns the index page data with every category offered in the form.
func NewPage(title string) Page {
	names := model.CategoryNames()
	p := Page{Title: title, Categories: make([]string, 0, len(names))}
	for _, n := range names {
		p.Categories = append(p.Categories, n.String())
	}
	return p
}

type Renderer struct {
	templates *template.Template
}

func New() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render executes the named view and returns the markup.
func (r *Renderer) Render(view string, data any) (string, error) {
	if r.templates.Lookup(view) == nil {
		return "", fmt.Errorf("unknown view %q", view)
	}
	var b strings.Builder
	if err := r.templates.ExecuteTemplate(&b, view, data); err != nil {
		return "", fmt.Errorf("render %s: %w", view, err)
	}
	return b.String(), nil
}

// Index writes the full page.
func (r *Renderer) Index(w io.Writer, page Page) error {
	if err := r.templates.ExecuteTemplate(w, "index", page); err != nil {
		return fmt.Errorf("render index: %w", err)
	}
	return nil
}
