// Package web renders the HTML pages of the frontend.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-playground/log"
	"github.com/rexlx/bookify/viewer"
)

//go:embed templates/*.html static
var files embed.FS

// Page is the data every template receives.
type Page struct {
	Title   string
	Viewer  *viewer.Viewer
	Home    viewer.Role
	Sidebar []Link
	Error   string
	Flash   string
	Data    interface{}
}

// Link is a sidebar entry.
type Link struct {
	Label string
	Href  string
}

// Sidebar returns the navigation of a role's dashboard.
func Sidebar(r viewer.Role) []Link {
	shared := []Link{
		{"Books", "/app/books"},
		{"Forum", "/app/forum"},
		{"Events", "/app/events"},
		{"Inbox", "/app/inbox"},
		{"Profile", "/app/profile"},
	}
	switch r {
	case viewer.Admin:
		return append([]Link{
			{"Dashboard", "/app/admin"},
			{"Users", "/app/admin/users"},
		}, shared...)
	case viewer.Author:
		return append([]Link{
			{"Dashboard", "/app/author"},
			{"My books", "/app/author/books"},
			{"Upload", "/app/author/upload"},
		}, shared...)
	case viewer.Reader:
		return append([]Link{
			{"Dashboard", "/app/reader"},
			{"Favourites", "/app/reader/favourites"},
		}, shared...)
	}
	panic(fmt.Sprintf("unknown role %d", r))
}

// Static serves the embedded stylesheet and scripts under /static/.
func Static() http.Handler {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// Renderer holds one parsed template set per page, each combined with the
// shared layout.
type Renderer struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("Jan 2, 2006 15:04")
	},
	"lower": strings.ToLower,
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	return parse(files)
}

func parse(fsys fs.FS) (*Renderer, error) {
	names, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		base := path.Base(name)
		if base == "layout.html" {
			continue
		}
		tpl, err := template.New(base).Funcs(funcs).ParseFS(fsys, "templates/layout.html", name)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", base, err)
		}
		r.pages[base] = tpl
	}
	return r, nil
}

// Render executes the page into a buffer first so that a failing template
// never leaves a half written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, p Page) {
	tpl, ok := r.pages[name]
	if !ok {
		log.Errorf("unknown template %s", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if p.Viewer != nil {
		p.Home = p.Viewer.Home()
		if p.Sidebar == nil {
			p.Sidebar = Sidebar(p.Home)
		}
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", p); err != nil {
		log.WithFields(log.F("template", name)).Errorf("error executing template: %s", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
