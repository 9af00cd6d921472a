// ABOUTME: Template loading and rendering for the console UI.
// ABOUTME: Embeds HTML templates and provides page and htmx partial render helpers.

package admin

import (
	"embed"
	"html/template"
	"io"
	"time"
)

//go:embed templates/*.html templates/*/*.html
var templateFS embed.FS

var (
	layoutTmpl   *template.Template
	pageTmpls    map[string]*template.Template
	partialTmpls *template.Template
)

var funcs = template.FuncMap{
	"formatTime": formatTime,
	"add":        func(a, b int) int { return a + b },
}

// formatTime renders a time or time pointer in local time; zero and nil render empty.
func formatTime(t any) string {
	switch v := t.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Local().Format("2006-01-02 15:04:05")
	case *time.Time:
		if v == nil {
			return ""
		}
		return formatTime(*v)
	}
	return ""
}

// partialPaths defines the fragments htmx swaps in without the layout
var partialPaths = []string{
	"templates/partials/flash.html",
	"templates/partials/builder.html",
	"templates/partials/result.html",
	"templates/partials/events.html",
}

// pageDefinitions maps page names to their template files
func getPageDefinitions() map[string]string {
	return map[string]string{
		"dashboard":      "templates/dashboard.html",
		"login":          "templates/login.html",
		"logs-list":      "templates/logs/list.html",
		"streams-list":   "templates/streams/list.html",
		"stream-form":    "templates/streams/form.html",
		"stream-events":  "templates/streams/events.html",
		"resources-list": "templates/resources/list.html",
		"resource-form":  "templates/resources/form.html",
		"secrets-list":   "templates/secrets/list.html",
		"files-list":     "templates/files/list.html",
		"file-form":      "templates/files/form.html",
		"workers-list":   "templates/workers/list.html",
	}
}

// parsePartialTemplates creates a template bundle with all fragments for htmx rendering
func parsePartialTemplates() *template.Template {
	return template.Must(template.New("partials").Funcs(funcs).ParseFS(templateFS, partialPaths...))
}

// parsePageTemplates creates a map of page templates, each with layout and partials
func parsePageTemplates() map[string]*template.Template {
	templates := make(map[string]*template.Template)
	for name, path := range getPageDefinitions() {
		tmpl := template.Must(layoutTmpl.Clone())
		tmpl = template.Must(tmpl.ParseFS(templateFS, path))
		tmpl = template.Must(tmpl.ParseFS(templateFS, partialPaths...))
		templates[name] = tmpl
	}
	return templates
}

func init() {
	layoutTmpl = template.Must(template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html"))
	partialTmpls = parsePartialTemplates()
	pageTmpls = parsePageTemplates()
}

func renderPage(w io.Writer, page string, data any) error {
	tmpl, ok := pageTmpls[page]
	if !ok {
		return nil
	}
	return tmpl.ExecuteTemplate(w, "layout", data)
}

func renderPartial(w io.Writer, name string, data any) error {
	return partialTmpls.ExecuteTemplate(w, name, data)
}
