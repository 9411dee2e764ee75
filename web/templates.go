// ABOUTME: TemplateEngine loads embedded HTML templates and renders pages and htmx fragments with html/template.
// ABOUTME: Also renders the embedded about page from markdown with goldmark once at startup.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/2389-research/tagfeed/mastodon"
	"github.com/yuin/goldmark"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed content/about.md
var aboutMarkdown []byte

// TemplateEngine holds the parsed page and fragment templates.
type TemplateEngine struct {
	pages     map[string]*template.Template
	fragments map[string]*template.Template
	about     template.HTML
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"lower":       strings.ToLower,
		"timedelta":   func(t time.Time) string { return timedelta(time.Now(), t) },
		"statusHTML":  statusHTML,
		"statusURL":   statusURL,
		"displayName": displayName,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}
}

// NewTemplateEngine parses all embedded templates. Each page is parsed
// together with the layout; fragments are parsed alone.
func NewTemplateEngine() (*TemplateEngine, error) {
	funcs := templateFuncs()
	engine := &TemplateEngine{
		pages:     make(map[string]*template.Template),
		fragments: make(map[string]*template.Template),
	}

	for _, page := range []string{"index.html", "about.html"} {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}
		engine.pages[page] = t
	}

	for _, fragment := range []string{"timeline.html", "hashtags.html", "popular_tags.html"} {
		t, err := template.New(fragment).Funcs(funcs).ParseFS(templateFS, "templates/"+fragment)
		if err != nil {
			return nil, fmt.Errorf("parsing fragment %s: %w", fragment, err)
		}
		engine.fragments[fragment] = t
	}

	about, err := markdownToHTML(aboutMarkdown)
	if err != nil {
		return nil, fmt.Errorf("rendering about page: %w", err)
	}
	engine.about = about
	return engine, nil
}

// Render executes a page inside the layout and writes it to w.
func (e *TemplateEngine) Render(w http.ResponseWriter, name string, data PageData) error {
	var buf bytes.Buffer
	if err := e.RenderTo(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// RenderTo executes a page inside the layout and writes it to an arbitrary
// io.Writer.
func (e *TemplateEngine) RenderTo(w io.Writer, name string, data PageData) error {
	t, ok := e.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	data.About = e.about
	return t.ExecuteTemplate(w, "layout.html", data)
}

// RenderFragment executes a fragment without the layout. The output is
// buffered so a failed render can still become an error response.
func (e *TemplateEngine) RenderFragment(w http.ResponseWriter, name string, data any) error {
	t, ok := e.fragments[name]
	if !ok {
		return fmt.Errorf("fragment %q not found", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// markdownToHTML converts markdown to HTML. goldmark drops raw HTML unless
// told otherwise.
func markdownToHTML(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.New().Convert(src, &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// timedelta formats the age of t relative to now in whole days, then hours,
// then minutes: "3d", "5h", "12m".
func timedelta(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d >= time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dm", max(0, int(d.Minutes())))
	}
}

// statusHTML marks status content as safe. Mastodon sanitizes status HTML
// server-side before serving it over the API.
func statusHTML(s mastodon.Status) template.HTML {
	return template.HTML(s.Content)
}

// statusURL links to the status on its home instance.
func statusURL(s mastodon.Status) string {
	if s.URL != nil && *s.URL != "" {
		return *s.URL
	}
	return s.URI
}

func displayName(a mastodon.Account) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Acct
}
