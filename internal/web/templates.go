package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"path"

	"github.com/wadahiro/hydralens/internal/protocol"
)

//go:embed templates/*.html
var templateFiles embed.FS

//go:embed static
var staticFiles embed.FS

var pages = []string{
	"index", "flows", "login", "consent", "logout",
	"clients", "callback", "dashboard", "result",
}

var templateFuncs = template.FuncMap{
	"claim":  protocol.FormatClaimValue,
	"value":  protocol.FormatValue,
	"sorted": protocol.SortedKeys[any],
}

// parseTemplates builds one template set per page on top of the shared layout.
func parseTemplates() (map[string]*template.Template, error) {
	base, err := template.New("layout").Funcs(templateFuncs).ParseFS(templateFiles, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	out := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFiles, path.Join("templates", p+".html")); err != nil {
			return nil, fmt.Errorf("parse %s template: %w", p, err)
		}
		out[p] = t
	}
	return out, nil
}

// render executes a page into a buffer first so template errors never leave a
// half-written response.
func (h *Handler) render(w http.ResponseWriter, status int, page string, data any) {
	t, ok := h.templates[page]
	if !ok {
		http.Error(w, "unknown page "+page, http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("Render failed", "page", page, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
