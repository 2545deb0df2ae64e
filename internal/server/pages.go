package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/sra-rio/sra-web/internal/logging"
	"github.com/sra-rio/sra-web/internal/profile"
	"github.com/sra-rio/sra-web/internal/recommend"
	"github.com/sra-rio/sra-web/internal/session"
	"github.com/sra-rio/sra-web/internal/types"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{"login", "profile", "recommendations", "error"}

// pages holds one template set per page, each sharing the layout.
type pages struct {
	sets map[string]*template.Template
}

func loadPages() (*pages, error) {
	funcs := template.FuncMap{
		"glyph": func(filled bool) string {
			if filled {
				return "★"
			}
			return "☆"
		},
	}

	p := &pages{sets: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		p.sets[name] = t
	}
	return p, nil
}

type loginPage struct {
	Session   *session.Session
	Matricula string
	Error     string
}

type fieldGroup struct {
	Name   string
	Fields []profile.Field
}

type profilePage struct {
	Session  *session.Session
	Greeting string
	Groups   []fieldGroup
	Error    string
}

type recommendationsPage struct {
	Session    *session.Session
	Greeting   string
	Subjects   []types.SubjectOption
	SelectedID int
	Cards      []recommend.Displayable
	Empty      string
	Error      string
}

type errorPage struct {
	Session  *session.Session
	Title    string
	Message  string
	LinkHref string
	LinkText string
}

// groupFields splits the form fields by group, keeping display order.
func groupFields(form *profile.Form) []fieldGroup {
	var groups []fieldGroup
	for _, field := range form.Fields() {
		if n := len(groups); n > 0 && groups[n-1].Name == field.Group {
			groups[n-1].Fields = append(groups[n-1].Fields, field)
			continue
		}
		groups = append(groups, fieldGroup{Name: field.Group, Fields: []profile.Field{field}})
	}
	return groups
}

// render executes the named page into a buffer so a template failure never sends a partial page.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	t, ok := s.pages.sets[name]
	if !ok {
		logging.Error().Str("page", name).Msg("unknown page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		logging.Error().Err(err).Str("page", name).Msg("failed to render page")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logging.Debug().Err(err).Str("page", name).Msg("failed to write page")
	}
}
