package main

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/myrjola/cdms/internal/contexthelpers"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/models"
	"github.com/myrjola/cdms/ui"
)

type BaseTemplateData struct {
	Authenticated bool
	User          models.Identity
	CurrentPath   string
	Title         string
	Success       string
	Error         string
}

// newBaseTemplateData collects the layout data. Flash messages are read from the success and error query parameters.
func newBaseTemplateData(r *http.Request, title string) BaseTemplateData {
	ctx := r.Context()
	identity, ok := contexthelpers.Identity(ctx)
	query := r.URL.Query()
	return BaseTemplateData{
		Authenticated: ok,
		User:          identity,
		CurrentPath:   contexthelpers.CurrentPath(ctx),
		Title:         title,
		Success:       query.Get("success"),
		Error:         query.Get("error"),
	}
}

// Active reports whether the current page belongs to the navigation section prefix.
func (d BaseTemplateData) Active(prefix string) bool {
	return d.CurrentPath == prefix || strings.HasPrefix(d.CurrentPath, prefix+"/")
}

var templateFuncs = template.FuncMap{
	// Overridden per request in render.
	"nonce": func() template.HTMLAttr {
		panic("not implemented")
	},
	"csrf": func() template.HTML {
		panic("not implemented")
	},
	"date": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02")
	},
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Format("2006-01-02 15:04 MST")
	},
	"orgName":  models.OrganizationName,
	"roleName": func(r models.Role) string { return r.DisplayName() },
	"join":     strings.Join,
	"has": func(values []string, v any) bool {
		return slices.Contains(values, fmt.Sprint(v))
	},
}

// parseTemplates parses every page in ui/templates/pages together with the base layout.
//
// Each page directory has to include a template named "page".
func parseTemplates() (map[string]*template.Template, error) {
	pageDirs, err := fs.ReadDir(ui.Files, "templates/pages")
	if err != nil {
		return nil, errors.Wrap(err, "read pages directory")
	}
	templates := make(map[string]*template.Template, len(pageDirs))
	for _, dir := range pageDirs {
		if !dir.IsDir() {
			continue
		}
		name := dir.Name()
		var t *template.Template
		if t, err = template.New(name).Funcs(templateFuncs).ParseFS(ui.Files,
			"templates/base.gohtml",
			"templates/partials/*.gohtml",
			path.Join("templates/pages", name, "*.gohtml"),
		); err != nil {
			return nil, errors.Wrap(err, "parse page template", slog.String("page", name))
		}
		templates[name] = t
	}
	return templates, nil
}

// renderPage executes the page into a buffer first so that a failing template does not produce half a page.
func (app *application) renderPage(w http.ResponseWriter, r *http.Request, status int, page string, data any) error {
	base, ok := app.templates[page]
	if !ok {
		return errors.New("template does not exist", slog.String("template", page))
	}
	// Clone so that the request scoped functions don't leak between concurrent requests.
	t, err := base.Clone()
	if err != nil {
		return errors.Wrap(err, "clone template", slog.String("template", page))
	}

	ctx := r.Context()
	nonce := fmt.Sprintf("nonce=%q", contexthelpers.CSPNonce(ctx))
	csrf := fmt.Sprintf(`<input type="hidden" name="csrf_token" value="%s"/>`,
		template.HTMLEscapeString(contexthelpers.CSRFToken(ctx)))
	t.Funcs(template.FuncMap{
		"nonce": func() template.HTMLAttr {
			return template.HTMLAttr(nonce) //nolint:gosec // generated by the server
		},
		"csrf": func() template.HTML {
			return template.HTML(csrf) //nolint:gosec // escaped above
		},
	})

	buf := new(bytes.Buffer)
	if err = t.ExecuteTemplate(buf, "base", data); err != nil {
		return errors.Wrap(err, "execute template", slog.String("template", page))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
	return nil
}

func (app *application) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	if err := app.renderPage(w, r, status, page, data); err != nil {
		app.serverError(w, r, err)
	}
}
