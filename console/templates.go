package console

import (
	"embed"
	"html/template"
	"io"

	"github.com/jrsteele09/go-admin-console/internal/errors"
)

//go:embed templates/*.html
var templateFiles embed.FS

// Page templates, addressed by file name.
const (
	templateLogin = "login.html"
	templatePage  = "page.html"
)

type templates struct {
	set *template.Template
}

func parseTemplates() (*templates, error) {
	set, err := template.New("console").ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}
	for _, name := range []string{templateLogin, templatePage} {
		if set.Lookup(name) == nil {
			return nil, errors.Wrapf(errors.ErrNotFound, "template %s", name)
		}
	}
	return &templates{set: set}, nil
}

func (t *templates) render(w io.Writer, name string, data any) error {
	return t.set.ExecuteTemplate(w, name, data)
}
