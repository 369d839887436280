package core

import (
	"bytes"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/melih-ucgun/vigil/internal/status"
)

// statusFuncs are available to every template next to Sprig's functions.
var statusFuncs = template.FuncMap{
	"flatten":    Flatten,
	"allActive":  status.AllActive,
	"allError":   status.AllError,
	"anyError":   status.AnyError,
	"anyBlocked": status.AnyBlocked,
}

// ExecuteTemplate renders content against a status snapshot, e.g.
//
//	{{ .Model.Name }}: {{ if allActive . }}ready{{ else }}settling{{ end }}
func ExecuteTemplate(content string, st *status.Status) (string, error) {
	funcs := sprig.TxtFuncMap()
	for name, fn := range statusFuncs {
		funcs[name] = fn
	}

	// missingkey=zero allows optional map lookups, which works with Sprig's 'default'.
	tmpl, err := template.New("vigil").Funcs(funcs).Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, st); err != nil {
		return "", err
	}
	return buf.String(), nil
}
