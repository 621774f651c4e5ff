package server

import (
	"embed"
	"html/template"

	"github.com/jrsteele09/go-auth-session/session"
)

//go:embed templates/*.html
var templateFiles embed.FS

var templateFuncs = template.FuncMap{
	"statusLabel": statusLabel,
}

// parsePage parses an embedded page together with the shared template functions.
func parsePage(name string) (*template.Template, error) {
	return template.New(name).Funcs(templateFuncs).ParseFS(templateFiles, "templates/"+name)
}

func statusLabel(s session.Status) string {
	switch s {
	case session.StatusAuthenticating:
		return "Signing in"
	case session.StatusAuthenticated:
		return "Signed in"
	case session.StatusFailed:
		return "Sign-in failed"
	default:
		return "Signed out"
	}
}
