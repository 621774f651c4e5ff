package server

import (
	"html/template"
	"net/http"

	"github.com/jrsteele09/go-auth-session/bridge"
	"github.com/jrsteele09/go-auth-session/notify"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/rs/zerolog/log"
)

var signInButton = bridge.ButtonOptions{Text: "Sign in", Theme: "outline", Size: "large"}

type indexPageData struct {
	AppName       string
	State         session.State
	Button        template.HTML
	Notifications []notify.Notification
	LogoutURL     string
	RetryURL      string
}

// IndexHandler renders the sign-in page. Unless a user is signed in, every load
// renders a fresh sign-in button in place of the previous one.
func (s *Server) IndexHandler() http.HandlerFunc {
	tmpl, err := parsePage("index.html")
	if err != nil {
		panic("Failed to parse index template: " + err.Error())
	}

	return func(w http.ResponseWriter, r *http.Request) {
		data := indexPageData{
			AppName:   s.config.GetAppName(),
			LogoutURL: RouteAuthLogout,
			RetryURL:  RouteProfileRetry,
		}

		if s.state.Snapshot().Status != session.StatusAuthenticated {
			if err := s.controller.Start(r.Context(), s.mount, signInButton); err != nil {
				log.Warn().Err(err).Msg("sign-in button unavailable")
				s.mount.Clear()
			}
			data.Button = s.mount.HTML()
		}
		data.State = s.state.Snapshot()
		data.Notifications = s.notes.Drain()

		s.mirrorTokens(w, r)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			log.Err(err).Msg("render index page")
		}
	}
}
