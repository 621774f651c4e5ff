package server

import (
	"errors"
	"net/http"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/notify"
	"github.com/jrsteele09/go-auth-session/session"
)

// StateResponse is the body of the state API. Notifications are handed out once.
type StateResponse struct {
	State         session.State         `json:"state"`
	Notifications []notify.Notification `json:"notifications"`
}

func (s *Server) stateResponse() StateResponse {
	notes := s.notes.Drain()
	if notes == nil {
		notes = []notify.Notification{}
	}
	return StateResponse{State: s.state.Snapshot(), Notifications: notes}
}

// StateHandler returns the current authentication state.
func (s *Server) StateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.stateResponse())
	}
}

// LogoutHandler clears the session and the browser's token cookies.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.controller.Logout(); err != nil {
			writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
			return
		}
		s.expireTokens(w)

		if !wantsJSON(r) {
			http.Redirect(w, r, RouteIndex, http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, s.stateResponse())
	}
}

// ProfileRetryHandler fetches the profile again with the persisted tokens.
func (s *Server) ProfileRetryHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := s.controller.RetryProfile(r.Context())
		if !wantsJSON(r) {
			http.Redirect(w, r, RouteIndex, http.StatusSeeOther)
			return
		}

		switch {
		case err == nil, errors.Is(err, auth.ErrSuperseded):
			writeJSON(w, http.StatusOK, s.stateResponse())
		case errors.Is(err, auth.ErrNoSession):
			writeJSONError(w, auth.Kind(err), err.Error(), http.StatusUnauthorized)
		case errors.Is(err, auth.ErrProfileFetch):
			writeJSONError(w, auth.Kind(err), err.Error(), http.StatusBadGateway)
		default:
			writeJSONError(w, "server_error", err.Error(), http.StatusInternalServerError)
		}
	}
}

// HealthHandler reports liveness and the session status.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"session": string(s.state.Snapshot().Status),
		})
	}
}
