package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/rs/zerolog/log"
)

const contentTypeJSON = "application/json; charset=utf-8"

// mirrorTokens copies the persisted tokens into the response as cookies, or
// expires the browser's copies once the store no longer holds any.
func (s *Server) mirrorTokens(w http.ResponseWriter, r *http.Request) {
	cookies, err := s.tokens.Cookies()
	if err != nil {
		log.Err(err).Msg("read token cookies")
		return
	}
	if len(cookies) > 0 {
		for _, c := range cookies {
			http.SetCookie(w, c)
		}
		return
	}
	if hasTokenCookie(r) {
		s.expireTokens(w)
	}
}

func (s *Server) expireTokens(w http.ResponseWriter) {
	for _, c := range tokenstore.ExpiredCookies(s.policy) {
		http.SetCookie(w, c)
	}
}

func hasTokenCookie(r *http.Request) bool {
	for _, name := range []string{tokenstore.AccessTokenName, tokenstore.RefreshTokenName} {
		if _, err := r.Cookie(name); err == nil {
			return true
		}
	}
	return false
}

// wantsJSON reports whether the caller is an API client rather than a page form.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, errorCode, description string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{
		"error":             errorCode,
		"error_description": description,
	})
}
