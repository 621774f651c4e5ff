package server

import (
	"net/http"
)

// CallbackHandler hands the provider's credential post to the identity provider
// adapter, which verifies it and delivers it to the session controller. The
// tokens issued by the time the response is written are mirrored into it.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.callback.ServeHTTP(&mirroringWriter{ResponseWriter: w, server: s, request: r}, r)
	}
}

// mirroringWriter sets the token cookies just before the header is written.
type mirroringWriter struct {
	http.ResponseWriter
	server      *Server
	request     *http.Request
	wroteHeader bool
}

func (m *mirroringWriter) WriteHeader(status int) {
	if !m.wroteHeader {
		m.wroteHeader = true
		if status < http.StatusBadRequest {
			m.server.mirrorTokens(m.ResponseWriter, m.request)
		}
	}
	m.ResponseWriter.WriteHeader(status)
}

func (m *mirroringWriter) Write(b []byte) (int, error) {
	if !m.wroteHeader {
		m.WriteHeader(http.StatusOK)
	}
	return m.ResponseWriter.Write(b)
}
