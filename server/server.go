package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-auth-session/auth"
	"github.com/jrsteele09/go-auth-session/bridge"
	"github.com/jrsteele09/go-auth-session/internal/config"
	"github.com/jrsteele09/go-auth-session/notify"
	"github.com/jrsteele09/go-auth-session/session"
	"github.com/jrsteele09/go-auth-session/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Deps are the session components the agent's HTTP surface exposes.
type Deps struct {
	Controller *auth.Controller
	State      *session.Store
	Tokens     tokenstore.Store
	Notes      *notify.Queue     // Notifications shown on the page and returned by the state API
	Mount      *bridge.HTMLMount // Where the sign-in button is rendered
	Callback   http.Handler      // Receives the identity provider's credential post
}

type Server struct {
	env        string // Environment (e.g., "DEV", "PROD")
	mux        *http.ServeMux
	routes     []string
	config     config.Config
	controller *auth.Controller
	state      *session.Store
	tokens     tokenstore.Store
	notes      *notify.Queue
	mount      *bridge.HTMLMount
	callback   http.Handler
	policy     tokenstore.Policy
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[server.New] config is required")
	}
	if deps.Controller == nil {
		return nil, errors.New("[server.New] controller is required")
	}
	if deps.State == nil {
		return nil, errors.New("[server.New] state is required")
	}
	if deps.Tokens == nil {
		return nil, errors.New("[server.New] tokens are required")
	}
	if deps.Callback == nil {
		return nil, errors.New("[server.New] callback handler is required")
	}
	if deps.Notes == nil {
		deps.Notes = notify.NewQueue()
	}
	if deps.Mount == nil {
		deps.Mount = bridge.NewHTMLMount()
	}

	s := &Server{
		env:        cfg.GetEnv(),
		mux:        http.NewServeMux(),
		config:     cfg,
		controller: deps.Controller,
		state:      deps.State,
		tokens:     deps.Tokens,
		notes:      deps.Notes,
		mount:      deps.Mount,
		callback:   deps.Callback,
		policy:     tokenstore.PolicyForBaseURL(cfg.GetBaseURL()),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	paddedMethod := fmt.Sprintf(" %-7s", method)
	color, ok := methodColors[method]
	if !ok {
		color = Gray
	}
	log.Info().Msgf("[%-19s] %s", color+paddedMethod+ResetColor, path)
}
