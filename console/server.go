// Package console serves the admin console: login, the session-bound menu
// routes registered from the backend's navigation tree, and a small JSON API
// for the front end.
package console

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-admin-console/backend"
	"github.com/jrsteele09/go-admin-console/internal/config"
	"github.com/jrsteele09/go-admin-console/internal/errors"
	"github.com/jrsteele09/go-admin-console/menu"
	"github.com/jrsteele09/go-admin-console/notify"
	"github.com/jrsteele09/go-admin-console/session"
)

// Deps are the collaborators the application root owns.
type Deps struct {
	Session *session.Session
	Gateway backend.Doer
	Auth    session.Authenticator
	Feed    *notify.Feed
	// Metrics serves RouteMetrics when set.
	Metrics http.Handler
	// Registry overrides the built-in views.
	Registry *menu.Registry
}

type Server struct {
	env     string
	config  config.Config
	session *session.Session
	auth    session.Authenticator
	gateway backend.Doer
	feed    *notify.Feed
	metrics http.Handler

	router  *Router
	menus   *menu.Store
	handler http.Handler

	templates *templates
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Session == nil || deps.Gateway == nil || deps.Auth == nil {
		return nil, errors.Wrapf(errors.ErrInternal, "[Server New] session, gateway and auth are required")
	}
	if deps.Feed == nil {
		deps.Feed = notify.NewFeed(cfg.GetNotificationBacklog())
	}

	s := &Server{
		env:     cfg.GetEnv(),
		config:  cfg,
		session: deps.Session,
		auth:    deps.Auth,
		gateway: deps.Gateway,
		feed:    deps.Feed,
		metrics: deps.Metrics,
		router:  NewRouter(),
	}

	var err error
	if s.templates, err = parseTemplates(); err != nil {
		return nil, errors.Wrapf(err, "[Server New] templates")
	}

	registry := deps.Registry
	if registry == nil {
		if registry, err = s.newRegistry(); err != nil {
			return nil, errors.Wrapf(err, "[Server New] view registry")
		}
	}

	s.menus = menu.NewStore(backend.NewMenus(s.gateway).UserNav, registry, s.router)
	s.session.OnClear(func(context.Context) {
		s.menus.Reset()
	})

	s.initRoutes()
	s.router.Mount()
	s.router.AddBase("home", RouteHome, s.HomeHandler())
	s.handler = ChainMiddleware(s.router, s.middleware()...)
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Menus exposes the menu store, mainly for the application root and tests.
func (s *Server) Menus() *menu.Store {
	return s.menus
}

func (s *Server) initRoutes() {
	root := s.router.Root()

	root.HandleFunc(RouteLogin, s.LoginPageHandler()).Methods(http.MethodGet)
	root.HandleFunc(RouteLogin, s.LoginSubmissionHandler()).Methods(http.MethodPost)
	root.HandleFunc(RouteLogout, s.LogoutHandler()).Methods(http.MethodGet, http.MethodPost)

	root.HandleFunc(RouteAPISession, s.SessionHandler()).Methods(http.MethodGet)
	root.HandleFunc(RouteAPIMenus, s.MenusHandler()).Methods(http.MethodGet)
	root.HandleFunc(RouteAPINotifications, s.NotificationsHandler()).Methods(http.MethodGet)

	root.HandleFunc(RouteHealth, s.HealthHandler()).Methods(http.MethodGet)
	if s.metrics != nil {
		root.Handle(RouteMetrics, s.metrics).Methods(http.MethodGet)
	}
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	err := s.router.Root().Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, err := route.GetMethods()
		if err != nil {
			methods = []string{""}
		}
		logRoute(strings.Join(methods, ","), path)
		return nil
	})
	if err != nil {
		log.Err(err).Msg("Failed to list routes")
	}
}
