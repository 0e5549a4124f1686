// Package httpapi serves the exercise over HTTP.
package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/hperssn/reframe/internal/auth"
	"github.com/hperssn/reframe/internal/domain"
	"github.com/hperssn/reframe/internal/metrics"
	"github.com/hperssn/reframe/internal/runner"
	"github.com/hperssn/reframe/internal/storage"
	"github.com/hperssn/reframe/internal/web"
)

type Config struct {
	BasePath          string
	ExitURL           string
	ExitLabel         string
	SessionSecret     string
	SecureCookies     bool
	WizardOptions     domain.Options
	PersistOnComplete bool
}

// WizardRegistry holds the live wizards; *runner.WizardManager is the
// production implementation.
type WizardRegistry interface {
	StartWizard(w *domain.Wizard) error
	Get(id string) (domain.State, bool)
	Apply(id string, fn func(*domain.Wizard) bool) (domain.State, bool, error)
	Subscribe(id string) (<-chan runner.ProgressEvent, func(), error)
	Len() int
}

type Deps struct {
	Resolver *auth.Resolver
	Wizards  WizardRegistry
	Entries  storage.Repository
	Renderer *web.Renderer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

type Server struct {
	cfg Config

	resolver *auth.Resolver
	wizards  WizardRegistry
	entries  storage.Repository
	renderer *web.Renderer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cookies  sessions.Store

	now func() time.Time
}

func NewServer(cfg Config, deps Deps) (*Server, error) {
	if deps.Resolver == nil || deps.Wizards == nil || deps.Entries == nil || deps.Renderer == nil {
		return nil, errors.New("httpapi: resolver, wizards, entries and renderer are required")
	}

	cookies, err := newCookieStore(cfg.SessionSecret, cfg.SecureCookies)
	if err != nil {
		return nil, err
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.New(deps.Wizards.Len)
	}

	return &Server{
		cfg:      cfg,
		resolver: deps.Resolver,
		wizards:  deps.Wizards,
		entries:  deps.Entries,
		renderer: deps.Renderer,
		metrics:  m,
		logger:   logger,
		cookies:  cookies,
		now:      time.Now,
	}, nil
}

// Routes wires every route. Pages live under the base path and pass through
// the session handshake; health and metrics do not.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	})
	r.Handle("/metrics", s.metrics.Handler())
	r.NotFound(s.notFound)

	app := chi.NewRouter()
	app.Use(s.ResolveSessionMiddleware)

	app.Get("/", s.showWizard)
	app.Get("/token", s.showTokenError)
	app.Get("/entries", s.listEntries)

	app.Route("/wizard", func(r chi.Router) {
		r.Get("/state", s.wizardState)
		r.Get("/events", s.streamWizardEvents)
		r.Post("/next", s.wizardAction(actionNext))
		r.Post("/back", s.wizardAction(actionBack))
		r.Post("/toggle", s.wizardAction(actionToggle))
		r.Post("/retry", s.wizardAction(actionRetry))
	})

	app.NotFound(s.notFound)

	if s.cfg.BasePath == "" {
		r.Mount("/", app)
	} else {
		r.Mount(s.cfg.BasePath, app)
	}

	return r
}

func (s *Server) homePath() string {
	return s.cfg.BasePath + "/"
}

func (s *Server) showTokenError(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)

	view := web.TokenErrorView{ExitURL: s.cfg.ExitURL, ExitLabel: s.cfg.ExitLabel}
	if err := s.renderer.TokenError(w, view); err != nil {
		s.logger.Error("Failed to render token error page", "error", err)
	}
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn("404 Error: User attempted to access non-existent route", "path", r.URL.Path)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)

	if err := s.renderer.NotFound(w, web.NotFoundView{Base: s.cfg.BasePath}); err != nil {
		s.logger.Error("Failed to render not found page", "error", err)
	}
}
