package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/grcops/pkg/usecase"
)

type Server struct {
	router   *chi.Mux
	uc       *usecase.UseCases
	rps      float64
	burst    int
	limiters *clientLimiters
}

type Options func(*Server)

// WithRateLimit enables per-client rate limiting under /api. rps <= 0 disables it.
func WithRateLimit(rps float64, burst int) Options {
	return func(s *Server) {
		s.rps = rps
		s.burst = burst
	}
}

func New(uc *usecase.UseCases, opts ...Options) (*Server, error) {
	if uc == nil {
		return nil, goerr.New("use cases are required")
	}

	r := chi.NewRouter()
	s := &Server{
		router: r,
		uc:     uc,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rps > 0 {
		if s.burst < 1 {
			s.burst = 1
		}
		s.limiters = newClientLimiters(s.rps, s.burst)
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(accessLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)

	r.Route("/api", func(r chi.Router) {
		if s.limiters != nil {
			r.Use(rateLimitMiddleware(s.limiters))
		}
		r.Use(actorMiddleware)
		r.Use(authzMiddleware(uc.Authorizer()))

		r.Route("/frameworks", (&frameworkHandler{uc: uc.Framework}).routes)
		r.Route("/controls", (&frameworkControlHandler{uc: uc.FrameworkControl}).routes)
		r.Route("/risks", (&riskHandler{uc: uc.Risk}).routes)
		r.Route("/catalog/controls", (&catalogHandler{catalog: uc.Catalog, risk: uc.Risk}).routes)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, goerr.Wrap(usecase.ErrNotFound, "no such route"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusMethodNotAllowed, errorResponse{
			StatusCode: http.StatusMethodNotAllowed,
			Message:    "method not allowed",
			Timestamp:  now(),
			Path:       r.URL.Path,
		})
	})

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Repository().Ping(r.Context()); err != nil {
		writeError(w, r, goerr.Wrap(errUnavailable, "repository is unavailable", goerr.V("cause", err.Error())))
		return
	}
	writeData(w, r, http.StatusOK, healthResponse{Status: "ok"})
}
