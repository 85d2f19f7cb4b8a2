package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/veilmatch/internal/service"
)

// Options carries what the status endpoint reports and where metrics come from.
type Options struct {
	StoreKind    string
	BusConnected func() bool
	Gatherer     prometheus.Gatherer
}

type Server struct {
	router *chi.Mux
	port   int
	svc    *service.Service
	opts   Options
	logger *slog.Logger
	http   *http.Server
}

func NewServer(port int, apiToken string, svc *service.Service, opts Options, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		svc:    svc,
		opts:   opts,
		logger: logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/veil/status", s.status)
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Post("/api/v1/trust/next", s.nextScore)
	router.Get("/api/v1/reveal/grid", s.revealGrid)
	router.Get("/api/v1/reveal/tiers/{percent}", s.revealTier)
	router.Get("/api/v1/milestones", s.milestones)

	router.Route("/api/v1/profiles/{userID}", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Put("/", s.ensureProfile)
		r.Get("/", s.getProfile)
		r.Post("/actions", s.applyActions)
		r.Put("/reveal", s.setReveal)
		r.Put("/sobriety-date", s.setSobrietyDate)
		r.Put("/photo", s.setPhoto)
		r.Post("/milestones/{milestoneID}/celebrate", s.celebrate)
		r.Get("/journey", s.journey)
		r.Get("/reveal-state", s.revealState)
		r.Get("/events", s.events)
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	busConnected := false
	if s.opts.BusConnected != nil {
		busConnected = s.opts.BusConnected()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":         "veilmatch",
		"status":        "ok",
		"store":         s.opts.StoreKind,
		"bus_connected": busConnected,
	})
}
