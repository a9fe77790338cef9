package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/r3e-network/qvl/internal/intelclient"
)

// Server is the demo HTTP front door over the verification library
// (spec §4.I). It holds no verification state of its own — every
// request builds a fresh qvl.Config and calls straight into pkg/qvl.
type Server struct {
	cfg       *Config
	router    *chi.Mux
	http      *http.Server
	tokenAuth *jwtauth.JWTAuth
	client    *intelclient.Client
	metrics   *metricsCollector
	log       zerolog.Logger
}

// NewServer wires the router, middleware stack and collateral client.
func NewServer(cfg *Config, log zerolog.Logger) *Server {
	var clientOpts []intelclient.Option
	if cfg.PCSBaseURL != "" {
		clientOpts = append(clientOpts, intelclient.WithBaseURL(cfg.PCSBaseURL))
	}

	s := &Server{
		cfg:       cfg,
		tokenAuth: jwtauth.New("HS256", []byte(cfg.JWTSecret), nil),
		client:    intelclient.New(clientOpts...),
		metrics:   newMetricsCollector(),
		log:       log,
	}
	s.metrics.register(prometheus.DefaultRegisterer)
	s.initRouter()

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) initRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(recoverer(s.log))
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(s.metrics.middleware)

	if s.cfg.EnableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	if s.cfg.RateLimitPerMinute > 0 {
		r.Use(newIPRateLimiter(s.cfg.RateLimitPerMinute).middleware)
	}

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/v1/token", s.handleIssueToken)

	r.Route("/v1/verify", func(r chi.Router) {
		r.Use(jwtauth.Verifier(s.tokenAuth))
		r.Use(jwtauth.Authenticator(s.tokenAuth))
		r.Post("/sgx", s.handleVerify("sgx"))
		r.Post("/tdx", s.handleVerify("tdx"))
	})

	s.router = r
}

// Start blocks serving HTTP until the listener fails or is shut down.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("starting qvlserver")
	return s.http.ListenAndServe()
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info().Msg("stopping qvlserver")
	return s.http.Shutdown(ctx)
}
