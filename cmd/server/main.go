package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/liamcoop/eligibility/artifacts"
	"github.com/liamcoop/eligibility/config"
	"github.com/liamcoop/eligibility/internal/bootstrap"
	"github.com/liamcoop/eligibility/internal/logger"
	"github.com/liamcoop/eligibility/prediction"
	"github.com/liamcoop/eligibility/validation"
)

const serviceName = "insurance-eligibility"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

type Server struct {
	cfg         *config.Config
	bundle      *artifacts.Bundle
	service     *prediction.Service
	constraints []validation.Constraint
	router      *chi.Mux
}

func NewServer(cfg *config.Config, bundle *artifacts.Bundle) (*Server, error) {
	svc, validator, err := bootstrap.NewService(cfg, bundle)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:         cfg,
		bundle:      bundle,
		service:     svc,
		constraints: validator.Constraints(),
	}

	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.cfg.SlowRequest))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	r.NotFound(s.handleNotFound)
	r.MethodNotAllowed(s.handleMethodNotAllowed)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/info", s.handleInfo)
		r.Get("/metrics", s.handleMetrics)

		// Scoring
		r.Post("/predict", s.handlePredict)
		r.Post("/predict-batch", s.handlePredictBatch)
		r.Post("/predict-csv", s.handlePredictCSV)
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", "error", err)
	}

	if err := logger.Configure(logger.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 28,
	}); err != nil {
		logger.Fatal("Failed to configure logging", "error", err)
	}
	defer logger.Shutdown(context.Background())

	// Artifacts are loaded once; a failure here means the process never serves
	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	bundle, err := bootstrap.LoadBundle(loadCtx, cfg)
	cancel()
	if err != nil {
		logger.Fatal("Failed to load artifacts", "error", err)
	}

	server, err := NewServer(cfg, bundle)
	if err != nil {
		logger.Fatal("Failed to create server", "error", err)
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		logger.Info("Server starting", "addr", httpServer.Addr, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}
