package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/Simplici0/slabquote/internal/config"
	"github.com/Simplici0/slabquote/internal/estimate"
	"github.com/Simplici0/slabquote/internal/logging"
	"github.com/Simplici0/slabquote/internal/proposal"
	"github.com/Simplici0/slabquote/internal/records"
	"github.com/Simplici0/slabquote/internal/seed"
)

const shutdownTimeout = 10 * time.Second

func main() {
	dotEnvErr := config.LoadDotEnv()
	logging.Setup(logging.ParseLevel(os.Getenv("LOG_LEVEL")), config.IsDevEnv(os.Getenv("APP_ENV")))
	if dotEnvErr != nil {
		slog.Warn("could not load .env", "error", dotEnvErr)
	}
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open estimate store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	calc := estimate.NewCalculator(cfg.Rates)

	if cfg.SeedDemo {
		stats, err := seed.Run(ctx, store, calc)
		if err != nil {
			slog.Error("failed to seed demo estimates", "error", err)
			os.Exit(1)
		}
		slog.Info("demo seed finished", "inserts", stats.Inserts)
	}

	srv := newServer(calc, store, newProposalService(cfg))
	limiter := NewIPRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(cfg.StaticDir, limiter),
		ReadHeaderTimeout: 10 * time.Second,
		// Proposal generation runs inside the request.
		WriteTimeout: cfg.ProposalTimeout + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening",
			"addr", httpServer.Addr,
			"env", cfg.Env,
			"store", cfg.StoreDriver,
			"proposals", cfg.ProposalProvider,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			slog.Error("server error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
		return
	}
	slog.Info("server stopped")
}

func (s *server) routes(staticDir string, limiter *IPRateLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/rates", s.handleRates)
		if limiter != nil {
			r.With(limiter.LimitMiddleware).Post("/estimate", s.handleEstimate)
		} else {
			r.Post("/estimate", s.handleEstimate)
		}
		r.Get("/estimates", s.handleListEstimates)
		r.Get("/estimates/export.xlsx", s.handleExportXLSX)
		r.Get("/estimates/{id}", s.handleGetEstimate)
		r.Get("/estimates/{id}/pdf", s.handleEstimatePDF)
	})
	r.Handle("/metrics", promhttp.Handler())

	if staticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(staticDir)))
	}

	return r
}

func openStore(ctx context.Context, cfg config.Config) (records.Store, error) {
	switch cfg.StoreDriver {
	case "json":
		return records.NewFileStore(cfg.JSONStorePath)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store")
		}
		return records.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return records.OpenSQLite(cfg.DBPath)
	}
}

// newProposalService builds the configured provider. A missing API key is
// reported by the client on each attempt, so such requests get no proposal.
func newProposalService(cfg config.Config) *proposal.Service {
	httpClient := &http.Client{Timeout: cfg.ProposalTimeout}

	switch cfg.ProposalProvider {
	case "openai":
		client := proposal.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, httpClient)
		return proposal.NewService(client, "openai", cfg.ProposalTimeout)
	case "gemini":
		client := proposal.NewGeminiClient(cfg.GeminiAPIKey, cfg.GeminiModel, "", httpClient)
		return proposal.NewService(client, "gemini", cfg.ProposalTimeout)
	default:
		return proposal.NewService(nil, "", cfg.ProposalTimeout)
	}
}
