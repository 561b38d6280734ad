// Command server runs the debtdesk HTTP API over a hosted Supabase
// backend.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/debtdesk/debtdesk/internal/config"
	"github.com/debtdesk/debtdesk/internal/httpapi"
	"github.com/debtdesk/debtdesk/internal/logging"
	"github.com/debtdesk/debtdesk/internal/metrics"
	"github.com/debtdesk/debtdesk/internal/middleware"
	"github.com/debtdesk/debtdesk/internal/repo"
	"github.com/debtdesk/debtdesk/internal/supabase"
	"github.com/debtdesk/debtdesk/internal/upload"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("debtdesk", "info", "json").WithError(err).Error("configuration invalid")
		os.Exit(1)
	}

	logger := logging.New("debtdesk", cfg.Log.Level, cfg.Log.Format)

	client, err := supabase.New(supabase.Config{
		URL:        cfg.Supabase.URL,
		AnonKey:    cfg.Supabase.AnonKey,
		ServiceKey: cfg.Supabase.ServiceKey,
	})
	if err != nil {
		logger.WithError(err).Error("supabase client init failed")
		os.Exit(1)
	}

	uploader := upload.New(client.Storage())
	debts := repo.NewDebts(client.Database())
	requests := repo.NewPaymentRequests(client.Database(), uploader)
	profiles := repo.NewProfiles(client.Database())
	users := repo.NewUsers(client.Database())

	svc := httpapi.New(client.Auth(), debts, requests, profiles, users, uploader, logger)

	router := mux.NewRouter()
	svc.Register(router, middleware.RequireAdmin(profiles, logger))
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	auth := middleware.NewSupabaseAuth(cfg.Supabase.JWTSecret, client.Auth(), logger, httpapi.PublicPaths)
	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst, logger)
	stop := make(chan struct{})
	limiter.StartCleanup(time.Minute, stop)

	var handler http.Handler = router
	handler = limiter.Handler(handler)
	handler = auth.Handler(handler)
	handler = metrics.InstrumentHandler(handler)
	handler = middleware.NewTracing(logger).Handler(handler)
	handler = middleware.NewCORS([]string{"*"}).Handler(handler)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.WithFields(map[string]interface{}{"addr": cfg.Addr()}).Info("server listening")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.WithError(err).Error("server error")
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	close(stop)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown error")
	}

	logger.Info("stopped")
}
