package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/solranch/backend/internal/config"
	"github.com/solranch/backend/internal/logging"
	"github.com/solranch/backend/internal/metrics"
	"github.com/solranch/backend/internal/repository"
	"github.com/solranch/backend/internal/server"
	"github.com/solranch/backend/internal/service"
	"github.com/solranch/backend/internal/solana"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	db, err := repository.Open(cfg.Database)
	if err != nil {
		logger.Error("failed to open mirror database", "error", err)
		os.Exit(1)
	}
	repo := repository.New(db)

	gateway := solana.NewClient(cfg.Solana.RPCURL)
	program, err := solana.NewProgram(cfg.Solana.ProgramID)
	if err != nil {
		logger.Error("invalid program id", "error", err)
		os.Exit(1)
	}

	var adminKey solana.PrivateKey
	adminPubkey := ""
	if cfg.Solana.AdminSecretKey != "" {
		adminKey, err = solana.ParsePrivateKey(cfg.Solana.AdminSecretKey)
		if err != nil {
			logger.Error("invalid admin secret key", "error", err)
			os.Exit(1)
		}
		adminPubkey = adminKey.PublicKey().String()
	} else {
		logger.Warn("no admin secret key configured; admin endpoints are disabled")
	}

	var m *metrics.Metrics
	var metricsHandler http.Handler
	if cfg.HTTP.MetricsEnabled {
		m = metrics.New()
		metricsHandler = m.Handler()
	}

	authService := service.NewAuthService(repo, adminPubkey, cfg.Auth.SessionTTL, logger)
	ranchService := service.NewRanchService(repo, gateway, program, adminKey, cfg.Solana.ConfirmTimeout, m, logger)
	verifierService := service.NewVerifierService(repo, gateway, program, adminKey, cfg.Solana.ConfirmTimeout, m, logger)
	animalService := service.NewAnimalService(repo, gateway, program, m, logger)

	mw := server.NewAuthMiddleware(authService, logger)
	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.BackendHealthService{DB: repo, Gateway: gateway},
		Auth:             server.NewAuthHandlers(logger, authService, mw),
		Ranches:          server.NewRanchHandlers(logger, ranchService, mw),
		Verifiers:        server.NewVerifierHandlers(logger, verifierService, mw),
		Animals:          server.NewAnimalHandlers(logger, animalService, mw),
		Metrics:          metricsHandler,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
