package server

import (
	"context"

	"github.com/solranch/backend/internal/solana"
)

// HealthService defines behaviour for readiness probes.
type HealthService interface {
	Probe(ctx context.Context) error
}

// Pinger is the mirror-database connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendHealthService verifies mirror and ledger connectivity as part of
// health checks.
type BackendHealthService struct {
	DB      Pinger
	Gateway solana.Gateway
}

// Probe implements the HealthService interface.
func (s BackendHealthService) Probe(ctx context.Context) error {
	if s.DB != nil {
		if err := s.DB.Ping(ctx); err != nil {
			return err
		}
	}
	if s.Gateway != nil {
		if _, err := s.Gateway.CurrentBlockHeight(ctx); err != nil {
			return err
		}
	}
	return nil
}
