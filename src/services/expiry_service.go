package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/usergate/usergate/src/logging"
	"github.com/usergate/usergate/src/repositories"
)

// ExpiryService periodically reconciles stored key status with the clock,
// flipping active keys past their expiry instant to expired. Validation
// never depends on this sweep; it keeps operator listings honest.
type ExpiryService struct {
	repo     repositories.KeyRepository
	enabled  bool
	interval time.Duration
	done     chan bool
	log      zerolog.Logger
}

// NewExpiryService creates a new expiry sweeper
func NewExpiryService(repo repositories.KeyRepository, enabled bool, interval time.Duration) *ExpiryService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryService{
		repo:     repo,
		enabled:  enabled,
		interval: interval,
		done:     make(chan bool),
		log:      logging.NewLogger("expiry"),
	}
}

// Start starts the sweeper loop
func (es *ExpiryService) Start(ctx context.Context) {
	if !es.enabled {
		es.log.Info().Msg("expiry sweeper disabled")
		return
	}

	go func() {
		ticker := time.NewTicker(es.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				es.log.Info().Msg("expiry sweeper stopped")
				return
			case <-es.done:
				es.log.Info().Msg("expiry sweeper stopped")
				return
			case <-ticker.C:
				es.sweep(ctx)
			}
		}
	}()

	es.log.Info().Dur("interval", es.interval).Msg("expiry sweeper started")
}

// Stop stops the sweeper loop. No-op when the sweeper never started.
func (es *ExpiryService) Stop() {
	if !es.enabled {
		return
	}
	es.done <- true
}

// sweep performs one reconciliation pass
func (es *ExpiryService) sweep(ctx context.Context) {
	n, err := es.repo.MarkExpired(ctx, time.Now())
	if err != nil {
		es.log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		es.log.Info().Int64("keys", n).Msg("marked expired admin keys")
	}
}
