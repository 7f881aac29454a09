package monitoring

import (
	"context"
	"time"

	"github.com/isdelr/studshare-be/internal/services"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	cron     *cron.Cron
	tokenSvc services.TokenServiceProvider
}

// NewScheduler creates a scheduler that purges expired revoked tokens on purgeSpec,
// a standard cron expression or descriptor such as "@every 1h".
func NewScheduler(tokenSvc services.TokenServiceProvider, purgeSpec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:     cron.New(),
		tokenSvc: tokenSvc,
	}
	if _, err := s.cron.AddFunc(purgeSpec, s.purgeRevokedTokens); err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the scheduler in its own goroutine.
func (s *Scheduler) Run() {
	log.Info().Msg("Starting background scheduler...")
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped background scheduler.")
}

func (s *Scheduler) purgeRevokedTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.tokenSvc.PurgeExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduler: Failed to purge revoked tokens")
		return
	}
	if n > 0 {
		log.Info().Int64("purged", n).Msg("Scheduler: Purged expired revoked tokens")
	}
}
