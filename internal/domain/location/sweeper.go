package location

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Sweeper periodically expires emergency shares past their TTL. Reads
// filter on expires_at as well, so the sweep only reclaims rows; it is
// not load-bearing for correctness.
type Sweeper struct {
	service *Service
	logger  zerolog.Logger
	cron    *cron.Cron
}

func NewSweeper(service *Service, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		service: service,
		logger:  logger,
		cron: cron.New(cron.WithChain(
			cron.Recover(cron.DefaultLogger),
		)),
	}
}

func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc("@every 5m", s.sweep)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		s.logger.Warn().Msg("sweeper stop timed out")
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.service.ExpireStale(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("expired", n).Msg("deactivated stale emergency shares")
	}
}
