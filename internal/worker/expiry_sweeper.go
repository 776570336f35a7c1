package worker

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// SessionEnder ends every ACTIVE session whose end time has passed.
type SessionEnder interface {
	EndExpired(ctx context.Context) (int, error)
}

// ExpirySweeper ends sessions that ran out of time, so late joins are
// rejected even when the teacher never presses End.
type ExpirySweeper struct {
	ender    SessionEnder
	schedule string
	log      zerolog.Logger
}

func NewExpirySweeper(ender SessionEnder, schedule string, log zerolog.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		ender:    ender,
		schedule: schedule,
		log:      log.With().Str("component", "expiry_sweeper").Logger(),
	}
}

// Start runs the sweep on schedule until ctx ends. It returns an error only
// for an invalid schedule.
func (s *ExpirySweeper) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule expiry sweep %q: %w", s.schedule, err)
	}
	c.Start()
	s.log.Info().Str("schedule", s.schedule).Msg("ExpirySweeper started")

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		s.log.Info().Msg("ExpirySweeper stopped")
	}()
	return nil
}

// Sweep runs one pass.
func (s *ExpirySweeper) Sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := s.ender.EndExpired(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("Expiry sweep failed")
		return
	}
	if n > 0 {
		s.log.Info().Int("ended", n).Msg("Ended expired sessions")
	}
}
