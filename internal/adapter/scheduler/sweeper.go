package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Sweeper periodically closes auctions whose deadline passed without a bid
// arriving to close them.
type Sweeper struct {
	cron    *cron.Cron
	target  ExpirySweeper
	timeout time.Duration
}

func NewSweeper(target ExpirySweeper, timeout time.Duration) *Sweeper {
	logger := cronLogger{}
	return &Sweeper{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		target:  target,
		timeout: timeout,
	}
}

func (s *Sweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}

	s.cron.Start()
	log.Info().Str("schedule", spec).Msg("expiry sweeper started")
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
		log.Info().Msg("expiry sweeper stopped")
	case <-ctx.Done():
		log.Warn().Msg("expiry sweeper stop timed out")
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) int {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	closed, err := s.target.SweepExpired(ctx)
	if err != nil {
		log.Error().Err(err).Int("closed", closed).Msg("expiry sweep finished with errors")
		return closed
	}

	if closed > 0 {
		log.Info().Int("closed", closed).Dur("took", time.Since(start)).Msg("expiry sweep")
	}
	return closed
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
