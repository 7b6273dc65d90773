// Package purge permanently removes globally soft-deleted messages once
// their grace period has elapsed, releasing any media they still own.
package purge

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog"

	"github.com/Naing-Lynn-Aung/chatting-app/internal/events"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/media"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/metrics"
	"github.com/Naing-Lynn-Aung/chatting-app/internal/store"
)

// Clock abstracts wall time so tests can control the grace cutoff.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// defaultStoreTimeout bounds every store and media call made by a sweep.
const defaultStoreTimeout = 5 * time.Second

// Sweeper finds messages whose global deletion is older than the grace
// period, releases their media and deletes them for good. Failures are
// isolated per record; a sweep never aborts early.
type Sweeper struct {
	store      store.Store
	media      media.Releaser
	dispatcher *events.Dispatcher
	logger     zerolog.Logger
	clock      Clock
	grace      time.Duration
	timeout    time.Duration
}

// NewSweeper creates a Sweeper with the given grace period.
func NewSweeper(st store.Store, rel media.Releaser, d *events.Dispatcher, logger zerolog.Logger, grace time.Duration) *Sweeper {
	return &Sweeper{
		store:      st,
		media:      rel,
		dispatcher: d,
		logger:     logger,
		clock:      systemClock{},
		grace:      grace,
		timeout:    defaultStoreTimeout,
	}
}

// SetClock replaces the wall clock, for tests.
func (s *Sweeper) SetClock(c Clock) { s.clock = c }

// SetStoreTimeout bounds individual store and media calls.
func (s *Sweeper) SetStoreTimeout(d time.Duration) { s.timeout = d }

// callCtx bounds one store or media call so a stuck backend cannot stall
// the whole sweep.
func (s *Sweeper) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// Sweep runs one purge cycle and returns the number of messages removed.
// Purge is irreversible: once a message is swept, undo fails with NotFound.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.grace)

	cctx, cancel := s.callCtx(ctx)
	expired, err := s.store.ExpiredDeleted(cctx, cutoff)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("query expired messages: %w", err)
	}

	purged := 0
	for _, msg := range expired {
		for _, publicID := range msg.OriginalImagePublicIDs {
			cctx, cancel := s.callCtx(ctx)
			err := s.media.Destroy(cctx, publicID)
			cancel()
			if err != nil {
				metrics.MediaReleaseFailures.Inc()
				s.logger.Error().Err(err).Str("public_id", publicID).Str("message", msg.ID).Msg("failed to release media, continuing sweep")
			}
		}

		cctx, cancel := s.callCtx(ctx)
		err = s.store.DeleteMessage(cctx, msg.ID)
		cancel()
		if err != nil {
			s.logger.Error().Err(err).Str("message", msg.ID).Msg("failed to purge message, continuing sweep")
			continue
		}
		purged++
		metrics.MessagesPurged.Inc()

		s.dispatcher.ToRoom(msg.ChatID, events.MessagePurged{ID: msg.ID})
		s.dispatcher.Broadcast(events.SidebarUpdate{})
	}

	if purged > 0 {
		s.logger.Info().Int("purged", purged).Msg("purge sweep completed")
	}
	return purged, nil
}

// Scheduler runs the sweeper on a cron expression when one is configured,
// otherwise on a fixed interval.
type Scheduler struct {
	sweeper  *Sweeper
	interval time.Duration
	cron     string
	logger   zerolog.Logger
}

// NewScheduler creates a Scheduler. cron may be empty; interval must not
// be zero.
func NewScheduler(sweeper *Sweeper, interval time.Duration, cron string, logger zerolog.Logger) (*Scheduler, error) {
	if cron != "" && !gronx.IsValid(cron) {
		return nil, fmt.Errorf("invalid purge cron expression: %s", cron)
	}
	return &Scheduler{
		sweeper:  sweeper,
		interval: interval,
		cron:     cron,
		logger:   logger,
	}, nil
}

// Run blocks until ctx is cancelled, triggering a sweep on every tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info().Str("cron", s.cron).Dur("interval", s.interval).Msg("purge scheduler started")
	for {
		wait, err := s.nextWait()
		if err != nil {
			s.logger.Error().Err(err).Msg("purge schedule computation failed, falling back to interval")
			wait = s.interval
		}

		select {
		case <-ctx.Done():
			s.logger.Info().Msg("purge scheduler stopping")
			return
		case <-time.After(wait):
			if _, err := s.sweeper.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("purge sweep failed")
			}
		}
	}
}

// nextWait returns the time to sleep before the next sweep.
func (s *Scheduler) nextWait() (time.Duration, error) {
	if s.cron == "" {
		return s.interval, nil
	}
	next, err := gronx.NextTickAfter(s.cron, time.Now().UTC(), false)
	if err != nil {
		return 0, err
	}
	wait := time.Until(next)
	if wait < time.Second {
		wait = time.Second
	}
	return wait, nil
}
