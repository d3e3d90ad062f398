package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"forumoauth/internal/metrics"
	"forumoauth/internal/storage"
)

// SweepLookahead is the window ahead of each sweep in which a token counts as
// due for proactive refresh.
const SweepLookahead = time.Hour

// The sweep runs once per hour, so with the one-hour lookahead every token
// with a known expiry is refreshed before it lapses.
const sweepSchedule = "@hourly"

// Store lists sweep candidates from durable token storage.
type Store interface {
	ListExpiringBefore(ctx context.Context, cutoff int64) ([]storage.ExpiringToken, error)
}

// Refresher performs a single-user refresh. (false, nil) means there was
// nothing to refresh.
type Refresher interface {
	RefreshToken(ctx context.Context, userID string) (bool, error)
}

// SweepStats summarizes one sweep run. Partial success is the normal outcome;
// a sweep itself never fails.
type SweepStats struct {
	Candidates int
	Refreshed  int
	Skipped    int
	Failed     int
}

// Sweeper periodically refreshes tokens nearing expiry so the on-demand path
// rarely has to refresh synchronously.
type Sweeper struct {
	store     Store
	refresher Refresher
	enabled   func() bool
	log       zerolog.Logger
	cron      *cron.Cron
	now       func() time.Time
}

// NewSweeper creates a Sweeper. The enabled gate is checked at the start of
// every run; pass nil to always run.
func NewSweeper(store Store, refresher Refresher, enabled func() bool, log zerolog.Logger) *Sweeper {
	if store == nil {
		panic("store cannot be nil")
	}
	if refresher == nil {
		panic("refresher cannot be nil")
	}
	return &Sweeper{
		store:     store,
		refresher: refresher,
		enabled:   enabled,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the sweeper's time source. Intended for tests.
func (s *Sweeper) SetClock(now func() time.Time) {
	s.now = now
}

// Start schedules the hourly sweep.
func (s *Sweeper) Start() {
	s.cron = cron.New()
	// sweepSchedule is a constant expression, so AddFunc cannot fail.
	_, _ = s.cron.AddFunc(sweepSchedule, func() {
		s.RunOnce(context.Background())
	})
	s.cron.Start()
	s.log.Info().Str("schedule", sweepSchedule).Msg("token refresh sweep scheduled")
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce executes one sweep: every user whose known expiry falls within the
// lookahead window gets a refresh attempt. Failures are isolated per user.
func (s *Sweeper) RunOnce(ctx context.Context) SweepStats {
	var stats SweepStats

	if s.enabled != nil && !s.enabled() {
		s.log.Debug().Msg("token refresh sweep disabled")
		return stats
	}

	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	cutoff := s.now().Add(SweepLookahead).Unix()
	candidates, err := s.store.ListExpiringBefore(ctx, cutoff)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list sweep candidates")
		return stats
	}

	stats.Candidates = len(candidates)
	metrics.SweepCandidates.Set(float64(len(candidates)))

	for _, cand := range candidates {
		if !cand.HasRefreshToken {
			stats.Skipped++
			metrics.RefreshAttempts.WithLabelValues("skipped").Inc()
			continue
		}

		ok, err := s.refresher.RefreshToken(ctx, cand.UserID)
		switch {
		case err != nil:
			stats.Failed++
			metrics.RefreshAttempts.WithLabelValues("failure").Inc()
			s.log.Error().Err(err).Str("user_id", cand.UserID).Msg("failed to refresh token")
		case ok:
			stats.Refreshed++
			metrics.RefreshAttempts.WithLabelValues("success").Inc()
		default:
			stats.Skipped++
			metrics.RefreshAttempts.WithLabelValues("skipped").Inc()
		}
	}

	s.log.Info().
		Int("candidates", stats.Candidates).
		Int("refreshed", stats.Refreshed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Msg("token refresh sweep completed")
	return stats
}
