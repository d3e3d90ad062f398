package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumoauth/internal/storage"
)

type fakeStore struct {
	candidates []storage.ExpiringToken
	err        error
	gotCutoff  int64
}

func (f *fakeStore) ListExpiringBefore(ctx context.Context, cutoff int64) ([]storage.ExpiringToken, error) {
	f.gotCutoff = cutoff
	return f.candidates, f.err
}

type fakeRefresher struct {
	refreshed []string
	failFor   map[string]error
	noopFor   map[string]bool
}

func (f *fakeRefresher) RefreshToken(ctx context.Context, userID string) (bool, error) {
	if err, ok := f.failFor[userID]; ok {
		return false, err
	}
	if f.noopFor[userID] {
		return false, nil
	}
	f.refreshed = append(f.refreshed, userID)
	return true, nil
}

func TestSweeper_RunOnce(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	store := &fakeStore{candidates: []storage.ExpiringToken{
		{UserID: "a", ExpiresAt: now.Add(10 * time.Minute).Unix(), HasRefreshToken: true},
		{UserID: "c", ExpiresAt: now.Add(5 * time.Minute).Unix(), HasRefreshToken: false},
	}}
	refresher := &fakeRefresher{}

	s := NewSweeper(store, refresher, nil, zerolog.Nop())
	s.SetClock(func() time.Time { return now })

	stats := s.RunOnce(context.Background())

	assert.Equal(t, now.Add(SweepLookahead).Unix(), store.gotCutoff)
	assert.Equal(t, SweepStats{Candidates: 2, Refreshed: 1, Skipped: 1}, stats)
	assert.Equal(t, []string{"a"}, refresher.refreshed)
}

func TestSweeper_RunOnce_FailureIsolation(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	store := &fakeStore{candidates: []storage.ExpiringToken{
		{UserID: "a", HasRefreshToken: true, ExpiresAt: now.Unix() + 60},
		{UserID: "b", HasRefreshToken: true, ExpiresAt: now.Unix() + 120},
		{UserID: "c", HasRefreshToken: true, ExpiresAt: now.Unix() + 180},
	}}
	refresher := &fakeRefresher{failFor: map[string]error{"a": fmt.Errorf("boom")}}

	s := NewSweeper(store, refresher, nil, zerolog.Nop())
	s.SetClock(func() time.Time { return now })

	stats := s.RunOnce(context.Background())

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Refreshed)
	assert.Equal(t, []string{"b", "c"}, refresher.refreshed, "one user's failure must not abort the sweep")
}

func TestSweeper_RunOnce_RefresherNoop(t *testing.T) {
	store := &fakeStore{candidates: []storage.ExpiringToken{
		{UserID: "a", HasRefreshToken: true, ExpiresAt: 1},
	}}
	refresher := &fakeRefresher{noopFor: map[string]bool{"a": true}}

	s := NewSweeper(store, refresher, nil, zerolog.Nop())
	stats := s.RunOnce(context.Background())

	assert.Equal(t, SweepStats{Candidates: 1, Skipped: 1}, stats)
}

func TestSweeper_RunOnce_Disabled(t *testing.T) {
	store := &fakeStore{candidates: []storage.ExpiringToken{
		{UserID: "a", HasRefreshToken: true, ExpiresAt: 1},
	}}
	refresher := &fakeRefresher{}

	s := NewSweeper(store, refresher, func() bool { return false }, zerolog.Nop())
	stats := s.RunOnce(context.Background())

	assert.Zero(t, stats.Candidates)
	assert.Empty(t, refresher.refreshed)
	assert.Zero(t, store.gotCutoff, "store must not be queried while disabled")
}

func TestSweeper_RunOnce_StoreError(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("db locked")}
	refresher := &fakeRefresher{}

	s := NewSweeper(store, refresher, nil, zerolog.Nop())

	// Must not panic or propagate; the next scheduled run simply tries again.
	stats := s.RunOnce(context.Background())
	assert.Zero(t, stats.Candidates)
}

func TestSweeper_StartStop(t *testing.T) {
	store := &fakeStore{}
	s := NewSweeper(store, &fakeRefresher{}, nil, zerolog.Nop())

	s.Start()
	require.NotNil(t, s.cron)
	s.Stop()
}
