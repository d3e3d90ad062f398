package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoRecord is returned by a Store when a user has no token record at all.
var ErrNoRecord = errors.New("no token record")

// Store is the persistence contract the controller requires. SaveTokenRecord
// must write the full triple as one atomic update; the controller never issues
// partial writes.
type Store interface {
	GetTokenRecord(ctx context.Context, userID string) (Record, error)
	SaveTokenRecord(ctx context.Context, userID string, rec Record) error
}

// RefreshResult is the provider's answer to a refresh_token grant.
// AccessToken is always present on success; everything else is optional.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // absolute unix seconds, 0 when not supplied
	ExpiresIn    int64 // relative seconds, 0 when not supplied
}

// Exchanger performs a single token-exchange round trip against the provider's
// token endpoint. One attempt per call; no retry.
type Exchanger interface {
	Refresh(ctx context.Context, accessToken, refreshToken string) (RefreshResult, error)
}

// Controller owns the token lifecycle for stored user credentials: the expiry
// decision, the refresh exchange, and the consistency rules for applying the
// exchange result back to storage.
type Controller struct {
	store     Store
	exchanger Exchanger
	log       zerolog.Logger
	now       func() time.Time
}

// NewController creates a Controller backed by the given store and exchanger.
func NewController(store Store, exchanger Exchanger, log zerolog.Logger) *Controller {
	if store == nil {
		panic("store cannot be nil")
	}
	if exchanger == nil {
		panic("exchanger cannot be nil")
	}
	return &Controller{
		store:     store,
		exchanger: exchanger,
		log:       log,
		now:       time.Now,
	}
}

// SetClock overrides the controller's time source. Intended for tests.
func (c *Controller) SetClock(now func() time.Time) {
	c.now = now
}

// IsExpired reports whether the record is due for refresh. An unknown expiry
// counts as expired. A token expiring strictly before now+ExpiryLookahead is
// expired; one expiring at exactly that instant is not.
func (c *Controller) IsExpired(rec Record) bool {
	if rec.ExpiresAt == 0 {
		return true
	}
	return rec.ExpiresAt < c.now().Add(ExpiryLookahead).Unix()
}

// RefreshToken exchanges the user's refresh token for a new access token and
// persists the result as one atomic write. It returns (false, nil) when there
// is nothing to refresh, and (false, err) when the exchange or the write
// fails. A failed exchange leaves the stored record untouched.
func (c *Controller) RefreshToken(ctx context.Context, userID string) (bool, error) {
	rec, err := c.store.GetTokenRecord(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			return false, nil
		}
		return false, fmt.Errorf("loading token record: %w", err)
	}
	if !rec.Refreshable() {
		return false, nil
	}

	res, err := c.exchanger.Refresh(ctx, rec.AccessToken, rec.RefreshToken)
	if err != nil {
		c.log.Warn().Err(err).Str("user_id", userID).Msg("token exchange failed")
		return false, fmt.Errorf("token exchange: %w", err)
	}
	if res.AccessToken == "" {
		c.log.Warn().Str("user_id", userID).Msg("provider response missing access token")
		return false, errors.New("token exchange: response missing access token")
	}

	rec.AccessToken = res.AccessToken
	// Providers may reuse refresh tokens; keep the stored one unless a
	// replacement was issued.
	if res.RefreshToken != "" {
		rec.RefreshToken = res.RefreshToken
	}
	switch {
	case res.ExpiresAt > 0:
		rec.ExpiresAt = res.ExpiresAt
	case res.ExpiresIn > 0:
		rec.ExpiresAt = c.now().Unix() + res.ExpiresIn
	}

	if err := c.store.SaveTokenRecord(ctx, userID, rec); err != nil {
		// The provider issued a token that was never durably recorded.
		c.log.Error().Err(err).Str("user_id", userID).Msg("refreshed token not persisted")
		return false, fmt.Errorf("persisting refreshed token: %w", err)
	}

	c.log.Info().Str("user_id", userID).Int64("expires_at", rec.ExpiresAt).Msg("token refreshed")
	return true, nil
}

// GetToken returns the user's current access token, refreshing it first when
// it is due and a refresh token is on file. A failed refresh is not fatal:
// the caller receives whatever access token is currently stored, possibly
// stale. A user with no record at all yields an empty token and no error.
func (c *Controller) GetToken(ctx context.Context, userID string) (string, error) {
	rec, err := c.currentRecord(ctx, userID)
	if err != nil {
		return "", err
	}
	return rec.AccessToken, nil
}

// currentRecord loads the record, refreshing through the store first when the
// token is due and refreshable.
func (c *Controller) currentRecord(ctx context.Context, userID string) (Record, error) {
	rec, err := c.store.GetTokenRecord(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("loading token record: %w", err)
	}
	if !c.IsExpired(rec) || !rec.Refreshable() {
		return rec, nil
	}

	ok, err := c.RefreshToken(ctx, userID)
	if !ok {
		if err != nil {
			c.log.Debug().Err(err).Str("user_id", userID).Msg("serving stored token after failed refresh")
		}
		return rec, nil
	}

	// The store is the single source of truth after a refresh.
	fresh, err := c.store.GetTokenRecord(ctx, userID)
	if err != nil {
		return rec, nil
	}
	return fresh, nil
}
