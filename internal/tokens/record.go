package tokens

import "time"

// ExpiryLookahead is the safety margin applied when deciding whether a stored
// access token is still usable. A token expiring inside this window is treated
// as expired so it never goes stale mid-use.
const ExpiryLookahead = 30 * time.Minute

// Record is the token triple stored per user. A zero ExpiresAt means the
// expiry is unknown, and an unknown expiry is treated as already expired.
type Record struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // unix seconds
}

// Refreshable reports whether the record carries a refresh token. A record
// without one can never transition back to fresh automatically.
func (r Record) Refreshable() bool {
	return r.RefreshToken != ""
}
