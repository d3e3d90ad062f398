package tokens

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// TokenSource exposes a user's managed credentials as an oauth2.TokenSource so
// API clients built on golang.org/x/oauth2 can consume them directly. Every
// Token call goes through the controller's read-or-refresh path.
func (c *Controller) TokenSource(ctx context.Context, userID string) oauth2.TokenSource {
	return &userTokenSource{ctx: ctx, controller: c, userID: userID}
}

type userTokenSource struct {
	ctx        context.Context
	controller *Controller
	userID     string
}

func (s *userTokenSource) Token() (*oauth2.Token, error) {
	rec, err := s.controller.currentRecord(s.ctx, s.userID)
	if err != nil {
		return nil, err
	}
	if rec.AccessToken == "" {
		return nil, errors.New("no access token available")
	}

	tok := &oauth2.Token{
		AccessToken:  rec.AccessToken,
		RefreshToken: rec.RefreshToken,
		TokenType:    "Bearer",
	}
	if rec.ExpiresAt > 0 {
		tok.Expiry = time.Unix(rec.ExpiresAt, 0)
	}
	return tok, nil
}
