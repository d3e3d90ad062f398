package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forumoauth/internal/session"
)

func TestRequireAuth(t *testing.T) {
	app := &Application{
		Log:          zerolog.Nop(),
		SessionStore: session.NewInMemoryStore(),
	}

	validSID, err := app.SessionStore.Create(context.Background(), "alice", time.Hour)
	require.NoError(t, err)
	expiredSID, err := app.SessionStore.Create(context.Background(), "bob", -time.Minute)
	require.NoError(t, err)

	var gotUserID string
	handler := app.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = getUserIDFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		cookie     *http.Cookie
		wantStatus int
		wantUser   string
	}{
		{"no cookie", nil, http.StatusUnauthorized, ""},
		{"unknown session", &http.Cookie{Name: "session_id", Value: "bogus"}, http.StatusUnauthorized, ""},
		{"expired session", &http.Cookie{Name: "session_id", Value: expiredSID}, http.StatusUnauthorized, ""},
		{"valid session", &http.Cookie{Name: "session_id", Value: validSID}, http.StatusOK, "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUserID = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantUser, gotUserID)
		})
	}
}
