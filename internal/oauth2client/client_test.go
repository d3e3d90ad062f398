package oauth2client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, method string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     srv.URL + "/oauth/token",
		TokenMethod:  method,
	}, zerolog.Nop())
}

func TestClient_Refresh_Post(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/token", r.URL.Path)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rt-1", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-2","refresh_token":"rt-2","token_type":"Bearer","expires_in":3600}`))
	}, http.MethodPost)

	res, err := client.Refresh(context.Background(), "at-1", "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", res.AccessToken)
	assert.Equal(t, "rt-2", res.RefreshToken)
	assert.EqualValues(t, 3600, res.ExpiresIn)
	assert.Zero(t, res.ExpiresAt)
}

func TestClient_Refresh_Get(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)

		q := r.URL.Query()
		assert.Equal(t, "refresh_token", q.Get("grant_type"))
		assert.Equal(t, "rt-1", q.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"at-2","expires_at":9999}`))
	}, http.MethodGet)

	res, err := client.Refresh(context.Background(), "at-1", "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", res.AccessToken)
	assert.Empty(t, res.RefreshToken)
	assert.EqualValues(t, 9999, res.ExpiresAt)
}

func TestClient_Refresh_NonSuccessStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}, http.MethodPost)

	_, err := client.Refresh(context.Background(), "at-1", "rt-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestClient_Refresh_ErrorPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"invalid_grant","error_description":"refresh token revoked"}`))
	}, http.MethodPost)

	_, err := client.Refresh(context.Background(), "at-1", "rt-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.Contains(t, err.Error(), "refresh token revoked")
}

func TestClient_Refresh_MalformedBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}, http.MethodPost)

	_, err := client.Refresh(context.Background(), "at-1", "rt-1")
	assert.Error(t, err)
}

func TestClient_Refresh_MissingAccessToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token_type":"Bearer","expires_in":3600}`))
	}, http.MethodPost)

	_, err := client.Refresh(context.Background(), "at-1", "rt-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing access_token")
}

func TestClient_Refresh_EmptyRefreshToken(t *testing.T) {
	client := New(Config{TokenURL: "http://localhost:0"}, zerolog.Nop())

	_, err := client.Refresh(context.Background(), "at-1", "")
	assert.Error(t, err)
}
