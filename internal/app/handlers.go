package app

import (
	"encoding/json"
	"net/http"
)

// handleRefresh forces a read-or-refresh of the caller's stored token and
// returns whatever access token is current afterwards. An empty token after
// the attempt is reported as a server error.
func (a *Application) handleRefresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "could not identify user")
		return
	}

	token, err := a.Controller.GetToken(r.Context(), userID)
	if err != nil {
		a.Log.Error().Err(err).Str("user_id", userID).Msg("token lookup failed")
		writeJSONError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}
	if token == "" {
		writeJSONError(w, http.StatusInternalServerError, "failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access_token": token})
}

// handleHealthz reports process liveness.
func (a *Application) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
