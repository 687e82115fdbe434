package handlers

import (
	"net/http"

	"github.com/voicecode-ai/mentor/pkg/server/mw"
)

// Health serves the liveness endpoint.
func Health() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mw.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
