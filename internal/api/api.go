// Package api exposes the product over HTTP: auth, account state, chat with
// streamed responses, enterprise team management and archive export.
package api

import (
	"encoding/json"
	"net/http"

	"nexus.chat/internal/auth"
	"nexus.chat/internal/middleware"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func getClaims(r *http.Request) (*auth.Claims, bool) {
	return middleware.GetUserFromContext(r.Context())
}
