package controllers

import (
	"encoding/json"
	"net/http"
	"strings"

	"PMRender/internal/api/dto"
)

// authorize enforces the static bearer token when one is configured. It
// writes the 401 response itself and reports whether the request may
// proceed.
func authorize(w http.ResponseWriter, r *http.Request, token string) bool {
	if token == "" {
		return true
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
		return false
	}
	if strings.TrimPrefix(header, "Bearer ") != token {
		writeJSONError(w, http.StatusUnauthorized, "invalid bearer token")
		return false
	}
	return true
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(dto.ErrorResponse{Error: message})
}

// tail keeps the last limit bytes of s so diagnostic payloads stay bounded.
func tail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[len(s)-limit:]
}

// headerValue flattens a stream tail into a single legal header line.
func headerValue(s string, limit int) string {
	flat := strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
	return tail(flat, limit)
}
