package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/picksy/desktop/internal/config"
	"github.com/picksy/desktop/internal/models"
)

// APIKeyAuth rejects requests that do not carry the configured API key.
// When APIKeyHash is set the key is checked against it with bcrypt. With
// neither key nor hash configured every request passes. Health checks are
// never authenticated.
func APIKeyAuth(sec config.Security) func(http.Handler) http.Handler {
	headerName := sec.APIKeyHeader
	if headerName == "" {
		headerName = "X-API-Key"
	}

	return func(next http.Handler) http.Handler {
		if sec.APIKey == "" && sec.APIKeyHash == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := r.Header.Get(headerName)
			if providedKey == "" {
				writeError(w, http.StatusUnauthorized, "API key is required.")
				return
			}

			if !validKey(sec, providedKey) {
				writeError(w, http.StatusUnauthorized, "Invalid API key.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validKey(sec config.Security, provided string) bool {
	if sec.APIKeyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(sec.APIKeyHash), []byte(provided)) == nil
	}
	return constantTimeEquals(sec.APIKey, provided)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: message})
}

// constantTimeEquals performs a constant-time string comparison
func constantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
