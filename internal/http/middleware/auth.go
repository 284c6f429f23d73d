package middlewarex

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"bookpay/internal/store/repositories"
)

// APIKeyAuth guards the tenant API. Keys are stored as sha256 hex, so the
// lookup never touches the plaintext key. Inactive tenants are rejected
// the same way as unknown keys.
func APIKeyAuth(tenants repositories.TenantRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, "missing bearer token")
				return
			}

			ten, err := tenants.FindByAPIKeyHash(r.Context(), HashAPIKey(key))
			if err != nil || !ten.IsActive() {
				unauthorized(w, "invalid API key")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenantID(r.Context(), ten.ID)))
		})
	}
}

// HashAPIKey returns the sha256 hex digest under which API keys are stored.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) || len(header) == len(prefix) {
		return "", false
	}
	return header[len(prefix):], true
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": "UNAUTHORIZED", "message": msg},
	})
}
