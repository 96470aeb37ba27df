package middleware

import (
	"crypto/subtle"
	"net/http"

	log "github.com/sirupsen/logrus"
)

const GatewaySecretHeader = "X-Gateway-Secret"

// GatewaySecret protects the transfer gateway callback routes with a shared secret.
func GatewaySecret(secret string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(GatewaySecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				log.Warnf("gateway callback with invalid secret: %s %s", r.Method, r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
