package middleware

import (
	"io"
	"net/http"
)

// at most this much of an unread request body is drained, bigger leftovers just get closed
const maxDrainBytes = 64 << 10

// DrainAndCloseRequest consumes whatever the handler left unread in the request body, so the
// connection can be reused, then closes the body.
func DrainAndCloseRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body == nil || r.Body == http.NoBody {
				return
			}
			_, _ = io.CopyN(io.Discard, r.Body, maxDrainBytes)
			_ = r.Body.Close()
		})
	}
}
