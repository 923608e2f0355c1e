package middleware

import (
	"crypto/subtle"
	"net/http"

	"agenda/pkg/logger"

	"github.com/julienschmidt/httprouter"
)

const ChannelTokenHeader = "X-Goog-Channel-Token"

// ChannelTokenVerification rejects calendar push notifications whose channel
// token does not match the configured one. An empty token disables the
// check; per-channel tokens are still verified by the webhook handler.
func ChannelTokenVerification(token string, log *logger.Logger) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			if token == "" {
				next(w, r, ps)
				return
			}

			received := r.Header.Get(ChannelTokenHeader)
			if subtle.ConstantTimeCompare([]byte(received), []byte(token)) != 1 {
				log.Warn("Calendar webhook verification failed",
					"request_id", RequestID(r.Context()),
					"channel_id", r.Header.Get("X-Goog-Channel-ID"),
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
				return
			}

			next(w, r, ps)
		}
	}
}
