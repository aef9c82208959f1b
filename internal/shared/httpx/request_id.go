package httpx

import (
	"net/http"
	"strings"

	"github.com/k1networth/issuetracker-lite/internal/shared/requestid"
)

// RequestID keeps a client supplied X-Request-Id (up to 128 bytes) or
// generates one, echoes it on the response and stores it in the context.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := strings.TrimSpace(r.Header.Get(requestid.Header))
		if rid == "" || len(rid) > 128 {
			rid = requestid.New()
		}

		w.Header().Set(requestid.Header, rid)

		next.ServeHTTP(w, r.WithContext(requestid.With(r.Context(), rid)))
	})
}
