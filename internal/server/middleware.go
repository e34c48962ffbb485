package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/luiscnext/secure-terminal-execution-server/internal/runner/audit"
)

// requestIDHeader is the header a caller-supplied request ID arrives on, and
// the header every response echoes its (possibly generated) request ID on.
const requestIDHeader = "X-Request-Id"

// withRequestID tags every request with an ID, reusing one supplied by the
// caller so a request can be traced across a proxy chain, or minting one
// otherwise. The ID rides in the response header and in the request context,
// where audit.WithRequestID makes it available to audit log records.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := audit.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
