package middleware

import (
	"log/slog"
	"net/http"

	"github.com/huddlehq/huddle/internal/api/response"
	"github.com/huddlehq/huddle/internal/errreport"
)

// Recovery returns middleware that recovers from panics, reports them and
// returns a 500 error.
func Recovery(reporter errreport.Reporter) func(http.Handler) http.Handler {
	if reporter == nil {
		reporter = errreport.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					requestID := GetRequestID(r.Context())
					slog.Warn("panic recovered", "panic", rec, "requestId", requestID, "path", r.URL.Path)
					reporter.Panic(r, rec)
					response.Err(w, http.StatusInternalServerError, response.CodeInternal, "An unexpected error occurred", requestID)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
