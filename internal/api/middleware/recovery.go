package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/hugh/formlink/internal/apperr"
)

// Recovery turns a panicking handler into a 500 with the standard error
// envelope and logs the stack.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic serving request",
					"panic", rec,
					"method", r.Method,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, apperr.KindInfrastructure, "internal error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
