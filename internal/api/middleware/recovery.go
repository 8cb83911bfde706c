package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"costsim/pkg/logging"
)

// Recovery catches a panic from the wrapped handler, logs it with the
// stack trace and returns 500 instead of taking the whole process down.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logging.L().Error("panic recovered",
					logging.Any("panic", err),
					logging.String("stack", string(debug.Stack())))
				http.Error(w, fmt.Sprintf("Internal Server Error: %v", err), http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
