package httpmiddleware

import (
	"net/http"
	"runtime/debug"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Recovery returns a middleware that turns a handler panic into a logged 500
// response instead of a dropped connection. The response is only written when
// the handler has not started writing one already.
func Recovery() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errIsAbortHandler(err) {
					panic(rec)
				}

				zctx.From(r.Context()).Error("handler panicked",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)

				w.Header().Set("Connection", "close")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// errIsAbortHandler reports whether the panic is net/http's own abort
// sentinel, which must propagate for the server to handle it.
func errIsAbortHandler(err error) bool {
	return err == http.ErrAbortHandler //nolint:errorlint // sentinel comparison by identity
}
