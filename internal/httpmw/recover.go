package httpmw

import (
	"net/http"
	"runtime/debug"

	"github.com/sanctuaryweb/site/internal/log"
	"github.com/sanctuaryweb/site/internal/xerrors"
)

// Recover turns a handler panic into a logged error and a 500. onPanic,
// when set, runs after logging (the metrics package counts panics with it).
// http.ErrAbortHandler is re-panicked so net/http can abort the response.
func Recover(logger log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.Nop()
	}
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

				var err error
				if e, ok := rec.(error); ok {
					err = xerrors.Wrap(e, "panic")
				} else {
					err = xerrors.Newf("panic: %v", rec)
				}

				ctx := r.Context()
				L := log.FromContext(ctx)
				if L == nil || L == log.Nop() {
					L = logger
				}
				L.With(
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
					"request_id", RequestIDFromContext(ctx),
				).Error(ctx, err, "httpserver panic recovered", "stack", string(debug.Stack()))

				if onPanic != nil {
					onPanic()
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
