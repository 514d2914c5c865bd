package http

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/httplog/v2"
	"github.com/go-chi/render"
)

// recoverer turns a panic in a handler into a logged 500 with the usual JSON error body.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			httplog.LogEntrySetField(r.Context(), "panic", slog.AnyValue(rvr))
			logEvent(r, slog.LevelError, layerHandler, "something went wrong, panic occurred",
				slog.Any("err", rvr),
				slog.String("stack", string(debug.Stack())),
			)

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, serverErrorResponse)
		}()

		next.ServeHTTP(w, r)
	})
}
