package middleware

import (
	"log/slog"
	"net/http"
	"time"

	logctx "github.com/pribylovaa/drrm-datacore/internal/pkg/log"
)

// Logging кладёт в контекст логгер запроса и пишет событие http_request
// после ответа. Ошибки 5xx пишутся с уровнем Warn.
func Logging(l *slog.Logger) Middleware {
	if l == nil {
		l = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lg := l
			if rid := RequestIDFrom(r.Context()); rid != "" {
				lg = lg.With(slog.String("request_id", rid))
			}
			ctx := logctx.Into(r.Context(), lg)

			rw := record(w)
			start := time.Now()

			next.ServeHTTP(rw, r.WithContext(ctx))

			level := slog.LevelInfo
			if rw.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}

			lg.LogAttrs(ctx, level, "http_request",
				slog.String("method", r.Method),
				slog.String("route", routeOf(r)),
				slog.String("path", r.URL.Path),
				slog.Int("status", rw.Status()),
				slog.Int("bytes", rw.bytes),
				slog.Duration("took", time.Since(start)),
			)
		})
	}
}
