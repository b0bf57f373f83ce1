package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/pribylovaa/drrm-datacore/internal/transport/http/errors"

	logctx "github.com/pribylovaa/drrm-datacore/internal/pkg/log"
)

// errPanic — причина 500 после перехваченной паники.
var errPanic = errors.New("handler panicked")

// Recover перехватывает panic и отвечает 500/internal в общем формате ошибки.
// Детали паники пишутся в lg (nil — логгер из контекста) вместе с шаблоном
// маршрута и на клиент не уходят.
func Recover(lg *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				l := lg
				if l == nil {
					l = logctx.From(r.Context())
				}
				l.LogAttrs(r.Context(), slog.LevelError, "http_panic",
					slog.String("method", r.Method),
					slog.String("route", routeOf(r)),
					slog.String("path", r.URL.Path),
					slog.Any("reason", rec),
				)

				apierrors.WriteError(w, r, errPanic)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
