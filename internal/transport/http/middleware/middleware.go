// middleware — обвязка REST-сервера: request id, логирование, метрики,
// восстановление после panic и дедлайн запроса.
package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
)

// Middleware оборачивает http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain собирает обработчик: первый мидлвар в списке оказывается внешним.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for _, mw := range slices.Backward(mws) {
		h = mw(h)
	}

	return h
}

// recorder запоминает статус и объём ответа.
type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

// record оборачивает w. Повторная обёртка не создаётся, чтобы логирование и
// метрики видели один и тот же статус.
func record(w http.ResponseWriter) *recorder {
	if rw, ok := w.(*recorder); ok {
		return rw
	}

	return &recorder{ResponseWriter: w}
}

func (rw *recorder) WriteHeader(code int) {
	if rw.status == 0 {
		rw.status = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recorder) Write(p []byte) (int, error) {
	if rw.status == 0 {
		rw.status = http.StatusOK
	}

	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += n
	return n, err
}

// Unwrap нужен http.ResponseController.
func (rw *recorder) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// Status — итоговый статус; 200, если обработчик ничего не записал.
func (rw *recorder) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}

	return rw.status
}

// routeOf — шаблон маршрута chi ("unmatched", если маршрут не найден).
func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}

	return "unmatched"
}
