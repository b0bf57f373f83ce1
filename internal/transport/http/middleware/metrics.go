package middleware

import (
	"net/http"
	"time"
)

// Observer принимает длительность обработанного запроса.
type Observer interface {
	ObserveHTTP(method, route string, status int, d time.Duration)
}

// Metrics сообщает o метод, шаблон маршрута и статус каждого запроса.
// o == nil — no-op.
func Metrics(o Observer) Middleware {
	return func(next http.Handler) http.Handler {
		if o == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := record(w)
			start := time.Now()

			next.ServeHTTP(rw, r)

			o.ObserveHTTP(r.Method, routeOf(r), rw.Status(), time.Since(start))
		})
	}
}
