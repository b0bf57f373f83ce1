package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/drrm-datacore/internal/transport/http/handlers"
	"github.com/pribylovaa/drrm-datacore/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger   *slog.Logger
	Timeout  time.Duration
	BasePath string // например, "/api"; если пустой — роуты регистрируются на корне.
	// Metrics — получатель длительностей запросов (nil — без метрик).
	Metrics middleware.Observer
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(core handlers.Core, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(opts.Logger),
		middleware.RequestID(), // до логирования: id попадает в логгер запроса
		middleware.Logging(opts.Logger),
		middleware.Metrics(opts.Metrics),
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout))
	}

	h := handlers.New(core)

	if opts.BasePath != "" {
		sub := chi.NewRouter()
		registerRoutes(sub, h)
		root.Mount(opts.BasePath, sub)
		return root
	}

	registerRoutes(root, h)
	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	// connection
	r.Get("/connection", h.ConnectionState)
	r.Post("/connection/switch", h.SwitchConnection)
	r.Post("/connection/probe", h.ProbeConnection)
	r.Post("/connection/disconnect", h.Disconnect)

	// collections: news, services, incident_reports, gallery
	r.Get("/{collection}", h.List)
	r.Post("/{collection}", h.Create)
	r.Get("/{collection}/{id}", h.Get)
	r.Patch("/{collection}/{id}", h.Modify)
	r.Delete("/{collection}/{id}", h.Remove)
}
