// core — контекст процесса: создаётся один раз при старте, связывает
// подключения, переключатель хранилищ и зеркала коллекций, закрывается
// при остановке.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pribylovaa/drrm-datacore/internal/cache"
	"github.com/pribylovaa/drrm-datacore/internal/config"
	"github.com/pribylovaa/drrm-datacore/internal/connection"
	"github.com/pribylovaa/drrm-datacore/internal/metrics"
	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/refgen"
	"github.com/pribylovaa/drrm-datacore/internal/seed"

	"github.com/pribylovaa/drrm-datacore/internal/pkg/log"
	"github.com/pribylovaa/drrm-datacore/internal/pkg/redact"
)

// Сообщения состояния при неудачном подключении на старте.
const (
	HostedUnavailableMessage = "Failed to connect to the hosted store. Please check your configuration."
	DirectUnavailableMessage = "Failed to connect to the direct store. Please check your configuration."
)

// ErrCacheReload — переключение выполнено, но зеркала не удалось перечитать
// из нового хранилища (остались прежние данные).
var ErrCacheReload = errors.New("cache reload failed")

// Core — владелец Manager, Coordinator и Cache.
type Core struct {
	cfg      *config.Config
	manager  *connection.Manager
	switcher *connection.Coordinator
	cache    *cache.Cache
	metrics  *metrics.Metrics
	dataset  seed.Dataset

	// mu связывает переключение и перезагрузку зеркал в одну операцию.
	mu sync.Mutex
}

type options struct {
	dialer    connection.Dialer
	metrics   *metrics.Metrics
	refs      refgen.Generator
	dataset   *seed.Dataset
	cacheOpts []cache.Option
}

// Option настраивает Core.
type Option func(*options)

// WithDialer подменяет открытие хранилищ (по умолчанию connection.StoreDialer из cfg).
func WithDialer(d connection.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// WithMetrics включает метрики операций, подключения и переключений.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithRefs подменяет генератор номеров обращений.
func WithRefs(g refgen.Generator) Option {
	return func(o *options) { o.refs = g }
}

// WithDataset подменяет встроенный набор данных seeded-режима.
func WithDataset(ds seed.Dataset) Option {
	return func(o *options) { o.dataset = &ds }
}

// WithCacheOptions передаёт опции зеркалам (часы, генератор id).
func WithCacheOptions(opts ...cache.Option) Option {
	return func(o *options) { o.cacheOpts = append(o.cacheOpts, opts...) }
}

// New собирает Core. Подключений не открывает: зеркала заполнены встроенным
// набором данных до вызова Start.
func New(cfg *config.Config, opts ...Option) (*Core, error) {
	const op = "core.New"

	var o options
	for _, fn := range opts {
		fn(&o)
	}

	if o.refs == nil {
		o.refs = refgen.New()
	}

	var ds seed.Dataset
	if o.dataset != nil {
		ds = *o.dataset
	} else {
		loaded, err := seed.Load()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ds = loaded
	}

	dialer := o.dialer
	if dialer == nil {
		dialer = connection.StoreDialer{
			Hosted:       cfg.Hosted.Client(cfg.Timeouts.Service),
			DirectDriver: cfg.Direct.Driver,
			Refs:         o.refs,
		}
	}

	mopts := []connection.Option{connection.WithConnectTimeout(cfg.Timeouts.Connect)}
	if o.metrics != nil {
		dialer = o.metrics.Dialer(dialer)
		mopts = append(mopts, connection.WithObserver(o.metrics.ObserveState))
	}

	manager := connection.NewManager(dialer, mopts...)
	if o.metrics != nil {
		o.metrics.ObserveState(manager.State())
	}

	c := &Core{
		cfg:      cfg,
		manager:  manager,
		switcher: connection.NewCoordinator(manager, cfg.HostedConfigured(),
			connection.WithHostedEndpoint(cfg.Hosted.URL, cfg.Hosted.Key)),
		cache:    cache.New(manager, o.refs, o.cacheOpts...),
		metrics:  o.metrics,
		dataset:  ds,
	}
	c.cache.Seed(ds)

	return c, nil
}

// Start подключает хранилище из store.kind. Неудача не фатальна: процесс
// остаётся на встроенном наборе данных, состояние error (для ошибки
// подключения — с общим пояснением), ошибка возвращается для журнала.
func (c *Core) Start(ctx context.Context) error {
	const op = "core.Core.Start"

	lg := log.From(ctx)

	var (
		target models.SwitchConfig
		msg    string
	)

	switch kind := c.cfg.StoreKind(); kind {
	case models.KindHosted:
		if !c.cfg.HostedConfigured() {
			lg.Info("hosted_not_configured", slog.String("op", op), slog.String("mode", "seeded"))
			return nil
		}
		target, msg = models.SwitchConfig{Kind: models.KindHosted}, HostedUnavailableMessage

	case models.KindDirect:
		target, msg = c.cfg.Direct.SwitchConfig(), DirectUnavailableMessage

	default:
		lg.Info("store_disabled", slog.String("op", op), slog.String("mode", "seeded"))
		return nil
	}

	if err := c.Switch(ctx, target); err != nil {
		if errors.Is(err, ErrCacheReload) {
			return fmt.Errorf("%s: %w", op, err)
		}

		var cerr *connection.ConfigurationError
		if !errors.As(err, &cerr) {
			c.manager.Fail(msg)
		}
		attrs := []slog.Attr{
			slog.String("op", op),
			slog.String("kind", string(target.Kind)),
			slog.String("mode", "seeded"),
			slog.String("err", err.Error()),
		}
		if target.Kind == models.KindHosted {
			attrs = append(attrs,
				slog.String("url", redact.URL(c.cfg.Hosted.URL)),
				slog.String("key", redact.Key(c.cfg.Hosted.Key)),
			)
		}
		lg.LogAttrs(ctx, slog.LevelWarn, "store_unavailable", attrs...)
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Switch переключает активное хранилище и перечитывает зеркала из нового.
// При ошибке переключения зеркала и прежнее хранилище не меняются.
func (c *Core) Switch(ctx context.Context, cfg models.SwitchConfig) error {
	const op = "core.Core.Switch"

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.switcher.SwitchTo(ctx, cfg)
	if c.metrics != nil {
		c.metrics.ObserveSwitch(cfg.Kind, err)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.cache.LoadFrom(ctx, c.manager.Active()); err != nil {
		log.From(ctx).Warn("cache_reload_failed",
			slog.String("op", op),
			slog.String("kind", string(cfg.Kind)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %w: %w", op, ErrCacheReload, err)
	}

	return nil
}

// Probe проверяет активное хранилище минимальным чтением.
// Без хранилища возвращает cache.ErrNoStore.
func (c *Core) Probe(ctx context.Context) error {
	const op = "core.Core.Probe"

	st := c.manager.Active()
	if st == nil {
		return fmt.Errorf("%s: %w", op, cache.ErrNoStore)
	}

	if err := c.manager.Probe(ctx, st.Kind()); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Disconnect закрывает активное хранилище и возвращает зеркала
// к встроенному набору данных.
func (c *Core) Disconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if st := c.manager.Active(); st != nil {
		c.manager.Teardown(st.Kind())
		log.From(ctx).Info("store_disconnected", slog.String("kind", string(st.Kind())))
	}
	c.cache.Seed(c.dataset)
}

// Cache — зеркала коллекций.
func (c *Core) Cache() *cache.Cache { return c.cache }

// State — снимок состояния подключения.
func (c *Core) State() models.ConnectionState { return c.manager.State() }

// Close закрывает все подключения.
func (c *Core) Close() {
	c.manager.Close()
}
