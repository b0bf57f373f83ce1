package connection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pribylovaa/drrm-datacore/internal/models"

	"github.com/pribylovaa/drrm-datacore/internal/pkg/log"
	"github.com/pribylovaa/drrm-datacore/internal/pkg/redact"
	"github.com/pribylovaa/drrm-datacore/internal/storage/hosted"
)

// HostedKeyRejectedMessage — сообщение состояния, когда hosted-хранилище
// отвергло ключ доступа.
const HostedKeyRejectedMessage = "hosted store rejected the access key"

// Coordinator переключает активное хранилище. Переключения выполняются строго
// по одному: второй вызов ждёт завершения первого.
type Coordinator struct {
	mu sync.Mutex
	m  *Manager
	// hostedConfigured — заданы ли URL и ключ hosted-хранилища.
	hostedConfigured bool
	// hostedURL и hostedKey попадают в журнал только в скрытом виде.
	hostedURL string
	hostedKey string
}

// CoordinatorOption настраивает Coordinator.
type CoordinatorOption func(*Coordinator)

// WithHostedEndpoint — адрес и ключ hosted-хранилища для журнала переключений.
func WithHostedEndpoint(url, key string) CoordinatorOption {
	return func(c *Coordinator) {
		c.hostedURL = url
		c.hostedKey = key
	}
}

// NewCoordinator создаёт координатор поверх Manager.
func NewCoordinator(m *Manager, hostedConfigured bool, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{m: m, hostedConfigured: hostedConfigured}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SwitchTo переключает процесс на хранилище из cfg.
//
// Порядок:
//  1. проверка параметров -> *ConfigurationError без попытки подключения;
//  2. пробное подключение и свежая проверка Probe;
//  3. неудача -> пробное подключение закрывается, *ConnectionError,
//     состояние error, прежнее хранилище остаётся активным;
//  4. успех -> прежнее хранилище закрывается, новое становится активным (connected).
func (c *Coordinator) SwitchTo(ctx context.Context, cfg models.SwitchConfig) error {
	const op = "connection.Coordinator.SwitchTo"

	c.mu.Lock()
	defer c.mu.Unlock()

	lg := log.From(ctx)

	target, err := c.resolve(cfg)
	if err != nil {
		lg.Warn("switch_rejected",
			slog.String("op", op),
			slog.String("kind", string(cfg.Kind)),
			slog.String("err", err.Error()),
		)
		c.m.Fail(err.Error())
		return err
	}

	attrs := []slog.Attr{slog.String("op", op), slog.String("kind", string(cfg.Kind))}
	if cfg.Kind == models.KindHosted {
		attrs = append(attrs,
			slog.String("url", redact.URL(c.hostedURL)),
			slog.String("key", redact.Key(c.hostedKey)),
		)
	} else {
		attrs = append(attrs,
			slog.String("host", target.Host),
			slog.String("user", target.User),
			slog.String("password", redact.Password()),
		)
	}
	lg.LogAttrs(ctx, slog.LevelInfo, "switch_started", attrs...)

	fail := func(err error) error {
		cerr := &ConnectionError{Kind: cfg.Kind, Err: err}
		msg := cerr.Error()
		if hosted.IsAuthError(err) {
			msg = HostedKeyRejectedMessage
		}
		c.m.Fail(msg)
		lg.Warn("switch_failed", slog.String("op", op), slog.String("err", cerr.Error()))
		return cerr
	}

	if err := c.m.Stage(ctx, cfg.Kind, target); err != nil {
		return fail(err)
	}

	if err := c.m.Probe(ctx, cfg.Kind); err != nil {
		c.m.Discard()
		return fail(err)
	}

	if err := c.m.Commit(ctx, cfg.Kind); err != nil {
		c.m.Discard()
		return fail(err)
	}

	lg.Info("switch_completed", slog.String("op", op), slog.String("kind", string(cfg.Kind)))

	return nil
}

// resolve проверяет параметры и подставляет порт по умолчанию.
func (c *Coordinator) resolve(cfg models.SwitchConfig) (models.DirectTarget, error) {
	switch cfg.Kind {
	case models.KindHosted:
		if !c.hostedConfigured {
			return models.DirectTarget{}, &ConfigurationError{Kind: cfg.Kind, Reason: "url and key are not configured"}
		}
		return models.DirectTarget{}, nil

	case models.KindDirect:
		t := models.DirectTarget{
			Host:     strings.TrimSpace(cfg.Host),
			User:     strings.TrimSpace(cfg.User),
			Password: cfg.Password,
			Database: strings.TrimSpace(cfg.Database),
			Port:     cfg.Port,
		}

		var missing []string
		if t.Host == "" {
			missing = append(missing, "host")
		}
		if t.User == "" {
			missing = append(missing, "user")
		}
		if t.Database == "" {
			missing = append(missing, "database")
		}
		if len(missing) > 0 {
			return t, &ConfigurationError{Kind: cfg.Kind, Reason: "missing " + strings.Join(missing, ", ")}
		}

		if t.Port == 0 {
			t.Port = models.DefaultDirectPort
		}
		if t.Port < 1 || t.Port > 65535 {
			return t, &ConfigurationError{Kind: cfg.Kind, Reason: fmt.Sprintf("port %d out of range", t.Port)}
		}

		return t, nil

	default:
		return models.DirectTarget{}, &ConfigurationError{Kind: cfg.Kind, Reason: "unsupported store kind"}
	}
}
