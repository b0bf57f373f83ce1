// connection владеет подключениями к хранилищам и единым на процесс
// состоянием подключения.
//
// Manager держит не больше двух хранилищ: активное и пробное (staged).
// Пробное создаётся при переключении, проверяется Probe и либо становится
// активным (Commit), либо закрывается (Discard).
package connection

//go:generate mockgen -destination=../../mocks/mock_dialer.go -package=mocks github.com/pribylovaa/drrm-datacore/internal/connection Dialer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/storage"

	"github.com/pribylovaa/drrm-datacore/internal/pkg/log"
)

// DefaultConnectTimeout — ограничение на установку и проверку подключения.
const DefaultConnectTimeout = 10 * time.Second

// ErrNotHeld — для запрошенного типа хранилища нет ни активного, ни пробного подключения.
var ErrNotHeld = errors.New("no connection held")

// Dialer открывает подключение к хранилищу. Для hosted параметры берутся
// из конфигурации процесса, для direct передаются в target.
type Dialer interface {
	Dial(ctx context.Context, kind models.StoreKind, target models.DirectTarget) (storage.Store, error)
}

// Manager — владелец подключений. Все методы безопасны для конкурентного вызова.
type Manager struct {
	dialer  Dialer
	timeout time.Duration
	observe func(models.ConnectionState)

	mu     sync.Mutex
	state  models.ConnectionState
	active storage.Store
	staged storage.Store
}

// Option настраивает Manager.
type Option func(*Manager)

// WithConnectTimeout задаёт ограничение на Dial и Probe (<= 0 — значение по умолчанию).
func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithObserver регистрирует обработчик смены состояния (вызывается под блокировкой,
// обработчик не должен обращаться к Manager).
func WithObserver(fn func(models.ConnectionState)) Option {
	return func(m *Manager) { m.observe = fn }
}

// NewManager создаёт Manager без подключений: {none, disconnected}.
func NewManager(d Dialer, opts ...Option) *Manager {
	m := &Manager{
		dialer:  d,
		timeout: DefaultConnectTimeout,
		state:   models.ConnectionState{Kind: models.KindNone, Status: models.StatusDisconnected},
	}
	for _, o := range opts {
		o(m)
	}

	return m
}

// State возвращает снимок состояния.
func (m *Manager) State() models.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return snapshot(m.state)
}

// Active возвращает активное хранилище или nil (seeded-режим).
func (m *Manager) Active() storage.Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.active
}

// Timeout — ограничение на одну попытку подключения.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// Stage открывает пробное подключение. Предыдущее пробное, если было, закрывается.
// Активное хранилище и его kind не меняются.
func (m *Manager) Stage(ctx context.Context, kind models.StoreKind, target models.DirectTarget) error {
	const op = "connection.Manager.Stage"

	lg := log.From(ctx)

	m.mu.Lock()
	m.dropStagedLocked()
	m.setLocked(m.state.Kind, models.StatusConnecting, "")
	m.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	st, err := m.dialer.Dial(dialCtx, kind, target)
	if err != nil {
		lg.Warn("store_dial_failed",
			slog.String("op", op),
			slog.String("kind", string(kind)),
			slog.String("err", err.Error()),
		)

		m.mu.Lock()
		m.setLocked(m.state.Kind, models.StatusError, err.Error())
		m.mu.Unlock()

		return fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	m.staged = st
	m.mu.Unlock()

	lg.Debug("store_staged", slog.String("op", op), slog.String("kind", string(kind)))

	return nil
}

// Probe выполняет минимальное чтение через удерживаемое подключение данного типа:
// сначала пробное, затем активное. Активный kind не меняется.
//
// Неудача переводит состояние в error с сообщением. Успешная проверка активного
// хранилища возвращает состояние в connected.
func (m *Manager) Probe(ctx context.Context, kind models.StoreKind) error {
	const op = "connection.Manager.Probe"

	m.mu.Lock()
	st, isActive := m.heldLocked(kind)
	m.mu.Unlock()

	if st == nil {
		err := fmt.Errorf("%s: %s: %w", op, kind, ErrNotHeld)
		m.Fail(err.Error())
		return err
	}

	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if err := st.Ping(probeCtx); err != nil {
		log.From(ctx).Warn("store_probe_failed",
			slog.String("op", op),
			slog.String("kind", string(kind)),
			slog.String("err", err.Error()),
		)

		m.Fail(err.Error())
		return fmt.Errorf("%s: %w", op, err)
	}

	if isActive {
		m.mu.Lock()
		if m.active == st {
			m.setLocked(m.state.Kind, models.StatusConnected, "")
		}
		m.mu.Unlock()
	}

	return nil
}

// Commit делает пробное подключение активным. Предыдущее активное хранилище
// закрывается до того, как новое помечается connected.
func (m *Manager) Commit(ctx context.Context, kind models.StoreKind) error {
	const op = "connection.Manager.Commit"

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.staged == nil || m.staged.Kind() != kind {
		return fmt.Errorf("%s: %s: %w", op, kind, ErrNotHeld)
	}

	if m.active != nil {
		m.active.Close()
	}
	m.active, m.staged = m.staged, nil
	m.setLocked(kind, models.StatusConnected, "")

	log.From(ctx).Info("store_connected", slog.String("op", op), slog.String("kind", string(kind)))

	return nil
}

// Discard закрывает пробное подключение, если оно есть.
func (m *Manager) Discard() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dropStagedLocked()
}

// Teardown освобождает ресурсы подключения данного типа. Если закрыто активное
// хранилище, процесс переходит в {none, disconnected}. Без подключений — no-op.
func (m *Manager) Teardown(kind models.StoreKind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.staged != nil && m.staged.Kind() == kind {
		m.dropStagedLocked()
	}
	if m.active != nil && m.active.Kind() == kind {
		m.active.Close()
		m.active = nil
		m.setLocked(models.KindNone, models.StatusDisconnected, "")
	}
}

// Close закрывает все подключения.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dropStagedLocked()
	if m.active != nil {
		m.active.Close()
		m.active = nil
	}
	m.setLocked(models.KindNone, models.StatusDisconnected, "")
}

// Fail публикует ошибку, не меняя активный kind.
func (m *Manager) Fail(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setLocked(m.state.Kind, models.StatusError, msg)
}

func (m *Manager) heldLocked(kind models.StoreKind) (storage.Store, bool) {
	if m.staged != nil && m.staged.Kind() == kind {
		return m.staged, false
	}
	if m.active != nil && m.active.Kind() == kind {
		return m.active, true
	}

	return nil, false
}

func (m *Manager) dropStagedLocked() {
	if m.staged != nil {
		m.staged.Close()
		m.staged = nil
	}
}

func (m *Manager) setLocked(kind models.StoreKind, status models.ConnectionStatus, msg string) {
	m.state = models.ConnectionState{Kind: kind, Status: status}
	if msg != "" {
		m.state.ErrorMessage = &msg
	}

	if m.observe != nil {
		m.observe(snapshot(m.state))
	}
}

func snapshot(s models.ConnectionState) models.ConnectionState {
	if s.ErrorMessage != nil {
		msg := *s.ErrorMessage
		s.ErrorMessage = &msg
	}

	return s
}
