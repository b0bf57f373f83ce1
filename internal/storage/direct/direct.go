// direct реализует хранилище поверх прямого подключения к реляционной БД
// через database/sql.
//
// Особенности:
//   - боевой драйвер — MySQL (go-sql-driver/mysql), для встроенной БД и тестов — SQLite (modernc);
//   - запросы используют плейсхолдеры "?", общие для обоих драйверов;
//   - id (UUID) и временные метки назначает адаптер, а не БД;
//   - теги хранятся JSON-текстом (storage.EncodeTags/DecodeTags);
//   - каждая запись идёт в отдельной транзакции и перечитывает сохранённую строку.
package direct

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/refgen"
	"github.com/pribylovaa/drrm-datacore/internal/storage"

	"github.com/pribylovaa/drrm-datacore/internal/pkg/log"
	"github.com/pribylovaa/drrm-datacore/internal/pkg/redact"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Имена поддерживаемых драйверов database/sql.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Store — прямое хранилище.
type Store struct {
	db     *sql.DB
	refs   refgen.Generator
	now    func() time.Time
	newID  func() string
	closed atomic.Bool

	news      *collection[models.NewsItem]
	services  *collection[models.Service]
	incidents *collection[models.IncidentReport]
	gallery   *collection[models.GalleryItem]
}

// Option настраивает Store.
type Option func(*Store)

// WithClock подменяет источник времени для временных меток.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDs подменяет генератор идентификаторов.
func WithIDs(newID func() string) Option {
	return func(s *Store) { s.newID = newID }
}

// DSN собирает строку подключения для драйвера.
// Для SQLite имя базы трактуется как путь к файлу (или ":memory:").
func DSN(driver string, t models.DirectTarget, timeout time.Duration) (string, error) {
	switch driver {
	case DriverMySQL, "":
		port := t.Port
		if port == 0 {
			port = models.DefaultDirectPort
		}

		cfg := mysql.NewConfig()
		cfg.User = t.User
		cfg.Passwd = t.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(t.Host, strconv.Itoa(port))
		cfg.DBName = t.Database
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		cfg.Timeout = timeout

		return cfg.FormatDSN(), nil
	case DriverSQLite:
		if strings.TrimSpace(t.Database) == "" {
			return "", errors.New("sqlite: database path is required")
		}
		return t.Database, nil
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
}

// Open открывает пул соединений и проверяет его одним round-trip.
// Ожидание ограничено дедлайном ctx.
func Open(ctx context.Context, driver string, t models.DirectTarget, timeout time.Duration, refs refgen.Generator) (*Store, error) {
	const op = "storage.direct.Open"

	if driver == "" {
		driver = DriverMySQL
	}

	dsn, err := DSN(driver, t, timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	shown := dsn
	if driver == DriverMySQL {
		shown = redact.DSN(dsn)
	}
	log.From(ctx).Debug("store_open",
		slog.String("op", op),
		slog.String("driver", driver),
		slog.String("dsn", shown),
	)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return New(db, refs), nil
}

// New оборачивает уже открытый *sql.DB. Store владеет db и закрывает его в Close.
func New(db *sql.DB, refs refgen.Generator, opts ...Option) *Store {
	if refs == nil {
		refs = refgen.New()
	}

	s := &Store{
		db:    db,
		refs:  refs,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}

	s.news = newCollection[models.NewsItem](s)
	s.services = newCollection[models.Service](s)
	s.incidents = newCollection[models.IncidentReport](s)
	s.gallery = newCollection[models.GalleryItem](s)

	return s
}

func (s *Store) Kind() models.StoreKind { return models.KindDirect }

func (s *Store) News() storage.Collection[models.NewsItem] { return s.news }

func (s *Store) Services() storage.Collection[models.Service] { return s.services }

func (s *Store) Incidents() storage.Collection[models.IncidentReport] { return s.incidents }

func (s *Store) Gallery() storage.Collection[models.GalleryItem] { return s.gallery }

// Ping — минимальное чтение: COUNT(*) по news.
func (s *Store) Ping(ctx context.Context) error {
	const op = "storage.direct.Ping"

	if s.closed.Load() {
		return fmt.Errorf("%s: %w", op, storage.ErrClosed)
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM news`).Scan(&n); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает пул соединений; повторный вызов безопасен.
func (s *Store) Close() {
	if s.closed.CompareAndSwap(false, true) {
		_ = s.db.Close()
	}
}

// stamp возвращает текущее время в формате колонок DATETIME(6).
func (s *Store) stamp() string {
	return formatTime(s.now())
}

// inTx выполняет fn в транзакции; при ошибке транзакция откатывается.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

var _ storage.Store = (*Store)(nil)
