package cache

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/refgen"
	"github.com/pribylovaa/drrm-datacore/internal/storage"

	"github.com/pribylovaa/drrm-datacore/internal/pkg/log"
)

// Collection — упорядоченное зеркало одной коллекции.
//
// Инварианты:
//   - ReadAll не ждёт ввода-вывода: срез защищён RWMutex, который не держится во время
//     обращения к хранилищу;
//   - мутации сериализуются writeMu; порядок применения совпадает с порядком захвата;
//   - неуспешная операция хранилища оставляет зеркало без изменений.
type Collection[T models.Record] struct {
	entity models.Entity
	src    Source
	refs   refgen.Generator
	now    func() time.Time
	newID  func() string

	writeMu sync.Mutex

	mu    sync.RWMutex
	items []T
}

func newCollection[T models.Record](src Source, refs refgen.Generator, now func() time.Time, newID func() string) *Collection[T] {
	return &Collection[T]{
		entity: models.EntityOf[T](),
		src:    src,
		refs:   refs,
		now:    now,
		newID:  newID,
		items:  []T{},
	}
}

// Entity — имя коллекции.
func (c *Collection[T]) Entity() models.Entity { return c.entity }

// ReadAll возвращает копию записей в порядке показа (новые первыми).
func (c *Collection[T]) ReadAll() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, len(c.items))
	for i, it := range c.items {
		out[i] = clone(it)
	}

	return out
}

// Len — число записей.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// Get ищет запись по id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, it := range c.items {
		if models.RecordID(it) == id {
			return clone(it), true
		}
	}

	var zero T
	return zero, false
}

// Create создаёт запись и ставит её в начало зеркала.
// Без активного хранилища запись собирается локально.
func (c *Collection[T]) Create(ctx context.Context, fields models.Fields) (T, error) {
	const op = "cache.Create"

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var (
		rec T
		err error
	)
	if st := c.src.Active(); st != nil {
		rec, err = storage.CollectionOf[T](st).Insert(ctx, fields)
	} else {
		rec, err = c.localInsert(fields)
	}
	if err != nil {
		c.logFailure(ctx, op, err)
		return rec, err
	}

	c.mu.Lock()
	c.items = append([]T{rec}, c.items...)
	c.mu.Unlock()

	return clone(rec), nil
}

// Modify сливает поля в запись и заменяет её на месте.
func (c *Collection[T]) Modify(ctx context.Context, id string, fields models.Fields) (T, error) {
	const op = "cache.Modify"

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var (
		rec T
		err error
	)
	if st := c.src.Active(); st != nil {
		rec, err = storage.CollectionOf[T](st).Update(ctx, id, fields)
	} else {
		rec, err = c.localUpdate(id, fields)
	}
	if err != nil {
		c.logFailure(ctx, op, err)
		return rec, err
	}

	c.mu.Lock()
	for i, it := range c.items {
		if models.RecordID(it) == id {
			c.items[i] = rec
		}
	}
	c.mu.Unlock()

	return clone(rec), nil
}

// Remove удаляет запись. Отсутствие id — не ошибка.
func (c *Collection[T]) Remove(ctx context.Context, id string) error {
	const op = "cache.Remove"

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if st := c.src.Active(); st != nil {
		if err := storage.CollectionOf[T](st).Delete(ctx, id); err != nil {
			c.logFailure(ctx, op, err)
			return err
		}
	}

	c.mu.Lock()
	c.items = slices.DeleteFunc(c.items, func(it T) bool { return models.RecordID(it) == id })
	c.mu.Unlock()

	return nil
}

// Load перечитывает коллекцию из активного хранилища. При ошибке зеркало не меняется.
func (c *Collection[T]) Load(ctx context.Context) error {
	const op = "cache.Load"

	st := c.src.Active()
	if st == nil {
		return fmt.Errorf("%s: %w", op, ErrNoStore)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	items, err := c.fetch(ctx, st)
	if err != nil {
		c.logFailure(ctx, op, err)
		return fmt.Errorf("%s: %w", op, err)
	}
	c.set(items)

	return nil
}

// Reset заменяет содержимое зеркала.
func (c *Collection[T]) Reset(items []T) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.set(items)
}

func (c *Collection[T]) set(items []T) {
	next := make([]T, 0, len(items))
	for _, it := range items {
		next = append(next, clone(storage.Canonical(it)))
	}

	c.mu.Lock()
	c.items = next
	c.mu.Unlock()
}

// fetch читает коллекцию из хранилища, не трогая зеркало.
func (c *Collection[T]) fetch(ctx context.Context, st storage.Store) ([]T, error) {
	items, err := storage.CollectionOf[T](st).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.entity, err)
	}

	return items, nil
}

func (c *Collection[T]) logFailure(ctx context.Context, op string, err error) {
	log.From(ctx).Warn("cache_mutation_failed",
		slog.String("op", op),
		slog.String("collection", string(c.entity)),
		slog.String("err", err.Error()),
	)
}
