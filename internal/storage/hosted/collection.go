package hosted

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/storage"
)

// collection — адаптер одной таблицы hosted-хранилища.
type collection[T models.Record] struct {
	store  *Store
	entity models.Entity
	schema *storage.Schema
}

func newCollection[T models.Record](s *Store) *collection[T] {
	e := models.EntityOf[T]()
	return &collection[T]{store: s, entity: e, schema: storage.SchemaOf(e)}
}

// List возвращает все строки таблицы по убыванию поля упорядочивания.
func (c *collection[T]) List(ctx context.Context) ([]T, error) {
	rows, err := c.rows(ctx, func(q *postgrest.QueryBuilder) *postgrest.FilterBuilder {
		return q.Select("*", "", false).Order(c.schema.OrderBy, &postgrest.OrderOpts{Ascending: false})
	})
	if err != nil {
		return nil, storage.OpError(storage.OpList, c.entity, err)
	}

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, storage.Canonical(r))
	}

	return out, nil
}

// Insert вставляет строку; id и временные метки назначает сервис,
// номер обращения для инцидентов — адаптер.
func (c *collection[T]) Insert(ctx context.Context, fields models.Fields) (T, error) {
	var zero T

	norm, err := storage.Normalize(c.entity, fields, storage.ModeInsert)
	if err != nil {
		return zero, storage.OpError(storage.OpInsert, c.entity, err)
	}
	if c.entity == models.EntityIncidents {
		norm["reference_number"] = c.store.refs.Next()
	}

	rows, err := c.rows(ctx, func(q *postgrest.QueryBuilder) *postgrest.FilterBuilder {
		return q.Insert([]models.Fields{norm}, false, "", "representation", "")
	})
	if err != nil {
		return zero, storage.OpError(storage.OpInsert, c.entity, err)
	}
	if len(rows) != 1 {
		return zero, storage.OpError(storage.OpInsert, c.entity,
			fmt.Errorf("malformed response: expected 1 row, got %d", len(rows)))
	}

	return storage.Canonical(rows[0]), nil
}

// Update сливает поля в строку с данным id. Пустой ответ или id не в формате
// UUID — storage.ErrNotFound.
func (c *collection[T]) Update(ctx context.Context, id string, fields models.Fields) (T, error) {
	var zero T

	norm, err := storage.Normalize(c.entity, fields, storage.ModeUpdate)
	if err != nil {
		return zero, storage.OpError(storage.OpUpdate, c.entity, err)
	}

	notFound := storage.OpError(storage.OpUpdate, c.entity, fmt.Errorf("id %q: %w", id, storage.ErrNotFound))
	if !validID(id) {
		if c.store.closed.Load() {
			return zero, storage.OpError(storage.OpUpdate, c.entity, storage.ErrClosed)
		}
		return zero, notFound
	}
	norm["updated_at"] = c.store.now().UTC()

	rows, err := c.rows(ctx, func(q *postgrest.QueryBuilder) *postgrest.FilterBuilder {
		return q.Update(norm, "representation", "").Eq("id", id)
	})
	if err != nil {
		return zero, storage.OpError(storage.OpUpdate, c.entity, err)
	}
	if len(rows) == 0 {
		return zero, notFound
	}

	return storage.Canonical(rows[0]), nil
}

// Delete удаляет строку; отсутствие строки ошибкой не считается.
func (c *collection[T]) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		if c.store.closed.Load() {
			return storage.OpError(storage.OpDelete, c.entity, storage.ErrClosed)
		}
		return nil
	}

	_, err := c.store.exec(ctx, func(cl *postgrest.Client) *postgrest.FilterBuilder {
		return cl.From(string(c.entity)).Delete("minimal", "").Eq("id", id)
	})
	if err != nil {
		return storage.OpError(storage.OpDelete, c.entity, err)
	}

	return nil
}

// rows выполняет запрос к таблице коллекции и декодирует массив строк.
func (c *collection[T]) rows(ctx context.Context, build func(*postgrest.QueryBuilder) *postgrest.FilterBuilder) ([]T, error) {
	body, err := c.store.exec(ctx, func(cl *postgrest.Client) *postgrest.FilterBuilder {
		return build(cl.From(string(c.entity)))
	})
	if err != nil {
		return nil, err
	}

	var rows []T
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("malformed response: %w", err)
	}

	return rows, nil
}

// validID — id строки hosted-хранилища всегда UUID.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
