package direct

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/storage"
)

// collection — адаптер одной таблицы прямого хранилища.
type collection[T models.Record] struct {
	store   *Store
	entity  models.Entity
	schema  *storage.Schema
	columns string
	// createdCol — колонка момента создания (created_at или date_reported).
	createdCol string
}

func newCollection[T models.Record](s *Store) *collection[T] {
	e := models.EntityOf[T]()

	created := "created_at"
	if e == models.EntityIncidents {
		created = "date_reported"
	}

	return &collection[T]{
		store:      s,
		entity:     e,
		schema:     storage.SchemaOf(e),
		columns:    selectColumns[e],
		createdCol: created,
	}
}

// List возвращает все строки по убыванию поля упорядочивания (при равенстве — по id).
func (c *collection[T]) List(ctx context.Context) ([]T, error) {
	if c.store.closed.Load() {
		return nil, storage.OpError(storage.OpList, c.entity, storage.ErrClosed)
	}

	q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s DESC, id DESC`, c.columns, c.entity, c.schema.OrderBy)

	rows, err := c.store.db.QueryContext(ctx, q)
	if err != nil {
		return nil, storage.OpError(storage.OpList, c.entity, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		rec, err := scanRecord[T](rows)
		if err != nil {
			return nil, storage.OpError(storage.OpList, c.entity, fmt.Errorf("scan: %w", err))
		}
		out = append(out, storage.Canonical(rec))
	}
	if err := rows.Err(); err != nil {
		return nil, storage.OpError(storage.OpList, c.entity, err)
	}

	return out, nil
}

// Insert создаёт строку: id, метки и номер обращения назначаются здесь.
func (c *collection[T]) Insert(ctx context.Context, fields models.Fields) (T, error) {
	var zero T

	norm, err := storage.Normalize(c.entity, fields, storage.ModeInsert)
	if err != nil {
		return zero, storage.OpError(storage.OpInsert, c.entity, err)
	}

	id := c.store.newID()
	ts := c.store.stamp()

	cols := []string{"id"}
	args := []any{id}
	if c.entity == models.EntityIncidents {
		cols = append(cols, "reference_number")
		args = append(args, c.store.refs.Next())
	}
	for _, col := range c.schema.Columns {
		cols = append(cols, col)
		args = append(args, c.value(col, norm[col]))
	}
	cols = append(cols, c.createdCol, "updated_at")
	args = append(args, ts, ts)

	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		c.entity, strings.Join(cols, ", "), placeholders(len(cols)))

	var rec T
	err = c.store.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}

		rec, err = c.byID(ctx, tx, id)
		return err
	})
	if err != nil {
		return zero, storage.OpError(storage.OpInsert, c.entity, err)
	}

	return rec, nil
}

// Update сливает поля в строку с данным id и возвращает сохранённую строку.
func (c *collection[T]) Update(ctx context.Context, id string, fields models.Fields) (T, error) {
	var zero T

	norm, err := storage.Normalize(c.entity, fields, storage.ModeUpdate)
	if err != nil {
		return zero, storage.OpError(storage.OpUpdate, c.entity, err)
	}

	sets := make([]string, 0, len(norm)+1)
	args := make([]any, 0, len(norm)+2)
	for _, col := range c.schema.Columns {
		v, ok := norm[col]
		if !ok {
			continue
		}
		sets = append(sets, col+" = ?")
		args = append(args, c.value(col, v))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, c.store.stamp(), id)

	q := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, c.entity, strings.Join(sets, ", "))

	var rec T
	err = c.store.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return err
		}

		// RowsAffected в MySQL не считает строки без изменений, поэтому
		// существование проверяется повторным чтением.
		rec, err = c.byID(ctx, tx, id)
		return err
	})
	if err != nil {
		return zero, storage.OpError(storage.OpUpdate, c.entity, err)
	}

	return rec, nil
}

// Delete удаляет строку; отсутствие строки ошибкой не считается.
func (c *collection[T]) Delete(ctx context.Context, id string) error {
	if c.store.closed.Load() {
		return storage.OpError(storage.OpDelete, c.entity, storage.ErrClosed)
	}

	q := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.entity)
	if _, err := c.store.db.ExecContext(ctx, q, id); err != nil {
		return storage.OpError(storage.OpDelete, c.entity, err)
	}

	return nil
}

func (c *collection[T]) byID(ctx context.Context, tx *sql.Tx, id string) (T, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, c.columns, c.entity)

	rec, err := scanRecord[T](tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return rec, fmt.Errorf("id %q: %w", id, storage.ErrNotFound)
		}
		return rec, err
	}

	return storage.Canonical(rec), nil
}

// value приводит нормализованное значение к виду колонки.
func (c *collection[T]) value(col string, v any) any {
	if c.schema.IsTags(col) {
		tags, _ := v.([]string)
		return storage.EncodeTags(tags)
	}

	return v
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
