package cache

import (
	"fmt"
	"slices"
	"time"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/storage"
)

// localInsert собирает каноническую запись без хранилища (seeded-режим):
// те же правила нормализации, что у адаптеров, id и метки назначаются здесь.
func (c *Collection[T]) localInsert(fields models.Fields) (T, error) {
	var zero T

	norm, err := storage.Normalize(c.entity, fields, storage.ModeInsert)
	if err != nil {
		return zero, storage.OpError(storage.OpInsert, c.entity, err)
	}

	rec, err := storage.Merge(zero, norm)
	if err != nil {
		return zero, storage.OpError(storage.OpInsert, c.entity, err)
	}

	now := c.now().UTC().Truncate(time.Microsecond)
	switch r := any(&rec).(type) {
	case *models.NewsItem:
		r.ID, r.CreatedAt, r.UpdatedAt = c.newID(), now, now
	case *models.Service:
		r.ID, r.CreatedAt, r.UpdatedAt = c.newID(), now, now
	case *models.IncidentReport:
		r.ID, r.DateReported, r.UpdatedAt = c.newID(), now, now
		r.ReferenceNumber = c.refs.Next()
	case *models.GalleryItem:
		r.ID, r.CreatedAt, r.UpdatedAt = c.newID(), now, now
	}

	return storage.Canonical(rec), nil
}

// localUpdate сливает поля в запись зеркала. Неизменяемые поля отбрасывает Normalize.
func (c *Collection[T]) localUpdate(id string, fields models.Fields) (T, error) {
	var zero T

	norm, err := storage.Normalize(c.entity, fields, storage.ModeUpdate)
	if err != nil {
		return zero, storage.OpError(storage.OpUpdate, c.entity, err)
	}

	c.mu.RLock()
	idx := slices.IndexFunc(c.items, func(it T) bool { return models.RecordID(it) == id })
	var base T
	if idx >= 0 {
		base = c.items[idx]
	}
	c.mu.RUnlock()

	if idx < 0 {
		return zero, storage.OpError(storage.OpUpdate, c.entity, fmt.Errorf("id %q: %w", id, storage.ErrNotFound))
	}

	rec, err := storage.Merge(base, norm)
	if err != nil {
		return zero, storage.OpError(storage.OpUpdate, c.entity, err)
	}
	touch(&rec, c.now().UTC().Truncate(time.Microsecond))

	return storage.Canonical(rec), nil
}

func touch[T models.Record](rec *T, now time.Time) {
	switch r := any(rec).(type) {
	case *models.NewsItem:
		r.UpdatedAt = now
	case *models.Service:
		r.UpdatedAt = now
	case *models.IncidentReport:
		r.UpdatedAt = now
	case *models.GalleryItem:
		r.UpdatedAt = now
	}
}

// clone копирует запись вместе со срезом тегов.
func clone[T models.Record](rec T) T {
	switch r := any(&rec).(type) {
	case *models.Service:
		r.Tags = append([]string{}, r.Tags...)
	case *models.GalleryItem:
		r.Tags = append([]string{}, r.Tags...)
	}

	return rec
}
