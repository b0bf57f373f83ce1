package metrics

import (
	"context"
	"time"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/storage"
)

// store — хранилище с инструментированными коллекциями.
// Kind, Ping и Close проксируются без изменений.
type store struct {
	storage.Store

	news      storage.Collection[models.NewsItem]
	services  storage.Collection[models.Service]
	incidents storage.Collection[models.IncidentReport]
	gallery   storage.Collection[models.GalleryItem]
}

func (s *store) News() storage.Collection[models.NewsItem] { return s.news }

func (s *store) Services() storage.Collection[models.Service] { return s.services }

func (s *store) Incidents() storage.Collection[models.IncidentReport] { return s.incidents }

func (s *store) Gallery() storage.Collection[models.GalleryItem] { return s.gallery }

type collection[T models.Record] struct {
	next   storage.Collection[T]
	m      *Metrics
	kind   string
	entity models.Entity
}

func wrap[T models.Record](next storage.Collection[T], m *Metrics, kind string) storage.Collection[T] {
	return &collection[T]{next: next, m: m, kind: kind, entity: models.EntityOf[T]()}
}

func (c *collection[T]) List(ctx context.Context) (items []T, err error) {
	defer func(start time.Time) { c.m.track(c.kind, c.entity, storage.OpList, start, err) }(time.Now())

	return c.next.List(ctx)
}

func (c *collection[T]) Insert(ctx context.Context, fields models.Fields) (rec T, err error) {
	defer func(start time.Time) { c.m.track(c.kind, c.entity, storage.OpInsert, start, err) }(time.Now())

	return c.next.Insert(ctx, fields)
}

func (c *collection[T]) Update(ctx context.Context, id string, fields models.Fields) (rec T, err error) {
	defer func(start time.Time) { c.m.track(c.kind, c.entity, storage.OpUpdate, start, err) }(time.Now())

	return c.next.Update(ctx, id, fields)
}

func (c *collection[T]) Delete(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { c.m.track(c.kind, c.entity, storage.OpDelete, start, err) }(time.Now())

	return c.next.Delete(ctx, id)
}

var _ storage.Store = (*store)(nil)
