// cache хранит в памяти упорядоченные зеркала четырёх коллекций и обслуживает
// все чтения. Записи идут в активное хранилище, зеркало меняется только после
// подтверждённой записи. Без хранилища зеркала работают на встроенном наборе
// данных, а мутации применяются локально.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/refgen"
	"github.com/pribylovaa/drrm-datacore/internal/seed"
	"github.com/pribylovaa/drrm-datacore/internal/storage"

	"github.com/google/uuid"
)

// ErrNoStore — загрузка запрошена, но активного хранилища нет.
var ErrNoStore = errors.New("no active store")

// Source отдаёт активное хранилище на момент вызова (nil — seeded-режим).
type Source interface {
	Active() storage.Store
}

// Cache — зеркала всех коллекций.
type Cache struct {
	News      *Collection[models.NewsItem]
	Services  *Collection[models.Service]
	Incidents *Collection[models.IncidentReport]
	Gallery   *Collection[models.GalleryItem]
}

type options struct {
	now   func() time.Time
	newID func() string
}

// Option настраивает Cache.
type Option func(*options)

// WithClock подменяет источник времени для seeded-режима.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDs подменяет генератор id для seeded-режима.
func WithIDs(newID func() string) Option {
	return func(o *options) { o.newID = newID }
}

// New создаёт пустой Cache. refs == nil -> refgen.New().
func New(src Source, refs refgen.Generator, opts ...Option) *Cache {
	o := options{now: time.Now, newID: uuid.NewString}
	for _, fn := range opts {
		fn(&o)
	}
	if refs == nil {
		refs = refgen.New()
	}

	return &Cache{
		News:      newCollection[models.NewsItem](src, refs, o.now, o.newID),
		Services:  newCollection[models.Service](src, refs, o.now, o.newID),
		Incidents: newCollection[models.IncidentReport](src, refs, o.now, o.newID),
		Gallery:   newCollection[models.GalleryItem](src, refs, o.now, o.newID),
	}
}

// Seed заполняет зеркала встроенным набором данных.
func (c *Cache) Seed(ds seed.Dataset) {
	c.News.Reset(ds.News)
	c.Services.Reset(ds.Services)
	c.Incidents.Reset(ds.Incidents)
	c.Gallery.Reset(ds.Gallery)
}

// LoadFrom перечитывает все коллекции из st. Зеркала меняются только если
// прочитаны все четыре коллекции. Мутации ждут, пока идёт перечитывание.
func (c *Cache) LoadFrom(ctx context.Context, st storage.Store) error {
	const op = "cache.LoadFrom"

	if st == nil {
		return fmt.Errorf("%s: %w", op, ErrNoStore)
	}

	// Порядок захвата фиксирован; одиночные мутации берут только свой замок.
	for _, mu := range c.writeLocks() {
		mu.Lock()
		defer mu.Unlock()
	}

	news, err := c.News.fetch(ctx, st)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	services, err := c.Services.fetch(ctx, st)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	incidents, err := c.Incidents.fetch(ctx, st)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	gallery, err := c.Gallery.fetch(ctx, st)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	c.News.set(news)
	c.Services.set(services)
	c.Incidents.set(incidents)
	c.Gallery.set(gallery)

	return nil
}

func (c *Cache) writeLocks() []*sync.Mutex {
	return []*sync.Mutex{&c.News.writeMu, &c.Services.writeMu, &c.Incidents.writeMu, &c.Gallery.writeMu}
}

// Snapshot — копия всех коллекций (для выгрузки и отладки).
func (c *Cache) Snapshot() seed.Dataset {
	return seed.Dataset{
		News:      c.News.ReadAll(),
		Services:  c.Services.ReadAll(),
		Incidents: c.Incidents.ReadAll(),
		Gallery:   c.Gallery.ReadAll(),
	}
}
