package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/refgen"
	"github.com/pribylovaa/drrm-datacore/internal/seed"
	"github.com/pribylovaa/drrm-datacore/internal/storage"
	"github.com/pribylovaa/drrm-datacore/internal/storage/direct"
	"github.com/pribylovaa/drrm-datacore/migrations"

	"github.com/stretchr/testify/require"
)

// Тесты зеркал коллекций:
//   - seeded-режим: порядок встроенного набора, локальные мутации,
//     номер обращения, неизменяемые поля, ErrNotFound/ErrInvalidField;
//   - режим с хранилищем (direct поверх SQLite): запись попадает в зеркало только
//     после успеха, ошибка хранилища оставляет зеркало как было;
//   - LoadFrom: всё или ничего; запись, начатая во время перечитывания,
//     не теряется; Load одной коллекции;
//   - ReadAll отдаёт копии;
//   - конкурентные мутации сериализуются.

type source struct {
	mu sync.Mutex
	st storage.Store
}

func (s *source) Active() storage.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

func fixedClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Minute)
		return now
	}
}

func newSeeded(t *testing.T) *Cache {
	t.Helper()

	c := New(&source{}, refgen.NewSeeded(42, nil), WithClock(fixedClock()))
	c.Seed(seed.MustLoad())
	return c
}

func newDirect(t *testing.T) (*direct.Store, *sql.DB) {
	t.Helper()

	db, err := sql.Open(direct.DriverSQLite, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	stmts, err := migrations.Direct()
	require.NoError(t, err)
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}

	st := direct.New(db, refgen.NewSeeded(3, nil), direct.WithClock(fixedClock()))
	t.Cleanup(st.Close)

	return st, db
}

func TestSeeded_Order(t *testing.T) {
	t.Parallel()

	c := newSeeded(t)

	news := c.News.ReadAll()
	require.Len(t, news, 2)
	require.Equal(t, "1", news[0].ID)
	require.Equal(t, "2", news[1].ID)
	require.Empty(t, c.Incidents.ReadAll())
	require.Equal(t, 2, c.Services.Len())
}

func TestSeeded_CreateGalleryGoesFirst(t *testing.T) {
	t.Parallel()

	c := newSeeded(t)

	item, err := c.Gallery.Create(context.Background(), models.Fields{
		"title": "Evacuation drill", "tags": []any{"Drill"}, "featured": false,
	})
	require.NoError(t, err)
	require.NotEmpty(t, item.ID)
	require.Equal(t, models.StatusDraft, item.Status)
	require.Equal(t, []string{"Drill"}, item.Tags)
	require.False(t, item.CreatedAt.IsZero())

	all := c.Gallery.ReadAll()
	require.Len(t, all, 2)
	require.Equal(t, item.ID, all[0].ID)
	require.Equal(t, "1", all[1].ID)
}

func TestSeeded_IncidentReferenceAndModify(t *testing.T) {
	t.Parallel()

	c := newSeeded(t)
	ctx := context.Background()

	rec, err := c.Incidents.Create(ctx, models.Fields{
		"reporterName": "Lorna",
		"incidentType": "Storm surge",
		"location":     "Coastal road",
	})
	require.NoError(t, err)
	require.Regexp(t, refgen.Pattern, rec.ReferenceNumber)
	require.Equal(t, models.UrgencyMedium, rec.Urgency)
	require.Equal(t, models.IncidentPending, rec.Status)
	require.False(t, rec.DateReported.IsZero())

	upd, err := c.Incidents.Modify(ctx, rec.ID, models.Fields{
		"status":          models.IncidentResolved,
		"referenceNumber": "RD-1999-0001",
	})
	require.NoError(t, err)

	want := rec
	want.Status = models.IncidentResolved
	want.UpdatedAt = upd.UpdatedAt
	require.Equal(t, want, upd)
	require.True(t, upd.UpdatedAt.After(rec.UpdatedAt))

	got, ok := c.Incidents.Get(rec.ID)
	require.True(t, ok)
	require.Equal(t, upd, got)
}

func TestSeeded_Errors(t *testing.T) {
	t.Parallel()

	c := newSeeded(t)
	ctx := context.Background()
	before := c.News.ReadAll()

	_, err := c.News.Modify(ctx, "missing", models.Fields{"title": "x"})
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = c.News.Create(ctx, models.Fields{"title": "x", "status": "archived"})
	require.ErrorIs(t, err, storage.ErrInvalidField)

	_, err = c.News.Modify(ctx, "1", models.Fields{"rating": 5})
	require.ErrorIs(t, err, storage.ErrInvalidField)

	require.Equal(t, before, c.News.ReadAll())
}

func TestRemove_UnknownIDIsNoop(t *testing.T) {
	t.Parallel()

	c := newSeeded(t)
	before := c.Services.ReadAll()

	require.NoError(t, c.Services.Remove(context.Background(), "does-not-exist"))
	require.Equal(t, before, c.Services.ReadAll())

	require.NoError(t, c.Services.Remove(context.Background(), "1"))
	require.Len(t, c.Services.ReadAll(), 1)
	require.Equal(t, "2", c.Services.ReadAll()[0].ID)
}

func TestReadAll_ReturnsCopies(t *testing.T) {
	t.Parallel()

	c := newSeeded(t)

	all := c.Services.ReadAll()
	all[0].Tags[0] = "mutated"
	all[0].Title = "mutated"

	fresh := c.Services.ReadAll()
	require.NotEqual(t, "mutated", fresh[0].Tags[0])
	require.NotEqual(t, "mutated", fresh[0].Title)
}

func TestActiveStore_MirrorsConfirmedWrites(t *testing.T) {
	t.Parallel()

	st, _ := newDirect(t)
	src := &source{st: st}
	c := New(src, nil)
	ctx := context.Background()

	require.NoError(t, c.LoadFrom(ctx, st))
	require.Empty(t, c.News.ReadAll())

	first, err := c.News.Create(ctx, models.Fields{"title": "First"})
	require.NoError(t, err)
	second, err := c.News.Create(ctx, models.Fields{"title": "Second"})
	require.NoError(t, err)

	all := c.News.ReadAll()
	require.Equal(t, []string{second.ID, first.ID}, []string{all[0].ID, all[1].ID})

	stored, err := st.News().List(ctx)
	require.NoError(t, err)
	require.Equal(t, stored, all, "зеркало совпадает с хранилищем")

	upd, err := c.News.Modify(ctx, first.ID, models.Fields{"status": models.StatusPublished})
	require.NoError(t, err)
	require.Equal(t, upd, c.News.ReadAll()[1])

	require.NoError(t, c.News.Remove(ctx, second.ID))
	require.NoError(t, c.News.Remove(ctx, second.ID))
	require.Len(t, c.News.ReadAll(), 1)
}

func TestActiveStore_FailureLeavesMirror(t *testing.T) {
	t.Parallel()

	st, _ := newDirect(t)
	c := New(&source{st: st}, nil)
	ctx := context.Background()

	item, err := c.Gallery.Create(ctx, models.Fields{"title": "kept"})
	require.NoError(t, err)
	before := c.Gallery.ReadAll()

	st.Close()

	_, err = c.Gallery.Create(ctx, models.Fields{"title": "lost"})
	var oe *storage.OperationError
	require.True(t, errors.As(err, &oe))
	require.Equal(t, storage.OpInsert, oe.Op)

	_, err = c.Gallery.Modify(ctx, item.ID, models.Fields{"title": "lost"})
	require.ErrorIs(t, err, storage.ErrClosed)

	require.ErrorIs(t, c.Gallery.Remove(ctx, item.ID), storage.ErrClosed)

	require.Equal(t, before, c.Gallery.ReadAll())
}

func TestLoadFrom_AllOrNothing(t *testing.T) {
	t.Parallel()

	st, db := newDirect(t)
	ctx := context.Background()

	c := newSeeded(t)
	require.ErrorIs(t, c.LoadFrom(ctx, nil), ErrNoStore)

	_, err := st.Services().Insert(ctx, models.Fields{"title": "Rescue"})
	require.NoError(t, err)

	// Коллекция gallery читается последней: её поломка не должна задеть остальные зеркала.
	_, err = db.Exec(`DROP TABLE gallery`)
	require.NoError(t, err)

	before := c.Snapshot()
	require.Error(t, c.LoadFrom(ctx, st))
	require.Equal(t, before, c.Snapshot())
}

// gatedStore задерживает чтение gallery до закрытия release.
type gatedStore struct {
	*direct.Store
	gallery gatedGallery
}

func (s *gatedStore) Gallery() storage.Collection[models.GalleryItem] { return s.gallery }

type gatedGallery struct {
	storage.Collection[models.GalleryItem]
	listed  chan struct{}
	release chan struct{}
}

func (g gatedGallery) List(ctx context.Context) ([]models.GalleryItem, error) {
	close(g.listed)
	<-g.release
	return g.Collection.List(ctx)
}

func TestLoadFrom_KeepsConcurrentCreate(t *testing.T) {
	t.Parallel()

	st, _ := newDirect(t)
	gated := &gatedStore{Store: st, gallery: gatedGallery{
		Collection: st.Gallery(),
		listed:     make(chan struct{}),
		release:    make(chan struct{}),
	}}

	ctx := context.Background()
	c := New(&source{st: gated}, nil)
	c.Seed(seed.MustLoad())

	loaded := make(chan error, 1)
	go func() { loaded <- c.LoadFrom(ctx, gated) }()

	// news уже прочитана, LoadFrom ждёт на gallery.
	<-gated.gallery.listed

	type result struct {
		item models.NewsItem
		err  error
	}
	created := make(chan result, 1)
	go func() {
		item, err := c.News.Create(ctx, models.Fields{"title": "Flood warning"})
		created <- result{item, err}
	}()

	select {
	case <-created:
		t.Fatal("Create finished while LoadFrom was replacing mirrors")
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.gallery.release)
	require.NoError(t, <-loaded)

	res := <-created
	require.NoError(t, res.err)

	news := c.News.ReadAll()
	require.Len(t, news, 1)
	require.Equal(t, res.item.ID, news[0].ID)
}

func TestCollectionLoad(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seeded := newSeeded(t)
	require.ErrorIs(t, seeded.News.Load(ctx), ErrNoStore)
	require.Len(t, seeded.News.ReadAll(), 2)

	st, db := newDirect(t)
	c := New(&source{st: st}, nil)
	c.Seed(seed.MustLoad())

	svc, err := st.Services().Insert(ctx, models.Fields{"title": "Rescue"})
	require.NoError(t, err)

	require.NoError(t, c.Services.Load(ctx))
	require.Equal(t, []models.Service{svc}, c.Services.ReadAll())
	require.Len(t, c.News.ReadAll(), 2, "остальные зеркала не трогаются")

	_, err = db.Exec(`DROP TABLE news`)
	require.NoError(t, err)
	require.Error(t, c.News.Load(ctx))
	require.Len(t, c.News.ReadAll(), 2)
}

func TestConcurrentMutations(t *testing.T) {
	t.Parallel()

	c := New(&source{}, nil)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := c.Incidents.Create(ctx, models.Fields{
				"reporter_name": fmt.Sprintf("r%d", i), "location": "x", "incident_type": "Fire",
			})
			require.NoError(t, err)
			_ = c.Incidents.ReadAll()
		}(i)
	}
	wg.Wait()

	all := c.Incidents.ReadAll()
	require.Len(t, all, n)

	ids := map[string]struct{}{}
	for _, r := range all {
		ids[r.ID] = struct{}{}
	}
	require.Len(t, ids, n)
}
