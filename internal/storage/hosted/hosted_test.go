package hosted

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/refgen"
	"github.com/pribylovaa/drrm-datacore/internal/storage"
	"github.com/stretchr/testify/require"
)

// Тесты hosted-адаптера против fakeRest (chi + httptest):
//  - Ping: успешный и с отклонённым ключом;
//  - Insert/List: сервер назначает id и метки, порядок — по полю упорядочивания DESC;
//  - инциденты: алиасы полей и номер обращения;
//  - теги: нативные массивы в обе стороны, пустой список;
//  - Update: слияние полей, ErrNotFound для отсутствующего id;
//  - Delete: идемпотентность;
//  - id не в формате UUID: Delete -> nil, Update -> ErrNotFound, запрос не уходит;
//  - отменённый контекст;
//  - ошибки транспорта оборачиваются в OperationError с именем операции и коллекции;
//  - Close: дальнейшие вызовы получают ErrClosed.

const testKey = "service-key"

func newTestStore(t *testing.T) (*Store, *fakeRest) {
	t.Helper()

	fake, srv := newFakeRest(t, testKey)
	st, err := New(Config{URL: srv.URL, Key: testKey, Timeout: 5 * time.Second},
		refgen.NewSeeded(1, nil), srv.Client())
	require.NoError(t, err)
	t.Cleanup(st.Close)

	return st, fake
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{URL: "", Key: "k"}, nil, nil)
	require.Error(t, err)

	_, err = New(Config{URL: "https://x.example", Key: " "}, nil, nil)
	require.Error(t, err)

	_, err = New(Config{URL: "not a url", Key: "k"}, nil, nil)
	require.Error(t, err)

	st, err := New(Config{URL: "https://x.example", Key: "k"}, nil, nil)
	require.NoError(t, err)
	require.Equal(t, models.KindHosted, st.Kind())
}

func TestPing(t *testing.T) {
	t.Parallel()

	st, _ := newTestStore(t)
	require.NoError(t, st.Ping(context.Background()))

	_, srv := newFakeRest(t, testKey)
	bad, err := New(Config{URL: srv.URL, Key: "wrong"}, nil, srv.Client())
	require.NoError(t, err)

	err = bad.Ping(context.Background())
	require.Error(t, err)
	require.True(t, IsAuthError(err))
	require.Contains(t, err.Error(), "Invalid API key")
}

func TestNews_InsertListOrder(t *testing.T) {
	t.Parallel()

	st, _ := newTestStore(t)
	ctx := context.Background()

	first, err := st.News().Insert(ctx, models.Fields{"title": "first", "status": models.StatusPublished})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	require.False(t, first.CreatedAt.IsZero())
	require.Equal(t, models.StatusPublished, first.Status)

	second, err := st.News().Insert(ctx, models.Fields{"title": "second"})
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, second.Status, "status по умолчанию")

	list, err := st.News().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID, "новая запись первой")
	require.Equal(t, first.ID, list[1].ID)
	require.Equal(t, time.UTC, list[0].CreatedAt.Location())
}

func TestIncidents_AliasesAndReference(t *testing.T) {
	t.Parallel()

	st, _ := newTestStore(t)
	ctx := context.Background()

	rec, err := st.Incidents().Insert(ctx, models.Fields{
		"reporterName":    "Maria",
		"contactNumber":   "0917",
		"incidentType":    "Landslide",
		"location":        "Purok 3",
		"urgency":         models.UrgencyHigh,
		"referenceNumber": "RD-1999-0001",
	})
	require.NoError(t, err)

	require.Equal(t, "Maria", rec.ReporterName)
	require.Equal(t, "0917", rec.ContactNumber)
	require.Equal(t, "Landslide", rec.IncidentType)
	require.Equal(t, models.IncidentPending, rec.Status)
	require.True(t, refgen.Valid(rec.ReferenceNumber), rec.ReferenceNumber)
	require.NotEqual(t, "RD-1999-0001", rec.ReferenceNumber, "клиент не задаёт номер")
	require.False(t, rec.DateReported.IsZero())

	upd, err := st.Incidents().Update(ctx, rec.ID, models.Fields{
		"status":           models.IncidentResolved,
		"reference_number": "RD-2000-0002",
	})
	require.NoError(t, err)
	require.Equal(t, models.IncidentResolved, upd.Status)
	require.Equal(t, rec.ReferenceNumber, upd.ReferenceNumber)
	require.Equal(t, rec.ID, upd.ID)
	require.True(t, rec.DateReported.Equal(upd.DateReported))
}

func TestTags_NativeArrays(t *testing.T) {
	t.Parallel()

	st, _ := newTestStore(t)
	ctx := context.Background()

	svc, err := st.Services().Insert(ctx, models.Fields{
		"title": "Disaster Preparedness",
		"tags":  []string{"First Aid Training", "DRRM Workshops", "Drills"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"First Aid Training", "DRRM Workshops", "Drills"}, svc.Tags)

	item, err := st.Gallery().Insert(ctx, models.Fields{"title": "no tags"})
	require.NoError(t, err)
	require.NotNil(t, item.Tags)
	require.Empty(t, item.Tags)

	list, err := st.Services().List(ctx)
	require.NoError(t, err)
	require.Equal(t, svc.Tags, list[0].Tags)
}

func TestUpdate_NotFound(t *testing.T) {
	t.Parallel()

	st, _ := newTestStore(t)

	_, err := st.Gallery().Update(context.Background(), uuid.NewString(), models.Fields{"featured": true})
	require.ErrorIs(t, err, storage.ErrNotFound)

	var oe *storage.OperationError
	require.True(t, errors.As(err, &oe))
	require.Equal(t, storage.OpUpdate, oe.Op)
	require.Equal(t, models.EntityGallery, oe.Collection)
}

func TestDelete_Idempotent(t *testing.T) {
	t.Parallel()

	st, fake := newTestStore(t)
	ctx := context.Background()

	rec, err := st.Services().Insert(ctx, models.Fields{"title": "x"})
	require.NoError(t, err)

	require.NoError(t, st.Services().Delete(ctx, rec.ID))
	require.NoError(t, st.Services().Delete(ctx, rec.ID))
	require.NoError(t, st.Services().Delete(ctx, "never-existed"))
	require.Equal(t, 0, fake.rowCount("services"))
}

func TestNonUUIDIDs(t *testing.T) {
	t.Parallel()

	st, fake := newTestStore(t)
	ctx := context.Background()

	rec, err := st.News().Insert(ctx, models.Fields{"title": "kept"})
	require.NoError(t, err)
	sent := fake.requestCount()

	for _, id := range []string{"1", "never-existed", ""} {
		require.NoError(t, st.News().Delete(ctx, id), id)

		_, err := st.News().Update(ctx, id, models.Fields{"title": "x"})
		require.ErrorIs(t, err, storage.ErrNotFound, id)

		var oe *storage.OperationError
		require.True(t, errors.As(err, &oe))
		require.Equal(t, storage.OpUpdate, oe.Op)
	}

	require.Equal(t, sent, fake.requestCount(), "запросы с таким id не отправляются")
	require.Equal(t, 1, fake.rowCount("news"))

	list, err := st.News().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, rec.ID, list[0].ID)
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	st, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := st.Services().List(ctx)
	require.ErrorIs(t, err, context.Canceled)

	var oe *storage.OperationError
	require.True(t, errors.As(err, &oe))
	require.Equal(t, storage.OpList, oe.Op)
}

func TestErrors_WrappedAsOperationError(t *testing.T) {
	t.Parallel()

	st, fake := newTestStore(t)
	ctx := context.Background()

	fake.failWith(http.StatusInternalServerError)
	_, err := st.News().Insert(ctx, models.Fields{"title": "x"})
	require.Error(t, err)

	var oe *storage.OperationError
	require.True(t, errors.As(err, &oe))
	require.Equal(t, storage.OpInsert, oe.Op)
	require.Equal(t, models.EntityNews, oe.Collection)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusInternalServerError, apiErr.Status)
	require.Equal(t, "XX000", apiErr.Code)
	require.Equal(t, "forced failure", apiErr.Message)
	require.Equal(t, 0, fake.rowCount("news"), "неуспешная вставка ничего не пишет")

	_, err = st.News().Insert(ctx, models.Fields{"title": "x", "unknown": 1})
	require.ErrorIs(t, err, storage.ErrInvalidField)
}

func TestClose(t *testing.T) {
	t.Parallel()

	st, _ := newTestStore(t)
	st.Close()
	st.Close()

	_, err := st.News().List(context.Background())
	require.ErrorIs(t, err, storage.ErrClosed)
	require.ErrorIs(t, st.Ping(context.Background()), storage.ErrClosed)
}
