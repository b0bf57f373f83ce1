package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/drrm-datacore/internal/cache"
	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/storage"

	apierrors "github.com/pribylovaa/drrm-datacore/internal/transport/http/errors"
)

// mirror — зеркало коллекции без параметра типа, чтобы маршруты
// /{collection} обслуживались одним набором хендлеров.
type mirror interface {
	readAll() any
	get(id string) (any, bool)
	create(ctx context.Context, fields models.Fields) (any, error)
	modify(ctx context.Context, id string, fields models.Fields) (any, error)
	remove(ctx context.Context, id string) error
}

type typed[T models.Record] struct {
	c *cache.Collection[T]
}

func (m typed[T]) readAll() any { return m.c.ReadAll() }

func (m typed[T]) get(id string) (any, bool) { return m.c.Get(id) }

func (m typed[T]) create(ctx context.Context, fields models.Fields) (any, error) {
	return m.c.Create(ctx, fields)
}

func (m typed[T]) modify(ctx context.Context, id string, fields models.Fields) (any, error) {
	return m.c.Modify(ctx, id, fields)
}

func (m typed[T]) remove(ctx context.Context, id string) error { return m.c.Remove(ctx, id) }

// collection выбирает зеркало по параметру пути {collection}.
func (h *Handlers) collection(r *http.Request) (mirror, error) {
	c := h.Core.Cache()

	switch models.Entity(chi.URLParam(r, "collection")) {
	case models.EntityNews:
		return typed[models.NewsItem]{c.News}, nil
	case models.EntityServices:
		return typed[models.Service]{c.Services}, nil
	case models.EntityIncidents:
		return typed[models.IncidentReport]{c.Incidents}, nil
	case models.EntityGallery:
		return typed[models.GalleryItem]{c.Gallery}, nil
	default:
		return nil, apierrors.ErrUnknownCollection
	}
}

func (h *Handlers) List(w http.ResponseWriter, r *http.Request) {
	m, err := h.collection(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, m.readAll())
}

func (h *Handlers) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.collection(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	rec, ok := m.get(chi.URLParam(r, "id"))
	if !ok {
		apierrors.WriteError(w, r, storage.ErrNotFound)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) Create(w http.ResponseWriter, r *http.Request) {
	m, err := h.collection(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var fields models.Fields
	if err := decodeStrict(r, &fields); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	rec, err := m.create(r.Context(), fields)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handlers) Modify(w http.ResponseWriter, r *http.Request) {
	m, err := h.collection(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	var fields models.Fields
	if err := decodeStrict(r, &fields); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	rec, err := m.modify(r.Context(), chi.URLParam(r, "id"), fields)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (h *Handlers) Remove(w http.ResponseWriter, r *http.Request) {
	m, err := h.collection(r)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := m.remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
