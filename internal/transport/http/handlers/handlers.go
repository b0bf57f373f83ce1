package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pribylovaa/drrm-datacore/internal/cache"
	"github.com/pribylovaa/drrm-datacore/internal/models"

	apierrors "github.com/pribylovaa/drrm-datacore/internal/transport/http/errors"
)

// Core — то, что HTTP-слою нужно от контекста процесса.
type Core interface {
	Cache() *cache.Cache
	State() models.ConnectionState
	Switch(ctx context.Context, cfg models.SwitchConfig) error
	Probe(ctx context.Context) error
	Disconnect(ctx context.Context)
}

// Handlers агрегирует зависимости.
type Handlers struct {
	Core Core
}

func New(c Core) *Handlers {
	return &Handlers{Core: c}
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля и пустое тело.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty body: %w", apierrors.ErrBadRequest)
		}
		return fmt.Errorf("%v: %w", err, apierrors.ErrBadRequest)
	}

	return nil
}
