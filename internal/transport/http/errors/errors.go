// errors переводит ошибки storage, connection, cache и core в HTTP-статус и
// тело {"error":{...}}. Текст исходной ошибки клиенту не отдаётся, кроме
// ConfigurationError: её причина перечисляет незаполненные параметры.
package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/pribylovaa/drrm-datacore/internal/cache"
	"github.com/pribylovaa/drrm-datacore/internal/connection"
	"github.com/pribylovaa/drrm-datacore/internal/core"
	"github.com/pribylovaa/drrm-datacore/internal/storage"
)

// StatusClientClosedRequest — клиент ушёл раньше ответа (nginx 499).
const StatusClientClosedRequest = 499

var (
	// ErrBadRequest — тело или параметры запроса не разобраны.
	ErrBadRequest = stderrors.New("bad request")
	// ErrUnknownCollection — в пути указана несуществующая коллекция.
	ErrUnknownCollection = stderrors.New("unknown collection")
)

// APIError — тело ошибки. Code стабилен и предназначен для панели
// администратора, Message показывается человеку.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP возвращает статус и тело ответа для err.
//
// Таблица:
//   - ConfigurationError -> 400 invalid_configuration (с причиной)
//   - ConnectionError -> 502 connection_failed
//   - core.ErrCacheReload -> 502 cache_reload_failed
//   - ErrBadRequest, storage.ErrInvalidField -> 400
//   - storage.ErrNotFound, ErrUnknownCollection -> 404
//   - cache.ErrNoStore -> 412 (нет активного хранилища)
//   - storage.ErrClosed -> 503 (хранилище закрыто переключением)
//   - Canceled -> 499, DeadlineExceeded -> 504
//   - прочие OperationError -> 502 store_error
//   - err == nil и всё остальное -> 500/internal
func ToHTTP(err error) (int, ErrorResponse) {
	httpStatus, code, msg := classify(err)

	return httpStatus, ErrorResponse{
		Error: APIError{
			Code:    code,
			Message: msg,
		},
	}
}

func classify(err error) (int, string, string) {
	if err == nil {
		return http.StatusInternalServerError, "internal", "internal error"
	}

	var (
		cfgErr  *connection.ConfigurationError
		connErr *connection.ConnectionError
		opErr   *storage.OperationError
	)

	switch {
	case stderrors.As(err, &cfgErr):
		return http.StatusBadRequest, "invalid_configuration", cfgErr.Error()
	case stderrors.As(err, &connErr):
		return http.StatusBadGateway, "connection_failed", "failed to connect to store"
	case stderrors.Is(err, core.ErrCacheReload):
		return http.StatusBadGateway, "cache_reload_failed", "store switched but data reload failed"
	case stderrors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case stderrors.Is(err, storage.ErrInvalidField):
		return http.StatusBadRequest, "invalid_field", "invalid field"
	case stderrors.Is(err, storage.ErrNotFound), stderrors.Is(err, ErrUnknownCollection):
		return http.StatusNotFound, "not_found", "not found"
	case stderrors.Is(err, cache.ErrNoStore):
		return http.StatusPreconditionFailed, "failed_precondition", "no active store"
	case stderrors.Is(err, storage.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable", "store unavailable"
	case stderrors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case stderrors.As(err, &opErr):
		return http.StatusBadGateway, "store_error", "store operation failed"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

// WriteError пишет ответ об ошибке. request_id берётся из X-Request-Id.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
