// hosted реализует хранилище поверх управляемого сервиса с REST-интерфейсом
// PostgREST (URL проекта + ключ доступа). Запросы строит postgrest-go.
//
// Особенности протокола:
//   - GET    /rest/v1/<table>?select=*&order=<field>.desc — список;
//   - POST   /rest/v1/<table> с Prefer: return=representation — вставка;
//   - PATCH  /rest/v1/<table>?id=eq.<id> — обновление (пустой ответ -> ErrNotFound);
//   - DELETE /rest/v1/<table>?id=eq.<id> — удаление (идемпотентно);
//   - id — UUID: запрос с другим id сервис отклонил бы кодом 22P02, поэтому
//     такие id отсекаются до запроса;
//   - теги хранятся нативными массивами, перекодирование не нужно.
package hosted

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/supabase-community/postgrest-go"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/refgen"
	"github.com/pribylovaa/drrm-datacore/internal/storage"
)

// DefaultRestPath — путь REST-API относительно URL проекта.
const DefaultRestPath = "/rest/v1"

// schema — схема Postgres с таблицами портала.
const schema = "public"

// Config — параметры подключения к hosted-хранилищу.
type Config struct {
	URL      string
	Key      string
	RestPath string
	// Timeout — ограничение на один запрос (0 — только дедлайн контекста).
	Timeout time.Duration
}

// APIError — ошибочный ответ сервиса.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("hosted: %d %s: %s", e.Status, e.Code, msg)
	}

	return fmt.Sprintf("hosted: %d: %s", e.Status, msg)
}

// Store — клиент hosted-хранилища.
type Store struct {
	endpoint string
	key      string
	rt       http.RoundTripper
	timeout  time.Duration
	refs     refgen.Generator
	now      func() time.Time
	closed   atomic.Bool

	news      *collection[models.NewsItem]
	services  *collection[models.Service]
	incidents *collection[models.IncidentReport]
	gallery   *collection[models.GalleryItem]
}

// New создаёт клиент. Сетевых запросов не делает — проверка доступности через Ping.
// client задаёт транспорт (nil — http.DefaultTransport).
func New(cfg Config, refs refgen.Generator, client *http.Client) (*Store, error) {
	const op = "storage.hosted.New"

	raw := strings.TrimSpace(cfg.URL)
	if raw == "" || strings.TrimSpace(cfg.Key) == "" {
		return nil, fmt.Errorf("%s: url and key are required", op)
	}

	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%s: invalid url %q", op, raw)
	}

	restPath := cfg.RestPath
	if restPath == "" {
		restPath = DefaultRestPath
	}

	rt := http.DefaultTransport
	if client != nil && client.Transport != nil {
		rt = client.Transport
	}
	if refs == nil {
		refs = refgen.New()
	}

	s := &Store{
		endpoint: base.JoinPath(restPath).String(),
		key:      cfg.Key,
		rt:       rt,
		timeout:  cfg.Timeout,
		refs:     refs,
		now:      time.Now,
	}
	s.news = newCollection[models.NewsItem](s)
	s.services = newCollection[models.Service](s)
	s.incidents = newCollection[models.IncidentReport](s)
	s.gallery = newCollection[models.GalleryItem](s)

	return s, nil
}

func (s *Store) Kind() models.StoreKind { return models.KindHosted }

func (s *Store) News() storage.Collection[models.NewsItem] { return s.news }
func (s *Store) Services() storage.Collection[models.Service] { return s.services }
func (s *Store) Incidents() storage.Collection[models.IncidentReport] { return s.incidents }
func (s *Store) Gallery() storage.Collection[models.GalleryItem] { return s.gallery }

// Ping выполняет минимальное чтение: один id из news.
func (s *Store) Ping(ctx context.Context) error {
	const op = "storage.hosted.Ping"

	_, err := s.exec(ctx, func(c *postgrest.Client) *postgrest.FilterBuilder {
		return c.From(string(models.EntityNews)).Select("id", "", false).Limit(1, "")
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает простаивающие соединения; дальнейшие вызовы вернут storage.ErrClosed.
func (s *Store) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	if ic, ok := s.rt.(interface{ CloseIdleConnections() }); ok {
		ic.CloseIdleConnections()
	}
}

// exec строит запрос на клиенте, привязанном к ctx, и возвращает тело ответа.
func (s *Store) exec(ctx context.Context, build func(*postgrest.Client) *postgrest.FilterBuilder) ([]byte, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	client := postgrest.NewClient(s.endpoint, schema, nil)
	if client.ClientError != nil {
		return nil, client.ClientError
	}
	client.SetApiKey(s.key).SetAuthToken(s.key)

	ex := &exchange{ctx: ctx, next: s.rt}
	client.Transport.Parent = ex

	body, _, err := build(client).Execute()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && ex.status == 0 {
			return nil, ctxErr
		}
		if ex.status >= http.StatusBadRequest {
			return nil, newAPIError(ex.status, err)
		}
		return nil, err
	}

	return body, nil
}

// exchange подставляет контекст вызова в запросы postgrest-go и запоминает
// статус ответа: библиотека отдаёт только код и текст ошибки.
type exchange struct {
	ctx    context.Context
	next   http.RoundTripper
	status int
}

func (e *exchange) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := e.next.RoundTrip(req.WithContext(e.ctx))
	if resp != nil {
		e.status = resp.StatusCode
	}

	return resp, err
}

// newAPIError разбирает ошибку postgrest-go вида "(<code>) <message>".
func newAPIError(status int, err error) *APIError {
	apiErr := &APIError{Status: status, Message: err.Error()}

	if rest, ok := strings.CutPrefix(apiErr.Message, "("); ok {
		if code, msg, ok := strings.Cut(rest, ") "); ok {
			apiErr.Code, apiErr.Message = code, msg
		}
	}

	return apiErr
}

// IsAuthError сообщает, отклонил ли сервис ключ доступа.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}

	return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
}

var _ storage.Store = (*Store)(nil)
