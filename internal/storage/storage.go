// storage определяет единый CRUD-контракт над двумя взаимоисключающими
// хранилищами (hosted и direct) для четырёх коллекций портала.
package storage

//go:generate mockgen -destination=../../mocks/mock_storage.go -package=mocks github.com/pribylovaa/drrm-datacore/internal/storage Store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pribylovaa/drrm-datacore/internal/models"
)

var (
	// ErrNotFound — запись с таким id отсутствует (только для update).
	ErrNotFound = errors.New("not found")
	// ErrInvalidField — неизвестное поле, неверный тип или недопустимое значение.
	ErrInvalidField = errors.New("invalid field")
	// ErrClosed — хранилище уже закрыто (teardown).
	ErrClosed = errors.New("store closed")
)

// Имена операций для OperationError.
const (
	OpList   = "list"
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// OperationError — ошибка CRUD-вызова против активного хранилища.
// Несёт имя операции и коллекцию; исходная причина доступна через errors.Is/As.
type OperationError struct {
	Op         string
	Collection models.Entity
	Err        error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collection, e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// OpError оборачивает err в OperationError, не создавая двойной обёртки.
func OpError(op string, entity models.Entity, err error) error {
	if err == nil {
		return nil
	}

	var oe *OperationError
	if errors.As(err, &oe) {
		return err
	}

	return &OperationError{Op: op, Collection: entity, Err: err}
}

// Collection — адаптер одной коллекции.
type Collection[T models.Record] interface {
	// List возвращает все записи, отсортированные по полю упорядочивания DESC.
	List(ctx context.Context) ([]T, error)
	// Insert создаёт запись; id, временные метки (и номер обращения для инцидентов)
	// назначает хранилище. Возвращает каноническую сохранённую строку.
	Insert(ctx context.Context, fields models.Fields) (T, error)
	// Update сливает поля в существующую запись. ErrNotFound, если id нет.
	Update(ctx context.Context, id string, fields models.Fields) (T, error)
	// Delete удаляет запись; отсутствие id — не ошибка.
	Delete(ctx context.Context, id string) error
}

// Store — одно подключённое хранилище со всеми коллекциями.
type Store interface {
	Kind() models.StoreKind
	News() Collection[models.NewsItem]
	Services() Collection[models.Service]
	Incidents() Collection[models.IncidentReport]
	Gallery() Collection[models.GalleryItem]
	// Ping — минимальное чтение (count/limit 1) для health-check.
	Ping(ctx context.Context) error
	// Close освобождает ресурсы подключения; повторный вызов безопасен.
	Close()
}

// CollectionOf возвращает адаптер коллекции нужного типа из Store.
func CollectionOf[T models.Record](s Store) Collection[T] {
	var c any
	switch models.EntityOf[T]() {
	case models.EntityNews:
		c = s.News()
	case models.EntityServices:
		c = s.Services()
	case models.EntityIncidents:
		c = s.Incidents()
	case models.EntityGallery:
		c = s.Gallery()
	}

	return c.(Collection[T])
}
