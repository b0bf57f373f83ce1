// models содержит доменные сущности datacore: четыре коллекции портала
// (новости, услуги, сообщения об инцидентах, галерея) и состояние подключения.
// Эти типы используются слоями кэша, хранилищ и транспорта.
package models

import "time"

// Entity — имя коллекции (совпадает с именем таблицы в обоих хранилищах).
type Entity string

const (
	EntityNews      Entity = "news"
	EntityServices  Entity = "services"
	EntityIncidents Entity = "incident_reports"
	EntityGallery   Entity = "gallery"
)

// Entities — все коллекции в порядке загрузки.
var Entities = []Entity{EntityNews, EntityServices, EntityIncidents, EntityGallery}

// Record — общий контракт записей коллекций.
type Record interface {
	NewsItem | Service | IncidentReport | GalleryItem
}

// NewsItem — новость.
//
// Особенности:
//   - Date — дата публикации в формате YYYY-MM-DD (как вводит редактор);
//   - CreatedAt не меняется после создания.
type NewsItem struct {
	ID        string    `json:"id"         yaml:"id"`
	Title     string    `json:"title"      yaml:"title"`
	Excerpt   string    `json:"excerpt"    yaml:"excerpt"`
	Content   string    `json:"content"    yaml:"content"`
	Image     string    `json:"image"      yaml:"image"`
	Author    string    `json:"author"     yaml:"author"`
	Status    string    `json:"status"     yaml:"status"`
	Date      string    `json:"date"       yaml:"date"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Service — услуга MDRRMO.
type Service struct {
	ID          string    `json:"id"          yaml:"id"`
	Title       string    `json:"title"       yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Icon        string    `json:"icon"        yaml:"icon"`
	Tags        []string  `json:"tags"        yaml:"tags"`
	Status      string    `json:"status"      yaml:"status"`
	CreatedAt   time.Time `json:"created_at"  yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"  yaml:"updated_at"`
}

// IncidentReport — сообщение о происшествии от жителя.
//
// ReferenceNumber назначается один раз при создании и дальше не меняется.
type IncidentReport struct {
	ID              string    `json:"id"               yaml:"id"`
	ReferenceNumber string    `json:"reference_number" yaml:"reference_number"`
	ReporterName    string    `json:"reporter_name"    yaml:"reporter_name"`
	ContactNumber   string    `json:"contact_number"   yaml:"contact_number"`
	Location        string    `json:"location"         yaml:"location"`
	IncidentType    string    `json:"incident_type"    yaml:"incident_type"`
	Description     string    `json:"description"      yaml:"description"`
	Urgency         string    `json:"urgency"          yaml:"urgency"`
	Status          string    `json:"status"           yaml:"status"`
	DateReported    time.Time `json:"date_reported"    yaml:"date_reported"`
	UpdatedAt       time.Time `json:"updated_at"       yaml:"updated_at"`
}

// GalleryItem — фотография в галерее.
type GalleryItem struct {
	ID          string    `json:"id"          yaml:"id"`
	Title       string    `json:"title"       yaml:"title"`
	Description string    `json:"description" yaml:"description"`
	Image       string    `json:"image"       yaml:"image"`
	Category    string    `json:"category"    yaml:"category"`
	Date        string    `json:"date"        yaml:"date"`
	Location    string    `json:"location"    yaml:"location"`
	Tags        []string  `json:"tags"        yaml:"tags"`
	Status      string    `json:"status"      yaml:"status"`
	Featured    bool      `json:"featured"    yaml:"featured"`
	CreatedAt   time.Time `json:"created_at"  yaml:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"  yaml:"updated_at"`
}

// Допустимые значения перечислимых полей.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"

	StatusActive   = "active"
	StatusInactive = "inactive"

	IncidentPending    = "pending"
	IncidentInProgress = "in-progress"
	IncidentResolved   = "resolved"

	UrgencyLow    = "LOW"
	UrgencyMedium = "MEDIUM"
	UrgencyHigh   = "HIGH"
)

// RecordID возвращает идентификатор записи любой коллекции.
func RecordID[T Record](rec T) string {
	switch r := any(rec).(type) {
	case NewsItem:
		return r.ID
	case Service:
		return r.ID
	case IncidentReport:
		return r.ID
	case GalleryItem:
		return r.ID
	}

	return ""
}

// EntityOf возвращает имя коллекции для типа записи.
func EntityOf[T Record]() Entity {
	var zero T
	switch any(zero).(type) {
	case NewsItem:
		return EntityNews
	case Service:
		return EntityServices
	case IncidentReport:
		return EntityIncidents
	case GalleryItem:
		return EntityGallery
	}

	return ""
}

// Fields — «сырой» набор полей на вход insert/update (как пришёл от клиента).
// Ключи нормализуются на границе адаптера (storage.Normalize).
type Fields map[string]any
