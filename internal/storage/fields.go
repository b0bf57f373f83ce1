package storage

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/pribylovaa/drrm-datacore/internal/models"
)

// Mode — режим нормализации полей.
type Mode int

const (
	// ModeInsert — создание: подставляются значения по умолчанию.
	ModeInsert Mode = iota
	// ModeUpdate — частичное обновление: только переданные поля.
	ModeUpdate
)

type columnKind int

const (
	kindString columnKind = iota
	kindTags
	kindBool
)

type column struct {
	kind     columnKind
	def      any
	required bool
	enum     []string
}

// Schema — описание записываемых колонок коллекции.
type Schema struct {
	Entity models.Entity
	// OrderBy — поле упорядочивания (DESC).
	OrderBy string
	// Columns — записываемые колонки в порядке таблицы.
	Columns []string
	cols    map[string]column
}

// managed — колонки, которые назначает хранилище; из входных полей отбрасываются.
var managed = map[string]struct{}{
	"id":               {},
	"created_at":       {},
	"updated_at":       {},
	"date_reported":    {},
	"reference_number": {},
}

// aliases — полная таблица допустимых «проводных» имён полей.
// Внутреннее имя имеет приоритет, если пришли оба.
var aliases = map[string]string{
	"reporterName":    "reporter_name",
	"contactNumber":   "contact_number",
	"incidentType":    "incident_type",
	"referenceNumber": "reference_number",
	"dateReported":    "date_reported",
	"createdAt":       "created_at",
	"updatedAt":       "updated_at",
}

var schemas = map[models.Entity]*Schema{
	models.EntityNews: newSchema(models.EntityNews, "created_at",
		[]string{"title", "excerpt", "content", "image", "author", "status", "date"},
		map[string]column{
			"title":   {required: true},
			"excerpt": {},
			"content": {},
			"image":   {},
			"author":  {},
			"status":  {def: models.StatusDraft, enum: []string{models.StatusDraft, models.StatusPublished}},
			"date":    {},
		}),
	models.EntityServices: newSchema(models.EntityServices, "created_at",
		[]string{"title", "description", "icon", "tags", "status"},
		map[string]column{
			"title":       {required: true},
			"description": {},
			"icon":        {},
			"tags":        {kind: kindTags},
			"status":      {def: models.StatusActive, enum: []string{models.StatusActive, models.StatusInactive}},
		}),
	models.EntityIncidents: newSchema(models.EntityIncidents, "date_reported",
		[]string{"reporter_name", "contact_number", "location", "incident_type", "description", "urgency", "status"},
		map[string]column{
			"reporter_name":  {required: true},
			"contact_number": {},
			"location":       {required: true},
			"incident_type":  {required: true},
			"description":    {},
			"urgency": {def: models.UrgencyMedium,
				enum: []string{models.UrgencyLow, models.UrgencyMedium, models.UrgencyHigh}},
			"status": {def: models.IncidentPending,
				enum: []string{models.IncidentPending, models.IncidentInProgress, models.IncidentResolved}},
		}),
	models.EntityGallery: newSchema(models.EntityGallery, "created_at",
		[]string{"title", "description", "image", "category", "date", "location", "tags", "status", "featured"},
		map[string]column{
			"title":       {required: true},
			"description": {},
			"image":       {},
			"category":    {},
			"date":        {},
			"location":    {},
			"tags":        {kind: kindTags},
			"status":      {def: models.StatusDraft, enum: []string{models.StatusDraft, models.StatusPublished}},
			"featured":    {kind: kindBool, def: false},
		}),
}

func newSchema(e models.Entity, orderBy string, order []string, cols map[string]column) *Schema {
	return &Schema{Entity: e, OrderBy: orderBy, Columns: order, cols: cols}
}

// SchemaOf возвращает схему коллекции.
func SchemaOf(e models.Entity) *Schema {
	return schemas[e]
}

// IsTags сообщает, хранится ли колонка как последовательность строк.
func (s *Schema) IsTags(col string) bool {
	return s.cols[col].kind == kindTags
}

// Normalize приводит входные поля к внутренним именам и типам.
//
// Правила:
//   - алиасы из таблицы aliases переводятся во внутренние имена;
//     если пришли оба варианта — берётся внутреннее имя;
//   - служебные колонки (id, created_at, updated_at, date_reported,
//     reference_number) молча отбрасываются: их назначает хранилище;
//   - неизвестное поле, неверный тип или значение вне перечисления -> ErrInvalidField;
//   - ModeInsert дополнительно подставляет значения по умолчанию
//     и проверяет обязательные поля.
//
// Значения результата: string, []string (теги, никогда не nil) или bool.
func Normalize(e models.Entity, in models.Fields, mode Mode) (models.Fields, error) {
	const op = "storage.Normalize"

	schema := SchemaOf(e)
	if schema == nil {
		return nil, fmt.Errorf("%s: unknown collection %q: %w", op, e, ErrInvalidField)
	}

	out := make(models.Fields, len(in))
	for key, val := range in {
		name := key
		if internal, ok := aliases[key]; ok {
			if _, both := in[internal]; both {
				continue
			}
			name = internal
		}

		if _, ok := managed[name]; ok {
			continue
		}

		col, ok := schema.cols[name]
		if !ok {
			return nil, fmt.Errorf("%s: %s.%s: %w", op, e, key, ErrInvalidField)
		}

		v, err := coerce(col, val)
		if err != nil {
			return nil, fmt.Errorf("%s: %s.%s: %v: %w", op, e, key, err, ErrInvalidField)
		}
		out[name] = v
	}

	if mode == ModeInsert {
		for _, name := range schema.Columns {
			col := schema.cols[name]
			if _, ok := out[name]; !ok {
				out[name] = zeroOf(col)
			}
			if col.required {
				if s, _ := out[name].(string); strings.TrimSpace(s) == "" {
					return nil, fmt.Errorf("%s: %s.%s is required: %w", op, e, name, ErrInvalidField)
				}
			}
		}
	}

	return out, nil
}

func zeroOf(col column) any {
	if col.def != nil {
		return col.def
	}

	switch col.kind {
	case kindTags:
		return []string{}
	case kindBool:
		return false
	default:
		return ""
	}
}

func coerce(col column, val any) (any, error) {
	switch col.kind {
	case kindTags:
		return coerceTags(val)
	case kindBool:
		b, ok := val.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", val)
		}
		return b, nil
	default:
		var s string
		switch v := val.(type) {
		case nil:
			s = ""
		case string:
			s = v
		default:
			return nil, fmt.Errorf("expected string, got %T", val)
		}
		if len(col.enum) > 0 && !slices.Contains(col.enum, s) {
			return nil, fmt.Errorf("value %q not in %v", s, col.enum)
		}
		return s, nil
	}
}

func coerceTags(val any) ([]string, error) {
	switch v := val.(type) {
	case nil:
		return []string{}, nil
	case []string:
		if v == nil {
			return []string{}, nil
		}
		for _, s := range v {
			if !utf8.ValidString(s) {
				return nil, fmt.Errorf("tag %q is not valid UTF-8", s)
			}
		}
		return slices.Clone(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("tag must be string, got %T", item)
			}
			if !utf8.ValidString(s) {
				return nil, fmt.Errorf("tag %q is not valid UTF-8", s)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", val)
	}
}

// Merge накладывает нормализованные поля на запись и возвращает копию.
// Используется там, где каноническую строку собираем сами (seeded-режим).
func Merge[T models.Record](base T, fields models.Fields) (T, error) {
	const op = "storage.Merge"

	var zero T

	raw, err := json.Marshal(base)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}

	doc := map[string]any{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}
	for k, v := range fields {
		doc[k] = v
	}

	raw, err = json.Marshal(doc)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// Canonical приводит запись, прочитанную из хранилища, к инвариантам домена:
// теги — никогда не nil, временные метки — в UTC.
func Canonical[T models.Record](rec T) T {
	switch r := any(&rec).(type) {
	case *models.NewsItem:
		r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	case *models.Service:
		if r.Tags == nil {
			r.Tags = []string{}
		}
		r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	case *models.IncidentReport:
		r.DateReported, r.UpdatedAt = r.DateReported.UTC(), r.UpdatedAt.UTC()
	case *models.GalleryItem:
		if r.Tags == nil {
			r.Tags = []string{}
		}
		r.CreatedAt, r.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	}

	return rec
}
