package direct

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/storage"
)

// timeLayout — формат записи временных меток (UTC, микросекунды, фиксированная ширина).
// Лексикографический порядок строк совпадает с хронологическим.
const timeLayout = "2006-01-02 15:04:05.000000"

var parseLayouts = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// sqlTime принимает время в любом виде, который отдают драйверы:
// time.Time (mysql с parseTime, sqlite для DATETIME) или текст.
type sqlTime struct{ t time.Time }

func (st *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		st.t = time.Time{}
		return nil
	case time.Time:
		st.t = v.UTC()
		return nil
	case []byte:
		return st.parse(string(v))
	case string:
		return st.parse(v)
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (st *sqlTime) parse(s string) error {
	s = strings.TrimSpace(s)
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			st.t = t.UTC()
			return nil
		}
	}

	return fmt.Errorf("unparsable time %q", s)
}

// text — строковая колонка, допускающая NULL (NULL -> "").
type text string

func (t *text) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = ""
	case string:
		*t = text(v)
	case []byte:
		*t = text(v)
	default:
		return fmt.Errorf("unsupported text value %T", src)
	}

	return nil
}

// tagsText — теги в JSON-тексте.
type tagsText []string

func (tt *tagsText) Scan(src any) error {
	var raw text
	if err := raw.Scan(src); err != nil {
		return err
	}

	tags, err := storage.DecodeTags(string(raw))
	if err != nil {
		return err
	}
	*tt = tags

	return nil
}

// selectColumns — порядок колонок в SELECT для каждой коллекции.
var selectColumns = map[models.Entity]string{
	models.EntityNews: "id, title, excerpt, content, image, author, status, date, created_at, updated_at",

	models.EntityServices: "id, title, description, icon, tags, status, created_at, updated_at",

	models.EntityIncidents: "id, reference_number, reporter_name, contact_number, location, incident_type, " +
		"description, urgency, status, date_reported, updated_at",

	models.EntityGallery: "id, title, description, image, category, date, location, tags, status, featured, " +
		"created_at, updated_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord читает одну строку в запись нужного типа (порядок — selectColumns).
func scanRecord[T models.Record](sc rowScanner) (T, error) {
	var out T

	var err error
	switch r := any(&out).(type) {
	case *models.NewsItem:
		err = scanNews(sc, r)
	case *models.Service:
		err = scanService(sc, r)
	case *models.IncidentReport:
		err = scanIncident(sc, r)
	case *models.GalleryItem:
		err = scanGallery(sc, r)
	}

	return out, err
}

func scanNews(sc rowScanner, n *models.NewsItem) error {
	var title, excerpt, content, image, author, status, date text
	var created, updated sqlTime

	if err := sc.Scan(&n.ID, &title, &excerpt, &content, &image, &author, &status, &date, &created, &updated); err != nil {
		return err
	}

	n.Title, n.Excerpt, n.Content = string(title), string(excerpt), string(content)
	n.Image, n.Author, n.Status, n.Date = string(image), string(author), string(status), string(date)
	n.CreatedAt, n.UpdatedAt = created.t, updated.t

	return nil
}

func scanService(sc rowScanner, s *models.Service) error {
	var title, description, icon, status text
	var tags tagsText
	var created, updated sqlTime

	if err := sc.Scan(&s.ID, &title, &description, &icon, &tags, &status, &created, &updated); err != nil {
		return err
	}

	s.Title, s.Description, s.Icon, s.Status = string(title), string(description), string(icon), string(status)
	s.Tags = []string(tags)
	s.CreatedAt, s.UpdatedAt = created.t, updated.t

	return nil
}

func scanIncident(sc rowScanner, r *models.IncidentReport) error {
	var ref, reporter, contact, location, kind, description, urgency, status text
	var reported, updated sqlTime

	if err := sc.Scan(&r.ID, &ref, &reporter, &contact, &location, &kind,
		&description, &urgency, &status, &reported, &updated); err != nil {
		return err
	}

	r.ReferenceNumber, r.ReporterName, r.ContactNumber = string(ref), string(reporter), string(contact)
	r.Location, r.IncidentType, r.Description = string(location), string(kind), string(description)
	r.Urgency, r.Status = string(urgency), string(status)
	r.DateReported, r.UpdatedAt = reported.t, updated.t

	return nil
}

func scanGallery(sc rowScanner, g *models.GalleryItem) error {
	var title, description, image, category, date, location, status text
	var tags tagsText
	var featured sql.NullBool
	var created, updated sqlTime

	if err := sc.Scan(&g.ID, &title, &description, &image, &category, &date, &location,
		&tags, &status, &featured, &created, &updated); err != nil {
		return err
	}

	g.Title, g.Description, g.Image = string(title), string(description), string(image)
	g.Category, g.Date, g.Location = string(category), string(date), string(location)
	g.Tags, g.Status, g.Featured = []string(tags), string(status), featured.Bool
	g.CreatedAt, g.UpdatedAt = created.t, updated.t

	return nil
}
