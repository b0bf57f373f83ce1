// seed хранит встроенный набор данных, на котором процесс работает,
// когда ни одно хранилище не подключено.
package seed

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/storage"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var raw []byte

// Dataset — содержимое всех четырёх коллекций.
type Dataset struct {
	News      []models.NewsItem       `yaml:"news"             json:"news"`
	Services  []models.Service        `yaml:"services"         json:"services"`
	Incidents []models.IncidentReport `yaml:"incident_reports" json:"incident_reports"`
	Gallery   []models.GalleryItem    `yaml:"gallery"          json:"gallery"`
}

// Load разбирает встроенный набор. Каждый вызов возвращает независимую копию.
func Load() (Dataset, error) {
	return Parse(raw)
}

// MustLoad — как Load, но паникует при ошибке (встроенные данные проверяются тестами).
func MustLoad() Dataset {
	ds, err := Load()
	if err != nil {
		panic(err)
	}

	return ds
}

// Parse разбирает YAML с набором данных. Неизвестные поля — ошибка.
func Parse(b []byte) (Dataset, error) {
	const op = "seed.Parse"

	var ds Dataset

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&ds); err != nil && !errors.Is(err, io.EOF) {
		return Dataset{}, fmt.Errorf("%s: %w", op, err)
	}

	ds.News = canonical(ds.News)
	ds.Services = canonical(ds.Services)
	ds.Incidents = canonical(ds.Incidents)
	ds.Gallery = canonical(ds.Gallery)

	return ds, nil
}

func canonical[T models.Record](items []T) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		out = append(out, storage.Canonical(it))
	}

	return out
}

// Items возвращает записи коллекции нужного типа.
func Items[T models.Record](ds Dataset) []T {
	var out any
	switch models.EntityOf[T]() {
	case models.EntityNews:
		out = ds.News
	case models.EntityServices:
		out = ds.Services
	case models.EntityIncidents:
		out = ds.Incidents
	case models.EntityGallery:
		out = ds.Gallery
	}

	return out.([]T)
}
