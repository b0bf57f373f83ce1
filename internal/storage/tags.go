package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeTags сериализует теги в текст для колонок TEXT прямого хранилища.
// nil и пустой срез кодируются одинаково: "[]".
func EncodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}

	// Маршалинг []string не может завершиться ошибкой.
	raw, _ := json.Marshal(tags)
	return string(raw)
}

// DecodeTags разбирает текстовое представление тегов.
// Пустая строка и "null" (NULL в БД) дают пустой, но не nil срез.
func DecodeTags(text string) ([]string, error) {
	const op = "storage.DecodeTags"

	text = strings.TrimSpace(text)
	if text == "" || text == "null" {
		return []string{}, nil
	}

	var tags []string
	if err := json.Unmarshal([]byte(text), &tags); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if tags == nil {
		tags = []string{}
	}

	return tags, nil
}
