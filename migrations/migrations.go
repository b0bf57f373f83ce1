// migrations встраивает справочную DDL обоих хранилищ. Сервис схему не применяет:
// её накатывает оператор, а тесты используют её для встроенной SQLite и MySQL.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed direct/*.sql hosted/*.sql
var files embed.FS

// Direct возвращает запросы схемы прямого хранилища по порядку файлов.
func Direct() ([]string, error) {
	return statements("direct")
}

// Hosted возвращает запросы схемы hosted-хранилища по порядку файлов.
func Hosted() ([]string, error) {
	return statements("hosted")
}

func statements(dir string) ([]string, error) {
	const op = "migrations.statements"

	names, err := fs.Glob(files, dir+"/*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		b, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, Split(string(b))...)
	}

	return out, nil
}

// Split режет SQL-скрипт на запросы по ";" и выбрасывает строки-комментарии "--".
// Точка с запятой внутри строковых литералов не поддерживается.
func Split(script string) []string {
	var out []string
	for _, chunk := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, "\n"))
		}
	}

	return out
}
