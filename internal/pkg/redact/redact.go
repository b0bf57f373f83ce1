// redact маскирует секреты подключения перед записью в лог:
// пароли, ключи доступа и строки подключения.
package redact

import (
	"net/url"

	"github.com/go-sql-driver/mysql"
)

// Password возвращает литерал-заглушку для пароля в логах.
func Password() string { return "[REDACTED_PASSWORD]" }

// Key маскирует ключ доступа, оставляя первые 4 символа (по рунам).
// Короткие и пустые ключи скрываются полностью.
func Key(s string) string {
	r := []rune(s)
	if len(r) <= 8 {
		return "***"
	}

	return string(r[:4]) + "***"
}

// URL убирает из адреса учётные данные и строку запроса.
// Нераспознаваемый адрес скрывается полностью.
func URL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}

	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""

	return u.String()
}

// DSN заменяет пароль в строке подключения MySQL.
func DSN(dsn string) string {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "***"
	}
	if cfg.Passwd != "" {
		cfg.Passwd = Password()
	}

	return cfg.FormatDSN()
}
