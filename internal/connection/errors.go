package connection

import (
	"fmt"

	"github.com/pribylovaa/drrm-datacore/internal/models"
)

// ConfigurationError — параметры переключения неверны, подключение не пробовали.
type ConfigurationError struct {
	Kind   models.StoreKind
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s store configuration: %s", e.Kind, e.Reason)
}

// ConnectionError — подключение или проверка хранилища не удались.
// Ранее активное хранилище остаётся активным.
type ConnectionError struct {
	Kind models.StoreKind
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s store: %v", e.Kind, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
