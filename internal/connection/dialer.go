package connection

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pribylovaa/drrm-datacore/internal/models"
	"github.com/pribylovaa/drrm-datacore/internal/refgen"
	"github.com/pribylovaa/drrm-datacore/internal/storage"
	"github.com/pribylovaa/drrm-datacore/internal/storage/direct"
	"github.com/pribylovaa/drrm-datacore/internal/storage/hosted"
)

// StoreDialer открывает настоящие хранилища: hosted по конфигурации процесса,
// direct по параметрам переключения.
type StoreDialer struct {
	Hosted hosted.Config
	// DirectDriver — драйвер database/sql для direct (mysql по умолчанию).
	DirectDriver string
	Refs         refgen.Generator
	// Client — HTTP-клиент hosted-хранилища (nil — собственный с Hosted.Timeout).
	Client *http.Client
}

// Dial реализует Dialer.
func (d StoreDialer) Dial(ctx context.Context, kind models.StoreKind, target models.DirectTarget) (storage.Store, error) {
	switch kind {
	case models.KindHosted:
		st, err := hosted.New(d.Hosted, d.Refs, d.Client)
		if err != nil {
			return nil, err
		}
		return st, nil

	case models.KindDirect:
		timeout := DefaultConnectTimeout
		if dl, ok := ctx.Deadline(); ok {
			timeout = time.Until(dl)
		}

		st, err := direct.Open(ctx, d.DirectDriver, target, timeout, d.Refs)
		if err != nil {
			return nil, err
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unsupported store kind %q", kind)
	}
}

var _ Dialer = StoreDialer{}
