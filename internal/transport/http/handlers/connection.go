package handlers

import (
	"net/http"

	"github.com/pribylovaa/drrm-datacore/internal/models"

	apierrors "github.com/pribylovaa/drrm-datacore/internal/transport/http/errors"
)

func (h *Handlers) ConnectionState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Core.State())
}

// SwitchConnection принимает SwitchConfig и возвращает новое состояние.
// Пароль в ответ не попадает: состояние его не содержит.
func (h *Handlers) SwitchConnection(w http.ResponseWriter, r *http.Request) {
	var cfg models.SwitchConfig
	if err := decodeStrict(r, &cfg); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	if err := h.Core.Switch(r.Context(), cfg); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.Core.State())
}

func (h *Handlers) ProbeConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.Core.Probe(r.Context()); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.Core.State())
}

func (h *Handlers) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.Core.Disconnect(r.Context())

	writeJSON(w, http.StatusOK, h.Core.State())
}
