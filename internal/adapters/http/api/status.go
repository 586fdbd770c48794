package api

import (
	"net/http"

	"github.com/strokelab/courtsync/internal/domain/model"
)

// StatusHandler reports the combined state of both subsystems.
type StatusHandler struct {
	deps Dependencies
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(deps Dependencies) *StatusHandler {
	return &StatusHandler{deps: deps}
}

type statusResponse struct {
	Sync              model.SyncState         `json:"sync"`
	EffectiveOffsetUS int64                   `json:"effective_offset_us"`
	Calibration       model.CalibrationStatus `json:"calibration"`
	QueueLen          int                     `json:"queue_len"`
}

// HandleStatus handles GET /status requests.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Sync:              h.deps.SyncState(),
		EffectiveOffsetUS: h.deps.EffectiveOffset().Microseconds(),
		Calibration:       h.deps.CalibrationState(),
		QueueLen:          h.deps.QueueLen(),
	})
}
