package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/strokelab/courtsync/internal/domain/clocksync"
	"github.com/strokelab/courtsync/internal/domain/model"
)

// SyncHandler drives the round-trip synchronization and the correction
// operations.
type SyncHandler struct {
	deps Dependencies
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(deps Dependencies) *SyncHandler {
	return &SyncHandler{deps: deps}
}

type syncResponse struct {
	Sync              model.SyncState `json:"sync"`
	EffectiveOffsetUS int64           `json:"effective_offset_us"`
}

// HandleSync handles POST /sync: it starts (or joins) a synchronization run
// and blocks until the run resolves.
func (h *SyncHandler) HandleSync(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	select {
	case err := <-h.deps.Synchronize(r.Context()):
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "sync_failed", WrapKind(op, err, errors.New("exchange did not converge")))
			return
		}
	case <-r.Context().Done():
		writeError(w, http.StatusRequestTimeout, "cancelled", r.Context().Err())
		return
	}

	writeJSON(w, http.StatusOK, syncResponse{
		Sync:              h.deps.SyncState(),
		EffectiveOffsetUS: h.deps.EffectiveOffset().Microseconds(),
	})
}

// HandleReset handles POST /sync/reset.
func (h *SyncHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	h.deps.ResetSync()
	writeJSON(w, http.StatusOK, ackResponse{Status: "reset"})
}

// HandleOrigin handles POST /sync/origin: it establishes this device's
// session time origin and returns it for transmission to the peer.
func (h *SyncHandler) HandleOrigin(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync_origin"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	origin, err := h.deps.EstablishOrigin()
	if err != nil {
		writeError(w, http.StatusConflict, "origin_exists", NewKind(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, origin)
}

type adoptOriginRequest struct {
	Device          string    `json:"device"`
	SessionID       string    `json:"session_id"`
	LocalOriginUS   int64     `json:"local_origin_us"`
	WallclockOrigin time.Time `json:"wallclock_origin"`
}

// HandleAdoptOrigin handles POST /sync/origin/adopt: it records the origin
// the peer established.
func (h *SyncHandler) HandleAdoptOrigin(w http.ResponseWriter, r *http.Request) {
	const op = "api.sync_origin_adopt"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req adoptOriginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	device, err := parseDevice(req.Device)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing session_id")))
		return
	}

	origin := model.TimeOrigin{
		Device:          device,
		SessionID:       req.SessionID,
		LocalOrigin:     time.Duration(req.LocalOriginUS) * time.Microsecond,
		WallclockOrigin: req.WallclockOrigin,
	}
	if err := h.deps.AdoptOrigin(origin); err != nil {
		writeError(w, http.StatusConflict, "origin_exists", NewKind(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, origin)
}

// HandleCorrections handles GET /corrections: the applied correction history
// in order.
func (h *SyncHandler) HandleCorrections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Corrections())
}

// HandleTapCorrection handles POST /corrections/tap: it derives a correction
// from the latest correlated impulse pair.
func (h *SyncHandler) HandleTapCorrection(w http.ResponseWriter, r *http.Request) {
	const op = "api.corrections_tap"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	corr, err := h.deps.ApplyTapCorrection(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, "insufficient_events", NewKind(op, err))
		return
	}
	writeJSON(w, http.StatusOK, corr)
}

type driftPointRequest struct {
	ElapsedUS int64 `json:"elapsed_us"`
	OffsetUS  int64 `json:"offset_us"`
}

type driftRequest struct {
	Points []driftPointRequest `json:"points"`
}

// HandleDriftCorrection handles POST /corrections/drift: it fits the
// submitted offset history and applies the regression intercept.
func (h *SyncHandler) HandleDriftCorrection(w http.ResponseWriter, r *http.Request) {
	const op = "api.corrections_drift"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req driftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	points := make([]clocksync.DriftPoint, len(req.Points))
	for i, p := range req.Points {
		points[i] = clocksync.DriftPoint{
			Elapsed: time.Duration(p.ElapsedUS) * time.Microsecond,
			Offset:  time.Duration(p.OffsetUS) * time.Microsecond,
		}
	}

	corr, err := h.deps.ApplyDriftCorrection(r.Context(), points)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "insufficient_data", NewKind(op, err))
		return
	}
	writeJSON(w, http.StatusOK, corr)
}
