package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/strokelab/courtsync/internal/domain/model"
	"github.com/strokelab/courtsync/internal/domain/spatial"
)

// CalibrationHandler drives the calibration engine lifecycle.
type CalibrationHandler struct {
	deps Dependencies
}

// NewCalibrationHandler creates a new calibration handler.
func NewCalibrationHandler(deps Dependencies) *CalibrationHandler {
	return &CalibrationHandler{deps: deps}
}

// HandleGetCalibration handles GET /calibration requests.
func (h *CalibrationHandler) HandleGetCalibration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.CalibrationState())
}

// HandleStart handles POST /calibration/start requests.
func (h *CalibrationHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.calibration_start"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.deps.StartCalibration(); err != nil {
		writeError(w, http.StatusConflict, "already_running", NewKind(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, h.deps.CalibrationState())
}

type swingSampleRequest struct {
	TimestampUS     int64        `json:"timestamp_us"`
	Acceleration    spatial.Vec3 `json:"acceleration"`
	AngularVelocity spatial.Vec3 `json:"angular_velocity"`
}

type swingRequest struct {
	Samples []swingSampleRequest `json:"samples"`
}

type swingAck struct {
	Accepted    bool                    `json:"accepted"`
	Calibration model.CalibrationStatus `json:"calibration"`
}

// HandleSwing handles POST /calibration/swing: one swing trial as an
// ordered burst of samples.
func (h *CalibrationHandler) HandleSwing(w http.ResponseWriter, r *http.Request) {
	const op = "api.calibration_swing"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req swingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Samples) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing samples")))
		return
	}

	samples := make([]model.MotionSample, len(req.Samples))
	for i, s := range req.Samples {
		samples[i] = model.MotionSample{
			Timestamp:       time.Duration(s.TimestampUS) * time.Microsecond,
			Acceleration:    s.Acceleration,
			AngularVelocity: s.AngularVelocity,
		}
	}

	accepted := h.deps.SubmitSwingTrial(samples)
	writeJSON(w, http.StatusOK, swingAck{Accepted: accepted, Calibration: h.deps.CalibrationState()})
}

// HandleReset handles POST /calibration/reset requests.
func (h *CalibrationHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	h.deps.ResetCalibration()
	writeJSON(w, http.StatusOK, ackResponse{Status: "reset"})
}
