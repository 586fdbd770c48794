package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/strokelab/courtsync/internal/domain/model"
	"github.com/strokelab/courtsync/internal/domain/spatial"
)

// SamplesHandler admits motion samples and audio readings pushed over HTTP,
// the transport used by the vision unit and by test rigs without a BLE
// sensor.
type SamplesHandler struct {
	deps Dependencies
}

// NewSamplesHandler creates a new samples handler.
func NewSamplesHandler(deps Dependencies) *SamplesHandler {
	return &SamplesHandler{deps: deps}
}

type sampleRequest struct {
	Device          string       `json:"device"`
	Seq             uint16       `json:"seq"`
	TimestampUS     int64        `json:"timestamp_us"`
	Acceleration    spatial.Vec3 `json:"acceleration"`
	AngularVelocity spatial.Vec3 `json:"angular_velocity"`
}

type sampleAck struct {
	Status   string `json:"status"`
	QueueLen int    `json:"queue_len"`
}

// HandlePostSample handles POST /samples requests.
func (h *SamplesHandler) HandlePostSample(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_sample"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req sampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	device, err := parseDevice(req.Device)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	sample := model.MotionSample{
		Timestamp:       time.Duration(req.TimestampUS) * time.Microsecond,
		Wallclock:       time.Now(),
		Seq:             req.Seq,
		Acceleration:    req.Acceleration,
		AngularVelocity: req.AngularVelocity,
	}
	if !h.deps.Ingest(r.Context(), device, sample) {
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, sampleAck{Status: "accepted", QueueLen: h.deps.QueueLen()})
}

type audioRequest struct {
	Device string  `json:"device"`
	Level  float64 `json:"level"` // normalized [0,1]
	AtUS   int64   `json:"at_us"`
}

type audioAck struct {
	Status   string `json:"status"`
	PeakSeen bool   `json:"peak_seen"`
}

// HandlePostAudio handles POST /events/audio requests. Levels above the
// peak threshold register a correlated event for tap-sync.
func (h *SamplesHandler) HandlePostAudio(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_audio"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req audioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	device, err := parseDevice(req.Device)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	seen := h.deps.RecordAudioLevel(device, req.Level, time.Duration(req.AtUS)*time.Microsecond)
	writeJSON(w, http.StatusAccepted, audioAck{Status: "accepted", PeakSeen: seen})
}
