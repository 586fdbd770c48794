// Package api declares HTTP contracts and route registration helpers for
// the coordination service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/strokelab/courtsync/internal/domain/clocksync"
	"github.com/strokelab/courtsync/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	// Ingestion path.
	Ingest(ctx context.Context, device model.DeviceID, sample model.MotionSample) bool
	QueueLen() int

	// Clock synchronization.
	Synchronize(ctx context.Context) <-chan error
	SyncState() model.SyncState
	EffectiveOffset() time.Duration
	ResetSync()
	EstablishOrigin() (model.TimeOrigin, error)
	AdoptOrigin(origin model.TimeOrigin) error

	// Corrections.
	RecordAudioLevel(device model.DeviceID, level float64, at time.Duration) bool
	ApplyTapCorrection(ctx context.Context) (model.Correction, error)
	ApplyDriftCorrection(ctx context.Context, points []clocksync.DriftPoint) (model.Correction, error)
	Corrections() []model.Correction

	// Calibration.
	StartCalibration() error
	SubmitSwingTrial(samples []model.MotionSample) bool
	ResetCalibration()
	CalibrationState() model.CalibrationStatus
}

// Server wires HTTP routes for the coordination API.
type Server struct {
	healthHandler      *HealthHandler
	statusHandler      *StatusHandler
	syncHandler        *SyncHandler
	samplesHandler     *SamplesHandler
	calibrationHandler *CalibrationHandler
}

// NewServer creates an API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statusHandler:      NewStatusHandler(deps),
		syncHandler:        NewSyncHandler(deps),
		samplesHandler:     NewSamplesHandler(deps),
		calibrationHandler: NewCalibrationHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("/status", MetricsMiddleware(s.statusHandler.HandleStatus, "status"))

	mux.HandleFunc("/sync", MetricsMiddleware(s.syncHandler.HandleSync, "sync"))
	mux.HandleFunc("/sync/reset", MetricsMiddleware(s.syncHandler.HandleReset, "sync_reset"))
	mux.HandleFunc("/sync/origin", MetricsMiddleware(s.syncHandler.HandleOrigin, "sync_origin"))
	mux.HandleFunc("/sync/origin/adopt", MetricsMiddleware(s.syncHandler.HandleAdoptOrigin, "sync_origin_adopt"))

	mux.HandleFunc("/corrections", MetricsMiddleware(s.syncHandler.HandleCorrections, "corrections"))
	mux.HandleFunc("/corrections/tap", MetricsMiddleware(s.syncHandler.HandleTapCorrection, "corrections_tap"))
	mux.HandleFunc("/corrections/drift", MetricsMiddleware(s.syncHandler.HandleDriftCorrection, "corrections_drift"))

	mux.HandleFunc("/samples", MetricsMiddleware(s.samplesHandler.HandlePostSample, "samples"))
	mux.HandleFunc("/events/audio", MetricsMiddleware(s.samplesHandler.HandlePostAudio, "events_audio"))

	mux.HandleFunc("/calibration", MetricsMiddleware(s.calibrationHandler.HandleGetCalibration, "calibration"))
	mux.HandleFunc("/calibration/start", MetricsMiddleware(s.calibrationHandler.HandleStart, "calibration_start"))
	mux.HandleFunc("/calibration/swing", MetricsMiddleware(s.calibrationHandler.HandleSwing, "calibration_swing"))
	mux.HandleFunc("/calibration/reset", MetricsMiddleware(s.calibrationHandler.HandleReset, "calibration_reset"))
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// parseDevice validates the device role named in a request body.
func parseDevice(s string) (model.DeviceID, error) {
	switch model.DeviceID(s) {
	case model.DeviceHandheld:
		return model.DeviceHandheld, nil
	case model.DeviceVision:
		return model.DeviceVision, nil
	default:
		return "", errors.New("device must be handheld or vision")
	}
}
