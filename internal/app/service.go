// Package service provides the core coordination service that implements
// the dependencies required by the HTTP API. It owns the clock sync
// coordinator, the calibration engine and the sample ingestion path between
// them.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	samplequeue "github.com/strokelab/courtsync/internal/adapters/mq/queue"
	"github.com/strokelab/courtsync/internal/domain/calib"
	"github.com/strokelab/courtsync/internal/domain/clocksync"
	"github.com/strokelab/courtsync/internal/domain/dedupe"
	"github.com/strokelab/courtsync/internal/domain/model"
	"github.com/strokelab/courtsync/pkg/logger"
	"github.com/strokelab/courtsync/pkg/metrics"
)

// Service wires the coordinator and the calibration engine behind one
// ingestion path. A single drain goroutine feeds queued samples into the
// engine so arrival order is preserved end to end.
type Service struct {
	mu sync.RWMutex

	coordinator *clocksync.Coordinator
	engine      *calib.Engine
	deduper     dedupe.Deduper
	queue       samplequeue.Queue

	device     model.DeviceID
	queueSize  int
	dedupeSize int

	started bool
	cancel  context.CancelFunc
	drained chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCoordinator sets the clock sync coordinator. Required before Start.
func WithCoordinator(c *clocksync.Coordinator) Option {
	return func(s *Service) {
		s.coordinator = c
	}
}

// WithEngine sets the calibration engine. A default engine is created on
// Start when none is supplied.
func WithEngine(e *calib.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithDevice sets which device role this process plays.
func WithDevice(d model.DeviceID) Option {
	return func(s *Service) {
		s.device = d
	}
}

// WithQueueSize sets the capacity of the sample queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		device:     model.DeviceHandheld,
		queueSize:  8192,
		dedupeSize: 4096,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the components and launches the drain worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.coordinator == nil {
		return ErrNoCoordinator
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.engine == nil {
		s.engine = calib.New()
	}

	s.deduper = dedupe.NewRingDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = samplequeue.NewInMemoryQueue(samplequeue.WithCapacity(s.queueSize))
	s.engine.Observe(s.onTransition)

	drainCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.drained = make(chan struct{})
	go s.drain(drainCtx)

	s.started = true
	s.logger.Info(ctx, "coordination service started",
		logger.String("device", string(s.device)),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop shuts the ingestion path down and waits for the drain worker.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	queue := s.queue
	cancel := s.cancel
	drained := s.drained
	s.mu.Unlock()

	_ = queue.Close()
	<-drained
	cancel()
	s.logger.Info(context.Background(), "coordination service stopped")
}

// drain is the single consumer of the sample queue. One goroutine keeps the
// engine's view of the stream in arrival order.
func (s *Service) drain(ctx context.Context) {
	defer close(s.drained)
	for sample := range s.queue.Dequeue(ctx) {
		s.engine.AddStaticSample(sample)
	}
}

// Ingest admits one motion sample into the pipeline: duplicate packets are
// dropped, the sample feeds the coordinator's impulse detector, then queues
// for the calibration engine. Returns false when the sample was dropped.
func (s *Service) Ingest(ctx context.Context, device model.DeviceID, sample model.MotionSample) bool {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return false
	}

	id := fmt.Sprintf("%s:%d", device, sample.Seq)
	if s.deduper.SeenAndRecord(ctx, id) {
		metrics.RecordSampleDropped("duplicate")
		return false
	}

	metrics.RecordSampleIngested()
	s.coordinator.ObserveMotion(device, sample)
	return s.queue.Enqueue(ctx, sample)
}

// Synchronize starts (or joins) a clock synchronization run and reports the
// outcome on the returned channel. Sync metrics are recorded as a side
// effect.
func (s *Service) Synchronize(ctx context.Context) <-chan error {
	metrics.RecordSyncAttempt()
	out := make(chan error, 1)
	inner := s.coordinator.Synchronize(ctx)
	go func() {
		defer close(out)
		err := <-inner
		if err == nil {
			state := s.coordinator.State()
			metrics.RecordSyncSuccess()
			metrics.ObserveRoundTrip(float64(state.RoundTripQuality.Microseconds()) / 1000.0)
			metrics.UpdateClockOffset(float64(state.TimeOffset.Microseconds()) / 1000.0)
			s.logger.Info(ctx, "clock synchronized",
				logger.Duration("offset", state.TimeOffset),
				logger.Duration("roundTrip", state.RoundTripQuality),
				logger.Int("attempts", state.AttemptCount),
			)
		} else {
			metrics.RecordSyncFailure()
			s.logger.Warn(ctx, "clock synchronization failed", logger.Error(err))
		}
		out <- err
	}()
	return out
}

// SyncState returns a snapshot of the coordinator's state.
func (s *Service) SyncState() model.SyncState {
	return s.coordinator.State()
}

// EffectiveOffset returns the current offset with corrections folded in.
func (s *Service) EffectiveOffset() time.Duration {
	return s.coordinator.EffectiveOffset()
}

// ResetSync clears all synchronization state.
func (s *Service) ResetSync() {
	s.coordinator.Reset()
	metrics.UpdateClockOffset(0)
}

// EstablishOrigin creates this device's session time origin.
func (s *Service) EstablishOrigin() (model.TimeOrigin, error) {
	return s.coordinator.EstablishOrigin(s.device)
}

// AdoptOrigin records the peer's time origin.
func (s *Service) AdoptOrigin(origin model.TimeOrigin) error {
	return s.coordinator.AdoptOrigin(origin)
}

// RecordAudioLevel feeds one audio amplitude reading into the impulse
// detector.
func (s *Service) RecordAudioLevel(device model.DeviceID, level float64, at time.Duration) bool {
	return s.coordinator.RecordAudioLevel(device, level, at)
}

// ApplyTapCorrection derives a correction from the latest correlated
// impulse pair.
func (s *Service) ApplyTapCorrection(ctx context.Context) (model.Correction, error) {
	corr, err := s.coordinator.ApplyTapCorrection()
	if err != nil {
		return model.Correction{}, err
	}
	metrics.RecordCorrection(string(corr.Method))
	metrics.UpdateClockOffset(float64(s.coordinator.EffectiveOffset().Microseconds()) / 1000.0)
	s.logger.Info(ctx, "tap correction applied",
		logger.Duration("delta", corr.Delta),
		logger.Float64("confidence", corr.Confidence),
	)
	return corr, nil
}

// ApplyDriftCorrection fits the drift history and applies the resulting
// correction.
func (s *Service) ApplyDriftCorrection(ctx context.Context, points []clocksync.DriftPoint) (model.Correction, error) {
	corr, err := s.coordinator.ApplyDriftCorrection(points)
	if err != nil {
		return model.Correction{}, err
	}
	metrics.RecordCorrection(string(corr.Method))
	metrics.UpdateClockOffset(float64(s.coordinator.EffectiveOffset().Microseconds()) / 1000.0)
	s.logger.Info(ctx, "drift correction applied", logger.Duration("delta", corr.Delta))
	return corr, nil
}

// Corrections returns the correction history in application order.
func (s *Service) Corrections() []model.Correction {
	return s.coordinator.Corrections()
}

// StartCalibration begins a calibration cycle.
func (s *Service) StartCalibration() error {
	return s.engine.Start()
}

// SubmitSwingTrial submits one swing trial to the engine and reports
// acceptance.
func (s *Service) SubmitSwingTrial(samples []model.MotionSample) bool {
	accepted := s.engine.AddSwingTrial(samples)
	if accepted {
		metrics.RecordTrialAccepted()
	} else {
		metrics.RecordTrialRejected()
	}
	return accepted
}

// ResetCalibration returns the engine to idle.
func (s *Service) ResetCalibration() {
	s.engine.Reset()
}

// CalibrationState returns a snapshot of the engine's state.
func (s *Service) CalibrationState() model.CalibrationStatus {
	status := model.CalibrationStatus{
		Phase:         s.engine.Phase().String(),
		Progress:      s.engine.Progress(),
		FailureReason: s.engine.FailureReason(),
	}
	if result, ok := s.engine.Result(); ok {
		status.Result = &result
	}
	return status
}

// QueueLen returns the number of samples waiting for the drain worker.
func (s *Service) QueueLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.queue == nil {
		return 0
	}
	return s.queue.Len()
}

// onTransition mirrors engine phase changes into metrics and logs.
func (s *Service) onTransition(t calib.Transition) {
	ctx := context.Background()
	metrics.UpdateCalibrationPhase(int(t.To))

	switch t.To {
	case calib.PhaseCompleted:
		metrics.RecordCalibrationRun("completed")
		if result, ok := s.engine.Result(); ok {
			metrics.UpdateCalibrationQuality(result.Quality)
			s.logger.Info(ctx, "calibration completed",
				logger.Float64("quality", result.Quality),
				logger.Float64("gravityErrPct", result.GravityAlignmentErrorPct),
				logger.Float64("consistency", result.SwingPlaneConsistency),
				logger.Bool("usable", result.Usable()),
			)
		}
	case calib.PhaseFailed:
		metrics.RecordCalibrationRun("failed")
		s.logger.Warn(ctx, "calibration failed", logger.String("reason", t.Reason))
	default:
		s.logger.Info(ctx, "calibration phase changed",
			logger.String("from", t.From.String()),
			logger.String("to", t.To.String()),
		)
	}
}
