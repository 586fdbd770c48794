package simulator

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strokelab/courtsync/pkg/logger"
)

// Poll cadence for watching the calibration phase settle.
const (
	phasePollInterval = 100 * time.Millisecond
	phasePollBudget   = 15 * time.Second
)

// Run drives one complete simulated session: health check, clock sync,
// a full calibration cycle, and a final status verification.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	client := newHTTPClient(config.Timeout)

	logger.Get().Info(ctx, "starting simulated session",
		logger.String("baseURL", config.BaseURL),
		logger.Int("staticSamples", config.StaticCount),
		logger.Int("swingTrials", config.SwingTrials),
		logger.Int("workers", config.Workers))

	if err := checkServiceHealth(ctx, client, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	if err := runSync(ctx, client, config, stats); err != nil {
		logger.Get().Warn(ctx, "clock sync did not converge, continuing without it", logger.Error(err))
	}

	if err := runCalibration(ctx, client, config, stats); err != nil {
		return fmt.Errorf("calibration run failed: %w", err)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if stats.FinalPhase != "completed" {
		return fmt.Errorf("calibration finished in phase %q", stats.FinalPhase)
	}
	logger.Get().Info(ctx, "simulated session completed successfully")
	return nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *HTTPClient, config *Config) error {
	resp, err := client.Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// runSync triggers a synchronization run and records the resulting offset.
// A standalone instance has no peer link, so failure here is tolerated.
func runSync(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) error {
	var resp syncResponse
	if _, err := client.postJSON(ctx, config.BaseURL+"/sync", nil, &resp, http.StatusOK); err != nil {
		return err
	}

	stats.Synchronized = resp.Sync.IsSynchronized
	stats.SyncOffsetUS = resp.EffectiveOffsetUS
	logger.Get().Info(ctx, "clock sync converged",
		logger.Int("attempts", resp.Sync.AttemptCount),
		logger.Any("offsetUS", resp.EffectiveOffsetUS))
	return nil
}

// runCalibration starts a cycle, streams the still samples, submits the
// swing trials, and waits for the engine to settle in a terminal phase.
func runCalibration(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) error {
	var status calibrationStatus
	if _, err := client.postJSON(ctx, config.BaseURL+"/calibration/start", nil, &status, http.StatusAccepted); err != nil {
		return fmt.Errorf("failed to start calibration: %w", err)
	}
	logger.Get().Info(ctx, "calibration started", logger.String("phase", status.Phase))

	if err := streamStillSamples(ctx, client, config, stats); err != nil {
		return err
	}
	if err := waitForPhase(ctx, client, config, "collecting-swings"); err != nil {
		return err
	}

	if err := submitSwingTrials(ctx, client, config, stats); err != nil {
		return err
	}
	return verifyResult(ctx, client, config, stats)
}

// streamStillSamples pushes the static-phase readings through the sample
// intake with a worker pool. The readings are interchangeable stills, so
// submission order across workers does not matter.
func streamStillSamples(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) error {
	samples := generateStillStream(config.StaticCount, 0)
	stats.SamplesGenerated = len(samples)
	logger.Get().Info(ctx, "streaming still samples", logger.Int("count", len(samples)))

	var accepted, dropped, failed int64
	sampleChan := make(chan motionSample, config.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sample := range sampleChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				var ack sampleAck
				code, err := client.postJSON(ctx, config.BaseURL+"/samples", sample, &ack,
					http.StatusAccepted, http.StatusTooManyRequests)
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
				case code == http.StatusTooManyRequests:
					atomic.AddInt64(&dropped, 1)
				default:
					atomic.AddInt64(&accepted, 1)
				}
			}
		}()
	}

	for _, sample := range samples {
		select {
		case <-ctx.Done():
			close(sampleChan)
			wg.Wait()
			return fmt.Errorf("context cancelled during sample streaming: %w", ctx.Err())
		case sampleChan <- sample:
		}
	}
	close(sampleChan)
	wg.Wait()

	stats.SamplesAccepted = int(accepted)
	stats.SamplesDropped = int(dropped)
	stats.SamplesFailed = int(failed)
	logger.Get().Info(ctx, "still stream submitted",
		logger.Int("accepted", stats.SamplesAccepted),
		logger.Int("dropped", stats.SamplesDropped),
		logger.Int("failed", stats.SamplesFailed))
	return nil
}

// submitSwingTrials posts the practice swings one at a time. Trials are
// ordered bursts, so no worker pool here.
func submitSwingTrials(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) error {
	start := time.Duration(config.StaticCount) * samplePeriod
	for i := 0; i < config.SwingTrials; i++ {
		trial := generateSwingTrial(config.SwingLength, start+time.Duration(i)*time.Second)

		var ack swingAck
		if _, err := client.postJSON(ctx, config.BaseURL+"/calibration/swing", trial, &ack, http.StatusOK); err != nil {
			return fmt.Errorf("failed to submit swing trial %d: %w", i, err)
		}
		stats.TrialsSubmitted++
		if ack.Accepted {
			stats.TrialsAccepted++
		}
		if config.Verbose {
			logger.Get().Info(ctx, "swing trial submitted",
				logger.Int("trial", i),
				logger.Any("accepted", ack.Accepted),
				logger.String("phase", ack.Calibration.Phase))
		}
	}
	return nil
}

// waitForPhase polls the calibration state until the wanted phase or a
// terminal phase is reached.
func waitForPhase(ctx context.Context, client *HTTPClient, config *Config, want string) error {
	deadline := time.Now().Add(phasePollBudget)
	for time.Now().Before(deadline) {
		var status statusResponse
		if err := client.getJSON(ctx, config.BaseURL+"/status", &status); err != nil {
			return err
		}
		switch status.Calibration.Phase {
		case want:
			return nil
		case "failed":
			return fmt.Errorf("calibration failed while waiting for %q: %s", want, status.Calibration.FailureReason)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(phasePollInterval):
		}
	}
	return fmt.Errorf("calibration never reached phase %q", want)
}

// verifyResult reads the terminal state and records the quality metrics.
func verifyResult(ctx context.Context, client *HTTPClient, config *Config, stats *Stats) error {
	var status statusResponse
	if err := client.getJSON(ctx, config.BaseURL+"/status", &status); err != nil {
		return err
	}

	stats.FinalPhase = status.Calibration.Phase
	if status.Calibration.Result != nil {
		stats.Quality = status.Calibration.Result.Quality
		logger.Get().Info(ctx, "calibration result",
			logger.Float64("quality", status.Calibration.Result.Quality),
			logger.Float64("gravityErrPct", status.Calibration.Result.GravityAlignmentErrorPct),
			logger.Float64("consistency", status.Calibration.Result.SwingPlaneConsistency))
	} else if status.Calibration.FailureReason != "" {
		logger.Get().Warn(ctx, "calibration did not complete",
			logger.String("phase", status.Calibration.Phase),
			logger.String("reason", status.Calibration.FailureReason))
	}
	return nil
}

// displayFinalStats prints the final run statistics.
func displayFinalStats(stats *Stats) {
	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("samplesGenerated", stats.SamplesGenerated),
		logger.Int("samplesAccepted", stats.SamplesAccepted),
		logger.Int("samplesDropped", stats.SamplesDropped),
		logger.Int("samplesFailed", stats.SamplesFailed),
		logger.Int("trialsSubmitted", stats.TrialsSubmitted),
		logger.Int("trialsAccepted", stats.TrialsAccepted),
		logger.Any("synchronized", stats.Synchronized),
		logger.String("finalPhase", stats.FinalPhase),
		logger.Float64("quality", stats.Quality),
		logger.String("duration", stats.Duration.String()))
}
