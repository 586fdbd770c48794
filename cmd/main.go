package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/strokelab/courtsync/internal/adapters/ble"
	"github.com/strokelab/courtsync/internal/adapters/http/api"
	"github.com/strokelab/courtsync/internal/adapters/peerlink"
	app "github.com/strokelab/courtsync/internal/app"
	"github.com/strokelab/courtsync/internal/config"
	"github.com/strokelab/courtsync/internal/domain/calib"
	"github.com/strokelab/courtsync/internal/domain/clocksync"
	"github.com/strokelab/courtsync/internal/domain/model"
	"github.com/strokelab/courtsync/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// errNoPeerLink is returned by exchanges when neither link is configured.
// The device can still answer the peer's exchanges through the responder.
var errNoPeerLink = errors.New("no peer link configured")

type unconfiguredLink struct{}

func (unconfiguredLink) Exchange(context.Context, clocksync.Request) (*clocksync.Reply, error) {
	return nil, errNoPeerLink
}

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env).
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	clock := clocksync.NewMonotonicClock()

	link, closeLink, err := dialLink(ctx, cfg, clock)
	if err != nil {
		log.Error(ctx, "failed to reach peer", logger.Error(err))
		return
	}
	defer closeLink()

	coordinator := clocksync.New(link,
		clocksync.WithClock(clock),
		clocksync.WithMaxRoundTrip(time.Duration(cfg.MaxRoundTripMS)*time.Millisecond),
		clocksync.WithMaxAttempts(cfg.MaxSyncAttempts),
		clocksync.WithRetryDelayRange(
			time.Duration(cfg.RetryDelayMinMS)*time.Millisecond,
			time.Duration(cfg.RetryDelayMaxMS)*time.Millisecond,
		),
		clocksync.WithAudioPeakThreshold(cfg.AudioPeakThreshold),
		clocksync.WithJerkThreshold(cfg.JerkThreshold),
	)

	engine := calib.New(
		calib.WithStaticTarget(cfg.StaticSampleTarget),
		calib.WithSwingTarget(cfg.SwingTrialTarget),
		calib.WithMaxStaticVariance(cfg.MaxStaticVariance),
		calib.WithSwingActivityThreshold(cfg.SwingActivityThreshold),
		calib.WithPCAMotionThreshold(cfg.PCAMotionThreshold),
		calib.WithExpectedGravity(cfg.ExpectedGravity),
	)

	svc := app.New(
		app.WithLogger(log),
		app.WithCoordinator(coordinator),
		app.WithEngine(engine),
		app.WithDevice(model.DeviceID(cfg.Device)),
		app.WithQueueSize(cfg.SampleQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
	)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// BLE sensor source feeds the ingestion path when configured.
	if cfg.BLEDeviceName != "" {
		central := ble.NewCentral(cfg.BLEDeviceName, ble.WithLogger(log.Named("ble")))
		central.OnSample(func(device model.DeviceID, sample model.MotionSample) {
			svc.Ingest(ctx, device, sample)
		})
		go func() {
			if err := central.Run(ctx); err != nil {
				log.Error(ctx, "BLE source failed", logger.Error(err))
			}
		}()
		defer func() { _ = central.Close() }()
	}

	// HTTP mux and routes. The exchange responder is mounted alongside the
	// API so the peer can synchronize against this device.
	mux := http.NewServeMux()
	mux.Handle("/sync/exchange", peerlink.NewResponder(clock))
	api.NewServer(svc).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("device", cfg.Device),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
}

// dialLink selects the exchange transport: a direct WebSocket link when the
// peer's URL is known, the MQTT broker otherwise. The vision unit answers
// broker exchanges instead of initiating them.
func dialLink(ctx context.Context, cfg *config.Config, clock clocksync.Clock) (clocksync.Exchanger, func(), error) {
	log := logger.Named("peerlink")

	switch {
	case cfg.PeerWSURL != "":
		link, err := peerlink.DialWS(ctx, cfg.PeerWSURL)
		if err != nil {
			return nil, nil, err
		}
		log.Info(ctx, "using WebSocket peer link", logger.String("url", cfg.PeerWSURL))
		return link, func() { _ = link.Close() }, nil

	case cfg.MQTTBroker != "" && cfg.Device == "vision":
		// Responder role: answer broker exchanges, never initiate.
		go func() {
			if err := peerlink.ServeMQTT(ctx, cfg.MQTTBroker, cfg.MQTTClientID+"-responder", clock); err != nil {
				log.Error(ctx, "MQTT responder failed", logger.Error(err))
			}
		}()
		log.Info(ctx, "answering sync exchanges via MQTT", logger.String("broker", cfg.MQTTBroker))
		return unconfiguredLink{}, func() {}, nil

	case cfg.MQTTBroker != "":
		link, err := peerlink.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientID)
		if err != nil {
			return nil, nil, err
		}
		log.Info(ctx, "using MQTT peer link", logger.String("broker", cfg.MQTTBroker))
		return link, func() { _ = link.Close() }, nil

	default:
		return unconfiguredLink{}, func() {}, nil
	}
}
