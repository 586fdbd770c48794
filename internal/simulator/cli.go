package simulator

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/strokelab/courtsync/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "simulate_log_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the session simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Courtsync Session Simulator
===========================

Drives a running courtsync instance through a complete session: clock
sync, the static calibration phase, and a set of practice swings.

Usage:
  go run cmd/simulate/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -static int
        Number of still samples to stream (default 300)
  -swings int
        Number of swing trials to submit (default 5)
  -swing-len int
        Samples per swing trial (default 30)
  -workers int
        Number of concurrent submission workers (default 4)
  -timeout duration
        HTTP request timeout (default 30s)
  -log string
        Log file for run output (default: simulate_log_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Simulate against a local instance with defaults
  go run cmd/simulate/main.go

  # A longer static phase against a remote instance
  go run cmd/simulate/main.go -static 600 -url http://192.168.1.20:9080

  # Verbose per-trial output
  go run cmd/simulate/main.go -verbose -swings 8
`)
}
