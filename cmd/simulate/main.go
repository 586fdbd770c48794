package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/strokelab/courtsync/internal/simulator"
)

// Default configuration constants.
const (
	defaultStaticCount = 300
	defaultSwingTrials = 5
	defaultSwingLength = 30
	defaultWorkers     = 4
	defaultTimeout     = 30 * time.Second
	defaultRunTimeout  = 5 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		staticCount = flag.Int("static", defaultStaticCount, "Number of still samples to stream")
		swingTrials = flag.Int("swings", defaultSwingTrials, "Number of swing trials to submit")
		swingLength = flag.Int("swing-len", defaultSwingLength, "Samples per swing trial")
		workers     = flag.Int("workers", defaultWorkers, "Number of concurrent submission workers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		logFile     = flag.String("log", "", "Log file for run output (default: simulate_log_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return
	}

	if err := simulator.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &simulator.Config{
		BaseURL:     *baseURL,
		StaticCount: *staticCount,
		SwingTrials: *swingTrials,
		SwingLength: *swingLength,
		Workers:     *workers,
		Timeout:     *timeout,
		LogFile:     *logFile,
		Verbose:     *verbose,
	}

	if err := simulator.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}
