package clocksync

import "errors"

// Sentinel kinds for coordinator errors. Callers match with errors.Is.
var (
	ErrNotSynchronized    = errors.New("not yet synchronized")
	ErrRetriesExhausted   = errors.New("sync retries exhausted")
	ErrReset              = errors.New("coordinator reset")
	ErrInsufficientEvents = errors.New("insufficient correlated events")
	ErrInsufficientData   = errors.New("insufficient drift data")
	ErrOriginAlreadySet   = errors.New("time origin already set")
	ErrNoOrigin           = errors.New("no time origin for device")
)
