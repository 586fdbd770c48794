package service

import "errors"

// ErrNoCoordinator is returned by Start when no coordinator was supplied.
var ErrNoCoordinator = errors.New("service requires a clock sync coordinator")
