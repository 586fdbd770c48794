// Package peerlink carries the clock synchronization exchange between the
// two devices. Two transports are provided: a direct WebSocket link and a
// broker-based MQTT link for rigs where the devices cannot reach each other
// directly. Both implement clocksync.Exchanger on the initiating side and
// offer a responder for the peer side.
package peerlink

import (
	"time"

	"github.com/strokelab/courtsync/internal/domain/clocksync"
)

// Wire shapes for the exchange. Timestamps travel as integer microseconds
// so both ends agree on resolution regardless of their native clock types.
type syncRequest struct {
	ExchangeID string `json:"exchange_id"`
	T1Micros   int64  `json:"t1_us"`
}

type syncReply struct {
	ExchangeID string `json:"exchange_id"`
	T1Micros   int64  `json:"t1_us"`
	T2Micros   int64  `json:"t2_us"`
	T3Micros   int64  `json:"t3_us"`
}

func encodeRequest(req clocksync.Request) syncRequest {
	return syncRequest{
		ExchangeID: req.ExchangeID,
		T1Micros:   req.T1.Microseconds(),
	}
}

func decodeReply(r syncReply) *clocksync.Reply {
	return &clocksync.Reply{
		ExchangeID: r.ExchangeID,
		T1:         time.Duration(r.T1Micros) * time.Microsecond,
		T2:         time.Duration(r.T2Micros) * time.Microsecond,
		T3:         time.Duration(r.T3Micros) * time.Microsecond,
	}
}
