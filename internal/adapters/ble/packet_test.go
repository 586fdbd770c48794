package ble

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"
)

func buildPacket(ax, ay, az, gx, gy, gz int16, ts uint32, seq uint16, bat, flags uint8) []byte {
	data := make([]byte, PacketSize)
	binary.LittleEndian.PutUint16(data[0:2], uint16(ax))
	binary.LittleEndian.PutUint16(data[2:4], uint16(ay))
	binary.LittleEndian.PutUint16(data[4:6], uint16(az))
	binary.LittleEndian.PutUint16(data[6:8], uint16(gx))
	binary.LittleEndian.PutUint16(data[8:10], uint16(gy))
	binary.LittleEndian.PutUint16(data[10:12], uint16(gz))
	binary.LittleEndian.PutUint32(data[12:16], ts)
	binary.LittleEndian.PutUint16(data[16:18], seq)
	data[18] = bat
	data[19] = flags
	return data
}

func TestParsePacket(t *testing.T) {
	data := buildPacket(-980, 15, 250, 100, -50, 3000, 123456, 42, 87, FlagCharging)

	p, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := p.Acceleration()
	if math.Abs(a.X-(-9.80)) > 1e-9 || math.Abs(a.Y-0.15) > 1e-9 || math.Abs(a.Z-2.50) > 1e-9 {
		t.Errorf("unexpected acceleration: %+v", a)
	}
	g := p.AngularVelocity()
	if math.Abs(g.X-10.0) > 1e-9 || math.Abs(g.Y-(-5.0)) > 1e-9 || math.Abs(g.Z-300.0) > 1e-9 {
		t.Errorf("unexpected angular velocity: %+v", g)
	}
	if p.Timestamp != 123456 || p.Sequence != 42 || p.Battery != 87 {
		t.Errorf("unexpected metadata: ts=%d seq=%d bat=%d", p.Timestamp, p.Sequence, p.Battery)
	}
	if !p.IsCharging() {
		t.Error("expected charging flag set")
	}
}

func TestParsePacket_WrongSize(t *testing.T) {
	for _, n := range []int{0, 19, 21} {
		if _, err := ParsePacket(make([]byte, n)); !errors.Is(err, ErrInvalidPacketSize) {
			t.Errorf("size %d: expected ErrInvalidPacketSize, got %v", n, err)
		}
	}
}

func TestPacketSample(t *testing.T) {
	data := buildPacket(0, 0, -980, 0, 0, 0, 5000, 7, 100, 0)

	p, err := ParsePacket(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := p.Sample()

	if s.Timestamp != 5*time.Second {
		t.Errorf("expected 5s timestamp, got %v", s.Timestamp)
	}
	if s.Seq != 7 {
		t.Errorf("expected seq 7, got %d", s.Seq)
	}
	if math.Abs(s.Acceleration.Z-(-9.80)) > 1e-9 {
		t.Errorf("unexpected acceleration: %+v", s.Acceleration)
	}
	if s.Wallclock.IsZero() {
		t.Error("expected wallclock to be stamped")
	}
}
