// Package ble streams motion samples from the handheld sensor unit over
// Bluetooth Low Energy. The sensor notifies 20-byte binary packets which are
// decoded here into domain samples.
package ble

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/strokelab/courtsync/internal/domain/model"
	"github.com/strokelab/courtsync/internal/domain/spatial"
)

// PacketSize is the fixed size of one sensor packet in bytes.
const PacketSize = 20

// Raw sensor scaling. Accelerometer values travel as int16 hundredths of
// m/s^2, gyroscope values as int16 tenths of rad/s.
const (
	accelScale = 100.0
	gyroScale  = 10.0
)

// Status flag bits.
const (
	FlagCharging   uint8 = 1 << 0
	FlagLowBattery uint8 = 1 << 1
)

// ErrInvalidPacketSize is returned when the payload is not 20 bytes.
var ErrInvalidPacketSize = errors.New("invalid packet size: expected 20 bytes")

// SensorPacket is the decoded form of one notification payload. All
// multi-byte fields are little-endian on the wire.
type SensorPacket struct {
	AccX      int16
	AccY      int16
	AccZ      int16
	GyroX     int16
	GyroY     int16
	GyroZ     int16
	Timestamp uint32 // milliseconds since sensor boot
	Sequence  uint16
	Battery   uint8 // percentage
	Flags     uint8
}

// ParsePacket decodes a 20-byte payload.
func ParsePacket(data []byte) (*SensorPacket, error) {
	if len(data) != PacketSize {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidPacketSize, len(data))
	}

	return &SensorPacket{
		AccX:      int16(binary.LittleEndian.Uint16(data[0:2])),
		AccY:      int16(binary.LittleEndian.Uint16(data[2:4])),
		AccZ:      int16(binary.LittleEndian.Uint16(data[4:6])),
		GyroX:     int16(binary.LittleEndian.Uint16(data[6:8])),
		GyroY:     int16(binary.LittleEndian.Uint16(data[8:10])),
		GyroZ:     int16(binary.LittleEndian.Uint16(data[10:12])),
		Timestamp: binary.LittleEndian.Uint32(data[12:16]),
		Sequence:  binary.LittleEndian.Uint16(data[16:18]),
		Battery:   data[18],
		Flags:     data[19],
	}, nil
}

// Acceleration returns the accelerometer reading in m/s^2.
func (p *SensorPacket) Acceleration() spatial.Vec3 {
	return spatial.Vec3{
		X: float64(p.AccX) / accelScale,
		Y: float64(p.AccY) / accelScale,
		Z: float64(p.AccZ) / accelScale,
	}
}

// AngularVelocity returns the gyroscope reading in rad/s.
func (p *SensorPacket) AngularVelocity() spatial.Vec3 {
	return spatial.Vec3{
		X: float64(p.GyroX) / gyroScale,
		Y: float64(p.GyroY) / gyroScale,
		Z: float64(p.GyroZ) / gyroScale,
	}
}

// IsCharging reports whether the sensor is on its charger.
func (p *SensorPacket) IsCharging() bool {
	return p.Flags&FlagCharging != 0
}

// Sample converts the packet into a domain motion sample. The sensor
// timestamp is carried as a monotonic duration since sensor boot; the
// wallclock is stamped at decode time.
func (p *SensorPacket) Sample() model.MotionSample {
	return model.MotionSample{
		Timestamp:       time.Duration(p.Timestamp) * time.Millisecond,
		Wallclock:       time.Now(),
		Seq:             p.Sequence,
		Acceleration:    p.Acceleration(),
		AngularVelocity: p.AngularVelocity(),
	}
}

// String renders the packet for debug logs.
func (p *SensorPacket) String() string {
	a := p.Acceleration()
	g := p.AngularVelocity()
	return fmt.Sprintf(
		"accel(%.2f, %.2f, %.2f) m/s2 | gyro(%.1f, %.1f, %.1f) rad/s | ts=%dms seq=%d bat=%d%% flags=0x%02x",
		a.X, a.Y, a.Z, g.X, g.Y, g.Z, p.Timestamp, p.Sequence, p.Battery, p.Flags,
	)
}
