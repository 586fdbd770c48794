package ble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/strokelab/courtsync/internal/domain/model"
	"github.com/strokelab/courtsync/pkg/logger"
)

// GATT identifiers matching the sensor firmware.
var (
	serviceUUID    = bluetooth.NewUUID([16]byte{0xfb, 0x34, 0x9b, 0x5f, 0x80, 0x00, 0x00, 0x80, 0x00, 0x10, 0x00, 0x00, 0x51, 0xc0, 0x00, 0x00})
	sensorCharUUID = bluetooth.NewUUID([16]byte{0xfb, 0x34, 0x9b, 0x5f, 0x80, 0x00, 0x00, 0x80, 0x00, 0x10, 0x00, 0x00, 0x52, 0xc0, 0x00, 0x00})
)

// Sentinel kinds for central errors.
var (
	ErrAlreadyConnected = errors.New("sensor already connected")
	ErrServiceNotFound  = errors.New("sensor service not found")
	ErrCharNotFound     = errors.New("sensor characteristic not found")
)

// SampleHandler receives each decoded motion sample as it arrives.
type SampleHandler func(device model.DeviceID, sample model.MotionSample)

// Central scans for the handheld sensor unit by advertised name, connects,
// and streams its notifications to a sample handler.
type Central struct {
	adapter    *bluetooth.Adapter
	deviceName string
	log        logger.Logger

	mu        sync.Mutex
	device    *bluetooth.Device
	onSample  SampleHandler
	lastSeq   uint16
	seqSeen   bool
	connected bool
}

// Option applies a configuration option to the Central.
type Option func(*Central)

// WithLogger sets the logger used for connection lifecycle messages.
func WithLogger(log logger.Logger) Option {
	return func(c *Central) {
		if log != nil {
			c.log = log
		}
	}
}

// NewCentral creates a Central that will look for the sensor advertising
// deviceName.
func NewCentral(deviceName string, opts ...Option) *Central {
	c := &Central{
		adapter:    bluetooth.DefaultAdapter,
		deviceName: deviceName,
		log:        logger.Named("ble"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSample registers the handler for decoded samples.
func (c *Central) OnSample(fn SampleHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSample = fn
}

// Connected reports whether the sensor is currently streaming.
func (c *Central) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Run enables the adapter, scans until the named sensor appears, connects
// and subscribes to its motion characteristic. It returns once streaming is
// established; notifications are dispatched on the adapter's goroutine.
func (c *Central) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("enable adapter: %w", err)
	}

	c.log.Info(ctx, "scanning for sensor", logger.String("name", c.deviceName))

	var found bluetooth.ScanResult
	err := c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if result.LocalName() != c.deviceName {
			return
		}
		found = result
		_ = adapter.StopScan()
	})
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	c.log.Info(ctx, "sensor found, connecting",
		logger.String("name", c.deviceName),
		logger.String("address", found.Address.String()),
	)

	device, err := c.adapter.Connect(found.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %s: %w", found.Address.String(), err)
	}

	if err := c.subscribe(device); err != nil {
		_ = device.Disconnect()
		return err
	}

	c.mu.Lock()
	c.device = device
	c.connected = true
	c.seqSeen = false
	c.mu.Unlock()

	c.log.Info(ctx, "sensor streaming", logger.String("name", c.deviceName))
	return nil
}

func (c *Central) subscribe(device *bluetooth.Device) error {
	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		return fmt.Errorf("discover services: %w", err)
	}
	if len(services) == 0 {
		return ErrServiceNotFound
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{sensorCharUUID})
	if err != nil {
		return fmt.Errorf("discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return ErrCharNotFound
	}

	if err := chars[0].EnableNotifications(c.handleNotification); err != nil {
		return fmt.Errorf("enable notifications: %w", err)
	}
	return nil
}

// handleNotification decodes one payload and dispatches it. Sequence gaps
// are logged but the sample still flows; dedupe happens downstream.
func (c *Central) handleNotification(data []byte) {
	ctx := context.Background()
	packet, err := ParsePacket(data)
	if err != nil {
		c.log.Warn(ctx, "dropping malformed packet", logger.Error(err))
		return
	}

	c.mu.Lock()
	if c.seqSeen && packet.Sequence != c.lastSeq+1 && packet.Sequence != 0 {
		c.log.Debug(ctx, "sequence gap",
			logger.Int("expected", int(c.lastSeq)+1),
			logger.Int("got", int(packet.Sequence)),
		)
	}
	c.lastSeq = packet.Sequence
	c.seqSeen = true
	handler := c.onSample
	c.mu.Unlock()

	if handler != nil {
		handler(model.DeviceHandheld, packet.Sample())
	}
}

// Close disconnects from the sensor.
func (c *Central) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	if c.device != nil {
		return c.device.Disconnect()
	}
	return nil
}
