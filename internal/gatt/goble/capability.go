// Package goble implements the gatt.Capability boundary over the go-ble
// host stack. The CLI injects it into the session manager; tests use the
// gatttest fake instead.
package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/go-ble/ble/examples/lib/dev"
	"github.com/sirupsen/logrus"

	"github.com/vitalsync/wearsync/internal/gatt"
)

// DeviceFactory creates ble.Device instances (can be overridden in tests).
var DeviceFactory = func() (ble.Device, error) {
	d, err := dev.DefaultDevice()
	if err != nil {
		if strings.Contains(err.Error(), "central manager has invalid state") {
			return nil, fmt.Errorf("Bluetooth is not ready - %w", err)
		}
		return nil, err
	}
	return d, nil
}

// Capability is the production host Bluetooth surface.
type Capability struct {
	scanTimeout    time.Duration
	connectTimeout time.Duration
	logger         *logrus.Logger

	initOnce sync.Once
	initErr  error
}

// New creates a go-ble-backed capability. Scanning for a device is bounded
// by scanTimeout; each transport dial by connectTimeout.
func New(scanTimeout, connectTimeout time.Duration, logger *logrus.Logger) *Capability {
	if logger == nil {
		logger = logrus.New()
	}
	return &Capability{
		scanTimeout:    scanTimeout,
		connectTimeout: connectTimeout,
		logger:         logger,
	}
}

func (c *Capability) ensureHost() error {
	c.initOnce.Do(func() {
		dev, err := DeviceFactory()
		if err != nil {
			c.initErr = err
			return
		}
		ble.SetDefaultDevice(dev)
	})
	return c.initErr
}

// RequestDevice scans for the first advertisement matching the filter. The
// scan doubles as the device chooser: cancelling the context (Ctrl-C)
// surfaces ErrUserCancelled; a host without Bluetooth support surfaces
// ErrCapabilityUnavailable.
func (c *Capability) RequestDevice(ctx context.Context, filter gatt.Filter) (gatt.Device, error) {
	if err := c.ensureHost(); err != nil {
		return nil, gatt.Failure(gatt.CapabilityUnavailable, err)
	}

	scanCtx, cancel := context.WithTimeout(ctx, c.scanTimeout)
	defer cancel()

	var (
		mu    sync.Mutex
		found *bleDevice
	)

	c.logger.WithField("name_prefix", filter.NamePrefix).Info("Scanning for device...")

	handler := func(adv ble.Advertisement) {
		mu.Lock()
		defer mu.Unlock()
		if found != nil {
			return
		}
		found = &bleDevice{
			addr:       adv.Addr().String(),
			name:       adv.LocalName(),
			capability: c,
		}
		c.logger.WithFields(logrus.Fields{
			"device": found.name,
			"addr":   found.addr,
			"rssi":   adv.RSSI(),
		}).Info("Device matched filter")
		cancel()
	}

	advFilter := func(adv ble.Advertisement) bool {
		if filter.NamePrefix == "" {
			return adv.LocalName() != ""
		}
		return strings.HasPrefix(strings.ToLower(adv.LocalName()), strings.ToLower(filter.NamePrefix))
	}

	err := ble.Scan(scanCtx, false, handler, advFilter)

	mu.Lock()
	defer mu.Unlock()
	if found != nil {
		return found, nil
	}
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return nil, gatt.Failure(gatt.UserCancelled, nil)
	}
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return nil, fmt.Errorf("no matching device found within %s", c.scanTimeout)
}

// DiscoveredDevice is one advertisement seen during Discover.
type DiscoveredDevice struct {
	Name string
	Addr string
	RSSI int
}

// Discover scans for the given duration and invokes handler for every
// advertisement seen, without choosing or connecting to any device.
func (c *Capability) Discover(ctx context.Context, duration time.Duration, handler func(DiscoveredDevice)) error {
	if err := c.ensureHost(); err != nil {
		return gatt.Failure(gatt.CapabilityUnavailable, err)
	}

	scanCtx := ctx
	if duration > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	err := ble.Scan(scanCtx, false, func(adv ble.Advertisement) {
		handler(DiscoveredDevice{
			Name: adv.LocalName(),
			Addr: adv.Addr().String(),
			RSSI: adv.RSSI(),
		})
	}, nil)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

// bleDevice is a chosen peripheral.
type bleDevice struct {
	addr       string
	name       string
	capability *Capability
}

func (d *bleDevice) ID() string   { return d.addr }
func (d *bleDevice) Name() string { return d.name }

// Connect dials the peripheral and discovers its full GATT profile.
func (d *bleDevice) Connect(ctx context.Context) (gatt.Server, error) {
	dialCtx, cancel := context.WithTimeout(ctx, d.capability.connectTimeout)
	defer cancel()

	client, err := ble.Dial(dialCtx, ble.NewAddr(d.addr))
	if err != nil {
		return nil, gatt.Failure(gatt.NoTransportServer, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		client.CancelConnection()
		return nil, gatt.Failure(gatt.NoTransportServer, fmt.Errorf("discover profile: %w", err))
	}

	d.capability.logger.WithFields(logrus.Fields{
		"device":   d.name,
		"services": len(profile.Services),
	}).Info("Connected, profile discovered")

	return &bleServer{client: client, profile: profile}, nil
}

// bleServer is an established GATT connection.
type bleServer struct {
	client  ble.Client
	profile *ble.Profile
}

func (s *bleServer) Service(uuid string) (gatt.Service, error) {
	want := gatt.NormalizeUUID(uuid)
	for _, svc := range s.profile.Services {
		if gatt.NormalizeUUID(svc.UUID.String()) == want {
			return &bleService{server: s, service: svc}, nil
		}
	}
	return nil, gatt.Failure(gatt.ServiceUnavailable, fmt.Errorf("service %q not found", uuid))
}

func (s *bleServer) Disconnect() error {
	return s.client.CancelConnection()
}

type bleService struct {
	server  *bleServer
	service *ble.Service
}

func (s *bleService) UUID() string { return s.service.UUID.String() }

func (s *bleService) Characteristic(uuid string) (gatt.Characteristic, error) {
	want := gatt.NormalizeUUID(uuid)
	for _, char := range s.service.Characteristics {
		if gatt.NormalizeUUID(char.UUID.String()) == want {
			return &bleCharacteristic{server: s.server, char: char}, nil
		}
	}
	return nil, gatt.Failure(gatt.ServiceUnavailable,
		fmt.Errorf("characteristic %q not found in service %q", uuid, s.UUID()))
}

type bleCharacteristic struct {
	server *bleServer
	char   *ble.Characteristic
}

func (c *bleCharacteristic) UUID() string { return c.char.UUID.String() }

func (c *bleCharacteristic) Read(_ context.Context) ([]byte, error) {
	data, err := c.server.client.ReadCharacteristic(c.char)
	if err != nil {
		return nil, fmt.Errorf("read characteristic %s: %w", c.UUID(), err)
	}
	return data, nil
}

func (c *bleCharacteristic) Subscribe(handler func([]byte)) (func(), error) {
	if err := c.server.client.Subscribe(c.char, false, func(data []byte) {
		handler(data)
	}); err != nil {
		return nil, gatt.Failure(gatt.ServiceUnavailable,
			fmt.Errorf("subscribe %s: %w", c.UUID(), err))
	}
	stop := func() {
		_ = c.server.client.Unsubscribe(c.char, false)
	}
	return stop, nil
}
