// Package gatttest provides a scriptable in-memory peripheral implementing
// the gatt capability interfaces, for tests that exercise session
// negotiation and streaming without a live BLE stack.
package gatttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/vitalsync/wearsync/internal/gatt"
)

// Capability is a fake host Bluetooth surface handing out one scripted
// peripheral. Set Err to simulate chooser failures (gatt.ErrUserCancelled,
// gatt.ErrCapabilityUnavailable).
type Capability struct {
	Peripheral *Peripheral
	Err        error
}

// RequestDevice implements gatt.Capability.
func (c *Capability) RequestDevice(_ context.Context, _ gatt.Filter) (gatt.Device, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Peripheral == nil {
		return nil, gatt.ErrUserCancelled
	}
	return c.Peripheral, nil
}

// Peripheral is a scriptable fake device. Build it with the With/Fail
// methods, then drive notifications with Emit.
type Peripheral struct {
	id   string
	name string

	mu            sync.Mutex
	services      map[string]*fakeService
	connectErrs   []error
	connectCalls  int
	disconnects   int
	subscriptions map[string]func([]byte)
}

// NewPeripheral creates a fake device with no services.
func NewPeripheral(id, name string) *Peripheral {
	return &Peripheral{
		id:            id,
		name:          name,
		services:      make(map[string]*fakeService),
		subscriptions: make(map[string]func([]byte)),
	}
}

type fakeService struct {
	uuid  string
	chars map[string]*fakeCharacteristic
}

type fakeCharacteristic struct {
	uuid          string
	value         []byte
	readErr       error
	subscribeErr  error
	notifiable    bool
	peripheral    *Peripheral
	serviceUUID   string
}

func key(service, char string) string {
	return gatt.NormalizeUUID(service) + "/" + gatt.NormalizeUUID(char)
}

func (p *Peripheral) service(uuid string) *fakeService {
	norm := gatt.NormalizeUUID(uuid)
	svc, ok := p.services[norm]
	if !ok {
		svc = &fakeService{uuid: uuid, chars: make(map[string]*fakeCharacteristic)}
		p.services[norm] = svc
	}
	return svc
}

// WithReadCharacteristic adds a characteristic whose one-shot read returns
// value.
func (p *Peripheral) WithReadCharacteristic(service, char string, value []byte) *Peripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.service(service).chars[gatt.NormalizeUUID(char)] = &fakeCharacteristic{
		uuid: char, value: value, peripheral: p, serviceUUID: service,
	}
	return p
}

// WithNotifyCharacteristic adds a characteristic that accepts subscriptions.
func (p *Peripheral) WithNotifyCharacteristic(service, char string) *Peripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.service(service).chars[gatt.NormalizeUUID(char)] = &fakeCharacteristic{
		uuid: char, notifiable: true, peripheral: p, serviceUUID: service,
	}
	return p
}

// WithReadError makes the characteristic's one-shot read fail.
func (p *Peripheral) WithReadError(service, char string, err error) *Peripheral {
	p.WithReadCharacteristic(service, char, nil)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.services[gatt.NormalizeUUID(service)].chars[gatt.NormalizeUUID(char)].readErr = err
	return p
}

// WithSubscribeError makes subscribing to the characteristic fail.
func (p *Peripheral) WithSubscribeError(service, char string, err error) *Peripheral {
	p.WithNotifyCharacteristic(service, char)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.services[gatt.NormalizeUUID(service)].chars[gatt.NormalizeUUID(char)].subscribeErr = err
	return p
}

// FailConnect queues a transport dial failure. Each queued error is
// consumed by one Connect call before connects start succeeding.
func (p *Peripheral) FailConnect(err error) *Peripheral {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectErrs = append(p.connectErrs, err)
	return p
}

// ID implements gatt.Device.
func (p *Peripheral) ID() string { return p.id }

// Name implements gatt.Device.
func (p *Peripheral) Name() string { return p.name }

// Connect implements gatt.Device.
func (p *Peripheral) Connect(_ context.Context) (gatt.Server, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connectCalls++
	if len(p.connectErrs) > 0 {
		err := p.connectErrs[0]
		p.connectErrs = p.connectErrs[1:]
		return nil, err
	}
	return &fakeServer{peripheral: p}, nil
}

// Emit delivers a notification payload to the subscriber of the given
// characteristic, if any. Returns false when nothing is subscribed.
func (p *Peripheral) Emit(service, char string, payload []byte) bool {
	p.mu.Lock()
	handler, ok := p.subscriptions[key(service, char)]
	p.mu.Unlock()
	if !ok {
		return false
	}
	handler(payload)
	return true
}

// ConnectCalls returns how many transport dials were attempted.
func (p *Peripheral) ConnectCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectCalls
}

// Disconnects returns how many times the connection was released.
func (p *Peripheral) Disconnects() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disconnects
}

// ActiveSubscriptions returns the number of live notification
// subscriptions.
func (p *Peripheral) ActiveSubscriptions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subscriptions)
}

type fakeServer struct {
	peripheral *Peripheral
}

func (s *fakeServer) Service(uuid string) (gatt.Service, error) {
	s.peripheral.mu.Lock()
	defer s.peripheral.mu.Unlock()
	svc, ok := s.peripheral.services[gatt.NormalizeUUID(uuid)]
	if !ok {
		return nil, gatt.Failure(gatt.ServiceUnavailable, fmt.Errorf("service %q not found", uuid))
	}
	return &fakeServiceHandle{peripheral: s.peripheral, service: svc}, nil
}

func (s *fakeServer) Disconnect() error {
	s.peripheral.mu.Lock()
	defer s.peripheral.mu.Unlock()
	s.peripheral.disconnects++
	s.peripheral.subscriptions = make(map[string]func([]byte))
	return nil
}

type fakeServiceHandle struct {
	peripheral *Peripheral
	service    *fakeService
}

func (h *fakeServiceHandle) UUID() string { return h.service.uuid }

func (h *fakeServiceHandle) Characteristic(uuid string) (gatt.Characteristic, error) {
	h.peripheral.mu.Lock()
	defer h.peripheral.mu.Unlock()
	char, ok := h.service.chars[gatt.NormalizeUUID(uuid)]
	if !ok {
		return nil, gatt.Failure(gatt.ServiceUnavailable,
			fmt.Errorf("characteristic %q not found in service %q", uuid, h.service.uuid))
	}
	return char, nil
}

func (c *fakeCharacteristic) UUID() string { return c.uuid }

func (c *fakeCharacteristic) Read(_ context.Context) ([]byte, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	return c.value, nil
}

func (c *fakeCharacteristic) Subscribe(handler func([]byte)) (func(), error) {
	if c.subscribeErr != nil {
		return nil, c.subscribeErr
	}
	if !c.notifiable {
		return nil, gatt.Failure(gatt.ServiceUnavailable,
			fmt.Errorf("characteristic %q does not notify", c.uuid))
	}

	p := c.peripheral
	k := key(c.serviceUUID, c.uuid)
	p.mu.Lock()
	p.subscriptions[k] = handler
	p.mu.Unlock()

	stop := func() {
		p.mu.Lock()
		delete(p.subscriptions, k)
		p.mu.Unlock()
	}
	return stop, nil
}
