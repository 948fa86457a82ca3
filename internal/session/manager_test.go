package session_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/wearsync/internal/gatt"
	"github.com/vitalsync/wearsync/internal/gatt/gatttest"
	"github.com/vitalsync/wearsync/internal/session"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func fastOpts() *session.ManagerOptions {
	return &session.ManagerOptions{ConnectAttempts: 3, ConnectBackoff: time.Millisecond}
}

func TestStartSessionWithoutCapability(t *testing.T) {
	m := session.NewManager(nil, testLogger(), nil)

	_, err := m.StartSession(context.Background(), gatt.Filter{})
	assert.ErrorIs(t, err, gatt.ErrCapabilityUnavailable)
}

func TestStartSessionUserCancelled(t *testing.T) {
	capability := &gatttest.Capability{Err: gatt.ErrUserCancelled}
	m := session.NewManager(capability, testLogger(), nil)

	s, err := m.StartSession(context.Background(), gatt.Filter{})
	assert.Nil(t, s, "a dismissed chooser produces no session")
	assert.ErrorIs(t, err, gatt.ErrUserCancelled)
}

func TestStartSessionChoosesDevice(t *testing.T) {
	p := gatttest.NewPeripheral("AA:BB:CC:DD:EE:FF", "Mi Band 6")
	m := session.NewManager(&gatttest.Capability{Peripheral: p}, testLogger(), nil)

	s, err := m.StartSession(context.Background(), gatt.Filter{NamePrefix: "Mi"})
	require.NoError(t, err)
	assert.Equal(t, "AA:BB:CC:DD:EE:FF", s.DeviceID())
	assert.Equal(t, "Mi Band 6", s.DeviceName())
	assert.NotEmpty(t, s.ID())
}

func TestConnectRetriesThenSucceeds(t *testing.T) {
	p := gatttest.NewPeripheral("id", "Band").
		FailConnect(gatt.Failure(gatt.NoTransportServer, errors.New("link layer timeout"))).
		FailConnect(gatt.Failure(gatt.NoTransportServer, errors.New("link layer timeout")))
	m := session.NewManager(&gatttest.Capability{Peripheral: p}, testLogger(), fastOpts())

	s, err := m.StartSession(context.Background(), gatt.Filter{})
	require.NoError(t, err)

	err = m.Connect(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 3, p.ConnectCalls())
	assert.Equal(t, session.Negotiating, s.State())
}

func TestConnectExhaustsRetries(t *testing.T) {
	p := gatttest.NewPeripheral("id", "Band")
	for i := 0; i < 3; i++ {
		p.FailConnect(gatt.Failure(gatt.NoTransportServer, errors.New("link layer timeout")))
	}
	m := session.NewManager(&gatttest.Capability{Peripheral: p}, testLogger(), fastOpts())

	s, err := m.StartSession(context.Background(), gatt.Filter{})
	require.NoError(t, err)

	err = m.Connect(context.Background(), s)
	require.Error(t, err)
	assert.ErrorIs(t, err, gatt.ErrNoTransportServer)
	assert.Equal(t, session.Failed, s.State(), "connect failure is fatal for the session")
	assert.Equal(t, 3, p.ConnectCalls())
}

func TestTeardownIdempotent(t *testing.T) {
	p := gatttest.NewPeripheral("id", "Band")
	m := session.NewManager(&gatttest.Capability{Peripheral: p}, testLogger(), fastOpts())

	s, err := m.StartSession(context.Background(), gatt.Filter{})
	require.NoError(t, err)
	require.NoError(t, m.Connect(context.Background(), s))

	m.Teardown(s)
	assert.Equal(t, session.Disconnected, s.State())
	assert.Equal(t, 1, p.Disconnects())

	// Second teardown: same terminal state, connection not released twice.
	m.Teardown(s)
	assert.Equal(t, session.Disconnected, s.State())
	assert.Equal(t, 1, p.Disconnects())
}

func TestTeardownAfterConnectFailureKeepsFailedState(t *testing.T) {
	p := gatttest.NewPeripheral("id", "Band")
	for i := 0; i < 3; i++ {
		p.FailConnect(gatt.Failure(gatt.NoTransportServer, errors.New("nope")))
	}
	m := session.NewManager(&gatttest.Capability{Peripheral: p}, testLogger(), fastOpts())

	s, err := m.StartSession(context.Background(), gatt.Filter{})
	require.NoError(t, err)
	require.Error(t, m.Connect(context.Background(), s))

	m.Teardown(s)
	m.Teardown(s)
	assert.Equal(t, session.Failed, s.State(), "Failed is terminal; teardown does not rewrite it")
	assert.Equal(t, 0, p.Disconnects(), "no connection was ever established")
}

func TestTeardownNilSession(t *testing.T) {
	m := session.NewManager(nil, testLogger(), nil)
	assert.NotPanics(t, func() { m.Teardown(nil) })
}
