package session

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vitalsync/wearsync/internal/gatt"
)

// Default connect retry policy. The host platform has no portable timeout
// behavior for BLE dials, so the manager bounds connects itself.
const (
	DefaultConnectAttempts = 3
	DefaultConnectBackoff  = 2 * time.Second
)

// ManagerOptions tunes the session lifecycle.
type ManagerOptions struct {
	// ConnectAttempts is the number of transport dials before the session
	// is declared failed. Values below 1 fall back to the default.
	ConnectAttempts int
	// ConnectBackoff is the fixed delay between dial attempts.
	ConnectBackoff time.Duration
}

// Manager owns device sessions end-to-end. The Bluetooth capability is
// injected so tests can substitute a fake peripheral.
type Manager struct {
	capability      gatt.Capability
	logger          *logrus.Logger
	connectAttempts int
	connectBackoff  time.Duration
}

// NewManager creates a session manager over the given host capability.
func NewManager(capability gatt.Capability, logger *logrus.Logger, opts *ManagerOptions) *Manager {
	if logger == nil {
		logger = logrus.New()
	}

	attempts := DefaultConnectAttempts
	backoff := DefaultConnectBackoff
	if opts != nil {
		if opts.ConnectAttempts >= 1 {
			attempts = opts.ConnectAttempts
		}
		if opts.ConnectBackoff > 0 {
			backoff = opts.ConnectBackoff
		}
	}

	return &Manager{
		capability:      capability,
		logger:          logger,
		connectAttempts: attempts,
		connectBackoff:  backoff,
	}
}

// StartSession invokes the host device chooser with the declared service
// catalogue and returns a new session for the chosen device. An absent
// capability fails immediately with ErrCapabilityUnavailable; a dismissed
// chooser surfaces ErrUserCancelled, which callers treat as "no session
// produced" rather than an error condition.
func (m *Manager) StartSession(ctx context.Context, filter gatt.Filter) (*Session, error) {
	if m.capability == nil {
		return nil, gatt.ErrCapabilityUnavailable
	}

	s := newSession(nil, m.logger)
	s.setState(Scanning)

	m.logger.WithFields(logrus.Fields{
		"session":           s.id,
		"name_prefix":       filter.NamePrefix,
		"optional_services": len(filter.OptionalServices),
	}).Info("Requesting device")

	dev, err := m.capability.RequestDevice(ctx, filter)
	if err != nil {
		if errors.Is(err, gatt.ErrUserCancelled) {
			s.setState(Disconnected)
			return nil, err
		}
		s.setState(Failed)
		return nil, err
	}

	s.device = dev
	m.logger.WithFields(logrus.Fields{
		"session": s.id,
		"device":  dev.Name(),
		"id":      dev.ID(),
	}).Info("Device chosen")

	return s, nil
}

// Connect opens the underlying transport for the session. Failure here is
// fatal for the session — there is no partial-connect state — and leaves it
// in Failed; the caller must create a fresh session to retry.
func (m *Manager) Connect(ctx context.Context, s *Session) error {
	s.setState(Connecting)

	var lastErr error
	for attempt := 1; attempt <= m.connectAttempts; attempt++ {
		server, err := s.device.Connect(ctx)
		if err == nil {
			s.mu.Lock()
			s.server = server
			s.mu.Unlock()
			s.setState(Negotiating)
			return nil
		}
		lastErr = err

		m.logger.WithError(err).WithFields(logrus.Fields{
			"session": s.id,
			"attempt": attempt,
			"of":      m.connectAttempts,
		}).Warn("Transport dial failed")

		if attempt < m.connectAttempts {
			select {
			case <-ctx.Done():
				s.setState(Failed)
				return gatt.Failure(gatt.NoTransportServer, ctx.Err())
			case <-time.After(m.connectBackoff):
			}
		}
	}

	s.setState(Failed)
	if gatt.IsKind(lastErr, gatt.NoTransportServer) {
		return lastErr
	}
	return gatt.Failure(gatt.NoTransportServer, lastErr)
}

// Teardown releases the session's connection. It is invoked on every exit
// path — normal disconnect, enclosing component shutdown, and error — and is
// idempotent.
func (m *Manager) Teardown(s *Session) {
	if s == nil {
		return
	}
	s.Teardown()
}
