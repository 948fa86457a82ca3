// Package session owns the scan→connect→negotiate→stream→teardown lifecycle
// of one wearable device connection. The underlying GATT connection is the
// one exclusively-owned resource per session; Teardown releases it on every
// exit path and is safe to call more than once.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vitalsync/wearsync/internal/decode"
	"github.com/vitalsync/wearsync/internal/gatt"
	"github.com/vitalsync/wearsync/internal/reading"
)

// State represents the lifecycle phase of a session. Transitions are
// one-directional; Failed and Disconnected are terminal. Re-entering
// requires a brand-new session, never a reset of the old one.
type State int

const (
	Idle State = iota
	Scanning
	Connecting
	Negotiating
	Streaming
	Disconnected
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case Negotiating:
		return "negotiating"
	case Streaming:
		return "streaming"
	case Disconnected:
		return "disconnected"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// accumulator holds the latest decoded sample per field. There is no
// history at this layer; time-series storage is a collaborator's concern.
// Notification handlers for different characteristics write disjoint fields,
// but may fire from transport goroutines, hence the mutex.
type accumulator struct {
	mu      sync.Mutex
	current decode.Update
}

func (a *accumulator) apply(u decode.Update) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if u.HeartRate != nil {
		a.current.HeartRate = u.HeartRate
	}
	if u.SpO2 != nil {
		a.current.SpO2 = u.SpO2
	}
	if u.BatteryLevel != nil {
		a.current.BatteryLevel = u.BatteryLevel
	}
	if u.Temperature != nil {
		a.current.Temperature = u.Temperature
	}
	if u.Steps != nil {
		a.current.Steps = u.Steps
	}
	if u.Calories != nil {
		a.current.Calories = u.Calories
	}
	for k, v := range u.DeviceInfo {
		if a.current.DeviceInfo == nil {
			a.current.DeviceInfo = make(map[string]string)
		}
		a.current.DeviceInfo[k] = v
	}
}

func (a *accumulator) snapshot() decode.Update {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := a.current
	if a.current.DeviceInfo != nil {
		out.DeviceInfo = make(map[string]string, len(a.current.DeviceInfo))
		for k, v := range a.current.DeviceInfo {
			out.DeviceInfo[k] = v
		}
	}
	return out
}

// Session is one physical device's live connection. Exactly one owner (the
// manager that created it) mutates its state.
type Session struct {
	id     string
	device gatt.Device
	server gatt.Server

	mu         sync.Mutex
	state      State
	negotiated []string
	attempts   []AttemptResult
	stops      []func()

	acc      accumulator
	tornDown atomic.Bool

	logger *logrus.Logger
}

func newSession(device gatt.Device, logger *logrus.Logger) *Session {
	return &Session{
		id:     uuid.NewString(),
		device: device,
		state:  Idle,
		logger: logger,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// DeviceID returns the opaque platform identifier of the chosen device.
func (s *Session) DeviceID() string {
	if s.device == nil {
		return ""
	}
	return s.device.ID()
}

// DeviceName returns the advertised device name, possibly empty.
func (s *Session) DeviceName() string {
	if s.device == nil {
		return ""
	}
	return s.device.Name()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"session": s.id,
		"from":    prev.String(),
		"to":      state.String(),
	}).Debug("Session state changed")
}

// NegotiatedServices returns the service UUIDs successfully opened so far,
// in catalogue order. Always a subset of the attempted catalogue; partial
// device support is the expected case, not a failure mode.
func (s *Session) NegotiatedServices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.negotiated))
	copy(out, s.negotiated)
	return out
}

// Attempts returns the per-service negotiation outcomes.
func (s *Session) Attempts() []AttemptResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AttemptResult, len(s.attempts))
	copy(out, s.attempts)
	return out
}

func (s *Session) recordAttempt(res AttemptResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, res)
	if res.Succeeded {
		for _, svc := range s.negotiated {
			if svc == res.Service {
				return
			}
		}
		s.negotiated = append(s.negotiated, res.Service)
	}
}

func (s *Session) addStop(stop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops = append(s.stops, stop)
}

// Snapshot normalizes the current accumulator contents into an immutable
// canonical reading. Read-only with respect to the accumulator; may be
// called repeatedly (manual "sync now" and periodic auto-sync alike).
func (s *Session) Snapshot() reading.WearableReading {
	return reading.Normalize(s.DeviceName(), s.acc.snapshot())
}

// Teardown releases the underlying connection and cancels all notification
// subscriptions. Idempotent: the second and later calls are no-ops that
// leave the session in the same terminal state.
func (s *Session) Teardown() {
	if !s.tornDown.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	stops := s.stops
	s.stops = nil
	server := s.server
	s.server = nil
	terminal := s.state == Failed
	if !terminal {
		s.state = Disconnected
	}
	s.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
	if server != nil {
		if err := server.Disconnect(); err != nil {
			s.logger.WithError(err).WithField("session", s.id).Warn("Error releasing device connection")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"session": s.id,
		"device":  s.DeviceName(),
	}).Info("Session torn down")
}
