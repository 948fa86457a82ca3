// Package gatt defines the host Bluetooth capability consumed by the
// ingestion subsystem. The production adapter lives in gatt/goble; tests
// substitute the fake peripheral from gatt/gatttest. Nothing above this
// package touches a BLE stack directly.
package gatt

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind identifies the class of a session-level failure.
type FailureKind string

const (
	// CapabilityUnavailable means the host has no Bluetooth capability at all.
	CapabilityUnavailable FailureKind = "capability_unavailable"
	// UserCancelled means the user dismissed the device chooser. Callers
	// treat this as "no session produced", not as an error condition.
	UserCancelled FailureKind = "user_cancelled"
	// NoTransportServer means a device handle was obtained but the
	// transport/server could not be established.
	NoTransportServer FailureKind = "no_transport_server"
	// ServiceUnavailable means a specific optional service or characteristic
	// could not be opened. Non-fatal; negotiation continues.
	ServiceUnavailable FailureKind = "service_unavailable"
)

// SessionError represents a failure at the capability boundary.
type SessionError struct {
	Kind FailureKind
	Msg  string
}

// Error implements the error interface.
func (e *SessionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is allows errors.Is to compare SessionError values by Kind.
func (e *SessionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*SessionError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Predefined sentinel errors for the failure taxonomy.
var (
	ErrCapabilityUnavailable = &SessionError{Kind: CapabilityUnavailable}
	ErrUserCancelled         = &SessionError{Kind: UserCancelled}
	ErrNoTransportServer     = &SessionError{Kind: NoTransportServer}
	ErrServiceUnavailable    = &SessionError{Kind: ServiceUnavailable}
)

// Failure wraps err as a SessionError of the given kind, preserving the
// original error text for user display.
func Failure(kind FailureKind, err error) error {
	if err == nil {
		return &SessionError{Kind: kind}
	}
	return fmt.Errorf("%w: %v", &SessionError{Kind: kind}, err)
}

// IsKind reports whether err is a SessionError with the given kind.
func IsKind(err error, kind FailureKind) bool {
	var serr *SessionError
	if errors.As(err, &serr) {
		return serr.Kind == kind
	}
	return false
}

// Filter narrows the device chooser to acceptable devices. NamePrefix is
// matched against the advertised local name; OptionalServices declares the
// service catalogue the session intends to negotiate, so the host can grant
// access to them.
type Filter struct {
	NamePrefix       string
	OptionalServices []string
}

// Capability is the host-provided Bluetooth surface. It is injected into the
// session manager rather than referenced as ambient state so tests can
// substitute a fake.
type Capability interface {
	// RequestDevice invokes the host device chooser with the given filter.
	// Returns ErrCapabilityUnavailable when the host has no Bluetooth
	// support and ErrUserCancelled when the chooser is dismissed.
	RequestDevice(ctx context.Context, filter Filter) (Device, error)
}

// Device is a chosen but not necessarily connected peripheral.
type Device interface {
	ID() string
	Name() string

	// Connect establishes the underlying transport. Returns an
	// ErrNoTransportServer failure when the link cannot be established;
	// there is no partial-connect state.
	Connect(ctx context.Context) (Server, error)
}

// Server is an established GATT connection. It is the one exclusively-owned
// resource per session and must be released via Disconnect on every exit
// path.
type Server interface {
	// Service fetches a primary service by UUID. Absence is reported as an
	// ErrServiceUnavailable failure.
	Service(uuid string) (Service, error)
	Disconnect() error
}

// Service is a GATT primary service handle.
type Service interface {
	UUID() string
	// Characteristic fetches a characteristic by UUID. Absence is reported
	// as an ErrServiceUnavailable failure.
	Characteristic(uuid string) (Characteristic, error)
}

// Characteristic is one value slot of a service.
type Characteristic interface {
	UUID() string
	// Read performs a one-shot value read.
	Read(ctx context.Context) ([]byte, error)
	// Subscribe registers handler for notification payloads and returns a
	// stop function that cancels the subscription. Subscribing can fail like
	// any other service attempt.
	Subscribe(handler func([]byte)) (stop func(), err error)
}
