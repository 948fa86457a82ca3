package main

import (
	"errors"

	"github.com/vitalsync/wearsync/internal/gatt"
)

// FormatUserError maps session-level failures to user-facing messages.
// Fatal failure kinds get a clear reason string; everything else is shown
// as-is.
func FormatUserError(err error) string {
	var serr *gatt.SessionError
	if errors.As(err, &serr) {
		switch serr.Kind {
		case gatt.CapabilityUnavailable:
			return "Bluetooth is not available on this host: " + err.Error()
		case gatt.NoTransportServer:
			return "could not establish a connection to the device: " + err.Error()
		case gatt.UserCancelled:
			return "device selection cancelled"
		}
	}
	return err.Error()
}
