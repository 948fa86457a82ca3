package gatt_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitalsync/wearsync/internal/gatt"
)

func TestSessionErrorIs(t *testing.T) {
	err := gatt.Failure(gatt.NoTransportServer, fmt.Errorf("dial tcp: refused"))

	assert.ErrorIs(t, err, gatt.ErrNoTransportServer)
	assert.NotErrorIs(t, err, gatt.ErrUserCancelled)
	assert.Contains(t, err.Error(), "no_transport_server")
	assert.Contains(t, err.Error(), "refused")
}

func TestIsKind(t *testing.T) {
	wrapped := fmt.Errorf("startup: %w", gatt.ErrCapabilityUnavailable)

	assert.True(t, gatt.IsKind(wrapped, gatt.CapabilityUnavailable))
	assert.False(t, gatt.IsKind(wrapped, gatt.UserCancelled))
	assert.False(t, gatt.IsKind(errors.New("plain"), gatt.CapabilityUnavailable))
	assert.False(t, gatt.IsKind(nil, gatt.CapabilityUnavailable))
}

func TestFailureWithoutCause(t *testing.T) {
	err := gatt.Failure(gatt.UserCancelled, nil)
	assert.ErrorIs(t, err, gatt.ErrUserCancelled)
	assert.Equal(t, "user_cancelled", err.Error())
}

func TestNormalizeUUID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "180D", want: "180d"},
		{in: "0000180d-0000-1000-8000-00805f9b34fb", want: "180d"},
		{in: "0000FEEA-0000-1000-8000-00805F9B34FB", want: "feea"},
		{in: "6e400001-b5a3-f393-e0a9-e50e24dcca9e", want: "6e400001b5a3f393e0a9e50e24dcca9e"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gatt.NormalizeUUID(tt.in), tt.in)
	}
}

func TestKnownServiceName(t *testing.T) {
	assert.Equal(t, "Heart Rate", gatt.KnownServiceName("180d"))
	assert.Equal(t, "Heart Rate", gatt.KnownServiceName("0000180d-0000-1000-8000-00805f9b34fb"))
	assert.Equal(t, "Vendor Fitness (Da Fit)", gatt.KnownServiceName(gatt.VendorFitnessService))
	assert.Equal(t, "", gatt.KnownServiceName("ffff"))
}
