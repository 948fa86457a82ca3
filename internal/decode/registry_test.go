package decode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/wearsync/internal/decode"
	"github.com/vitalsync/wearsync/internal/gatt"
)

func TestStandardRegistryRouting(t *testing.T) {
	reg := decode.StandardRegistry()

	t.Run("heart rate", func(t *testing.T) {
		upd, err := reg.Decode(gatt.HeartRateService, gatt.HeartRateMeasurementChar, []byte{0x00, 72})
		require.NoError(t, err)
		require.NotNil(t, upd.HeartRate)
		assert.Equal(t, 72, *upd.HeartRate)
	})

	t.Run("battery", func(t *testing.T) {
		upd, err := reg.Decode(gatt.BatteryService, gatt.BatteryLevelChar, []byte{80})
		require.NoError(t, err)
		require.NotNil(t, upd.BatteryLevel)
		assert.Equal(t, 80, *upd.BatteryLevel)
	})

	t.Run("vendor fitness packet", func(t *testing.T) {
		upd, err := reg.Decode(gatt.VendorFitnessService, gatt.VendorFitnessChar,
			[]byte{0x51, 0, 0, 0, 0x10, 0x27, 0, 0, 0xE8, 0x03, 0, 0})
		require.NoError(t, err)
		require.NotNil(t, upd.Steps)
		require.NotNil(t, upd.Calories)
		assert.Equal(t, 10000, *upd.Steps)
		assert.Equal(t, 1000, *upd.Calories)
	})

	t.Run("vendor keep-alive is empty but not an error", func(t *testing.T) {
		upd, err := reg.Decode(gatt.VendorFitnessService, gatt.VendorFitnessChar, []byte{0x12, 0x01})
		require.NoError(t, err)
		assert.True(t, upd.IsEmpty())
	})

	t.Run("device info string", func(t *testing.T) {
		upd, err := reg.Decode(gatt.DeviceInformationService, gatt.ManufacturerNameChar, []byte("Da Fit"))
		require.NoError(t, err)
		assert.Equal(t, "Da Fit", upd.DeviceInfo["manufacturer"])
	})

	t.Run("unknown pair is a routing error", func(t *testing.T) {
		_, err := reg.Decode("ffff", "eeee", []byte{0x00})
		assert.ErrorContains(t, err, "no decoder registered")
	})
}

func TestRegistryAdditiveRegistration(t *testing.T) {
	// Adding a vendor protocol must not require touching negotiation or
	// existing registrations.
	reg := decode.StandardRegistry()

	const (
		svc  = "0000abcd-0000-1000-8000-00805f9b34fb"
		char = "0000ef01-0000-1000-8000-00805f9b34fb"
	)
	reg.Register(svc, char, func(buf []byte) (decode.Update, error) {
		if len(buf) < 1 {
			return decode.Update{}, decode.ErrShortBuffer
		}
		hr := int(buf[0])
		return decode.Update{HeartRate: &hr}, nil
	})

	upd, err := reg.Decode(svc, char, []byte{64})
	require.NoError(t, err)
	require.NotNil(t, upd.HeartRate)
	assert.Equal(t, 64, *upd.HeartRate)

	// Existing routes untouched.
	upd, err = reg.Decode(gatt.BatteryService, gatt.BatteryLevelChar, []byte{50})
	require.NoError(t, err)
	require.NotNil(t, upd.BatteryLevel)
}

func TestRegistryLookupNormalizesUUIDs(t *testing.T) {
	reg := decode.StandardRegistry()

	// Dashed 128-bit base-UUID form and short form address the same decoder.
	fn, ok := reg.Lookup("0000180d-0000-1000-8000-00805f9b34fb", "00002a37-0000-1000-8000-00805f9b34fb")
	assert.True(t, ok)
	assert.NotNil(t, fn)

	fn, ok = reg.Lookup("180D", "2A37")
	assert.True(t, ok)
	assert.NotNil(t, fn)
}
