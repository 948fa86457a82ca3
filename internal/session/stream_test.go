package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/wearsync/internal/decode"
	"github.com/vitalsync/wearsync/internal/gatt"
	"github.com/vitalsync/wearsync/internal/session"
)

func TestStreamHandleNotification(t *testing.T) {
	st := session.NewStream(decode.StandardRegistry(), testLogger())

	err := st.HandleNotification(gatt.HeartRateService, gatt.HeartRateMeasurementChar, []byte{0x00, 72})
	require.NoError(t, err)

	cur := st.Current()
	require.NotNil(t, cur.HeartRate)
	assert.Equal(t, 72, *cur.HeartRate)
}

func TestStreamDecodeErrorLeavesStateUntouched(t *testing.T) {
	st := session.NewStream(decode.StandardRegistry(), testLogger())

	require.NoError(t, st.HandleNotification(gatt.HeartRateService, gatt.HeartRateMeasurementChar, []byte{0x00, 88}))

	err := st.HandleNotification(gatt.HeartRateService, gatt.HeartRateMeasurementChar, []byte{0x01, 0x58})
	assert.ErrorIs(t, err, decode.ErrShortBuffer)

	cur := st.Current()
	require.NotNil(t, cur.HeartRate)
	assert.Equal(t, 88, *cur.HeartRate, "corrupt packet must not clobber the last good sample")
}

func TestStreamDropsEmptyUpdates(t *testing.T) {
	st := session.NewStream(decode.StandardRegistry(), testLogger())

	var observed int
	st.OnUpdate = func(decode.Update) { observed++ }

	// Vendor keep-alive decodes to an empty update: no error, no hook call.
	err := st.HandleNotification(gatt.VendorFitnessService, gatt.VendorFitnessChar, []byte{0x12, 0x01})
	require.NoError(t, err)
	assert.Equal(t, 0, observed)
	assert.True(t, st.Current().IsEmpty())
}

func TestStreamOnUpdateHook(t *testing.T) {
	st := session.NewStream(decode.StandardRegistry(), testLogger())

	var got []decode.Update
	st.OnUpdate = func(u decode.Update) { got = append(got, u) }

	require.NoError(t, st.HandleNotification(gatt.BatteryService, gatt.BatteryLevelChar, []byte{65}))
	require.NoError(t, st.HandleNotification(gatt.HeartRateService, gatt.HeartRateMeasurementChar, []byte{0x00, 70}))

	require.Len(t, got, 2)
	require.NotNil(t, got[0].BatteryLevel)
	assert.Equal(t, 65, *got[0].BatteryLevel)
	require.NotNil(t, got[1].HeartRate)
	assert.Equal(t, 70, *got[1].HeartRate)
}

func TestStreamMergesAcrossCharacteristics(t *testing.T) {
	st := session.NewStream(decode.StandardRegistry(), testLogger())

	require.NoError(t, st.HandleNotification(gatt.BatteryService, gatt.BatteryLevelChar, []byte{90}))
	require.NoError(t, st.HandleNotification(gatt.HeartRateService, gatt.HeartRateMeasurementChar, []byte{0x00, 61}))
	require.NoError(t, st.HandleNotification(gatt.DeviceInformationService, gatt.ManufacturerNameChar, []byte("Acme")))

	cur := st.Current()
	require.NotNil(t, cur.BatteryLevel)
	require.NotNil(t, cur.HeartRate)
	assert.Equal(t, 90, *cur.BatteryLevel)
	assert.Equal(t, 61, *cur.HeartRate)
	assert.Equal(t, "Acme", cur.DeviceInfo["manufacturer"])
}
