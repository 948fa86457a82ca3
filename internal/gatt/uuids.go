package gatt

import "strings"

// Standard GATT service UUIDs (normalized short form).
const (
	HeartRateService       = "180d"
	BatteryService         = "180f"
	PulseOximeterService   = "1822"
	DeviceInformationService = "180a"
	HealthThermometerService = "1809"
	BodyCompositionService = "181b"
)

// Standard GATT characteristic UUIDs.
const (
	HeartRateMeasurementChar   = "2a37"
	BatteryLevelChar           = "2a19"
	PLXSpotCheckChar           = "2a5e"
	ManufacturerNameChar       = "2a29"
	ModelNumberChar            = "2a24"
	SerialNumberChar           = "2a25"
	HardwareRevisionChar       = "2a27"
	FirmwareRevisionChar       = "2a26"
	SoftwareRevisionChar       = "2a28"
	TemperatureMeasurementChar = "2a1c"
	BodyCompositionMeasurementChar = "2a9c"
)

// Vendor-specific fitness service used by the "Da Fit" family of budget
// fitness bands. The characteristic carries the reverse-engineered
// step/calorie packet handled by decode.VendorFitness.
const (
	VendorFitnessService = "0000feea-0000-1000-8000-00805f9b34fb"
	VendorFitnessChar    = "0000fee1-0000-1000-8000-00805f9b34fb"
)

var knownServiceNames = map[string]string{
	NormalizeUUID(HeartRateService):         "Heart Rate",
	NormalizeUUID(BatteryService):           "Battery Service",
	NormalizeUUID(PulseOximeterService):     "Pulse Oximeter",
	NormalizeUUID(DeviceInformationService): "Device Information",
	NormalizeUUID(HealthThermometerService): "Health Thermometer",
	NormalizeUUID(BodyCompositionService):   "Body Composition",
	NormalizeUUID(VendorFitnessService):     "Vendor Fitness (Da Fit)",
}

// bluetoothBasePrefix/Suffix bracket the assigned-number range of the
// Bluetooth base UUID 0000xxxx-0000-1000-8000-00805f9b34fb.
const (
	bluetoothBasePrefix = "0000"
	bluetoothBaseSuffix = "00001000800000805f9b34fb"
)

// NormalizeUUID converts a UUID string to the internal format used for
// lookups (lowercase, no dashes). Full 128-bit UUIDs on the Bluetooth base
// collapse to their 16-bit short form, so "0000180d-0000-1000-8000-
// 00805f9b34fb" and "180d" address the same entry.
func NormalizeUUID(uuid string) string {
	n := strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
	if len(n) == 32 && strings.HasPrefix(n, bluetoothBasePrefix) && strings.HasSuffix(n, bluetoothBaseSuffix) {
		return n[4:8]
	}
	return n
}

// KnownServiceName returns a human-readable name for a service UUID, or the
// empty string for unknown services.
func KnownServiceName(uuid string) string {
	return knownServiceNames[NormalizeUUID(uuid)]
}
