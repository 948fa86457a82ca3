package decode

import (
	"fmt"

	"github.com/cornelk/hashmap"

	"github.com/vitalsync/wearsync/internal/gatt"
)

// Func decodes one characteristic payload into a partial update. A Func
// returns ErrShortBuffer-wrapped errors for malformed payloads and an empty
// Update for packets that legitimately carry no data (vendor keep-alives).
type Func func(buf []byte) (Update, error)

// Registry maps service/characteristic pairs to decoder variants. Adding a
// new vendor protocol is an additive Register call; negotiation code never
// branches on vendor identity.
type Registry struct {
	decoders *hashmap.Map[string, Func]
}

func key(service, characteristic string) string {
	return gatt.NormalizeUUID(service) + "/" + gatt.NormalizeUUID(characteristic)
}

// NewRegistry returns a registry with no decoders registered.
func NewRegistry() *Registry {
	return &Registry{decoders: hashmap.New[string, Func]()}
}

// Register binds fn to the given service/characteristic pair, replacing any
// previous binding.
func (r *Registry) Register(service, characteristic string, fn Func) {
	r.decoders.Set(key(service, characteristic), fn)
}

// Lookup returns the decoder for a service/characteristic pair.
func (r *Registry) Lookup(service, characteristic string) (Func, bool) {
	return r.decoders.Get(key(service, characteristic))
}

// Decode routes one payload through the registered decoder. An unknown pair
// is a routing error, distinct from a malformed payload.
func (r *Registry) Decode(service, characteristic string, buf []byte) (Update, error) {
	fn, ok := r.Lookup(service, characteristic)
	if !ok {
		return Update{}, fmt.Errorf("no decoder registered for %s/%s", service, characteristic)
	}
	return fn(buf)
}

// StandardRegistry returns a registry with the standard GATT health profiles
// and the Da Fit vendor fitness protocol registered.
func StandardRegistry() *Registry {
	r := NewRegistry()

	r.Register(gatt.HeartRateService, gatt.HeartRateMeasurementChar, func(buf []byte) (Update, error) {
		bpm, err := HeartRate(buf)
		if err != nil {
			return Update{}, err
		}
		return Update{HeartRate: &bpm}, nil
	})

	r.Register(gatt.PulseOximeterService, gatt.PLXSpotCheckChar, func(buf []byte) (Update, error) {
		pct, err := SpO2(buf)
		if err != nil {
			return Update{}, err
		}
		return Update{SpO2: &pct}, nil
	})

	r.Register(gatt.BatteryService, gatt.BatteryLevelChar, func(buf []byte) (Update, error) {
		pct, err := BatteryLevel(buf)
		if err != nil {
			return Update{}, err
		}
		return Update{BatteryLevel: &pct}, nil
	})

	r.Register(gatt.HealthThermometerService, gatt.TemperatureMeasurementChar, func(buf []byte) (Update, error) {
		deg, err := Temperature(buf)
		if err != nil {
			return Update{}, err
		}
		return Update{Temperature: &deg}, nil
	})

	r.Register(gatt.VendorFitnessService, gatt.VendorFitnessChar, func(buf []byte) (Update, error) {
		fit, ok := VendorFitness(buf)
		if !ok {
			// Wrong header or truncated packet: no fitness data this
			// packet, by contract not an error.
			return Update{}, nil
		}
		return Update{Steps: &fit.Steps, Calories: &fit.Calories}, nil
	})

	// Body composition is negotiated so scales are tagged as present, but
	// its measurement is not part of the canonical reading. The payload is
	// accepted and discarded.
	r.Register(gatt.BodyCompositionService, gatt.BodyCompositionMeasurementChar, func(buf []byte) (Update, error) {
		if len(buf) < 2 {
			return Update{}, fmt.Errorf("body composition: %w (len=%d)", ErrShortBuffer, len(buf))
		}
		return Update{}, nil
	})

	for char, label := range map[string]string{
		gatt.ManufacturerNameChar: "manufacturer",
		gatt.ModelNumberChar:      "model",
		gatt.SerialNumberChar:     "serial",
		gatt.HardwareRevisionChar: "hardware_revision",
		gatt.FirmwareRevisionChar: "firmware_revision",
		gatt.SoftwareRevisionChar: "software_revision",
	} {
		label := label
		r.Register(gatt.DeviceInformationService, char, func(buf []byte) (Update, error) {
			s := DeviceInfoString(buf)
			if s == "" {
				return Update{}, nil
			}
			return Update{DeviceInfo: map[string]string{label: s}}, nil
		})
	}

	return r
}
