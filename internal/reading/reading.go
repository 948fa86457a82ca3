// Package reading defines the canonical, device-agnostic health record
// produced by the ingestion subsystem and the normalizer that assembles it.
package reading

import (
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vitalsync/wearsync/internal/classify"
	"github.com/vitalsync/wearsync/internal/decode"
)

// WearableReading is the normalized output record. All vital fields are
// optional because any given vendor session exposes only a subset of
// services. Once constructed a reading is never mutated; each normalization
// call produces a fresh record.
type WearableReading struct {
	ID         string              `json:"id"`
	DeviceName string              `json:"device_name"`
	DeviceType classify.DeviceType `json:"device_type"`

	HeartRate    *int     `json:"heart_rate,omitempty"`
	Steps        *int     `json:"steps,omitempty"`
	Calories     *int     `json:"calories,omitempty"`
	SpO2         *int     `json:"spo2,omitempty"`
	BatteryLevel *int     `json:"battery_level,omitempty"`
	Temperature  *float32 `json:"temperature,omitempty"`

	DeviceInfo map[string]string `json:"device_info,omitempty"`

	// RecordedAt is set at normalization time. The underlying protocols do
	// not transmit a reliable device-side timestamp.
	RecordedAt time.Time `json:"recorded_at"`
}

// IsEmpty reports whether every optional measurement field is absent. An
// empty reading is valid but carries nothing worth forwarding.
func (r WearableReading) IsEmpty() bool {
	return r.HeartRate == nil && r.Steps == nil && r.Calories == nil &&
		r.SpO2 == nil && r.BatteryLevel == nil && r.Temperature == nil
}

// HasVitalSigns reports whether at least one of heart rate, steps, or SpO2
// is present. The prediction forwarder is only invoked for readings that
// carry a vital sign.
func (r WearableReading) HasVitalSigns() bool {
	return r.HeartRate != nil || r.Steps != nil || r.SpO2 != nil
}

// Normalize snapshots the accumulated vitals into an immutable reading,
// combining them with the device name, its classified type, and a fresh
// timestamp. Read-only with respect to vitals; safe to call repeatedly.
func Normalize(deviceName string, vitals decode.Update) WearableReading {
	r := WearableReading{
		ID:         ulid.Make().String(),
		DeviceName: deviceName,
		DeviceType: classify.Classify(deviceName),
		RecordedAt: time.Now().UTC(),
	}

	r.HeartRate = copyInt(vitals.HeartRate)
	r.Steps = copyInt(vitals.Steps)
	r.Calories = copyInt(vitals.Calories)
	r.SpO2 = copyInt(vitals.SpO2)
	r.BatteryLevel = copyInt(vitals.BatteryLevel)
	if vitals.Temperature != nil {
		deg := *vitals.Temperature
		r.Temperature = &deg
	}
	if len(vitals.DeviceInfo) > 0 {
		r.DeviceInfo = make(map[string]string, len(vitals.DeviceInfo))
		for k, v := range vitals.DeviceInfo {
			r.DeviceInfo[k] = v
		}
	}
	return r
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
