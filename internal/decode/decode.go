// Package decode turns raw GATT characteristic payloads into typed health
// measurements. Decoders are pure: no I/O, no state, and no panics on
// malformed input — notification streams are long-lived, so one corrupt
// packet must never terminate a subscription.
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
)

// ErrShortBuffer indicates a payload that does not match the expected layout
// or length for its decoder. Callers treat it as "no value this tick" and
// keep the subscription alive.
var ErrShortBuffer = errors.New("buffer too short for expected layout")

// Update carries the fields decoded from one payload. Nil pointers mean the
// payload did not contribute that field. The accumulator merges updates,
// keeping the latest sample per field.
type Update struct {
	HeartRate    *int
	SpO2         *int
	BatteryLevel *int
	Temperature  *float32
	Steps        *int
	Calories     *int
	DeviceInfo   map[string]string
}

// IsEmpty reports whether the update carries no decoded field.
func (u Update) IsEmpty() bool {
	return u.HeartRate == nil && u.SpO2 == nil && u.BatteryLevel == nil &&
		u.Temperature == nil && u.Steps == nil && u.Calories == nil &&
		len(u.DeviceInfo) == 0
}

// HeartRate decodes a standard Heart Rate Measurement payload (0x2a37).
// Byte 0 is a flags byte; bit 0 selects the value width: 0 means an 8-bit
// value at offset 1, 1 means a 16-bit little-endian value at offset 1.
func HeartRate(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("heart rate: %w (len=%d)", ErrShortBuffer, len(buf))
	}
	if buf[0]&0x01 == 0 {
		return int(buf[1]), nil
	}
	if len(buf) < 3 {
		return 0, fmt.Errorf("heart rate 16-bit: %w (len=%d)", ErrShortBuffer, len(buf))
	}
	return int(binary.LittleEndian.Uint16(buf[1:3])), nil
}

// SpO2 decodes a pulse oximeter payload: the byte at offset 1 is the
// saturation percentage.
func SpO2(buf []byte) (int, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("spo2: %w (len=%d)", ErrShortBuffer, len(buf))
	}
	return int(buf[1]), nil
}

// BatteryLevel decodes a Battery Level payload (0x2a19): a single byte
// percentage at offset 0.
func BatteryLevel(buf []byte) (int, error) {
	if len(buf) < 1 {
		return 0, fmt.Errorf("battery level: %w", ErrShortBuffer)
	}
	return int(buf[0]), nil
}

// Temperature decodes a Temperature Measurement payload (0x2a1c): a 32-bit
// little-endian IEEE float at offset 1. Offset 0 is a flags byte that is not
// otherwise interpreted.
func Temperature(buf []byte) (float32, error) {
	if len(buf) < 5 {
		return 0, fmt.Errorf("temperature: %w (len=%d)", ErrShortBuffer, len(buf))
	}
	bits := binary.LittleEndian.Uint32(buf[1:5])
	return math.Float32frombits(bits), nil
}

// DeviceInfoString decodes a Device Information string characteristic
// (manufacturer, model, firmware revision and friends): UTF-8 over the whole
// buffer, trimmed of NULs and surrounding whitespace.
func DeviceInfoString(buf []byte) string {
	s := strings.TrimRight(string(buf), "\x00")
	return strings.TrimFunc(s, unicode.IsSpace)
}

// Fitness is a decoded step/calorie pair from the vendor fitness protocol.
type Fitness struct {
	Steps    int
	Calories int
}

// vendorFitnessHeader is the only packet type observed to carry step and
// calorie counters in the Da Fit family protocol.
const vendorFitnessHeader = 0x51

// VendorFitness decodes the reverse-engineered Da Fit-family step/calorie
// packet. Byte 0 is the packet-type header; only header 0x51 with at least
// 12 bytes carries fitness data: steps is a 32-bit little-endian unsigned at
// offset 4, calories at offset 8. Any other header or a shorter buffer
// yields ok=false — an absent result, not an error. Bytes 1-3 and anything
// beyond offset 12 are unspecified and ignored.
func VendorFitness(buf []byte) (Fitness, bool) {
	if len(buf) < 12 || buf[0] != vendorFitnessHeader {
		return Fitness{}, false
	}
	return Fitness{
		Steps:    int(binary.LittleEndian.Uint32(buf[4:8])),
		Calories: int(binary.LittleEndian.Uint32(buf[8:12])),
	}, true
}
