// Package classify maps advertised device names to coarse device-type
// labels used for downstream record tagging.
package classify

import "strings"

// DeviceType is the coarse category assigned to a device name.
type DeviceType string

const (
	Smartwatch  DeviceType = "smartwatch"
	MobilePhone DeviceType = "mobile phone"
	Laptop      DeviceType = "laptop"
	SmartScale  DeviceType = "smart scale"
	Thermometer DeviceType = "thermometer"
	Other       DeviceType = "other device"
	Unknown     DeviceType = "unknown"
)

type rule struct {
	substrings []string
	deviceType DeviceType
}

// Rules are evaluated in order; first match wins. Names can match several
// substrings ("SmartWatch Phone Companion"), so the order deliberately
// privileges wearable categories over generic ones.
var rules = []rule{
	{[]string{"watch", "fit", "band"}, Smartwatch},
	{[]string{"phone"}, MobilePhone},
	{[]string{"laptop", "macbook"}, Laptop},
	{[]string{"scale"}, SmartScale},
	{[]string{"thermometer"}, Thermometer},
}

// Classify returns the device type for a human-readable device name using
// case-insensitive substring matching. An empty name yields Unknown.
func Classify(name string) DeviceType {
	if name == "" {
		return Unknown
	}
	lower := strings.ToLower(name)
	for _, r := range rules {
		for _, sub := range r.substrings {
			if strings.Contains(lower, sub) {
				return r.deviceType
			}
		}
	}
	return Other
}
