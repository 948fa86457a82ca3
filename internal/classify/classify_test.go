package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vitalsync/wearsync/internal/classify"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want classify.DeviceType
	}{
		{name: "watch", in: "Galaxy Watch 4", want: classify.Smartwatch},
		{name: "fit substring", in: "Da Fit Band", want: classify.Smartwatch},
		{name: "band substring", in: "Mi Band 6", want: classify.Smartwatch},
		{name: "phone", in: "Pixel Phone", want: classify.MobilePhone},
		{name: "laptop", in: "Work Laptop", want: classify.Laptop},
		{name: "macbook", in: "Eve's MacBook Pro", want: classify.Laptop},
		{name: "scale", in: "Withings Scale", want: classify.SmartScale},
		{name: "thermometer", in: "Braun Thermometer", want: classify.Thermometer},
		{name: "case insensitive", in: "SMARTWATCH", want: classify.Smartwatch},
		{name: "unmatched name", in: "HC-05 Module", want: classify.Other},
		{name: "absent name", in: "", want: classify.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify.Classify(tt.in))
		})
	}
}

// Names can match several rules; the rule order is a design decision that
// privileges wearable categories, so it is pinned here rather than left to
// map iteration luck.
func TestClassifyPriorityOrder(t *testing.T) {
	tests := []struct {
		in   string
		want classify.DeviceType
	}{
		{in: "SmartWatch Phone Companion", want: classify.Smartwatch},
		{in: "Phone Watch", want: classify.Smartwatch},
		{in: "Fitbit phone app", want: classify.Smartwatch},
		{in: "phone-scale hybrid", want: classify.MobilePhone},
		{in: "laptop scale", want: classify.Laptop},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, classify.Classify(tt.in))
		})
	}
}
