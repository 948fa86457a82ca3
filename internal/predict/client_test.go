package predict_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalsync/wearsync/internal/predict"
	"github.com/vitalsync/wearsync/internal/reading"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func intp(v int) *int { return &v }

func TestForwardSubstitutesContractDefaults(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := predict.NewClient(srv.URL, "user-1", quietLogger())
	rd := reading.WearableReading{
		ID:         "01J0TEST",
		DeviceName: "Mi Band 6",
		HeartRate:  intp(88),
		Steps:      intp(4200),
		RecordedAt: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
	}

	require.NoError(t, c.Forward(context.Background(), rd))

	assert.Equal(t, "user-1", got["user_id"])
	assert.EqualValues(t, 88, got["heart_rate"])
	assert.EqualValues(t, 4200, got["steps"])
	// Absent vitals arrive as the contract defaults, not zeros.
	assert.EqualValues(t, 98, got["spo2"])
	assert.InDelta(t, 36.6, got["temperature"], 0.001)
	assert.InDelta(t, 95.0, got["glucose"], 0.001)
	assert.EqualValues(t, 118, got["systolic_bp"])
	assert.EqualValues(t, 76, got["diastolic_bp"])
	assert.InDelta(t, 70.0, got["weight_kg"], 0.001)
	assert.Equal(t, "2026-08-26T12:00:00Z", got["recorded_at"])
}

func TestForwardMeasuredValuesOverrideDefaults(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	temp := float32(37.2)
	c := predict.NewClient(srv.URL, "user-1", quietLogger())
	rd := reading.WearableReading{
		ID:          "01J0TEST",
		SpO2:        intp(94),
		Temperature: &temp,
	}

	require.NoError(t, c.Forward(context.Background(), rd))
	assert.EqualValues(t, 94, got["spo2"])
	assert.InDelta(t, 37.2, got["temperature"], 0.001)
}

func TestForwardNon2xxIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := predict.NewClient(srv.URL, "user-1", quietLogger())
	err := c.Forward(context.Background(), reading.WearableReading{ID: "01J0TEST"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestForwardCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := predict.NewClient(srv.URL, "user-1", quietLogger())
	rd := reading.WearableReading{ID: "01J0TEST"}

	for i := 0; i < 5; i++ {
		require.Error(t, c.Forward(context.Background(), rd))
	}
	assert.Equal(t, gobreaker.StateOpen, c.State())
	assert.Equal(t, 5, calls)

	// Open circuit fails fast without touching the endpoint.
	err := c.Forward(context.Background(), rd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, 5, calls)
}
