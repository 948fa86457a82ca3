// Package predict forwards readings to the remote risk-prediction endpoint.
// The endpoint requires a full vital-sign vector; fields this subsystem does
// not measure are substituted with the fixed defaults owned by the
// collaborator's contract.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/vitalsync/wearsync/internal/reading"
)

// Contract defaults for vitals the wearable subsystem does not measure.
const (
	defaultTemperature = 36.6
	defaultGlucose     = 95.0
	defaultSystolic    = 118
	defaultDiastolic   = 76
	defaultWeightKg    = 70.0
	defaultHeartRate   = 72
	defaultSpO2        = 98
	defaultSteps       = 0
)

// Circuit breaker defaults: trip after consecutive failures, allow one
// probe once half-open.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// request is the wire shape the prediction API expects.
type request struct {
	UserID      string  `json:"user_id"`
	HeartRate   int     `json:"heart_rate"`
	Steps       int     `json:"steps"`
	SpO2        int     `json:"spo2"`
	Temperature float64 `json:"temperature"`
	Glucose     float64 `json:"glucose"`
	Systolic    int     `json:"systolic_bp"`
	Diastolic   int     `json:"diastolic_bp"`
	WeightKg    float64 `json:"weight_kg"`
	RecordedAt  string  `json:"recorded_at"`
}

// Client forwards readings to the prediction endpoint over HTTP, protected
// by a circuit breaker so a degraded endpoint fails fast instead of stalling
// every sync.
type Client struct {
	url     string
	userID  string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *logrus.Logger
}

// NewClient creates a prediction forwarder for the given endpoint URL.
func NewClient(url, userID string, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "predict:" + url,
		MaxRequests: 1,
		Interval:    defaultCBInterval,
		Timeout:     defaultCBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defaultCBMaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Prediction circuit breaker state change")
		},
	})

	return &Client{
		url:    url,
		userID: userID,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     60 * time.Second,
			},
			Timeout: 30 * time.Second,
		},
		breaker: cb,
		logger:  logger,
	}
}

// Forward implements gateway.Predictor. Calls are routed through the
// circuit breaker; an open circuit is reported as an error without touching
// the network.
func (c *Client) Forward(ctx context.Context, r reading.WearableReading) error {
	_, err := c.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, c.post(ctx, r)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return fmt.Errorf("prediction endpoint circuit open: %w", err)
		}
		return err
	}
	return nil
}

func (c *Client) post(ctx context.Context, r reading.WearableReading) error {
	body, err := json.Marshal(c.buildRequest(r))
	if err != nil {
		return fmt.Errorf("marshal prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call prediction endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("prediction endpoint returned %s", resp.Status)
	}

	c.logger.WithField("reading", r.ID).Debug("Reading forwarded for prediction")
	return nil
}

// buildRequest maps a reading onto the full vital vector, substituting
// contract defaults for absent fields.
func (c *Client) buildRequest(r reading.WearableReading) request {
	req := request{
		UserID:      c.userID,
		HeartRate:   defaultHeartRate,
		Steps:       defaultSteps,
		SpO2:        defaultSpO2,
		Temperature: defaultTemperature,
		Glucose:     defaultGlucose,
		Systolic:    defaultSystolic,
		Diastolic:   defaultDiastolic,
		WeightKg:    defaultWeightKg,
		RecordedAt:  r.RecordedAt.UTC().Format(time.RFC3339),
	}
	if r.HeartRate != nil {
		req.HeartRate = *r.HeartRate
	}
	if r.Steps != nil {
		req.Steps = *r.Steps
	}
	if r.SpO2 != nil {
		req.SpO2 = *r.SpO2
	}
	if r.Temperature != nil {
		req.Temperature = float64(*r.Temperature)
	}
	return req
}

// State returns the current circuit breaker state for monitoring.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}
