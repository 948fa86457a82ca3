// Package gateway hands completed readings to the external persistence and
// prediction collaborators. It owns the dispatch decision only; retry,
// schema, and defaulting policies belong to the collaborators.
package gateway

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/vitalsync/wearsync/internal/reading"
)

// Sink persists a canonical reading keyed by an authenticated user.
type Sink interface {
	Store(ctx context.Context, r reading.WearableReading) error
}

// Predictor forwards a reading to the remote risk-prediction collaborator.
type Predictor interface {
	Forward(ctx context.Context, r reading.WearableReading) error
}

// Gateway dispatches readings to the persistence sink and, conditionally,
// the prediction forwarder.
type Gateway struct {
	sink      Sink
	predictor Predictor
	logger    *logrus.Logger
}

// New creates a gateway. predictor may be nil, in which case prediction
// forwarding is disabled.
func New(sink Sink, predictor Predictor, logger *logrus.Logger) *Gateway {
	if logger == nil {
		logger = logrus.New()
	}
	return &Gateway{sink: sink, predictor: predictor, logger: logger}
}

// Dispatch forwards the reading verbatim. A reading with no populated
// measurement field is a no-op: nothing worth persisting. Persistence
// failures are surfaced to the caller without retry. The predictor is only
// invoked when the reading carries at least one of heart rate, steps, or
// SpO2; its failure is surfaced but never hides a successful store.
func (g *Gateway) Dispatch(ctx context.Context, r reading.WearableReading) error {
	if r.IsEmpty() {
		g.logger.WithField("device", r.DeviceName).Debug("Skipping empty reading")
		return nil
	}

	if err := g.sink.Store(ctx, r); err != nil {
		return fmt.Errorf("store reading: %w", err)
	}
	g.logger.WithFields(logrus.Fields{
		"reading": r.ID,
		"device":  r.DeviceName,
	}).Info("Reading persisted")

	if g.predictor == nil || !r.HasVitalSigns() {
		return nil
	}
	if err := g.predictor.Forward(ctx, r); err != nil {
		g.logger.WithError(err).WithField("reading", r.ID).Warn("Prediction forward failed")
		return fmt.Errorf("forward reading for prediction: %w", err)
	}
	return nil
}
