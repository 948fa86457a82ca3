package sink

import (
	"context"
	"errors"

	"github.com/vitalsync/wearsync/internal/gateway"
	"github.com/vitalsync/wearsync/internal/reading"
)

// Fanout stores a reading in every underlying sink. Each sink is attempted
// regardless of earlier failures; errors are joined.
type Fanout []gateway.Sink

// Store implements gateway.Sink.
func (f Fanout) Store(ctx context.Context, r reading.WearableReading) error {
	var errs []error
	for _, s := range f {
		if err := s.Store(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
