package session

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/vitalsync/wearsync/internal/decode"
)

// Stream bridges characteristic notification events into decoder dispatch
// and accumulator updates. It is decoupled from the transport: tests drive
// HandleNotification directly with literal payloads, no live connection
// required.
type Stream struct {
	registry *decode.Registry
	acc      *accumulator
	logger   *logrus.Logger

	// OnUpdate, when set, observes every non-empty decoded update after it
	// is applied to the accumulator.
	OnUpdate func(decode.Update)
}

func newStream(registry *decode.Registry, acc *accumulator, logger *logrus.Logger) *Stream {
	return &Stream{registry: registry, acc: acc, logger: logger}
}

// NewStream creates a standalone stream over the given registry and a
// private accumulator, for use outside a managed session.
func NewStream(registry *decode.Registry, logger *logrus.Logger) *Stream {
	if logger == nil {
		logger = logrus.New()
	}
	return newStream(registry, &accumulator{}, logger)
}

// Attach subscribes to char and routes each notification payload through
// the decoder registry. The returned stop function cancels the
// subscription.
func (st *Stream) Attach(serviceUUID string, char subscribable) (func(), error) {
	charUUID := char.UUID()
	return char.Subscribe(func(buf []byte) {
		// Errors here are per-packet: absorbed, never propagated.
		_ = st.HandleNotification(serviceUUID, charUUID, buf)
	})
}

// subscribable is the slice of gatt.Characteristic the stream needs.
type subscribable interface {
	UUID() string
	Subscribe(handler func([]byte)) (func(), error)
}

// HandleNotification decodes one payload and merges the result into the
// accumulator, overwriting the previous sample for each decoded field. A
// payload that fails to decode contributes no value and leaves the
// subscription alive; an update with no fields (vendor keep-alive packets)
// is dropped silently.
func (st *Stream) HandleNotification(serviceUUID, charUUID string, buf []byte) error {
	upd, err := st.registry.Decode(serviceUUID, charUUID, buf)
	if err != nil {
		level := logrus.WarnLevel
		if errors.Is(err, decode.ErrShortBuffer) {
			level = logrus.DebugLevel
		}
		st.logger.WithError(err).WithFields(logrus.Fields{
			"service":        serviceUUID,
			"characteristic": charUUID,
			"len":            len(buf),
		}).Log(level, "Dropping packet that did not decode")
		return err
	}
	if upd.IsEmpty() {
		return nil
	}

	st.acc.apply(upd)
	if st.OnUpdate != nil {
		st.OnUpdate(upd)
	}
	return nil
}

// Current returns a copy of the stream's accumulated fields. Only
// meaningful for standalone streams created with NewStream.
func (st *Stream) Current() decode.Update {
	return st.acc.snapshot()
}
