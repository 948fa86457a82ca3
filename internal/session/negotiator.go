package session

import (
	"context"

	"github.com/sirupsen/logrus"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/vitalsync/wearsync/internal/decode"
	"github.com/vitalsync/wearsync/internal/gatt"
)

// AccessMode selects how a negotiated characteristic is consumed.
type AccessMode int

const (
	// OneShotRead reads the characteristic value once during negotiation.
	OneShotRead AccessMode = iota
	// Notify subscribes to characteristic notifications for the life of the
	// session.
	Notify
)

// CharSpec names one characteristic of a catalogue service and how to
// consume it.
type CharSpec struct {
	UUID string
	Mode AccessMode
}

// ServiceSpec is one optional service in the negotiation catalogue.
type ServiceSpec struct {
	UUID  string
	Chars []CharSpec
}

// Catalogue is the fixed, priority-ordered set of optional services a
// session attempts. Real devices expose arbitrary subsets of it; order only
// determines the sequence attempts are issued in, never an all-or-nothing
// outcome.
type Catalogue struct {
	services *orderedmap.OrderedMap[string, ServiceSpec]
}

// NewCatalogue returns an empty catalogue.
func NewCatalogue() *Catalogue {
	return &Catalogue{services: orderedmap.New[string, ServiceSpec]()}
}

// Add appends a service to the catalogue, after any already present.
func (c *Catalogue) Add(spec ServiceSpec) *Catalogue {
	c.services.Set(spec.UUID, spec)
	return c
}

// Len returns the number of catalogued services.
func (c *Catalogue) Len() int {
	return c.services.Len()
}

// StandardCatalogue returns the default service catalogue in negotiation
// order: streaming vitals first, then one-shot metadata, then vendor and
// less common profiles.
func StandardCatalogue() *Catalogue {
	return NewCatalogue().
		Add(ServiceSpec{UUID: gatt.HeartRateService, Chars: []CharSpec{
			{UUID: gatt.HeartRateMeasurementChar, Mode: Notify},
		}}).
		Add(ServiceSpec{UUID: gatt.BatteryService, Chars: []CharSpec{
			{UUID: gatt.BatteryLevelChar, Mode: OneShotRead},
		}}).
		Add(ServiceSpec{UUID: gatt.PulseOximeterService, Chars: []CharSpec{
			{UUID: gatt.PLXSpotCheckChar, Mode: Notify},
		}}).
		Add(ServiceSpec{UUID: gatt.DeviceInformationService, Chars: []CharSpec{
			{UUID: gatt.ManufacturerNameChar, Mode: OneShotRead},
			{UUID: gatt.ModelNumberChar, Mode: OneShotRead},
			{UUID: gatt.SerialNumberChar, Mode: OneShotRead},
			{UUID: gatt.HardwareRevisionChar, Mode: OneShotRead},
			{UUID: gatt.FirmwareRevisionChar, Mode: OneShotRead},
			{UUID: gatt.SoftwareRevisionChar, Mode: OneShotRead},
		}}).
		Add(ServiceSpec{UUID: gatt.VendorFitnessService, Chars: []CharSpec{
			{UUID: gatt.VendorFitnessChar, Mode: Notify},
		}}).
		Add(ServiceSpec{UUID: gatt.HealthThermometerService, Chars: []CharSpec{
			{UUID: gatt.TemperatureMeasurementChar, Mode: Notify},
		}}).
		Add(ServiceSpec{UUID: gatt.BodyCompositionService, Chars: []CharSpec{
			{UUID: gatt.BodyCompositionMeasurementChar, Mode: OneShotRead},
		}})
}

// ServiceUUIDs returns the catalogue's service identifiers in order, for
// declaring optional services to the device chooser.
func (c *Catalogue) ServiceUUIDs() []string {
	out := make([]string, 0, c.services.Len())
	for pair := c.services.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// AttemptResult is the outcome of one negotiation attempt. Used for
// bookkeeping and tests only; never persisted.
type AttemptResult struct {
	Service        string
	Characteristic string
	Succeeded      bool
	Reason         string
}

// Negotiator attempts each catalogue service independently against a
// connected session. A missing service or characteristic is recorded as a
// failed attempt and never aborts negotiation of the remaining candidates.
type Negotiator struct {
	registry *decode.Registry
	logger   *logrus.Logger
}

// NewNegotiator creates a negotiator routing payloads through registry.
func NewNegotiator(registry *decode.Registry, logger *logrus.Logger) *Negotiator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Negotiator{registry: registry, logger: logger}
}

// Negotiate walks the catalogue in order against the session's connection.
// One-shot characteristics are read and decoded immediately; streaming
// characteristics are handed to the notification stream. Once negotiation
// completes, the session is Streaming; it is not revisited for new service
// attempts.
func (n *Negotiator) Negotiate(ctx context.Context, s *Session, cat *Catalogue) []AttemptResult {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()

	stream := newStream(n.registry, &s.acc, n.logger)
	var results []AttemptResult

	for pair := cat.services.Oldest(); pair != nil; pair = pair.Next() {
		spec := pair.Value
		results = append(results, n.attemptService(ctx, s, server, stream, spec)...)
	}

	s.setState(Streaming)
	return results
}

func (n *Negotiator) attemptService(ctx context.Context, s *Session, server gatt.Server, stream *Stream, spec ServiceSpec) []AttemptResult {
	log := n.logger.WithFields(logrus.Fields{
		"session": s.id,
		"service": spec.UUID,
		"name":    gatt.KnownServiceName(spec.UUID),
	})

	svc, err := server.Service(spec.UUID)
	if err != nil {
		log.WithError(err).Debug("Service not offered by device")
		res := AttemptResult{Service: spec.UUID, Succeeded: false, Reason: err.Error()}
		s.recordAttempt(res)
		return []AttemptResult{res}
	}

	results := make([]AttemptResult, 0, len(spec.Chars))
	for _, cs := range spec.Chars {
		res := n.attemptCharacteristic(ctx, s, stream, svc, spec.UUID, cs)
		s.recordAttempt(res)
		results = append(results, res)
	}
	return results
}

func (n *Negotiator) attemptCharacteristic(ctx context.Context, s *Session, stream *Stream, svc gatt.Service, serviceUUID string, cs CharSpec) AttemptResult {
	log := n.logger.WithFields(logrus.Fields{
		"session":        s.id,
		"service":        serviceUUID,
		"characteristic": cs.UUID,
	})

	char, err := svc.Characteristic(cs.UUID)
	if err != nil {
		log.WithError(err).Debug("Characteristic not offered by device")
		return AttemptResult{Service: serviceUUID, Characteristic: cs.UUID, Succeeded: false, Reason: err.Error()}
	}

	switch cs.Mode {
	case OneShotRead:
		buf, err := char.Read(ctx)
		if err != nil {
			log.WithError(err).Debug("One-shot read failed")
			return AttemptResult{Service: serviceUUID, Characteristic: cs.UUID, Succeeded: false, Reason: err.Error()}
		}
		if err := stream.HandleNotification(serviceUUID, cs.UUID, buf); err != nil {
			log.WithError(err).Debug("One-shot value did not decode")
			return AttemptResult{Service: serviceUUID, Characteristic: cs.UUID, Succeeded: false, Reason: err.Error()}
		}
		log.Debug("One-shot read decoded")

	case Notify:
		stop, err := stream.Attach(serviceUUID, char)
		if err != nil {
			// A failed subscribe is a failed attempt like any other,
			// never a session failure.
			log.WithError(err).Debug("Subscribe failed")
			return AttemptResult{Service: serviceUUID, Characteristic: cs.UUID, Succeeded: false, Reason: err.Error()}
		}
		s.addStop(stop)
		log.Debug("Subscribed to notifications")
	}

	return AttemptResult{Service: serviceUUID, Characteristic: cs.UUID, Succeeded: true}
}
