package eventsourcing

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/cannahum/cqrs-lite/eventstore"
	"github.com/cannahum/cqrs-lite/serialization"
)

// Serializer converts between Events and Records
type Serializer interface {
	// MarshalEvent converts an Event to a Record
	MarshalEvent(event Event) (eventstore.Record, error)

	// UnmarshalEvent converts an Event backed into a Record
	UnmarshalEvent(record eventstore.Record) (Event, error)
}

// legacyEvent is the envelope written before records carried type tags.
type legacyEvent struct {
	Type string          `json:"t"`
	Data json.RawMessage `json:"d"`
}

// EventSerializer stores events as tagged JSON; the tag names the concrete event type.
type EventSerializer struct {
	serializer *serialization.Serializer
}

// NewEventSerializer returns an EventSerializer resolving tags through registry, with the
// specified events bound. Bind may be subsequently called to add more events.
func NewEventSerializer(registry *serialization.Registry, events ...Event) *EventSerializer {
	if registry == nil {
		registry = serialization.NewRegistry()
	}
	registry.Register(ID{}, Account{}, When{})
	j := &EventSerializer{serializer: serialization.New(registry)}
	j.Bind(events...)
	return j
}

// Bind registers the specified events with the serializer; may be called more than once.
// Events should be bound in the form they are raised, normally pointers.
func (j *EventSerializer) Bind(events ...Event) {
	for _, event := range events {
		j.serializer.Registry().Register(event)
	}
}

// Serializer returns the underlying tagged JSON serializer.
func (j *EventSerializer) Serializer() *serialization.Serializer {
	return j.serializer
}

// MarshalEvent converts an event into its persistent type, Record
func (j *EventSerializer) MarshalEvent(ev Event) (eventstore.Record, error) {
	data, err := j.serializer.Serialize(ev)
	if err != nil {
		return eventstore.Record{}, fmt.Errorf("unable to encode event %T: %w", ev, err)
	}
	return eventstore.Record{
		Version: ev.EventVersion(),
		Data:    data,
	}, nil
}

// UnmarshalEvent converts the persistent type, Record, into an Event instance.
// The record version is authoritative over the one in the payload.
func (j *EventSerializer) UnmarshalEvent(record eventstore.Record) (Event, error) {
	data, hint := record.Data, eventType
	if legacy, ok := parseLegacy(record.Data); ok {
		t, found := j.serializer.Registry().Lookup(legacy.Type)
		if !found {
			return nil, fmt.Errorf("unbound event type, %v", legacy.Type)
		}
		data, hint = legacy.Data, t
	}

	v, err := j.serializer.Deserialize(data, hint)
	if err != nil {
		return nil, err
	}
	event, ok := v.(Event)
	if !ok {
		return nil, fmt.Errorf("record %d holds %s, not an event", record.Version, reflect.TypeOf(v))
	}
	if s, ok := event.(versionStamper); ok && record.Version > 0 {
		s.stampVersion(record.Version)
	}
	return event, nil
}

func parseLegacy(data []byte) (legacyEvent, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return legacyEvent{}, false
	}
	if _, tagged := fields[serialization.TypeKey]; tagged {
		return legacyEvent{}, false
	}
	var legacy legacyEvent
	if err := json.Unmarshal(data, &legacy); err != nil || legacy.Type == "" || len(legacy.Data) == 0 {
		return legacyEvent{}, false
	}
	return legacy, true
}
