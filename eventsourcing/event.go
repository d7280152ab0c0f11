package eventsourcing

import (
	"time"
)

// Event is a fact recorded against an aggregate.
type Event interface {
	// AggregateID returns the id of the aggregate referenced by the event
	AggregateID() DomainID

	// EventVersion contains the version number of this event
	EventVersion() int

	// EventMessageID uniquely identifies this event message
	EventMessageID() string

	// EventHeaders returns the envelope metadata of the event
	EventHeaders() EventHeaders

	// EventAt indicates when the event occurred
	EventAt() time.Time
}

// DomainEvent is an event raised and applied inside one aggregate.
type DomainEvent interface {
	Event
	isDomainEvent()
}

// IntegrationEvent is an event published to other bounded contexts.
type IntegrationEvent interface {
	Event
	isIntegrationEvent()
}

// versionStamper is implemented by *Model and every event embedding it.
type versionStamper interface {
	stampVersion(version int)
}

// Model provides a default implementation of an Event
type Model struct {
	// ID contains the AggregateID
	ID DomainID

	// Version contains the EventVersion; 0 until the event is applied
	Version int

	// MessageID contains the EventMessageID
	MessageID string

	// Headers contains the envelope metadata
	Headers EventHeaders
}

// NewModel returns a Model for aggregate id with every standard header populated and
// the current time as When.
func NewModel(id DomainID, aggregateType, correlationID string, who Account) Model {
	return NewModelAt(id, aggregateType, correlationID, who, Now())
}

// NewModelAt is NewModel with an explicit occurrence time.
func NewModelAt(id DomainID, aggregateType, correlationID string, who Account, when When) Model {
	m := Model{
		ID:        id,
		MessageID: NewGUID().Value,
	}
	m.Headers.SetCorrelationID(correlationID)
	m.Headers.SetWho(who)
	m.Headers.SetWhen(when)
	m.Headers.SetAggregateType(aggregateType)
	return m
}

// AggregateID implements the Event interface
func (m Model) AggregateID() DomainID {
	return m.ID
}

// EventVersion implements the Event interface
func (m Model) EventVersion() int {
	return m.Version
}

// EventMessageID implements the Event interface
func (m Model) EventMessageID() string {
	return m.MessageID
}

// EventHeaders implements the Event interface
func (m Model) EventHeaders() EventHeaders {
	return m.Headers
}

// EventAt implements the Event interface
func (m Model) EventAt() time.Time {
	when, err := m.Headers.When()
	if err != nil {
		return time.Time{}
	}
	return when.Time()
}

func (m *Model) stampVersion(version int) {
	m.Version = version
}

// DomainEventModel is the embeddable base of domain events.
type DomainEventModel struct {
	Model
}

// NewDomainEventModel is NewModel for domain events.
func NewDomainEventModel(id DomainID, aggregateType, correlationID string, who Account) DomainEventModel {
	return DomainEventModel{Model: NewModel(id, aggregateType, correlationID, who)}
}

func (DomainEventModel) isDomainEvent() {}

// IntegrationEventModel is the embeddable base of integration events.
type IntegrationEventModel struct {
	Model
}

// NewIntegrationEventModel is NewModel for integration events.
func NewIntegrationEventModel(id DomainID, aggregateType, correlationID string, who Account) IntegrationEventModel {
	return IntegrationEventModel{Model: NewModel(id, aggregateType, correlationID, who)}
}

func (IntegrationEventModel) isIntegrationEvent() {}
