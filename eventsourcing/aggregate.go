package eventsourcing

import (
	"fmt"
	"reflect"
)

// Aggregate stands for event-sourced model.
type Aggregate interface {
	ID() DomainID
	Version() int
	ApplyEvent(event Event) error
	UncommittedEvents() []Event
	ClearUncommittedEvents()
	Snapshot() Memento
}

// AggregateRoot is embedded by aggregates to track version and uncommitted events.
// The embedding aggregate calls Bind(self) in its constructor. State changes go through
// ApplyEvent (replay) and RaiseEvent (new facts), never by setting fields directly.
type AggregateRoot struct {
	id          DomainID
	version     int
	uncommitted []Event
	router      EventRouter
	self        interface{}
}

// Bind records the aggregate embedding r. Without an explicit router, its Apply<Suffix>
// methods handle events.
func (r *AggregateRoot) Bind(self interface{}) {
	r.self = self
}

// UseRouter replaces convention routing with router.
func (r *AggregateRoot) UseRouter(router EventRouter) error {
	if router == nil {
		return fmt.Errorf("%w: nil router", ErrInvalidArgument)
	}
	r.router = router
	return nil
}

// ID returns the aggregate identifier.
func (r *AggregateRoot) ID() DomainID {
	return r.id
}

// SetID sets the aggregate identifier; called by the creation event handler.
func (r *AggregateRoot) SetID(id DomainID) {
	r.id = id
}

// Version returns the number of events applied so far.
func (r *AggregateRoot) Version() int {
	return r.version
}

// ApplyEvent routes event to its handler and advances the version. It does not touch the
// uncommitted buffer, so it is also the replay path.
func (r *AggregateRoot) ApplyEvent(event Event) error {
	if event == nil {
		return fmt.Errorf("%w: nil event", ErrInvalidArgument)
	}
	if r.router == nil {
		if r.self == nil {
			return errUnbound
		}
		router, err := NewConventionRouter(r.self)
		if err != nil {
			return err
		}
		r.router = router
	}

	s, stamp := event.(versionStamper)
	stamp = stamp && event.EventVersion() == 0
	if stamp {
		s.stampVersion(r.version + 1)
	}
	if err := r.router.Dispatch(event); err != nil {
		if stamp {
			s.stampVersion(0)
		}
		return err
	}
	if r.id == nil {
		r.id = event.AggregateID()
	}
	r.version++
	return nil
}

// RaiseEvent applies a new event and queues it for saving.
func (r *AggregateRoot) RaiseEvent(event Event) error {
	if err := r.ApplyEvent(event); err != nil {
		return err
	}
	r.uncommitted = append(r.uncommitted, event)
	return nil
}

// UncommittedEvents returns the raised events not yet saved, oldest first.
func (r *AggregateRoot) UncommittedEvents() []Event {
	out := make([]Event, len(r.uncommitted))
	copy(out, r.uncommitted)
	return out
}

// ClearUncommittedEvents empties the buffer; the version is kept.
func (r *AggregateRoot) ClearUncommittedEvents() {
	r.uncommitted = nil
}

// Snapshot returns the memento of the bound aggregate, stamped with id and version, or nil
// when the aggregate does not implement Snapshotter.
func (r *AggregateRoot) Snapshot() Memento {
	s, ok := r.self.(Snapshotter)
	if !ok {
		return nil
	}
	m := s.CreateSnapshot()
	if m == nil {
		return nil
	}
	id := ""
	if r.id != nil {
		id = r.id.IDValue()
	}
	m.stamp(id, r.version)
	return m
}

// SameAggregate reports whether a and b are the same kind of aggregate with equal ids.
func SameAggregate(a, b Aggregate) bool {
	if a == nil || b == nil {
		return false
	}
	return reflect.TypeOf(a) == reflect.TypeOf(b) && IDsEqual(a.ID(), b.ID())
}
