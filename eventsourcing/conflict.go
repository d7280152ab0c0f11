package eventsourcing

import (
	"reflect"
	"sync"
)

// ConflictDetector decides whether events being saved clash with events another writer
// committed first.
type ConflictDetector struct {
	mu         sync.RWMutex
	predicates map[reflect.Type]map[reflect.Type]func(uncommitted, committed Event) bool
}

// NewConflictDetector returns a detector with no registrations.
func NewConflictDetector() *ConflictDetector {
	return &ConflictDetector{
		predicates: map[reflect.Type]map[reflect.Type]func(Event, Event) bool{},
	}
}

// RegisterConflict sets the predicate deciding whether an uncommitted U clashes with a
// committed C. A nil predicate always reports a conflict.
func RegisterConflict[U, C Event](d *ConflictDetector, predicate func(uncommitted U, committed C) bool) {
	ut := reflect.TypeOf((*U)(nil)).Elem()
	ct := reflect.TypeOf((*C)(nil)).Elem()

	fn := func(Event, Event) bool { return true }
	if predicate != nil {
		fn = func(u, c Event) bool { return predicate(u.(U), c.(C)) }
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.predicates[ut] == nil {
		d.predicates[ut] = map[reflect.Type]func(Event, Event) bool{}
	}
	d.predicates[ut][ct] = fn
}

// ConflictsWith reports whether any pair of uncommitted and committed events conflicts.
// Without registrations for the uncommitted type, events conflict only with events of
// the same type; with registrations, committed types lacking a predicate conflict.
func (d *ConflictDetector) ConflictsWith(uncommitted, committed []Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, u := range uncommitted {
		ut := reflect.TypeOf(u)
		for _, c := range committed {
			ct := reflect.TypeOf(c)
			byCommitted, registered := d.predicates[ut]
			if !registered {
				if ut == ct {
					return true
				}
				continue
			}
			predicate, ok := byCommitted[ct]
			if !ok || predicate(u, c) {
				return true
			}
		}
	}
	return false
}
