package eventsourcing

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrInvalidArgument is returned for nil events, handlers or commands.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateHandler is returned when a type gets a second handler.
	ErrDuplicateHandler = errors.New("handler already registered")

	// ErrHandlerNotFound is matched by every *HandlerNotFoundError.
	ErrHandlerNotFound = errors.New("no handler for event")

	// ErrDomainRuleViolation is matched by every *DomainRuleViolation.
	ErrDomainRuleViolation = errors.New("domain rule violation")

	// ErrAggregateNotFound is matched by every *AggregateNotFoundError.
	ErrAggregateNotFound = errors.New("aggregate not found")

	// ErrAggregateVersion is matched by every *AggregateVersionError.
	ErrAggregateVersion = errors.New("aggregate version not found")

	// ErrConflictingCommand is matched by every *ConflictingCommandError.
	ErrConflictingCommand = errors.New("conflicting command")

	// ErrStaleAggregate is returned by Repository.Save when events were saved after a merge
	// but the aggregate could not replay the concurrent ones; reload it before reuse.
	ErrStaleAggregate = errors.New("aggregate is behind the stored stream")

	// ErrCommandHandlerNotFound is returned by CommandDispatcher.Send for unknown commands.
	ErrCommandHandlerNotFound = errors.New("no handler for command")

	errUnbound = errors.New("aggregate root is not bound to its aggregate")
)

// HandlerNotFoundError reports an event that reached an aggregate with no handler for it.
type HandlerNotFoundError struct {
	AggregateType string
	EventType     string
}

// NewHandlerNotFoundError describes event as unhandled by aggregate.
func NewHandlerNotFoundError(aggregate interface{}, event Event) *HandlerNotFoundError {
	return &HandlerNotFoundError{
		AggregateType: typeName(aggregate),
		EventType:     typeName(event),
	}
}

func (e *HandlerNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s has no handler for %s", ErrHandlerNotFound, e.AggregateType, e.EventType)
}

func (e *HandlerNotFoundError) Is(target error) bool { return target == ErrHandlerNotFound }

// DomainRuleViolation is returned by business methods that refuse a state transition.
type DomainRuleViolation struct {
	AggregateType string
	Message       string
}

// NewDomainRuleViolation formats a violation raised by aggregate.
func NewDomainRuleViolation(aggregate interface{}, format string, args ...interface{}) *DomainRuleViolation {
	return &DomainRuleViolation{
		AggregateType: typeName(aggregate),
		Message:       fmt.Sprintf(format, args...),
	}
}

func (e *DomainRuleViolation) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrDomainRuleViolation, e.AggregateType, e.Message)
}

func (e *DomainRuleViolation) Is(target error) bool { return target == ErrDomainRuleViolation }

// AggregateNotFoundError is returned when an aggregate has no stored events.
type AggregateNotFoundError struct {
	AggregateID string
}

func (e *AggregateNotFoundError) Error() string {
	return fmt.Sprintf("unable to find aggregate for id %s", e.AggregateID)
}

func (e *AggregateNotFoundError) Is(target error) bool { return target == ErrAggregateNotFound }

// AggregateVersionError is returned when a version beyond the stored stream is requested.
type AggregateVersionError struct {
	AggregateID string
	Requested   int
	Actual      int
}

func (e *AggregateVersionError) Error() string {
	return fmt.Sprintf("aggregate %s has version %d, requested %d", e.AggregateID, e.Actual, e.Requested)
}

func (e *AggregateVersionError) Is(target error) bool { return target == ErrAggregateVersion }

// ConflictingCommandError is returned by Save when events committed concurrently conflict
// with the ones being saved.
type ConflictingCommandError struct {
	AggregateID string
	Expected    int
	Actual      int
}

func (e *ConflictingCommandError) Error() string {
	return fmt.Sprintf("%s on aggregate %s: expected version %d, found %d",
		ErrConflictingCommand, e.AggregateID, e.Expected, e.Actual)
}

func (e *ConflictingCommandError) Is(target error) bool { return target == ErrConflictingCommand }

func typeName(v interface{}) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
