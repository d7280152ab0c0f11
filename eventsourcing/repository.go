package eventsourcing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cannahum/cqrs-lite/eventstore"
)

// RepositoryOption configures a Repository.
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	observers []Observer
	detector  *ConflictDetector
	log       zerolog.Logger
}

// WithObservers adds observers notified after every successful save.
func WithObservers(observers ...Observer) RepositoryOption {
	return func(o *repositoryOptions) {
		o.observers = append(o.observers, observers...)
	}
}

// WithConflictDetector lets Save append after concurrently committed events that do not
// conflict with the ones being saved.
func WithConflictDetector(detector *ConflictDetector) RepositoryOption {
	return func(o *repositoryOptions) {
		o.detector = detector
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) RepositoryOption {
	return func(o *repositoryOptions) {
		o.log = log
	}
}

// Repository is an object that knows how to serialize a specific type of aggregate.
// It also keeps a reference to the store associated with this aggregate.
type Repository[T Aggregate] struct {
	factory    func() T
	store      eventstore.EventStore
	serializer Serializer
	observers  []Observer
	detector   *ConflictDetector
	log        zerolog.Logger
}

// NewRepository is a factory function that creates a new Repository object.
// factory must return a fresh, bound aggregate with no events applied.
func NewRepository[T Aggregate](
	factory func() T,
	store eventstore.EventStore,
	serializer Serializer,
	opts ...RepositoryOption,
) *Repository[T] {
	o := repositoryOptions{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T]{
		factory:    factory,
		store:      store,
		serializer: serializer,
		observers:  o.observers,
		detector:   o.detector,
		log:        o.log,
	}
}

// Load retrieves the specified aggregate from the underlying store
func (r *Repository[T]) Load(ctx context.Context, id DomainID) (T, error) {
	return r.LoadVersion(ctx, id, 0)
}

// LoadVersion rebuilds the aggregate from its first version events; 0 loads all of them.
func (r *Repository[T]) LoadVersion(ctx context.Context, id DomainID, version int) (T, error) {
	var zero T
	if id == nil {
		return zero, fmt.Errorf("%w: nil aggregate id", ErrInvalidArgument)
	}
	if version < 0 {
		return zero, fmt.Errorf("%w: negative version %d", ErrInvalidArgument, version)
	}

	history, err := r.store.Load(ctx, id.IDValue(), 0, version)
	if err != nil {
		return zero, err
	}
	if len(history) == 0 {
		return zero, &AggregateNotFoundError{AggregateID: id.IDValue()}
	}
	if version > 0 && history.Head() < version {
		return zero, &AggregateVersionError{AggregateID: id.IDValue(), Requested: version, Actual: history.Head()}
	}

	aggregate := r.factory()
	for _, record := range history {
		event, err := r.serializer.UnmarshalEvent(record)
		if err != nil {
			return zero, err
		}
		if err = aggregate.ApplyEvent(event); err != nil {
			return zero, fmt.Errorf("aggregate was unable to handle event %T: %w", event, err)
		}
	}
	return aggregate, nil
}

// Save persists the uncommitted events of aggregate under commitID, then clears them and
// notifies observers. When a ConflictDetector lets the events merge after a concurrent commit,
// the committed events are applied to aggregate so its version matches the stored head; if
// that replay fails, the events stay saved and Save returns ErrStaleAggregate.
func (r *Repository[T]) Save(ctx context.Context, aggregate T, commitID string) error {
	events := aggregate.UncommittedEvents()
	if len(events) == 0 {
		return nil
	}
	id := aggregate.ID()
	if id == nil {
		return fmt.Errorf("%w: aggregate has no id", ErrInvalidArgument)
	}
	aggregateID := id.IDValue()
	expected := aggregate.Version() - len(events)

	records, err := r.marshal(events, expected, commitID)
	if err != nil {
		return err
	}

	published := events
	var stale error
	err = r.store.Save(ctx, aggregateID, expected, records...)
	if errors.Is(err, eventstore.ErrVersionConflict) && r.detector != nil {
		var committed []Event
		committed, published, err = r.merge(ctx, aggregateID, expected, events, commitID)
		if err == nil {
			stale = catchUp(aggregate, committed)
		}
	}
	if err != nil {
		return err
	}

	aggregate.ClearUncommittedEvents()
	r.log.Debug().
		Str("aggregate_id", aggregateID).
		Int("expected_version", expected).
		Int("event_count", len(events)).
		Str("commit_id", commitID).
		Msg("events saved")

	notify(ctx, r.observers, aggregate, published)
	return stale
}

// merge appends events after the ones committed since expected when none of them conflicts.
// It returns the committed events and copies of the saved ones carrying their stored versions;
// the events themselves keep the versions they were raised with.
func (r *Repository[T]) merge(ctx context.Context, aggregateID string, expected int, events []Event, commitID string) ([]Event, []Event, error) {
	history, err := r.store.Load(ctx, aggregateID, expected+1, 0)
	if err != nil {
		return nil, nil, err
	}
	committed, err := r.unmarshal(history)
	if err != nil {
		return nil, nil, err
	}

	head := expected + len(history)
	if r.detector.ConflictsWith(events, committed) {
		return nil, nil, &ConflictingCommandError{AggregateID: aggregateID, Expected: expected, Actual: head}
	}

	records, err := r.marshal(events, head, commitID)
	if err != nil {
		return nil, nil, err
	}
	saved, err := r.unmarshal(records)
	if err != nil {
		return nil, nil, err
	}

	r.log.Info().
		Str("aggregate_id", aggregateID).
		Int("expected_version", expected).
		Int("actual_version", head).
		Msg("merging events after concurrent commit")
	if err = r.store.Save(ctx, aggregateID, head, records...); err != nil {
		return nil, nil, err
	}
	return committed, saved, nil
}

// catchUp applies events another writer committed first. They were checked not to conflict
// with the aggregate's own events, so applying them after those leaves the same state.
func catchUp(aggregate Aggregate, committed []Event) error {
	for _, event := range committed {
		if err := aggregate.ApplyEvent(event); err != nil {
			return fmt.Errorf("%w: replaying %T: %w", ErrStaleAggregate, event, err)
		}
	}
	return nil
}

func (r *Repository[T]) unmarshal(records []eventstore.Record) ([]Event, error) {
	events := make([]Event, 0, len(records))
	for _, record := range records {
		event, err := r.serializer.UnmarshalEvent(record)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

func (r *Repository[T]) marshal(events []Event, expected int, commitID string) ([]eventstore.Record, error) {
	records := make([]eventstore.Record, 0, len(events))
	for i, event := range events {
		record, err := r.serializer.MarshalEvent(event)
		if err != nil {
			return nil, fmt.Errorf("could not marshal event %T: %w", event, err)
		}
		record.Version = expected + i + 1
		record.CommitID = commitID
		records = append(records, record)
	}
	return records, nil
}

// Execute loads the aggregate, runs fn against it and saves what fn raised.
func (r *Repository[T]) Execute(ctx context.Context, id DomainID, commitID string, fn func(aggregate T) error) error {
	aggregate, err := r.Load(ctx, id)
	if err != nil {
		return err
	}
	if err = fn(aggregate); err != nil {
		return err
	}
	return r.Save(ctx, aggregate, commitID)
}
