package eventsourcing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cannahum/cqrs-lite/eventstore"
)

// Saga coordinates a process spanning several aggregates. Every message it receives is
// recorded as its own history, and the commands it decides on are sent once it is saved.
type Saga interface {
	SagaID() string
	Version() int
	Transition(message Event) error
	UncommittedEvents() []Event
	ClearUncommittedEvents()
	UndispatchedCommands() []Command
	ClearUndispatchedCommands()
}

// SagaBase is embedded by sagas. Handlers are bound with HandleMessage, usually in the
// saga's constructor.
type SagaBase struct {
	id           string
	version      int
	router       *Router
	uncommitted  []Event
	undispatched []Command
}

// HandleMessage binds handler to messages of type T.
func HandleMessage[T Event](s *SagaBase, handler func(T)) error {
	return Register(s.routes(), handler)
}

func (s *SagaBase) routes() *Router {
	if s.router == nil {
		s.router = NewRouter()
	}
	return s.router
}

// SagaID returns the saga identifier.
func (s *SagaBase) SagaID() string {
	return s.id
}

// SetSagaID sets the saga identifier.
func (s *SagaBase) SetSagaID(id string) {
	s.id = id
}

// Version returns the number of messages handled so far.
func (s *SagaBase) Version() int {
	return s.version
}

// Transition hands message to its handler and records it.
func (s *SagaBase) Transition(message Event) error {
	if err := s.routes().Dispatch(message); err != nil {
		return err
	}
	s.uncommitted = append(s.uncommitted, message)
	s.version++
	return nil
}

// Dispatch queues command to be sent after the saga is saved.
func (s *SagaBase) Dispatch(command Command) {
	s.undispatched = append(s.undispatched, command)
}

// UncommittedEvents returns the messages handled since the last save.
func (s *SagaBase) UncommittedEvents() []Event {
	out := make([]Event, len(s.uncommitted))
	copy(out, s.uncommitted)
	return out
}

// ClearUncommittedEvents empties the message buffer; the version is kept.
func (s *SagaBase) ClearUncommittedEvents() {
	s.uncommitted = nil
}

// UndispatchedCommands returns the queued commands, oldest first.
func (s *SagaBase) UndispatchedCommands() []Command {
	out := make([]Command, len(s.undispatched))
	copy(out, s.undispatched)
	return out
}

// ClearUndispatchedCommands empties the command queue.
func (s *SagaBase) ClearUndispatchedCommands() {
	s.undispatched = nil
}

// CommandSender sends commands; *CommandDispatcher implements it.
type CommandSender interface {
	Send(ctx context.Context, command Command) error
}

// SagaRepository stores the messages handled by sagas of type T and sends their commands.
type SagaRepository[T Saga] struct {
	factory    func(id string) T
	store      eventstore.EventStore
	serializer Serializer
	sender     CommandSender
	log        zerolog.Logger
}

// NewSagaRepository returns a SagaRepository. factory must return a fresh saga with the given
// id and its handlers bound.
func NewSagaRepository[T Saga](
	factory func(id string) T,
	store eventstore.EventStore,
	serializer Serializer,
	sender CommandSender,
	log zerolog.Logger,
) *SagaRepository[T] {
	return &SagaRepository[T]{
		factory:    factory,
		store:      store,
		serializer: serializer,
		sender:     sender,
		log:        log,
	}
}

// Load replays the stored messages of saga id. A saga with no history is returned fresh,
// since a saga starts with the first message it handles. Replay sends no commands.
func (r *SagaRepository[T]) Load(ctx context.Context, id string) (T, error) {
	var zero T
	if id == "" {
		return zero, fmt.Errorf("%w: empty saga id", ErrInvalidArgument)
	}
	history, err := r.store.Load(ctx, id, 0, 0)
	if err != nil {
		return zero, err
	}

	saga := r.factory(id)
	for _, record := range history {
		message, err := r.serializer.UnmarshalEvent(record)
		if err != nil {
			return zero, err
		}
		if err = saga.Transition(message); err != nil {
			return zero, fmt.Errorf("saga was unable to handle message %T: %w", message, err)
		}
	}
	saga.ClearUncommittedEvents()
	saga.ClearUndispatchedCommands()
	return saga, nil
}

// Save stores the messages the saga handled, then sends its queued commands. Every command is
// attempted; their failures are joined into the returned error.
func (r *SagaRepository[T]) Save(ctx context.Context, saga T, commitID string) error {
	messages := saga.UncommittedEvents()
	if len(messages) > 0 {
		if saga.SagaID() == "" {
			return fmt.Errorf("%w: saga has no id", ErrInvalidArgument)
		}
		expected := saga.Version() - len(messages)
		records := make([]eventstore.Record, 0, len(messages))
		for i, message := range messages {
			record, err := r.serializer.MarshalEvent(message)
			if err != nil {
				return fmt.Errorf("could not marshal message %T: %w", message, err)
			}
			record.Version = expected + i + 1
			record.CommitID = commitID
			records = append(records, record)
		}
		if err := r.store.Save(ctx, saga.SagaID(), expected, records...); err != nil {
			return err
		}
		saga.ClearUncommittedEvents()
	}

	commands := saga.UndispatchedCommands()
	saga.ClearUndispatchedCommands()
	var errs []error
	for _, command := range commands {
		if err := r.sender.Send(ctx, command); err != nil {
			r.log.Error().Err(err).
				Str("saga_id", saga.SagaID()).
				Str("command", typeName(command)).
				Msg("saga command failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Handle loads saga id, hands it message and saves it under the message id.
func (r *SagaRepository[T]) Handle(ctx context.Context, id string, message Event) error {
	saga, err := r.Load(ctx, id)
	if err != nil {
		return err
	}
	if err = saga.Transition(message); err != nil {
		return err
	}
	return r.Save(ctx, saga, message.EventMessageID())
}
