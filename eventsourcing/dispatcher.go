package eventsourcing

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/cannahum/cqrs-lite/eventstore"
)

// CommandDispatcherBuilder collects command handlers at startup. Registration is explicit;
// nothing is discovered by scanning.
type CommandDispatcherBuilder struct {
	handlers map[reflect.Type]CommandHandler
	log      zerolog.Logger
}

// NewCommandDispatcherBuilder returns an empty builder.
func NewCommandDispatcherBuilder() *CommandDispatcherBuilder {
	return &CommandDispatcherBuilder{
		handlers: map[reflect.Type]CommandHandler{},
		log:      zerolog.Nop(),
	}
}

// WithLogger sets the logger of the built dispatcher.
func (b *CommandDispatcherBuilder) WithLogger(log zerolog.Logger) *CommandDispatcherBuilder {
	b.log = log
	return b
}

// Handle binds handler to commands of the same type as sample.
func (b *CommandDispatcherBuilder) Handle(sample Command, handler CommandHandler) error {
	if sample == nil || handler == nil {
		return fmt.Errorf("%w: nil command or handler", ErrInvalidArgument)
	}
	t := reflect.TypeOf(sample)
	if _, ok := b.handlers[t]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHandler, t)
	}
	b.handlers[t] = handler
	return nil
}

// Build returns a dispatcher holding the registered handlers. The builder should be
// discarded afterwards.
func (b *CommandDispatcherBuilder) Build() *CommandDispatcher {
	handlers := make(map[reflect.Type]CommandHandler, len(b.handlers))
	for t, h := range b.handlers {
		handlers[t] = h
	}
	return &CommandDispatcher{handlers: handlers, log: b.log}
}

// CommandDispatcher sends each command to its single handler.
// It is read-only after Build and safe for concurrent use.
type CommandDispatcher struct {
	handlers map[reflect.Type]CommandHandler
	log      zerolog.Logger
}

// Send executes command with its registered handler.
func (d *CommandDispatcher) Send(ctx context.Context, command Command) error {
	if command == nil {
		return fmt.Errorf("%w: nil command", ErrInvalidArgument)
	}
	handler, ok := d.handlers[reflect.TypeOf(command)]
	if !ok {
		return fmt.Errorf("%w: %T", ErrCommandHandlerNotFound, command)
	}

	err := handler.Handle(ctx, command)
	event := d.log.Debug()
	if err != nil {
		event = d.log.Warn().Err(err)
	}
	event.
		Str("command", typeName(command)).
		Str("message_id", command.CommandMessageID()).
		Msg("command handled")
	return err
}

// WithRetry retries handler on version conflicts, up to maxRetries times with exponential
// backoff. Other errors are returned at once.
func WithRetry(handler CommandHandler, maxRetries uint64) CommandHandler {
	return WithRetryBackOff(handler, func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries)
	})
}

// WithRetryBackOff is WithRetry with a caller supplied policy, created once per command.
func WithRetryBackOff(handler CommandHandler, policy func() backoff.BackOff) CommandHandler {
	return CommandHandlerFunc(func(ctx context.Context, command Command) error {
		op := func() error {
			err := handler.Handle(ctx, command)
			if err != nil && !errors.Is(err, eventstore.ErrVersionConflict) {
				return backoff.Permanent(err)
			}
			return err
		}
		return backoff.Retry(op, backoff.WithContext(policy(), ctx))
	})
}
