package eventsourcing

import (
	"context"
	"fmt"
)

// Command is an instruction addressed to a single aggregate.
type Command interface {
	// AggregateID returns the id of the aggregate the command targets
	AggregateID() DomainID

	// CommandMessageID uniquely identifies this command message; it doubles as commit id
	CommandMessageID() string

	// CommandAccount returns who issued the command
	CommandAccount() Account

	// CommandAt returns when the command was issued
	CommandAt() When
}

// CommandModel provides a default implementation of a Command
type CommandModel struct {
	ID        DomainID
	MessageID string
	Account   Account
	At        When
}

// NewCommandModel returns a CommandModel issued now by who, with a fresh message id.
func NewCommandModel(id DomainID, who Account) CommandModel {
	return CommandModel{
		ID:        id,
		MessageID: NewGUID().Value,
		Account:   who,
		At:        Now(),
	}
}

// AggregateID implements the Command interface
func (c CommandModel) AggregateID() DomainID {
	return c.ID
}

// CommandMessageID implements the Command interface
func (c CommandModel) CommandMessageID() string {
	return c.MessageID
}

// CommandAccount implements the Command interface
func (c CommandModel) CommandAccount() Account {
	return c.Account
}

// CommandAt implements the Command interface
func (c CommandModel) CommandAt() When {
	return c.At
}

// CommandHandler executes one kind of command.
type CommandHandler interface {
	Handle(ctx context.Context, command Command) error
}

// CommandHandlerFunc adapts a function into a CommandHandler.
type CommandHandlerFunc func(ctx context.Context, command Command) error

// Handle implements CommandHandler
func (f CommandHandlerFunc) Handle(ctx context.Context, command Command) error {
	return f(ctx, command)
}

// HandlerFor adapts a function taking a concrete command type into a CommandHandler.
func HandlerFor[C Command](fn func(ctx context.Context, command C) error) CommandHandler {
	return CommandHandlerFunc(func(ctx context.Context, command Command) error {
		c, ok := command.(C)
		if !ok {
			return fmt.Errorf("%w: %T", ErrCommandHandlerNotFound, command)
		}
		return fn(ctx, c)
	})
}
