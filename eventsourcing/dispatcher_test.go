package eventsourcing

import (
	"context"
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cannahum/cqrs-lite/eventstore"
)

// CreateTodoCommand
type CreateTodoCommand struct {
	CommandModel
	Desc string
}

// MarkDoneCommand
type MarkDoneCommand struct {
	CommandModel
}

// DoUnknown - consider this an invalid command for these tests
type DoUnknown struct {
	CommandModel
}

func TestCommandDispatcher(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(NewMyTodo, eventstore.GetLocalStore(), newTodoSerializer())

	b := NewCommandDispatcherBuilder()
	require.NoError(t, b.Handle(&CreateTodoCommand{}, HandlerFor(func(ctx context.Context, c *CreateTodoCommand) error {
		todo, err := CreateTodo(c.ID.(TodoID), c.Desc)
		if err != nil {
			return err
		}
		return repo.Save(ctx, todo, c.MessageID)
	})))
	require.NoError(t, b.Handle(&MarkDoneCommand{}, HandlerFor(func(ctx context.Context, c *MarkDoneCommand) error {
		return repo.Execute(ctx, c.ID, c.MessageID, (*MyTodo).MarkDone)
	})))

	t.Run("duplicate handler", func(t *testing.T) {
		err := b.Handle(&MarkDoneCommand{}, CommandHandlerFunc(func(context.Context, Command) error { return nil }))
		assert.True(t, errors.Is(err, ErrDuplicateHandler))
		assert.True(t, errors.Is(b.Handle(nil, nil), ErrInvalidArgument))
	})

	d := b.Build()
	id := NewTodoID()

	t.Run("send routes to handler", func(t *testing.T) {
		require.NoError(t, d.Send(ctx, &CreateTodoCommand{CommandModel: NewCommandModel(id, tester), Desc: "brew"}))
		require.NoError(t, d.Send(ctx, &MarkDoneCommand{CommandModel: NewCommandModel(id, tester)}))

		todo, err := repo.Load(ctx, id)
		require.NoError(t, err)
		assert.True(t, todo.Done)
	})

	t.Run("business errors surface", func(t *testing.T) {
		err := d.Send(ctx, &MarkDoneCommand{CommandModel: NewCommandModel(id, tester)})
		assert.True(t, errors.Is(err, ErrDomainRuleViolation))
	})

	t.Run("unknown command", func(t *testing.T) {
		err := d.Send(ctx, &DoUnknown{CommandModel: NewCommandModel(id, tester)})
		assert.True(t, errors.Is(err, ErrCommandHandlerNotFound))
		assert.True(t, errors.Is(d.Send(ctx, nil), ErrInvalidArgument))
	})
}

func TestWithRetry(t *testing.T) {
	ctx := context.Background()
	conflict := &eventstore.VersionConflictError{AggregateID: "a", Expected: 1, Actual: 2}
	policy := func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)
	}
	cmd := &MarkDoneCommand{CommandModel: NewCommandModel(NewTodoID(), tester)}

	t.Run("retries version conflicts", func(t *testing.T) {
		calls := 0
		h := WithRetryBackOff(CommandHandlerFunc(func(context.Context, Command) error {
			calls++
			if calls < 3 {
				return conflict
			}
			return nil
		}), policy)

		assert.NoError(t, h.Handle(ctx, cmd))
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		h := WithRetryBackOff(CommandHandlerFunc(func(context.Context, Command) error {
			calls++
			return conflict
		}), policy)

		err := h.Handle(ctx, cmd)
		assert.True(t, errors.Is(err, eventstore.ErrVersionConflict))
		assert.Equal(t, 4, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		violation := NewDomainRuleViolation(&MyTodo{}, "no")
		h := WithRetryBackOff(CommandHandlerFunc(func(context.Context, Command) error {
			calls++
			return violation
		}), policy)

		err := h.Handle(ctx, cmd)
		assert.True(t, errors.Is(err, ErrDomainRuleViolation))
		assert.Equal(t, 1, calls)
	})

	t.Run("default policy succeeds first time", func(t *testing.T) {
		h := WithRetry(CommandHandlerFunc(func(context.Context, Command) error { return nil }), 2)
		assert.NoError(t, h.Handle(ctx, cmd))
	})
}
