package eventsourcing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateRoot_RaiseEvent(t *testing.T) {
	id := NewTodoID()
	todo, err := CreateTodo(id, "mash")
	require.NoError(t, err)
	require.NoError(t, todo.MarkDone())
	require.NoError(t, todo.AddNote("sparge at 78C"))

	t.Run("version equals raised count", func(t *testing.T) {
		assert.Equal(t, 3, todo.Version())
		events := todo.UncommittedEvents()
		require.Len(t, events, 3)
		for i, e := range events {
			assert.Equal(t, i+1, e.EventVersion())
		}
		assert.IsType(t, &TodoCreated{}, events[0])
		assert.IsType(t, &TodoDone{}, events[1])
		assert.IsType(t, &TodoNoted{}, events[2])
	})

	t.Run("id is taken from the creation event", func(t *testing.T) {
		assert.True(t, IDsEqual(id, todo.ID()))
	})

	t.Run("replay rebuilds state without buffering", func(t *testing.T) {
		replayed := NewMyTodo()
		for _, e := range todo.UncommittedEvents() {
			require.NoError(t, replayed.ApplyEvent(e))
		}
		assert.Equal(t, todo.Version(), replayed.Version())
		assert.Equal(t, todo.Desc, replayed.Desc)
		assert.Equal(t, todo.Done, replayed.Done)
		assert.Equal(t, todo.Notes, replayed.Notes)
		assert.Empty(t, replayed.UncommittedEvents())
	})

	t.Run("returned buffer is a copy", func(t *testing.T) {
		events := todo.UncommittedEvents()
		events[0] = nil
		assert.NotNil(t, todo.UncommittedEvents()[0])
	})

	t.Run("clear keeps version", func(t *testing.T) {
		todo.ClearUncommittedEvents()
		assert.Empty(t, todo.UncommittedEvents())
		assert.Equal(t, 3, todo.Version())
	})
}

func TestAggregateRoot_Rules(t *testing.T) {
	_, err := CreateTodo(NewTodoID(), "")
	var violation *DomainRuleViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "MyTodo", violation.AggregateType)

	todo, _ := CreateTodo(NewTodoID(), "ferment")
	require.NoError(t, todo.MarkDone())
	err = todo.MarkDone()
	assert.True(t, errors.Is(err, ErrDomainRuleViolation))
	assert.Equal(t, 2, todo.Version())
	assert.Len(t, todo.UncommittedEvents(), 2)
}

func TestAggregateRoot_ApplyEvent(t *testing.T) {
	t.Run("unbound root", func(t *testing.T) {
		var root AggregateRoot
		err := root.ApplyEvent(&TodoDone{})
		assert.Error(t, err)
		assert.Equal(t, 0, root.Version())
	})

	t.Run("nil event", func(t *testing.T) {
		err := NewMyTodo().ApplyEvent(nil)
		assert.True(t, errors.Is(err, ErrInvalidArgument))
	})

	t.Run("missing handler keeps version", func(t *testing.T) {
		todo := NewMyTodo()
		unknown := &TodoUnknown{}
		err := todo.ApplyEvent(unknown)
		assert.True(t, errors.Is(err, ErrHandlerNotFound))
		assert.Equal(t, 0, todo.Version())
		assert.Equal(t, 0, unknown.EventVersion())
	})

	t.Run("preassigned version is kept", func(t *testing.T) {
		todo := NewMyTodo()
		e := &TodoCreated{DomainEventModel: todoModel(NewTodoID()), Desc: "x"}
		e.Version = 7
		require.NoError(t, todo.ApplyEvent(e))
		assert.Equal(t, 7, e.EventVersion())
		assert.Equal(t, 1, todo.Version())
	})

	t.Run("explicit router", func(t *testing.T) {
		var root AggregateRoot
		var seen []string
		err := root.UseRouter(DispatchFunc(func(e Event) error {
			switch e.(type) {
			case *TodoCreated:
				seen = append(seen, "created")
			default:
				return NewHandlerNotFoundError(&root, e)
			}
			return nil
		}))
		require.NoError(t, err)

		require.NoError(t, root.RaiseEvent(&TodoCreated{DomainEventModel: todoModel(NewTodoID())}))
		assert.Equal(t, []string{"created"}, seen)
		assert.Equal(t, 1, root.Version())

		err = root.RaiseEvent(&TodoDone{})
		assert.True(t, errors.Is(err, ErrHandlerNotFound))
		assert.Len(t, root.UncommittedEvents(), 1)

		assert.Error(t, root.UseRouter(nil))
	})
}

func TestAggregateRoot_Snapshot(t *testing.T) {
	id := NewTodoID()
	todo, _ := CreateTodo(id, "dry hop")
	require.NoError(t, todo.MarkDone())

	m := todo.Snapshot()
	require.NotNil(t, m)
	assert.Equal(t, id.IDValue(), m.MementoID())
	assert.Equal(t, 2, m.MementoVersion())
	assert.Equal(t, "dry hop", m.(*todoMemento).Desc)
	assert.True(t, m.(*todoMemento).Done)

	var root AggregateRoot
	assert.Nil(t, root.Snapshot())
}

func TestSameAggregate(t *testing.T) {
	id := NewTodoID()
	a, _ := CreateTodo(id, "a")
	b, _ := CreateTodo(id, "b")
	c, _ := CreateTodo(NewTodoID(), "c")

	assert.True(t, SameAggregate(a, b))
	assert.False(t, SameAggregate(a, c))
	assert.False(t, SameAggregate(a, nil))
}
