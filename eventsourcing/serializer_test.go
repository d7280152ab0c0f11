package eventsourcing

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cannahum/cqrs-lite/eventstore"
	"github.com/cannahum/cqrs-lite/serialization"
)

func TestEventSerializer(t *testing.T) {
	j := newTodoSerializer()
	id := NewTodoID()

	t.Run("round trip keeps concrete id and headers", func(t *testing.T) {
		in := &TodoCreated{DomainEventModel: todoModel(id), Desc: "pitch yeast"}
		in.Version = 1
		in.Headers.Set("Tenant", "brewery-1")

		record, err := j.MarshalEvent(in)
		require.NoError(t, err)
		assert.Equal(t, 1, record.Version)

		out, err := j.UnmarshalEvent(record)
		require.NoError(t, err)
		created, ok := out.(*TodoCreated)
		require.True(t, ok)
		assert.Equal(t, in, created)
		assert.IsType(t, TodoID{}, created.AggregateID())
	})

	t.Run("record version wins", func(t *testing.T) {
		record, err := j.MarshalEvent(&TodoDone{DomainEventModel: todoModel(id)})
		require.NoError(t, err)
		record.Version = 4

		out, err := j.UnmarshalEvent(record)
		require.NoError(t, err)
		assert.Equal(t, 4, out.EventVersion())
	})

	t.Run("legacy envelope", func(t *testing.T) {
		j.Serializer().Registry().RegisterAs("TodoCreated", &TodoCreated{})
		record := eventstore.Record{
			Version: 1,
			Data:    []byte(`{"t":"TodoCreated","d":{"Desc":"from the old days","MessageID":"m-1"}}`),
		}

		out, err := j.UnmarshalEvent(record)
		require.NoError(t, err)
		created := out.(*TodoCreated)
		assert.Equal(t, "from the old days", created.Desc)
		assert.Equal(t, "m-1", created.MessageID)
		assert.Equal(t, 1, created.Version)
	})

	t.Run("unbound legacy type", func(t *testing.T) {
		_, err := j.UnmarshalEvent(eventstore.Record{Data: []byte(`{"t":"Nope","d":{}}`)})
		assert.Error(t, err)
	})

	t.Run("unbound tagged type", func(t *testing.T) {
		data, err := serialization.New(nil).Serialize(&TodoUnknown{})
		require.NoError(t, err)
		_, err = j.UnmarshalEvent(eventstore.Record{Version: 1, Data: data})
		assert.ErrorIs(t, err, serialization.ErrTypeResolution)
	})
}

func TestValueTypesSerialize(t *testing.T) {
	registry := serialization.NewRegistry(TodoID{})
	NewEventSerializer(registry)
	s := serialization.New(registry)

	in := CreateTodoCommand{
		CommandModel: CommandModel{
			ID:        TodoID{NewID("t-1")},
			MessageID: "m-1",
			Account:   NewAccount("a-1", "Ann"),
			At:        WhenFromMicros(1700000000123456),
		},
		Desc: "brew",
	}

	data, err := s.Serialize(in)
	require.NoError(t, err)

	out, err := s.Deserialize(data, reflect.TypeOf(CreateTodoCommand{}))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
