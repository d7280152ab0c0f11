package serialization

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeName(t *testing.T) {
	assert.Equal(t, "github.com/cannahum/cqrs-lite/serialization.orderID", TypeName(reflect.TypeOf(orderID{})))
	assert.Equal(t, "github.com/cannahum/cqrs-lite/serialization.orderID", TypeName(reflect.TypeOf(&orderID{})))
	assert.Equal(t, "int", TypeName(reflect.TypeOf(0)))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(orderID{}, &legacyID{})

	t.Run("lookup returns registered form", func(t *testing.T) {
		got, ok := r.Lookup(TypeName(reflect.TypeOf(legacyID{})))
		assert.True(t, ok)
		assert.Equal(t, reflect.TypeOf(&legacyID{}), got)

		_, ok = r.Lookup("missing")
		assert.False(t, ok)
	})

	t.Run("first name wins for writing", func(t *testing.T) {
		r.RegisterAs("v1.OrderID", orderID{})
		assert.Equal(t, TypeName(reflect.TypeOf(orderID{})), r.NameOf(reflect.TypeOf(orderID{})))

		got, ok := r.Lookup("v1.OrderID")
		assert.True(t, ok)
		assert.Equal(t, reflect.TypeOf(orderID{}), got)
	})

	t.Run("unregistered types use qualified name", func(t *testing.T) {
		assert.Equal(t, TypeName(reflect.TypeOf(line{})), r.NameOf(reflect.TypeOf(line{})))
	})

	t.Run("nil samples ignored", func(t *testing.T) {
		r.Register(nil)
		r.RegisterAs("", orderID{})
		_, ok := r.Lookup("")
		assert.False(t, ok)
	})
}
