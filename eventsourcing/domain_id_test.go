package eventsourcing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type BeerID struct {
	ID
}

func TestDomainID(t *testing.T) {
	t.Run("equal by kind and value", func(t *testing.T) {
		assert.True(t, IDsEqual(TodoID{NewID("1")}, TodoID{NewID("1")}))
		assert.False(t, IDsEqual(TodoID{NewID("1")}, TodoID{NewID("2")}))
		assert.False(t, IDsEqual(TodoID{NewID("1")}, BeerID{NewID("1")}))
		assert.False(t, IDsEqual(nil, TodoID{NewID("1")}))
	})

	t.Run("empty values are permitted", func(t *testing.T) {
		assert.True(t, IDsEqual(TodoID{NewID("")}, TodoID{}))
	})

	t.Run("hash depends on value only", func(t *testing.T) {
		assert.Equal(t, HashID(TodoID{NewID("1")}), HashID(BeerID{NewID("1")}))
		assert.NotEqual(t, HashID(TodoID{NewID("1")}), HashID(TodoID{NewID("2")}))
	})

	t.Run("guids", func(t *testing.T) {
		a, b := NewGUID(), NewGUID()
		assert.NotEmpty(t, a.Value)
		assert.NotEqual(t, a, b)
		assert.Equal(t, a.Value, a.String())
	})
}
