package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeChange(t *testing.T) {
	data := []byte(`{
		"eventName": "INSERT",
		"dynamodb": {
			"ApproximateCreationDateTime": 1700000000123,
			"Keys": {"order_id": {"S": "SO-001"}, "version": {"N": "2"}},
			"NewImage": {
				"order_id": {"S": "SO-001"},
				"version": {"N": "2"},
				"event_data": {"B": "eyJhIjoxfQ=="},
				"commit_id": {"S": "c-7"}
			}
		}
	}`)

	change, err := DecodeChange(data, "order_id", "version")
	require.NoError(t, err)
	assert.Equal(t, "INSERT", change.EventName)
	assert.Equal(t, "SO-001", change.AggregateID)
	assert.Equal(t, Record{Version: 2, Data: []byte(`{"a":1}`), CommitID: "c-7"}, change.Record)
	assert.Equal(t, int64(1700000000123), change.CreatedAt.UnixMilli())

	t.Run("creation precision", func(t *testing.T) {
		micros := []byte(`{"dynamodb":{"ApproximateCreationDateTime":1700000000123456,` +
			`"Keys":{"order_id":{"S":"SO-001"},"version":{"N":"1"}}}}`)
		change, err := DecodeChange(micros, "order_id", "version", WithCreationPrecision(time.Microsecond))
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000123456), change.CreatedAt.UnixMicro())

		seconds := []byte(`{"dynamodb":{"ApproximateCreationDateTime":1700000000.5,` +
			`"Keys":{"order_id":{"S":"SO-001"},"version":{"N":"1"}}}}`)
		change, err = DecodeChange(seconds, "order_id", "version", WithCreationPrecision(time.Second))
		require.NoError(t, err)
		assert.Equal(t, int64(1700000000500), change.CreatedAt.UnixMilli())
	})

	t.Run("missing section", func(t *testing.T) {
		_, err := DecodeChange([]byte(`{"eventName":"INSERT"}`), "order_id", "version")
		assert.Error(t, err)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := DecodeChange([]byte(`{"dynamodb":{"Keys":{"version":{"N":"1"}}}}`), "order_id", "version")
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodeChange([]byte(`{`), "order_id", "version")
		assert.Error(t, err)
	})
}
