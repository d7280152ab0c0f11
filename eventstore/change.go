package eventstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Change is one stored record as reported by the table's change stream.
type Change struct {
	EventName   string
	AggregateID string
	Record      Record
	CreatedAt   time.Time
}

type streamRecord struct {
	EventName string `json:"eventName"`
	DynamoDB  *struct {
		ApproximateCreationDateTime json.Number                `json:"ApproximateCreationDateTime"`
		Keys                        map[string]streamAttribute `json:"Keys"`
		NewImage                    map[string]streamAttribute `json:"NewImage"`
	} `json:"dynamodb"`
}

type streamAttribute struct {
	S *string `json:"S"`
	N *string `json:"N"`
	B []byte  `json:"B"`
}

// ChangeOption configures DecodeChange.
type ChangeOption func(*changeOptions)

type changeOptions struct {
	precision time.Duration
}

// WithCreationPrecision sets the unit of ApproximateCreationDateTime. Kinesis Data Streams for
// DynamoDB writes milliseconds unless the stream is set to microseconds; records read from
// DynamoDB Streams directly carry seconds.
func WithCreationPrecision(unit time.Duration) ChangeOption {
	return func(o *changeOptions) {
		if unit > 0 {
			o.precision = unit
		}
	}
}

// DecodeChange reads a DynamoDB Streams change record, as forwarded through Kinesis, written
// for a table keyed by hashKey and rangeKey. Creation times are read as milliseconds by default.
func DecodeChange(data []byte, hashKey, rangeKey string, opts ...ChangeOption) (Change, error) {
	o := changeOptions{precision: time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}

	var sr streamRecord
	if err := json.Unmarshal(data, &sr); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if sr.DynamoDB == nil {
		return Change{}, errors.New("decode change: missing dynamodb section")
	}

	ddb := sr.DynamoDB
	change := Change{EventName: sr.EventName}

	hash, ok := ddb.Keys[hashKey]
	if !ok || hash.S == nil {
		return Change{}, fmt.Errorf("decode change: missing key %s", hashKey)
	}
	change.AggregateID = *hash.S

	version, ok := ddb.Keys[rangeKey]
	if !ok || version.N == nil {
		return Change{}, fmt.Errorf("decode change: missing key %s", rangeKey)
	}
	v, err := strconv.Atoi(*version.N)
	if err != nil {
		return Change{}, fmt.Errorf("decode change: version: %w", err)
	}
	change.Record.Version = v

	if data, ok := ddb.NewImage[dataAttribute]; ok {
		change.Record.Data = data.B
	}
	if commit, ok := ddb.NewImage[commitAttribute]; ok && commit.S != nil {
		change.Record.CommitID = *commit.S
	}

	if ddb.ApproximateCreationDateTime != "" {
		change.CreatedAt = creationTime(ddb.ApproximateCreationDateTime, o.precision)
	}
	return change, nil
}

func creationTime(n json.Number, unit time.Duration) time.Time {
	if i, err := n.Int64(); err == nil {
		return time.Unix(0, i*int64(unit)).UTC()
	}
	f, err := n.Float64()
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, int64(f*float64(unit))).UTC()
}
