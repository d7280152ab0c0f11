// Package eventbus publishes saved events to other services.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"

	"github.com/cannahum/cqrs-lite/eventsourcing"
	"github.com/cannahum/cqrs-lite/serialization"
)

// Message attribute names set on every published event.
const (
	AttributeEventType     = "EventType"
	AttributeAggregateID   = "AggregateId"
	AttributeVersion       = "Version"
	AttributeCorrelationID = "CorrelationId"
)

// ErrNoMessageGroup is returned when an event without an aggregate id is sent to a FIFO queue.
var ErrNoMessageGroup = errors.New("fifo queue needs an aggregate id as message group")

// SQSAPI is the part of the SQS client used by SQSPublisher.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher is an eventsourcing.Observer sending each saved event to a queue as tagged JSON.
// FIFO queues (url ending in .fifo) are grouped by aggregate and deduplicated by message id.
type SQSPublisher struct {
	api        SQSAPI
	queueURL   string
	fifo       bool
	serializer *serialization.Serializer
	filter     func(eventsourcing.Aggregate, eventsourcing.Event) bool
	log        zerolog.Logger
}

// Option configures an SQSPublisher.
type Option func(*SQSPublisher)

// WithFilter restricts publishing to events accepted by filter.
func WithFilter(filter func(eventsourcing.Aggregate, eventsourcing.Event) bool) Option {
	return func(p *SQSPublisher) {
		p.filter = filter
	}
}

// WithLogger sets the logger receiving publish failures.
func WithLogger(log zerolog.Logger) Option {
	return func(p *SQSPublisher) {
		p.log = log
	}
}

// NewSQSPublisher returns a publisher sending to queueURL.
func NewSQSPublisher(api SQSAPI, queueURL string, serializer *serialization.Serializer, opts ...Option) *SQSPublisher {
	p := &SQSPublisher{
		api:        api,
		queueURL:   queueURL,
		fifo:       strings.HasSuffix(queueURL, ".fifo"),
		serializer: serializer,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WillObserve implements eventsourcing.Observer
func (p *SQSPublisher) WillObserve(aggregate eventsourcing.Aggregate, event eventsourcing.Event) bool {
	return p.filter == nil || p.filter(aggregate, event)
}

// Observe implements eventsourcing.Observer
func (p *SQSPublisher) Observe(ctx context.Context, _ eventsourcing.Aggregate, event eventsourcing.Event) error {
	body, err := p.serializer.Serialize(event)
	if err != nil {
		return fmt.Errorf("encode %T: %w", event, err)
	}

	aggregateID := ""
	if id := event.AggregateID(); id != nil {
		aggregateID = id.IDValue()
	}
	if aggregateID == "" && p.fifo {
		return fmt.Errorf("%w: %T", ErrNoMessageGroup, event)
	}

	attrs := map[string]types.MessageAttributeValue{
		AttributeEventType: stringAttribute(p.serializer.Registry().NameOf(reflect.TypeOf(event))),
		AttributeVersion: {
			DataType:    aws.String("Number"),
			StringValue: aws.String(strconv.Itoa(event.EventVersion())),
		},
	}
	if aggregateID != "" {
		attrs[AttributeAggregateID] = stringAttribute(aggregateID)
	}
	if corr := event.EventHeaders().CorrelationID(); corr != "" {
		attrs[AttributeCorrelationID] = stringAttribute(corr)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(p.queueURL),
		MessageBody:       aws.String(string(body)),
		MessageAttributes: attrs,
	}
	if p.fifo {
		input.MessageGroupId = aws.String(aggregateID)
		input.MessageDeduplicationId = aws.String(event.EventMessageID())
	}

	out, err := p.api.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("publish %T of %s: %w", event, aggregateID, err)
	}
	p.log.Debug().
		Str("aggregate_id", aggregateID).
		Int("version", event.EventVersion()).
		Str("sqs_message_id", aws.ToString(out.MessageId)).
		Msg("event published")
	return nil
}

// OnObserveFailed implements eventsourcing.Observer
func (p *SQSPublisher) OnObserveFailed(err error) {
	p.log.Error().Err(err).Str("queue_url", p.queueURL).Msg("event not published")
}

func stringAttribute(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{
		DataType:    aws.String("String"),
		StringValue: aws.String(v),
	}
}
