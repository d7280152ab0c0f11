package eventbus_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	uuid "github.com/satori/go.uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cannahum/cqrs-lite/eventbus"
	"github.com/cannahum/cqrs-lite/eventsourcing"
	"github.com/cannahum/cqrs-lite/eventstore"
	"github.com/cannahum/cqrs-lite/examples/sales"
	"github.com/cannahum/cqrs-lite/utils/testutils"
)

type fakeSQS struct {
	sent []*sqs.SendMessageInput
	err  error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String(fmt.Sprintf("m-%d", len(f.sent)))}, nil
}

var clerk = eventsourcing.NewAccount("clerk-1", "Clerk")

func placeOrder(t *testing.T, repo *sales.Repository) sales.SalesOrderID {
	id := sales.NewSalesOrderID()
	beer, err := sales.NewBeerName("IPA")
	require.NoError(t, err)
	qty, err := sales.NewQuantity(24)
	require.NoError(t, err)
	order, err := sales.CreateSalesOrder(id, sales.NewSalesOrderNumber("SO-001"), beer, qty, sales.NewPrice(99.99, "EUR"), "corr-1", clerk)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), order, "commit-1"))
	return id
}

func TestSQSPublisher(t *testing.T) {
	serializer := sales.NewSerializer()
	api := &fakeSQS{}
	publisher := eventbus.NewSQSPublisher(api, "https://sqs.local/000000000000/orders", serializer.Serializer())
	repo := eventsourcing.NewRepository(sales.NewSalesOrder, eventstore.GetLocalStore(), serializer,
		eventsourcing.WithObservers(publisher))

	id := placeOrder(t, repo)
	require.Len(t, api.sent, 1)

	in := api.sent[0]
	assert.Equal(t, "https://sqs.local/000000000000/orders", aws.ToString(in.QueueUrl))
	assert.Nil(t, in.MessageGroupId)
	assert.Nil(t, in.MessageDeduplicationId)
	assert.Equal(t, id.IDValue(), aws.ToString(in.MessageAttributes[eventbus.AttributeAggregateID].StringValue))
	assert.Equal(t, "1", aws.ToString(in.MessageAttributes[eventbus.AttributeVersion].StringValue))
	assert.Equal(t, "Number", aws.ToString(in.MessageAttributes[eventbus.AttributeVersion].DataType))
	assert.Equal(t, "corr-1", aws.ToString(in.MessageAttributes[eventbus.AttributeCorrelationID].StringValue))
	assert.Equal(t, "github.com/cannahum/cqrs-lite/examples/sales.SalesOrderCreated",
		aws.ToString(in.MessageAttributes[eventbus.AttributeEventType].StringValue))

	v, err := serializer.Serializer().Deserialize([]byte(aws.ToString(in.MessageBody)), nil)
	require.NoError(t, err)
	created, ok := v.(*sales.SalesOrderCreated)
	require.True(t, ok)
	assert.Equal(t, 99.99, created.UnitPrice.Amount())
	assert.True(t, eventsourcing.IDsEqual(id, created.AggregateID()))
}

func TestSQSPublisher_Fifo(t *testing.T) {
	serializer := sales.NewSerializer()
	api := &fakeSQS{}
	publisher := eventbus.NewSQSPublisher(api, "https://sqs.local/000000000000/orders.fifo", serializer.Serializer())
	repo := eventsourcing.NewRepository(sales.NewSalesOrder, eventstore.GetLocalStore(), serializer,
		eventsourcing.WithObservers(publisher))

	id := placeOrder(t, repo)
	require.NoError(t, repo.Execute(context.Background(), id, "commit-2", func(o *sales.SalesOrder) error {
		return o.Prepare("corr-2", clerk)
	}))
	require.Len(t, api.sent, 2)

	for _, in := range api.sent {
		assert.Equal(t, id.IDValue(), aws.ToString(in.MessageGroupId))
		assert.NotEmpty(t, aws.ToString(in.MessageDeduplicationId))
	}
	assert.NotEqual(t, aws.ToString(api.sent[0].MessageDeduplicationId), aws.ToString(api.sent[1].MessageDeduplicationId))
	assert.Equal(t, "2", aws.ToString(api.sent[1].MessageAttributes[eventbus.AttributeVersion].StringValue))
}

type failureRecorder struct {
	*eventbus.SQSPublisher
	failures []error
}

func (r *failureRecorder) OnObserveFailed(err error) {
	r.failures = append(r.failures, err)
	r.SQSPublisher.OnObserveFailed(err)
}

func TestSQSPublisher_FilterAndFailure(t *testing.T) {
	serializer := sales.NewSerializer()
	api := &fakeSQS{}
	onlyPrepared := eventbus.WithFilter(func(_ eventsourcing.Aggregate, e eventsourcing.Event) bool {
		_, ok := e.(*sales.SalesOrderPrepared)
		return ok
	})
	publisher := eventbus.NewSQSPublisher(api, "https://sqs.local/000000000000/orders", serializer.Serializer(), onlyPrepared)
	recorder := &failureRecorder{SQSPublisher: publisher}
	repo := eventsourcing.NewRepository(sales.NewSalesOrder, eventstore.GetLocalStore(), serializer,
		eventsourcing.WithObservers(recorder))

	id := placeOrder(t, repo)
	assert.Empty(t, api.sent)

	api.err = errors.New("queue unavailable")
	err := repo.Execute(context.Background(), id, "commit-2", func(o *sales.SalesOrder) error {
		return o.Prepare("corr-2", clerk)
	})
	require.NoError(t, err, "publish failures do not fail the save")
	require.Len(t, recorder.failures, 1)
	assert.ErrorIs(t, recorder.failures[0], api.err)

	order, err := repo.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, sales.StatusPrepared, order.Status())
}

func TestSQSPublisher_Queue(t *testing.T) {
	testutils.RequireAWS(t)
	ctx := context.Background()
	client := sqs.NewFromConfig(testutils.GetAWSCfg())
	url := testutils.CreateTestQueue("sales_events_"+uuid.NewV4().String()[:8], true, client)
	defer testutils.DestroyQueue(client, url)

	serializer := sales.NewSerializer()
	repo := eventsourcing.NewRepository(sales.NewSalesOrder, eventstore.GetLocalStore(), serializer,
		eventsourcing.WithObservers(eventbus.NewSQSPublisher(client, url, serializer.Serializer())))

	id := placeOrder(t, repo)
	require.NoError(t, repo.Execute(ctx, id, "commit-2", func(o *sales.SalesOrder) error {
		return o.Prepare("corr-2", clerk)
	}))

	messages := testutils.ReceiveTestMessages(client, url, 10)
	require.Len(t, messages, 2)
	for i, m := range messages {
		assert.Equal(t, id.IDValue(), aws.ToString(m.MessageAttributes[eventbus.AttributeAggregateID].StringValue))
		assert.Equal(t, fmt.Sprint(i+1), aws.ToString(m.MessageAttributes[eventbus.AttributeVersion].StringValue))
	}
}

func TestSQSPublisher_NoAggregateID(t *testing.T) {
	ctx := context.Background()
	serializer := sales.NewSerializer()
	event := &sales.SalesOrderPrepared{}

	t.Run("standard queue omits the attribute", func(t *testing.T) {
		api := &fakeSQS{}
		publisher := eventbus.NewSQSPublisher(api, "https://sqs.local/000000000000/orders", serializer.Serializer())
		require.NoError(t, publisher.Observe(ctx, nil, event))
		require.Len(t, api.sent, 1)
		_, ok := api.sent[0].MessageAttributes[eventbus.AttributeAggregateID]
		assert.False(t, ok)
	})

	t.Run("fifo queue refuses", func(t *testing.T) {
		api := &fakeSQS{}
		publisher := eventbus.NewSQSPublisher(api, "https://sqs.local/000000000000/orders.fifo", serializer.Serializer())
		err := publisher.Observe(ctx, nil, event)
		assert.ErrorIs(t, err, eventbus.ErrNoMessageGroup)
		assert.Empty(t, api.sent)
	})
}
