package eventstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog"
)

// ConditionalCheckFailed is const for DB error
const ConditionalCheckFailed = "ConditionalCheckFailed"

// maxTransactItems is the DynamoDB limit on actions per transaction; one is kept for the head check.
const maxTransactItems = 25

const (
	dataAttribute   = "event_data"
	commitAttribute = "commit_id"
)

// DynamoDBAPI is the part of the DynamoDB client used by DynamoDBStore.
type DynamoDBAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// DynamoDBStore is an event store implementation using DynamoDB
// This is an object that represents metadata on this table
type DynamoDBStore struct {
	tableName string
	hashKey   string
	rangeKey  string
	api       DynamoDBAPI
	log       zerolog.Logger
}

// DynamoDBOption configures a DynamoDBStore.
type DynamoDBOption func(*DynamoDBStore)

// WithDynamoDBLogger sets the logger used for write diagnostics.
func WithDynamoDBLogger(log zerolog.Logger) DynamoDBOption {
	return func(s *DynamoDBStore) {
		s.log = log
	}
}

// GetDynamoDBStore returns a new DB store instance
func GetDynamoDBStore(tableName, partitionKey, rangeKey string, db DynamoDBAPI, opts ...DynamoDBOption) *DynamoDBStore {
	store := &DynamoDBStore{
		tableName: tableName,
		hashKey:   partitionKey,
		rangeKey:  rangeKey,
		api:       db,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Load implements the EventStore interface and reads all events for a specific aggregateID
func (s *DynamoDBStore) Load(ctx context.Context, aggregateID string, fromVersion, toVersion int) (History, error) {
	input := &dynamodb.QueryInput{
		TableName:      aws.String(s.tableName),
		Select:         types.SelectAllAttributes,
		ConsistentRead: aws.Bool(true),
		ExpressionAttributeNames: map[string]string{
			"#key": s.hashKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":key": &types.AttributeValueMemberS{Value: aggregateID},
		},
	}

	if toVersion > 0 {
		input.KeyConditionExpression = aws.String("#key = :key AND #partition BETWEEN :from AND :to")
		input.ExpressionAttributeNames["#partition"] = s.rangeKey
		input.ExpressionAttributeValues[":from"] = &types.AttributeValueMemberN{Value: strconv.Itoa(fromVersion)}
		input.ExpressionAttributeValues[":to"] = &types.AttributeValueMemberN{Value: strconv.Itoa(toVersion)}
	} else if fromVersion > 0 {
		input.KeyConditionExpression = aws.String("#key = :key AND #partition >= :from")
		input.ExpressionAttributeNames["#partition"] = s.rangeKey
		input.ExpressionAttributeValues[":from"] = &types.AttributeValueMemberN{Value: strconv.Itoa(fromVersion)}
	} else {
		input.KeyConditionExpression = aws.String("#key = :key")
	}

	history := History{}
	paginator := dynamodb.NewQueryPaginator(s.api, input)
	for paginator.HasMorePages() {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query events of %s: %w", aggregateID, err)
		}
		for _, item := range out.Items {
			record, err := s.unmarshalRecord(item)
			if err != nil {
				return nil, err
			}
			history = append(history, record)
		}
	}
	return history, nil
}

func (s *DynamoDBStore) unmarshalRecord(item map[string]types.AttributeValue) (Record, error) {
	var record Record
	if err := attributevalue.UnmarshalMap(item, &record); err != nil {
		return Record{}, err
	}
	av, ok := item[s.rangeKey]
	if !ok {
		return Record{}, fmt.Errorf("item is missing range key %s", s.rangeKey)
	}
	if err := attributevalue.Unmarshal(av, &record.Version); err != nil {
		return Record{}, err
	}
	return record, nil
}

// Save implements the EventStore interface and stores the records in a single DynamoDB transaction
func (s *DynamoDBStore) Save(ctx context.Context, aggregateID string, expectedVersion int, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkContiguous(expectedVersion, records); err != nil {
		return err
	}
	if len(records) >= maxTransactItems {
		return fmt.Errorf("not implemented: can't save %d events at a time", len(records))
	}

	input := &dynamodb.TransactWriteItemsInput{}

	if expectedVersion > 0 {
		input.TransactItems = append(input.TransactItems, types.TransactWriteItem{
			ConditionCheck: &types.ConditionCheck{
				TableName:                aws.String(s.tableName),
				Key:                      s.key(aggregateID, expectedVersion),
				ConditionExpression:      aws.String("attribute_exists(#version)"),
				ExpressionAttributeNames: map[string]string{"#version": s.rangeKey},
			},
		})
	}

	for _, e := range records {
		update := "set #data = :r"
		names := map[string]string{"#version": s.rangeKey, "#data": dataAttribute}
		values := map[string]types.AttributeValue{
			":r": &types.AttributeValueMemberB{Value: e.Data},
		}
		if e.CommitID != "" {
			update += ", #commit = :c"
			names["#commit"] = commitAttribute
			values[":c"] = &types.AttributeValueMemberS{Value: e.CommitID}
		}

		input.TransactItems = append(input.TransactItems, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 aws.String(s.tableName),
				Key:                       s.key(aggregateID, e.Version),
				ExpressionAttributeNames:  names,
				ExpressionAttributeValues: values,
				ConditionExpression:       aws.String("attribute_not_exists(#version)"),
				UpdateExpression:          aws.String(update),
			},
		})
	}

	_, err := s.api.TransactWriteItems(ctx, input)
	if err == nil {
		return nil
	}

	var txnCanceled *types.TransactionCanceledException
	if errors.As(err, &txnCanceled) {
		for _, reason := range txnCanceled.CancellationReasons {
			if reason.Code != nil && *reason.Code == ConditionalCheckFailed {
				return s.ensureIdempotent(ctx, aggregateID, expectedVersion, records...)
			}
		}
	}
	return fmt.Errorf("write events of %s: %w", aggregateID, err)
}

func (s *DynamoDBStore) key(aggregateID string, version int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		s.hashKey:  &types.AttributeValueMemberS{Value: aggregateID},
		s.rangeKey: &types.AttributeValueMemberN{Value: strconv.Itoa(version)},
	}
}

// ensureIdempotent accepts a rejected batch that is already stored byte for byte.
func (s *DynamoDBStore) ensureIdempotent(ctx context.Context, aggregateID string, expectedVersion int, records ...Record) error {
	history, err := s.Load(ctx, aggregateID, 0, 0)
	if err != nil {
		return err
	}

	last := records[len(records)-1].Version
	if history.Head() >= last && len(history) >= last {
		if sameRecords(history[expectedVersion:last], records) {
			s.log.Debug().
				Str("aggregate_id", aggregateID).
				Int("expected_version", expectedVersion).
				Int("event_count", len(records)).
				Msg("batch already stored")
			return nil
		}
	}

	s.log.Debug().
		Str("aggregate_id", aggregateID).
		Int("expected_version", expectedVersion).
		Int("actual_version", history.Head()).
		Msg("conditional check failed")
	return &VersionConflictError{AggregateID: aggregateID, Expected: expectedVersion, Actual: history.Head()}
}
