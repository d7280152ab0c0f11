package testutils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CreateTestTable creates an event table keyed by hashKey (string) and rangeKey (number)
// and waits until it is active.
func CreateTestTable(tableName, hashKey, rangeKey string, db *dynamodb.Client) {
	input := &dynamodb.CreateTableInput{
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(hashKey),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String(rangeKey),
				AttributeType: types.ScalarAttributeTypeN,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(hashKey),
				KeyType:       types.KeyTypeHash,
			},
			{
				AttributeName: aws.String(rangeKey),
				KeyType:       types.KeyTypeRange,
			},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(1),
			WriteCapacityUnits: aws.Int64(1),
		},
		TableName: aws.String(tableName),
	}

	_, err := db.CreateTable(context.TODO(), input)
	if err != nil {
		var inUse *types.ResourceInUseException
		if !errors.As(err, &inUse) {
			panic(err)
		}
		fmt.Println("Table already exists")
		return
	}

	maxWaitTime := time.Minute
	waiter := dynamodb.NewTableExistsWaiter(db)
	err = waiter.Wait(context.TODO(), &dynamodb.DescribeTableInput{TableName: aws.String(tableName)}, maxWaitTime)
	if err != nil {
		panic(err)
	}
	fmt.Printf("table %s is ready for use\n", tableName)
}

// DestroyTestTable - Destroy the local DynamoDB table created for your test
// If you're using a table in AWS (remote), then don't destroy, reuse instead.
func DestroyTestTable(tableName string, db *dynamodb.Client) {
	_, err := db.DeleteTable(context.TODO(), &dynamodb.DeleteTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		panic(fmt.Sprintf("Could not delete table: %v", err))
	}
	fmt.Println("Deleted test table")
}
