package testutils

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// CreateTestQueue creates a queue named name (with the .fifo suffix when isFifo) and returns its url.
func CreateTestQueue(name string, isFifo bool, q *sqs.Client) string {
	queueName := name
	var attrs map[string]string
	if isFifo {
		queueName = fmt.Sprintf("%s.fifo", name)
		attrs = map[string]string{
			"FifoQueue":                 "true",
			"ContentBasedDeduplication": "true",
		}
	}

	qq, err := q.CreateQueue(context.TODO(), &sqs.CreateQueueInput{
		QueueName:  aws.String(queueName),
		Attributes: attrs,
	})
	if err != nil {
		panic(err)
	}
	return *qq.QueueUrl
}

// ReceiveTestMessages drains up to max messages from the queue at url, deleting what it reads.
func ReceiveTestMessages(q *sqs.Client, url string, max int32) []types.Message {
	out, err := q.ReceiveMessage(context.TODO(), &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(url),
		MaxNumberOfMessages:   max,
		WaitTimeSeconds:       1,
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		panic(err)
	}
	for _, m := range out.Messages {
		_, _ = q.DeleteMessage(context.TODO(), &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(url),
			ReceiptHandle: m.ReceiptHandle,
		})
	}
	return out.Messages
}

// DestroyQueue deletes the queue at url, reporting failures without panicking.
func DestroyQueue(q *sqs.Client, url string) {
	_, err := q.DeleteQueue(context.TODO(), &sqs.DeleteQueueInput{QueueUrl: aws.String(url)})
	if err != nil {
		fmt.Printf("failed to delete test queue %s\n", url)
	}
}
