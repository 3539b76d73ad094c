package dispatch

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// kindAttribute names the SQS message attribute carrying the event kind.
const kindAttribute = "event_kind"

// SQSQueue implements queueClient backed by AWS/LocalStack SQS.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSQueue creates a queue wrapper around the provided SQS client.
func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	if client == nil {
		panic("dispatch: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("dispatch: SQS queueURL cannot be empty")
	}
	return &SQSQueue{
		client:   client,
		queueURL: queueURL,
	}
}

func (q *SQSQueue) Send(ctx context.Context, kind EventKind, body string) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(body),
	}
	if kind != "" {
		input.MessageAttributes = map[string]sqstypes.MessageAttributeValue{
			kindAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(kind)),
			},
		}
	}
	if _, err := q.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("dispatch: failed to send SQS message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   int32(maxMessages),
		WaitTimeSeconds:       int32(waitSeconds),
		MessageAttributeNames: []string{kindAttribute},
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: failed to receive SQS messages: %w", err)
	}

	messages := make([]queueMessage, 0, len(output.Messages))
	for _, msg := range output.Messages {
		qm := queueMessage{
			ID:            aws.ToString(msg.MessageId),
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		}
		if attr, ok := msg.MessageAttributes[kindAttribute]; ok {
			qm.Kind = EventKind(aws.ToString(attr.StringValue))
		}
		messages = append(messages, qm)
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("dispatch: failed to delete SQS message: %w", err)
	}
	return nil
}
