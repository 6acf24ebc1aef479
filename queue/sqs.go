package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQS adapts an SQS queue pair (source + dead-letter) to the Queue
// interface. Credentials and region resolve through the SDK's default
// chain.
type SQS struct {
	client *sqs.Client
	url    string
	dlqURL string
}

// NewSQS builds the adapter against the given queue URLs.
func NewSQS(ctx context.Context, queueURL, dlqURL string) (*SQS, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("sqs: queue URL is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqs: load aws config: %w", err)
	}
	return &SQS{
		client: sqs.NewFromConfig(cfg),
		url:    queueURL,
		dlqURL: dlqURL,
	}, nil
}

// Fetch implements Queue using long polling.
func (q *SQS) Fetch(ctx context.Context, max int, waitSeconds int) ([]Message, error) {
	max, waitSeconds = clampFetch(max, waitSeconds)
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.url),
		MaxNumberOfMessages:   int32(max),
		WaitTimeSeconds:       int32(waitSeconds),
		MessageAttributeNames: []string{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs: receive: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{
			ID:            aws.ToString(m.MessageId),
			Body:          aws.ToString(m.Body),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
		}
		if len(m.MessageAttributes) > 0 {
			msg.Attributes = make(map[string]string, len(m.MessageAttributes))
			for name, attr := range m.MessageAttributes {
				msg.Attributes[name] = aws.ToString(attr.StringValue)
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Ack implements Queue.
func (q *SQS) Ack(ctx context.Context, receiptHandle string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs: delete: %w", err)
	}
	return nil
}

// DeadLetter implements Queue, forwarding attributes verbatim as String
// values.
func (q *SQS) DeadLetter(ctx context.Context, body string, attrs map[string]string) error {
	if q.dlqURL == "" {
		return fmt.Errorf("sqs: dead-letter URL not configured")
	}
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.dlqURL),
		MessageBody: aws.String(body),
	}
	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attrs))
		for name, value := range attrs {
			input.MessageAttributes[name] = types.MessageAttributeValue{
				DataType:    aws.String("String"),
				StringValue: aws.String(value),
			}
		}
	}
	if _, err := q.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("sqs: dead-letter send: %w", err)
	}
	return nil
}
