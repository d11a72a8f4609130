// Package queue carries webhook-triggered comparison jobs to the worker
// loop. SQS in production, in-memory for tests and local runs.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/promptarena/arena/internal/domain"
)

// Job is one queued comparison run, typically originating from a payment
// webhook.
type Job struct {
	ID        string                   `json:"id"`
	Request   domain.ComparisonRequest `json:"request"`
	Source    string                   `json:"source,omitempty"`
	CreatedAt time.Time                `json:"created_at"`
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Receive(ctx context.Context, maxJobs int) ([]Job, error)
}

type SQSQueue struct {
	client   *sqs.Client
	queueURL string
}

func NewSQSQueue(ctx context.Context, region, queueURL string) (*SQSQueue, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SQSQueue{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}, nil
}

func NewSQSQueueWithConfig(cfg aws.Config, queueURL string) *SQSQueue {
	return &SQSQueue{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}
}

func (q *SQSQueue) Enqueue(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"OrderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.Request.OrderID),
			},
			"JobID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.ID),
			},
		},
	}

	if _, err := q.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxJobs int) ([]Job, error) {
	input := &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   int32(maxJobs),
		WaitTimeSeconds:       20,
		MessageAttributeNames: []string{"All"},
	}

	result, err := q.client.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("receive messages: %w", err)
	}

	jobs := make([]Job, 0, len(result.Messages))
	for _, msg := range result.Messages {
		var job Job
		if err := json.Unmarshal([]byte(*msg.Body), &job); err != nil {
			slog.Warn("failed to unmarshal job", "error", err)
			continue
		}
		jobs = append(jobs, job)

		// Jobs are deleted on receipt. The pipeline has no idempotency
		// guarantee, so redelivery would mean double provider spend.
		if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(q.queueURL),
			ReceiptHandle: msg.ReceiptHandle,
		}); err != nil {
			slog.Warn("failed to delete message", "error", err, "job_id", job.ID)
		}
	}

	return jobs, nil
}

type InMemoryQueue struct {
	mu   sync.Mutex
	jobs []Job
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		jobs: make([]Job, 0),
	}
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *InMemoryQueue) Receive(ctx context.Context, maxJobs int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := maxJobs
	if count > len(q.jobs) {
		count = len(q.jobs)
	}

	result := make([]Job, count)
	copy(result, q.jobs[:count])
	q.jobs = q.jobs[count:]

	return result, nil
}

func (q *InMemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
