// Package queue carries JSON messages between pipeline stages over SQS.
package queue

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/aws"
	"github.com/supportops/case-insights/retry"
)

// Client sends and acknowledges messages with the shared retry policy.
type Client struct {
	sqs   aws.SQSClient
	retry retry.Policy
}

// New creates a queue client.
func New(client aws.SQSClient, policy retry.Policy) *Client {
	return &Client{sqs: client, retry: policy}
}

// SendJSON marshals v and sends it to the queue, returning the message ID.
func (c *Client) SendJSON(ctx context.Context, queueURL string, v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode message for %s: %w", queueURL, err)
	}

	out, err := retry.DoValue(ctx, c.retry, func(ctx context.Context) (*sqs.SendMessageOutput, error) {
		return c.sqs.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    awssdk.String(queueURL),
			MessageBody: awssdk.String(string(body)),
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to send message to %s: %w", queueURL, err)
	}
	return awssdk.ToString(out.MessageId), nil
}

// Delete acknowledges a message by receipt handle.
func (c *Client) Delete(ctx context.Context, queueURL, receiptHandle string) error {
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		_, err := c.sqs.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      awssdk.String(queueURL),
			ReceiptHandle: awssdk.String(receiptHandle),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete message from %s: %w", queueURL, err)
	}
	return nil
}
