// Package workflow starts the per-case analysis state machine.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/aws"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/retry"
)

// Input is the state machine's execution input. The receipt handle rides
// along so the final step can acknowledge the originating queue message.
type Input struct {
	FilePath      string `json:"filePath"`
	ReceiptHandle string `json:"receiptHandle,omitempty"`
}

// Starter triggers one execution per annotated case.
type Starter struct {
	cfg    *config.Workflow
	client aws.SFNClient
	retry  retry.Policy
	log    *slog.Logger
}

// NewStarter wires the trigger stage.
func NewStarter(cfg *config.Workflow, client aws.SFNClient, policy retry.Policy, log *slog.Logger) *Starter {
	if log == nil {
		log = slog.Default()
	}
	return &Starter{cfg: cfg, client: client, retry: policy, log: log}
}

// Start launches an execution for the given case path and returns its ARN.
func (s *Starter) Start(ctx context.Context, filePath, receiptHandle string) (string, error) {
	input, err := json.Marshal(Input{FilePath: filePath, ReceiptHandle: receiptHandle})
	if err != nil {
		return "", fmt.Errorf("failed to encode execution input: %w", err)
	}

	out, err := retry.DoValue(ctx, s.retry, func(ctx context.Context) (*sfn.StartExecutionOutput, error) {
		return s.client.StartExecution(ctx, &sfn.StartExecutionInput{
			StateMachineArn: awssdk.String(s.cfg.StateMachineARN),
			Input:           awssdk.String(string(input)),
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to start execution for %s: %w", filePath, err)
	}

	arn := awssdk.ToString(out.ExecutionArn)
	s.log.Info("started analysis execution", "file_path", filePath, "execution_arn", arn)
	return arn, nil
}
