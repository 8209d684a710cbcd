// Package enrich implements the analysis workflow steps: summarizing a
// case's communications with the managed LLM, classifying its root cause,
// and writing the enriched record to the processed bucket, which is what
// marks a case complete.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/aws"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/retry"
)

const anthropicVersion = "bedrock-2023-05-31"

// Invoker sends prompts to the configured Bedrock model. Anthropic models
// take the messages body; other model families get a plain prompt body.
type Invoker struct {
	cfg    *config.Bedrock
	client aws.BedrockClient
	retry  retry.Policy
	log    *slog.Logger
}

// NewInvoker wires a model invoker.
func NewInvoker(cfg *config.Bedrock, client aws.BedrockClient, policy retry.Policy, log *slog.Logger) *Invoker {
	if log == nil {
		log = slog.Default()
	}
	return &Invoker{cfg: cfg, client: client, retry: policy, log: log}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

type genericRequest struct {
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

type genericResponse struct {
	Completion string `json:"completion"`
}

// Invoke sends the prompt and returns the generated text.
func (i *Invoker) Invoke(ctx context.Context, prompt string) (string, error) {
	anthropic := strings.Contains(i.cfg.ModelID, "anthropic")

	var body []byte
	var err error
	if anthropic {
		body, err = json.Marshal(anthropicRequest{
			AnthropicVersion: anthropicVersion,
			MaxTokens:        i.cfg.MaxTokens,
			Messages:         []anthropicMessage{{Role: "user", Content: prompt}},
		})
	} else {
		body, err = json.Marshal(genericRequest{Prompt: prompt, MaxTokens: i.cfg.MaxTokens})
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode model request: %w", err)
	}

	i.log.Info("invoking model", "model_id", i.cfg.ModelID, "max_tokens", i.cfg.MaxTokens)

	out, err := retry.DoValue(ctx, i.retry, func(ctx context.Context) (*bedrockruntime.InvokeModelOutput, error) {
		return i.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
			ModelId: awssdk.String(i.cfg.ModelID),
			Body:    body,
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to invoke model %s: %w", i.cfg.ModelID, err)
	}

	if anthropic {
		var resp anthropicResponse
		if err := json.Unmarshal(out.Body, &resp); err != nil {
			return "", fmt.Errorf("failed to decode model response: %w", err)
		}
		if len(resp.Content) == 0 {
			return "", fmt.Errorf("model %s returned no content", i.cfg.ModelID)
		}
		return resp.Content[0].Text, nil
	}

	var resp genericResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode model response: %w", err)
	}
	return resp.Completion, nil
}
