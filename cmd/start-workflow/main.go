// Command start-workflow starts one analysis state machine execution per
// annotated case message.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/annotation"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/retry"
	"github.com/supportops/case-insights/workflow"
)

type handler struct {
	starter *workflow.Starter
	log     *slog.Logger
}

func (h *handler) handle(ctx context.Context, event events.SQSEvent) error {
	started := 0
	for _, record := range event.Records {
		var msg annotation.SummaryMessage
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			h.log.Error("unparseable queue message", "message_id", record.MessageId, "error", err)
			continue
		}
		if msg.FilePath == "" {
			h.log.Error("missing filePath in queue message", "message_id", record.MessageId)
			continue
		}

		if _, err := h.starter.Start(ctx, msg.FilePath, record.ReceiptHandle); err != nil {
			return err
		}
		started++
	}

	h.log.Info("started executions", "count", started)
	return nil
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.WorkflowFromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	h := &handler{
		starter: workflow.NewStarter(cfg, sfn.NewFromConfig(awsCfg), retry.Default(), log),
		log:     log,
	}
	lambda.Start(h.handle)
}
