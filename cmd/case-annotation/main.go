// Command case-annotation fetches the communication thread for each newly
// retrieved case and queues it for analysis.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/annotation"
	"github.com/supportops/case-insights/aws"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/queue"
	"github.com/supportops/case-insights/retrieval"
	"github.com/supportops/case-insights/retry"
	"github.com/supportops/case-insights/storage"
)

type handler struct {
	annotator *annotation.Annotator
	log       *slog.Logger
}

// handle processes the batch, counting per-case failures instead of failing
// the whole batch; a failed case is retried via the queue's redrive policy.
func (h *handler) handle(ctx context.Context, event events.SQSEvent) error {
	succeeded, failed := 0, 0
	for _, record := range event.Records {
		var msg retrieval.Message
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			h.log.Error("unparseable queue message", "message_id", record.MessageId, "error", err)
			failed++
			continue
		}
		if msg.AccountID == "" || msg.DisplayID == "" || msg.CaseID == "" {
			h.log.Error("missing required fields in queue message", "message_id", record.MessageId)
			failed++
			continue
		}

		if err := h.annotator.ProcessCase(ctx, msg.AccountID, msg.DisplayID, msg.CaseID); err != nil {
			h.log.Error("failed to process case",
				"account_id", msg.AccountID, "display_id", msg.DisplayID, "error", err)
			failed++
			continue
		}
		succeeded++
	}

	h.log.Info("annotation batch done", "succeeded", succeeded, "failed", failed)
	return nil
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.AnnotationFromEnv()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	supportFor := aws.NewSupportFactory(awsCfg, sts.NewFromConfig(awsCfg), cfg.SupportRoleName)
	h := &handler{
		annotator: annotation.NewAnnotator(
			cfg,
			storage.New(s3.NewFromConfig(awsCfg), retry.Default(), log),
			queue.New(sqs.NewFromConfig(awsCfg), retry.Default()),
			supportFor,
			log,
		),
		log: log,
	}
	lambda.Start(h.handle)
}
