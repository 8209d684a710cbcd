// Command case-retrieval pulls resolved support cases for one account per
// queue message and stores them in the raw bucket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/accounts"
	"github.com/supportops/case-insights/aws"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/queue"
	"github.com/supportops/case-insights/retrieval"
	"github.com/supportops/case-insights/retry"
	"github.com/supportops/case-insights/storage"
)

type handler struct {
	retriever *retrieval.Retriever
	log       *slog.Logger
}

func (h *handler) handle(ctx context.Context, event events.SQSEvent) error {
	for _, record := range event.Records {
		var msg accounts.Message
		if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
			h.log.Error("unparseable queue message", "message_id", record.MessageId, "error", err)
			continue
		}
		if msg.AccountID == "" {
			h.log.Error("missing accountId in queue message", "message_id", record.MessageId)
			continue
		}

		count, err := h.retriever.ProcessAccount(ctx, msg.AccountID)
		if err != nil {
			return fmt.Errorf("failed to process account %s: %w", msg.AccountID, err)
		}
		h.log.Info("processed account", "account_id", msg.AccountID, "new_cases", count)
	}
	return nil
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.RetrievalFromEnv()
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
		retriever: retrieval.NewRetriever(
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
