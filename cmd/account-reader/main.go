// Command account-reader fans a freshly written account list out to the
// retrieval queue, one message per account.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/supportops/case-insights/accounts"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/queue"
	"github.com/supportops/case-insights/retry"
	"github.com/supportops/case-insights/storage"
)

type handler struct {
	store *storage.Store
	queue *queue.Client
	log   *slog.Logger
}

func (h *handler) handle(ctx context.Context, event events.S3Event) error {
	cfg, err := config.ReaderFromEnv()
	if err != nil {
		return err
	}
	reader := accounts.NewReader(cfg, h.store, h.queue, h.log)

	for _, record := range event.Records {
		if !strings.HasPrefix(record.EventName, "ObjectCreated") {
			continue
		}
		bucket := record.S3.Bucket.Name
		key := record.S3.Object.Key

		count, err := reader.ProcessObject(ctx, bucket, key)
		if err != nil {
			h.log.Error("failed to process account list", "bucket", bucket, "key", key, "error", err)
			return err
		}
		h.log.Info("processed account list", "bucket", bucket, "key", key, "accounts", count)
	}
	return nil
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	h := &handler{
		store: storage.New(s3.NewFromConfig(awsCfg), retry.Default(), log),
		queue: queue.New(sqs.NewFromConfig(awsCfg), retry.Default()),
		log:   log,
	}
	lambda.Start(h.handle)
}
