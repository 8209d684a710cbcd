// Command step-update-metadata is the final state machine step: it writes
// the enriched case record to the processed bucket, marking the case
// complete, and acknowledges the originating queue message.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/enrich"
	"github.com/supportops/case-insights/queue"
	"github.com/supportops/case-insights/retry"
	"github.com/supportops/case-insights/storage"
)

type response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type handler struct {
	updater *enrich.Updater
	log     *slog.Logger
}

func (h *handler) handle(ctx context.Context, p enrich.StepPayload) (response, error) {
	if err := h.updater.Update(ctx, p); err != nil {
		h.log.Error("failed to update case metadata", "file_path", p.FilePath, "error", err)
		return response{}, err
	}

	body, _ := json.Marshal(map[string]string{
		"message": fmt.Sprintf("Successfully updated metadata for %s", p.FilePath),
	})
	return response{StatusCode: 200, Body: string(body)}, nil
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg, err := config.MetadataFromEnv()
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
		updater: enrich.NewUpdater(
			cfg,
			storage.New(s3.NewFromConfig(awsCfg), retry.Default(), log),
			queue.New(sqs.NewFromConfig(awsCfg), retry.Default()),
			log,
		),
		log: log,
	}
	lambda.Start(h.handle)
}
