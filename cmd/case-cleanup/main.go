// Command case-cleanup is the scheduled reconciliation function: it removes
// cases that landed in the raw bucket but never completed processing.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/cleanup"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/metrics"
	"github.com/supportops/case-insights/retry"
	"github.com/supportops/case-insights/storage"
)

type response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type handler struct {
	store     *storage.Store
	publisher *metrics.Publisher
	log       *slog.Logger
}

func (h *handler) handle(ctx context.Context, _ events.CloudWatchEvent) (response, error) {
	h.log.Info("case cleanup started")

	cfg, err := config.CleanupFromEnv()
	if err != nil {
		return errorResponse(h.log, err), nil
	}

	engine := cleanup.NewEngine(cfg, h.store, h.publisher, h.log)
	report, err := engine.Run(ctx)
	if err != nil {
		return errorResponse(h.log, err), nil
	}

	body, err := json.Marshal(map[string]any{
		"message": "Case cleanup completed successfully",
		"results": report,
	})
	if err != nil {
		return errorResponse(h.log, err), nil
	}

	h.log.Info("case cleanup completed", "results", report.String())
	return response{StatusCode: 200, Body: string(body)}, nil
}

func errorResponse(log *slog.Logger, err error) response {
	log.Error("case cleanup failed", "error", err)
	body, _ := json.Marshal(map[string]string{
		"message": "Case cleanup failed",
		"error":   err.Error(),
	})
	return response{StatusCode: 500, Body: string(body)}
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
		store:     storage.New(s3.NewFromConfig(awsCfg), retry.Default(), log),
		publisher: metrics.NewPublisher(cloudwatch.NewFromConfig(awsCfg), metrics.Namespace),
		log:       log,
	}
	lambda.Start(h.handle)
}
