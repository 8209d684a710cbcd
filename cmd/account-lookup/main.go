// Command account-lookup refreshes the organization's active account list
// in S3 on a schedule.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/accounts"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/retry"
	"github.com/supportops/case-insights/storage"
)

type response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type handler struct {
	orgs  *organizations.Client
	store *storage.Store
	log   *slog.Logger
}

func (h *handler) handle(ctx context.Context, _ events.CloudWatchEvent) (response, error) {
	cfg, err := config.LookupFromEnv()
	if err != nil {
		return response{}, err
	}

	lookup := accounts.NewLookup(cfg, h.orgs, h.store, h.log)
	count, err := lookup.Run(ctx)
	if err != nil {
		h.log.Error("account lookup failed", "error", err)
		return response{}, err
	}

	body, _ := json.Marshal(map[string]string{
		"message":   fmt.Sprintf("Successfully processed %d accounts", count),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	return response{StatusCode: 200, Body: string(body)}, nil
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
		orgs:  organizations.NewFromConfig(awsCfg),
		store: storage.New(s3.NewFromConfig(awsCfg), retry.Default(), log),
		log:   log,
	}
	lambda.Start(h.handle)
}
