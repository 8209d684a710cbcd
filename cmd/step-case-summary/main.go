// Command step-case-summary is the first state machine step: it turns a
// case's communication thread into a summary.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/enrich"
	"github.com/supportops/case-insights/retry"
	"github.com/supportops/case-insights/storage"
)

const defaultTemplatePath = "/opt/templates/summary-template.txt"

type handler struct {
	summarizer *enrich.Summarizer
	log        *slog.Logger
}

func (h *handler) handle(ctx context.Context, p enrich.StepPayload) (enrich.StepPayload, error) {
	summary, err := h.summarizer.Summarize(ctx, p.FilePath)
	if err != nil {
		h.log.Error("failed to summarize case", "file_path", p.FilePath, "error", err)
		return enrich.StepPayload{}, err
	}
	p.CaseSummary = summary
	return p, nil
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	templatePath := os.Getenv("SUMMARY_TEMPLATE_PATH")
	if templatePath == "" {
		templatePath = defaultTemplatePath
	}

	invoker := enrich.NewInvoker(config.BedrockFromEnv(), bedrockruntime.NewFromConfig(awsCfg), retry.Default(), log)
	h := &handler{
		summarizer: enrich.NewSummarizer(
			storage.New(s3.NewFromConfig(awsCfg), retry.Default(), log),
			invoker,
			templatePath,
			log,
		),
		log: log,
	}
	lambda.Start(h.handle)
}
