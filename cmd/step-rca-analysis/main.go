// Command step-rca-analysis is the second state machine step: it classifies
// the case's root cause from the generated summary.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/enrich"
	"github.com/supportops/case-insights/retry"
)

const defaultTemplatePath = "/opt/templates/rca-template.txt"

type handler struct {
	analyzer *enrich.Analyzer
	log      *slog.Logger
}

func (h *handler) handle(ctx context.Context, p enrich.StepPayload) (enrich.StepPayload, error) {
	if p.FilePath == "" || p.CaseSummary == "" {
		return enrich.StepPayload{}, fmt.Errorf("missing required fields in step payload")
	}

	category, reason, err := h.analyzer.Analyze(ctx, p.CaseSummary)
	if err != nil {
		h.log.Error("failed to analyze root cause", "file_path", p.FilePath, "error", err)
		return enrich.StepPayload{}, err
	}
	p.RCACategory = category
	p.RCAReason = reason
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

	templatePath := os.Getenv("RCA_TEMPLATE_PATH")
	if templatePath == "" {
		templatePath = defaultTemplatePath
	}

	invoker := enrich.NewInvoker(config.BedrockFromEnv(), bedrockruntime.NewFromConfig(awsCfg), retry.Default(), log)
	h := &handler{
		analyzer: enrich.NewAnalyzer(invoker, templatePath, log),
		log:      log,
	}
	lambda.Start(h.handle)
}
