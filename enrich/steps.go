package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/annotation"
	"github.com/supportops/case-insights/casekey"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/queue"
	"github.com/supportops/case-insights/retrieval"
	"github.com/supportops/case-insights/storage"
)

// StepPayload is the document passed between the workflow steps. Each step
// fills in more fields and passes the rest through untouched.
type StepPayload struct {
	FilePath          string `json:"filePath"`
	ReceiptHandle     string `json:"receiptHandle,omitempty"`
	CaseSummary       string `json:"caseSummary,omitempty"`
	RCACategory       string `json:"rcaCategory,omitempty"`
	RCAReason         string `json:"rcaReason,omitempty"`
	LifecycleCategory string `json:"lifecycleCategory,omitempty"`
	LifecycleReason   string `json:"lifecycleReason,omitempty"`
}

// ParseFilePath splits a queue file path ("<bucket>/<case folder>") into
// bucket and folder.
func ParseFilePath(filePath string) (bucket, folder string, err error) {
	bucket, folder, ok := strings.Cut(filePath, "/")
	if !ok || bucket == "" || folder == "" {
		return "", "", fmt.Errorf("invalid file path format: %q", filePath)
	}
	return bucket, folder, nil
}

// LoadTemplate reads a prompt template from the function's layer.
func LoadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to load template %s: %w", path, err)
	}
	return string(data), nil
}

// Summarizer is the first workflow step: annotation text in, case summary
// out.
type Summarizer struct {
	store        *storage.Store
	invoker      *Invoker
	templatePath string
	log          *slog.Logger
}

// NewSummarizer wires the summary step. templatePath points at the prompt
// template carrying a {case_annotation} placeholder.
func NewSummarizer(store *storage.Store, invoker *Invoker, templatePath string, log *slog.Logger) *Summarizer {
	if log == nil {
		log = slog.Default()
	}
	return &Summarizer{store: store, invoker: invoker, templatePath: templatePath, log: log}
}

// Summarize reads the case's annotation document and generates a summary.
func (s *Summarizer) Summarize(ctx context.Context, filePath string) (string, error) {
	bucket, folder, err := ParseFilePath(filePath)
	if err != nil {
		return "", err
	}

	var comms annotation.Communications
	if err := s.store.ReadJSON(ctx, bucket, folder+"/"+casekey.AnnotationObject, &comms); err != nil {
		return "", err
	}

	template, err := LoadTemplate(s.templatePath)
	if err != nil {
		return "", err
	}

	prompt := strings.ReplaceAll(template, "{case_annotation}", AnnotationText(comms))
	summary, err := s.invoker.Invoke(ctx, prompt)
	if err != nil {
		return "", err
	}

	s.log.Info("generated case summary", "file_path", filePath, "length", len(summary))
	return summary, nil
}

// AnnotationText flattens the communication thread into the prompt form.
func AnnotationText(comms annotation.Communications) string {
	parts := make([]string, 0, len(comms.Communications))
	for _, c := range comms.Communications {
		parts = append(parts, fmt.Sprintf("Time: %s\nFrom: %s\nMessage: %s", c.TimeCreated, c.SubmittedBy, c.Body))
	}
	return strings.Join(parts, "\n\n")
}

// Analyzer is the second workflow step: case summary in, root-cause
// classification out.
type Analyzer struct {
	invoker      *Invoker
	templatePath string
	log          *slog.Logger
}

// NewAnalyzer wires the RCA step. templatePath points at the prompt
// template carrying a {Case_Summary} placeholder.
func NewAnalyzer(invoker *Invoker, templatePath string, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.Default()
	}
	return &Analyzer{invoker: invoker, templatePath: templatePath, log: log}
}

type rcaResult struct {
	Category string `json:"RCA_Category"`
	Reason   string `json:"RCA_Reason"`
}

// Analyze classifies the root cause from the case summary.
func (a *Analyzer) Analyze(ctx context.Context, caseSummary string) (category, reason string, err error) {
	template, err := LoadTemplate(a.templatePath)
	if err != nil {
		return "", "", err
	}

	prompt := strings.ReplaceAll(template, "{Case_Summary}", caseSummary)
	response, err := a.invoker.Invoke(ctx, prompt)
	if err != nil {
		return "", "", err
	}

	var result rcaResult
	if err := json.Unmarshal([]byte(ExtractJSON(response)), &result); err != nil {
		a.log.Warn("model response was not parseable JSON", "response", response)
		return "", "", fmt.Errorf("failed to parse RCA response: %w", err)
	}

	a.log.Info("classified root cause", "category", result.Category)
	return result.Category, result.Reason, nil
}

// Updater is the final workflow step: it merges the generated insights into
// the case record and writes it to the processed bucket, creating the
// terminal marker that takes the case out of every later scan.
type Updater struct {
	cfg   *config.Metadata
	store *storage.Store
	queue *queue.Client
	now   func() time.Time
	log   *slog.Logger
}

// NewUpdater wires the metadata update step.
func NewUpdater(cfg *config.Metadata, store *storage.Store, q *queue.Client, log *slog.Logger) *Updater {
	if log == nil {
		log = slog.Default()
	}
	return &Updater{cfg: cfg, store: store, queue: q, now: time.Now, log: log}
}

// Update reads the raw case record, applies the enrichment fields and
// writes the completed record to the processed bucket. When a receipt
// handle is present the originating queue message is acknowledged last, so
// a failed write leaves the message to be redriven.
func (u *Updater) Update(ctx context.Context, p StepPayload) error {
	if p.FilePath == "" || p.CaseSummary == "" || p.RCACategory == "" || p.RCAReason == "" ||
		p.LifecycleCategory == "" || p.LifecycleReason == "" {
		return fmt.Errorf("missing required fields in step payload for %q", p.FilePath)
	}

	rawBucket, folder, err := ParseFilePath(p.FilePath)
	if err != nil {
		return err
	}
	dataKey := folder + "/" + casekey.DataObject

	var record retrieval.Case
	if err := u.store.ReadJSON(ctx, rawBucket, dataKey, &record); err != nil {
		return err
	}

	now := u.now().UTC().Format(time.RFC3339)
	record.Summary = &p.CaseSummary
	record.RCACategory = &p.RCACategory
	record.RCAReason = &p.RCAReason
	record.RCADate = &now
	record.LifecycleCategory = &p.LifecycleCategory
	record.LifecycleReason = &p.LifecycleReason
	record.LifecycleDate = &now

	if err := u.store.WriteJSON(ctx, u.cfg.ProcessedBucket, dataKey, record); err != nil {
		return err
	}
	u.log.Info("wrote enriched case record",
		"from", rawBucket+"/"+dataKey,
		"to", u.cfg.ProcessedBucket+"/"+dataKey)

	if p.ReceiptHandle != "" && u.cfg.SummaryQueueURL != "" {
		if err := u.queue.Delete(ctx, u.cfg.SummaryQueueURL, p.ReceiptHandle); err != nil {
			return err
		}
		u.log.Info("acknowledged summary queue message")
	}
	return nil
}
