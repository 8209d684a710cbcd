// Package config reads each function's configuration from the environment,
// the only configuration surface the deployment exposes. Every struct has a
// FromEnv constructor and a Validate that fails fast on missing required
// values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func getEnv(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

func getEnvBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true")
}

func getEnvInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvList(name string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(name), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Cleanup configures the incomplete-case reconciliation run.
type Cleanup struct {
	RawBucket        string   // CASE_RAW_BUCKET
	ProcessedBucket  string   // CASE_PROCESSED_BUCKET
	DryRun           bool     // DRY_RUN
	MaxDeletions     int      // MAX_DELETIONS_PER_RUN
	ExcludedAccounts []string // EXCLUDED_ACCOUNTS, comma-separated

	excluded map[string]struct{}
}

// CleanupFromEnv loads and validates the cleanup configuration.
func CleanupFromEnv() (*Cleanup, error) {
	c := &Cleanup{
		RawBucket:        os.Getenv("CASE_RAW_BUCKET"),
		ProcessedBucket:  os.Getenv("CASE_PROCESSED_BUCKET"),
		DryRun:           getEnvBool("DRY_RUN", false),
		MaxDeletions:     getEnvInt("MAX_DELETIONS_PER_RUN", 1000),
		ExcludedAccounts: getEnvList("EXCLUDED_ACCOUNTS"),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate ensures the required buckets are set and the deletion cap is sane.
func (c *Cleanup) Validate() error {
	if c.RawBucket == "" {
		return fmt.Errorf("CASE_RAW_BUCKET is required")
	}
	if c.ProcessedBucket == "" {
		return fmt.Errorf("CASE_PROCESSED_BUCKET is required")
	}
	if c.MaxDeletions < 0 {
		return fmt.Errorf("MAX_DELETIONS_PER_RUN must not be negative")
	}
	c.excluded = make(map[string]struct{}, len(c.ExcludedAccounts))
	for _, id := range c.ExcludedAccounts {
		c.excluded[id] = struct{}{}
	}
	return nil
}

// Excluded reports whether an account is exempt from cleanup.
func (c *Cleanup) Excluded(accountID string) bool {
	_, ok := c.excluded[accountID]
	return ok
}

// Lookup configures the organization account inventory function.
type Lookup struct {
	OrganizationID    string // ORGANIZATION_ID
	AccountListBucket string // ACCOUNT_LIST_BUCKET
}

func LookupFromEnv() (*Lookup, error) {
	c := &Lookup{
		OrganizationID:    os.Getenv("ORGANIZATION_ID"),
		AccountListBucket: os.Getenv("ACCOUNT_LIST_BUCKET"),
	}
	if c.OrganizationID == "" {
		return nil, fmt.Errorf("ORGANIZATION_ID is required")
	}
	if c.AccountListBucket == "" {
		return nil, fmt.Errorf("ACCOUNT_LIST_BUCKET is required")
	}
	return c, nil
}

// Reader configures the account list fan-out function.
type Reader struct {
	AccountsQueueURL string // ACTIVE_ACCOUNTS_QUEUE_URL
}

func ReaderFromEnv() (*Reader, error) {
	c := &Reader{AccountsQueueURL: os.Getenv("ACTIVE_ACCOUNTS_QUEUE_URL")}
	if c.AccountsQueueURL == "" {
		return nil, fmt.Errorf("ACTIVE_ACCOUNTS_QUEUE_URL is required")
	}
	return c, nil
}

// Retrieval configures the per-account case retrieval function.
type Retrieval struct {
	RawBucket          string // CASE_RAW_BUCKET
	ProcessedBucket    string // CASE_PROCESSED_BUCKET
	SupportRoleName    string // SUPPORT_ROLE_NAME
	AnnotationQueueURL string // CASE_ANNOTATION_QUEUE_URL
	TrailingMonths     int    // CASE_TRAILING_MONTHS
}

func RetrievalFromEnv() (*Retrieval, error) {
	c := &Retrieval{
		RawBucket:          os.Getenv("CASE_RAW_BUCKET"),
		ProcessedBucket:    os.Getenv("CASE_PROCESSED_BUCKET"),
		SupportRoleName:    os.Getenv("SUPPORT_ROLE_NAME"),
		AnnotationQueueURL: os.Getenv("CASE_ANNOTATION_QUEUE_URL"),
		TrailingMonths:     getEnvInt("CASE_TRAILING_MONTHS", 12),
	}
	switch {
	case c.RawBucket == "":
		return nil, fmt.Errorf("CASE_RAW_BUCKET is required")
	case c.ProcessedBucket == "":
		return nil, fmt.Errorf("CASE_PROCESSED_BUCKET is required")
	case c.SupportRoleName == "":
		return nil, fmt.Errorf("SUPPORT_ROLE_NAME is required")
	case c.AnnotationQueueURL == "":
		return nil, fmt.Errorf("CASE_ANNOTATION_QUEUE_URL is required")
	case c.TrailingMonths < 1:
		return nil, fmt.Errorf("CASE_TRAILING_MONTHS must be at least 1")
	}
	return c, nil
}

// Annotation configures the case communications function.
type Annotation struct {
	RawBucket       string // CASE_RAW_BUCKET
	SupportRoleName string // SUPPORT_ROLE_NAME
	SummaryQueueURL string // CASE_SUMMARY_QUEUE_URL
}

func AnnotationFromEnv() (*Annotation, error) {
	c := &Annotation{
		RawBucket:       os.Getenv("CASE_RAW_BUCKET"),
		SupportRoleName: os.Getenv("SUPPORT_ROLE_NAME"),
		SummaryQueueURL: os.Getenv("CASE_SUMMARY_QUEUE_URL"),
	}
	switch {
	case c.RawBucket == "":
		return nil, fmt.Errorf("CASE_RAW_BUCKET is required")
	case c.SupportRoleName == "":
		return nil, fmt.Errorf("SUPPORT_ROLE_NAME is required")
	case c.SummaryQueueURL == "":
		return nil, fmt.Errorf("CASE_SUMMARY_QUEUE_URL is required")
	}
	return c, nil
}

// Workflow configures the analysis workflow trigger.
type Workflow struct {
	StateMachineARN string // CASE_ANALYSIS_STATE_MACHINE_ARN
}

func WorkflowFromEnv() (*Workflow, error) {
	c := &Workflow{StateMachineARN: os.Getenv("CASE_ANALYSIS_STATE_MACHINE_ARN")}
	if c.StateMachineARN == "" {
		return nil, fmt.Errorf("CASE_ANALYSIS_STATE_MACHINE_ARN is required")
	}
	return c, nil
}

// Bedrock configures the model invocation shared by the enrichment steps.
type Bedrock struct {
	ModelID   string // BEDROCK_MODEL_ID
	MaxTokens int    // BEDROCK_MAX_TOKENS
}

func BedrockFromEnv() *Bedrock {
	return &Bedrock{
		ModelID:   getEnv("BEDROCK_MODEL_ID", "anthropic.claude-3-5-haiku-20241022-v1:0"),
		MaxTokens: getEnvInt("BEDROCK_MAX_TOKENS", 2000),
	}
}

// Metadata configures the final enrichment step that writes the terminal
// marker and acknowledges the queue message.
type Metadata struct {
	ProcessedBucket string // CASE_PROCESSED_BUCKET
	SummaryQueueURL string // CASE_SUMMARY_QUEUE_URL, optional: no ack without it
}

func MetadataFromEnv() (*Metadata, error) {
	c := &Metadata{
		ProcessedBucket: os.Getenv("CASE_PROCESSED_BUCKET"),
		SummaryQueueURL: os.Getenv("CASE_SUMMARY_QUEUE_URL"),
	}
	if c.ProcessedBucket == "" {
		return nil, fmt.Errorf("CASE_PROCESSED_BUCKET is required")
	}
	return c, nil
}
