// Package metrics collects the cleanup run counters and publishes them to
// CloudWatch. Counters use atomics so a future concurrent scan would not
// need changes here.
package metrics

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/aws"
)

// Namespace is the CloudWatch namespace for the cleanup counters.
const Namespace = "CaseInsights/Cleanup"

// Metrics accumulates the four run counters.
type Metrics struct {
	accountsProcessed int64
	casesScanned      int64
	casesRemoved      int64
	errors            int64

	startTime time.Time
}

// New creates a Metrics with the run start time captured now.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// AddAccountsProcessed adds to the processed accounts counter.
func (m *Metrics) AddAccountsProcessed(n int) { atomic.AddInt64(&m.accountsProcessed, int64(n)) }

// AddCasesScanned adds to the scanned cases counter.
func (m *Metrics) AddCasesScanned(n int) { atomic.AddInt64(&m.casesScanned, int64(n)) }

// AddCasesRemoved adds to the removed cases counter.
func (m *Metrics) AddCasesRemoved(n int) { atomic.AddInt64(&m.casesRemoved, int64(n)) }

// AddErrors adds to the error counter.
func (m *Metrics) AddErrors(n int) { atomic.AddInt64(&m.errors, int64(n)) }

// RecordError increments the error counter.
func (m *Metrics) RecordError() { m.AddErrors(1) }

// Report is the per-invocation result returned to the invoker and logged as
// the run summary. It is never persisted.
type Report struct {
	AccountsProcessed int64   `json:"accounts_processed"`
	CasesScanned      int64   `json:"cases_scanned"`
	CasesRemoved      int64   `json:"cases_removed"`
	Errors            int64   `json:"errors"`
	DurationSeconds   float64 `json:"duration_seconds"`
	DryRun            bool    `json:"dry_run"`
}

// Snapshot freezes the counters into a Report with the elapsed duration.
func (m *Metrics) Snapshot(dryRun bool) Report {
	return Report{
		AccountsProcessed: atomic.LoadInt64(&m.accountsProcessed),
		CasesScanned:      atomic.LoadInt64(&m.casesScanned),
		CasesRemoved:      atomic.LoadInt64(&m.casesRemoved),
		Errors:            atomic.LoadInt64(&m.errors),
		DurationSeconds:   time.Since(m.startTime).Seconds(),
		DryRun:            dryRun,
	}
}

// String renders the summary for console output.
func (r Report) String() string {
	mode := "LIVE"
	if r.DryRun {
		mode = "DRY RUN"
	}
	return fmt.Sprintf(
		"Cleanup summary (%s): %d accounts processed, %d cases scanned, %d cases removed, %d errors in %.2fs",
		mode, r.AccountsProcessed, r.CasesScanned, r.CasesRemoved, r.Errors, r.DurationSeconds)
}

// MarshalJSON keeps the wire shape stable even if the struct grows
// non-serialized fields later.
func (r Report) MarshalJSON() ([]byte, error) {
	type alias Report
	return json.Marshal(alias(r))
}

// Publisher sends the run counters to CloudWatch.
type Publisher struct {
	client    aws.CloudWatchClient
	namespace string
}

// NewPublisher creates a Publisher under the given namespace.
func NewPublisher(client aws.CloudWatchClient, namespace string) *Publisher {
	return &Publisher{client: client, namespace: namespace}
}

// Publish emits the four counters with a shared timestamp. Callers treat a
// failure here as log-and-continue; observability must not become a
// reliability dependency for the run itself.
func (p *Publisher) Publish(ctx context.Context, r Report) error {
	now := time.Now().UTC()

	counters := []struct {
		name  string
		value int64
	}{
		{"AccountsProcessed", r.AccountsProcessed},
		{"CasesScanned", r.CasesScanned},
		{"CasesRemoved", r.CasesRemoved},
		{"Errors", r.Errors},
	}

	data := make([]types.MetricDatum, 0, len(counters))
	for _, c := range counters {
		data = append(data, types.MetricDatum{
			MetricName: awssdk.String(c.name),
			Value:      awssdk.Float64(float64(c.value)),
			Unit:       types.StandardUnitCount,
			Timestamp:  awssdk.Time(now),
		})
	}

	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  awssdk.String(p.namespace),
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish metrics to %s: %w", p.namespace, err)
	}
	return nil
}
