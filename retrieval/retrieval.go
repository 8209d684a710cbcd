// Package retrieval pulls resolved support cases out of member accounts and
// lands them in the raw bucket, skipping cases that already finished the
// pipeline.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/support"
	"github.com/aws/smithy-go"

	"github.com/supportops/case-insights/aws"
	"github.com/supportops/case-insights/casekey"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/queue"
	"github.com/supportops/case-insights/storage"
)

// Retriever processes one account per queue message.
type Retriever struct {
	cfg        *config.Retrieval
	store      *storage.Store
	queue      *queue.Client
	supportFor aws.SupportFactory
	now        func() time.Time
	log        *slog.Logger
}

// NewRetriever wires the retrieval stage.
func NewRetriever(cfg *config.Retrieval, store *storage.Store, q *queue.Client, supportFor aws.SupportFactory, log *slog.Logger) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{cfg: cfg, store: store, queue: q, supportFor: supportFor, now: time.Now, log: log}
}

// ProcessAccount retrieves the account's resolved cases from the trailing
// window, stores each new one under the raw bucket and queues it for
// annotation. Accounts the pipeline cannot reach (no role, no Support
// subscription) contribute zero cases rather than an error, so one account
// never blocks the rest of a batch. Returns the number of new cases stored.
func (r *Retriever) ProcessAccount(ctx context.Context, accountID string) (int, error) {
	log := r.log.With("account_id", accountID)

	sessionName := "CaseRetrieval-" + r.now().UTC().Format("20060102150405")
	client, err := r.supportFor(ctx, accountID, sessionName)
	if err != nil {
		if isAccessDenied(err) {
			log.Warn("cannot assume support role, skipping account", "error", err)
			return 0, nil
		}
		return 0, err
	}

	cases, err := r.fetchResolvedCases(ctx, log, client)
	if err != nil {
		return 0, err
	}
	if len(cases) == 0 {
		log.Info("no support cases found")
		return 0, nil
	}

	// The processed bucket is the single source of truth for what is done;
	// cases that failed mid-pipeline are re-ingested here and the nightly
	// cleanup removes their leftovers.
	accountPrefix := casekey.AccountPrefix(accountID)
	existing := r.store.ExistingCaseIDs(ctx, r.cfg.ProcessedBucket, accountPrefix)
	log.Info("checking cases against processed index",
		"total", len(cases), "already_processed", len(existing))

	stored := 0
	for _, c := range cases {
		if _, done := existing[c.DisplayID]; done {
			continue
		}

		key := casekey.Key{AccountID: accountID, CaseID: c.DisplayID}
		if err := r.store.WriteJSON(ctx, r.cfg.RawBucket, key.DataKey(), c); err != nil {
			return stored, err
		}

		if _, err := r.queue.SendJSON(ctx, r.cfg.AnnotationQueueURL, Message{
			AccountID: accountID,
			DisplayID: c.DisplayID,
			CaseID:    c.CaseID,
		}); err != nil {
			return stored, err
		}

		stored++
		log.Info("stored new case", "display_id", c.DisplayID)
	}

	log.Info("account done", "new_cases", stored)
	return stored, nil
}

// fetchResolvedCases pages through DescribeCases for the trailing window and
// keeps resolved cases only. Accounts without Business or Enterprise
// Support answer with an access error; that is expected and yields no cases.
func (r *Retriever) fetchResolvedCases(ctx context.Context, log *slog.Logger, client aws.SupportClient) ([]Case, error) {
	afterTime := r.now().UTC().AddDate(0, 0, -30*r.cfg.TrailingMonths).Format("2006-01-02")
	retrievedAt := r.now().UTC().Format(time.RFC3339)

	var cases []Case
	var nextToken *string
	for {
		out, err := client.DescribeCases(ctx, &support.DescribeCasesInput{
			AfterTime:             awssdk.String(afterTime),
			IncludeCommunications: awssdk.Bool(false),
			IncludeResolvedCases:  true,
			NextToken:             nextToken,
		})
		if err != nil {
			if isSupportUnavailable(err) {
				log.Warn("support API not available for account, skipping", "error", err)
				return nil, nil
			}
			return nil, fmt.Errorf("failed to describe cases: %w", err)
		}

		for _, cd := range out.Cases {
			status := awssdk.ToString(cd.Status)
			if !strings.EqualFold(status, "resolved") {
				continue
			}
			cases = append(cases, Case{
				CaseID:        awssdk.ToString(cd.CaseId),
				DisplayID:     awssdk.ToString(cd.DisplayId),
				Subject:       awssdk.ToString(cd.Subject),
				ServiceCode:   awssdk.ToString(cd.ServiceCode),
				CategoryCode:  awssdk.ToString(cd.CategoryCode),
				SeverityCode:  awssdk.ToString(cd.SeverityCode),
				SubmittedBy:   awssdk.ToString(cd.SubmittedBy),
				TimeCreated:   awssdk.ToString(cd.TimeCreated),
				Status:        status,
				RetrievalDate: retrievedAt,
			})
		}

		nextToken = out.NextToken
		if nextToken == nil {
			break
		}
	}

	log.Info("retrieved resolved cases", "count", len(cases))
	return cases, nil
}

// isSupportUnavailable matches the error classes returned by accounts
// without a Support subscription.
func isSupportUnavailable(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "AccessDeniedException", "SubscriptionRequiredException":
		return true
	}
	return false
}

// isAccessDenied matches a refused sts:AssumeRole.
func isAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDenied" {
		return true
	}
	return false
}
