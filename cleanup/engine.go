// Package cleanup reconciles the raw and processed buckets: cases that were
// ingested but never reached a terminal marker are found, capped to a safe
// per-run limit and removed from both buckets. Each invocation works on a
// fresh snapshot; the buckets themselves are the only cross-run state.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/google/uuid"

	"github.com/supportops/case-insights/casekey"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/metrics"
	"github.com/supportops/case-insights/storage"
)

// Engine runs one reconciliation pass over the two buckets.
type Engine struct {
	cfg       *config.Cleanup
	store     *storage.Store
	publisher *metrics.Publisher // nil disables metric publication
	log       *slog.Logger
}

// NewEngine wires the engine. publisher may be nil; then no metrics are
// published even in live mode.
func NewEngine(cfg *config.Cleanup, store *storage.Store, publisher *metrics.Publisher, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, store: store, publisher: publisher, log: log}
}

// Run executes one invocation: scan, govern, reconcile, report. The report
// is produced exactly once in a deferred block, so the summary and metrics
// are emitted even when the scan aborts; a fatal error still propagates to
// the invoker alongside the partial report.
func (e *Engine) Run(ctx context.Context) (report metrics.Report, err error) {
	m := metrics.New()
	log := e.log.With("run_id", uuid.NewString(), "dry_run", e.cfg.DryRun)

	defer func() {
		report = m.Snapshot(e.cfg.DryRun)
		log.Info("cleanup run finished",
			"accounts_processed", report.AccountsProcessed,
			"cases_scanned", report.CasesScanned,
			"cases_removed", report.CasesRemoved,
			"errors", report.Errors,
			"duration_seconds", report.DurationSeconds)

		if !e.cfg.DryRun && e.publisher != nil {
			if perr := e.publisher.Publish(ctx, report); perr != nil {
				log.Error("failed to publish metrics", "error", perr)
			}
		}
	}()

	log.Info("starting case cleanup",
		"raw_bucket", e.cfg.RawBucket,
		"processed_bucket", e.cfg.ProcessedBucket,
		"max_deletions", e.cfg.MaxDeletions,
		"excluded_accounts", len(e.cfg.ExcludedAccounts))

	candidates, err := e.identifyIncomplete(ctx, log, m)
	if err != nil {
		m.RecordError()
		return report, fmt.Errorf("failed to identify incomplete cases: %w", err)
	}

	accepted := limitCandidates(candidates, e.cfg.MaxDeletions)
	switch {
	case len(candidates) == 0:
		log.Info("no incomplete cases found, nothing to clean up")
	case len(accepted) < len(candidates):
		log.Warn("limiting deletions this run",
			"incomplete", len(candidates), "accepted", len(accepted))
	default:
		log.Info("processing incomplete cases", "count", len(accepted))
	}

	removed, failed := e.reconcile(ctx, log, accepted)
	m.AddCasesRemoved(removed)
	m.AddErrors(failed)

	return report, nil
}

// identifyIncomplete walks every account folder in the raw bucket and
// collects the case prefixes without a terminal marker in the processed
// bucket. A failure inside one account is logged and counted but never
// stops the scan of the others; only the top-level account listing is
// fatal.
func (e *Engine) identifyIncomplete(ctx context.Context, log *slog.Logger, m *metrics.Metrics) ([]string, error) {
	accountPrefixes, err := e.store.ListAccountPrefixes(ctx, e.cfg.RawBucket)
	if err != nil {
		return nil, err
	}
	log.Info("found account folders", "count", len(accountPrefixes))

	var incomplete []string
	for _, accountPrefix := range accountPrefixes {
		accountID, err := casekey.AccountFromPrefix(accountPrefix)
		if err != nil {
			log.Error("skipping unparseable account folder", "prefix", accountPrefix, "error", err)
			m.RecordError()
			continue
		}
		if e.cfg.Excluded(accountID) {
			log.Info("skipping excluded account", "account_id", accountID)
			continue
		}

		found, scanned, err := e.scanAccount(ctx, log, accountPrefix)
		if err != nil {
			log.Error("failed to scan account, skipping", "account_id", accountID, "error", err)
			m.RecordError()
			continue
		}

		m.AddAccountsProcessed(1)
		m.AddCasesScanned(scanned)
		incomplete = append(incomplete, found...)
	}

	log.Info("incomplete case scan done", "incomplete", len(incomplete))
	return incomplete, nil
}

// scanAccount checks every case under one account folder against the
// processed bucket and returns the incomplete prefixes plus the number of
// cases scanned.
func (e *Engine) scanAccount(ctx context.Context, log *slog.Logger, accountPrefix string) ([]string, int, error) {
	casePrefixes, err := e.store.ListCasePrefixes(ctx, e.cfg.RawBucket, accountPrefix)
	if err != nil {
		return nil, 0, err
	}

	var incomplete []string
	for _, casePrefix := range casePrefixes {
		complete, err := e.store.Exists(ctx, e.cfg.ProcessedBucket, casePrefix+casekey.DataObject)
		if err != nil {
			// Ambiguous completion state; abort this account rather than
			// guess either way.
			return nil, 0, err
		}
		if !complete {
			log.Info("found incomplete case", "case", casePrefix)
			incomplete = append(incomplete, casePrefix)
		}
	}
	return incomplete, len(casePrefixes), nil
}

// limitCandidates caps the candidate list at max. A sorted copy is truncated
// so repeated runs under the same cap drain the backlog from the same end
// instead of thrashing between subsets; the input slice is left untouched.
func limitCandidates(candidates []string, max int) []string {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) > max {
		sorted := slices.Clone(candidates)
		sort.Strings(sorted)
		return sorted[:max]
	}
	return candidates
}

// reconcile deletes each accepted case from both buckets and returns how
// many succeeded and how many failed. One case failing never stops the
// rest. In dry-run mode the object lists are still enumerated (the counts
// feed the report) but nothing is deleted.
//
// The completion check and the deletion here are not atomic: a case that
// completes between the scan and this point is still deleted. Accepted for
// now; the upstream stages re-ingest such a case on the next pass.
func (e *Engine) reconcile(ctx context.Context, log *slog.Logger, casePrefixes []string) (removed, failed int) {
	for _, casePrefix := range casePrefixes {
		if err := e.removeCase(ctx, log, casePrefix); err != nil {
			log.Error("failed to remove case", "case", casePrefix, "error", err)
			failed++
			continue
		}
		removed++
	}
	return removed, failed
}

func (e *Engine) removeCase(ctx context.Context, log *slog.Logger, casePrefix string) error {
	rawObjects, err := e.store.ListObjects(ctx, e.cfg.RawBucket, casePrefix)
	if err != nil {
		return err
	}
	processedObjects, err := e.store.ListObjects(ctx, e.cfg.ProcessedBucket, casePrefix)
	if err != nil {
		return err
	}

	if len(rawObjects)+len(processedObjects) == 0 {
		// Already gone, likely removed by a concurrent run. Success.
		log.Warn("no objects found for case in either bucket", "case", casePrefix)
		return nil
	}

	if e.cfg.DryRun {
		log.Info("dry run: would delete case objects",
			"case", casePrefix,
			"raw_objects", len(rawObjects),
			"processed_objects", len(processedObjects))
		return nil
	}

	if len(rawObjects) > 0 {
		if err := e.store.DeleteObjects(ctx, e.cfg.RawBucket, rawObjects); err != nil {
			return err
		}
	}
	if len(processedObjects) > 0 {
		if err := e.store.DeleteObjects(ctx, e.cfg.ProcessedBucket, processedObjects); err != nil {
			return err
		}
	}

	log.Info("deleted case objects",
		"case", casePrefix,
		"deleted", len(rawObjects)+len(processedObjects))
	return nil
}
