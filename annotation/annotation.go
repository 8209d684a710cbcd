// Package annotation fetches the full communication thread for a retrieved
// case, stores it next to the case data and hands the case to the analysis
// workflow queue.
package annotation

import (
	"context"
	"fmt"
	"log/slog"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/support"

	"github.com/supportops/case-insights/aws"
	"github.com/supportops/case-insights/casekey"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/queue"
	"github.com/supportops/case-insights/storage"
)

// Communication is one message on a support case.
type Communication struct {
	Body        string `json:"body"`
	TimeCreated string `json:"timeCreated"`
	SubmittedBy string `json:"submittedBy"`
}

// Communications is the annotation document stored per case.
type Communications struct {
	Communications []Communication `json:"communications"`
}

// SummaryMessage points the analysis workflow at one annotated case. The
// path is "<bucket>/<case folder>".
type SummaryMessage struct {
	FilePath string `json:"filePath"`
}

// Annotator processes one case per queue message.
type Annotator struct {
	cfg        *config.Annotation
	store      *storage.Store
	queue      *queue.Client
	supportFor aws.SupportFactory
	log        *slog.Logger
}

// NewAnnotator wires the annotation stage.
func NewAnnotator(cfg *config.Annotation, store *storage.Store, q *queue.Client, supportFor aws.SupportFactory, log *slog.Logger) *Annotator {
	if log == nil {
		log = slog.Default()
	}
	return &Annotator{cfg: cfg, store: store, queue: q, supportFor: supportFor, log: log}
}

// ProcessCase fetches the case's communications, writes annotation.json
// under the case folder in the raw bucket and queues the case for
// summarization.
func (a *Annotator) ProcessCase(ctx context.Context, accountID, displayID, caseID string) error {
	log := a.log.With("account_id", accountID, "display_id", displayID)

	client, err := a.supportFor(ctx, accountID, "CaseAnnotation-"+displayID)
	if err != nil {
		return fmt.Errorf("failed to reach account %s: %w", accountID, err)
	}

	comms, err := a.fetchCommunications(ctx, client, caseID)
	if err != nil {
		return err
	}
	log.Info("retrieved communications", "count", len(comms.Communications))

	key := casekey.Key{AccountID: accountID, CaseID: displayID}
	if err := a.store.WriteJSON(ctx, a.cfg.RawBucket, key.AnnotationKey(), comms); err != nil {
		return err
	}

	if _, err := a.queue.SendJSON(ctx, a.cfg.SummaryQueueURL, SummaryMessage{
		FilePath: a.cfg.RawBucket + "/" + key.Path(),
	}); err != nil {
		return err
	}

	log.Info("annotated case")
	return nil
}

func (a *Annotator) fetchCommunications(ctx context.Context, client aws.SupportClient, caseID string) (Communications, error) {
	var comms Communications
	var nextToken *string
	for {
		out, err := client.DescribeCommunications(ctx, &support.DescribeCommunicationsInput{
			CaseId:    awssdk.String(caseID),
			NextToken: nextToken,
		})
		if err != nil {
			return Communications{}, fmt.Errorf("failed to describe communications for case %s: %w", caseID, err)
		}

		for _, c := range out.Communications {
			comms.Communications = append(comms.Communications, Communication{
				Body:        awssdk.ToString(c.Body),
				TimeCreated: awssdk.ToString(c.TimeCreated),
				SubmittedBy: awssdk.ToString(c.SubmittedBy),
			})
		}

		nextToken = out.NextToken
		if nextToken == nil {
			return comms, nil
		}
	}
}
