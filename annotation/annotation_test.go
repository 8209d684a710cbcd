package annotation_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/support"
	supporttypes "github.com/aws/aws-sdk-go-v2/service/support/types"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/annotation"
	"github.com/supportops/case-insights/aws"
	"github.com/supportops/case-insights/casekey"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/integration/mock"
	"github.com/supportops/case-insights/queue"
	"github.com/supportops/case-insights/retry"
	"github.com/supportops/case-insights/storage"
)

const summaryQueue = "https://sqs/summary"

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 2,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func newAnnotator(fake *mock.S3, sqsFake *mock.SQS, sc aws.SupportClient, factoryErr error) *annotation.Annotator {
	log := slog.New(slog.DiscardHandler)
	cfg := &config.Annotation{
		RawBucket:       "raw",
		SupportRoleName: "SupportCaseReader",
		SummaryQueueURL: summaryQueue,
	}
	factory := func(context.Context, string, string) (aws.SupportClient, error) {
		return sc, factoryErr
	}
	return annotation.NewAnnotator(cfg, storage.New(fake, testPolicy(), log), queue.New(sqsFake, testPolicy()), factory, log)
}

func TestProcessCaseStoresCommunicationsAndQueuesSummary(t *testing.T) {
	sc := &mock.Support{
		Communications: []support.DescribeCommunicationsOutput{
			{
				Communications: []supporttypes.Communication{
					{
						Body:        awssdk.String("Instance i-abc is unreachable."),
						TimeCreated: awssdk.String("2026-01-15T10:00:00Z"),
						SubmittedBy: awssdk.String("ops@example.com"),
					},
				},
				NextToken: awssdk.String("next"),
			},
			{
				Communications: []supporttypes.Communication{
					{
						Body:        awssdk.String("Resolved after a host migration."),
						TimeCreated: awssdk.String("2026-01-15T14:30:00Z"),
						SubmittedBy: awssdk.String("Amazon Web Services"),
					},
				},
			},
		},
	}
	fake := mock.NewS3()
	sqsFake := mock.NewSQS()

	err := newAnnotator(fake, sqsFake, sc, nil).ProcessCase(context.Background(), "111122223333", "100", "case-100")
	if err != nil {
		t.Fatalf("ProcessCase failed: %v", err)
	}

	key := casekey.Key{AccountID: "111122223333", CaseID: "100"}
	if !fake.Has("raw", key.AnnotationKey()) {
		t.Fatal("annotation document not written")
	}

	log := slog.New(slog.DiscardHandler)
	var comms annotation.Communications
	if err := storage.New(fake, testPolicy(), log).ReadJSON(context.Background(), "raw", key.AnnotationKey(), &comms); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if len(comms.Communications) != 2 {
		t.Fatalf("stored %d communications, want 2 (both pages)", len(comms.Communications))
	}
	if comms.Communications[1].SubmittedBy != "Amazon Web Services" {
		t.Errorf("unexpected second communication: %+v", comms.Communications[1])
	}

	sent := sqsFake.Sent[summaryQueue]
	if len(sent) != 1 {
		t.Fatalf("expected 1 summary message, got %d", len(sent))
	}
	var msg annotation.SummaryMessage
	if err := json.Unmarshal([]byte(sent[0]), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if want := "raw/account_number=111122223333/case_number=100"; msg.FilePath != want {
		t.Errorf("FilePath = %q, want %q", msg.FilePath, want)
	}
}

func TestProcessCaseFailsWhenRoleCannotBeAssumed(t *testing.T) {
	err := newAnnotator(mock.NewS3(), mock.NewSQS(), nil, errors.New("assume role denied")).
		ProcessCase(context.Background(), "111122223333", "100", "case-100")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestProcessCaseFailsOnCommunicationsError(t *testing.T) {
	sc := &mock.Support{CommsErr: errors.New("throttled")}
	sqsFake := mock.NewSQS()

	err := newAnnotator(mock.NewS3(), sqsFake, sc, nil).ProcessCase(context.Background(), "111122223333", "100", "case-100")
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(sqsFake.Sent[summaryQueue]) != 0 {
		t.Error("no summary message should be queued on failure")
	}
}
