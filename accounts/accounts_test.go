package accounts_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"
	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/accounts"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/integration/mock"
	"github.com/supportops/case-insights/queue"
	"github.com/supportops/case-insights/retry"
	"github.com/supportops/case-insights/storage"
)

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 2,
		Sleep:       func(context.Context, time.Duration) error { return nil },
	}
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestLookupWritesActiveAccounts(t *testing.T) {
	orgs := &mock.Organizations{
		Pages: []organizations.ListAccountsOutput{
			{
				Accounts: []orgtypes.Account{
					{Id: awssdk.String("111122223333"), Name: awssdk.String("prod"), Status: orgtypes.AccountStatusActive},
					{Id: awssdk.String("444455556666"), Name: awssdk.String("closed"), Status: orgtypes.AccountStatusSuspended},
				},
			},
			{
				Accounts: []orgtypes.Account{
					{Id: awssdk.String("777788889999"), Name: awssdk.String("dev"), Status: orgtypes.AccountStatusActive},
				},
			},
		},
	}
	fake := mock.NewS3()
	cfg := &config.Lookup{OrganizationID: "o-example", AccountListBucket: "inventory"}

	lookup := accounts.NewLookup(cfg, orgs, storage.New(fake, testPolicy(), discard()), discard())
	n, err := lookup.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Run = %d accounts, want 2 (suspended filtered out)", n)
	}

	if !fake.Has("inventory", accounts.ListKey) {
		t.Fatal("inventory document was not written")
	}
	var doc accounts.List
	store := storage.New(fake, testPolicy(), discard())
	if err := store.ReadJSON(context.Background(), "inventory", accounts.ListKey, &doc); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if doc.Count != 2 || len(doc.Accounts) != 2 {
		t.Errorf("document = %+v, want 2 accounts", doc)
	}
	if doc.Accounts[0].AccountID != "111122223333" || doc.Accounts[1].AccountID != "777788889999" {
		t.Errorf("unexpected accounts: %+v", doc.Accounts)
	}
	if _, err := time.Parse(time.RFC3339, doc.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", doc.Timestamp, err)
	}
}

func TestLookupPropagatesListFailure(t *testing.T) {
	orgs := &mock.Organizations{ListErr: context.DeadlineExceeded}
	cfg := &config.Lookup{OrganizationID: "o-example", AccountListBucket: "inventory"}

	lookup := accounts.NewLookup(cfg, orgs, storage.New(mock.NewS3(), testPolicy(), discard()), discard())
	if _, err := lookup.Run(context.Background()); err == nil {
		t.Fatal("expected an error")
	}
}

func TestReaderFansOutAccounts(t *testing.T) {
	fake := mock.NewS3()
	store := storage.New(fake, testPolicy(), discard())
	doc := accounts.List{
		Accounts: []accounts.Account{
			{AccountID: "111122223333", AccountName: "prod"},
			{AccountID: "777788889999", AccountName: "dev"},
		},
		Count: 2,
	}
	if err := store.WriteJSON(context.Background(), "inventory", accounts.ListKey, doc); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	sqsFake := mock.NewSQS()
	cfg := &config.Reader{AccountsQueueURL: "https://sqs/accounts"}
	reader := accounts.NewReader(cfg, store, queue.New(sqsFake, testPolicy()), discard())

	n, err := reader.ProcessObject(context.Background(), "inventory", accounts.ListKey)
	if err != nil {
		t.Fatalf("ProcessObject failed: %v", err)
	}
	if n != 2 {
		t.Errorf("ProcessObject = %d, want 2", n)
	}

	sent := sqsFake.Sent["https://sqs/accounts"]
	if len(sent) != 2 {
		t.Fatalf("expected 2 queued messages, got %d", len(sent))
	}
	var msg accounts.Message
	if err := json.Unmarshal([]byte(sent[0]), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if msg.AccountID != "111122223333" || msg.AccountName != "prod" {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestReaderFailsOnMissingDocument(t *testing.T) {
	store := storage.New(mock.NewS3(), testPolicy(), discard())
	cfg := &config.Reader{AccountsQueueURL: "https://sqs/accounts"}
	reader := accounts.NewReader(cfg, store, queue.New(mock.NewSQS(), testPolicy()), discard())

	if _, err := reader.ProcessObject(context.Background(), "inventory", accounts.ListKey); err == nil {
		t.Fatal("expected an error for a missing inventory document")
	}
}
