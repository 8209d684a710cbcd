// Package accounts maintains the organization's account inventory: a lookup
// that writes the active account list to S3, and a reader that fans the list
// out to the retrieval queue.
package accounts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/organizations"
	orgtypes "github.com/aws/aws-sdk-go-v2/service/organizations/types"

	"github.com/supportops/case-insights/aws"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/queue"
	"github.com/supportops/case-insights/storage"
)

// ListKey is the object key of the account inventory document.
const ListKey = "active_aws_accounts.json"

// Account is one active member account.
type Account struct {
	AccountID   string `json:"accountId"`
	AccountName string `json:"accountName"`
}

// List is the inventory document written to the account list bucket.
type List struct {
	Accounts  []Account `json:"accounts"`
	Timestamp string    `json:"timestamp"`
	Count     int       `json:"count"`
}

// Message is the per-account fan-out message consumed by case retrieval.
type Message struct {
	AccountID   string `json:"accountId"`
	AccountName string `json:"accountName"`
}

// Lookup writes the current set of active accounts to S3.
type Lookup struct {
	cfg   *config.Lookup
	orgs  aws.OrganizationsClient
	store *storage.Store
	now   func() time.Time
	log   *slog.Logger
}

// NewLookup wires the lookup stage. now may be nil.
func NewLookup(cfg *config.Lookup, orgs aws.OrganizationsClient, store *storage.Store, log *slog.Logger) *Lookup {
	if log == nil {
		log = slog.Default()
	}
	return &Lookup{cfg: cfg, orgs: orgs, store: store, now: time.Now, log: log}
}

// Run lists the organization's accounts, keeps the active ones and writes
// the inventory document. Returns the number of accounts written.
func (l *Lookup) Run(ctx context.Context) (int, error) {
	var active []Account

	p := organizations.NewListAccountsPaginator(l.orgs, &organizations.ListAccountsInput{})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to list accounts in organization %s: %w", l.cfg.OrganizationID, err)
		}
		for _, acct := range page.Accounts {
			if acct.Status != orgtypes.AccountStatusActive {
				continue
			}
			active = append(active, Account{
				AccountID:   deref(acct.Id),
				AccountName: deref(acct.Name),
			})
		}
	}
	l.log.Info("found active accounts", "organization_id", l.cfg.OrganizationID, "count", len(active))

	doc := List{
		Accounts:  active,
		Timestamp: l.now().UTC().Format(time.RFC3339),
		Count:     len(active),
	}
	if err := l.store.WriteJSON(ctx, l.cfg.AccountListBucket, ListKey, doc); err != nil {
		return 0, err
	}

	l.log.Info("wrote account list",
		"bucket", l.cfg.AccountListBucket, "key", ListKey, "count", len(active))
	return len(active), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Reader fans a freshly written account list out to the retrieval queue.
type Reader struct {
	cfg   *config.Reader
	store *storage.Store
	queue *queue.Client
	log   *slog.Logger
}

// NewReader wires the fan-out stage.
func NewReader(cfg *config.Reader, store *storage.Store, q *queue.Client, log *slog.Logger) *Reader {
	if log == nil {
		log = slog.Default()
	}
	return &Reader{cfg: cfg, store: store, queue: q, log: log}
}

// ProcessObject reads the inventory document that triggered the event and
// sends one message per account. Returns the number of accounts queued.
func (r *Reader) ProcessObject(ctx context.Context, bucket, key string) (int, error) {
	var doc List
	if err := r.store.ReadJSON(ctx, bucket, key, &doc); err != nil {
		return 0, err
	}
	r.log.Info("processing account list", "bucket", bucket, "key", key, "count", len(doc.Accounts))

	for _, acct := range doc.Accounts {
		msgID, err := r.queue.SendJSON(ctx, r.cfg.AccountsQueueURL, Message{
			AccountID:   acct.AccountID,
			AccountName: acct.AccountName,
		})
		if err != nil {
			return 0, fmt.Errorf("failed to queue account %s: %w", acct.AccountID, err)
		}
		r.log.Info("queued account", "account_id", acct.AccountID, "message_id", msgID)
	}
	return len(doc.Accounts), nil
}
