package enrich

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/supportops/case-insights/annotation"
	"github.com/supportops/case-insights/casekey"
	"github.com/supportops/case-insights/config"
	"github.com/supportops/case-insights/integration/mock"
	"github.com/supportops/case-insights/queue"
	"github.com/supportops/case-insights/retrieval"
	"github.com/supportops/case-insights/storage"
)

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "template.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}
	return path
}

func anthropicReply(text string) []byte {
	body, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"text": text}},
	})
	return body
}

func TestParseFilePath(t *testing.T) {
	tests := []struct {
		path       string
		wantBucket string
		wantFolder string
		wantErr    bool
	}{
		{
			path:       "raw/account_number=111122223333/case_number=100",
			wantBucket: "raw",
			wantFolder: "account_number=111122223333/case_number=100",
		},
		{path: "raw", wantErr: true},
		{path: "/folder", wantErr: true},
		{path: "", wantErr: true},
	}
	for _, tt := range tests {
		bucket, folder, err := ParseFilePath(tt.path)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseFilePath(%q) succeeded, want error", tt.path)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFilePath(%q) failed: %v", tt.path, err)
			continue
		}
		if bucket != tt.wantBucket || folder != tt.wantFolder {
			t.Errorf("ParseFilePath(%q) = (%q, %q)", tt.path, bucket, folder)
		}
	}
}

func TestAnnotationText(t *testing.T) {
	comms := annotation.Communications{
		Communications: []annotation.Communication{
			{Body: "Instance unreachable.", TimeCreated: "2026-01-15T10:00:00Z", SubmittedBy: "ops@example.com"},
			{Body: "Resolved.", TimeCreated: "2026-01-15T14:30:00Z", SubmittedBy: "Amazon Web Services"},
		},
	}
	text := AnnotationText(comms)
	want := "Time: 2026-01-15T10:00:00Z\nFrom: ops@example.com\nMessage: Instance unreachable.\n\n" +
		"Time: 2026-01-15T14:30:00Z\nFrom: Amazon Web Services\nMessage: Resolved."
	if text != want {
		t.Errorf("AnnotationText = %q, want %q", text, want)
	}
}

func TestSummarize(t *testing.T) {
	fake := mock.NewS3()
	store := storage.New(fake, testPolicy(), discard())
	key := casekey.Key{AccountID: "111122223333", CaseID: "100"}
	comms := annotation.Communications{
		Communications: []annotation.Communication{
			{Body: "Instance unreachable.", TimeCreated: "2026-01-15T10:00:00Z", SubmittedBy: "ops@example.com"},
		},
	}
	if err := store.WriteJSON(context.Background(), "raw", key.AnnotationKey(), comms); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	client := &mock.Bedrock{Response: anthropicReply("An EC2 host issue, resolved by migration.")}
	cfg := &config.Bedrock{ModelID: "anthropic.claude-3-5-haiku-20241022-v1:0", MaxTokens: 2000}
	invoker := NewInvoker(cfg, client, testPolicy(), discard())
	templatePath := writeTemplate(t, "Summarize the following case:\n{case_annotation}\nBe brief.")

	s := NewSummarizer(store, invoker, templatePath, discard())
	summary, err := s.Summarize(context.Background(), "raw/"+key.Path())
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary != "An EC2 host issue, resolved by migration." {
		t.Errorf("unexpected summary: %q", summary)
	}

	var req anthropicRequest
	if err := json.Unmarshal(client.Requests[0], &req); err != nil {
		t.Fatalf("request does not decode: %v", err)
	}
	prompt := req.Messages[0].Content
	if !strings.Contains(prompt, "Message: Instance unreachable.") {
		t.Errorf("prompt is missing the annotation text: %q", prompt)
	}
	if strings.Contains(prompt, "{case_annotation}") {
		t.Error("placeholder was not substituted")
	}
}

func TestSummarizeFailsWithoutAnnotation(t *testing.T) {
	store := storage.New(mock.NewS3(), testPolicy(), discard())
	cfg := &config.Bedrock{ModelID: "anthropic.claude-3-5-haiku-20241022-v1:0", MaxTokens: 2000}
	invoker := NewInvoker(cfg, &mock.Bedrock{}, testPolicy(), discard())
	templatePath := writeTemplate(t, "{case_annotation}")

	s := NewSummarizer(store, invoker, templatePath, discard())
	if _, err := s.Summarize(context.Background(), "raw/account_number=1/case_number=100"); err == nil {
		t.Fatal("expected an error for a missing annotation document")
	}
}

func TestAnalyze(t *testing.T) {
	client := &mock.Bedrock{
		Response: anthropicReply("```json\n{\"RCA_Category\": \"Networking\", \"RCA_Reason\": \"A security group change cut instance access.\"}\n```"),
	}
	cfg := &config.Bedrock{ModelID: "anthropic.claude-3-5-haiku-20241022-v1:0", MaxTokens: 2000}
	invoker := NewInvoker(cfg, client, testPolicy(), discard())
	templatePath := writeTemplate(t, "Classify the root cause of:\n{Case_Summary}")

	a := NewAnalyzer(invoker, templatePath, discard())
	category, reason, err := a.Analyze(context.Background(), "Access was lost after an SG change.")
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if category != "Networking" {
		t.Errorf("category = %q", category)
	}
	if !strings.Contains(reason, "security group") {
		t.Errorf("reason = %q", reason)
	}

	var req anthropicRequest
	if err := json.Unmarshal(client.Requests[0], &req); err != nil {
		t.Fatalf("request does not decode: %v", err)
	}
	if !strings.Contains(req.Messages[0].Content, "Access was lost after an SG change.") {
		t.Error("summary was not substituted into the prompt")
	}
}

func TestAnalyzeFailsOnUnparseableResponse(t *testing.T) {
	client := &mock.Bedrock{Response: anthropicReply("I am unable to classify this case.")}
	cfg := &config.Bedrock{ModelID: "anthropic.claude-3-5-haiku-20241022-v1:0", MaxTokens: 2000}
	invoker := NewInvoker(cfg, client, testPolicy(), discard())
	templatePath := writeTemplate(t, "{Case_Summary}")

	a := NewAnalyzer(invoker, templatePath, discard())
	if _, _, err := a.Analyze(context.Background(), "summary"); err == nil {
		t.Fatal("expected a parse error")
	}
}

func fullPayload() StepPayload {
	return StepPayload{
		FilePath:          "raw/account_number=111122223333/case_number=100",
		ReceiptHandle:     "receipt-1",
		CaseSummary:       "An EC2 host issue, resolved by migration.",
		RCACategory:       "Compute",
		RCAReason:         "Degraded underlying host.",
		LifecycleCategory: "Resolved",
		LifecycleReason:   "Fixed by AWS-initiated migration.",
	}
}

func TestUpdateWritesTerminalMarkerAndAcks(t *testing.T) {
	fake := mock.NewS3()
	store := storage.New(fake, testPolicy(), discard())
	key := casekey.Key{AccountID: "111122223333", CaseID: "100"}
	seed := retrieval.Case{CaseID: "case-100", DisplayID: "100", Status: "resolved", RetrievalDate: "2026-01-16T00:00:00Z"}
	if err := store.WriteJSON(context.Background(), "raw", key.DataKey(), seed); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	sqsFake := mock.NewSQS()
	cfg := &config.Metadata{ProcessedBucket: "processed", SummaryQueueURL: "https://sqs/summary"}
	u := NewUpdater(cfg, store, queue.New(sqsFake, testPolicy()), discard())
	u.now = func() time.Time { return time.Date(2026, 1, 17, 12, 0, 0, 0, time.UTC) }

	if err := u.Update(context.Background(), fullPayload()); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var record retrieval.Case
	if err := store.ReadJSON(context.Background(), "processed", key.DataKey(), &record); err != nil {
		t.Fatalf("terminal marker not written: %v", err)
	}
	if record.CaseID != "case-100" || record.Status != "resolved" {
		t.Errorf("base fields lost: %+v", record)
	}
	if record.Summary == nil || *record.Summary != "An EC2 host issue, resolved by migration." {
		t.Errorf("summary not applied: %v", record.Summary)
	}
	if record.RCACategory == nil || *record.RCACategory != "Compute" {
		t.Errorf("RCA category not applied: %v", record.RCACategory)
	}
	if record.RCADate == nil || *record.RCADate != "2026-01-17T12:00:00Z" {
		t.Errorf("RCA date = %v", record.RCADate)
	}
	if record.LifecycleCategory == nil || *record.LifecycleCategory != "Resolved" {
		t.Errorf("lifecycle category not applied: %v", record.LifecycleCategory)
	}

	if len(sqsFake.Deleted) != 1 || sqsFake.Deleted[0] != "receipt-1" {
		t.Errorf("queue message not acknowledged: %v", sqsFake.Deleted)
	}
}

func TestUpdateRejectsIncompletePayloads(t *testing.T) {
	store := storage.New(mock.NewS3(), testPolicy(), discard())
	cfg := &config.Metadata{ProcessedBucket: "processed"}
	u := NewUpdater(cfg, store, queue.New(mock.NewSQS(), testPolicy()), discard())

	for _, mutate := range []func(*StepPayload){
		func(p *StepPayload) { p.FilePath = "" },
		func(p *StepPayload) { p.CaseSummary = "" },
		func(p *StepPayload) { p.RCACategory = "" },
		func(p *StepPayload) { p.RCAReason = "" },
		func(p *StepPayload) { p.LifecycleCategory = "" },
		func(p *StepPayload) { p.LifecycleReason = "" },
	} {
		p := fullPayload()
		mutate(&p)
		if err := u.Update(context.Background(), p); err == nil {
			t.Errorf("Update accepted an incomplete payload: %+v", p)
		}
	}
}

func TestUpdateSkipsAckWithoutReceiptHandle(t *testing.T) {
	fake := mock.NewS3()
	store := storage.New(fake, testPolicy(), discard())
	key := casekey.Key{AccountID: "111122223333", CaseID: "100"}
	if err := store.WriteJSON(context.Background(), "raw", key.DataKey(), retrieval.Case{CaseID: "case-100"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	sqsFake := mock.NewSQS()
	cfg := &config.Metadata{ProcessedBucket: "processed", SummaryQueueURL: "https://sqs/summary"}
	u := NewUpdater(cfg, store, queue.New(sqsFake, testPolicy()), discard())

	p := fullPayload()
	p.ReceiptHandle = ""
	if err := u.Update(context.Background(), p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(sqsFake.Deleted) != 0 {
		t.Errorf("unexpected ack: %v", sqsFake.Deleted)
	}
}

func TestUpdateFailsWhenRawRecordIsMissing(t *testing.T) {
	store := storage.New(mock.NewS3(), testPolicy(), discard())
	cfg := &config.Metadata{ProcessedBucket: "processed"}
	u := NewUpdater(cfg, store, queue.New(mock.NewSQS(), testPolicy()), discard())

	if err := u.Update(context.Background(), fullPayload()); err == nil {
		t.Fatal("expected an error for a missing raw record")
	}
}
