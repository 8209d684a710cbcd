package mock

import (
	"context"
	"fmt"
	"sync"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/support"

	"github.com/supportops/case-insights/aws"
)

// SQS records sent messages per queue URL and deleted receipt handles.
type SQS struct {
	mu       sync.Mutex
	Sent     map[string][]string
	Deleted  []string
	SendErr  error
	nextID   int
}

var _ aws.SQSClient = (*SQS)(nil)

func NewSQS() *SQS {
	return &SQS{Sent: make(map[string][]string)}
}

func (m *SQS) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	url := awssdk.ToString(params.QueueUrl)
	m.Sent[url] = append(m.Sent[url], awssdk.ToString(params.MessageBody))
	m.nextID++
	return &sqs.SendMessageOutput{MessageId: awssdk.String(fmt.Sprintf("msg-%d", m.nextID))}, nil
}

func (m *SQS) DeleteMessage(_ context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, awssdk.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

// CloudWatch records every PutMetricData call.
type CloudWatch struct {
	mu     sync.Mutex
	Calls  []*cloudwatch.PutMetricDataInput
	PutErr error
}

var _ aws.CloudWatchClient = (*CloudWatch)(nil)

func NewCloudWatch() *CloudWatch { return &CloudWatch{} }

func (m *CloudWatch) PutMetricData(_ context.Context, params *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return nil, m.PutErr
	}
	m.Calls = append(m.Calls, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// Support serves canned case and communication pages and records the case
// queries it was asked.
type Support struct {
	Cases          []support.DescribeCasesOutput
	Communications []support.DescribeCommunicationsOutput
	CasesErr       error
	CommsErr       error
	CasesInputs    []*support.DescribeCasesInput

	casesPage int
	commsPage int
}

var _ aws.SupportClient = (*Support)(nil)

func (m *Support) DescribeCases(_ context.Context, params *support.DescribeCasesInput, _ ...func(*support.Options)) (*support.DescribeCasesOutput, error) {
	if m.CasesErr != nil {
		return nil, m.CasesErr
	}
	m.CasesInputs = append(m.CasesInputs, params)
	if m.casesPage >= len(m.Cases) {
		return &support.DescribeCasesOutput{}, nil
	}
	out := m.Cases[m.casesPage]
	m.casesPage++
	return &out, nil
}

func (m *Support) DescribeCommunications(_ context.Context, _ *support.DescribeCommunicationsInput, _ ...func(*support.Options)) (*support.DescribeCommunicationsOutput, error) {
	if m.CommsErr != nil {
		return nil, m.CommsErr
	}
	if m.commsPage >= len(m.Communications) {
		return &support.DescribeCommunicationsOutput{}, nil
	}
	out := m.Communications[m.commsPage]
	m.commsPage++
	return &out, nil
}

// Bedrock answers every invocation with a fixed body and records the
// request bodies it saw.
type Bedrock struct {
	Response  []byte
	InvokeErr error
	Requests  [][]byte
}

var _ aws.BedrockClient = (*Bedrock)(nil)

func (m *Bedrock) InvokeModel(_ context.Context, params *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	if m.InvokeErr != nil {
		return nil, m.InvokeErr
	}
	m.Requests = append(m.Requests, params.Body)
	return &bedrockruntime.InvokeModelOutput{Body: m.Response}, nil
}

// SFN records started executions.
type SFN struct {
	Inputs   []string
	StartErr error
}

var _ aws.SFNClient = (*SFN)(nil)

func (m *SFN) StartExecution(_ context.Context, params *sfn.StartExecutionInput, _ ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
	if m.StartErr != nil {
		return nil, m.StartErr
	}
	m.Inputs = append(m.Inputs, awssdk.ToString(params.Input))
	arn := fmt.Sprintf("arn:aws:states:::execution/%d", len(m.Inputs))
	return &sfn.StartExecutionOutput{ExecutionArn: awssdk.String(arn)}, nil
}

// Organizations serves canned account pages.
type Organizations struct {
	Pages   []organizations.ListAccountsOutput
	ListErr error

	page int
}

var _ aws.OrganizationsClient = (*Organizations)(nil)

func (m *Organizations) ListAccounts(_ context.Context, _ *organizations.ListAccountsInput, _ ...func(*organizations.Options)) (*organizations.ListAccountsOutput, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	if m.page >= len(m.Pages) {
		return &organizations.ListAccountsOutput{}, nil
	}
	out := m.Pages[m.page]
	m.page++
	if m.page < len(m.Pages) && out.NextToken == nil {
		out.NextToken = awssdk.String(fmt.Sprintf("page-%d", m.page))
	}
	return &out, nil
}
