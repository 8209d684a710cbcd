// Package aws defines the narrow interfaces the pipeline needs from each AWS
// service, so components depend on exactly the calls they make and tests can
// substitute in-memory fakes. The SDK clients satisfy these directly.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/organizations"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/support"
)

// S3Client covers both case buckets: document reads/writes, the completion
// head check, prefix listing and bulk deletion.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// SQSClient is the hand-off between pipeline stages.
type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// STSClient vends cross-account credentials. The method signature matches
// stscreds.AssumeRoleAPIClient so the same value feeds the credentials
// provider.
type STSClient interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// CloudWatchClient publishes the run counters.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// SFNClient triggers the per-case analysis workflow.
type SFNClient interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
}

// OrganizationsClient enumerates the member accounts.
type OrganizationsClient interface {
	ListAccounts(ctx context.Context, params *organizations.ListAccountsInput, optFns ...func(*organizations.Options)) (*organizations.ListAccountsOutput, error)
}

// SupportClient reads cases and their communications from a member account.
type SupportClient interface {
	DescribeCases(ctx context.Context, params *support.DescribeCasesInput, optFns ...func(*support.Options)) (*support.DescribeCasesOutput, error)
	DescribeCommunications(ctx context.Context, params *support.DescribeCommunicationsInput, optFns ...func(*support.Options)) (*support.DescribeCommunicationsOutput, error)
}

// BedrockClient invokes the managed LLM endpoint.
type BedrockClient interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Compile-time checks that the SDK clients satisfy the interfaces.
var (
	_ S3Client            = (*s3.Client)(nil)
	_ SQSClient           = (*sqs.Client)(nil)
	_ STSClient           = (*sts.Client)(nil)
	_ CloudWatchClient    = (*cloudwatch.Client)(nil)
	_ SFNClient           = (*sfn.Client)(nil)
	_ OrganizationsClient = (*organizations.Client)(nil)
	_ SupportClient       = (*support.Client)(nil)
	_ BedrockClient       = (*bedrockruntime.Client)(nil)
)
