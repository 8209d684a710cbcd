package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/support"
)

// RoleARN builds the ARN for the support role in a member account.
func RoleARN(accountID, roleName string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, roleName)
}

// AssumeRoleConfig returns a copy of base whose credentials come from
// assuming roleName in the given account. Credentials are cached and
// refreshed by the provider; callers build service clients from the result.
func AssumeRoleConfig(base awssdk.Config, stsClient STSClient, accountID, roleName, sessionName string) awssdk.Config {
	provider := stscreds.NewAssumeRoleProvider(stsClient, RoleARN(accountID, roleName), func(o *stscreds.AssumeRoleOptions) {
		o.RoleSessionName = sessionName
	})

	cfg := base.Copy()
	cfg.Credentials = awssdk.NewCredentialsCache(provider)
	return cfg
}

// SupportFactory yields a Support client scoped to one member account.
// The retrieval and annotation stages take this instead of a concrete
// client so tests can hand back fakes per account.
type SupportFactory func(ctx context.Context, accountID, sessionName string) (SupportClient, error)

// NewSupportFactory builds the production factory: assume the support role
// in the target account and construct a Support client on those credentials.
func NewSupportFactory(base awssdk.Config, stsClient STSClient, roleName string) SupportFactory {
	return func(ctx context.Context, accountID, sessionName string) (SupportClient, error) {
		cfg := AssumeRoleConfig(base, stsClient, accountID, roleName, sessionName)
		// Force a credential fetch now so role-assumption failures surface
		// here, where the caller classifies them, not on the first API call.
		if _, err := cfg.Credentials.Retrieve(ctx); err != nil {
			return nil, fmt.Errorf("failed to assume role %s: %w", RoleARN(accountID, roleName), err)
		}
		return support.NewFromConfig(cfg), nil
	}
}
