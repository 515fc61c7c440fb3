package agent

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Identity describes the AWS principal the service authenticates as.
type Identity struct {
	Account string
	ARN     string
}

// CredentialChecker verifies that usable AWS credentials are available.
type CredentialChecker interface {
	Check(ctx context.Context) (Identity, error)
}

// STSAPI mirrors the one STS method used for credential checks. It matches
// *sts.Client.
type STSAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// STSChecker verifies credentials by calling STS GetCallerIdentity.
type STSChecker struct {
	api STSAPI
}

// NewSTSChecker returns a checker backed by api.
func NewSTSChecker(api STSAPI) *STSChecker {
	return &STSChecker{api: api}
}

// Check performs one credential check and returns the caller identity.
func (c *STSChecker) Check(ctx context.Context) (Identity, error) {
	out, err := c.api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, err
	}
	return Identity{Account: aws.ToString(out.Account), ARN: aws.ToString(out.Arn)}, nil
}
