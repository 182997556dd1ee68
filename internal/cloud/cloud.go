// Package cloud holds the AWS client surface cfedge depends on. The
// interfaces are restricted to the operations the reconciliation actually
// performs so tests can substitute small hand-written fakes.
package cloud

import (
	"context"
	"errors"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	cftypes "github.com/aws/aws-sdk-go-v2/service/cloudfront/types"
	"github.com/aws/smithy-go"

	"github.com/geoffdutton/cfedge/internal/model"
)

// CloudFrontAPI is the distribution read/mutate surface.
type CloudFrontAPI interface {
	GetDistribution(ctx context.Context, params *cloudfront.GetDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetDistributionOutput, error)
	GetDistributionConfig(ctx context.Context, params *cloudfront.GetDistributionConfigInput, optFns ...func(*cloudfront.Options)) (*cloudfront.GetDistributionConfigOutput, error)
	UpdateDistribution(ctx context.Context, params *cloudfront.UpdateDistributionInput, optFns ...func(*cloudfront.Options)) (*cloudfront.UpdateDistributionOutput, error)
}

// CloudFormationAPI is the stack introspection surface.
type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	DescribeStackResources(ctx context.Context, params *cloudformation.DescribeStackResourcesInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStackResourcesOutput, error)
}

var (
	_ CloudFrontAPI     = (*cloudfront.Client)(nil)
	_ CloudFormationAPI = (*cloudformation.Client)(nil)
)

// Clients bundles the AWS clients, constructed once at startup with
// credentials and region resolved a single time.
type Clients struct {
	CloudFront     CloudFrontAPI
	CloudFormation CloudFormationAPI
}

// New resolves the AWS configuration and builds the service clients.
func New(ctx context.Context, stack model.StackConfig) (*Clients, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if stack.Region != "" {
		opts = append(opts, awsconfig.WithRegion(stack.Region))
	}
	if stack.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(stack.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Clients{
		CloudFront:     cloudfront.NewFromConfig(cfg),
		CloudFormation: cloudformation.NewFromConfig(cfg),
	}, nil
}

// IsPreconditionFailed reports whether err is CloudFront rejecting a stale
// update token.
func IsPreconditionFailed(err error) bool {
	var pf *cftypes.PreconditionFailed
	return errors.As(err, &pf)
}

// IsStackNotFound reports whether err is CloudFormation's missing-stack
// response. The service signals it as a generic ValidationError whose message
// ends in "does not exist".
func IsStackNotFound(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.ErrorCode() == "ValidationError" &&
		strings.Contains(apiErr.ErrorMessage(), "does not exist")
}
