// Package awsx loads AWS SDK configuration once and hands out the service
// clients the provisioning and runtime paths share.
package awsx

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// DefaultRegion is used when neither the registry nor the environment
// names one.
const DefaultRegion = "us-west-2"

// ResolveRegion picks the region to use: the explicit value when set,
// then the standard AWS environment variables, then DefaultRegion.
func ResolveRegion(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		return v
	}
	if v := os.Getenv("AWS_DEFAULT_REGION"); v != "" {
		return v
	}
	return DefaultRegion
}

// Clients bundles the service clients used across the toolkit. All of
// them share a single aws.Config, so they resolve credentials the same
// way and talk to the same region.
type Clients struct {
	Region string

	cfg aws.Config

	Bedrock      *bedrock.Client
	Agent        *bedrockagent.Client
	AgentRuntime *bedrockagentruntime.Client
	Vector       *opensearchserverless.Client
	Lambda       *lambda.Client
	IAM          *iam.Client
	S3           *s3.Client
	STS          *sts.Client
	Logs         *cloudwatchlogs.Client
	DynamoDB     *dynamodb.Client
}

// New loads the default credential chain for region and constructs the
// service clients. An empty region falls through ResolveRegion.
func New(ctx context.Context, region string) (*Clients, error) {
	region = ResolveRegion(region)
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return FromConfig(cfg), nil
}

// FromConfig builds the client bundle from an already-loaded aws.Config.
// Lambda handlers use this with the config the runtime gives them.
func FromConfig(cfg aws.Config) *Clients {
	return &Clients{
		Region:       cfg.Region,
		cfg:          cfg,
		Bedrock:      bedrock.NewFromConfig(cfg),
		Agent:        bedrockagent.NewFromConfig(cfg),
		AgentRuntime: bedrockagentruntime.NewFromConfig(cfg),
		Vector:       opensearchserverless.NewFromConfig(cfg),
		Lambda:       lambda.NewFromConfig(cfg),
		IAM:          iam.NewFromConfig(cfg),
		S3:           s3.NewFromConfig(cfg),
		STS:          sts.NewFromConfig(cfg),
		Logs:         cloudwatchlogs.NewFromConfig(cfg),
		DynamoDB:     dynamodb.NewFromConfig(cfg),
	}
}

// Config returns the underlying aws.Config for callers that need to
// construct something the bundle does not carry.
func (c *Clients) Config() aws.Config { return c.cfg }

// AccountID returns the caller's account ID via STS.
func (c *Clients) AccountID(ctx context.Context) (string, error) {
	out, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("getting caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}

// ErrorCode returns the service error code carried by err, or "" when
// err is not an AWS API error.
func ErrorCode(err error) string {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode()
	}
	return ""
}

// IsNotFound reports whether err is one of the not-found codes the
// services in play return for missing resources. S3 HEAD calls surface
// the bare status text, so those are included too.
func IsNotFound(err error) bool {
	switch ErrorCode(err) {
	case "ResourceNotFoundException",
		"NoSuchEntity",
		"NoSuchBucket",
		"NoSuchKey",
		"NotFoundException",
		"NotFound",
		"404":
		return true
	}
	return false
}

// IsConflict reports whether err indicates the resource already exists
// or is mid-transition.
func IsConflict(err error) bool {
	switch ErrorCode(err) {
	case "ConflictException",
		"ResourceAlreadyExistsException",
		"EntityAlreadyExists",
		"ResourceInUseException":
		return true
	}
	return false
}

// IsAccessDenied reports whether err is a permissions failure.
func IsAccessDenied(err error) bool {
	switch ErrorCode(err) {
	case "AccessDenied",
		"AccessDeniedException",
		"Forbidden",
		"403":
		return true
	}
	return false
}

// IsThrottled reports whether err indicates the caller should back off.
func IsThrottled(err error) bool {
	switch ErrorCode(err) {
	case "ThrottlingException", "TooManyRequestsException":
		return true
	}
	return false
}
