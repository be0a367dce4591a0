package awsx

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRegion(t *testing.T) {
	t.Setenv("AWS_REGION", "")
	t.Setenv("AWS_DEFAULT_REGION", "")

	assert.Equal(t, "eu-central-1", ResolveRegion("eu-central-1"))
	assert.Equal(t, DefaultRegion, ResolveRegion(""))

	t.Setenv("AWS_DEFAULT_REGION", "ap-southeast-2")
	assert.Equal(t, "ap-southeast-2", ResolveRegion(""))

	t.Setenv("AWS_REGION", "us-east-1")
	assert.Equal(t, "us-east-1", ResolveRegion(""))

	assert.Equal(t, "eu-west-1", ResolveRegion("eu-west-1"))
}

func TestNew(t *testing.T) {
	t.Setenv("AWS_PROFILE", "")

	clients, err := New(context.Background(), "us-west-2")
	require.NoError(t, err)

	assert.Equal(t, "us-west-2", clients.Region)
	assert.Equal(t, "us-west-2", clients.Config().Region)
	assert.NotNil(t, clients.Bedrock)
	assert.NotNil(t, clients.Agent)
	assert.NotNil(t, clients.AgentRuntime)
	assert.NotNil(t, clients.Vector)
	assert.NotNil(t, clients.Lambda)
	assert.NotNil(t, clients.IAM)
	assert.NotNil(t, clients.S3)
	assert.NotNil(t, clients.STS)
	assert.NotNil(t, clients.Logs)
	assert.NotNil(t, clients.DynamoDB)
}

func apiErr(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: "test"}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "ValidationException", ErrorCode(apiErr("ValidationException")))
	assert.Equal(t, "", ErrorCode(errors.New("plain error")))
	assert.Equal(t, "", ErrorCode(nil))

	wrapped := fmt.Errorf("creating role: %w", apiErr("EntityAlreadyExists"))
	assert.Equal(t, "EntityAlreadyExists", ErrorCode(wrapped))
}

func TestIsNotFound(t *testing.T) {
	for _, code := range []string{
		"ResourceNotFoundException",
		"NoSuchEntity",
		"NoSuchBucket",
		"NoSuchKey",
		"NotFound",
		"404",
	} {
		assert.True(t, IsNotFound(apiErr(code)), code)
	}
	assert.False(t, IsNotFound(apiErr("ValidationException")))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestIsConflict(t *testing.T) {
	assert.True(t, IsConflict(apiErr("ConflictException")))
	assert.True(t, IsConflict(apiErr("EntityAlreadyExists")))
	assert.True(t, IsConflict(apiErr("ResourceInUseException")))
	assert.False(t, IsConflict(apiErr("AccessDenied")))
}

func TestIsAccessDenied(t *testing.T) {
	assert.True(t, IsAccessDenied(apiErr("AccessDenied")))
	assert.True(t, IsAccessDenied(apiErr("AccessDeniedException")))
	assert.True(t, IsAccessDenied(apiErr("403")))
	assert.False(t, IsAccessDenied(apiErr("NoSuchBucket")))
}

func TestIsThrottled(t *testing.T) {
	assert.True(t, IsThrottled(apiErr("ThrottlingException")))
	assert.True(t, IsThrottled(apiErr("TooManyRequestsException")))
	assert.False(t, IsThrottled(apiErr("ConflictException")))
}
