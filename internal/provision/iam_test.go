package provision

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/config"
	"github.com/fieldsight/maintkit/internal/logging"
)

func testProvisioner(t *testing.T) *Provisioner {
	t.Helper()
	cfg := config.Defaults()
	return New(&awsx.Clients{Region: "us-west-2"}, &cfg, logging.New(io.Discard, "silent"))
}

func TestFoundationModelARN(t *testing.T) {
	arn := foundationModelARN("us-west-2", "amazon.titan-embed-text-v1")
	assert.Equal(t, "arn:aws:bedrock:us-west-2::foundation-model/amazon.titan-embed-text-v1", arn)
}

func TestServiceTrustPolicy(t *testing.T) {
	doc := serviceTrustPolicy("bedrock.amazonaws.com", map[string]map[string]string{
		"StringEquals": {"aws:SourceAccount": "123456789012"},
	})

	raw, err := doc.encode()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, "2012-10-17", decoded["Version"])

	stmts := decoded["Statement"].([]any)
	require.Len(t, stmts, 1)
	stmt := stmts[0].(map[string]any)
	assert.Equal(t, "Allow", stmt["Effect"])
	assert.Equal(t, map[string]any{"Service": "bedrock.amazonaws.com"}, stmt["Principal"])
	assert.Equal(t, []any{"sts:AssumeRole"}, stmt["Action"])
	cond := stmt["Condition"].(map[string]any)["StringEquals"].(map[string]any)
	assert.Equal(t, "123456789012", cond["aws:SourceAccount"])
}

func TestServiceTrustPolicyNoCondition(t *testing.T) {
	doc := serviceTrustPolicy("lambda.amazonaws.com", nil)
	raw, err := doc.encode()
	require.NoError(t, err)
	assert.NotContains(t, raw, "Condition")
}

func TestLambdaExecutionPolicy(t *testing.T) {
	p := testProvisioner(t)
	doc := p.lambdaExecutionPolicy("123456789012")

	raw, err := doc.encode()
	require.NoError(t, err)

	// Log groups are enumerated for every configured function.
	assert.Contains(t, raw, "arn:aws:logs:us-west-2:123456789012:log-group:/aws/lambda/bedrock-agent-query-handler")
	assert.Contains(t, raw, "arn:aws:logs:us-west-2:123456789012:log-group:/aws/lambda/bedrock-agent-data-sync")
	assert.Contains(t, raw, "arn:aws:logs:us-west-2:123456789012:log-group:/aws/lambda/bedrock-agent-health-check")
	assert.Contains(t, raw, "arn:aws:logs:us-west-2:123456789012:log-group:/aws/lambda/bedrock-agent-session-manager")

	assert.Contains(t, raw, "bedrock:InvokeAgent")
	assert.Contains(t, raw, "bedrock:StartIngestionJob")
	assert.Contains(t, raw, "arn:aws:bedrock:us-west-2:123456789012:knowledge-base/*")
	assert.Contains(t, raw, "arn:aws:dynamodb:us-west-2:123456789012:table/bedrock-agent-sessions")
	assert.Contains(t, raw, "arn:aws:s3:::relu-quicksight/bedrock-recommendations/analytics/*")
	assert.Contains(t, raw, "arn:aws:s3:::relu-quicksight/knowledge-base-data/*")
}

func TestLambdaExecutionPolicyScopesKnownKB(t *testing.T) {
	p := testProvisioner(t)
	p.cfg.Bedrock.KnowledgeBase.ID = "ZRE5Y0KEVD"

	raw, err := p.lambdaExecutionPolicy("123456789012").encode()
	require.NoError(t, err)
	assert.Contains(t, raw, "arn:aws:bedrock:us-west-2:123456789012:knowledge-base/ZRE5Y0KEVD")
	assert.NotContains(t, raw, "knowledge-base/*")
}
