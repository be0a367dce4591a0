package probe

import (
	"context"
	"testing"

	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/config"
	"github.com/fieldsight/maintkit/internal/logging"
)

func silentLog() *logging.Logger {
	return logging.New(nil, "silent")
}

func envResponse(vars map[string]string) *lambdatypes.EnvironmentResponse {
	return &lambdatypes.EnvironmentResponse{Variables: vars}
}

func TestAllPassed(t *testing.T) {
	assert.False(t, AllPassed(nil))
	assert.True(t, AllPassed([]CheckResult{
		{Name: "a", Passed: true},
		{Name: "b", Passed: true},
	}))
	assert.False(t, AllPassed([]CheckResult{
		{Name: "a", Passed: true},
		{Name: "b", Passed: false},
	}))
}

func TestCheckKnowledgeBaseUnregistered(t *testing.T) {
	p := New(&awsx.Clients{Region: "us-west-2"}, &config.Config{}, silentLog())

	_, err := p.checkKnowledgeBase(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kb create")
}

func TestDiagnoseUnregistered(t *testing.T) {
	p := New(&awsx.Clients{Region: "us-west-2"}, &config.Config{}, silentLog())

	out := p.Diagnose(context.Background())
	require.Len(t, out, 6)

	resources := make([]string, 0, len(out))
	for _, d := range out {
		resources = append(resources, d.Resource)
		assert.False(t, d.Live)
		assert.Contains(t, d.Notes, "not registered")
	}
	assert.Equal(t, []string{
		"agent",
		"knowledge base",
		"vector collection",
		"agent role",
		"knowledge base role",
		"lambda role",
	}, resources)
}

func TestEnvDrift(t *testing.T) {
	t.Run("matching", func(t *testing.T) {
		live := envResponse(map[string]string{"KNOWLEDGE_BASE_ID": "KB123", "EXTRA": "ok"})

		assert.Empty(t, envDrift(map[string]string{"KNOWLEDGE_BASE_ID": "KB123"}, live))
	})

	t.Run("changed and missing", func(t *testing.T) {
		live := envResponse(map[string]string{"KNOWLEDGE_BASE_ID": "KB999"})
		want := map[string]string{"KNOWLEDGE_BASE_ID": "KB123", "DATA_SOURCE_ID": "DS1"}

		assert.Equal(t, []string{"DATA_SOURCE_ID", "KNOWLEDGE_BASE_ID"}, envDrift(want, live))
	})

	t.Run("no live environment", func(t *testing.T) {
		want := map[string]string{"SESSION_TABLE": "sessions"}

		assert.Equal(t, []string{"SESSION_TABLE"}, envDrift(want, nil))
	})
}
