package lambdafn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsight/maintkit/internal/faultdata"
	"github.com/fieldsight/maintkit/internal/version"
)

type fakeHealthReader struct {
	verifyErr error
	files     []faultdata.FileInfo
	listErr   error
}

func (f *fakeHealthReader) VerifyAccess(ctx context.Context) error { return f.verifyErr }

func (f *fakeHealthReader) ListFaultFiles(ctx context.Context, max int) ([]faultdata.FileInfo, error) {
	return f.files, f.listErr
}

type fakeInspector struct {
	agentStatus agenttypes.AgentStatus
	agentErr    error
	kbStatus    agenttypes.KnowledgeBaseStatus
	kbErr       error
}

func (f *fakeInspector) GetAgent(ctx context.Context, params *bedrockagent.GetAgentInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetAgentOutput, error) {
	if f.agentErr != nil {
		return nil, f.agentErr
	}
	return &bedrockagent.GetAgentOutput{Agent: &agenttypes.Agent{AgentStatus: f.agentStatus}}, nil
}

func (f *fakeInspector) GetKnowledgeBase(ctx context.Context, params *bedrockagent.GetKnowledgeBaseInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetKnowledgeBaseOutput, error) {
	if f.kbErr != nil {
		return nil, f.kbErr
	}
	return &bedrockagent.GetKnowledgeBaseOutput{KnowledgeBase: &agenttypes.KnowledgeBase{Status: f.kbStatus}}, nil
}

func newHealthTestHandler(reader healthReader, inspector agentInspector, agentID, kbID string) *HealthHandler {
	return &HealthHandler{
		reader:  reader,
		agent:   inspector,
		agentID: agentID,
		kbID:    kbID,
		log:     silentLog().Sub("health_check"),
	}
}

func TestHealthAllHealthy(t *testing.T) {
	reader := &fakeHealthReader{files: []faultdata.FileInfo{{Key: "a.json"}}}
	inspector := &fakeInspector{
		agentStatus: agenttypes.AgentStatusPrepared,
		kbStatus:    agenttypes.KnowledgeBaseStatusActive,
	}
	h := newHealthTestHandler(reader, inspector, "AGENT1", "KB1")

	resp, err := h.Handle(context.Background(), urlEvent(http.MethodGet, "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report HealthReport
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &report))
	assert.Equal(t, statusHealthy, report.Status)
	assert.Equal(t, version.Version, report.Version)
	assert.Len(t, report.Services, 4)
	assert.Equal(t, statusHealthy, report.Services["bedrock_agent"].Status)
	assert.Equal(t, "AGENT1", report.Services["bedrock_agent"].AgentID)
	assert.Equal(t, "KB1", report.Services["knowledge_base"].KBID)
	assert.Equal(t, "*", resp.Headers["Access-Control-Allow-Origin"])
}

func TestHealthWarnsWhenUnconfigured(t *testing.T) {
	reader := &fakeHealthReader{files: []faultdata.FileInfo{{Key: "a.json"}}}
	h := newHealthTestHandler(reader, &fakeInspector{}, "", "")

	resp, err := h.Handle(context.Background(), urlEvent(http.MethodGet, "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report HealthReport
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &report))
	assert.Equal(t, statusWarning, report.Status)
	assert.Contains(t, report.Services["bedrock_agent"].Message, "not configured")
	assert.Contains(t, report.Services["knowledge_base"].Message, "not configured")
}

func TestHealthUnhealthyReturns503(t *testing.T) {
	reader := &fakeHealthReader{verifyErr: errors.New("no such bucket")}
	inspector := &fakeInspector{
		agentStatus: agenttypes.AgentStatusPrepared,
		kbStatus:    agenttypes.KnowledgeBaseStatusActive,
	}
	h := newHealthTestHandler(reader, inspector, "AGENT1", "KB1")

	resp, err := h.Handle(context.Background(), urlEvent(http.MethodGet, "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var report HealthReport
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &report))
	assert.Equal(t, statusUnhealthy, report.Status)
	assert.Contains(t, report.Services["s3_access"].Message, "no such bucket")
}

func TestHealthAgentNotPrepared(t *testing.T) {
	reader := &fakeHealthReader{files: []faultdata.FileInfo{{Key: "a.json"}}}
	inspector := &fakeInspector{
		agentStatus: agenttypes.AgentStatusCreating,
		kbStatus:    agenttypes.KnowledgeBaseStatusActive,
	}
	h := newHealthTestHandler(reader, inspector, "AGENT1", "KB1")

	report := h.Report(context.Background())
	assert.Equal(t, statusWarning, report.Status)
	assert.Contains(t, report.Services["bedrock_agent"].Message, "CREATING")
}

func TestHealthNoDataWarns(t *testing.T) {
	reader := &fakeHealthReader{}
	inspector := &fakeInspector{
		agentStatus: agenttypes.AgentStatusPrepared,
		kbStatus:    agenttypes.KnowledgeBaseStatusActive,
	}
	h := newHealthTestHandler(reader, inspector, "A", "K")

	report := h.Report(context.Background())
	assert.Equal(t, statusWarning, report.Services["data_availability"].Status)
	assert.Equal(t, "No data files found", report.Services["data_availability"].Message)
}

func TestOverallStatus(t *testing.T) {
	healthy := ServiceHealth{Status: statusHealthy}
	assert.Equal(t, statusHealthy, overallStatus(map[string]ServiceHealth{"a": healthy}))
	assert.Equal(t, statusWarning, overallStatus(map[string]ServiceHealth{
		"a": healthy,
		"b": {Status: statusWarning},
	}))
	assert.Equal(t, statusUnhealthy, overallStatus(map[string]ServiceHealth{
		"a": {Status: statusWarning},
		"b": {Status: statusUnhealthy},
	}))
}
