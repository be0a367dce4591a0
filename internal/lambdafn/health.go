package lambdafn

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"

	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/faultdata"
	"github.com/fieldsight/maintkit/internal/logging"
	"github.com/fieldsight/maintkit/internal/version"
)

const (
	statusHealthy   = "healthy"
	statusWarning   = "warning"
	statusUnhealthy = "unhealthy"
)

// healthReader is the slice of faultdata.Reader the health handler uses.
type healthReader interface {
	VerifyAccess(ctx context.Context) error
	ListFaultFiles(ctx context.Context, max int) ([]faultdata.FileInfo, error)
}

// agentInspector reads agent and knowledge base state.
type agentInspector interface {
	GetAgent(ctx context.Context, params *bedrockagent.GetAgentInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetAgentOutput, error)
	GetKnowledgeBase(ctx context.Context, params *bedrockagent.GetKnowledgeBaseInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.GetKnowledgeBaseOutput, error)
}

// ServiceHealth is one dependency's probe result.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	AgentID string `json:"agent_id,omitempty"`
	KBID    string `json:"kb_id,omitempty"`
}

// HealthReport is the health endpoint's response body.
type HealthReport struct {
	Status    string                   `json:"status"`
	Timestamp string                   `json:"timestamp"`
	Version   string                   `json:"version"`
	Services  map[string]ServiceHealth `json:"services"`
}

// HealthHandler reports dependency health for uptime monitors.
type HealthHandler struct {
	reader  healthReader
	agent   agentInspector
	agentID string
	kbID    string
	log     *logging.Logger
}

// NewHealthHandler wires the handler from the Lambda environment
// (S3_BUCKET, S3_SOURCE_PREFIX, BEDROCK_AGENT_ID, KNOWLEDGE_BASE_ID).
func NewHealthHandler(ctx context.Context) (*HealthHandler, error) {
	log := logging.NewForLambda()
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET not set")
	}

	clients, err := awsx.New(ctx, os.Getenv("AWS_REGION"))
	if err != nil {
		return nil, err
	}
	return &HealthHandler{
		reader:  faultdata.NewReader(clients.S3, bucket, os.Getenv("S3_SOURCE_PREFIX"), log),
		agent:   clients.Agent,
		agentID: os.Getenv("BEDROCK_AGENT_ID"),
		kbID:    os.Getenv("KNOWLEDGE_BASE_ID"),
		log:     log.Sub("health_check"),
	}, nil
}

// Handle answers GET with the aggregated health report. An unhealthy
// dependency turns the HTTP status to 503 so URL monitors alarm.
func (h *HealthHandler) Handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	headers := openHeaders("GET, OPTIONS")
	if method(event) == http.MethodOptions {
		return preflight(headers), nil
	}

	report := h.Report(ctx)
	status := http.StatusOK
	if report.Status == statusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	return respond(status, headers, report), nil
}

// Report runs every dependency probe and aggregates the result.
func (h *HealthHandler) Report(ctx context.Context) *HealthReport {
	services := map[string]ServiceHealth{
		"s3_access":         h.checkS3(ctx),
		"data_availability": h.checkData(ctx),
		"bedrock_agent":     h.checkAgent(ctx),
		"knowledge_base":    h.checkKnowledgeBase(ctx),
	}
	report := &HealthReport{
		Status:    overallStatus(services),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   version.Version,
		Services:  services,
	}
	h.log.Info().Str("status", report.Status).Msg("health checked")
	return report
}

func (h *HealthHandler) checkS3(ctx context.Context) ServiceHealth {
	if err := h.reader.VerifyAccess(ctx); err != nil {
		return ServiceHealth{Status: statusUnhealthy, Message: fmt.Sprintf("S3 access failed: %v", err)}
	}
	return ServiceHealth{Status: statusHealthy, Message: "S3 access verified"}
}

func (h *HealthHandler) checkData(ctx context.Context) ServiceHealth {
	files, err := h.reader.ListFaultFiles(ctx, 1)
	if err != nil {
		return ServiceHealth{Status: statusUnhealthy, Message: fmt.Sprintf("Data listing failed: %v", err)}
	}
	if len(files) == 0 {
		return ServiceHealth{Status: statusWarning, Message: "No data files found"}
	}
	return ServiceHealth{Status: statusHealthy, Message: "Fault data available"}
}

func (h *HealthHandler) checkAgent(ctx context.Context) ServiceHealth {
	if h.agentID == "" {
		return ServiceHealth{Status: statusWarning, Message: "Bedrock Agent ID not configured"}
	}
	out, err := h.agent.GetAgent(ctx, &bedrockagent.GetAgentInput{AgentId: aws.String(h.agentID)})
	if err != nil {
		return ServiceHealth{
			Status:  statusUnhealthy,
			Message: fmt.Sprintf("Bedrock Agent check failed: %v", err),
			AgentID: h.agentID,
		}
	}
	if out.Agent.AgentStatus == agenttypes.AgentStatusPrepared {
		return ServiceHealth{Status: statusHealthy, Message: "Bedrock Agent operational", AgentID: h.agentID}
	}
	return ServiceHealth{
		Status:  statusWarning,
		Message: fmt.Sprintf("Agent status: %s", out.Agent.AgentStatus),
		AgentID: h.agentID,
	}
}

func (h *HealthHandler) checkKnowledgeBase(ctx context.Context) ServiceHealth {
	if h.kbID == "" {
		return ServiceHealth{Status: statusWarning, Message: "Knowledge Base ID not configured"}
	}
	out, err := h.agent.GetKnowledgeBase(ctx, &bedrockagent.GetKnowledgeBaseInput{KnowledgeBaseId: aws.String(h.kbID)})
	if err != nil {
		return ServiceHealth{
			Status:  statusUnhealthy,
			Message: fmt.Sprintf("Knowledge Base check failed: %v", err),
			KBID:    h.kbID,
		}
	}
	if out.KnowledgeBase.Status == agenttypes.KnowledgeBaseStatusActive {
		return ServiceHealth{Status: statusHealthy, Message: "Knowledge Base operational", KBID: h.kbID}
	}
	return ServiceHealth{
		Status:  statusWarning,
		Message: fmt.Sprintf("Knowledge Base status: %s", out.KnowledgeBase.Status),
		KBID:    h.kbID,
	}
}

// overallStatus rolls service results up: any unhealthy wins, then any
// warning, else healthy.
func overallStatus(services map[string]ServiceHealth) string {
	status := statusHealthy
	for _, s := range services {
		switch s.Status {
		case statusUnhealthy:
			return statusUnhealthy
		case statusWarning:
			status = statusWarning
		}
	}
	return status
}
