package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"

	"github.com/fieldsight/maintkit/internal/awsx"
)

// agentInstruction is the operating prompt for the maintenance expert
// agent.
const agentInstruction = `You are an expert maintenance engineer with deep knowledge of industrial equipment fault analysis and predictive maintenance. Your role is to:

1. **Analyze Equipment Faults**: Examine sensor data, fault predictions, and historical patterns to identify root causes and failure modes.

2. **Provide Maintenance Recommendations**: Suggest specific, actionable maintenance procedures based on fault analysis, including:
   - Immediate actions for critical faults
   - Preventive maintenance schedules
   - Component replacement recommendations
   - Safety protocols and shutdown procedures

3. **Pattern Recognition**: Identify trends and correlations in equipment behavior, including:
   - Seasonal patterns and operational correlations
   - Early warning indicators
   - Systemic issues affecting multiple components
   - Maintenance effectiveness analysis

4. **Risk Assessment**: Evaluate fault severity and provide risk-based prioritization:
   - Classify faults by criticality and safety impact
   - Estimate time-to-failure based on historical data
   - Recommend inspection intervals and monitoring strategies

5. **Communication Guidelines**:
   - Always cite specific data sources and timestamps
   - Explain your reasoning and methodology
   - Use appropriate industrial maintenance terminology
   - Provide confidence levels for predictions when possible
   - Highlight safety considerations prominently

6. **Data Context**: You have access to historical fault prediction data including:
   - Sensor readings (temperature, vibration, pressure, flow rates)
   - Fault predictions with probability scores
   - Maintenance history and schedules
   - Equipment metadata and criticality levels

When responding to queries:
- Be specific and actionable in your recommendations
- Reference relevant historical data and patterns
- Consider equipment criticality and operational impact
- Emphasize safety when dealing with high-risk scenarios
- Provide both immediate and long-term maintenance strategies`

// agentIdleSessionTTL is how long an agent session survives without
// traffic, in seconds.
const agentIdleSessionTTL = int32(1800)

// productionAliasName is the alias the Lambda fleet invokes.
const productionAliasName = "production"

// AgentInfo describes the agent's live state.
type AgentInfo struct {
	ID         string
	Name       string
	Status     string
	PreparedAt string
}

// EnsureAgent creates the Bedrock agent if it does not exist, wires the
// knowledge base to its DRAFT version, and returns the agent ID, which
// is also written back to the registry.
func (p *Provisioner) EnsureAgent(ctx context.Context, roleARN, kbID string) (string, error) {
	agentCfg := p.cfg.Bedrock.Agent

	if id, err := p.FindAgent(ctx); err != nil {
		return "", err
	} else if id != "" {
		p.log.Info().Str("agent", agentCfg.Name).Str("id", id).Msg("agent already exists")
		p.cfg.Bedrock.Agent.ID = id
		return id, nil
	}

	out, err := p.aws.Agent.CreateAgent(ctx, &bedrockagent.CreateAgentInput{
		AgentName:               aws.String(agentCfg.Name),
		Description:             aws.String(agentCfg.Description),
		FoundationModel:         aws.String(agentCfg.FoundationModel),
		Instruction:             aws.String(agentInstruction),
		AgentResourceRoleArn:    aws.String(roleARN),
		IdleSessionTTLInSeconds: aws.Int32(agentIdleSessionTTL),
		Tags: map[string]string{
			"Project":     p.cfg.ProjectName,
			"Purpose":     "MaintenanceExpert",
			"Environment": "Development",
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating agent %s: %w", agentCfg.Name, err)
	}
	id := aws.ToString(out.Agent.AgentId)
	p.log.Info().Str("agent", agentCfg.Name).Str("id", id).Msg("created agent")

	if err := p.AssociateKnowledgeBase(ctx, id, kbID); err != nil {
		return "", err
	}

	p.cfg.Bedrock.Agent.ID = id
	return id, nil
}

// AssociateKnowledgeBase wires a knowledge base to the agent's DRAFT
// version in the ENABLED state. Re-associating an already wired pair is
// treated as success.
func (p *Provisioner) AssociateKnowledgeBase(ctx context.Context, agentID, kbID string) error {
	_, err := p.aws.Agent.AssociateAgentKnowledgeBase(ctx, &bedrockagent.AssociateAgentKnowledgeBaseInput{
		AgentId:            aws.String(agentID),
		AgentVersion:       aws.String("DRAFT"),
		KnowledgeBaseId:    aws.String(kbID),
		Description:        aws.String("Historical equipment fault prediction data for maintenance analysis"),
		KnowledgeBaseState: agenttypes.KnowledgeBaseStateEnabled,
	})
	if err != nil {
		if awsx.IsConflict(err) {
			p.log.Info().Str("agent", agentID).Str("kb", kbID).Msg("knowledge base already associated")
			return nil
		}
		return fmt.Errorf("associating knowledge base %s with agent %s: %w", kbID, agentID, err)
	}
	p.log.Info().Str("agent", agentID).Str("kb", kbID).Msg("associated knowledge base")
	return nil
}

// AssociatedKnowledgeBases lists the knowledge base IDs wired to the
// agent's DRAFT version.
func (p *Provisioner) AssociatedKnowledgeBases(ctx context.Context, agentID string) ([]string, error) {
	out, err := p.aws.Agent.ListAgentKnowledgeBases(ctx, &bedrockagent.ListAgentKnowledgeBasesInput{
		AgentId:      aws.String(agentID),
		AgentVersion: aws.String("DRAFT"),
	})
	if err != nil {
		return nil, fmt.Errorf("listing agent knowledge bases: %w", err)
	}
	ids := make([]string, 0, len(out.AgentKnowledgeBaseSummaries))
	for _, kb := range out.AgentKnowledgeBaseSummaries {
		ids = append(ids, aws.ToString(kb.KnowledgeBaseId))
	}
	return ids, nil
}

// FindAgent resolves the configured agent name to an ID, or "" when no
// agent carries that name.
func (p *Provisioner) FindAgent(ctx context.Context) (string, error) {
	name := p.cfg.Bedrock.Agent.Name
	var token *string
	for {
		out, err := p.aws.Agent.ListAgents(ctx, &bedrockagent.ListAgentsInput{NextToken: token})
		if err != nil {
			return "", fmt.Errorf("listing agents: %w", err)
		}
		for _, a := range out.AgentSummaries {
			if aws.ToString(a.AgentName) == name {
				return aws.ToString(a.AgentId), nil
			}
		}
		if out.NextToken == nil {
			return "", nil
		}
		token = out.NextToken
	}
}

// AgentStatus returns the agent's live state.
func (p *Provisioner) AgentStatus(ctx context.Context, agentID string) (*AgentInfo, error) {
	out, err := p.aws.Agent.GetAgent(ctx, &bedrockagent.GetAgentInput{AgentId: aws.String(agentID)})
	if err != nil {
		return nil, fmt.Errorf("getting agent %s: %w", agentID, err)
	}
	info := &AgentInfo{
		ID:     aws.ToString(out.Agent.AgentId),
		Name:   aws.ToString(out.Agent.AgentName),
		Status: string(out.Agent.AgentStatus),
	}
	if out.Agent.PreparedAt != nil {
		info.PreparedAt = out.Agent.PreparedAt.Format("2006-01-02 15:04:05")
	}
	return info, nil
}

// PrepareAgent compiles the agent's DRAFT version and waits for it to
// reach PREPARED. The control plane throws ValidationException while
// the agent is mid-transition, which counts as still preparing.
func (p *Provisioner) PrepareAgent(ctx context.Context, agentID string) error {
	_, err := p.aws.Agent.PrepareAgent(ctx, &bedrockagent.PrepareAgentInput{
		AgentId: aws.String(agentID),
	})
	if err != nil {
		return fmt.Errorf("preparing agent %s: %w", agentID, err)
	}

	p.log.Info().Str("agent", agentID).Msg("waiting for agent preparation")
	return waitFor(ctx, "agent preparation", agentPollInterval, agentPollTimeout, func(ctx context.Context) (bool, error) {
		out, err := p.aws.Agent.GetAgent(ctx, &bedrockagent.GetAgentInput{AgentId: aws.String(agentID)})
		if err != nil {
			if awsx.ErrorCode(err) == "ValidationException" {
				p.log.Debug().Msg("agent still preparing")
				return false, nil
			}
			return false, fmt.Errorf("getting agent %s: %w", agentID, err)
		}
		status := out.Agent.AgentStatus
		p.log.Debug().Str("status", string(status)).Msg("agent status")
		switch status {
		case agenttypes.AgentStatusPrepared:
			return true, nil
		case agenttypes.AgentStatusFailed, agenttypes.AgentStatusNotPrepared:
			return false, fmt.Errorf("agent preparation failed with status %s", status)
		}
		return false, nil
	})
}

// EnsureAlias creates the production alias if missing and returns its
// ID, which is also written back to the registry.
func (p *Provisioner) EnsureAlias(ctx context.Context, agentID string) (string, error) {
	out, err := p.aws.Agent.ListAgentAliases(ctx, &bedrockagent.ListAgentAliasesInput{
		AgentId: aws.String(agentID),
	})
	if err != nil {
		return "", fmt.Errorf("listing agent aliases: %w", err)
	}
	for _, a := range out.AgentAliasSummaries {
		if aws.ToString(a.AgentAliasName) == productionAliasName {
			id := aws.ToString(a.AgentAliasId)
			p.log.Info().Str("alias", productionAliasName).Str("id", id).Msg("alias already exists")
			p.cfg.Bedrock.Agent.AliasID = id
			return id, nil
		}
	}

	created, err := p.aws.Agent.CreateAgentAlias(ctx, &bedrockagent.CreateAgentAliasInput{
		AgentId:        aws.String(agentID),
		AgentAliasName: aws.String(productionAliasName),
		Description:    aws.String("Production alias for maintenance expert agent"),
		Tags: map[string]string{
			"Environment": "Production",
			"Purpose":     "MaintenanceExpert",
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating agent alias: %w", err)
	}
	id := aws.ToString(created.AgentAlias.AgentAliasId)
	p.log.Info().Str("alias", productionAliasName).Str("id", id).Msg("created agent alias")

	err = waitFor(ctx, "alias preparation", agentPollInterval, agentPollTimeout, func(ctx context.Context) (bool, error) {
		out, err := p.aws.Agent.GetAgentAlias(ctx, &bedrockagent.GetAgentAliasInput{
			AgentId:      aws.String(agentID),
			AgentAliasId: aws.String(id),
		})
		if err != nil {
			return false, fmt.Errorf("getting agent alias %s: %w", id, err)
		}
		status := out.AgentAlias.AgentAliasStatus
		p.log.Debug().Str("status", string(status)).Msg("alias status")
		switch status {
		case agenttypes.AgentAliasStatusPrepared:
			return true, nil
		case agenttypes.AgentAliasStatusFailed:
			return false, fmt.Errorf("alias %s failed to prepare", id)
		}
		return false, nil
	})
	if err != nil {
		return "", err
	}

	p.cfg.Bedrock.Agent.AliasID = id
	return id, nil
}
