package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/fieldsight/maintkit/internal/awsx"
)

// Validate runs the environment checks that must pass before any
// provisioning command is worth attempting.
func (p *Probe) Validate(ctx context.Context) []CheckResult {
	var results []CheckResult
	run := func(name string, fn func(context.Context) (string, error)) {
		detail, err := fn(ctx)
		if err != nil {
			p.log.Error().Err(err).Str("check", name).Msg("validation check failed")
			results = append(results, CheckResult{Name: name, Detail: err.Error()})
			return
		}
		results = append(results, CheckResult{Name: name, Passed: true, Detail: detail})
	}

	run("aws credentials", p.checkCredentials)
	run("bedrock models", p.checkModels)
	run("bedrock agent service", p.checkAgentService)
	run("iam access", p.checkIAM)
	run("knowledge base", p.checkKnowledgeBase)
	return results
}

func (p *Probe) checkCredentials(ctx context.Context) (string, error) {
	out, err := p.aws.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("credentials rejected (configure the AWS CLI or set AWS_ACCESS_KEY_ID): %w", err)
	}
	return fmt.Sprintf("account %s (%s)", aws.ToString(out.Account), aws.ToString(out.Arn)), nil
}

func (p *Probe) checkModels(ctx context.Context) (string, error) {
	out, err := p.aws.Bedrock.ListFoundationModels(ctx, &bedrock.ListFoundationModelsInput{})
	if err != nil {
		if awsx.IsAccessDenied(err) {
			return "", fmt.Errorf("access denied to Bedrock; grant bedrock permissions to this principal: %w", err)
		}
		return "", err
	}

	available := make(map[string]bool, len(out.ModelSummaries))
	for _, m := range out.ModelSummaries {
		available[aws.ToString(m.ModelId)] = true
	}
	required := []string{
		p.cfg.Bedrock.Agent.FoundationModel,
		p.cfg.Bedrock.KnowledgeBase.FoundationModel,
	}
	var missing []string
	for _, id := range required {
		if id != "" && !available[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("models not available in %s: %s", p.aws.Region, strings.Join(missing, ", "))
	}
	return fmt.Sprintf("%d models listed, required models present", len(out.ModelSummaries)), nil
}

func (p *Probe) checkAgentService(ctx context.Context) (string, error) {
	_, err := p.aws.Agent.ListAgents(ctx, &bedrockagent.ListAgentsInput{
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		if awsx.IsAccessDenied(err) {
			return "", fmt.Errorf("access denied to the Bedrock Agent service: %w", err)
		}
		return "", err
	}
	return "agent service reachable", nil
}

func (p *Probe) checkIAM(ctx context.Context) (string, error) {
	_, err := p.aws.IAM.ListRoles(ctx, &iam.ListRolesInput{
		MaxItems: aws.Int32(1),
	})
	if err != nil {
		if awsx.IsAccessDenied(err) {
			return "", fmt.Errorf("access denied to IAM; role creation will fail: %w", err)
		}
		return "", err
	}
	return "iam read access confirmed", nil
}

func (p *Probe) checkKnowledgeBase(ctx context.Context) (string, error) {
	kbID := p.cfg.Bedrock.KnowledgeBase.ID
	if kbID == "" {
		return "", fmt.Errorf("knowledge base ID not registered (run kb create first)")
	}
	out, err := p.aws.Agent.GetKnowledgeBase(ctx, &bedrockagent.GetKnowledgeBaseInput{
		KnowledgeBaseId: aws.String(kbID),
	})
	if err != nil {
		if awsx.IsNotFound(err) {
			return "", fmt.Errorf("knowledge base %s not found (run kb create)", kbID)
		}
		return "", err
	}
	return fmt.Sprintf("%s is %s", kbID, out.KnowledgeBase.Status), nil
}
