package probe

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	osstypes "github.com/aws/aws-sdk-go-v2/service/opensearchserverless/types"

	"github.com/fieldsight/maintkit/internal/awsx"
)

// Diagnosis is the live state of one registered resource.
type Diagnosis struct {
	Resource string
	ID       string
	Live     bool
	Status   string
	Notes    string
}

// Diagnose compares each resource the registry knows about with what
// AWS reports, flagging gone resources and drifted settings. Resources
// nothing has registered yet are listed with the command that creates
// them.
func (p *Probe) Diagnose(ctx context.Context) []Diagnosis {
	var out []Diagnosis
	out = append(out, p.diagnoseAgent(ctx)...)
	out = append(out, p.diagnoseKnowledgeBase(ctx)...)
	out = append(out, p.diagnoseCollection(ctx))
	out = append(out, p.diagnoseRoles(ctx)...)
	out = append(out, p.diagnoseFunctions(ctx)...)
	return out
}

func (p *Probe) diagnoseAgent(ctx context.Context) []Diagnosis {
	agentID := p.cfg.Bedrock.Agent.ID
	if agentID == "" {
		return []Diagnosis{{Resource: "agent", Notes: "not registered (run agent create)"}}
	}

	var out []Diagnosis
	d := Diagnosis{Resource: "agent", ID: agentID}
	resp, err := p.aws.Agent.GetAgent(ctx, &bedrockagent.GetAgentInput{
		AgentId: aws.String(agentID),
	})
	switch {
	case awsx.IsNotFound(err):
		d.Notes = "registered agent is gone from AWS"
	case err != nil:
		d.Notes = err.Error()
	default:
		d.Live = true
		d.Status = string(resp.Agent.AgentStatus)
		if resp.Agent.AgentStatus != agenttypes.AgentStatusPrepared &&
			resp.Agent.AgentStatus != agenttypes.AgentStatusVersioned {
			d.Notes = "agent is not prepared (run agent prepare)"
		}
	}
	out = append(out, d)

	aliasID := p.cfg.Bedrock.Agent.AliasID
	if aliasID == "" {
		return append(out, Diagnosis{Resource: "agent alias", Notes: "not registered (run agent alias)"})
	}
	da := Diagnosis{Resource: "agent alias", ID: aliasID}
	aliasResp, err := p.aws.Agent.GetAgentAlias(ctx, &bedrockagent.GetAgentAliasInput{
		AgentId:      aws.String(agentID),
		AgentAliasId: aws.String(aliasID),
	})
	switch {
	case awsx.IsNotFound(err):
		da.Notes = "registered alias is gone from AWS"
	case err != nil:
		da.Notes = err.Error()
	default:
		da.Live = true
		da.Status = string(aliasResp.AgentAlias.AgentAliasStatus)
		if aliasResp.AgentAlias.AgentAliasStatus != agenttypes.AgentAliasStatusPrepared {
			da.Notes = "alias is not prepared"
		}
	}
	return append(out, da)
}

func (p *Probe) diagnoseKnowledgeBase(ctx context.Context) []Diagnosis {
	kbID := p.cfg.Bedrock.KnowledgeBase.ID
	if kbID == "" {
		return []Diagnosis{{Resource: "knowledge base", Notes: "not registered (run kb create)"}}
	}

	var out []Diagnosis
	d := Diagnosis{Resource: "knowledge base", ID: kbID}
	resp, err := p.aws.Agent.GetKnowledgeBase(ctx, &bedrockagent.GetKnowledgeBaseInput{
		KnowledgeBaseId: aws.String(kbID),
	})
	switch {
	case awsx.IsNotFound(err):
		d.Notes = "registered knowledge base is gone from AWS"
	case err != nil:
		d.Notes = err.Error()
	default:
		d.Live = true
		d.Status = string(resp.KnowledgeBase.Status)
		if resp.KnowledgeBase.Status != agenttypes.KnowledgeBaseStatusActive {
			d.Notes = "knowledge base is not active"
		}
	}
	out = append(out, d)

	dsID := p.cfg.Bedrock.KnowledgeBase.DataSourceID
	if dsID == "" {
		return append(out, Diagnosis{Resource: "data source", Notes: "not registered (run kb create)"})
	}
	ds := Diagnosis{Resource: "data source", ID: dsID}
	dsResp, err := p.aws.Agent.GetDataSource(ctx, &bedrockagent.GetDataSourceInput{
		KnowledgeBaseId: aws.String(kbID),
		DataSourceId:    aws.String(dsID),
	})
	switch {
	case awsx.IsNotFound(err):
		ds.Notes = "registered data source is gone from AWS"
	case err != nil:
		ds.Notes = err.Error()
	default:
		ds.Live = true
		ds.Status = string(dsResp.DataSource.Status)
		if dsResp.DataSource.Status != agenttypes.DataSourceStatusAvailable {
			ds.Notes = "data source is not available"
		}
	}
	return append(out, ds)
}

func (p *Probe) diagnoseCollection(ctx context.Context) Diagnosis {
	arn := p.cfg.Bedrock.KnowledgeBase.CollectionARN
	if arn == "" {
		return Diagnosis{Resource: "vector collection", Notes: "not registered (run vectorstore create)"}
	}

	id := arn[strings.LastIndex(arn, "/")+1:]
	d := Diagnosis{Resource: "vector collection", ID: id}
	resp, err := p.aws.Vector.BatchGetCollection(ctx, &opensearchserverless.BatchGetCollectionInput{
		Ids: []string{id},
	})
	switch {
	case err != nil:
		d.Notes = err.Error()
	case len(resp.CollectionDetails) == 0:
		d.Notes = "registered collection is gone from AWS"
	default:
		d.Live = true
		d.Status = string(resp.CollectionDetails[0].Status)
		if resp.CollectionDetails[0].Status != osstypes.CollectionStatusActive {
			d.Notes = "collection is not active"
		}
	}
	return d
}

func (p *Probe) diagnoseRoles(ctx context.Context) []Diagnosis {
	roles := []struct {
		resource string
		name     string
		arn      string
	}{
		{"agent role", p.cfg.IAM.BedrockAgentRole, p.cfg.Bedrock.Agent.RoleARN},
		{"knowledge base role", p.cfg.IAM.KnowledgeBaseRole, p.cfg.Bedrock.KnowledgeBase.RoleARN},
		{"lambda role", p.cfg.IAM.LambdaExecutionRole, p.cfg.IAM.LambdaRoleARN},
	}

	var out []Diagnosis
	for _, r := range roles {
		if r.arn == "" {
			out = append(out, Diagnosis{Resource: r.resource, Notes: "not registered (run iam setup)"})
			continue
		}
		d := Diagnosis{Resource: r.resource, ID: r.name}
		_, err := p.aws.IAM.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(r.name)})
		switch {
		case awsx.IsNotFound(err):
			d.Notes = "registered role is gone from AWS"
		case err != nil:
			d.Notes = err.Error()
		default:
			d.Live = true
			d.Status = "present"
		}
		out = append(out, d)
	}
	return out
}

func (p *Probe) diagnoseFunctions(ctx context.Context) []Diagnosis {
	keys := make([]string, 0, len(p.cfg.LambdaFunctions))
	for k := range p.cfg.LambdaFunctions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []Diagnosis
	for _, key := range keys {
		fn := p.cfg.LambdaFunctions[key]
		d := Diagnosis{Resource: "lambda " + key, ID: fn.FunctionName}
		resp, err := p.aws.Lambda.GetFunction(ctx, &lambda.GetFunctionInput{
			FunctionName: aws.String(fn.FunctionName),
		})
		switch {
		case awsx.IsNotFound(err):
			d.Notes = "not deployed (run lambda deploy)"
		case err != nil:
			d.Notes = err.Error()
		default:
			d.Live = true
			live := resp.Configuration
			d.Status = fmt.Sprintf("%s/%s", live.State, live.LastUpdateStatus)

			var notes []string
			if drifted := envDrift(fn.EnvironmentVariables, live.Environment); len(drifted) > 0 {
				notes = append(notes, "env drift: "+strings.Join(drifted, ", "))
			}
			if fn.FunctionURL != nil {
				liveURL, err := p.liveFunctionURL(ctx, fn.FunctionName)
				switch {
				case err != nil:
					notes = append(notes, "function URL missing (run lambda url)")
				case fn.URL != "" && liveURL != fn.URL:
					notes = append(notes, "registered URL differs from live URL")
				}
			}
			d.Notes = strings.Join(notes, "; ")
		}
		out = append(out, d)
	}
	return out
}

// envDrift returns the registry env keys whose live values differ,
// sorted.
func envDrift(want map[string]string, live *lambdatypes.EnvironmentResponse) []string {
	var liveVars map[string]string
	if live != nil {
		liveVars = live.Variables
	}
	var drifted []string
	for k, v := range want {
		if liveVars[k] != v {
			drifted = append(drifted, k)
		}
	}
	sort.Strings(drifted)
	return drifted
}

func (p *Probe) liveFunctionURL(ctx context.Context, name string) (string, error) {
	out, err := p.aws.Lambda.GetFunctionUrlConfig(ctx, &lambda.GetFunctionUrlConfigInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.FunctionUrl), nil
}
