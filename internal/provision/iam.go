package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/fieldsight/maintkit/internal/awsx"
)

const policyVersion = "2012-10-17"

const lambdaBasicExecutionPolicyARN = "arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"

// iamPropagationDelay gives a freshly created role time to become
// assumable before anything references it.
const iamPropagationDelay = 10 * time.Second

// policyDocument is the subset of the IAM policy grammar the toolkit
// emits. Grants are generated from the registry so they track the
// configured resources instead of hardcoded ARNs.
type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Effect    string                       `json:"Effect"`
	Principal map[string]string            `json:"Principal,omitempty"`
	Action    []string                     `json:"Action"`
	Resource  []string                     `json:"Resource,omitempty"`
	Condition map[string]map[string]string `json:"Condition,omitempty"`
}

func (d policyDocument) encode() (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding policy document: %w", err)
	}
	return string(b), nil
}

func foundationModelARN(region, model string) string {
	return fmt.Sprintf("arn:aws:bedrock:%s::foundation-model/%s", region, model)
}

func serviceTrustPolicy(service string, condition map[string]map[string]string) policyDocument {
	return policyDocument{
		Version: policyVersion,
		Statement: []policyStatement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": service},
			Action:    []string{"sts:AssumeRole"},
			Condition: condition,
		}},
	}
}

// roleARN looks up an existing role and returns its ARN.
func (p *Provisioner) roleARN(ctx context.Context, name string) (string, error) {
	out, err := p.aws.IAM.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("getting role %s: %w", name, err)
	}
	return aws.ToString(out.Role.Arn), nil
}

// EnsureAgentRole creates the Bedrock Agent service role if it does not
// exist and returns its ARN. The trust policy pins the source account so
// only agents in this account can assume it.
func (p *Provisioner) EnsureAgentRole(ctx context.Context) (string, error) {
	roleName := p.cfg.IAM.BedrockAgentRole

	if arn, err := p.roleARN(ctx, roleName); err == nil {
		p.log.Info().Str("role", roleName).Msg("agent role already exists")
		return arn, nil
	} else if !awsx.IsNotFound(err) {
		return "", err
	}

	account, err := p.aws.AccountID(ctx)
	if err != nil {
		return "", err
	}

	trust := serviceTrustPolicy("bedrock.amazonaws.com", map[string]map[string]string{
		"StringEquals": {"aws:SourceAccount": account},
	})
	perms := policyDocument{
		Version: policyVersion,
		Statement: []policyStatement{
			{
				Effect: "Allow",
				Action: []string{"bedrock:InvokeModel", "bedrock:InvokeModelWithResponseStream"},
				Resource: []string{
					foundationModelARN(p.aws.Region, p.cfg.Bedrock.Agent.FoundationModel),
				},
			},
			{
				Effect:   "Allow",
				Action:   []string{"bedrock:Retrieve", "bedrock:RetrieveAndGenerate"},
				Resource: []string{"*"},
			},
			{
				Effect:   "Allow",
				Action:   []string{"logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"},
				Resource: []string{fmt.Sprintf("arn:aws:logs:%s:*:log-group:/aws/bedrock/agents/*", p.aws.Region)},
			},
		},
	}

	arn, err := p.createRoleWithInlinePolicy(ctx, createRoleParams{
		name:        roleName,
		description: "Service role for the maintenance expert Bedrock agent",
		trust:       trust,
		policyName:  roleName + "-permissions",
		policy:      perms,
	})
	if err != nil {
		return "", err
	}
	p.log.Info().Str("role", roleName).Str("arn", arn).Msg("created agent role")
	return arn, nil
}

// EnsureKnowledgeBaseRole creates the knowledge base service role if it
// does not exist and returns its ARN. The role can read the configured
// S3 prefix, call the embedding model, and write to the vector store.
func (p *Provisioner) EnsureKnowledgeBaseRole(ctx context.Context) (string, error) {
	roleName := p.cfg.IAM.KnowledgeBaseRole

	if arn, err := p.roleARN(ctx, roleName); err == nil {
		p.log.Info().Str("role", roleName).Msg("knowledge base role already exists")
		return arn, nil
	} else if !awsx.IsNotFound(err) {
		return "", err
	}

	account, err := p.aws.AccountID(ctx)
	if err != nil {
		return "", err
	}

	bucket := p.cfg.S3.DataBucket.Name
	basePrefix := p.cfg.S3.DataBucket.DataStructure.BasePrefix

	trust := serviceTrustPolicy("bedrock.amazonaws.com", nil)
	perms := policyDocument{
		Version: policyVersion,
		Statement: []policyStatement{
			{
				Effect:   "Allow",
				Action:   []string{"s3:GetObject"},
				Resource: []string{fmt.Sprintf("arn:aws:s3:::%s/%s*", bucket, basePrefix)},
			},
			{
				Effect:   "Allow",
				Action:   []string{"s3:ListBucket"},
				Resource: []string{fmt.Sprintf("arn:aws:s3:::%s", bucket)},
				Condition: map[string]map[string]string{
					"StringLike": {"s3:prefix": basePrefix + "*"},
				},
			},
			{
				Effect:   "Allow",
				Action:   []string{"aoss:APIAccessAll"},
				Resource: []string{fmt.Sprintf("arn:aws:aoss:%s:%s:collection/*", p.aws.Region, account)},
			},
			{
				Effect: "Allow",
				Action: []string{"bedrock:InvokeModel"},
				Resource: []string{
					foundationModelARN(p.aws.Region, p.cfg.Bedrock.KnowledgeBase.FoundationModel),
				},
			},
		},
	}

	arn, err := p.createRoleWithInlinePolicy(ctx, createRoleParams{
		name:        roleName,
		description: "Service role for the knowledge base to read S3 and the vector store",
		trust:       trust,
		policyName:  roleName + "-policy",
		policy:      perms,
	})
	if err != nil {
		return "", err
	}
	p.log.Info().Str("role", roleName).Str("arn", arn).Msg("created knowledge base role")
	return arn, nil
}

// EnsureLambdaRole creates the shared Lambda execution role if it does
// not exist and returns its ARN. Beyond basic execution it can invoke
// the agent, query and sync the knowledge base, manage session records,
// and read the fault data bucket.
func (p *Provisioner) EnsureLambdaRole(ctx context.Context) (string, error) {
	roleName := p.cfg.IAM.LambdaExecutionRole

	if arn, err := p.roleARN(ctx, roleName); err == nil {
		p.log.Info().Str("role", roleName).Msg("lambda execution role already exists")
		return arn, nil
	} else if !awsx.IsNotFound(err) {
		return "", err
	}

	account, err := p.aws.AccountID(ctx)
	if err != nil {
		return "", err
	}

	trust := serviceTrustPolicy("lambda.amazonaws.com", nil)
	out, err := p.aws.IAM.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(mustEncode(trust)),
		Description:              aws.String("Execution role for the maintenance assistant Lambda functions"),
		MaxSessionDuration:       aws.Int32(3600),
		Tags: []iamtypes.Tag{
			{Key: aws.String("Project"), Value: aws.String(p.cfg.ProjectName)},
			{Key: aws.String("Environment"), Value: aws.String("production")},
			{Key: aws.String("SecurityLevel"), Value: aws.String("restricted")},
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating role %s: %w", roleName, err)
	}
	arn := aws.ToString(out.Role.Arn)

	_, err = p.aws.IAM.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(lambdaBasicExecutionPolicyARN),
	})
	if err != nil {
		return "", fmt.Errorf("attaching basic execution policy: %w", err)
	}

	policyName := roleName + "-policy"
	policyARN, err := p.ensureManagedPolicy(ctx, account, policyName, p.lambdaExecutionPolicy(account))
	if err != nil {
		return "", err
	}
	_, err = p.aws.IAM.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyARN),
	})
	if err != nil {
		return "", fmt.Errorf("attaching policy %s: %w", policyName, err)
	}

	if err := sleepCtx(ctx, iamPropagationDelay); err != nil {
		return "", err
	}
	p.log.Info().Str("role", roleName).Str("arn", arn).Msg("created lambda execution role")
	return arn, nil
}

// lambdaExecutionPolicy builds the custom grant set for the Lambda
// fleet from the registry. Log groups are enumerated per configured
// function rather than wildcarded across the account.
func (p *Provisioner) lambdaExecutionPolicy(account string) policyDocument {
	region := p.aws.Region

	var logARNs []string
	keys := make([]string, 0, len(p.cfg.LambdaFunctions))
	for k := range p.cfg.LambdaFunctions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := p.cfg.LambdaFunctions[k].FunctionName
		if name == "" {
			continue
		}
		base := fmt.Sprintf("arn:aws:logs:%s:%s:log-group:/aws/lambda/%s", region, account, name)
		logARNs = append(logARNs, base, base+":*")
	}

	kbResource := fmt.Sprintf("arn:aws:bedrock:%s:%s:knowledge-base/*", region, account)
	if id := p.cfg.Bedrock.KnowledgeBase.ID; id != "" {
		kbResource = fmt.Sprintf("arn:aws:bedrock:%s:%s:knowledge-base/%s", region, account, id)
	}

	bucket := p.cfg.S3.DataBucket.Name
	sourcePrefix := p.cfg.S3.DataBucket.DataStructure.SourcePrefix
	basePrefix := p.cfg.S3.DataBucket.DataStructure.BasePrefix

	return policyDocument{
		Version: policyVersion,
		Statement: []policyStatement{
			{
				Effect:   "Allow",
				Action:   []string{"logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"},
				Resource: logARNs,
			},
			{
				Effect: "Allow",
				Action: []string{"bedrock:InvokeAgent", "bedrock:GetAgent"},
				Resource: []string{
					fmt.Sprintf("arn:aws:bedrock:%s:%s:agent/*", region, account),
					fmt.Sprintf("arn:aws:bedrock:%s:%s:agent-alias/*", region, account),
				},
			},
			{
				Effect: "Allow",
				Action: []string{
					"bedrock:Retrieve",
					"bedrock:GetKnowledgeBase",
					"bedrock:StartIngestionJob",
					"bedrock:GetIngestionJob",
					"bedrock:ListIngestionJobs",
				},
				Resource: []string{kbResource},
			},
			{
				Effect: "Allow",
				Action: []string{
					"dynamodb:GetItem",
					"dynamodb:PutItem",
					"dynamodb:UpdateItem",
					"dynamodb:DeleteItem",
					"dynamodb:Query",
				},
				Resource: []string{
					fmt.Sprintf("arn:aws:dynamodb:%s:%s:table/%s", region, account, p.cfg.SessionTable),
				},
			},
			{
				Effect: "Allow",
				Action: []string{"s3:GetObject"},
				Resource: []string{
					fmt.Sprintf("arn:aws:s3:::%s/%s*", bucket, sourcePrefix),
					fmt.Sprintf("arn:aws:s3:::%s/%s*", bucket, basePrefix),
				},
			},
			{
				Effect:   "Allow",
				Action:   []string{"s3:ListBucket"},
				Resource: []string{fmt.Sprintf("arn:aws:s3:::%s", bucket)},
			},
		},
	}
}

type createRoleParams struct {
	name        string
	description string
	trust       policyDocument
	policyName  string
	policy      policyDocument
}

// createRoleWithInlinePolicy creates a role, attaches one inline
// policy, and waits out IAM propagation.
func (p *Provisioner) createRoleWithInlinePolicy(ctx context.Context, params createRoleParams) (string, error) {
	trustJSON, err := params.trust.encode()
	if err != nil {
		return "", err
	}
	policyJSON, err := params.policy.encode()
	if err != nil {
		return "", err
	}

	out, err := p.aws.IAM.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(params.name),
		AssumeRolePolicyDocument: aws.String(trustJSON),
		Description:              aws.String(params.description),
	})
	if err != nil {
		return "", fmt.Errorf("creating role %s: %w", params.name, err)
	}

	_, err = p.aws.IAM.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(params.name),
		PolicyName:     aws.String(params.policyName),
		PolicyDocument: aws.String(policyJSON),
	})
	if err != nil {
		return "", fmt.Errorf("attaching policy %s: %w", params.policyName, err)
	}

	if err := sleepCtx(ctx, iamPropagationDelay); err != nil {
		return "", err
	}
	return aws.ToString(out.Role.Arn), nil
}

// ensureManagedPolicy creates a customer managed policy, or returns the
// existing one's ARN when the name is already taken.
func (p *Provisioner) ensureManagedPolicy(ctx context.Context, account, name string, doc policyDocument) (string, error) {
	docJSON, err := doc.encode()
	if err != nil {
		return "", err
	}
	out, err := p.aws.IAM.CreatePolicy(ctx, &iam.CreatePolicyInput{
		PolicyName:     aws.String(name),
		PolicyDocument: aws.String(docJSON),
		Description:    aws.String("Custom policy for the maintenance assistant Lambda functions"),
	})
	if err != nil {
		if awsx.IsConflict(err) {
			return fmt.Sprintf("arn:aws:iam::%s:policy/%s", account, name), nil
		}
		return "", fmt.Errorf("creating policy %s: %w", name, err)
	}
	return aws.ToString(out.Policy.Arn), nil
}

// DeleteRoles tears down the three toolkit roles and their policies.
// Missing resources are skipped; other failures are collected so one
// stuck role does not block the rest of the cleanup.
func (p *Provisioner) DeleteRoles(ctx context.Context) error {
	var failures []error
	for _, roleName := range []string{
		p.cfg.IAM.BedrockAgentRole,
		p.cfg.IAM.KnowledgeBaseRole,
		p.cfg.IAM.LambdaExecutionRole,
	} {
		if roleName == "" {
			continue
		}
		if err := p.deleteRole(ctx, roleName); err != nil {
			p.log.Warn().Str("role", roleName).Err(err).Msg("role cleanup failed")
			failures = append(failures, fmt.Errorf("role %s: %w", roleName, err))
		}
	}
	return errors.Join(failures...)
}

func (p *Provisioner) deleteRole(ctx context.Context, roleName string) error {
	attached, err := p.aws.IAM.ListAttachedRolePolicies(ctx, &iam.ListAttachedRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil {
		if awsx.IsNotFound(err) {
			p.log.Info().Str("role", roleName).Msg("role not found, skipping")
			return nil
		}
		return fmt.Errorf("listing attached policies: %w", err)
	}

	for _, ap := range attached.AttachedPolicies {
		_, err := p.aws.IAM.DetachRolePolicy(ctx, &iam.DetachRolePolicyInput{
			RoleName:  aws.String(roleName),
			PolicyArn: ap.PolicyArn,
		})
		if err != nil && !awsx.IsNotFound(err) {
			return fmt.Errorf("detaching %s: %w", aws.ToString(ap.PolicyArn), err)
		}
		// Customer managed policies created by the toolkit carry the
		// role name prefix and go with the role.
		if aws.ToString(ap.PolicyName) == roleName+"-policy" {
			_, err := p.aws.IAM.DeletePolicy(ctx, &iam.DeletePolicyInput{PolicyArn: ap.PolicyArn})
			if err != nil && !awsx.IsNotFound(err) {
				return fmt.Errorf("deleting policy %s: %w", aws.ToString(ap.PolicyName), err)
			}
		}
	}

	inline, err := p.aws.IAM.ListRolePolicies(ctx, &iam.ListRolePoliciesInput{
		RoleName: aws.String(roleName),
	})
	if err != nil && !awsx.IsNotFound(err) {
		return fmt.Errorf("listing inline policies: %w", err)
	}
	if inline != nil {
		for _, name := range inline.PolicyNames {
			_, err := p.aws.IAM.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
				RoleName:   aws.String(roleName),
				PolicyName: aws.String(name),
			})
			if err != nil && !awsx.IsNotFound(err) {
				return fmt.Errorf("deleting inline policy %s: %w", name, err)
			}
		}
	}

	_, err = p.aws.IAM.DeleteRole(ctx, &iam.DeleteRoleInput{RoleName: aws.String(roleName)})
	if err != nil && !awsx.IsNotFound(err) {
		return fmt.Errorf("deleting role: %w", err)
	}
	p.log.Info().Str("role", roleName).Msg("deleted role")
	return nil
}

// mustEncode is for documents built from static structures that cannot
// fail to marshal.
func mustEncode(d policyDocument) string {
	s, err := d.encode()
	if err != nil {
		panic(err)
	}
	return s
}
