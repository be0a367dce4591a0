package provision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/opensearchserverless"
	osstypes "github.com/aws/aws-sdk-go-v2/service/opensearchserverless/types"

	"github.com/fieldsight/maintkit/internal/awsx"
)

// CollectionName derives the vector store collection name from the
// project name. OpenSearch Serverless caps collection names at 32
// characters, so the project portion is truncated.
func CollectionName(project string) string {
	if len(project) > 20 {
		project = project[:20]
	}
	return project + "-kb"
}

// vectorPolicyNames returns the encryption, network, and data access
// policy names for a collection. Policy names have the same length cap
// as collections.
func vectorPolicyNames(collection string) (enc, net, access string) {
	prefix := collection
	if len(prefix) > 20 {
		prefix = prefix[:20]
	}
	return prefix + "-enc", prefix + "-net", prefix + "-access"
}

// aossRule is one resource rule inside an OpenSearch Serverless policy.
type aossRule struct {
	ResourceType string   `json:"ResourceType"`
	Resource     []string `json:"Resource"`
	Permission   []string `json:"Permission,omitempty"`
}

type aossSecurityPolicy struct {
	Rules           []aossRule `json:"Rules"`
	AWSOwnedKey     *bool      `json:"AWSOwnedKey,omitempty"`
	AllowFromPublic *bool      `json:"AllowFromPublic,omitempty"`
}

type aossAccessPolicy struct {
	Rules     []aossRule `json:"Rules"`
	Principal []string   `json:"Principal"`
}

// VectorStoreInfo describes the collection backing the knowledge base.
type VectorStoreInfo struct {
	Name   string
	ID     string
	ARN    string
	Status string
}

// EnsureVectorStore creates the OpenSearch Serverless collection and
// its security policies, then waits for the collection to go ACTIVE.
// Returns the collection ARN and writes it back to the registry.
func (p *Provisioner) EnsureVectorStore(ctx context.Context) (string, error) {
	collection := CollectionName(p.cfg.ProjectName)

	if info, err := p.VectorStoreStatus(ctx); err != nil {
		return "", err
	} else if info != nil {
		p.log.Info().Str("collection", collection).Msg("vector store collection already exists")
		p.cfg.Bedrock.KnowledgeBase.CollectionARN = info.ARN
		return info.ARN, nil
	}

	account, err := p.aws.AccountID(ctx)
	if err != nil {
		return "", err
	}

	encName, netName, accessName := vectorPolicyNames(collection)
	collectionResource := []string{"collection/" + collection}

	encPolicy := aossSecurityPolicy{
		Rules:       []aossRule{{ResourceType: "collection", Resource: collectionResource}},
		AWSOwnedKey: aws.Bool(true),
	}
	p.createSecurityPolicy(ctx, encName, osstypes.SecurityPolicyTypeEncryption, encPolicy)

	netPolicy := []aossSecurityPolicy{{
		Rules:           []aossRule{{ResourceType: "collection", Resource: collectionResource}},
		AllowFromPublic: aws.Bool(true),
	}}
	p.createSecurityPolicy(ctx, netName, osstypes.SecurityPolicyTypeNetwork, netPolicy)

	accessPolicy := []aossAccessPolicy{{
		Rules: []aossRule{
			{
				ResourceType: "index",
				Resource:     []string{"index/" + collection + "/*"},
				Permission: []string{
					"aoss:CreateIndex",
					"aoss:DeleteIndex",
					"aoss:UpdateIndex",
					"aoss:DescribeIndex",
					"aoss:ReadDocument",
					"aoss:WriteDocument",
				},
			},
			{
				ResourceType: "collection",
				Resource:     collectionResource,
				Permission: []string{
					"aoss:CreateCollectionItems",
					"aoss:DeleteCollectionItems",
					"aoss:UpdateCollectionItems",
					"aoss:DescribeCollectionItems",
				},
			},
		},
		Principal: []string{
			fmt.Sprintf("arn:aws:iam::%s:role/%s", account, p.cfg.IAM.KnowledgeBaseRole),
		},
	}}
	p.createAccessPolicy(ctx, accessName, accessPolicy)

	out, err := p.aws.Vector.CreateCollection(ctx, &opensearchserverless.CreateCollectionInput{
		Name:        aws.String(collection),
		Type:        osstypes.CollectionTypeVectorsearch,
		Description: aws.String("Vector collection for the maintenance knowledge base"),
	})
	if err != nil {
		return "", fmt.Errorf("creating collection %s: %w", collection, err)
	}
	arn := aws.ToString(out.CreateCollectionDetail.Arn)

	p.log.Info().Str("collection", collection).Msg("waiting for collection to become active")
	err = waitFor(ctx, "vector store collection", collectionPollInterval, collectionPollTimeout, func(ctx context.Context) (bool, error) {
		info, err := p.VectorStoreStatus(ctx)
		if err != nil || info == nil {
			// Transient read failures during creation are retried on
			// the next tick.
			return false, nil
		}
		p.log.Debug().Str("status", info.Status).Msg("collection status")
		return info.Status == string(osstypes.CollectionStatusActive), nil
	})
	if err != nil {
		return "", err
	}

	p.log.Info().Str("collection", collection).Str("arn", arn).Msg("created vector store collection")
	p.cfg.Bedrock.KnowledgeBase.CollectionARN = arn
	return arn, nil
}

// VectorStoreStatus looks up the collection by its derived name.
// Returns nil when the collection does not exist.
func (p *Provisioner) VectorStoreStatus(ctx context.Context) (*VectorStoreInfo, error) {
	collection := CollectionName(p.cfg.ProjectName)
	out, err := p.aws.Vector.BatchGetCollection(ctx, &opensearchserverless.BatchGetCollectionInput{
		Names: []string{collection},
	})
	if err != nil {
		return nil, fmt.Errorf("looking up collection %s: %w", collection, err)
	}
	if len(out.CollectionDetails) == 0 {
		return nil, nil
	}
	d := out.CollectionDetails[0]
	return &VectorStoreInfo{
		Name:   aws.ToString(d.Name),
		ID:     aws.ToString(d.Id),
		ARN:    aws.ToString(d.Arn),
		Status: string(d.Status),
	}, nil
}

// CleanupVectorStore deletes the collection and its policies. Missing
// resources are skipped; other failures are collected.
func (p *Provisioner) CleanupVectorStore(ctx context.Context) error {
	collection := CollectionName(p.cfg.ProjectName)
	var failures []error

	info, err := p.VectorStoreStatus(ctx)
	if err != nil {
		failures = append(failures, err)
	} else if info != nil {
		_, err := p.aws.Vector.DeleteCollection(ctx, &opensearchserverless.DeleteCollectionInput{
			Id: aws.String(info.ID),
		})
		if err != nil && !awsx.IsNotFound(err) {
			failures = append(failures, fmt.Errorf("deleting collection %s: %w", collection, err))
		} else {
			p.log.Info().Str("collection", collection).Msg("collection deletion initiated")
		}
	} else {
		p.log.Info().Str("collection", collection).Msg("collection not found")
	}

	encName, netName, accessName := vectorPolicyNames(collection)
	for _, sp := range []struct {
		name string
		typ  osstypes.SecurityPolicyType
	}{
		{encName, osstypes.SecurityPolicyTypeEncryption},
		{netName, osstypes.SecurityPolicyTypeNetwork},
	} {
		_, err := p.aws.Vector.DeleteSecurityPolicy(ctx, &opensearchserverless.DeleteSecurityPolicyInput{
			Name: aws.String(sp.name),
			Type: sp.typ,
		})
		if err != nil && !awsx.IsNotFound(err) {
			failures = append(failures, fmt.Errorf("deleting %s policy %s: %w", sp.typ, sp.name, err))
		}
	}

	_, err = p.aws.Vector.DeleteAccessPolicy(ctx, &opensearchserverless.DeleteAccessPolicyInput{
		Name: aws.String(accessName),
		Type: osstypes.AccessPolicyTypeData,
	})
	if err != nil && !awsx.IsNotFound(err) {
		failures = append(failures, fmt.Errorf("deleting access policy %s: %w", accessName, err))
	}

	return errors.Join(failures...)
}

// createSecurityPolicy creates an encryption or network policy. A
// policy that already exists, or fails for a reason the collection
// create will surface anyway, is logged and skipped.
func (p *Provisioner) createSecurityPolicy(ctx context.Context, name string, typ osstypes.SecurityPolicyType, policy any) {
	body, err := json.Marshal(policy)
	if err != nil {
		p.log.Warn().Str("policy", name).Err(err).Msg("encoding security policy failed")
		return
	}
	_, err = p.aws.Vector.CreateSecurityPolicy(ctx, &opensearchserverless.CreateSecurityPolicyInput{
		Name:   aws.String(name),
		Type:   typ,
		Policy: aws.String(string(body)),
	})
	if err != nil && !awsx.IsConflict(err) {
		p.log.Warn().Str("policy", name).Err(err).Msg("security policy creation failed")
	}
}

func (p *Provisioner) createAccessPolicy(ctx context.Context, name string, policy []aossAccessPolicy) {
	body, err := json.Marshal(policy)
	if err != nil {
		p.log.Warn().Str("policy", name).Err(err).Msg("encoding access policy failed")
		return
	}
	_, err = p.aws.Vector.CreateAccessPolicy(ctx, &opensearchserverless.CreateAccessPolicyInput{
		Name:   aws.String(name),
		Type:   osstypes.AccessPolicyTypeData,
		Policy: aws.String(string(body)),
	})
	if err != nil && !awsx.IsConflict(err) {
		p.log.Warn().Str("policy", name).Err(err).Msg("access policy creation failed")
	}
}
