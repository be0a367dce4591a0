package provision

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	runtimetypes "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"

	"github.com/fieldsight/maintkit/internal/config"
)

// Index and field names Bedrock manages inside the vector collection.
const (
	vectorIndexName   = "bedrock-knowledge-base-default-index"
	vectorFieldName   = "bedrock-knowledge-base-default-vector"
	textFieldName     = "AMAZON_BEDROCK_TEXT_CHUNK"
	metadataFieldName = "AMAZON_BEDROCK_METADATA"
)

// EnsureKnowledgeBase creates the knowledge base over the vector store
// if it does not exist and returns its ID, which is also written back
// to the registry.
func (p *Provisioner) EnsureKnowledgeBase(ctx context.Context, roleARN, collectionARN string) (string, error) {
	kbCfg := p.cfg.Bedrock.KnowledgeBase

	if id, err := p.FindKnowledgeBase(ctx); err != nil {
		return "", err
	} else if id != "" {
		p.log.Info().Str("kb", kbCfg.Name).Str("id", id).Msg("knowledge base already exists")
		p.cfg.Bedrock.KnowledgeBase.ID = id
		return id, nil
	}

	out, err := p.aws.Agent.CreateKnowledgeBase(ctx, &bedrockagent.CreateKnowledgeBaseInput{
		Name:        aws.String(kbCfg.Name),
		Description: aws.String(kbCfg.Description),
		RoleArn:     aws.String(roleARN),
		KnowledgeBaseConfiguration: &agenttypes.KnowledgeBaseConfiguration{
			Type: agenttypes.KnowledgeBaseTypeVector,
			VectorKnowledgeBaseConfiguration: &agenttypes.VectorKnowledgeBaseConfiguration{
				EmbeddingModelArn: aws.String(foundationModelARN(p.aws.Region, kbCfg.FoundationModel)),
			},
		},
		StorageConfiguration: &agenttypes.StorageConfiguration{
			Type: agenttypes.KnowledgeBaseStorageTypeOpensearchServerless,
			OpensearchServerlessConfiguration: &agenttypes.OpenSearchServerlessConfiguration{
				CollectionArn:   aws.String(collectionARN),
				VectorIndexName: aws.String(vectorIndexName),
				FieldMapping: &agenttypes.OpenSearchServerlessFieldMapping{
					VectorField:   aws.String(vectorFieldName),
					TextField:     aws.String(textFieldName),
					MetadataField: aws.String(metadataFieldName),
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating knowledge base %s: %w", kbCfg.Name, err)
	}

	id := aws.ToString(out.KnowledgeBase.KnowledgeBaseId)
	p.log.Info().Str("kb", kbCfg.Name).Str("id", id).Msg("created knowledge base")
	p.cfg.Bedrock.KnowledgeBase.ID = id
	return id, nil
}

// FindKnowledgeBase resolves the configured knowledge base name to an
// ID, or "" when no knowledge base carries that name.
func (p *Provisioner) FindKnowledgeBase(ctx context.Context) (string, error) {
	name := p.cfg.Bedrock.KnowledgeBase.Name
	var token *string
	for {
		out, err := p.aws.Agent.ListKnowledgeBases(ctx, &bedrockagent.ListKnowledgeBasesInput{
			NextToken: token,
		})
		if err != nil {
			return "", fmt.Errorf("listing knowledge bases: %w", err)
		}
		for _, kb := range out.KnowledgeBaseSummaries {
			if aws.ToString(kb.Name) == name {
				return aws.ToString(kb.KnowledgeBaseId), nil
			}
		}
		if out.NextToken == nil {
			return "", nil
		}
		token = out.NextToken
	}
}

// KnowledgeBaseStatus returns the live status string for a knowledge
// base ID.
func (p *Provisioner) KnowledgeBaseStatus(ctx context.Context, kbID string) (string, error) {
	out, err := p.aws.Agent.GetKnowledgeBase(ctx, &bedrockagent.GetKnowledgeBaseInput{
		KnowledgeBaseId: aws.String(kbID),
	})
	if err != nil {
		return "", fmt.Errorf("getting knowledge base %s: %w", kbID, err)
	}
	return string(out.KnowledgeBase.Status), nil
}

// EnsureDataSource attaches the S3 data source to the knowledge base if
// missing and returns its ID, which is also written back to the
// registry. Chunking comes from the registry.
func (p *Provisioner) EnsureDataSource(ctx context.Context, kbID string) (string, error) {
	bucket := p.cfg.S3.DataBucket.Name
	basePrefix := p.cfg.S3.DataBucket.DataStructure.BasePrefix
	dsName := bucket + "-fault-data"

	var token *string
	for {
		out, err := p.aws.Agent.ListDataSources(ctx, &bedrockagent.ListDataSourcesInput{
			KnowledgeBaseId: aws.String(kbID),
			NextToken:       token,
		})
		if err != nil {
			return "", fmt.Errorf("listing data sources: %w", err)
		}
		for _, ds := range out.DataSourceSummaries {
			if aws.ToString(ds.Name) == dsName {
				id := aws.ToString(ds.DataSourceId)
				p.log.Info().Str("data_source", dsName).Str("id", id).Msg("data source already exists")
				p.cfg.Bedrock.KnowledgeBase.DataSourceID = id
				return id, nil
			}
		}
		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}

	out, err := p.aws.Agent.CreateDataSource(ctx, &bedrockagent.CreateDataSourceInput{
		KnowledgeBaseId: aws.String(kbID),
		Name:            aws.String(dsName),
		Description:     aws.String(fmt.Sprintf("S3 data source for fault prediction data from %s", bucket)),
		DataSourceConfiguration: &agenttypes.DataSourceConfiguration{
			Type: agenttypes.DataSourceTypeS3,
			S3Configuration: &agenttypes.S3DataSourceConfiguration{
				BucketArn:         aws.String("arn:aws:s3:::" + bucket),
				InclusionPrefixes: []string{basePrefix},
			},
		},
		VectorIngestionConfiguration: chunkingConfiguration(p.cfg.Bedrock.KnowledgeBase.ChunkingStrategy),
	})
	if err != nil {
		return "", fmt.Errorf("creating data source %s: %w", dsName, err)
	}

	id := aws.ToString(out.DataSource.DataSourceId)
	p.log.Info().Str("data_source", dsName).Str("id", id).Msg("created data source")
	p.cfg.Bedrock.KnowledgeBase.DataSourceID = id
	return id, nil
}

func chunkingConfiguration(c config.ChunkingConfig) *agenttypes.VectorIngestionConfiguration {
	cc := &agenttypes.ChunkingConfiguration{
		ChunkingStrategy: agenttypes.ChunkingStrategy(c.Strategy),
	}
	if c.Strategy == "FIXED_SIZE" {
		cc.FixedSizeChunkingConfiguration = &agenttypes.FixedSizeChunkingConfiguration{
			MaxTokens:         aws.Int32(c.FixedSize.MaxTokens),
			OverlapPercentage: aws.Int32(c.FixedSize.OverlapPercentage),
		}
	}
	return &agenttypes.VectorIngestionConfiguration{ChunkingConfiguration: cc}
}

// IngestionStatus summarizes one ingestion job.
type IngestionStatus struct {
	JobID            string
	Status           string
	DocumentsScanned int64
	DocumentsIndexed int64
	DocumentsFailed  int64
	FailureReasons   []string
	StartedAt        time.Time
	UpdatedAt        time.Time
}

// Done reports whether the job reached a terminal state.
func (s *IngestionStatus) Done() bool {
	switch s.Status {
	case string(agenttypes.IngestionJobStatusComplete),
		string(agenttypes.IngestionJobStatusFailed),
		string(agenttypes.IngestionJobStatusStopped):
		return true
	}
	return false
}

// StartIngestion kicks off an ingestion job and returns its ID.
func (p *Provisioner) StartIngestion(ctx context.Context, kbID, dsID, description string) (string, error) {
	out, err := p.aws.Agent.StartIngestionJob(ctx, &bedrockagent.StartIngestionJobInput{
		KnowledgeBaseId: aws.String(kbID),
		DataSourceId:    aws.String(dsID),
		Description:     aws.String(description),
	})
	if err != nil {
		return "", fmt.Errorf("starting ingestion job: %w", err)
	}
	jobID := aws.ToString(out.IngestionJob.IngestionJobId)
	p.log.Info().Str("job", jobID).Msg("started ingestion job")
	return jobID, nil
}

// WaitForIngestion polls an ingestion job until it completes. A FAILED
// job returns an error carrying the failure reasons.
func (p *Provisioner) WaitForIngestion(ctx context.Context, kbID, dsID, jobID string) (*IngestionStatus, error) {
	var last *IngestionStatus
	err := waitFor(ctx, "ingestion job", ingestionPollInterval, ingestionPollTimeout, func(ctx context.Context) (bool, error) {
		status, err := p.IngestionJobStatus(ctx, kbID, dsID, jobID)
		if err != nil {
			p.log.Warn().Err(err).Msg("checking ingestion status failed")
			return false, nil
		}
		last = status
		p.log.Info().Str("job", jobID).Str("status", status.Status).Msg("ingestion status")
		return status.Done(), nil
	})
	if err != nil {
		return last, err
	}
	if last.Status == string(agenttypes.IngestionJobStatusFailed) {
		return last, fmt.Errorf("ingestion job %s failed: %s", jobID, strings.Join(last.FailureReasons, "; "))
	}
	return last, nil
}

// IngestionJobStatus fetches the current state of one ingestion job.
func (p *Provisioner) IngestionJobStatus(ctx context.Context, kbID, dsID, jobID string) (*IngestionStatus, error) {
	out, err := p.aws.Agent.GetIngestionJob(ctx, &bedrockagent.GetIngestionJobInput{
		KnowledgeBaseId: aws.String(kbID),
		DataSourceId:    aws.String(dsID),
		IngestionJobId:  aws.String(jobID),
	})
	if err != nil {
		return nil, fmt.Errorf("getting ingestion job %s: %w", jobID, err)
	}
	return ingestionStatusFromJob(out.IngestionJob), nil
}

// LatestIngestion returns the most recently started ingestion job, or
// nil when none have run.
func (p *Provisioner) LatestIngestion(ctx context.Context, kbID, dsID string) (*IngestionStatus, error) {
	out, err := p.aws.Agent.ListIngestionJobs(ctx, &bedrockagent.ListIngestionJobsInput{
		KnowledgeBaseId: aws.String(kbID),
		DataSourceId:    aws.String(dsID),
		MaxResults:      aws.Int32(1),
		SortBy: &agenttypes.IngestionJobSortBy{
			Attribute: agenttypes.IngestionJobSortByAttributeStartedAt,
			Order:     agenttypes.SortOrderDescending,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("listing ingestion jobs: %w", err)
	}
	if len(out.IngestionJobSummaries) == 0 {
		return nil, nil
	}
	s := out.IngestionJobSummaries[0]
	return p.IngestionJobStatus(ctx, kbID, dsID, aws.ToString(s.IngestionJobId))
}

func ingestionStatusFromJob(job *agenttypes.IngestionJob) *IngestionStatus {
	status := &IngestionStatus{
		JobID:          aws.ToString(job.IngestionJobId),
		Status:         string(job.Status),
		FailureReasons: job.FailureReasons,
	}
	if job.StartedAt != nil {
		status.StartedAt = *job.StartedAt
	}
	if job.UpdatedAt != nil {
		status.UpdatedAt = *job.UpdatedAt
	}
	if st := job.Statistics; st != nil {
		status.DocumentsScanned = aws.ToInt64(st.NumberOfDocumentsScanned)
		status.DocumentsIndexed = aws.ToInt64(st.NumberOfNewDocumentsIndexed)
		status.DocumentsFailed = aws.ToInt64(st.NumberOfDocumentsFailed)
	}
	return status
}

// RetrievalHit is one chunk returned by a knowledge base query.
type RetrievalHit struct {
	Score    float64
	Content  string
	Location string
}

// QueryKnowledgeBase runs a vector search against the knowledge base
// and returns the top hits.
func (p *Provisioner) QueryKnowledgeBase(ctx context.Context, kbID, query string, topK int32) ([]RetrievalHit, error) {
	out, err := p.aws.AgentRuntime.Retrieve(ctx, &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(kbID),
		RetrievalQuery:  &runtimetypes.KnowledgeBaseQuery{Text: aws.String(query)},
		RetrievalConfiguration: &runtimetypes.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &runtimetypes.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(topK),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("querying knowledge base: %w", err)
	}

	hits := make([]RetrievalHit, 0, len(out.RetrievalResults))
	for _, r := range out.RetrievalResults {
		hit := RetrievalHit{Score: aws.ToFloat64(r.Score)}
		if r.Content != nil {
			hit.Content = aws.ToString(r.Content.Text)
		}
		if r.Location != nil && r.Location.S3Location != nil {
			hit.Location = aws.ToString(r.Location.S3Location.Uri)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
