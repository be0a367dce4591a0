package faultdata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fieldsight/maintkit/internal/logging"
)

// consolidatedExportName is the single JSON export holding every
// knowledge document plus run metadata.
const consolidatedExportName = "fault_analysis_knowledge_base.json"

// Preparer converts raw fault prediction JSON into the plain-text
// reports and consolidated export the knowledge base ingests, writing
// them under the knowledge base prefix.
type Preparer struct {
	client     *s3.Client
	reader     *Reader
	bucket     string
	basePrefix string
	log        *logging.Logger
}

// NewPreparer returns a Preparer reading raw records under
// sourcePrefix and writing knowledge base documents under basePrefix.
func NewPreparer(client *s3.Client, bucket, sourcePrefix, basePrefix string, log *logging.Logger) *Preparer {
	return &Preparer{
		client:     client,
		reader:     NewReader(client, bucket, sourcePrefix, log),
		bucket:     bucket,
		basePrefix: basePrefix,
		log:        log.Sub("prepare"),
	}
}

// PrepareResult counts what a preparation run produced.
type PrepareResult struct {
	FilesConverted    int
	DocumentsExported int
	SamplesUploaded   int
	Failed            int
}

type knowledgeExport struct {
	Documents []KnowledgeDocument `json:"documents"`
	Metadata  exportMetadata      `json:"metadata"`
}

type exportMetadata struct {
	CreatedAt     string `json:"created_at"`
	DocumentCount int    `json:"document_count"`
	DataSource    string `json:"data_source"`
	Version       string `json:"version"`
}

// Run converts every fault record into a text report, writes the
// consolidated knowledge export, and uploads the sample maintenance
// references. Unreadable source files are skipped and counted.
func (p *Preparer) Run(ctx context.Context) (*PrepareResult, error) {
	files, err := p.reader.ListFaultFiles(ctx, 0)
	if err != nil {
		return nil, err
	}
	p.log.Info().Int("files", len(files)).Msg("converting fault reports")

	result := &PrepareResult{}
	var docs []KnowledgeDocument
	for _, f := range files {
		rec, err := p.reader.ReadRecord(ctx, f.Key)
		if err != nil {
			p.log.Warn().Err(err).Str("key", f.Key).Msg("skipping unreadable fault file")
			result.Failed++
			continue
		}
		if err := p.putText(ctx, p.textKey(f.Key), AnalyticsReport(rec)); err != nil {
			return nil, fmt.Errorf("upload report for %s: %w", f.Key, err)
		}
		docs = append(docs, BuildKnowledgeDocument(rec))
		result.FilesConverted++
	}

	if len(docs) > 0 {
		if err := p.putExport(ctx, docs); err != nil {
			return nil, err
		}
		result.DocumentsExported = len(docs)
	}

	for _, doc := range SampleDocuments() {
		if err := p.putText(ctx, p.basePrefix+doc.Filename, doc.Content); err != nil {
			return nil, fmt.Errorf("upload sample %s: %w", doc.Filename, err)
		}
		result.SamplesUploaded++
	}

	p.log.Info().
		Int("converted", result.FilesConverted).
		Int("exported", result.DocumentsExported).
		Int("samples", result.SamplesUploaded).
		Int("failed", result.Failed).
		Msg("knowledge base data prepared")
	return result, nil
}

// textKey maps a source object key to its text report key under the
// knowledge base prefix.
func (p *Preparer) textKey(sourceKey string) string {
	name := sourceKey
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".json") + ".txt"
	return p.basePrefix + name
}

func (p *Preparer) putText(ctx context.Context, key, content string) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	return err
}

func (p *Preparer) putExport(ctx context.Context, docs []KnowledgeDocument) error {
	createdAt := time.Now().UTC().Format(time.RFC3339)
	export := knowledgeExport{
		Documents: docs,
		Metadata: exportMetadata{
			CreatedAt:     createdAt,
			DocumentCount: len(docs),
			DataSource:    "industrial_equipment_fault_predictions",
			Version:       "1.0",
		},
	}
	body, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("encode knowledge export: %w", err)
	}

	key := p.basePrefix + consolidatedExportName
	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"document_type":  "knowledge_base",
			"document_count": strconv.Itoa(len(docs)),
			"created_at":     createdAt,
		},
	})
	if err != nil {
		return fmt.Errorf("upload knowledge export: %w", err)
	}
	p.log.Info().Str("key", key).Int("documents", len(docs)).Msg("consolidated export written")
	return nil
}
