package faultdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fieldsight/maintkit/internal/awsx"
	"github.com/fieldsight/maintkit/internal/logging"
)

// Reader pulls fault prediction records from the source prefix.
type Reader struct {
	client *s3.Client
	bucket string
	prefix string
	log    *logging.Logger
}

// NewReader returns a Reader over bucket/prefix.
func NewReader(client *s3.Client, bucket, prefix string, log *logging.Logger) *Reader {
	return &Reader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		log:    log.Sub("faultdata"),
	}
}

// VerifyAccess confirms the bucket exists and is reachable with the
// current credentials, distinguishing a missing bucket from a
// permissions problem.
func (r *Reader) VerifyAccess(ctx context.Context) error {
	_, err := r.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(r.bucket)})
	switch {
	case err == nil:
		return nil
	case awsx.IsNotFound(err):
		return fmt.Errorf("bucket %s does not exist", r.bucket)
	case awsx.IsAccessDenied(err):
		return fmt.Errorf("access denied to bucket %s", r.bucket)
	default:
		return fmt.Errorf("checking bucket %s: %w", r.bucket, err)
	}
}

// ListFaultFiles returns the JSON objects under the source prefix,
// capped at max entries (0 means no cap).
func (r *Reader) ListFaultFiles(ctx context.Context, max int) ([]FileInfo, error) {
	var files []FileInfo
	var token *string
	for {
		out, err := r.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(r.bucket),
			Prefix:            aws.String(r.prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", r.bucket, r.prefix, err)
		}
		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, ".json") {
				continue
			}
			files = append(files, FileInfo{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
			if max > 0 && len(files) >= max {
				return files, nil
			}
		}
		if out.NextContinuationToken == nil {
			return files, nil
		}
		token = out.NextContinuationToken
	}
}

// ReadRecord fetches and parses one record by key.
func (r *Reader) ReadRecord(ctx context.Context, key string) (Record, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if awsx.IsNotFound(err) {
			return nil, fmt.Errorf("object %s not found", key)
		}
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	defer out.Body.Close()

	var rec Record
	if err := json.NewDecoder(out.Body).Decode(&rec); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}
	return rec, nil
}

// RecentRecords returns up to limit records modified after since,
// newest first. Files that fail to parse are skipped with a warning.
func (r *Reader) RecentRecords(ctx context.Context, since time.Time, limit int) ([]Record, error) {
	files, err := r.ListFaultFiles(ctx, 0)
	if err != nil {
		return nil, err
	}

	recent := files[:0]
	for _, f := range files {
		if f.LastModified.After(since) {
			recent = append(recent, f)
		}
	}
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].LastModified.After(recent[j].LastModified)
	})
	if limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}

	records := make([]Record, 0, len(recent))
	for _, f := range recent {
		rec, err := r.ReadRecord(ctx, f.Key)
		if err != nil {
			r.log.Warn().Str("key", f.Key).Err(err).Msg("skipping unreadable record")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// ValidateStructure samples up to sampleSize files and checks that they
// parse as JSON objects, reporting the field set common to all valid
// samples.
func (r *Reader) ValidateStructure(ctx context.Context, sampleSize int) (*ValidationReport, error) {
	files, err := r.ListFaultFiles(ctx, sampleSize)
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{TotalFilesChecked: len(files)}
	var common map[string]bool
	for _, f := range files {
		rec, err := r.ReadRecord(ctx, f.Key)
		if err != nil {
			r.log.Warn().Str("key", f.Key).Err(err).Msg("invalid fault data file")
			report.InvalidFiles++
			continue
		}
		report.ValidFiles++
		if report.SampleRecord == nil {
			report.SampleRecord = rec
		}

		if common == nil {
			common = make(map[string]bool, len(rec))
			for k := range rec {
				common[k] = true
			}
			continue
		}
		for k := range common {
			if _, ok := rec[k]; !ok {
				delete(common, k)
			}
		}
	}

	for k := range common {
		report.CommonFields = append(report.CommonFields, k)
	}
	sort.Strings(report.CommonFields)
	return report, nil
}
