package lambdafn

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagent"
	agenttypes "github.com/aws/aws-sdk-go-v2/service/bedrockagent/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldsight/maintkit/internal/faultdata"
)

type fakeFaultReader struct {
	verifyErr   error
	report      *faultdata.ValidationReport
	validateErr error
	records     []faultdata.Record
	recentErr   error
}

func (f *fakeFaultReader) VerifyAccess(ctx context.Context) error { return f.verifyErr }

func (f *fakeFaultReader) ValidateStructure(ctx context.Context, sampleSize int) (*faultdata.ValidationReport, error) {
	return f.report, f.validateErr
}

func (f *fakeFaultReader) RecentRecords(ctx context.Context, since time.Time, limit int) ([]faultdata.Record, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	return f.records, nil
}

type fakeIngestion struct {
	jobID string
	err   error
	calls int
	input *bedrockagent.StartIngestionJobInput
}

func (f *fakeIngestion) StartIngestionJob(ctx context.Context, params *bedrockagent.StartIngestionJobInput, optFns ...func(*bedrockagent.Options)) (*bedrockagent.StartIngestionJobOutput, error) {
	f.calls++
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockagent.StartIngestionJobOutput{
		IngestionJob: &agenttypes.IngestionJob{IngestionJobId: aws.String(f.jobID)},
	}, nil
}

func newSyncTestHandler(reader faultReader, agent ingestionStarter, kbID, dsID string) *DataSyncHandler {
	return &DataSyncHandler{reader: reader, agent: agent, kbID: kbID, dsID: dsID, log: silentLog().Sub("data_sync")}
}

func validReport() *faultdata.ValidationReport {
	return &faultdata.ValidationReport{
		TotalFilesChecked: 5,
		ValidFiles:        4,
		InvalidFiles:      1,
		CommonFields:      []string{"fault_detected", "risk_level", "timestamp"},
	}
}

func TestDataSyncStartsIngestion(t *testing.T) {
	reader := &fakeFaultReader{report: validReport(), records: make([]faultdata.Record, 3)}
	agent := &fakeIngestion{jobID: "job-123"}
	h := newSyncTestHandler(reader, agent, "KB123", "DS456")

	resp, err := h.Handle(context.Background(), urlEvent(http.MethodPost, "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report syncReport
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &report))
	assert.Equal(t, "completed", report.Status)
	assert.Equal(t, "job-123", report.IngestionJobID)
	assert.Equal(t, 4, report.DataValidation.ValidFiles)
	assert.Equal(t, 3, report.DataValidation.CommonFieldsCount)
	assert.Equal(t, 3, report.RecentDataCount)
	assert.Equal(t, "KB123", report.KnowledgeBaseID)
	assert.Contains(t, report.Message, "ingestion started")

	require.Equal(t, 1, agent.calls)
	assert.Equal(t, "KB123", aws.ToString(agent.input.KnowledgeBaseId))
	assert.Equal(t, "DS456", aws.ToString(agent.input.DataSourceId))
}

func TestDataSyncSkipsIngestionWithoutKB(t *testing.T) {
	reader := &fakeFaultReader{report: validReport()}
	agent := &fakeIngestion{jobID: "job-123"}
	h := newSyncTestHandler(reader, agent, "", "")

	resp, err := h.Handle(context.Background(), urlEvent(http.MethodPost, "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report syncReport
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &report))
	assert.Equal(t, "completed", report.Status)
	assert.Equal(t, "S3 access configured and verified", report.Message)
	assert.Empty(t, report.IngestionJobID)
	assert.Zero(t, agent.calls)
}

func TestDataSyncFailures(t *testing.T) {
	tests := []struct {
		name    string
		reader  *fakeFaultReader
		agent   *fakeIngestion
		wantErr string
	}{
		{
			name:    "bucket inaccessible",
			reader:  &fakeFaultReader{verifyErr: errors.New("access denied")},
			agent:   &fakeIngestion{},
			wantErr: "S3 access check failed",
		},
		{
			name:    "no valid files",
			reader:  &fakeFaultReader{report: &faultdata.ValidationReport{TotalFilesChecked: 3}},
			agent:   &fakeIngestion{},
			wantErr: "no valid fault data files",
		},
		{
			name:    "ingestion fails",
			reader:  &fakeFaultReader{report: validReport()},
			agent:   &fakeIngestion{err: errors.New("throttled")},
			wantErr: "start ingestion job",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newSyncTestHandler(tt.reader, tt.agent, "KB123", "DS456")

			resp, err := h.Handle(context.Background(), urlEvent(http.MethodPost, "", nil))
			require.NoError(t, err)
			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

			var failure syncFailure
			require.NoError(t, json.Unmarshal([]byte(resp.Body), &failure))
			assert.Equal(t, "failed", failure.Status)
			assert.Contains(t, failure.Error, tt.wantErr)
		})
	}
}

func TestDataSyncRecentErrorIsNonFatal(t *testing.T) {
	reader := &fakeFaultReader{report: validReport(), recentErr: errors.New("listing hiccup")}
	h := newSyncTestHandler(reader, &fakeIngestion{jobID: "j"}, "KB", "DS")

	resp, err := h.Handle(context.Background(), urlEvent(http.MethodPost, "", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report syncReport
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &report))
	assert.Zero(t, report.RecentDataCount)
}
