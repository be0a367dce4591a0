package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, "maintenance-assistant", cfg.ProjectName)
	assert.Equal(t, "anthropic.claude-3-sonnet-20240229-v1:0", cfg.Bedrock.Agent.FoundationModel)
	assert.Equal(t, "amazon.titan-embed-text-v1", cfg.Bedrock.KnowledgeBase.FoundationModel)
	assert.Equal(t, "FIXED_SIZE", cfg.Bedrock.KnowledgeBase.ChunkingStrategy.Strategy)
	assert.Equal(t, int32(300), cfg.Bedrock.KnowledgeBase.ChunkingStrategy.FixedSize.MaxTokens)
	assert.Equal(t, "relu-quicksight", cfg.S3.DataBucket.Name)
	assert.Equal(t, "bedrock-recommendations/analytics/", cfg.S3.DataBucket.DataStructure.SourcePrefix)
	assert.Equal(t, "knowledge-base-data/", cfg.S3.DataBucket.DataStructure.BasePrefix)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 8501, cfg.Console.Port)
	assert.Equal(t, "loopback", cfg.Console.Bind)

	require.Contains(t, cfg.LambdaFunctions, FnQueryHandler)
	assert.Equal(t, "bedrock-agent-query-handler", cfg.LambdaFunctions[FnQueryHandler].FunctionName)
	assert.Equal(t, "provided.al2023", cfg.LambdaFunctions[FnQueryHandler].Runtime)
	require.NotNil(t, cfg.LambdaFunctions[FnQueryHandler].FunctionURL)
	assert.Equal(t, "NONE", cfg.LambdaFunctions[FnQueryHandler].FunctionURL.AuthType)
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/aws_config.json")
	require.NoError(t, err)
	// Should return defaults
	assert.Equal(t, "us-west-2", cfg.Region)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadValidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aws_config.json")

	doc := `{
  "region": "eu-central-1",
  "project_name": "plant-42",
  "bedrock": {
    "agent": {
      "name": "plant-expert",
      "foundation_model": "anthropic.claude-3-haiku-20240307-v1:0",
      "id": "AGENT123",
      "alias_id": "ALIAS456"
    },
    "knowledge_base": {
      "name": "plant-kb",
      "id": "KB789"
    }
  },
  "s3": {
    "data_bucket": {
      "name": "plant-telemetry",
      "data_structure": {
        "source_prefix": "raw/",
        "base_prefix": "kb/"
      }
    }
  },
  "lambda_functions": {
    "query_handler": {
      "function_name": "plant-query-handler",
      "timeout": 45,
      "memory_size": 512,
      "environment_variables": {
        "BEDROCK_AGENT_ID": "AGENT123"
      }
    }
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "eu-central-1", cfg.Region)
	assert.Equal(t, "plant-42", cfg.ProjectName)
	assert.Equal(t, "plant-expert", cfg.Bedrock.Agent.Name)
	assert.Equal(t, "AGENT123", cfg.Bedrock.Agent.ID)
	assert.Equal(t, "ALIAS456", cfg.Bedrock.Agent.AliasID)
	assert.Equal(t, "KB789", cfg.Bedrock.KnowledgeBase.ID)
	assert.Equal(t, "plant-telemetry", cfg.S3.DataBucket.Name)
	assert.Equal(t, "raw/", cfg.S3.DataBucket.DataStructure.SourcePrefix)

	fn, ok := cfg.Function(FnQueryHandler)
	require.True(t, ok)
	assert.Equal(t, "plant-query-handler", fn.FunctionName)
	assert.Equal(t, int32(45), fn.Timeout)
	assert.Equal(t, int32(512), fn.MemorySize)
	assert.Equal(t, "AGENT123", fn.EnvironmentVariables["BEDROCK_AGENT_ID"])

	// Unspecified fields fall back to defaults
	assert.Equal(t, "amazon.titan-embed-text-v1", cfg.Bedrock.KnowledgeBase.FoundationModel)
	assert.Equal(t, "bedrock-agent-maintenance-role", cfg.IAM.BedrockAgentRole)
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aws_config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MAINTKIT_REGION", "ap-southeast-2")
	t.Setenv("MAINTKIT_LOG_LEVEL", "TRACE")
	t.Setenv("MAINTKIT_CONSOLE_PORT", "9911")

	cfg, err := Load("/nonexistent/aws_config.json")
	require.NoError(t, err)

	assert.Equal(t, "ap-southeast-2", cfg.Region)
	assert.Equal(t, "trace", cfg.Logging.Level)
	assert.Equal(t, 9911, cfg.Console.Port)
}

func TestLoadExpandsEnvRefs(t *testing.T) {
	t.Setenv("DATA_BUCKET", "telemetry-prod")
	dir := t.TempDir()
	path := filepath.Join(dir, "aws_config.json")

	doc := `{
  "s3": {"data_bucket": {"name": "${DATA_BUCKET}"}},
  "session_table": "${UNSET_TABLE_VAR}",
  "lambda_functions": {
    "query_handler": {
      "function_name": "qh",
      "environment_variables": {"BUCKET": "${DATA_BUCKET}"}
    }
  }
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "telemetry-prod", cfg.S3.DataBucket.Name)
	// Unset variables stay as-is
	assert.Equal(t, "${UNSET_TABLE_VAR}", cfg.SessionTable)
	fn, _ := cfg.Function(FnQueryHandler)
	assert.Equal(t, "telemetry-prod", fn.EnvironmentVariables["BUCKET"])
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aws_config.json")

	cfg := Defaults()
	cfg.Bedrock.Agent.ID = "WRITEBACK1"
	cfg.Bedrock.KnowledgeBase.ID = "WRITEBACK2"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "WRITEBACK1", loaded.Bedrock.Agent.ID)
	assert.Equal(t, "WRITEBACK2", loaded.Bedrock.KnowledgeBase.ID)
	assert.Equal(t, cfg.Region, loaded.Region)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveCreatesRegistryDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config", "aws_config.json")

	require.NoError(t, Save(path, Defaults()))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Defaults().Region, loaded.Region)
}

func TestSetFunctionEnv(t *testing.T) {
	cfg := Defaults()
	cfg.SetFunctionEnv("KNOWLEDGE_BASE_ID", "KB1", FnDataSync, FnHealthCheck)

	ds, _ := cfg.Function(FnDataSync)
	hc, _ := cfg.Function(FnHealthCheck)
	qh, _ := cfg.Function(FnQueryHandler)
	assert.Equal(t, "KB1", ds.EnvironmentVariables["KNOWLEDGE_BASE_ID"])
	assert.Equal(t, "KB1", hc.EnvironmentVariables["KNOWLEDGE_BASE_ID"])
	assert.NotContains(t, qh.EnvironmentVariables, "KNOWLEDGE_BASE_ID")

	// Unknown function keys are ignored
	cfg.SetFunctionEnv("X", "y", "no_such_function")
}

func TestPropagateResourceIDs(t *testing.T) {
	cfg := Defaults()
	cfg.Bedrock.Agent.ID = "AGENTX"
	cfg.Bedrock.Agent.AliasID = "ALIASX"
	cfg.Bedrock.KnowledgeBase.ID = "KBX"
	cfg.Bedrock.KnowledgeBase.DataSourceID = "DSX"

	cfg.PropagateResourceIDs()

	qh, _ := cfg.Function(FnQueryHandler)
	assert.Equal(t, "AGENTX", qh.EnvironmentVariables["BEDROCK_AGENT_ID"])
	assert.Equal(t, "ALIASX", qh.EnvironmentVariables["BEDROCK_AGENT_ALIAS_ID"])

	ds, _ := cfg.Function(FnDataSync)
	assert.Equal(t, "KBX", ds.EnvironmentVariables["KNOWLEDGE_BASE_ID"])
	assert.Equal(t, "DSX", ds.EnvironmentVariables["DATA_SOURCE_ID"])
	assert.Equal(t, "relu-quicksight", ds.EnvironmentVariables["S3_BUCKET"])

	hc, _ := cfg.Function(FnHealthCheck)
	assert.Equal(t, "AGENTX", hc.EnvironmentVariables["BEDROCK_AGENT_ID"])
	assert.Equal(t, "KBX", hc.EnvironmentVariables["KNOWLEDGE_BASE_ID"])

	sm, _ := cfg.Function(FnSessionManager)
	assert.Equal(t, "bedrock-agent-sessions", sm.EnvironmentVariables["SESSION_TABLE"])

	origins := qh.EnvironmentVariables["ALLOWED_ORIGINS"]
	assert.Contains(t, origins, "https://localhost:8501")
	assert.Contains(t, origins, "https://*.streamlit.app")
}

func TestPropagateResourceIDsSkipsEmpty(t *testing.T) {
	cfg := Defaults()
	cfg.SessionTable = ""
	cfg.PropagateResourceIDs()

	qh, _ := cfg.Function(FnQueryHandler)
	assert.NotContains(t, qh.EnvironmentVariables, "BEDROCK_AGENT_ID")
	sm, _ := cfg.Function(FnSessionManager)
	assert.NotContains(t, sm.EnvironmentVariables, "SESSION_TABLE")
}

func TestLoadRawAndSaveRaw(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aws_config.json")

	raw := map[string]any{
		"bedrock": map[string]any{
			"agent": map[string]any{
				"id": "RAW1",
			},
		},
	}

	require.NoError(t, SaveRaw(path, raw))

	loaded, err := LoadRaw(path)
	require.NoError(t, err)

	val, ok := GetValueAtPath(loaded, []string{"bedrock", "agent", "id"})
	assert.True(t, ok)
	assert.Equal(t, "RAW1", val)
}

func TestResolvePaths(t *testing.T) {
	t.Setenv("MAINTKIT_HOME", t.TempDir())
	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.NotEmpty(t, paths.Base)
	assert.Contains(t, paths.Transcript, "transcripts.db")
	assert.Contains(t, paths.Dist, "dist")
}

func TestResolvePathsCustomHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("MAINTKIT_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, tmp, paths.Base)
	assert.Equal(t, filepath.Join(tmp, "transcripts.db"), paths.Transcript)
}

func TestEnsureDirs(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("MAINTKIT_HOME", tmp)

	paths, err := ResolvePaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirs())

	// Verify dirs exist
	for _, d := range []string{paths.Logs, paths.Dist, paths.Data} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
