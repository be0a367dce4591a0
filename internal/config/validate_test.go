package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_ValidDefaults(t *testing.T) {
	cfg := Defaults()
	issues := Validate(&cfg)
	assert.Empty(t, issues)
}

func TestValidate_MissingRegion(t *testing.T) {
	cfg := Defaults()
	cfg.Region = ""
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "region")
}

func TestValidate_MissingProjectName(t *testing.T) {
	cfg := Defaults()
	cfg.ProjectName = ""
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "project_name")
}

func TestValidate_MissingFoundationModel(t *testing.T) {
	cfg := Defaults()
	cfg.Bedrock.Agent.FoundationModel = ""
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "bedrock.agent.foundation_model")
}

func TestValidate_MissingEmbeddingModel(t *testing.T) {
	cfg := Defaults()
	cfg.Bedrock.KnowledgeBase.FoundationModel = ""
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "bedrock.knowledge_base.foundation_model")
}

func TestValidate_InvalidChunkingStrategy(t *testing.T) {
	cfg := Defaults()
	cfg.Bedrock.KnowledgeBase.ChunkingStrategy.Strategy = "SEMANTIC"
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "chunking_strategy")
}

func TestValidate_ValidChunkingStrategies(t *testing.T) {
	for _, s := range []string{"FIXED_SIZE", "NONE", ""} {
		cfg := Defaults()
		cfg.Bedrock.KnowledgeBase.ChunkingStrategy.Strategy = s
		if s != "FIXED_SIZE" {
			cfg.Bedrock.KnowledgeBase.ChunkingStrategy.FixedSize = FixedSizeChunking{}
		}
		assert.Empty(t, Validate(&cfg), "strategy %q should be valid", s)
	}
}

func TestValidate_FixedSizeChunkingBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Bedrock.KnowledgeBase.ChunkingStrategy.FixedSize.MaxTokens = 0
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "maxTokens")

	cfg = Defaults()
	cfg.Bedrock.KnowledgeBase.ChunkingStrategy.FixedSize.OverlapPercentage = 150
	issues = Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "overlapPercentage")
}

func TestValidate_MissingBucket(t *testing.T) {
	cfg := Defaults()
	cfg.S3.DataBucket.Name = ""
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "s3.data_bucket.name")
}

func TestValidate_PrefixLeadingSlash(t *testing.T) {
	cfg := Defaults()
	cfg.S3.DataBucket.DataStructure.SourcePrefix = "/raw/"
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "source_prefix")

	cfg = Defaults()
	cfg.S3.DataBucket.DataStructure.BasePrefix = "/kb/"
	issues = Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "base_prefix")
}

func TestValidate_LambdaMissingFunctionName(t *testing.T) {
	cfg := Defaults()
	fn := cfg.LambdaFunctions[FnQueryHandler]
	fn.FunctionName = ""
	cfg.LambdaFunctions[FnQueryHandler] = fn

	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)

	found := false
	for _, issue := range issues {
		if issue.Path == "lambda_functions.query_handler.function_name" {
			found = true
			break
		}
	}
	assert.True(t, found, "should report missing function_name")
}

func TestValidate_LambdaTimeoutBounds(t *testing.T) {
	cfg := Defaults()
	fn := cfg.LambdaFunctions[FnDataSync]
	fn.Timeout = 1000
	cfg.LambdaFunctions[FnDataSync] = fn

	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)

	found := false
	for _, issue := range issues {
		if issue.Path == "lambda_functions.data_sync.timeout" {
			found = true
			break
		}
	}
	assert.True(t, found, "should report invalid timeout")
}

func TestValidate_LambdaMemoryBounds(t *testing.T) {
	cfg := Defaults()
	fn := cfg.LambdaFunctions[FnHealthCheck]
	fn.MemorySize = 64
	cfg.LambdaFunctions[FnHealthCheck] = fn

	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)

	found := false
	for _, issue := range issues {
		if issue.Path == "lambda_functions.health_check.memory_size" {
			found = true
			break
		}
	}
	assert.True(t, found, "should report invalid memory_size")
}

func TestValidate_FunctionURLAuthType(t *testing.T) {
	cfg := Defaults()
	fn := cfg.LambdaFunctions[FnQueryHandler]
	fn.FunctionURL = &FunctionURLConfig{AuthType: "BASIC"}
	cfg.LambdaFunctions[FnQueryHandler] = fn

	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)

	found := false
	for _, issue := range issues {
		if issue.Path == "lambda_functions.query_handler.function_url.auth_type" {
			found = true
			break
		}
	}
	assert.True(t, found, "should report invalid auth_type")
}

func TestValidate_ValidAuthTypes(t *testing.T) {
	for _, auth := range []string{"NONE", "AWS_IAM", ""} {
		cfg := Defaults()
		fn := cfg.LambdaFunctions[FnQueryHandler]
		fn.FunctionURL = &FunctionURLConfig{AuthType: auth}
		cfg.LambdaFunctions[FnQueryHandler] = fn
		assert.Empty(t, Validate(&cfg), "auth type %q should be valid", auth)
	}
}

func TestValidate_InvalidConsolePort(t *testing.T) {
	cfg := Defaults()

	cfg.Console.Port = -1
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "console.port")

	cfg.Console.Port = 70000
	issues = Validate(&cfg)
	assert.NotEmpty(t, issues)
}

func TestValidate_ValidConsolePorts(t *testing.T) {
	for _, port := range []int{0, 8501, 65535} {
		cfg := Defaults()
		cfg.Console.Port = port
		assert.Empty(t, Validate(&cfg), "port %d should be valid", port)
	}
}

func TestValidate_InvalidConsoleBind(t *testing.T) {
	cfg := Defaults()
	cfg.Console.Bind = "tailnet"
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "console.bind")
}

func TestValidate_CustomBindRequiresHost(t *testing.T) {
	cfg := Defaults()
	cfg.Console.Bind = "custom"
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "console.host")

	cfg.Console.Host = "10.0.0.5"
	assert.Empty(t, Validate(&cfg))
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.Logging.Level = "verbose"
	issues := Validate(&cfg)
	assert.NotEmpty(t, issues)
	assert.Contains(t, issues[0].Path, "logging.level")
}

func TestValidate_ValidLogLevels(t *testing.T) {
	for _, level := range []string{"silent", "fatal", "error", "warn", "info", "debug", "trace", ""} {
		cfg := Defaults()
		cfg.Logging.Level = level
		assert.Empty(t, Validate(&cfg), "log level %q should be valid", level)
	}
}

func TestValidate_MultipleIssues(t *testing.T) {
	cfg := Defaults()
	cfg.Region = ""
	cfg.Console.Port = -1
	cfg.Logging.Level = "verbose"

	issues := Validate(&cfg)
	assert.GreaterOrEqual(t, len(issues), 3)
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{
		Path:    "console.port",
		Message: "port must be 0-65535, got -1",
	}
	assert.Equal(t, "console.port: port must be 0-65535, got -1", issue.String())
}

func TestValidate_NoLambdaFunctions(t *testing.T) {
	cfg := Defaults()
	cfg.LambdaFunctions = nil
	issues := Validate(&cfg)
	assert.Empty(t, issues)
}
