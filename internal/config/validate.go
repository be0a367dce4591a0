package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if cfg.Region == "" {
		issues = append(issues, ValidationIssue{
			Path:    "region",
			Message: "region is required",
		})
	}
	if cfg.ProjectName == "" {
		issues = append(issues, ValidationIssue{
			Path:    "project_name",
			Message: "project_name is required",
		})
	}

	// Bedrock validation
	if cfg.Bedrock.Agent.FoundationModel == "" {
		issues = append(issues, ValidationIssue{
			Path:    "bedrock.agent.foundation_model",
			Message: "foundation model is required",
		})
	}
	if cfg.Bedrock.KnowledgeBase.FoundationModel == "" {
		issues = append(issues, ValidationIssue{
			Path:    "bedrock.knowledge_base.foundation_model",
			Message: "embedding model is required",
		})
	}

	validChunking := []string{"FIXED_SIZE", "NONE"}
	chunking := cfg.Bedrock.KnowledgeBase.ChunkingStrategy
	if chunking.Strategy != "" && !slices.Contains(validChunking, chunking.Strategy) {
		issues = append(issues, ValidationIssue{
			Path:    "bedrock.knowledge_base.chunking_strategy.chunking_strategy",
			Message: fmt.Sprintf("must be one of %v, got %q", validChunking, chunking.Strategy),
		})
	}
	if chunking.Strategy == "FIXED_SIZE" {
		if chunking.FixedSize.MaxTokens <= 0 {
			issues = append(issues, ValidationIssue{
				Path:    "bedrock.knowledge_base.chunking_strategy.fixed_size_chunking_configuration.maxTokens",
				Message: fmt.Sprintf("must be positive, got %d", chunking.FixedSize.MaxTokens),
			})
		}
		if chunking.FixedSize.OverlapPercentage < 0 || chunking.FixedSize.OverlapPercentage > 99 {
			issues = append(issues, ValidationIssue{
				Path:    "bedrock.knowledge_base.chunking_strategy.fixed_size_chunking_configuration.overlapPercentage",
				Message: fmt.Sprintf("must be 0-99, got %d", chunking.FixedSize.OverlapPercentage),
			})
		}
	}

	// S3 validation
	if cfg.S3.DataBucket.Name == "" {
		issues = append(issues, ValidationIssue{
			Path:    "s3.data_bucket.name",
			Message: "bucket name is required",
		})
	}
	for _, p := range []struct{ path, val string }{
		{"s3.data_bucket.data_structure.source_prefix", cfg.S3.DataBucket.DataStructure.SourcePrefix},
		{"s3.data_bucket.data_structure.base_prefix", cfg.S3.DataBucket.DataStructure.BasePrefix},
	} {
		if p.val != "" && strings.HasPrefix(p.val, "/") {
			issues = append(issues, ValidationIssue{
				Path:    p.path,
				Message: "prefix must not start with /",
			})
		}
	}

	// Lambda validation
	for key, fn := range cfg.LambdaFunctions {
		base := "lambda_functions." + key
		if fn.FunctionName == "" {
			issues = append(issues, ValidationIssue{
				Path:    base + ".function_name",
				Message: "function_name is required",
			})
		}
		if fn.Timeout < 0 || fn.Timeout > 900 {
			issues = append(issues, ValidationIssue{
				Path:    base + ".timeout",
				Message: fmt.Sprintf("timeout must be 0-900 seconds, got %d", fn.Timeout),
			})
		}
		if fn.MemorySize != 0 && (fn.MemorySize < 128 || fn.MemorySize > 10240) {
			issues = append(issues, ValidationIssue{
				Path:    base + ".memory_size",
				Message: fmt.Sprintf("memory_size must be 128-10240 MB, got %d", fn.MemorySize),
			})
		}
		if fn.FunctionURL != nil {
			validAuth := []string{"NONE", "AWS_IAM"}
			if fn.FunctionURL.AuthType != "" && !slices.Contains(validAuth, fn.FunctionURL.AuthType) {
				issues = append(issues, ValidationIssue{
					Path:    base + ".function_url.auth_type",
					Message: fmt.Sprintf("must be one of %v, got %q", validAuth, fn.FunctionURL.AuthType),
				})
			}
		}
	}

	// Console validation
	if cfg.Console.Port < 0 || cfg.Console.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "console.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Console.Port),
		})
	}
	validBinds := []string{"loopback", "lan", "custom"}
	if cfg.Console.Bind != "" && !slices.Contains(validBinds, cfg.Console.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "console.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Console.Bind),
		})
	}
	if cfg.Console.Bind == "custom" && cfg.Console.Host == "" {
		issues = append(issues, ValidationIssue{
			Path:    "console.host",
			Message: "host is required when bind: custom",
		})
	}

	// Logging validation
	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	return issues
}
