package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandEnvRefs processes environment variable references in fields whose
// values commonly come from the deployment environment, so the registry can
// store ${ENV_VAR} instead of literal names.
func expandEnvRefs(cfg *Config) {
	cfg.S3.DataBucket.Name = expandEnvVars(cfg.S3.DataBucket.Name)
	cfg.SessionTable = expandEnvVars(cfg.SessionTable)
	for key, fn := range cfg.LambdaFunctions {
		for name, val := range fn.EnvironmentVariables {
			fn.EnvironmentVariables[name] = expandEnvVars(val)
		}
		cfg.LambdaFunctions[key] = fn
	}
}

// Load reads the registry file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(&cfg)
			return cfg, nil
		}
		return cfg, err
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	expandEnvRefs(&cfg)
	return cfg, nil
}

// Save writes the registry back to disk. Provisioning commands call this
// after creating resources so later commands see the new IDs.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return writeRegistry(path, data)
}

// LoadRaw reads the registry file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to the JSON registry file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	return writeRegistry(path, data)
}

// writeRegistry creates the registry's directory on first save.
func writeRegistry(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// applyDefaults fills zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	def := Defaults()

	if cfg.Region == "" {
		cfg.Region = def.Region
	}
	if cfg.ProjectName == "" {
		cfg.ProjectName = def.ProjectName
	}
	if cfg.Bedrock.Agent.Name == "" {
		cfg.Bedrock.Agent.Name = def.Bedrock.Agent.Name
	}
	if cfg.Bedrock.Agent.FoundationModel == "" {
		cfg.Bedrock.Agent.FoundationModel = def.Bedrock.Agent.FoundationModel
	}
	if cfg.Bedrock.KnowledgeBase.Name == "" {
		cfg.Bedrock.KnowledgeBase.Name = def.Bedrock.KnowledgeBase.Name
	}
	if cfg.Bedrock.KnowledgeBase.FoundationModel == "" {
		cfg.Bedrock.KnowledgeBase.FoundationModel = def.Bedrock.KnowledgeBase.FoundationModel
	}
	if cfg.Bedrock.KnowledgeBase.ChunkingStrategy.Strategy == "" {
		cfg.Bedrock.KnowledgeBase.ChunkingStrategy = def.Bedrock.KnowledgeBase.ChunkingStrategy
	}
	if cfg.S3.DataBucket.Name == "" {
		cfg.S3.DataBucket.Name = def.S3.DataBucket.Name
	}
	if cfg.S3.DataBucket.DataStructure.SourcePrefix == "" {
		cfg.S3.DataBucket.DataStructure.SourcePrefix = def.S3.DataBucket.DataStructure.SourcePrefix
	}
	if cfg.S3.DataBucket.DataStructure.BasePrefix == "" {
		cfg.S3.DataBucket.DataStructure.BasePrefix = def.S3.DataBucket.DataStructure.BasePrefix
	}
	if cfg.IAM.BedrockAgentRole == "" {
		cfg.IAM.BedrockAgentRole = def.IAM.BedrockAgentRole
	}
	if cfg.IAM.KnowledgeBaseRole == "" {
		cfg.IAM.KnowledgeBaseRole = def.IAM.KnowledgeBaseRole
	}
	if cfg.IAM.LambdaExecutionRole == "" {
		cfg.IAM.LambdaExecutionRole = def.IAM.LambdaExecutionRole
	}
	if cfg.LambdaFunctions == nil {
		cfg.LambdaFunctions = def.LambdaFunctions
	}
	if cfg.Console.Port == 0 {
		cfg.Console.Port = def.Console.Port
	}
	if cfg.Console.Bind == "" {
		cfg.Console.Bind = def.Console.Bind
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
}

// applyEnvOverrides reads MAINTKIT_* environment variables and overrides config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAINTKIT_REGION"); v != "" {
		cfg.Region = v
	}
	if v := os.Getenv("MAINTKIT_PROJECT"); v != "" {
		cfg.ProjectName = v
	}
	if v := os.Getenv("MAINTKIT_CONSOLE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Console.Port = port
		}
	}
	if v := os.Getenv("MAINTKIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
}
