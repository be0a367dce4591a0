package config

import "strings"

// Config is the root configuration for maintkit: the resource registry for
// the maintenance assistant stack, stored as JSON and rewritten in place as
// provisioning commands create resources.
type Config struct {
	Region          string                          `json:"region,omitempty"`
	ProjectName     string                          `json:"project_name,omitempty"`
	Bedrock         BedrockConfig                   `json:"bedrock,omitempty"`
	S3              S3Config                        `json:"s3,omitempty"`
	IAM             IAMConfig                       `json:"iam,omitempty"`
	LambdaFunctions map[string]LambdaFunctionConfig `json:"lambda_functions,omitempty"`
	SessionTable    string                          `json:"session_table,omitempty"`
	Console         ConsoleConfig                   `json:"console,omitempty"`
	Logging         LoggingConfig                   `json:"logging,omitempty"`
}

// BedrockConfig groups the managed Bedrock resources.
type BedrockConfig struct {
	Agent         AgentConfig         `json:"agent,omitempty"`
	KnowledgeBase KnowledgeBaseConfig `json:"knowledge_base,omitempty"`
}

// AgentConfig describes the Bedrock Agent. ID and AliasID are written back
// after the agent and its alias are created.
type AgentConfig struct {
	Name            string `json:"name,omitempty"`
	Description     string `json:"description,omitempty"`
	FoundationModel string `json:"foundation_model,omitempty"`
	ID              string `json:"id,omitempty"`
	AliasID         string `json:"alias_id,omitempty"`
	RoleARN         string `json:"role_arn,omitempty"`
}

// KnowledgeBaseConfig describes the vector knowledge base. FoundationModel
// here is the embedding model, matching the registry's historical key name.
type KnowledgeBaseConfig struct {
	Name             string         `json:"name,omitempty"`
	Description      string         `json:"description,omitempty"`
	FoundationModel  string         `json:"foundation_model,omitempty"`
	ChunkingStrategy ChunkingConfig `json:"chunking_strategy,omitempty"`
	ID               string         `json:"id,omitempty"`
	DataSourceID     string         `json:"data_source_id,omitempty"`
	CollectionARN    string         `json:"collection_arn,omitempty"`
	RoleARN          string         `json:"role_arn,omitempty"`
}

// ChunkingConfig controls how documents are split during ingestion.
type ChunkingConfig struct {
	Strategy  string            `json:"chunking_strategy,omitempty"` // "FIXED_SIZE" | "NONE"
	FixedSize FixedSizeChunking `json:"fixed_size_chunking_configuration,omitempty"`
}

// FixedSizeChunking holds fixed-size chunking parameters. Field names match
// the Bedrock API payload.
type FixedSizeChunking struct {
	MaxTokens         int32 `json:"maxTokens,omitempty"`
	OverlapPercentage int32 `json:"overlapPercentage,omitempty"`
}

// S3Config groups S3 settings.
type S3Config struct {
	DataBucket DataBucketConfig `json:"data_bucket,omitempty"`
}

// DataBucketConfig describes the fault-data bucket and its prefixes.
type DataBucketConfig struct {
	Name          string              `json:"name,omitempty"`
	DataStructure DataStructureConfig `json:"data_structure,omitempty"`
}

// DataStructureConfig names the prefixes inside the data bucket.
// SourcePrefix holds the raw fault-prediction JSON; BasePrefix holds the
// rendered text reports the knowledge base ingests.
type DataStructureConfig struct {
	SourcePrefix string `json:"source_prefix,omitempty"`
	BasePrefix   string `json:"base_prefix,omitempty"`
}

// IAMConfig names the service roles the stack uses.
type IAMConfig struct {
	BedrockAgentRole    string `json:"bedrock_agent_role,omitempty"`
	KnowledgeBaseRole   string `json:"knowledge_base_role,omitempty"`
	LambdaExecutionRole string `json:"lambda_execution_role,omitempty"`
	LambdaRoleARN       string `json:"lambda_role_arn,omitempty"`
}

// LambdaFunctionConfig describes one deployable Lambda function.
type LambdaFunctionConfig struct {
	FunctionName         string             `json:"function_name,omitempty"`
	Description          string             `json:"description,omitempty"`
	Runtime              string             `json:"runtime,omitempty"` // "provided.al2023"
	Handler              string             `json:"handler,omitempty"` // "bootstrap" for custom runtimes
	Timeout              int32              `json:"timeout,omitempty"`
	MemorySize           int32              `json:"memory_size,omitempty"`
	EnvironmentVariables map[string]string  `json:"environment_variables,omitempty"`
	FunctionURL          *FunctionURLConfig `json:"function_url,omitempty"`
	URL                  string             `json:"url,omitempty"` // written back after deploy
}

// FunctionURLConfig describes a Lambda Function URL.
type FunctionURLConfig struct {
	AuthType string     `json:"auth_type,omitempty"` // "NONE" | "AWS_IAM"
	CORS     CORSConfig `json:"cors,omitempty"`
}

// CORSConfig mirrors the Function URL CORS settings.
type CORSConfig struct {
	AllowCredentials bool     `json:"allow_credentials,omitempty"`
	AllowHeaders     []string `json:"allow_headers,omitempty"`
	AllowMethods     []string `json:"allow_methods,omitempty"`
	AllowOrigins     []string `json:"allow_origins,omitempty"`
	MaxAge           int32    `json:"max_age,omitempty"`
}

// ConsoleConfig controls the local operator console.
type ConsoleConfig struct {
	Port int    `json:"port,omitempty"`
	Bind string `json:"bind,omitempty"` // "loopback" | "lan" | "custom"
	Host string `json:"host,omitempty"` // used when bind: custom
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `json:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
}

// Function keys in LambdaFunctions, matching the registry's historical names.
const (
	FnQueryHandler   = "query_handler"
	FnDataSync       = "data_sync"
	FnHealthCheck    = "health_check"
	FnSessionManager = "session_manager"
)

// Function returns the config for one Lambda function by key.
func (c *Config) Function(key string) (LambdaFunctionConfig, bool) {
	fn, ok := c.LambdaFunctions[key]
	return fn, ok
}

// SetFunctionEnv sets an environment variable on the named functions,
// creating maps as needed. Unknown keys are ignored.
func (c *Config) SetFunctionEnv(name, value string, keys ...string) {
	for _, key := range keys {
		fn, ok := c.LambdaFunctions[key]
		if !ok {
			continue
		}
		if fn.EnvironmentVariables == nil {
			fn.EnvironmentVariables = map[string]string{}
		}
		fn.EnvironmentVariables[name] = value
		c.LambdaFunctions[key] = fn
	}
}

// PropagateResourceIDs mirrors the registry's resource IDs into the Lambda
// environment variable maps consumed by the deployed handlers.
func (c *Config) PropagateResourceIDs() {
	agent := c.Bedrock.Agent
	kb := c.Bedrock.KnowledgeBase
	bucket := c.S3.DataBucket

	if agent.ID != "" {
		c.SetFunctionEnv("BEDROCK_AGENT_ID", agent.ID, FnQueryHandler, FnHealthCheck)
	}
	if agent.AliasID != "" {
		c.SetFunctionEnv("BEDROCK_AGENT_ALIAS_ID", agent.AliasID, FnQueryHandler, FnHealthCheck)
	}
	if kb.ID != "" {
		c.SetFunctionEnv("KNOWLEDGE_BASE_ID", kb.ID, FnDataSync, FnHealthCheck)
	}
	if kb.DataSourceID != "" {
		c.SetFunctionEnv("DATA_SOURCE_ID", kb.DataSourceID, FnDataSync)
	}
	if bucket.Name != "" {
		c.SetFunctionEnv("S3_BUCKET", bucket.Name, FnDataSync, FnHealthCheck)
		c.SetFunctionEnv("S3_SOURCE_PREFIX", bucket.DataStructure.SourcePrefix, FnDataSync, FnHealthCheck)
	}
	if c.SessionTable != "" {
		c.SetFunctionEnv("SESSION_TABLE", c.SessionTable, FnSessionManager)
	}
	if fn, ok := c.LambdaFunctions[FnQueryHandler]; ok && fn.FunctionURL != nil {
		if origins := fn.FunctionURL.CORS.AllowOrigins; len(origins) > 0 {
			c.SetFunctionEnv("ALLOWED_ORIGINS", strings.Join(origins, ","), FnQueryHandler)
		}
	}
}
