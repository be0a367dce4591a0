package config

import "fmt"

// DefaultPath is where provisioning commands look for the resource registry
// unless --config overrides it.
const DefaultPath = "config/aws_config.json"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Region:      "us-west-2",
		ProjectName: "maintenance-assistant",
		Bedrock: BedrockConfig{
			Agent: AgentConfig{
				Name:            "maintenance-expert",
				Description:     "Maintenance expert agent for equipment fault analysis",
				FoundationModel: "anthropic.claude-3-sonnet-20240229-v1:0",
			},
			KnowledgeBase: KnowledgeBaseConfig{
				Name:            "maintenance-fault-kb",
				Description:     "Historical equipment fault prediction data",
				FoundationModel: "amazon.titan-embed-text-v1",
				ChunkingStrategy: ChunkingConfig{
					Strategy: "FIXED_SIZE",
					FixedSize: FixedSizeChunking{
						MaxTokens:         300,
						OverlapPercentage: 20,
					},
				},
			},
		},
		S3: S3Config{
			DataBucket: DataBucketConfig{
				Name: "relu-quicksight",
				DataStructure: DataStructureConfig{
					SourcePrefix: "bedrock-recommendations/analytics/",
					BasePrefix:   "knowledge-base-data/",
				},
			},
		},
		IAM: IAMConfig{
			BedrockAgentRole:    "bedrock-agent-maintenance-role",
			KnowledgeBaseRole:   "bedrock-kb-maintenance-role",
			LambdaExecutionRole: "bedrock-agent-lambda-role",
		},
		LambdaFunctions: map[string]LambdaFunctionConfig{
			FnQueryHandler: {
				FunctionName: "bedrock-agent-query-handler",
				Description:  "Handles maintenance queries via the Bedrock Agent",
				Runtime:      "provided.al2023",
				Handler:      "bootstrap",
				Timeout:      60,
				MemorySize:   256,
				FunctionURL: &FunctionURLConfig{
					AuthType: "NONE",
					CORS: CORSConfig{
						AllowHeaders: []string{"Content-Type", "Authorization", "X-Amz-Date", "X-Api-Key"},
						AllowMethods: []string{"POST", "OPTIONS"},
						AllowOrigins: []string{"https://localhost:8501", "https://*.streamlit.app", "https://*.herokuapp.com"},
						MaxAge:       300,
					},
				},
			},
			FnDataSync: {
				FunctionName: "bedrock-agent-data-sync",
				Description:  "Validates fault data and triggers knowledge base ingestion",
				Runtime:      "provided.al2023",
				Handler:      "bootstrap",
				Timeout:      300,
				MemorySize:   256,
			},
			FnHealthCheck: {
				FunctionName: "bedrock-agent-health-check",
				Description:  "Reports health of the agent, knowledge base, and data access",
				Runtime:      "provided.al2023",
				Handler:      "bootstrap",
				Timeout:      30,
				MemorySize:   128,
				FunctionURL: &FunctionURLConfig{
					AuthType: "NONE",
					CORS: CORSConfig{
						AllowHeaders: []string{"Content-Type"},
						AllowMethods: []string{"GET", "OPTIONS"},
						AllowOrigins: []string{"*"},
						MaxAge:       300,
					},
				},
			},
			FnSessionManager: {
				FunctionName: "bedrock-agent-session-manager",
				Description:  "Creates and tracks chat sessions",
				Runtime:      "provided.al2023",
				Handler:      "bootstrap",
				Timeout:      30,
				MemorySize:   128,
				FunctionURL: &FunctionURLConfig{
					AuthType: "NONE",
					CORS: CORSConfig{
						AllowHeaders: []string{"Content-Type"},
						AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
						AllowOrigins: []string{"*"},
						MaxAge:       300,
					},
				},
			},
		},
		SessionTable: "bedrock-agent-sessions",
		Console: ConsoleConfig{
			Port: 8501,
			Bind: "loopback",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
