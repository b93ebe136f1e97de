package catalog

// Profile names known to the stack.
const (
	ProfileCPU       = "cpu"
	ProfileGPUNvidia = "gpu-nvidia"
	ProfileGPUAMD    = "gpu-amd"
	ProfileNone      = "none"
)

// Environment names known to the stack.
const (
	EnvironmentPrivate = "private"
	EnvironmentPublic  = "public"
)

// BuiltinProfiles returns the hardware profiles shipped with the stack.
func BuiltinProfiles() []Profile {
	return []Profile{
		{Name: ProfileCPU, Description: "Run models on the CPU", Default: true},
		{Name: ProfileGPUNvidia, Description: "Run models on NVIDIA GPUs"},
		{Name: ProfileGPUAMD, Description: "Run models on AMD GPUs (ROCm)"},
		{Name: ProfileNone, Description: "Do not start a local model runtime profile"},
	}
}

// BuiltinEnvironments returns the exposure modes shipped with the stack.
func BuiltinEnvironments() []Environment {
	return []Environment{
		{Name: EnvironmentPrivate, Description: "Publish service ports on localhost only", Default: true},
		{Name: EnvironmentPublic, Description: "Expose services only through the reverse proxy"},
	}
}

// BuiltinServices returns the service definitions of the local AI stack.
func BuiltinServices() []ServiceDefinition {
	return []ServiceDefinition{
		{
			ID:          "caddy",
			Category:    CategoryInfrastructure,
			Description: "Reverse proxy with automatic HTTPS",
			Required:    true,
		},
		{
			ID:          "redis",
			Category:    CategoryInfrastructure,
			Description: "In-memory key/value cache (Valkey)",
		},
		{
			ID:           "n8n",
			Category:     CategoryAIPlatform,
			Description:  "Workflow automation platform",
			Dependencies: []string{"postgres"},
		},
		{
			ID:           "n8n-import",
			Category:     CategoryAIPlatform,
			Description:  "One-shot import of bundled n8n workflows and credentials",
			Dependencies: []string{"n8n", "postgres"},
		},
		{
			ID:           "open-webui",
			Category:     CategoryAIPlatform,
			Description:  "Chat interface for local models",
			Dependencies: []string{"ollama"},
		},
		{
			ID:          "flowise",
			Category:    CategoryAIPlatform,
			Description: "Low-code LLM flow builder",
		},
		{
			ID:          "ollama",
			Category:    CategoryLLM,
			Description: "Local LLM runtime",
			ProfileVariants: map[string]string{
				ProfileCPU:       "ollama-cpu",
				ProfileGPUNvidia: "ollama-gpu",
				ProfileGPUAMD:    "ollama-gpu-amd",
			},
			PullVariants: map[string]string{
				ProfileCPU:       "ollama-pull-llama-cpu",
				ProfileGPUNvidia: "ollama-pull-llama-gpu",
				ProfileGPUAMD:    "ollama-pull-llama-gpu-amd",
			},
		},
		{
			ID:          "postgres",
			Category:    CategoryDatabase,
			Description: "PostgreSQL relational database",
		},
		{
			ID:          "supabase",
			Category:    CategoryDatabase,
			Description: "Supabase backend (Postgres, auth, storage, REST)",
			External:    &ExternalDeployment{ComposeFile: "supabase/docker/docker-compose.yml"},
		},
		{
			ID:          "qdrant",
			Category:    CategoryDatabase,
			Description: "Vector database",
		},
		{
			ID:          "neo4j",
			Category:    CategoryDatabase,
			Description: "Graph database",
		},
		{
			ID:          "clickhouse",
			Category:    CategoryDatabase,
			Description: "Columnar analytics database",
		},
		{
			ID:          "minio",
			Category:    CategoryDatabase,
			Description: "S3 compatible object storage",
		},
		{
			ID:           "langfuse-worker",
			Category:     CategoryMonitoring,
			Description:  "Langfuse ingestion worker",
			Dependencies: []string{"postgres", "clickhouse", "minio", "redis"},
		},
		{
			ID:           "langfuse-web",
			Category:     CategoryMonitoring,
			Description:  "Langfuse LLM observability UI",
			Dependencies: []string{"langfuse-worker", "postgres", "clickhouse", "minio", "redis"},
		},
		{
			ID:           "searxng",
			Category:     CategoryUtility,
			Description:  "Private metasearch engine",
			Dependencies: []string{"redis"},
		},
	}
}

// Default returns the validated built-in catalog.
// It panics if the built-in definitions are inconsistent, which is a build defect.
func Default() *Catalog {
	c, err := New(BuiltinServices(), BuiltinProfiles(), BuiltinEnvironments())
	if err != nil {
		panic(err)
	}
	return c
}
