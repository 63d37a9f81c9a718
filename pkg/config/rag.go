package config

// RetrievalConfig groups the chunking and vector index settings.
type RetrievalConfig struct {
	Backend        string `validate:"oneof=pgvector memory"`
	CollectionName string `validate:"required"`
	ChunkSize      int    `validate:"gt=0,gtfield=ChunkOverlap"`
	ChunkOverlap   int    `validate:"gte=0"`
	TopK           int    `validate:"gt=0"`
}

// LoadRetrievalConfig reads the retrieval settings from the environment.
func LoadRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		Backend:        getEnv("VECTOR_BACKEND", "pgvector"),
		CollectionName: getEnv("COLLECTION_NAME", "research_agent_collection"),
		ChunkSize:      getEnvAsInt("CHUNK_SIZE", 500),
		ChunkOverlap:   getEnvAsInt("CHUNK_OVERLAP", 100),
		TopK:           getEnvAsInt("RETRIEVAL_K", 4),
	}
}
