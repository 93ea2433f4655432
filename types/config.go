package types

import (
	"os"
	"strconv"
)

// Defaults mirror the chunk geometry and retrieval depth the service
// was tuned with. MaxDistance is the cosine-distance cutoff past which
// a neighbour is considered noise and dropped from the context.
const (
	DefaultChunkSize       = 1000
	DefaultChunkOverlap    = 200
	DefaultTopK            = 3
	DefaultMaxDistance     = 0.8
	DefaultMaxPromptTokens = 4096
)

type Config struct {
	ServerAddr string

	SourceDir string

	VectorBackend string // postgres | qdrant | memory
	Collection    string

	ChunkSize    int
	ChunkOverlap int

	TopK            int
	MaxDistance     float64
	MaxPromptTokens int

	OllamaURL  string
	EmbedModel string
	ChatModel  string
	EmbedDim   int

	PGHost   string
	PGPort   int
	PGUser   string
	PGPass   string
	PGDBName string

	QdrantHost string
	QdrantPort int
}

// ConfigFromEnv builds the process configuration from environment
// variables, falling back to defaults for anything unset. It is called
// once in app/cmd; nothing else reads the environment.
func ConfigFromEnv() Config {
	return Config{
		ServerAddr:      envStr("SERVER_ADDR", ":3000"),
		SourceDir:       envStr("SOURCE_DIR", "./data/files"),
		VectorBackend:   envStr("VECTOR_BACKEND", "postgres"),
		Collection:      envStr("COLLECTION_NAME", "ask_my_docs"),
		ChunkSize:       envInt("CHUNK_SIZE", DefaultChunkSize),
		ChunkOverlap:    envInt("CHUNK_OVERLAP", DefaultChunkOverlap),
		TopK:            envInt("TOP_K", DefaultTopK),
		MaxDistance:     envFloat("MAX_DISTANCE", DefaultMaxDistance),
		MaxPromptTokens: envInt("MAX_PROMPT_TOKENS", DefaultMaxPromptTokens),
		OllamaURL:       envStr("OLLAMA_URL", "http://localhost:11434"),
		EmbedModel:      envStr("EMBED_MODEL", "nomic-embed-text"),
		ChatModel:       envStr("CHAT_MODEL", "llama3.1"),
		EmbedDim:        envInt("EMBED_DIM", 768),
		PGHost:          envStr("PG_HOST", "localhost"),
		PGPort:          envInt("PG_PORT", 5432),
		PGUser:          envStr("PG_USER", "postgres"),
		PGPass:          envStr("PG_PASS", ""),
		PGDBName:        envStr("PG_DB_NAME", "askmydocs"),
		QdrantHost:      envStr("QDRANT_HOST", "localhost"),
		QdrantPort:      envInt("QDRANT_PORT", 6334),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
