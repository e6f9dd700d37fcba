package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Keys      APIKeys
	Ai        AIConfig
	Vector    VectorConfig
	Rag       RagConfig
	Cache     CacheConfig
	Messaging MessagingConfig
	Ingest    IngestConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	BodyLimit          int
}

type DatabaseConfig struct {
	Connection  string
	AutoMigrate bool
}

type APIKeys struct {
	OpenAI         string
	GoogleGemini   string
	Jina           string
	HuggingFace    string
	Qdrant         string
	AdminJWTSecret string
}

type AIConfig struct {
	EmbeddingProvider  string // "openai", "ollama", "gemini" or "jina"
	EmbeddingModel     string
	EmbeddingDimension int // 0 means the provider default
	OllamaBaseURL      string
	LLMProvider        string // "openai", "ollama" or "huggingface"
	LLMModel           string
	LLMBaseURL         string
	Temperature        float64
	MaxTokens          int
}

type VectorConfig struct {
	Backend    string // "qdrant", "pgvector" or "memory"
	QdrantURL  string
	Collection string
}

type RagConfig struct {
	TopK            int
	SelectionTopK   int
	Threshold       float64
	HistoryLimit    int
	OutOfScopeDelay time.Duration
	ChaptersFile    string
	DocsDir         string
	CleanupAfter    time.Duration
}

type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

type MessagingConfig struct {
	NatsURL string
}

type IngestConfig struct {
	EmbedBatchSize    int
	RequestsPerSecond float64
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (c *Config) AllowedOrigins() []string {
	return getList(c.App.CorsAllowedOrigins)
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000"),
			BodyLimit:          getEnvAsInt("APP_BODY_LIMIT", 1*1024*1024),
		},
		Database: DatabaseConfig{
			Connection:  getEnv("DB_CONNECTION_STRING", ""),
			AutoMigrate: getEnvAsBool("DB_AUTO_MIGRATE", true),
		},
		Keys: APIKeys{
			OpenAI:         getEnv("OPENAI_API_KEY", ""),
			GoogleGemini:   getEnv("GOOGLE_GEMINI_API_KEY", ""),
			Jina:           getEnv("JINA_API_KEY", ""),
			HuggingFace:    getEnv("HUGGINGFACE_API_KEY", ""),
			Qdrant:         getEnv("QDRANT_API_KEY", ""),
			AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "openai"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", ""),
			EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 0),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
			LLMModel:           getEnv("LLM_MODEL", "gpt-4o-mini"),
			LLMBaseURL:         getEnv("LLM_BASE_URL", ""),
			Temperature:        getEnvAsFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:          getEnvAsInt("LLM_MAX_TOKENS", 1024),
		},
		Vector: VectorConfig{
			Backend:    getEnv("VECTOR_BACKEND", "qdrant"),
			QdrantURL:  getEnv("QDRANT_URL", "http://localhost:6333"),
			Collection: getEnv("QDRANT_COLLECTION", "textbook_chunks"),
		},
		Rag: RagConfig{
			TopK:            getEnvAsInt("RAG_TOP_K", 3),
			SelectionTopK:   getEnvAsInt("RAG_SELECTION_TOP_K", 2),
			Threshold:       getEnvAsFloat("RAG_SIMILARITY_THRESHOLD", 0.3),
			HistoryLimit:    getEnvAsInt("RAG_HISTORY_LIMIT", 10),
			OutOfScopeDelay: time.Duration(getEnvAsInt("RAG_OUT_OF_SCOPE_DELAY_MS", 20)) * time.Millisecond,
			ChaptersFile:    getEnv("CHAPTERS_FILE", ""),
			DocsDir:         getEnv("DOCS_DIR", "docs"),
			CleanupAfter:    time.Duration(getEnvAsInt("CONVERSATION_RETENTION_DAYS", 7)) * 24 * time.Hour,
		},
		Cache: CacheConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      time.Duration(getEnvAsInt("HISTORY_CACHE_TTL_SECONDS", 600)) * time.Second,
		},
		Messaging: MessagingConfig{
			NatsURL: getEnv("NATS_URL", ""),
		},
		Ingest: IngestConfig{
			EmbedBatchSize:    getEnvAsInt("INGEST_EMBED_BATCH_SIZE", 20),
			RequestsPerSecond: getEnvAsFloat("INGEST_REQUESTS_PER_SECOND", 2),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "textbook-rag-be"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
