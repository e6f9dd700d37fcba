package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RAG_SIMILARITY_THRESHOLD", "")
	t.Setenv("RAG_TOP_K", "")

	cfg := Load()

	assert.Equal(t, 3, cfg.Rag.TopK)
	assert.Equal(t, 2, cfg.Rag.SelectionTopK)
	assert.InDelta(t, 0.3, cfg.Rag.Threshold, 1e-9)
	assert.Equal(t, 10, cfg.Rag.HistoryLimit)
	assert.Equal(t, 20*time.Millisecond, cfg.Rag.OutOfScopeDelay)
	assert.Equal(t, "textbook_chunks", cfg.Vector.Collection)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RAG_SIMILARITY_THRESHOLD", "0.45")
	t.Setenv("RAG_TOP_K", "5")
	t.Setenv("DB_AUTO_MIGRATE", "false")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()

	assert.InDelta(t, 0.45, cfg.Rag.Threshold, 1e-9)
	assert.Equal(t, 5, cfg.Rag.TopK)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}

func TestInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("LLM_MAX_TOKENS", "lots")
	t.Setenv("LLM_TEMPERATURE", "warm")

	cfg := Load()

	assert.Equal(t, 1024, cfg.Ai.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Ai.Temperature, 1e-9)
}
