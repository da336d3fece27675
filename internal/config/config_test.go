package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.False(t, cfg.Debug)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
	assert.Equal(t, 2000, cfg.ChunkMaxChars)
	assert.Equal(t, 32, cfg.EmbedBatchSize)
	assert.Equal(t, 4, cfg.EmbedParallelism)
	assert.Equal(t, 5, cfg.RetrievalTopK)
	assert.InDelta(t, 0.2, cfg.RetrievalMinScore, 1e-9)
	assert.Equal(t, 30*time.Second, cfg.SessionGracePeriod)
	assert.Equal(t, 64, cfg.StreamBufferSize)
	assert.Equal(t, int64(10485760), cfg.MaxUploadBytes)
	assert.Equal(t, "specchat-specs", cfg.S3Bucket)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SPECCHAT_PORT", "9090")
	t.Setenv("SPECCHAT_DATABASE_URL", "postgres://localhost/specchat")
	t.Setenv("SPECCHAT_OPENAI_API_KEY", "sk-test")
	t.Setenv("SPECCHAT_SESSION_GRACE_PERIOD", "45s")
	t.Setenv("SPECCHAT_RETRIEVAL_TOP_K", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres://localhost/specchat", cfg.DatabaseURL)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, 45*time.Second, cfg.SessionGracePeriod)
	assert.Equal(t, 8, cfg.RetrievalTopK)
}

func TestFeatureChecks(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.HasDatabase())
	assert.False(t, cfg.HasS3())
	assert.False(t, cfg.HasOpenAI())

	cfg.DatabaseURL = "postgres://localhost/specchat"
	assert.True(t, cfg.HasDatabase())

	cfg.OpenAIAPIKey = "sk-test"
	assert.True(t, cfg.HasOpenAI())

	cfg.S3Endpoint = "http://localhost:9000"
	assert.False(t, cfg.HasS3())
	cfg.S3AccessKey = "minioadmin"
	cfg.S3SecretKey = "minioadmin"
	assert.True(t, cfg.HasS3())
}
