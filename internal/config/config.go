package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	ChatModel           string `envconfig:"CHAT_MODEL"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"specchat-specs"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Chunking
	ChunkMaxChars int `envconfig:"CHUNK_MAX_CHARS" default:"2000"`

	// Ingestion pipeline
	EmbedBatchSize   int `envconfig:"EMBED_BATCH_SIZE" default:"32"`
	EmbedParallelism int `envconfig:"EMBED_PARALLELISM" default:"4"`

	// Retrieval
	RetrievalTopK     int     `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	RetrievalMinScore float64 `envconfig:"RETRIEVAL_MIN_SCORE" default:"0.2"`

	// Chat streaming
	SessionGracePeriod time.Duration `envconfig:"SESSION_GRACE_PERIOD" default:"30s"`
	StreamBufferSize   int           `envconfig:"STREAM_BUFFER_SIZE" default:"64"`

	MaxUploadBytes int64 `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("SPECCHAT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
