package admin

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/specwise/specchat/internal/api/handlers"
	"github.com/specwise/specchat/internal/chat"
	"github.com/specwise/specchat/internal/chunker"
	"github.com/specwise/specchat/internal/config"
	"github.com/specwise/specchat/internal/database"
	"github.com/specwise/specchat/internal/domain"
	"github.com/specwise/specchat/internal/index"
	"github.com/specwise/specchat/internal/openai"
	"github.com/specwise/specchat/internal/repository"
	"github.com/specwise/specchat/internal/server"
	"github.com/specwise/specchat/internal/service"
	"github.com/specwise/specchat/internal/storage"
	"github.com/specwise/specchat/internal/telemetry"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the specchat API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().Bool("in-memory", false, "Use the in-memory vector index instead of Postgres")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	if !cfg.HasOpenAI() {
		return fmt.Errorf("SPECCHAT_OPENAI_API_KEY is required")
	}

	embedder := openai.NewClientWithConfig(openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		ChatModel:           cfg.ChatModel,
		EmbeddingDimensions: cfg.EmbeddingDimensions,
	})

	inMemory, _ := cmd.Flags().GetBool("in-memory")
	if !inMemory && !cfg.HasDatabase() {
		return fmt.Errorf("SPECCHAT_DATABASE_URL is required (or pass --in-memory)")
	}

	var (
		vectorIndex service.VectorIndex
		specRepo    service.SpecRepositoryInterface
		txRunner    service.TxRunner
	)
	if inMemory {
		vectorIndex = index.NewMemory()
		specRepo = index.NewMemorySpecs()
		log.Println("using in-memory vector index (data is not persisted)")
	} else {
		pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()
		log.Println("connected to database")

		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			if err := runMigrations(cfg.DatabaseURL); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}
		}

		vectorIndex = repository.NewChunkRepository(pool)
		specRepo = repository.NewSpecRepository(pool)
		txRunner = repository.NewTxRunner(pool)
	}

	var specStore service.SpecStore
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		specStore = s3Client
	} else if inMemory {
		specStore = storage.NewMemoryStore()
	}

	ck := chunker.New(chunker.Config{MaxChars: cfg.ChunkMaxChars})

	pipelineCfg := service.DefaultPipelineConfig()
	pipelineCfg.BatchSize = cfg.EmbedBatchSize
	pipelineCfg.Parallelism = cfg.EmbedParallelism

	ingestSvc := service.NewIngestService(ck, embedder, vectorIndex, specRepo, txRunner, specStore, pipelineCfg)

	retrievalCfg := service.DefaultRetrievalConfig()
	retrievalCfg.TopK = cfg.RetrievalTopK
	retrievalCfg.MinScore = float32(cfg.RetrievalMinScore)
	retrievalSvc := service.NewRetrievalService(embedder, vectorIndex, retrievalCfg)

	registry := chat.NewRegistry(func(conversationID, specID string) *chat.Session {
		sessionCfg := chat.Config{
			SpecID:      specID,
			TopK:        cfg.RetrievalTopK,
			GracePeriod: cfg.SessionGracePeriod,
			BufferSize:  cfg.StreamBufferSize,
		}
		return chat.NewSession(conversationID, sessionCfg, retrievalSvc, chatGenerator{embedder})
	}, time.Minute)
	registry.Start(ctx)
	defer registry.Stop()

	router := server.NewRouter(server.RouterConfig{
		SpecHandler:   handlers.NewSpecHandler(ingestSvc),
		SearchHandler: handlers.NewSearchHandler(retrievalSvc),
		ChatHandler:   handlers.NewChatHandler(registry),
		MaxBodyBytes:  cfg.MaxUploadBytes,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// chatGenerator adapts the OpenAI client's concrete stream type to the chat
// session's stream interface.
type chatGenerator struct {
	client *openai.Client
}

func (g chatGenerator) StreamChat(ctx context.Context, messages []domain.ChatMessage) (chat.TokenStream, error) {
	stream, err := g.client.StreamChat(ctx, messages)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func runMigrations(databaseURL string) error {
	// Create a sql.DB connection for golang-migrate
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	// Create postgres driver instance
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// Create migrate instance with file source
	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	// Run migrations
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Get migration version and status
	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if err == migrate.ErrNilVersion {
		log.Println("migrations: database is up to date (no migrations applied)")
	} else if dirty {
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	} else if err == migrate.ErrNoChange {
		log.Printf("migrations: database is up to date (version %d)", version)
	} else {
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
