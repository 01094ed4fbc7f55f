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
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/mnemo-ai/mnemo/internal/agent"
	"github.com/mnemo-ai/mnemo/internal/api/handlers"
	"github.com/mnemo-ai/mnemo/internal/config"
	"github.com/mnemo-ai/mnemo/internal/jobs"
	"github.com/mnemo-ai/mnemo/internal/openai"
	"github.com/mnemo-ai/mnemo/internal/repository"
	"github.com/mnemo-ai/mnemo/internal/server"
	"github.com/mnemo-ai/mnemo/internal/service"
	"github.com/mnemo-ai/mnemo/internal/storage"
	"github.com/mnemo-ai/mnemo/internal/telemetry"
	"github.com/mnemo-ai/mnemo/internal/tools"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the mnemo API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.SentryDSN != "" {
		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			TracesSampleRate: cfg.SentrySampleRate,
			Debug:            cfg.Debug,
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

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	itemRepo := repository.NewItemRepository(pool)
	embRepo := repository.NewEmbeddingRepository(pool)
	jobRepo := repository.NewEmbeddingJobRepository(pool)
	convRepo := repository.NewConversationRepository(pool)
	searchLogRepo := repository.NewSearchLogRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	var archive *storage.S3Client
	if cfg.HasS3() {
		archive, err = storage.NewS3Client(ctx, storage.S3ClientConfig{
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
		if err := archive.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("document archive bucket '%s' ready", cfg.S3Bucket)
	}

	knowledgeSvc := service.NewKnowledgeService(itemRepo, txRunner)

	var searchSvc handlers.SearchService = &NoOpSearchService{}
	var chatClient *openai.ChatClient
	var embeddingWorker *jobs.Worker
	if cfg.HasOpenAI() {
		embeddingClient := openai.NewClient(cfg.OpenAIAPIKey)
		embeddingSvc := service.NewEmbeddingService(embeddingClient, itemRepo, embRepo)
		embeddingWorker = jobs.NewWorker(jobs.NewEmbeddingWorker(jobRepo, embeddingSvc), cfg.WorkerPollInterval)
		go embeddingWorker.Start(ctx)
		log.Println("embedding worker started")

		searchSvc = service.NewSearchService(embeddingClient, embRepo, searchLogRepo, service.SearchWeights{
			Semantic: cfg.SemanticWeight,
			Recency:  cfg.RecencyWeight,
			Tag:      cfg.TagWeight,
		}, cfg.RecencyHalfLife)

		chatClient = openai.NewChatClient(cfg.OpenAIAPIKey, cfg.ChatModel)
	}

	var summarizer service.Summarizer
	if chatClient != nil {
		summarizer = chatClient
	}
	memorySvc := service.NewMemoryService(convRepo, summarizer, cfg.WindowTurns)

	var ingestArchive service.ArchiveStore
	if archive != nil {
		ingestArchive = archive
	}
	ingestSvc := service.NewIngestService(knowledgeSvc, service.PlainTextParser{}, ingestArchive)

	registry := tools.NewRegistry()
	builtinDeps := tools.BuiltinDeps{
		Knowledge: knowledgeSvc,
		Search:    searchSvc,
		Searcher:  tools.NewDuckDuckGoSearcher(nil),
	}
	if archive != nil {
		builtinDeps.Archive = archive
	}
	if err := tools.RegisterBuiltins(registry, builtinDeps); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	dispatcher := tools.NewDispatcher(registry, convRepo, &service.DefaultUUIDGenerator{}, cfg.ToolTimeout)

	var agentSvc handlers.AgentService = &NoOpAgentService{}
	if chatClient != nil {
		agentSvc = agent.NewOrchestrator(chatClient, memorySvc, dispatcher, registry, cfg.MaxToolHops)
	}

	statsSvc := service.NewStatsService(itemRepo, embRepo, jobRepo, searchLogRepo)

	var downloadSource handlers.DownloadURLSource
	if archive != nil {
		downloadSource = archive
	}

	routerCfg := server.RouterConfig{
		ItemHandler:     handlers.NewItemHandler(knowledgeSvc),
		SearchHandler:   handlers.NewSearchHandler(searchSvc),
		ChatHandler:     handlers.NewChatHandler(agentSvc),
		MemoryHandler:   handlers.NewMemoryHandler(memorySvc),
		ToolsHandler:    handlers.NewToolsHandler(dispatcher, registry),
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc, knowledgeSvc, downloadSource),
		StatsHandler:    handlers.NewStatsHandler(statsSvc),
	}

	router := server.NewRouter(routerCfg)

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

	if embeddingWorker != nil {
		embeddingWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// NoOpSearchService stands in when no embedding provider is configured.
type NoOpSearchService struct{}

func (s *NoOpSearchService) Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error) {
	return nil, fmt.Errorf("search not configured: OPENAI_API_KEY required")
}

// NoOpAgentService stands in when no chat model is configured.
type NoOpAgentService struct{}

func (s *NoOpAgentService) Respond(ctx context.Context, conversationID, userMessage string) (*agent.TurnResult, error) {
	return nil, fmt.Errorf("chat not configured: OPENAI_API_KEY required")
}

func runMigrations(databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	upErr := m.Up()
	if upErr != nil && upErr != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	msg, err := migrationStatus(upErr, err, version, dirty)
	if err != nil {
		return err
	}
	log.Println(msg)
	return nil
}

// migrationStatus turns the Up/Version outcome into a log line, or an error
// when the schema is dirty.
func migrationStatus(upErr, versionErr error, version uint, dirty bool) (string, error) {
	if versionErr == migrate.ErrNilVersion {
		return "migrations: database is up to date (no migrations applied)", nil
	}
	if dirty {
		return "", fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	}
	if upErr == migrate.ErrNoChange {
		return fmt.Sprintf("migrations: database is up to date (version %d)", version), nil
	}
	return fmt.Sprintf("migrations: applied successfully (version %d)", version), nil
}
