package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/northlink/link-importer/internal/api"
	"github.com/northlink/link-importer/internal/config"
	"github.com/northlink/link-importer/internal/handler"
	"github.com/northlink/link-importer/internal/importer"
	"github.com/northlink/link-importer/internal/kv"
	"github.com/northlink/link-importer/internal/logger"
	"github.com/northlink/link-importer/internal/mail"
	"github.com/northlink/link-importer/internal/metrics"
	"github.com/northlink/link-importer/internal/provider"
	"github.com/northlink/link-importer/internal/queue"
	"github.com/northlink/link-importer/internal/storage"

	_ "github.com/lib/pq"
)

// Database connection timeout.
const dbPingTimeout = 5 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// Load configuration
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	// Initialize logger
	log, err := createLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	// Connect to database
	db, err := connectDatabase(cfg, log)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return 1
	}
	defer func() { _ = db.Close() }()

	// Connect to the key-value store
	redisClient, err := kv.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Error("Failed to connect to redis", logger.Error(err))
		return 1
	}
	defer func() { _ = redisClient.Close() }()

	return runServer(cfg, log, db, redisClient)
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	configPath := config.GetConfigPath("config.yml")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if validationErr := cfg.Validate(); validationErr != nil {
		return nil, fmt.Errorf("validate config: %w", validationErr)
	}
	return cfg, nil
}

// createLogger creates a logger instance from configuration.
func createLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Service.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(logger.String("service", "link-importer")), nil
}

// connectDatabase opens and verifies a database connection.
func connectDatabase(cfg *config.Config, log logger.Logger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connected",
		logger.String("host", cfg.Database.Host),
		logger.Int("port", cfg.Database.Port),
		logger.String("database", cfg.Database.Database),
	)

	return db, nil
}

// runServer creates all dependencies and starts the HTTP server.
func runServer(cfg *config.Config, log logger.Logger, db *sqlx.DB, redisClient *redis.Client) int {
	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	signer := queue.NewSigner(cfg.Queue.SigningSecret)
	publisher := queue.NewPublisher(cfg.Queue.PublishURL, signer, log)

	store := kv.NewStore(redisClient, log)
	repo := storage.NewRepository(db, log)
	mailer := mail.NewMailer(cfg.Mail, log)

	registry := provider.NewRegistry(
		provider.NewBitly(cfg.Providers.Bitly, log),
		provider.NewRebrandly(cfg.Providers.Rebrandly, log),
	)

	sink := importer.NewSink(store, repo, log)
	tags := importer.NewTagImporter(repo, store, log)
	scheduler := importer.NewScheduler(publisher, store, repo, mailer, log, m)
	pipeline := importer.NewPipeline(registry, store, repo, sink, tags, scheduler, log, m)

	importHandler := handler.NewImportHandler(
		pipeline, signer, repo, cfg.Service.Production(), log, m,
	)

	checks := map[string]api.HealthCheck{
		"postgres": repo.Ping,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}

	server := api.NewServer(cfg, log, func(router *gin.Engine) {
		api.SetupRoutes(router, importHandler, promRegistry, checks)
	})

	log.Info("Link importer starting",
		logger.Int("port", cfg.Service.Port),
		logger.String("environment", cfg.Service.Environment),
	)

	if err := server.Run(context.Background()); err != nil {
		log.Error("Server error", logger.Error(err))
		return 1
	}

	log.Info("Link importer exited cleanly")
	return 0
}
