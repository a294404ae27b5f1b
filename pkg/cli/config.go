package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"github.com/whippetlabs/whippet/pkg/adapter"
	"github.com/whippetlabs/whippet/pkg/provider"
	"github.com/whippetlabs/whippet/pkg/repository"
	"github.com/whippetlabs/whippet/pkg/resolver"
	"github.com/whippetlabs/whippet/pkg/search"
	"github.com/whippetlabs/whippet/pkg/usecase/turn"
)

// config holds configuration values
type config struct {
	// Datastore
	project  string
	database string

	// Session store and domain cache
	redisAddr     string
	redisPassword string

	// Full-text index
	postgresDSN string

	// Embeddings
	geminiProject  string
	geminiLocation string

	// Session archive
	bucket string

	// Telemetry
	telemetryDataset string
	telemetryTable   string

	// Engine tunables
	configPath string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to engine tunables YAML (optional)",
			Sources:     cli.EnvVars("WHIPPET_CONFIG"),
			Destination: &cfg.configPath,
		},
	}
}

// engineFlags returns flags for the search pipeline backends
func engineFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "redis-addr",
			Usage:       "Redis address for session state and domain cache",
			Value:       "localhost:6379",
			Sources:     cli.EnvVars("WHIPPET_REDIS_ADDR"),
			Destination: &cfg.redisAddr,
		},
		&cli.StringFlag{
			Name:        "redis-password",
			Usage:       "Redis password",
			Sources:     cli.EnvVars("WHIPPET_REDIS_PASSWORD"),
			Destination: &cfg.redisPassword,
		},
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Usage:       "Postgres DSN for the full-text content index",
			Sources:     cli.EnvVars("WHIPPET_POSTGRES_DSN"),
			Destination: &cfg.postgresDSN,
		},
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini embeddings",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini embeddings",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "telemetry-dataset",
			Usage:       "BigQuery dataset for search telemetry (optional)",
			Sources:     cli.EnvVars("WHIPPET_TELEMETRY_DATASET"),
			Destination: &cfg.telemetryDataset,
		},
		&cli.StringFlag{
			Name:        "telemetry-table",
			Usage:       "BigQuery table for search telemetry",
			Value:       "searches",
			Sources:     cli.EnvVars("WHIPPET_TELEMETRY_TABLE"),
			Destination: &cfg.telemetryTable,
		},
	}
}

// storageFlags returns flags for the session archive bucket
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Aliases:     []string{"b"},
			Usage:       "Cloud Storage bucket for session archives",
			Sources:     cli.EnvVars("WHIPPET_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// newRepository creates the Firestore-backed repository
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.project == "" {
		return nil, goerr.New("project is required")
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.New(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newRedis connects the session store and domain cache
func (cfg *config) newRedis(ctx context.Context) (*adapter.Redis, error) {
	if cfg.redisAddr == "" {
		return nil, goerr.New("redis-addr is required")
	}
	return adapter.NewRedis(ctx, cfg.redisAddr, cfg.redisPassword)
}

// newEmbedder creates the Gemini embedding client
func (cfg *config) newEmbedder(ctx context.Context) (adapter.Embedder, error) {
	project := cfg.geminiProject
	if project == "" {
		project = cfg.project
	}
	if project == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}
	return adapter.NewGeminiEmbedder(ctx, project, cfg.geminiLocation)
}

// newTelemetry creates the BigQuery telemetry sink, or a no-op sink when no
// dataset is configured
func (cfg *config) newTelemetry(ctx context.Context) (adapter.Telemetry, error) {
	if cfg.telemetryDataset == "" {
		return adapter.NopTelemetry{}, nil
	}
	if cfg.project == "" {
		return nil, goerr.New("project is required for telemetry")
	}
	return adapter.NewTelemetry(ctx, cfg.project, cfg.telemetryDataset, cfg.telemetryTable)
}

// newStorage creates the session archive storage
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, goerr.New("bucket is required")
	}
	storage, err := adapter.NewStorage(ctx, cfg.bucket)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage")
	}
	return storage, nil
}

// newOrchestrator assembles the full search pipeline
func (cfg *config) newOrchestrator(ctx context.Context) (*search.Orchestrator, error) {
	rds, err := cfg.newRedis(ctx)
	if err != nil {
		return nil, err
	}
	return cfg.buildOrchestrator(ctx, rds)
}

// buildOrchestrator assembles the pipeline around an existing Redis
// connection so the turn use case can share it
func (cfg *config) buildOrchestrator(ctx context.Context, rds *adapter.Redis) (*search.Orchestrator, error) {
	engineCfg := search.DefaultConfig()
	if cfg.configPath != "" {
		loaded, err := search.LoadConfig(cfg.configPath)
		if err != nil {
			return nil, err
		}
		engineCfg = loaded
	}

	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.postgresDSN == "" {
		return nil, goerr.New("postgres-dsn is required")
	}
	fulltext, err := adapter.NewFulltext(cfg.postgresDSN)
	if err != nil {
		return nil, err
	}

	embedder, err := cfg.newEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	telemetry, err := cfg.newTelemetry(ctx)
	if err != nil {
		return nil, err
	}

	gateway := provider.NewGateway(provider.NewWooCommerceFactory(),
		provider.WithBreakerConfig(engineCfg.Breaker),
		provider.WithRetryConfig(engineCfg.Retry),
	)

	return search.New(
		resolver.New(rds, repo),
		gateway,
		repo,
		fulltext,
		embedder,
		search.WithConfig(engineCfg),
		search.WithTelemetry(telemetry),
	), nil
}

// newTurnUseCase assembles the turn processor over the search pipeline.
// Archive storage is attached only when a bucket is configured.
func (cfg *config) newTurnUseCase(ctx context.Context) (*turn.UseCase, *search.Orchestrator, error) {
	rds, err := cfg.newRedis(ctx)
	if err != nil {
		return nil, nil, err
	}

	orchestrator, err := cfg.buildOrchestrator(ctx, rds)
	if err != nil {
		return nil, nil, err
	}

	var storage adapter.Storage
	if cfg.bucket != "" {
		storage, err = cfg.newStorage(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	uc := turn.New(turn.NewInput{
		Store:        rds,
		Orchestrator: orchestrator,
		Storage:      storage,
	})
	return uc, orchestrator, nil
}
