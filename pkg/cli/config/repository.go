package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
	"github.com/secmon-lab/grcops/pkg/repository/firestore"
	"github.com/secmon-lab/grcops/pkg/repository/memory"
	"github.com/secmon-lab/grcops/pkg/repository/postgres"
	"github.com/secmon-lab/grcops/pkg/utils/logging"
)

const (
	BackendMemory    = "memory"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
)

// Repository holds CLI flags for repository backend configuration
type Repository struct {
	backend          string
	dsn              string `masq:"secret"`
	sqlLog           bool
	projectID        string
	databaseID       string
	collectionPrefix string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Category:    "Repository",
			Usage:       "Repository backend type (memory, postgres or firestore)",
			Value:       BackendMemory,
			Sources:     cli.EnvVars("GRCOPS_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "postgres-dsn",
			Category:    "Repository",
			Usage:       "PostgreSQL DSN (required when using postgres backend)",
			Sources:     cli.EnvVars("GRCOPS_POSTGRES_DSN"),
			Destination: &r.dsn,
		},
		&cli.BoolFlag{
			Name:        "postgres-sql-log",
			Category:    "Repository",
			Usage:       "Log every SQL statement",
			Sources:     cli.EnvVars("GRCOPS_POSTGRES_SQL_LOG"),
			Destination: &r.sqlLog,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Category:    "Repository",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Sources:     cli.EnvVars("GRCOPS_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Category:    "Repository",
			Usage:       "Firestore Database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("GRCOPS_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Category:    "Repository",
			Usage:       "Prefix prepended to every Firestore collection name",
			Sources:     cli.EnvVars("GRCOPS_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
	}
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// ProjectID returns the Firestore project ID
func (r *Repository) ProjectID() string {
	return r.projectID
}

// DatabaseID returns the Firestore database ID
func (r *Repository) DatabaseID() string {
	return r.databaseID
}

// CollectionPrefix returns the Firestore collection prefix
func (r *Repository) CollectionPrefix() string {
	return r.collectionPrefix
}

// Postgres opens the postgres backend directly; migrate needs it for AutoMigrate.
func (r *Repository) Postgres(ctx context.Context) (*postgres.Postgres, error) {
	if r.dsn == "" {
		return nil, goerr.Wrap(ErrMissingRepository, "postgres-dsn is required when using postgres backend",
			goerr.V(BackendKey, r.backend))
	}

	var opts []postgres.Option
	if r.sqlLog {
		opts = append(opts, postgres.WithSQLLog())
	}
	repo, err := postgres.New(ctx, r.dsn, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize postgres repository")
	}
	return repo, nil
}

// Configure initializes and returns a repository based on the configured backend.
// The caller is responsible for calling Close() on the returned repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	logger := logging.From(ctx)

	switch r.backend {
	case BackendFirestore:
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrMissingRepository, "firestore-project-id is required when using firestore backend",
				goerr.V(BackendKey, r.backend))
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID, firestore.WithCollectionPrefix(r.collectionPrefix))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logger.Info("Using Firestore repository",
			slog.String("project_id", r.projectID),
			slog.String("database_id", r.databaseID),
			slog.String("collection_prefix", r.collectionPrefix),
		)
		return repo, nil

	case BackendPostgres:
		repo, err := r.Postgres(ctx)
		if err != nil {
			return nil, err
		}
		logger.Info("Using PostgreSQL repository")
		return repo, nil

	case BackendMemory, "":
		logger.Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid repository backend", goerr.V(BackendKey, r.backend))
	}
}

// LogValue implements slog.LogValuer; the DSN is never logged
func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", r.backend),
		slog.Bool("dsn_set", r.dsn != ""),
		slog.String("firestore_project_id", r.projectID),
		slog.String("firestore_database_id", r.databaseID),
	)
}
