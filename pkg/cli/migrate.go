package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/grcops/pkg/cli/config"
	"github.com/secmon-lab/grcops/pkg/utils/logging"
	"github.com/secmon-lab/grcops/pkg/utils/safe"
)

func cmdMigrate() *cli.Command {
	var repoCfg config.Repository
	var dryRun bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview Firestore index changes without applying",
			Destination: &dryRun,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate the database schema (postgres tables or Firestore indexes)",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.From(ctx)
			logger.Info("Migrate configuration",
				slog.Any("repository", repoCfg),
				slog.Bool("dryRun", dryRun))

			switch repoCfg.Backend() {
			case config.BackendPostgres:
				return migratePostgres(ctx, &repoCfg, dryRun)
			case config.BackendFirestore:
				return migrateFirestore(ctx, &repoCfg, dryRun)
			case config.BackendMemory, "":
				logger.Info("Memory backend needs no migration")
				return nil
			default:
				return goerr.Wrap(config.ErrInvalidConfig, "invalid repository backend",
					goerr.V(config.BackendKey, repoCfg.Backend()))
			}
		},
	}
}

func migratePostgres(ctx context.Context, repoCfg *config.Repository, dryRun bool) error {
	logger := logging.From(ctx)
	if dryRun {
		logger.Info("Dry run is not supported for postgres; AutoMigrate only adds missing tables, columns and indexes")
		return nil
	}

	repo, err := repoCfg.Postgres(ctx)
	if err != nil {
		return err
	}
	defer safe.Close(ctx, repo)

	logger.Info("Applying postgres schema")
	if err := repo.Migrate(ctx); err != nil {
		return goerr.Wrap(err, "failed to migrate postgres schema")
	}
	logger.Info("Postgres schema is up to date")
	return nil
}

func migrateFirestore(ctx context.Context, repoCfg *config.Repository, dryRun bool) error {
	logger := logging.From(ctx)
	if repoCfg.ProjectID() == "" {
		return goerr.Wrap(config.ErrMissingRepository, "firestore-project-id is required for migration")
	}

	client, err := fireconf.New(ctx, repoCfg.ProjectID(), repoCfg.DatabaseID(),
		getIndexConfig(repoCfg.CollectionPrefix()),
		fireconf.WithDryRun(dryRun),
		fireconf.WithLogger(logger),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client",
			goerr.V("project_id", repoCfg.ProjectID()),
			goerr.V("database_id", repoCfg.DatabaseID()))
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close fireconf client", "error", err.Error())
		}
	}()

	if dryRun {
		logger.Info("Dry run mode - changes are logged, not applied")
	}
	if err := client.Migrate(ctx); err != nil {
		return goerr.Wrap(err, "failed to apply firestore indexes")
	}
	logger.Info("Firestore indexes are up to date", slog.Bool("dryRun", dryRun))
	return nil
}

// getIndexConfig returns the composite indexes backing the filtered list queries
func getIndexConfig(prefix string) *fireconf.Config {
	name := func(collection string) string {
		if prefix == "" {
			return collection
		}
		return prefix + "_" + collection
	}

	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: name("framework_controls"),
				Indexes: []fireconf.Index{
					// ListByFramework with domain filter
					{
						Fields: []fireconf.IndexField{
							{Path: "framework_id", Order: fireconf.OrderAscending},
							{Path: "domain", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: name("controls"),
				Indexes: []fireconf.Index{
					// catalog List with domain and source
					{
						Fields: []fireconf.IndexField{
							{Path: "domain", Order: fireconf.OrderAscending},
							{Path: "source", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: name("risk_controls"),
				Indexes: []fireconf.Index{
					{
						Fields: []fireconf.IndexField{
							{Path: "risk_id", Order: fireconf.OrderAscending},
							{Path: "control_id", Order: fireconf.OrderAscending},
						},
					},
				},
			},
		},
	}
}
