package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/grcops/pkg/cli/config"
	"github.com/secmon-lab/grcops/pkg/usecase"
	"github.com/secmon-lab/grcops/pkg/utils/logging"
	"github.com/secmon-lab/grcops/pkg/utils/safe"
)

func cmdSeed() *cli.Command {
	var repoCfg config.Repository
	var catalogCfg config.Catalog

	var flags []cli.Flag
	flags = append(flags, catalogCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:  "seed",
		Usage: "Upsert control catalog entries from a TOML file, keyed by control_id",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.From(ctx)

			file, err := catalogCfg.Load()
			if err != nil {
				return err
			}

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer safe.Close(ctx, repo)

			uc := usecase.New(repo)
			result, err := uc.Catalog.ImportControls(ctx, file.ToModel())
			if err != nil {
				return goerr.Wrap(err, "failed to seed catalog", goerr.V(config.CatalogPathKey, catalogCfg.Path()))
			}

			logger.Info("Catalog seeded",
				slog.String("path", catalogCfg.Path()),
				slog.Int("created", result.Created),
				slog.Int("updated", result.Updated),
			)
			return nil
		},
	}
}
