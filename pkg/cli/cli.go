package cli

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/secmon-lab/grcops/pkg/cli/config"
	"github.com/secmon-lab/grcops/pkg/utils/logging"
)

const defaultEnvFile = ".env"

func Run(ctx context.Context, args []string, version string) error {
	var loggerCfg config.Logger
	var sentryCfg config.Sentry
	var envFile string
	var closers []func()

	if err := loadEnvFile(args); err != nil {
		return err
	}

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "env-file",
			Usage:       "Load environment variables from this file before reading flags",
			Value:       defaultEnvFile,
			Sources:     cli.EnvVars("GRCOPS_ENV_FILE"),
			Destination: &envFile,
		},
	}
	flags = append(flags, loggerCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	app := &cli.Command{
		Name:    "grcops",
		Usage:   "Governance, risk and compliance service",
		Version: version,
		Flags:   flags,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			closeLog, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closers = append(closers, closeLog)

			flush, err := sentryCfg.Configure(version)
			if err != nil {
				return ctx, err
			}
			closers = append(closers, flush)

			logger := logging.Default()
			logger.Info("Starting grcops",
				slog.Any("logger", loggerCfg),
				slog.Any("sentry", sentryCfg),
				slog.String("env_file", envFile),
			)
			return logging.With(ctx, logger), nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdMigrate(),
			cmdSeed(),
			cmdValidate(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}

	return nil
}

// envFileFromArgs finds --env-file before flag parsing so the file can feed flag env sources
func envFileFromArgs(args []string) (string, bool) {
	for i, arg := range args {
		switch {
		case arg == "--env-file" || arg == "-env-file":
			if i+1 < len(args) {
				return args[i+1], true
			}
		case strings.HasPrefix(arg, "--env-file="):
			return strings.TrimPrefix(arg, "--env-file="), true
		case strings.HasPrefix(arg, "-env-file="):
			return strings.TrimPrefix(arg, "-env-file="), true
		}
	}
	if v, ok := os.LookupEnv("GRCOPS_ENV_FILE"); ok && v != "" {
		return v, true
	}
	return defaultEnvFile, false
}

// loadEnvFile loads the env file without overriding variables already set. A missing
// default file is ignored; a missing explicit file is an error.
func loadEnvFile(args []string) error {
	path, explicit := envFileFromArgs(args)
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return goerr.Wrap(err, "failed to load env file", goerr.V("path", path))
	}
	return nil
}
