package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	httpctrl "github.com/secmon-lab/grcops/pkg/controller/http"
	"github.com/secmon-lab/grcops/pkg/usecase"
)

// Server holds CLI flags for the HTTP server
type Server struct {
	addr            string
	rateLimit       float64
	rateBurst       int
	readOnly        bool
	shutdownTimeout time.Duration
}

// Flags returns CLI flags for server configuration
func (s *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("GRCOPS_ADDR"),
			Destination: &s.addr,
		},
		&cli.FloatFlag{
			Name:        "rate-limit",
			Usage:       "Requests per second allowed per client under /api (0 disables)",
			Value:       20,
			Sources:     cli.EnvVars("GRCOPS_RATE_LIMIT"),
			Destination: &s.rateLimit,
		},
		&cli.IntFlag{
			Name:        "rate-burst",
			Usage:       "Burst size per client",
			Value:       40,
			Sources:     cli.EnvVars("GRCOPS_RATE_BURST"),
			Destination: &s.rateBurst,
		},
		&cli.BoolFlag{
			Name:        "read-only",
			Usage:       "Reject every write and delete request",
			Sources:     cli.EnvVars("GRCOPS_READ_ONLY"),
			Destination: &s.readOnly,
		},
		&cli.DurationFlag{
			Name:        "shutdown-timeout",
			Usage:       "Grace period for in-flight requests on shutdown",
			Value:       10 * time.Second,
			Sources:     cli.EnvVars("GRCOPS_SHUTDOWN_TIMEOUT"),
			Destination: &s.shutdownTimeout,
		},
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.addr
}

// ShutdownTimeout returns the graceful shutdown period
func (s *Server) ShutdownTimeout() time.Duration {
	return s.shutdownTimeout
}

// Validate checks flag combinations
func (s *Server) Validate() error {
	if s.rateLimit < 0 {
		return goerr.Wrap(ErrInvalidConfig, "rate-limit must not be negative", goerr.V("rate_limit", s.rateLimit))
	}
	if s.rateLimit > 0 && s.rateBurst < 1 {
		return goerr.Wrap(ErrInvalidConfig, "rate-burst must be positive", goerr.V("rate_burst", s.rateBurst))
	}
	return nil
}

// HTTPOptions converts the flags to server options
func (s *Server) HTTPOptions() []httpctrl.Options {
	var opts []httpctrl.Options
	if s.rateLimit > 0 {
		opts = append(opts, httpctrl.WithRateLimit(s.rateLimit, s.rateBurst))
	}
	return opts
}

// UseCaseOptions converts the flags to use case options
func (s *Server) UseCaseOptions() []usecase.Option {
	var opts []usecase.Option
	if s.readOnly {
		opts = append(opts, usecase.WithAuthorizer(&usecase.ReadOnlyAuthorizer{}))
	}
	return opts
}

// LogValue implements slog.LogValuer
func (s Server) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("addr", s.addr),
		slog.Float64("rate_limit", s.rateLimit),
		slog.Int("rate_burst", s.rateBurst),
		slog.Bool("read_only", s.readOnly),
	)
}
