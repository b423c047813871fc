package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
	"github.com/secmon-lab/grcops/pkg/utils/logging"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Postgres is the relational backend built on gorm
type Postgres struct {
	db               *gorm.DB
	framework        *frameworkRepository
	frameworkControl *frameworkControlRepository
	control          *controlRepository
	risk             *riskRepository
	riskControl      *riskControlRepository
}

var _ interfaces.Repository = &Postgres{}

type options struct {
	maxAttempts   int
	retryInterval time.Duration
	logLevel      logger.LogLevel
}

type Option func(*options)

// WithMaxAttempts sets how many times New tries to open the connection
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		o.maxAttempts = n
	}
}

// WithRetryInterval sets the wait between connection attempts
func WithRetryInterval(d time.Duration) Option {
	return func(o *options) {
		o.retryInterval = d
	}
}

// WithSQLLog makes gorm log every statement
func WithSQLLog() Option {
	return func(o *options) {
		o.logLevel = logger.Info
	}
}

// New connects to PostgreSQL, retrying while the database comes up
func New(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	o := &options{
		maxAttempts:   10,
		retryInterval: 2 * time.Second,
		logLevel:      logger.Warn,
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(o.logLevel),
	}

	var db *gorm.DB
	var err error
	for i := 1; i <= o.maxAttempts; i++ {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}

		logging.From(ctx).Warn("failed to connect to postgres",
			slog.Int("attempt", i),
			slog.Int("max_attempts", o.maxAttempts),
			slog.Any("error", err),
		)
		if i == o.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, goerr.Wrap(ctx.Err(), "canceled while connecting to postgres")
		case <-time.After(o.retryInterval):
		}
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to postgres", goerr.V("attempts", o.maxAttempts))
	}

	return newWithDB(db), nil
}

func newWithDB(db *gorm.DB) *Postgres {
	return &Postgres{
		db:               db,
		framework:        &frameworkRepository{db: db},
		frameworkControl: &frameworkControlRepository{db: db},
		control:          &controlRepository{db: db},
		risk:             &riskRepository{db: db},
		riskControl:      &riskControlRepository{db: db},
	}
}

// Migrate creates or alters tables, indexes and foreign keys
func (p *Postgres) Migrate(ctx context.Context) error {
	if err := p.db.WithContext(ctx).AutoMigrate(
		&frameworkRecord{},
		&frameworkControlRecord{},
		&controlRecord{},
		&riskRecord{},
		&riskControlRecord{},
	); err != nil {
		return goerr.Wrap(err, "failed to migrate postgres schema")
	}
	return nil
}

func (p *Postgres) Framework() interfaces.FrameworkRepository {
	return p.framework
}

func (p *Postgres) FrameworkControl() interfaces.FrameworkControlRepository {
	return p.frameworkControl
}

func (p *Postgres) Control() interfaces.ControlRepository {
	return p.control
}

func (p *Postgres) Risk() interfaces.RiskRepository {
	return p.risk
}

func (p *Postgres) RiskControl() interfaces.RiskControlRepository {
	return p.riskControl
}

func (p *Postgres) Ping(ctx context.Context) error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return goerr.Wrap(err, "failed to get sql.DB")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return goerr.Wrap(err, "failed to ping postgres")
	}
	return nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return goerr.Wrap(err, "failed to get sql.DB")
	}
	return sqlDB.Close()
}
