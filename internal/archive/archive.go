// Package archive persists hourly leaderboard history to PostgreSQL so the
// contest can be replayed after the live Redis state is gone.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bunjson"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/swiglabs/swigboard/internal/archive/migrations"
	"github.com/swiglabs/swigboard/internal/setup/config"
)

// sonicProvider adapts sonic to the bun JSON provider interface.
type sonicProvider struct{}

func (sonicProvider) Marshal(v any) ([]byte, error) {
	return sonic.Marshal(v)
}

func (sonicProvider) Unmarshal(data []byte, v any) error {
	return sonic.Unmarshal(data, v)
}

func (sonicProvider) NewEncoder(w io.Writer) bunjson.Encoder {
	return sonic.ConfigDefault.NewEncoder(w)
}

func (sonicProvider) NewDecoder(r io.Reader) bunjson.Decoder {
	return sonic.ConfigDefault.NewDecoder(r)
}

// Client defines the interface for archive database operations.
type Client interface {
	// Standings returns the hourly standings repository.
	Standings() *StandingsModel
	// Close closes the underlying database connection.
	Close() error
	// DB returns the underlying bun database instance.
	DB() *bun.DB
}

// clientImpl implements the Client interface.
type clientImpl struct {
	db        *bun.DB
	standings *StandingsModel
	logger    *zap.Logger
}

// NewConnection establishes a new archive database connection and optionally
// runs pending migrations.
func NewConnection(ctx context.Context, config *config.PostgreSQL, logger *zap.Logger, autoMigrate bool) (Client, error) {
	// Initialize database connection
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithAddr(fmt.Sprintf("%s:%d", config.Host, config.Port)),
		pgdriver.WithUser(config.User),
		pgdriver.WithPassword(config.Password),
		pgdriver.WithDatabase(config.DBName),
		pgdriver.WithInsecure(true),
		pgdriver.WithApplicationName("swigboard"),
	))

	// Set connection pool settings
	sqldb.SetMaxOpenConns(config.MaxOpenConns)
	sqldb.SetMaxIdleConns(config.MaxIdleConns)
	sqldb.SetConnMaxLifetime(time.Duration(config.MaxLifetime) * time.Minute)
	sqldb.SetConnMaxIdleTime(time.Duration(config.MaxIdleTime) * time.Minute)

	// Use sonic for JSON serialization
	bunjson.SetProvider(sonicProvider{})

	// Create Bun db instance
	db := bun.NewDB(sqldb, pgdialect.New())

	// Add query logging hook
	db.AddQueryHook(NewHook(logger))

	// Run migrations if requested
	if autoMigrate {
		migrator := migrate.NewMigrator(db, migrations.Migrations)
		if err := migrator.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize migrations: %w", err)
		}

		group, err := migrator.Migrate(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		if group.IsZero() {
			logger.Debug("No new migrations to run")
		} else {
			logger.Info("Applied migrations", zap.String("group", group.String()))
		}
	}

	client := &clientImpl{
		db:        db,
		standings: NewStandingsModel(db, logger),
		logger:    logger,
	}

	logger.Debug("Archive database connection established")

	return client, nil
}

func (c *clientImpl) Standings() *StandingsModel {
	return c.standings
}

func (c *clientImpl) DB() *bun.DB {
	return c.db
}

// Close closes the database connection.
func (c *clientImpl) Close() error {
	if err := c.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	c.logger.Debug("Archive database connection closed")

	return nil
}
