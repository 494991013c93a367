package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"wtb-relay-go/internal/config"
	"wtb-relay-go/internal/model"
)

// Handle bundles the gorm connection with the pgx pool behind it, if any.
type Handle struct {
	DB   *gorm.DB
	pool *pgxpool.Pool
}

// Close releases the underlying connections
func (h *Handle) Close() {
	if sqlDB, err := h.DB.DB(); err == nil {
		sqlDB.Close()
	}
	if h.pool != nil {
		h.pool.Close()
	}
}

// NewLogger returns a gorm logger that writes through logrus
func NewLogger() logger.Interface {
	return logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// Init initializes the database connection and runs migrations
func Init(ctx context.Context, cfg config.DatabaseConfig) (*Handle, error) {
	var (
		dialector gorm.Dialector
		pool      *pgxpool.Pool
	)

	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.GetDSN())
	default:
		p, err := newPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		pool = p
		dialector = postgres.New(postgres.Config{Conn: stdlib.OpenDBFromPool(pool)})
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{Logger: NewLogger()})
	if err != nil {
		if pool != nil {
			pool.Close()
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == "mysql" {
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(int(cfg.MaxConns))
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := Migrate(gdb); err != nil {
		return nil, err
	}

	logrus.WithField("driver", cfg.Driver).Info("Database initialized successfully")
	return &Handle{DB: gdb, pool: pool}, nil
}

func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	poolCfg.MaxConnLifetime = time.Hour
	// pgbouncer in transaction mode cannot hold prepared statements
	if cfg.ViaBouncer {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Migrate runs schema migrations for every model
func Migrate(gdb *gorm.DB) error {
	logrus.Info("Running database migrations...")
	if err := gdb.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	logrus.Info("Database migrations completed")
	return nil
}
