// Copyright (c) 2015-2026 TetraOps
//
// Licensed under GPL-2.0. See LICENSE.md.
package connectors

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tetraops/callstream/pkg/commons"
)

// PostgresConnector hands out the shared gorm handle. Workers never open
// their own connections; they receive a connector and scope queries with
// their own contexts.
type PostgresConnector interface {
	DB(ctx context.Context) *gorm.DB
	Close() error
}

type postgresConnector struct {
	db     *gorm.DB
	logger commons.Logger
}

// NewPostgresConnector opens a pooled connection from a libpq-style DSN
// (persistence_manager.pg_conn_info).
func NewPostgresConnector(dsn string, logger commons.Logger) (PostgresConnector, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolving sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	logger.Info("postgres connection established")

	return &postgresConnector{db: db, logger: logger}, nil
}

// Wrap adapts an already-open gorm handle (tests use this with sqlmock or
// an in-memory sqlite database).
func Wrap(db *gorm.DB, logger commons.Logger) PostgresConnector {
	return &postgresConnector{db: db, logger: logger}
}

func (c *postgresConnector) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func (c *postgresConnector) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
