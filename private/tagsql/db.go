// Copyright (C) 2026 Storj Labs, Inc.
// See LICENSE for copying information.

// Package tagsql implements a thin context-first wrapper for *sql.DB.
//
// Every database handle the schema manager receives goes through this
// package, so the engine never depends on a concrete driver.
package tagsql

import (
	"context"
	"database/sql"
	"time"

	"github.com/zeebo/errs"
)

// Error is the default error class for tagsql.
var Error = errs.Class("tagsql")

// DB is an interface for *sql.DB-like databases.
type DB interface {
	BeginTx(ctx context.Context, txOptions *sql.TxOptions) (Tx, error)

	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row

	PingContext(ctx context.Context) error
	Close() error

	SetMaxIdleConns(n int)
	SetMaxOpenConns(n int)
	SetConnMaxLifetime(d time.Duration)
	Stats() sql.DBStats
}

// Rows is an interface for *sql.Rows-like results.
type Rows interface {
	Close() error
	Columns() ([]string, error)
	Err() error
	Next() bool
	Scan(dest ...interface{}) error
}

// Open calls sql.Open and wraps the result.
func Open(ctx context.Context, driverName, dataSourceName string) (DB, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, Error.Wrap(errs.Combine(err, db.Close()))
	}
	return Wrap(db), nil
}

// Wrap turns a *sql.DB into a DB.
func Wrap(db *sql.DB) DB {
	return &sqlDB{db: db}
}

// sqlDB implements DB.
type sqlDB struct {
	db *sql.DB
}

func (s *sqlDB) BeginTx(ctx context.Context, txOptions *sql.TxOptions) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, txOptions)
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

func (s *sqlDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

func (s *sqlDB) QueryContext(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *sqlDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

func (s *sqlDB) PingContext(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlDB) Close() error { return s.db.Close() }

func (s *sqlDB) SetMaxIdleConns(n int) { s.db.SetMaxIdleConns(n) }

func (s *sqlDB) SetMaxOpenConns(n int) { s.db.SetMaxOpenConns(n) }

func (s *sqlDB) SetConnMaxLifetime(d time.Duration) { s.db.SetConnMaxLifetime(d) }

func (s *sqlDB) Stats() sql.DBStats { return s.db.Stats() }
