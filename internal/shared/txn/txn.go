// Package txn runs units of work inside a database transaction.
//
// Services receive a Runner instead of a raw *sql.DB so the same code path
// serves the Postgres repositories (which bind the *sql.Tx through Bind) and
// the in-memory store (which ignores it).
package txn

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
)

type TxFunc func(tx *sql.Tx) error

type Runner interface {
	WithinTx(ctx context.Context, fn TxFunc) error
}

type sqlRunner struct {
	db *sql.DB
}

func NewSQLRunner(db *sql.DB) Runner {
	return &sqlRunner{db: db}
}

func (r *sqlRunner) WithinTx(ctx context.Context, fn TxFunc) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type nopRunner struct{}

// Nop returns a Runner that calls fn with a nil transaction. Only for stores
// that provide their own atomicity.
func Nop() Runner {
	return nopRunner{}
}

func (nopRunner) WithinTx(_ context.Context, fn TxFunc) error {
	return fn(nil)
}

// Bind returns a gorm handle whose statements run on tx. A nil tx returns db.
func Bind(db *gorm.DB, tx *sql.Tx) *gorm.DB {
	if tx == nil {
		return db
	}
	bound := db.Session(&gorm.Session{NewDB: true, SkipDefaultTransaction: true})
	bound.Statement.ConnPool = tx
	return bound
}
