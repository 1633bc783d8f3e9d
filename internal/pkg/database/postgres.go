package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Database is the postgres backed event store. Schema is owned by the migrations folder.
type Database struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func New(ctx context.Context, dsn string) (*Database, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewDatabase(pool), nil
}

func NewDatabase(pool *pgxpool.Pool) *Database {
	return &Database{
		pool:   pool,
		logger: zap.L(),
	}
}

func (db *Database) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}
