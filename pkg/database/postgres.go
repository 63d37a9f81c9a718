package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rthallapally/AI-Research-Agent/pkg/vectorstore"
)

// PostgresDB wraps the database connection pool
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Configure connection pool
	config.MaxConns = 10
	config.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *PostgresDB) Close() {
	db.Pool.Close()
}

// CreateEmbeddingsTable creates the chunk table for a collection and returns
// a store bound to it.
func (db *PostgresDB) CreateEmbeddingsTable(ctx context.Context, tableName string, dimension int) (*vectorstore.PGVectorStore, error) {
	store, err := vectorstore.NewPGVectorStore(db.Pool, tableName)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureCollection(ctx, dimension); err != nil {
		return nil, err
	}
	return store, nil
}
