package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists credentials so /auth survives restarts. The
// queue itself is never persisted.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmt := `CREATE TABLE IF NOT EXISTS credentials (
		identity TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`
	if _, err := pool.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Current(ctx context.Context, identity string) (string, error) {
	var token string
	err := s.pool.QueryRow(ctx,
		`SELECT token FROM credentials WHERE identity = $1`,
		strings.TrimSpace(identity),
	).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("load credential: %w", err)
	}
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

func (s *PostgresStore) Set(ctx context.Context, identity, credential string) error {
	identity = strings.TrimSpace(identity)
	credential = strings.TrimSpace(credential)
	if identity == "" {
		return errors.New("identity is required")
	}
	if credential == "" {
		return errors.New("credential is required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO credentials (identity, token, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (identity) DO UPDATE SET token = $2, updated_at = $3`,
		identity, credential, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, identity string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM credentials WHERE identity = $1`,
		strings.TrimSpace(identity),
	)
	if err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
