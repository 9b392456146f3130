package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KevinKickass/BladeLoaderCore/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps the taught positions as a single jsonb document
// per profile, so several bench stations can share one database.
type PostgresStore struct {
	pool    *pgxpool.Pool
	profile string
}

const positionsTable = `
CREATE TABLE IF NOT EXISTS taught_positions (
	profile TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, profile string) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConnections)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, positionsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure positions table: %w", err)
	}

	if profile == "" {
		profile = "default"
	}
	return &PostgresStore{pool: pool, profile: profile}, nil
}

// Load returns the stored document, or an empty set when this profile
// was never saved.
func (p *PostgresStore) Load(ctx context.Context) (StoredPositions, error) {
	var data []byte
	err := p.pool.QueryRow(ctx, `
		SELECT data FROM taught_positions WHERE profile = $1
	`, p.profile).Scan(&data)

	if errors.Is(err, pgx.ErrNoRows) {
		return StoredPositions{}, nil
	}
	if err != nil {
		return StoredPositions{}, fmt.Errorf("failed to query positions: %w", err)
	}

	var positions StoredPositions
	if err := json.Unmarshal(data, &positions); err != nil {
		return StoredPositions{}, fmt.Errorf("failed to unmarshal positions: %w", err)
	}
	return positions, nil
}

// Save upserts the document for this profile.
func (p *PostgresStore) Save(ctx context.Context, positions StoredPositions) error {
	data, err := json.Marshal(positions)
	if err != nil {
		return fmt.Errorf("failed to marshal positions: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO taught_positions (profile, data)
		VALUES ($1, $2)
		ON CONFLICT (profile)
		DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()
	`, p.profile, data)

	if err != nil {
		return fmt.Errorf("failed to save positions: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}
