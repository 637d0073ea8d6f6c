// Package database opens the SQL store backing a service's side tables
// (API keys, analytics snapshots) in either supported dialect.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/sqlite"
)

// Open connects to cfg.Postgres or cfg.SQLite according to dialect and
// returns the pool with its close function.
func Open(ctx context.Context, cfg *config.Config, dialect string) (*sql.DB, func() error, error) {
	switch dialect {
	case "postgres":
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		return client.DB, client.Close, nil
	case "sqlite":
		client, err := sqlite.New(ctx, cfg.SQLite)
		if err != nil {
			return nil, nil, err
		}
		return client.DB, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("database dialect %q: %w", dialect, apperrors.ErrInvalidInput)
	}
}
