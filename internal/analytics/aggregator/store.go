// Package aggregator persists analytics snapshots in SQLite or PostgreSQL
// so totals survive restarts of the analytics service.
package aggregator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/analytics"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

// Store keeps snapshots in an analytics_snapshots table holding the JSON
// encoded Stats and the capture time in Unix seconds.
type Store struct {
	db       *sql.DB
	postgres bool
	logger   *slog.Logger
}

// NewStore wraps db; dialect is "sqlite" or "postgres".
func NewStore(db *sql.DB, dialect string) (*Store, error) {
	if dialect != "sqlite" && dialect != "postgres" {
		return nil, fmt.Errorf("analytics store dialect %q: %w", dialect, apperrors.ErrInvalidInput)
	}
	return &Store{
		db:       db,
		postgres: dialect == "postgres",
		logger:   slog.Default().With("component", "analytics-store"),
	}, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	id := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.postgres {
		id = "id BIGSERIAL PRIMARY KEY"
	}
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS analytics_snapshots (
	`+id+`,
	data        TEXT NOT NULL,
	captured_at BIGINT NOT NULL
)`)
	if err != nil {
		return fmt.Errorf("creating analytics_snapshots: %w", err)
	}
	return nil
}

func (s *Store) placeholder(n int) string {
	if s.postgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (s *Store) SaveSnapshot(ctx context.Context, st analytics.Stats) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	captured := st.CapturedAt
	if captured.IsZero() {
		captured = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO analytics_snapshots (data, captured_at) VALUES (%s, %s)`, s.placeholder(1), s.placeholder(2)),
		string(data), captured.Unix())
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved", "total_searches", st.TotalSearches)
	return nil
}

// LatestSnapshot returns the newest snapshot, or false when there is none.
func (s *Store) LatestSnapshot(ctx context.Context) (analytics.Stats, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return analytics.Stats{}, false, nil
	}
	if err != nil {
		return analytics.Stats{}, false, fmt.Errorf("querying latest snapshot: %w", err)
	}
	var st analytics.Stats
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return analytics.Stats{}, false, fmt.Errorf("decoding snapshot: %w", err)
	}
	return st, true, nil
}

// ListSnapshots returns up to limit snapshots, newest first. Rows that no
// longer decode are skipped.
func (s *Store) ListSnapshots(ctx context.Context, limit int) ([]analytics.Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT data FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT %s`, s.placeholder(1)),
		limit)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()
	var out []analytics.Stats
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		var st analytics.Stats
		if err := json.Unmarshal([]byte(data), &st); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// RunPeriodicSave snapshots agg every interval and once more when ctx ends.
func (s *Store) RunPeriodicSave(ctx context.Context, agg *analytics.Aggregator, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	s.logger.Info("periodic snapshot started", "interval", interval)
	for {
		select {
		case <-ticker.C:
			if err := s.SaveSnapshot(ctx, agg.Stats()); err != nil {
				s.logger.Error("periodic snapshot failed", "error", err)
			}
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.SaveSnapshot(final, agg.Stats()); err != nil {
				s.logger.Error("final snapshot failed", "error", err)
			}
			cancel()
			return
		}
	}
}
