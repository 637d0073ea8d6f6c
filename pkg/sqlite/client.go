// Package sqlite opens SQLite databases through the pure Go (wasm) driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Client owns a SQLite connection pool.
type Client struct {
	DB *sql.DB
}

// New opens the database at cfg.Path. An in-memory database is limited to a
// single connection so every query sees the same data.
func New(ctx context.Context, cfg config.SQLiteConfig) (*Client, error) {
	dsn := cfg.Path
	if cfg.Path != MemoryPath {
		q := url.Values{}
		q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
		q.Add("_pragma", "journal_mode(wal)")
		dsn = "file:" + cfg.Path + "?" + q.Encode()
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", cfg.Path, err)
	}
	if cfg.Path == MemoryPath {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening sqlite database %s: %w", cfg.Path, err)
	}
	return &Client{DB: db}, nil
}

// Memory opens a private in-memory database.
func Memory(ctx context.Context) (*Client, error) {
	return New(ctx, config.SQLiteConfig{Path: MemoryPath})
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *Client) Close() error {
	return c.DB.Close()
}
