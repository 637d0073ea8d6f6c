package corpus

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/sqlite"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/storage"
)

// Open builds the corpus selected by cfg.Corpus.Type. The returned close
// function releases database connections.
func Open(ctx context.Context, cfg *config.Config) (Corpus, func() error, error) {
	if cfg.Corpus.Type != "fs" {
		return OpenSQL(ctx, cfg)
	}
	docType, err := ParseDocType(cfg.Indexer.DocType)
	if err != nil {
		return nil, nil, err
	}
	fsys, err := storage.OS(cfg.Corpus.Dir, false)
	if err != nil {
		return nil, nil, fmt.Errorf("opening corpus: %w", err)
	}
	return NewFilesystem(fsys, docType, cfg.Indexer.Encoding, false), func() error { return nil }, nil
}

// OpenSQL connects to the SQLite or PostgreSQL corpus and creates its table
// when missing.
func OpenSQL(ctx context.Context, cfg *config.Config) (*SQLCorpus, func() error, error) {
	docType, err := ParseDocType(cfg.Indexer.DocType)
	if err != nil {
		return nil, nil, err
	}
	var (
		c       *SQLCorpus
		closeFn func() error
	)
	switch cfg.Corpus.Type {
	case DialectSQLite:
		client, err := sqlite.New(ctx, cfg.SQLite)
		if err != nil {
			return nil, nil, err
		}
		closeFn = client.Close
		c, err = NewSQL(client.DB, DialectSQLite, cfg.Corpus.Table, docType, cfg.Indexer.Encoding)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
	case DialectPostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		closeFn = client.Close
		c, err = NewSQL(client.DB, DialectPostgres, cfg.Corpus.Table, docType, cfg.Indexer.Encoding)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("corpus type %q is not a database", cfg.Corpus.Type)
	}
	if err := c.EnsureSchema(ctx); err != nil {
		closeFn()
		return nil, nil, err
	}
	return c, closeFn, nil
}

// Ping checks the database connection.
func (c *SQLCorpus) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
