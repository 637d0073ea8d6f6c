package corpus

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

// SQL dialects understood by SQLCorpus.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Record is one document row.
type Record struct {
	Location string
	Title    string
	Body     []byte
	ModTime  int64
	Labels   []string
	DocType  string
}

// SQLCorpus reads documents from a table with the layout
//
//	CREATE TABLE documents (
//	    location     TEXT PRIMARY KEY,
//	    title        TEXT NOT NULL DEFAULT '',
//	    body         TEXT NOT NULL,
//	    mtime        BIGINT NOT NULL,
//	    labels       TEXT NOT NULL DEFAULT '',
//	    doc_type     TEXT NOT NULL DEFAULT '',
//	    content_hash TEXT NOT NULL DEFAULT ''
//	);
//
// It works against SQLite and PostgreSQL.
type SQLCorpus struct {
	db       *sql.DB
	dialect  string
	table    string
	docType  DocType
	encoding string
	logger   *slog.Logger
}

func NewSQL(db *sql.DB, dialect, table string, docType DocType, encoding string) (*SQLCorpus, error) {
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("sql dialect %q: %w", dialect, apperrors.ErrInvalidInput)
	}
	if table == "" {
		table = "documents"
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("table name %q: %w", table, apperrors.ErrInvalidInput)
	}
	if docType == nil {
		docType = NewPlainText
	}
	return &SQLCorpus{
		db:       db,
		dialect:  dialect,
		table:    table,
		docType:  docType,
		encoding: encoding,
		logger:   slog.Default().With("component", "sql-corpus", "table", table),
	}, nil
}

// bind rewrites ? placeholders for the dialect.
func (c *SQLCorpus) bind(query string) string {
	if c.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EnsureSchema creates the documents table when it is missing.
func (c *SQLCorpus) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	location     TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	body         TEXT NOT NULL,
	mtime        BIGINT NOT NULL,
	labels       TEXT NOT NULL DEFAULT '',
	doc_type     TEXT NOT NULL DEFAULT '',
	content_hash TEXT NOT NULL DEFAULT ''
)`, c.table)
	if _, err := c.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("creating table %s: %w", c.table, err)
	}
	return nil
}

// ContentHash fingerprints a record's indexable content.
func ContentHash(r Record) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00", r.Title, strings.Join(r.Labels, ","), r.DocType)
	h.Write(r.Body)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Put upserts a record. It reports false when an identical record with the
// same modification time is already stored.
func (c *SQLCorpus) Put(ctx context.Context, r Record) (bool, error) {
	hash := ContentHash(r)
	var oldHash string
	var oldMTime int64
	err := c.db.QueryRowContext(ctx,
		c.bind(fmt.Sprintf(`SELECT content_hash, mtime FROM %s WHERE location = ?`, c.table)),
		r.Location).Scan(&oldHash, &oldMTime)
	switch {
	case err == nil && oldHash == hash && oldMTime == r.ModTime:
		return false, nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("looking up %s: %w", r.Location, err)
	}
	_, err = c.db.ExecContext(ctx, c.bind(fmt.Sprintf(`INSERT INTO %s
	(location, title, body, mtime, labels, doc_type, content_hash)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (location) DO UPDATE SET
	title = excluded.title, body = excluded.body, mtime = excluded.mtime,
	labels = excluded.labels, doc_type = excluded.doc_type, content_hash = excluded.content_hash`, c.table)),
		r.Location, r.Title, string(r.Body), r.ModTime, strings.Join(r.Labels, ","), r.DocType, hash)
	if err != nil {
		return false, fmt.Errorf("storing %s: %w", r.Location, err)
	}
	c.logger.Debug("document stored", "location", r.Location)
	return true, nil
}

// Get loads the record at loc.
func (c *SQLCorpus) Get(ctx context.Context, loc string) (Record, error) {
	r := Record{Location: loc}
	var body, labels string
	err := c.db.QueryRowContext(ctx,
		c.bind(fmt.Sprintf(`SELECT title, body, mtime, labels, doc_type FROM %s WHERE location = ?`, c.table)),
		loc).Scan(&r.Title, &body, &r.ModTime, &labels, &r.DocType)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%s: %w", loc, apperrors.ErrLocationNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("loading %s: %w", loc, err)
	}
	r.Body = []byte(body)
	if labels != "" {
		r.Labels = strings.Split(labels, ",")
	}
	return r, nil
}

func (c *SQLCorpus) source(ctx context.Context, loc string) (Source, error) {
	r, err := c.Get(ctx, loc)
	if err != nil {
		return Source{}, err
	}
	return Source{Location: loc, Title: r.Title, ModTime: r.ModTime, Encoding: c.encoding, Data: r.Body}, nil
}

// Document builds the stored record with its own document type, or the
// corpus default when none was recorded.
func (c *SQLCorpus) Document(ctx context.Context, loc string) (Document, error) {
	r, err := c.Get(ctx, loc)
	if err != nil {
		return nil, err
	}
	docType := c.docType
	if r.DocType != "" {
		if dt, err := ParseDocType(r.DocType); err == nil {
			docType = dt
		}
	}
	src := Source{Location: loc, Title: r.Title, ModTime: r.ModTime, Encoding: c.encoding, Data: r.Body}
	doc, err := docType(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", loc, apperrors.ErrDocumentParse, err)
	}
	return doc, nil
}

func (c *SQLCorpus) Exists(ctx context.Context, loc string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		c.bind(fmt.Sprintf(`SELECT 1 FROM %s WHERE location = ?`, c.table)), loc).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", loc, err)
	}
	return true, nil
}

func (c *SQLCorpus) ModifiedTime(ctx context.Context, loc string) (int64, error) {
	var mtime int64
	err := c.db.QueryRowContext(ctx,
		c.bind(fmt.Sprintf(`SELECT mtime FROM %s WHERE location = ?`, c.table)), loc).Scan(&mtime)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", loc, apperrors.ErrLocationNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("loading mtime of %s: %w", loc, err)
	}
	return mtime, nil
}

func (c *SQLCorpus) Labels(ctx context.Context, loc string) ([]string, error) {
	r, err := c.Get(ctx, loc)
	if err != nil {
		return nil, err
	}
	return r.Labels, nil
}

// Locations lists stored locations, oldest modification first.
func (c *SQLCorpus) Locations(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT location FROM %s ORDER BY mtime, location`, c.table))
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()
	var locs []string
	for rows.Next() {
		var loc string
		if err := rows.Scan(&loc); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locs = append(locs, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	return locs, nil
}
