// Package apikey stores gateway API keys in SQLite or PostgreSQL. Raw keys
// are generated with crypto/rand and only their SHA-256 digest is kept, so a
// key is shown once at creation and never again.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

var (
	ErrInvalidKey  = fmt.Errorf("invalid api key: %w", apperrors.ErrUnauthorized)
	ErrExpiredKey  = fmt.Errorf("api key expired: %w", apperrors.ErrUnauthorized)
	ErrKeyNotFound = fmt.Errorf("api key: %w", apperrors.ErrDocumentNotFound)
)

// KeyInfo describes a stored key. RateLimit is requests per minute; zero
// means unlimited. Admin keys may manage other keys.
type KeyInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	RateLimit int        `json:"rate_limit"`
	Admin     bool       `json:"admin"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewKey holds the attributes of a key to create.
type NewKey struct {
	Name      string
	RateLimit int
	Admin     bool
	ExpiresAt *time.Time
}

// Store keeps keys in the api_keys table. Times are Unix seconds so the
// same schema serves both dialects.
type Store struct {
	db       *sql.DB
	postgres bool
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore wraps db; dialect is "sqlite" or "postgres".
func NewStore(db *sql.DB, dialect string) (*Store, error) {
	if dialect != "sqlite" && dialect != "postgres" {
		return nil, fmt.Errorf("api key store dialect %q: %w", dialect, apperrors.ErrInvalidInput)
	}
	return &Store{
		db:       db,
		postgres: dialect == "postgres",
		now:      time.Now,
		logger:   slog.Default().With("component", "apikey-store"),
	}, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS api_keys (
	id         TEXT PRIMARY KEY,
	key_hash   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	rate_limit INTEGER NOT NULL DEFAULT 0,
	admin      INTEGER NOT NULL DEFAULT 0,
	active     INTEGER NOT NULL DEFAULT 1,
	created_at BIGINT NOT NULL,
	expires_at BIGINT
)`)
	if err != nil {
		return fmt.Errorf("creating api_keys: %w", err)
	}
	return nil
}

// bind rewrites ? placeholders for the dialect.
func (s *Store) bind(query string) string {
	if !s.postgres {
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

const keyColumns = `id, name, rate_limit, admin, active, created_at, expires_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(row scanner) (KeyInfo, error) {
	var (
		k             KeyInfo
		admin, active int
		created       int64
		expires       sql.NullInt64
	)
	if err := row.Scan(&k.ID, &k.Name, &k.RateLimit, &admin, &active, &created, &expires); err != nil {
		return KeyInfo{}, err
	}
	k.Admin = admin != 0
	k.Active = active != 0
	k.CreatedAt = time.Unix(created, 0).UTC()
	if expires.Valid {
		t := time.Unix(expires.Int64, 0).UTC()
		k.ExpiresAt = &t
	}
	return k, nil
}

// Validate looks up an active key by its raw value.
func (s *Store) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	if rawKey == "" {
		return nil, ErrInvalidKey
	}
	row := s.db.QueryRowContext(ctx,
		s.bind(`SELECT `+keyColumns+` FROM api_keys WHERE key_hash = ? AND active = 1`),
		HashKey(rawKey))
	k, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	if k.ExpiresAt != nil && !k.ExpiresAt.After(s.now()) {
		return nil, ErrExpiredKey
	}
	return &k, nil
}

// Create stores a new key and returns its raw value with its metadata.
func (s *Store) Create(ctx context.Context, nk NewKey) (string, KeyInfo, error) {
	if strings.TrimSpace(nk.Name) == "" {
		return "", KeyInfo{}, fmt.Errorf("api key name is required: %w", apperrors.ErrInvalidInput)
	}
	if nk.RateLimit < 0 {
		return "", KeyInfo{}, fmt.Errorf("rate limit %d: %w", nk.RateLimit, apperrors.ErrInvalidInput)
	}
	raw, err := generateRawKey()
	if err != nil {
		return "", KeyInfo{}, err
	}
	k := KeyInfo{
		ID:        uuid.NewString(),
		Name:      nk.Name,
		RateLimit: nk.RateLimit,
		Admin:     nk.Admin,
		Active:    true,
		CreatedAt: s.now().UTC().Truncate(time.Second),
		ExpiresAt: nk.ExpiresAt,
	}
	var expires sql.NullInt64
	if nk.ExpiresAt != nil {
		expires = sql.NullInt64{Int64: nk.ExpiresAt.Unix(), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, s.bind(`INSERT INTO api_keys
	(id, key_hash, name, rate_limit, admin, active, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?, 1, ?, ?)`),
		k.ID, HashKey(raw), k.Name, k.RateLimit, boolInt(k.Admin), k.CreatedAt.Unix(), expires)
	if err != nil {
		return "", KeyInfo{}, fmt.Errorf("creating api key: %w", err)
	}
	s.logger.Info("api key created", "id", k.ID, "name", k.Name, "rate_limit", k.RateLimit, "admin", k.Admin)
	return raw, k, nil
}

// Revoke deactivates the key with the given id.
func (s *Store) Revoke(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.bind(`UPDATE api_keys SET active = 0 WHERE id = ? AND active = 1`), id)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrKeyNotFound)
	}
	s.logger.Info("api key revoked", "id", id)
	return nil
}

// List returns the active keys, newest first.
func (s *Store) List(ctx context.Context) ([]KeyInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+keyColumns+` FROM api_keys WHERE active = 1 ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()
	keys := make([]KeyInfo, 0)
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// HashKey returns the SHA-256 hex digest of a raw key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return "bg_" + hex.EncodeToString(b), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
