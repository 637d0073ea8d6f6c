package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/sqlite"
)

func TestOpenSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.SQLite.Path = sqlite.MemoryPath
	db, closeDB, err := Open(context.Background(), cfg, "sqlite")
	require.NoError(t, err)
	defer closeDB()
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestOpenRejectsDialect(t *testing.T) {
	_, _, err := Open(context.Background(), config.Default(), "mysql")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
