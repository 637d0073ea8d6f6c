package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/internal/indexer/indexdir"
	apperrors "github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/errors"
)

func TestRunIndexesCorpusOnce(t *testing.T) {
	root := t.TempDir()
	corpusDir := filepath.Join(root, "corpus")
	indexDir := filepath.Join(root, "index")
	require.NoError(t, os.MkdirAll(corpusDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(corpusDir, "a.txt"), []byte("apple pie"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(corpusDir, "b.txt"), []byte("banana split"), 0o644))

	args := []string{"-index", indexDir, "-corpus", corpusDir, "-title"}
	var stderr bytes.Buffer
	require.NoError(t, run(context.Background(), args, &stderr))

	dir, err := indexdir.OpenPath(indexDir, "", false)
	require.NoError(t, err)
	total, err := dir.TotalDocs()
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, dir.Len())
	require.NoError(t, dir.Close())

	require.NoError(t, run(context.Background(), args, &stderr))
	dir, err = indexdir.OpenPath(indexDir, "", false)
	require.NoError(t, err)
	defer dir.Close()
	assert.Equal(t, 1, dir.Len(), "unchanged documents write no segment")
}

func TestRunUsageErrors(t *testing.T) {
	var stderr bytes.Buffer
	err := run(context.Background(), []string{"-bogus"}, &stderr)
	assert.Equal(t, apperrors.ExitUsage, apperrors.ExitCode(err))

	err = run(context.Background(), []string{"-index", t.TempDir(), "-corpus", t.TempDir(), "-type", "pdf"}, &stderr)
	assert.Equal(t, apperrors.ExitUsage, apperrors.ExitCode(err))
}
