package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Bigram-Search-Engine/pkg/logger"
)

func TestSpanTree(t *testing.T) {
	ctx := logger.WithRequestID(context.Background(), "req-1")
	ctx, root := Start(ctx, "search")
	assert.Equal(t, "req-1", root.TraceID)

	childCtx, child := Start(ctx, "select")
	child.SetAttr("found", 3)
	_, grandchild := Start(childCtx, "narrow")
	grandchild.End()
	child.End()
	root.End()

	assert.Same(t, root, FromContext(ctx))
	require.Len(t, root.Children(), 1)
	assert.Same(t, child, root.Children()[0])
	assert.Equal(t, "req-1", grandchild.TraceID)
	assert.GreaterOrEqual(t, root.Duration, child.Duration)

	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	root.Log(ctx, l)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "span=search")
	assert.Contains(t, lines[1], "span=select")
	assert.Contains(t, lines[1], "found=3")
	assert.Contains(t, lines[2], "depth=2")
}

func TestSpanWithoutRequestID(t *testing.T) {
	_, s := Start(context.Background(), "merge")
	assert.NotEmpty(t, s.TraceID)
	assert.Nil(t, FromContext(context.Background()))
}

func TestLogSkippedAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, s := Start(context.Background(), "search")
	s.End()
	s.Log(ctx, l)
	assert.Empty(t, buf.String())
}
