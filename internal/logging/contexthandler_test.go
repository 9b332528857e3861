package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/myrjola/cdms/internal/logging"
	"github.com/stretchr/testify/require"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, false).With(slog.String("source", "test"))

	ctx := logging.WithAttrs(context.Background(), slog.String("user", "jane_smith"))
	sibling := logging.WithAttrs(ctx, slog.String("request", "a"))
	ctx = logging.WithAttrs(ctx, slog.String("request", "b"))

	logger.InfoContext(ctx, "hello")
	out := buf.String()
	require.Contains(t, out, "user=jane_smith")
	require.Contains(t, out, "request=b")
	require.Contains(t, out, "source=test")
	require.NotContains(t, out, "request=a")

	buf.Reset()
	logger.InfoContext(sibling, "sibling")
	require.Contains(t, buf.String(), "request=a")
}

func TestNewLoggerProduction(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, true)
	logger.Debug("hidden")
	require.Empty(t, buf.String())
	logger.Info("shown")
	require.Contains(t, buf.String(), `"msg":"shown"`)
}
