package migrate_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/myrjola/cdms/cmd/cli/migrate"
	"github.com/myrjola/cdms/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	ctx := context.Background()
	logger := testhelpers.NewLogger(io.Discard)
	url := filepath.Join(t.TempDir(), "sessions.sqlite")

	count, err := migrate.Run(ctx, logger, url)
	require.NoError(t, err)
	require.Zero(t, count)

	// Migrating an up to date database is a no-op.
	count, err = migrate.Run(ctx, logger, url)
	require.NoError(t, err)
	require.Zero(t, count)
}
