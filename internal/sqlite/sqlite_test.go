package sqlite_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/myrjola/cdms/internal/sqlite"
	"github.com/myrjola/cdms/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

func TestNewDatabase_sessionStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	db, err := sqlite.NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	count, err := db.CountSessions(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	store := sqlite3store.NewWithCleanupInterval(db.ReadWrite.DB, 0)
	require.NoError(t, store.Commit("live", []byte("payload"), time.Now().Add(time.Hour)))
	require.NoError(t, store.Commit("expired", []byte("payload"), time.Now().Add(-time.Hour)))

	count, err = db.CountSessions(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	manager := scs.New()
	manager.Store = store
	sessionCtx, err := manager.Load(ctx, "")
	require.NoError(t, err)
	manager.Put(sessionCtx, "username", "jane_smith")
	token, _, err := manager.Commit(sessionCtx)
	require.NoError(t, err)

	loaded, err := manager.Load(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "jane_smith", manager.GetString(loaded, "username"))
}

func TestDatabase_Migrate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	db, err := sqlite.NewDatabase(ctx, ":memory:", testhelpers.NewLogger(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	count, err := db.CountSessions(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}
