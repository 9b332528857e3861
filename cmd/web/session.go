package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/sessionstore"
	"github.com/myrjola/cdms/internal/sqlite"
)

const (
	sessionStoreMemory = "memory"
	sessionStoreSQLite = "sqlite"
	sessionStoreRedis  = "redis"
)

// newSessionManager configures the session cookie and opens the session store selected by cfg.
//
// The returned function releases the store and must be called when the server has stopped.
func newSessionManager(ctx context.Context, cfg config, logger *slog.Logger) (*scs.SessionManager, func(), error) {
	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.IdleTimeout = cfg.SessionIdleTimeout
	sessionManager.Cookie.Name = "cdms_session"
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.SameSite = http.SameSiteStrictMode
	sessionManager.Cookie.Secure = cfg.production()
	sessionManager.ErrorFunc = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.LogAttrs(r.Context(), slog.LevelError, "session error", errors.SlogError(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}

	closeStore := func() {}
	switch cfg.SessionStore {
	case sessionStoreMemory:
		store := memstore.NewWithCleanupInterval(time.Hour)
		sessionManager.Store = store
		closeStore = store.StopCleanup
	case sessionStoreSQLite:
		db, err := sqlite.NewDatabase(ctx, cfg.SQLiteURL, logger)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open session database", slog.String("url", cfg.SQLiteURL))
		}
		store := sqlite3store.NewWithCleanupInterval(db.ReadWrite.DB, time.Hour)
		sessionManager.Store = store
		closeStore = func() {
			store.StopCleanup()
			if err = db.Close(); err != nil {
				logger.LogAttrs(ctx, slog.LevelError, "close session database", errors.SlogError(err))
			}
		}
	case sessionStoreRedis:
		client, err := sessionstore.NewRedisClient(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect session redis")
		}
		sessionManager.Store = sessionstore.NewRedisStore(client)
		closeStore = func() {
			if err = client.Close(); err != nil {
				logger.LogAttrs(ctx, slog.LevelError, "close session redis", errors.SlogError(err))
			}
		}
	default:
		return nil, nil, errors.New("unknown session store", slog.String("SESSION_STORE", cfg.SessionStore))
	}
	return sessionManager, closeStore, nil
}
