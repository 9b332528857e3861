package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/random"

	_ "embed"
	_ "github.com/mattn/go-sqlite3" // Enable sqlite3 driver
)

//go:embed schema.sql
var schemaDefinition string

// Database holds the session database used by scs/sqlite3store.
type Database struct {
	ReadWrite *sqlx.DB
	ReadOnly  *sqlx.DB
	logger    *slog.Logger
}

// NewDatabase connects to the session database and synchronizes its schema.
//
// Writes go through a single connection and reads through a pool, see
// https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995.
//
// The url is the path to the SQLite database file or ":memory:" for a private in-memory database.
func NewDatabase(ctx context.Context, url string, logger *slog.Logger) (*Database, error) {
	db, err := connect(url, logger)
	if err != nil {
		return nil, err
	}

	if err = db.migrate(ctx, schemaDefinition); err != nil {
		return nil, errors.Wrap(err, "synchronize schema")
	}

	go db.startDatabaseOptimizer(ctx)

	return db, nil
}

func connect(url string, logger *slog.Logger) (*Database, error) {
	var (
		err         error
		readWriteDB *sqlx.DB
		readDB      *sqlx.DB
	)

	// Every in-memory database gets a random name so that parallel tests don't share sessions.
	// Shared cache lets the read and write pools see the same data. See https://www.sqlite.org/inmemorydb.html.
	memoryConfig := ""
	if strings.Contains(url, ":memory:") {
		var name string
		if name, err = random.Letters(20); err != nil { //nolint:mnd // name length
			return nil, errors.Wrap(err, "generate database name")
		}
		url = name
		memoryConfig = "&mode=memory&cache=shared"
	}

	// Underscore options are pragmas, https://www.sqlite.org/pragma.html.
	pragmas := strings.Join([]string{
		"_journal_mode=wal",
		"_busy_timeout=5000",
		"_synchronous=normal",
		"_foreign_keys=on",
		"_temp_store=memory",
	}, "&")
	readWriteDSN := fmt.Sprintf("file:%s?mode=rwc&_txlock=immediate&%s%s", url, pragmas, memoryConfig)
	readDSN := fmt.Sprintf("file:%s?mode=ro&_txlock=deferred&_query_only=true&%s%s", url, pragmas, memoryConfig)
	if memoryConfig != "" {
		// mode=memory replaces both rwc and ro.
		readWriteDSN = fmt.Sprintf("file:%s?_txlock=immediate&%s%s", url, pragmas, memoryConfig)
		readDSN = fmt.Sprintf("file:%s?_txlock=deferred&_query_only=true&%s%s", url, pragmas, memoryConfig)
	}

	if readWriteDB, err = sqlx.Open("sqlite3", readWriteDSN); err != nil {
		return nil, errors.Wrap(err, "open read-write database")
	}
	readWriteDB.SetMaxOpenConns(1)
	readWriteDB.SetMaxIdleConns(1)
	readWriteDB.SetConnMaxLifetime(time.Hour)
	readWriteDB.SetConnMaxIdleTime(time.Hour)

	if readDB, err = sqlx.Open("sqlite3", readDSN); err != nil {
		return nil, errors.Wrap(err, "open read database")
	}
	maxReadConns := 10
	readDB.SetMaxOpenConns(maxReadConns)
	readDB.SetMaxIdleConns(maxReadConns)
	readDB.SetConnMaxLifetime(time.Hour)
	readDB.SetConnMaxIdleTime(time.Hour)

	return &Database{
		ReadWrite: readWriteDB,
		ReadOnly:  readDB,
		logger:    logger,
	}, nil
}

// CountSessions returns the number of sessions that have not expired yet.
func (db *Database) CountSessions(ctx context.Context) (int, error) {
	var count int
	// scs/sqlite3store stores expiry as a julian day number.
	if err := db.ReadOnly.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM sessions WHERE julianday('now') < expiry"); err != nil {
		return 0, errors.Wrap(err, "count sessions")
	}
	return count, nil
}

// Close closes both connection pools.
func (db *Database) Close() error {
	return errors.Join(db.ReadWrite.Close(), db.ReadOnly.Close())
}
