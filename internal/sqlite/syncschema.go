package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/random"
)

// Migrate synchronizes the database with the embedded session schema.
func (db *Database) Migrate(ctx context.Context) error {
	return db.migrate(ctx, schemaDefinition)
}

// migrate makes the live schema match target using a declarative migration:
//
//  1. tables missing from target are dropped,
//  2. tables missing from the live schema are created,
//  3. changed tables are rebuilt with the 12-step procedure at https://www.sqlite.org/lang_altertable.html#otheralter.
//
// Indexes and triggers are replaced wholesale afterwards.
// Based on https://david.rothlis.net/declarative-schema-migration-for-sqlite/.
func (db *Database) migrate(ctx context.Context, target string) (err error) {
	if _, err = db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return errors.Wrap(err, "disable foreign keys")
	}
	defer func() {
		if _, fkErr := db.ReadWrite.ExecContext(ctx, "PRAGMA foreign_keys = ON"); fkErr != nil {
			err = errors.Join(err, errors.Wrap(fkErr, "re-enable foreign keys"))
		}
	}()

	// The target schema is built in a scratch database and attached so that the two can be diffed in SQL.
	var name string
	if name, err = random.Letters(20); err != nil { //nolint:mnd // name length
		return errors.Wrap(err, "generate scratch database name")
	}
	scratchDSN := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	var scratch *sqlx.DB
	if scratch, err = sqlx.Open("sqlite3", scratchDSN); err != nil {
		return errors.Wrap(err, "open scratch database")
	}
	defer func() {
		if closeErr := scratch.Close(); closeErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "close scratch database",
				errors.SlogError(errors.Wrap(closeErr, "close")))
		}
	}()
	if _, err = scratch.ExecContext(ctx, target); err != nil {
		return errors.Wrap(err, "apply target schema", slog.String("schema", target))
	}
	// The read-write pool has a single connection so the attachment outlives the transaction below.
	if _, err = db.ReadWrite.ExecContext(ctx, "ATTACH DATABASE ? AS desired", scratchDSN); err != nil {
		return errors.Wrap(err, "attach target schema")
	}
	defer func() {
		if _, detachErr := db.ReadWrite.ExecContext(ctx, "DETACH DATABASE desired"); detachErr != nil {
			db.logger.LogAttrs(ctx, slog.LevelError, "detach target schema",
				errors.SlogError(errors.Wrap(detachErr, "detach")))
		}
	}()

	var tx *sqlx.Tx
	if tx, err = db.ReadWrite.BeginTxx(ctx, nil); err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			db.logger.LogAttrs(ctx, slog.LevelError, "rollback migration",
				errors.SlogError(errors.Wrap(rbErr, "rollback")))
		}
	}()

	if err = db.migrateTables(ctx, tx); err != nil {
		return errors.Wrap(err, "migrate tables")
	}
	if err = db.migrateIndexesAndTriggers(ctx, tx); err != nil {
		return errors.Wrap(err, "migrate indexes and triggers")
	}

	var violations []string
	if err = tx.SelectContext(ctx, &violations, "SELECT \"table\" FROM pragma_foreign_key_check"); err != nil {
		return errors.Wrap(err, "foreign key check")
	}
	if len(violations) > 0 {
		return errors.New("foreign key violations", slog.Any("tables", violations))
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit migration")
	}
	return nil
}

type changedTable struct {
	Name       string `db:"name"`
	CurrentSQL string `db:"current_sql"`
	TargetSQL  string `db:"target_sql"`
}

func (db *Database) migrateTables(ctx context.Context, tx *sqlx.Tx) error {
	var dropped []string
	if err := tx.SelectContext(ctx, &dropped, `SELECT live.name
FROM main.sqlite_schema AS live
LEFT JOIN desired.sqlite_schema AS t ON t.name = live.name AND t.type = live.type
WHERE live.type = 'table' AND t.type IS NULL AND live.name NOT LIKE 'sqlite_%'`); err != nil {
		return errors.Wrap(err, "query dropped tables")
	}
	for _, table := range dropped {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping table", slog.String("table", table))
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %q", table)); err != nil {
			return errors.Wrap(err, "drop table", slog.String("table", table))
		}
	}

	var created []string
	if err := tx.SelectContext(ctx, &created, `SELECT t.sql
FROM desired.sqlite_schema AS t
LEFT JOIN main.sqlite_schema AS live ON live.name = t.name AND live.type = t.type
WHERE t.type = 'table' AND live.type IS NULL AND t.name NOT LIKE 'sqlite_%'`); err != nil {
		return errors.Wrap(err, "query new tables")
	}
	for _, query := range created {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating table", slog.String("query", query))
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "create table", slog.String("query", query))
		}
	}

	var changed []changedTable
	if err := tx.SelectContext(ctx, &changed, `SELECT live.name AS name, live.sql AS current_sql, t.sql AS target_sql
FROM main.sqlite_schema AS live
JOIN desired.sqlite_schema AS t ON t.name = live.name AND t.type = live.type
WHERE live.type = 'table' AND live.name NOT LIKE 'sqlite_%' AND live.sql <> t.sql`); err != nil {
		return errors.Wrap(err, "query changed tables")
	}
	for _, table := range changed {
		if err := db.rebuildTable(ctx, tx, table); err != nil {
			return errors.Wrap(err, "rebuild table", slog.String("table", table.Name))
		}
	}
	return nil
}

// rebuildTable copies the columns the old and new definitions share into a table created from the new one.
func (db *Database) rebuildTable(ctx context.Context, tx *sqlx.Tx, table changedTable) error {
	db.logger.LogAttrs(ctx, slog.LevelInfo, "rebuilding table",
		slog.String("table", table.Name),
		slog.String("current_sql", table.CurrentSQL),
		slog.String("target_sql", table.TargetSQL))

	tempName := table.Name + "_migration_temp"
	if _, err := tx.ExecContext(ctx, strings.Replace(table.TargetSQL, table.Name, tempName, 1)); err != nil {
		return errors.Wrap(err, "create temporary table")
	}

	// Quoted so that columns named after keywords survive.
	var columns []string
	if err := tx.SelectContext(ctx, &columns, `SELECT '"' || t.name || '"'
FROM pragma_table_info(:table_name) AS live
JOIN pragma_table_info(:table_name, 'desired') AS t ON t.name = live.name`, sql.Named("table_name", table.Name)); err != nil {
		return errors.Wrap(err, "query shared columns")
	}
	if len(columns) > 0 {
		shared := strings.Join(columns, ", ")
		copySQL := fmt.Sprintf("INSERT INTO %q (%s) SELECT %s FROM %q", tempName, shared, shared, table.Name)
		if _, err := tx.ExecContext(ctx, copySQL); err != nil {
			return errors.Wrap(err, "copy rows", slog.String("query", copySQL))
		}
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE %q", table.Name)); err != nil {
		return errors.Wrap(err, "drop old table")
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %q RENAME TO %q", tempName, table.Name)); err != nil {
		return errors.Wrap(err, "rename temporary table")
	}
	return nil
}

// migrateIndexesAndTriggers drops every index and trigger whose definition differs from target and recreates it.
func (db *Database) migrateIndexesAndTriggers(ctx context.Context, tx *sqlx.Tx) error {
	type object struct {
		Type string `db:"type"`
		Name string `db:"name"`
	}
	var stale []object
	if err := tx.SelectContext(ctx, &stale, `SELECT live.type AS type, live.name AS name
FROM main.sqlite_schema AS live
LEFT JOIN desired.sqlite_schema AS t ON t.name = live.name AND t.type = live.type
WHERE live.type IN ('index', 'trigger') AND live.sql IS NOT NULL AND (t.sql IS NULL OR t.sql <> live.sql)`); err != nil {
		return errors.Wrap(err, "query stale objects")
	}
	for _, o := range stale {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "dropping "+o.Type, slog.String("name", o.Name))
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP %s IF EXISTS %q", strings.ToUpper(o.Type), o.Name)); err != nil {
			return errors.Wrap(err, "drop object", slog.String("name", o.Name))
		}
	}

	var missing []string
	if err := tx.SelectContext(ctx, &missing, `SELECT t.sql
FROM desired.sqlite_schema AS t
LEFT JOIN main.sqlite_schema AS live ON live.name = t.name AND live.type = t.type
WHERE t.type IN ('index', 'trigger') AND t.sql IS NOT NULL AND live.type IS NULL`); err != nil {
		return errors.Wrap(err, "query missing objects")
	}
	for _, query := range missing {
		db.logger.LogAttrs(ctx, slog.LevelInfo, "creating object", slog.String("query", query))
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return errors.Wrap(err, "create object", slog.String("query", query))
		}
	}
	return nil
}
