package sqlite

import (
	"context"
	"log/slog"
	"time"

	"github.com/myrjola/cdms/internal/errors"
)

// startDatabaseOptimizer runs PRAGMA optimize hourly until ctx is done. See https://www.sqlite.org/pragma.html#pragma_optimize.
func (db *Database) startDatabaseOptimizer(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		db.optimize(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (db *Database) optimize(ctx context.Context) {
	start := time.Now()
	if _, err := db.ReadWrite.ExecContext(ctx, "PRAGMA optimize;"); err != nil {
		if ctx.Err() != nil {
			return
		}
		db.logger.LogAttrs(ctx, slog.LevelError, "failed to optimize session database",
			errors.SlogError(errors.Wrap(err, "optimize")))
		return
	}
	db.logger.LogAttrs(ctx, slog.LevelDebug, "optimized session database",
		slog.Duration("duration", time.Since(start)))
}
