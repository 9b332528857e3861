// Package migrate applies the session schema to a SQLite database.
package migrate

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/logging"
	"github.com/myrjola/cdms/internal/sqlite"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "database",
	Title: "Database",
}

var sqliteURL string

func init() {
	Command.Flags().StringVar(&sqliteURL, "sqlite-url", "./cdms.sqlite", "SQLite session database")
}

var Command = &cobra.Command{
	Use:     "migrate",
	GroupID: "database",
	Short:   "Migrate the session database",
	Long:    "Opens the SQLite session database, applies the schema and prints the number of live sessions.",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := logging.NewLogger(os.Stdout, false)
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second) //nolint:mnd // 30s
		defer cancel()

		start := time.Now()
		count, err := Run(ctx, logger, sqliteURL)
		if err != nil {
			logger.LogAttrs(ctx, slog.LevelError, "migration failed",
				slog.String("url", sqliteURL), errors.SlogError(err))
			return err
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "Migration successful 🙌",
			slog.Int("sessions", count), slog.Duration("duration", time.Since(start)))
		return nil
	},
}

// Run migrates the database at url and returns the number of unexpired sessions in it.
func Run(ctx context.Context, logger *slog.Logger, url string) (int, error) {
	db, err := sqlite.NewDatabase(ctx, url, logger)
	if err != nil {
		return 0, errors.Wrap(err, "open database")
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close database", errors.SlogError(closeErr))
		}
	}()

	count, err := db.CountSessions(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "count sessions")
	}
	return count, nil
}
