// Package smoketest walks through a deployed front end like a user would.
package smoketest

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/myrjola/cdms/internal/e2etest"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/myrjola/cdms/internal/logging"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "smoketest",
	Title: "Smoke testing",
}

var (
	username string
	password string
	timeout  time.Duration
)

func init() {
	Command.Flags().StringVar(&username, "username", "john_doe", "user to log in as")
	Command.Flags().StringVar(&password, "password", "password", "password of the user")
	Command.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "time budget for the whole run") //nolint:mnd // 30s
}

var Command = &cobra.Command{
	Use:     "smoketest <url>",
	GroupID: "smoketest",
	Short:   "Log in, browse and log out",
	Long:    "Logs in through the HTML forms, visits the dashboard, cases and records pages and logs out.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLogger(os.Stdout, false)
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		ctx = logging.WithAttrs(ctx, slog.String("url", args[0]))

		start := time.Now()
		if err := Run(ctx, logger, args[0], username, password); err != nil {
			logger.LogAttrs(ctx, slog.LevelError, "smoke test failed", errors.SlogError(err))
			return err
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "Smoke test successful 🙌", slog.Duration("duration", time.Since(start)))
		return nil
	},
}

// Run logs in as username, checks that the authenticated pages render and logs out again.
func Run(ctx context.Context, logger *slog.Logger, url, username, password string) error {
	client, err := e2etest.NewClient(url)
	if err != nil {
		return errors.Wrap(err, "new client")
	}
	if err = client.WaitForReady(ctx, "/api/healthy"); err != nil {
		return errors.Wrap(err, "wait for ready")
	}

	page, err := client.Login(ctx, username, password)
	if err != nil {
		return errors.Wrap(err, "login")
	}
	if page.Status != http.StatusOK || page.URL.Path != "/dashboard" {
		return errors.New("login did not reach the dashboard",
			slog.Int("status", page.Status), slog.String("path", page.URL.Path))
	}
	logger.LogAttrs(ctx, slog.LevelDebug, "logged in", slog.String("username", username))

	for _, path := range []string{"/dashboard", "/cases", "/records", "/profile"} {
		if _, err = client.GetDoc(ctx, path); err != nil {
			return errors.Wrap(err, "visit page", slog.String("path", path))
		}
		logger.LogAttrs(ctx, slog.LevelDebug, "visited page", slog.String("path", path))
	}

	if _, err = client.Logout(ctx); err != nil {
		return errors.Wrap(err, "logout")
	}
	if page, err = client.GetPage(ctx, "/dashboard"); err != nil {
		return errors.Wrap(err, "visit dashboard after logout")
	}
	if page.URL.Path != "/auth/login" {
		return errors.New("session survived logout", slog.String("path", page.URL.Path))
	}
	return nil
}
