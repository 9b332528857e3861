package main

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/myrjola/cdms/cmd/cli/migrate"
	"github.com/myrjola/cdms/cmd/cli/smoketest"
	"github.com/myrjola/cdms/internal/errors"
	"github.com/spf13/cobra"
)

func init() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rootCmd.AddGroup(smoketest.Group, migrate.Group)
	rootCmd.AddCommand(smoketest.Command, migrate.Command)
}

var rootCmd = &cobra.Command{
	Use:          "cdms-cli",
	Long:         `Operational utilities for the CDMS web front end`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
