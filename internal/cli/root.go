// Package cli is the publisher command tree: version and build
// lifecycle, policy updates, publishing, manifest regeneration, update
// checks, and the serve mode.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Nika0000/publisher-cli/internal/blob"
	"github.com/Nika0000/publisher-cli/internal/config"
	"github.com/Nika0000/publisher-cli/internal/database"
	"github.com/Nika0000/publisher-cli/internal/release"
)

var (
	channel string
	svc     *release.Service
)

var rootCmd = &cobra.Command{
	Use:   "publisher",
	Short: "Release management for the application auto-update service",
	Long: `publisher tracks versioned builds across platforms and channels,
assigns rollout policies, and produces the manifests client updaters
poll to decide whether to self-update.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&channel, "channel", "stable", "release channel (stable, beta, alpha)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(regenerateCmd)
	rootCmd.AddCommand(checkUpdateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
}

// ensureService connects the store lazily so commands that don't touch
// it (token) work without a database.
func ensureService() error {
	if svc != nil {
		return nil
	}
	if err := config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := database.Connect(config.Current.DatabaseURL); err != nil {
		return fmt.Errorf("database connect: %w", err)
	}
	if err := database.AutoMigrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	store, err := blob.NewFSStore(config.Current.StorageDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	svc = release.NewService(database.DB, store, slog.Default())
	return nil
}

func warn(warnings []string) {
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}
