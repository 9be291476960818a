package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/riders-api/riders/config"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete expired cache entries",
	Long: `Delete expired entries from the SQL cache table.

The sqlite and postgres cache backends treat expired rows as misses but do
not remove them. Run this periodically to reclaim space. Redis expires keys
on its own, so the command does nothing for the redis backend.`,
	Args: cobra.NoArgs,
	RunE: runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

// purger is implemented by the SQL cache stores.
type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func runPurge(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	cfg, err := config.FromContext(ctx)
	if err != nil {
		return err
	}

	store, err := openCacheStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	p, ok := store.(purger)
	if !ok {
		slog.Info("nothing to purge", "backend", cfg.Cache.Backend)
		return nil
	}

	slog.Info("starting purge", "backend", cfg.Cache.Backend)

	removed, err := p.PurgeExpired(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("purge timed out after %s: %w", commandTimeout, err)
		}
		return fmt.Errorf("purge: %w", err)
	}

	slog.Info("purge complete", "entries_removed", removed)
	return nil
}
