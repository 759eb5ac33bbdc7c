// Command feedcache-prune removes cache entries that have not been written
// for a given time.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/feedcache/internal/config"
	"github.com/Sternrassler/feedcache/pkg/cache"
	"github.com/Sternrassler/feedcache/pkg/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("FEEDCACHE_CONFIG"), "path to YAML config file")
	olderThan := flag.Duration("older-than", 24*time.Hour, "remove entries last updated longer ago than this")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "feedcache-prune: %v\n", err)
		os.Exit(1)
	}
	cfg.SetupLogging()
	logger := logging.NewLogger("prune")

	ctx := context.Background()
	store, err := cfg.OpenStore(ctx)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("Failed to open cache store")
	}
	defer store.Close()

	if err := run(ctx, store, *olderThan, time.Now(), os.Stdout); err != nil {
		logger.Fatal().Err(err).Msg("Prune failed")
	}
}

// run prunes entries updated before now-olderThan and prints the count.
func run(ctx context.Context, store cache.Store, olderThan time.Duration, now time.Time, out io.Writer) error {
	if olderThan <= 0 {
		return fmt.Errorf("older-than must be positive, got %v", olderThan)
	}

	n, err := store.Prune(ctx, now.Add(-olderThan))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "removed %d entries\n", n)
	return nil
}
