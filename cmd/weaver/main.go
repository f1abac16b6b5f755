package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/questgraph/internal/config"
	"github.com/gyaneshwarpardhi/questgraph/internal/storage"
)

var (
	cfgPath  string
	dbPath   string
	inMemory bool
	jsonOut  bool
)

var rootCmd = &cobra.Command{
	Use:           "weaver",
	Short:         "Quest graph editor backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to weaver YAML config")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the sqlite database (overrides config and "+config.EnvDBPath+")")
	rootCmd.PersistentFlags().BoolVar(&inMemory, "memory", false, "Keep worlds in memory only")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Print JSON instead of text")
}

// loadConfig reads --config, applies --db/--memory and validates the result.
// Logs go to logOut at the configured level.
func loadConfig(logOut io.Writer) (*config.Loader, *config.Config, error) {
	loader, err := config.NewLoader(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	cfg := loader.Config()
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	if inMemory {
		cfg.Storage.Memory = true
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()})))
	return loader, cfg, nil
}

// backend is the persistence picked by config: sqlite, or memory for both
// snapshots and assets.
type backend struct {
	store  storage.Store
	sqlite *storage.SQLite
}

func openBackend(cfg *config.Config) (*backend, error) {
	if cfg.Storage.Memory {
		return &backend{store: storage.NewMemory()}, nil
	}
	db, err := storage.OpenSQLite(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	return &backend{store: db, sqlite: db}, nil
}

func (b *backend) Close() error { return b.store.Close() }
