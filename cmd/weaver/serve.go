package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/questgraph/internal/api"
	"github.com/gyaneshwarpardhi/questgraph/internal/asset"
	"github.com/gyaneshwarpardhi/questgraph/internal/config"
	"github.com/gyaneshwarpardhi/questgraph/internal/session"
	"github.com/gyaneshwarpardhi/questgraph/internal/storage"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, cfg, err := loadConfig(os.Stdout)
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		b, err := openBackend(cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		var registry asset.Registry = asset.NewMemoryRegistry()
		var saved api.WorldLister
		if b.sqlite != nil {
			registry, saved = b.sqlite, b.sqlite
		}

		// ── Writer + sessions ────────────────────────────────────────────────────
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		writer := storage.NewWriter(ctx, b.store, cfg.Storage.QueueDepth,
			time.Duration(cfg.Storage.SaveTimeoutMs)*time.Millisecond)
		mgr := session.NewManager(b.store, registry, writer, session.OptionsFrom(cfg))

		// ── Hot-reload watcher ────────────────────────────────────────────────────
		loader.OnChange(func(newCfg *config.Config) {
			if err := config.Validate(newCfg); err != nil {
				slog.Warn("hot-reload skipped: config invalid", "err", err)
				return
			}
			mgr.Apply(newCfg)
			slog.Info("config hot-reloaded", "quest_types", len(newCfg.QuestTypes),
				"save_debounce_ms", newCfg.Storage.SaveDebounceMs)
		})
		if stopWatch, err := loader.Watch(); err != nil {
			slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}

		// ── HTTP server ───────────────────────────────────────────────────────────
		srv := &http.Server{
			Addr: cfg.Server.Addr,
			Handler: api.New(api.Deps{
				Sessions: mgr,
				Assets:   registry,
				Writer:   writer,
				Loader:   loader,
				Saved:    saved,
			}),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errC := make(chan error, 1)
		go func() {
			slog.Info("server starting", "addr", cfg.Server.Addr, "memory", cfg.Storage.Memory)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errC <- err
			}
		}()

		// ── Graceful shutdown ─────────────────────────────────────────────────────
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case err := <-errC:
			slog.Error("server error", "err", err)
			mgr.CloseAll()
			writer.Drain()
			return err
		}
		slog.Info("shutting down")

		shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutCancel()
		_ = srv.Shutdown(shutCtx)
		mgr.CloseAll() // final save of every open world
		writer.Drain()
		slog.Info("goodbye")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
