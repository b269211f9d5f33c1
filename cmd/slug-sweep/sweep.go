package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/aa-dank/slug-sweep-deduper/sweep"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep <location>",
	Short: "Review and remove duplicate files under a location",
	Long: `Sweep queries the archives database for duplicate files under the given
location (a path under the file server mount) and walks through them
interactively. Deletions go through the archives app; every decision lands in
the tracking store, which is republished to shared storage as the review
runs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd, args[0])
	},
}

func runSweep(cmd *cobra.Command, location string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return usageError(err)
	}
	if info, err := os.Stat(location); err != nil {
		return fmt.Errorf("location does not exist: %s", location)
	} else if !info.IsDir() {
		return fmt.Errorf("location is not a directory: %s", location)
	}
	logger, err := newLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sweep.OpenTrackingStore(logger, cfg.Store.LocalPath, cfg.Store.SharedPath)
	if err != nil {
		if errors.Is(err, sweep.ErrStoreUnavailable) {
			return fmt.Errorf("%w; run 'slug-sweep init-db' first", err)
		}
		return err
	}
	defer store.Close()

	pool, err := pgxpool.New(ctx, cfg.ArchiveDB.DSN())
	if err != nil {
		return fmt.Errorf("connect archive database: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("connect archive database: %w", err)
	}

	translator, err := sweep.NewPathTranslator(cfg.Mount)
	if err != nil {
		return usageError(err)
	}
	filters, err := sweep.FiltersByName(cfg.Filters)
	if err != nil {
		return usageError(err)
	}

	session, err := sweep.NewSession(sweep.SessionConfig{
		Store:      store,
		Index:      sweep.NewArchiveIndex(pool),
		Gateway:    sweep.NewArchivesClient(cfg.ArchivesApp.URL, cfg.ArchivesApp.User, cfg.ArchivesApp.Password, cfg.ArchivesApp.InsecureSkipVerify),
		Translator: translator,
		Filters:    filters,
		Prompter:   sweep.NewConsolePrompter(os.Stdin, os.Stdout),
		Out:        os.Stdout,
		Logger:     logger,

		SyncInterval: time.Duration(cfg.SyncInterval),
	})
	if err != nil {
		return err
	}
	return session.Run(ctx, location)
}
