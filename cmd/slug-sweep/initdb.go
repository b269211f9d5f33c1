package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aa-dank/slug-sweep-deduper/sweep"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create a new tracking store and publish it to shared storage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateStore(); err != nil {
			return usageError(err)
		}
		logger, err := newLogger(cfg.Debug)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		store, err := sweep.InitTrackingStore(logger, cfg.Store.LocalPath, cfg.Store.SharedPath)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Sync(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Tracking store created at %s and published to %s\n",
			cfg.Store.LocalPath, cfg.Store.SharedPath)
		return nil
	},
}
