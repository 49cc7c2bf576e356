package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"voxd/internal/daemon"
	"voxd/internal/logging"
)

// runCmd starts the daemon in the foreground.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the daemon in the foreground",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logging.Initialize(logging.Options{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
	}); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	d, err := daemon.New(cfg, configPath)
	if err != nil {
		return err
	}
	return d.Run(context.Background())
}
