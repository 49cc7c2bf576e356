package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"voxd/internal/config"
)

var (
	// Global flags
	configPath string
	basePath   string
	verbose    bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "voxd",
	Short: "voxd - dictation session daemon",
	Long: `voxd watches the dictation tool's recording folder, waits for each
session's completion signal, picks exactly one automated response under a
strict priority policy, and executes it while sharing the clipboard with
the dictation tool.

Run "voxd run" to start the daemon; status/arm/trigger talk to a running
daemon over its control socket.`,
}

func main() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(armCmd)
	rootCmd.AddCommand(triggerCmd)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "config file")
	rootCmd.PersistentFlags().StringVar(&basePath, "base", "", "override the watched base path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/voxd/config.yaml"
	}
	return "config.yaml"
}

// loadConfig applies the global flag overrides on top of the file.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if basePath != "" {
		cfg.BasePath = basePath
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}
