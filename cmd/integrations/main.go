package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Seann-Moser/integrations/config"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "integrations",
	Short:         "OAuth connect flow and item loading for CRM providers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Printf("integrations version %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads and validates the environment and sets up the default logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(nil)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
