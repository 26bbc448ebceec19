package cmd

import (
	"os"

	"github.com/dhruv-db/tic-tac-sub000/internal/config"
	"github.com/dhruv-db/tic-tac-sub000/internal/logger"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tictac",
	Short: "tic-tac CLI",
	Long:  `tic-tac is the backend and client tooling for bexio time tracking`,
}

func Execute(c *config.Config) {
	cfg = c
	logger.Info("Starting CLI", "env", cfg.AppEnv)
	if err := rootCmd.Execute(); err != nil {
		logger.Error("CLI error", "error", err)
		os.Exit(1)
	}
}
