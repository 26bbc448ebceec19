package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhruv-db/tic-tac-sub000/internal/db"
	"github.com/dhruv-db/tic-tac-sub000/internal/logger"
	"github.com/dhruv-db/tic-tac-sub000/internal/repository"
	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio"
	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio/credstore"
)

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Remove the stored credential and wipe the local cache",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store := credstore.NewFileStore(credstore.DefaultPath())
		manager := bexio.NewTokenManager(store, nil)
		if err := manager.Disconnect(); err != nil {
			return fmt.Errorf("failed to clear credential: %w", err)
		}

		dbService, err := db.NewService(cfg)
		if err != nil {
			return fmt.Errorf("failed to open cache database: %w", err)
		}
		defer func() { _ = dbService.Close() }()

		if err := repository.NewRepository(dbService).Wipe(cmd.Context()); err != nil {
			return fmt.Errorf("failed to wipe cache: %w", err)
		}

		logger.Info("Disconnected")
		fmt.Println("Credential removed and local cache wiped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(disconnectCmd)
}
