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

var syncServerURL string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh the local cache from bexio",
	Long:  `Fetches contacts, projects, and time entries and replaces the local cache.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		store := credstore.NewFileStore(credstore.DefaultPath())
		manager := bexio.NewTokenManager(store, &bexio.HTTPRefresher{BaseURL: syncServerURL})
		client := bexio.NewClient(syncServerURL, manager)

		dbService, err := db.NewService(cfg)
		if err != nil {
			return fmt.Errorf("failed to open cache database: %w", err)
		}
		defer func() { _ = dbService.Close() }()
		repo := repository.NewRepository(dbService)

		contacts, err := client.ListContacts(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch contacts: %w", err)
		}
		if err := repo.Contacts().ReplaceAll(ctx, contacts); err != nil {
			return fmt.Errorf("failed to cache contacts: %w", err)
		}

		projects, err := client.ListProjects(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch projects: %w", err)
		}
		if err := repo.Projects().ReplaceAll(ctx, projects); err != nil {
			return fmt.Errorf("failed to cache projects: %w", err)
		}

		entries, err := client.ListTimeEntries(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch time entries: %w", err)
		}
		if err := repo.TimeEntries().ReplaceAll(ctx, entries); err != nil {
			return fmt.Errorf("failed to cache time entries: %w", err)
		}

		logger.Info("Cache synced",
			"contacts", len(contacts),
			"projects", len(projects),
			"timeEntries", len(entries))
		fmt.Printf("Synced %d contacts, %d projects, %d time entries\n",
			len(contacts), len(projects), len(entries))
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncServerURL, "server", "http://localhost:3000", "tic-tac server base URL")
	rootCmd.AddCommand(syncCmd)
}
