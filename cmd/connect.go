package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dhruv-db/tic-tac-sub000/internal/logger"
	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio"
	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio/credstore"
)

var connectServerURL string

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Authorize against bexio and store the credential",
	Long: `Starts the browser-based authorization flow. The command prints the
authorization URL, waits for the sign-in to finish, and stores the
resulting credential under ~/.tictac.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flow := &bexio.AuthFlow{BaseURL: connectServerURL}
		ctx := cmd.Context()

		result, err := flow.Initiate(ctx, connectServerURL+"/api/oauth/callback", "web")
		if err != nil {
			return fmt.Errorf("failed to initiate authorization: %w", err)
		}

		fmt.Println("Open this URL in your browser to sign in:")
		fmt.Println()
		fmt.Println("  " + result.AuthorizationURL)
		fmt.Println()
		fmt.Println("Waiting for authorization to complete...")

		data, err := flow.PollSession(ctx, result.SessionID)
		if err != nil {
			return fmt.Errorf("authorization did not complete: %w", err)
		}

		store := credstore.NewFileStore(credstore.DefaultPath())
		cred := &bexio.Credential{
			AuthType:     bexio.AuthTypeOAuth,
			CompanyID:    data.CompanyID,
			AccessToken:  data.AccessToken,
			RefreshToken: data.RefreshToken,
			UserEmail:    data.UserEmail,
			ExpiresAt:    data.ExpiresAt,
		}
		if err := store.Save(cred); err != nil {
			return fmt.Errorf("failed to store credential: %w", err)
		}

		logger.Info("Connected", "email", data.UserEmail, "companyId", data.CompanyID)
		fmt.Printf("Connected as %s (company %s)\n", data.UserEmail, data.CompanyID)
		return nil
	},
}

func init() {
	connectCmd.Flags().StringVar(&connectServerURL, "server", "http://localhost:3000", "tic-tac server base URL")
	rootCmd.AddCommand(connectCmd)
}
