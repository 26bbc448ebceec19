package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhruv-db/tic-tac-sub000/internal/jwtutil"
	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio"
	"github.com/dhruv-db/tic-tac-sub000/pkg/bexio/credstore"
)

var utilCmd = &cobra.Command{
	Use:     "util",
	Aliases: []string{"utils"},
	Short:   "Utility commands for tic-tac",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println("Available utility commands:")
		fmt.Println("  token-claims - Decode the claims of a stored or given access token")
		fmt.Println("  whoami       - Show the stored credential")
	},
}

var utilTokenClaimsCmd = &cobra.Command{
	Use:   "token-claims [token]",
	Short: "Decode the claims of a stored or given access token",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		var token string
		if len(args) == 1 {
			token = args[0]
		} else {
			cred, err := loadStoredCredential()
			if err != nil {
				return err
			}
			token = cred.AccessToken
		}
		if token == "" {
			return fmt.Errorf("no access token available")
		}

		claims, err := jwtutil.ExtractClaims(token)
		if err != nil {
			return fmt.Errorf("failed to decode token: %w", err)
		}

		out, err := json.MarshalIndent(claims, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var utilWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored credential",
	RunE: func(_ *cobra.Command, _ []string) error {
		cred, err := loadStoredCredential()
		if err != nil {
			return err
		}

		fmt.Printf("Auth type:  %s\n", cred.AuthType)
		fmt.Printf("Company:    %s\n", cred.CompanyID)
		if cred.UserEmail != "" {
			fmt.Printf("User:       %s\n", cred.UserEmail)
		}
		if cred.IsOAuth() && cred.ExpiresAt > 0 {
			fmt.Printf("Expires:    %s\n", time.UnixMilli(cred.ExpiresAt).Format(time.RFC3339))
		}
		return nil
	},
}

func loadStoredCredential() (*bexio.Credential, error) {
	store := credstore.NewFileStore(credstore.DefaultPath())
	cred, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("no stored credential, run connect first: %w", err)
	}
	return cred, nil
}

func init() {
	utilCmd.AddCommand(utilTokenClaimsCmd)
	utilCmd.AddCommand(utilWhoamiCmd)
	rootCmd.AddCommand(utilCmd)
}
