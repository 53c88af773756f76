package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"igmirror/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored platform credentials",
	Long: `Manage the login credentials used to open sessions.

Credentials are stored using:
  - the system keychain, when available
  - an encrypted file with PBKDF2 key derivation
  - IGMIRROR_USERNAME / IGMIRROR_PASSWORD environment variables (read only)`,
}

// authStoreCmd represents the auth store command
var authStoreCmd = &cobra.Command{
	Use:   "store <username>",
	Short: "Store credentials for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := strings.TrimSpace(args[0])

		password, err := auth.PromptPassword(fmt.Sprintf("Password for %s: ", username))
		if err != nil {
			return err
		}
		if password == "" {
			return fmt.Errorf("empty password")
		}

		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		if err := manager.Store(&auth.Credentials{Username: username, Password: password}); err != nil {
			return err
		}
		fmt.Printf("Credentials stored for %s\n", username)
		return nil
	},
}

// authRemoveCmd represents the auth remove command
var authRemoveCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Remove stored credentials for an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := strings.TrimSpace(args[0])

		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		if err := manager.Delete(username); err != nil {
			return err
		}
		fmt.Printf("Credentials removed for %s\n", username)
		return nil
	},
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts with stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, err := auth.NewManager()
		if err != nil {
			return err
		}
		entries, err := manager.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No stored credentials")
			return nil
		}
		for _, creds := range entries {
			fmt.Printf("%s (updated %s)\n", creds.Username, creds.LastModified.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

func init() {
	authCmd.AddCommand(authStoreCmd)
	authCmd.AddCommand(authRemoveCmd)
	authCmd.AddCommand(authListCmd)
	rootCmd.AddCommand(authCmd)
}
