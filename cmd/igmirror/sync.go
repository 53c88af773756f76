package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"igmirror/internal/tasks"
	"igmirror/pkg/auth"
	"igmirror/pkg/models"
	"igmirror/pkg/store"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync <username>",
	Short: "Mirror one account now",
	Long: `Run a full reconciliation pass for the account: log in (reusing the
stored session when still valid), read the profile, discover new posts
until a known one is reached, refresh their detail and media, and record
today's history snapshot.

Credentials come from the credential store (see "igmirror auth store") or
the IGMIRROR_USERNAME / IGMIRROR_PASSWORD environment variables.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	username := strings.TrimSpace(args[0])

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	account, err := ensureAccount(cmd.Context(), st, username)
	if err != nil {
		return err
	}

	syncer := buildSyncer(st)
	factory := sessionFactory()

	var runErr error
	runner := tasks.NewRunner(st, log)
	runner.Run(cmd.Context(), account.ID, func(ctx context.Context, account *models.Account) error {
		runErr = syncer.Mirror(ctx, factory, account)
		return runErr
	})
	return runErr
}

// ensureAccount loads the account row, creating it from stored credentials on
// first contact.
func ensureAccount(ctx context.Context, st *store.Store, username string) (*models.Account, error) {
	account, err := st.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if account != nil {
		return account, nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return nil, fmt.Errorf("opening credential store: %w", err)
	}
	creds, err := manager.Retrieve(username)
	if err != nil {
		return nil, fmt.Errorf("no credentials for %s, run \"igmirror auth store %s\" first: %w", username, username, err)
	}

	account = &models.Account{Username: username, Password: creds.Password}
	if err := st.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	log.InfoWithFields("account registered", map[string]interface{}{
		"username": username,
	})
	return account, nil
}
