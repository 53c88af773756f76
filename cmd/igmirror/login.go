package main

import (
	"strings"

	"github.com/spf13/cobra"

	"igmirror/pkg/pages"
	"igmirror/pkg/sync"
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Authenticate once and persist the session cookies",
	Long: `Open a browser session, log the account in and store the resulting
cookies on its row, without running a sync. Useful to warm up a session
before the first scheduled pass, or to re-authenticate after the platform
expired the old cookies.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	username := strings.TrimSpace(args[0])
	ctx := cmd.Context()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	account, err := ensureAccount(ctx, st, username)
	if err != nil {
		return err
	}

	cookies, err := sync.DecodeCookies(account.Cookies)
	if err != nil {
		log.WithError(err).Warn("stored cookie blob unreadable, starting clean")
		cookies = nil
	}

	session, err := sessionFactory()()
	if err != nil {
		return err
	}
	defer session.Close()

	if err := sync.ImportCookies(session, cookies); err != nil {
		return err
	}

	page := pages.NewLoginPage(session, cfg.Scrape.ChallengeCooldown.Std(), log)
	fresh, err := page.Login(account.Username, account.Password)
	if err != nil {
		return err
	}
	if !fresh {
		log.Info("session still valid, cookies left untouched")
		return nil
	}

	current, err := session.Cookies()
	if err != nil {
		return err
	}
	blob, err := sync.EncodeCookies(current)
	if err != nil {
		return err
	}
	if err := st.UpdateAccountCookies(ctx, account.ID, blob); err != nil {
		return err
	}
	log.InfoWithFields("fresh login stored", map[string]interface{}{
		"username": username,
	})
	return nil
}
