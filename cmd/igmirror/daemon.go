package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"igmirror/internal/tasks"
	"igmirror/pkg/models"
	"igmirror/pkg/store"
	"igmirror/pkg/sync"
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync every known account on a fixed interval",
	Long: `Run forever, reconciling each registered account once per sync
interval. Accounts are processed sequentially; the per-account processing
guard keeps an overlapping cycle from double-syncing one of them.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	syncer := buildSyncer(st)
	factory := sessionFactory()
	runner := tasks.NewRunner(st, log)
	interval := cfg.Scrape.SyncInterval.Std()

	log.InfoWithFields("daemon started", map[string]interface{}{
		"interval": interval.String(),
	})

	// First cycle runs right away, then once per interval.
	syncCycle(ctx, st, runner, syncer, factory)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("daemon stopping")
			runner.Wait()
			return nil
		case <-ticker.C:
			syncCycle(ctx, st, runner, syncer, factory)
		}
	}
}

// syncCycle reconciles every known account once, sequentially.
func syncCycle(ctx context.Context, st *store.Store, runner *tasks.Runner, syncer *sync.Syncer, factory sync.SessionFactory) {
	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		log.WithError(err).Error("listing accounts for sync cycle")
		return
	}
	log.InfoWithFields("sync cycle starting", map[string]interface{}{
		"accounts": len(accounts),
	})
	for _, account := range accounts {
		if ctx.Err() != nil {
			return
		}
		runner.Run(ctx, account.ID, func(ctx context.Context, account *models.Account) error {
			return syncer.Mirror(ctx, factory, account)
		})
	}
}
