// Package tasks runs account jobs in the background with at-least-once
// semantics. Jobs carry only the account id; the handler always re-loads
// authoritative state, so delayed or duplicate delivery is tolerated.
package tasks

import (
	"context"
	"sync"
	"time"

	"igmirror/pkg/logger"
	"igmirror/pkg/models"
	"igmirror/pkg/store"
)

// Handler processes one account. The account row is freshly loaded; a handler
// never receives a live object from the submitter.
type Handler func(ctx context.Context, account *models.Account) error

// Runner schedules and executes account jobs.
type Runner struct {
	store *store.Store
	log   logger.Logger
	wg    sync.WaitGroup
}

// NewRunner creates a Runner over the given store.
func NewRunner(st *store.Store, log logger.Logger) *Runner {
	return &Runner{store: st, log: log}
}

// Submit schedules the handler for the account id after the given delay.
// Delivery is at least once: submitting the same id again while a run is in
// flight is allowed, the processing guard turns the extra run into a no-op.
func (r *Runner) Submit(ctx context.Context, accountID int64, delay time.Duration, h Handler) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}
		r.Run(ctx, accountID, h)
	}()
}

// Wait blocks until every submitted job has finished.
func (r *Runner) Wait() { r.wg.Wait() }

// Run executes the handler for one account id, synchronously, wrapped in the
// load/guard/finalize steps shared by every job:
//
//  1. re-load the account row; a row deleted since submission ends the job
//  2. skip when the processing guard is already held
//  3. take the guard, run the handler, and clear the guard on every exit
//
// The guard's read and write are separate statements, so two concurrent
// triggers for the same account can race past it. It narrows the window, it
// does not close it.
func (r *Runner) Run(ctx context.Context, accountID int64, h Handler) {
	log := r.log.WithField("account_id", accountID)

	account, err := r.store.GetAccount(ctx, accountID)
	if err != nil {
		log.WithError(err).Error("loading account for job")
		return
	}
	if account == nil {
		log.Warn("account gone before job ran, dropping")
		return
	}
	if account.Processing {
		log.Warn("account already processing, skipping duplicate job")
		return
	}

	if err := r.store.SetProcessing(ctx, accountID, true); err != nil {
		log.WithError(err).Error("taking processing guard")
		return
	}
	defer func() {
		// The finalizer must run on success and failure alike, and must
		// not be skipped by a cancelled job context.
		if err := r.store.SetProcessing(context.Background(), accountID, false); err != nil {
			log.WithError(err).Error("clearing processing guard")
		}
	}()

	if err := h(ctx, account); err != nil {
		log.WithError(err).Error("account job failed")
	}
}
