package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/service-scheduling/internal/logger"
	"github.com/iliyamo/service-scheduling/internal/service"
)

// Scope runs units of work in MySQL transactions at READ COMMITTED.  A unit
// aborted by a deadlock or lock wait timeout is rolled back and re-run with
// exponential backoff until the retry policy is exhausted.
type Scope struct {
	db       *sql.DB
	policy   service.RetryPolicy
	accounts *AccountRepo
	workers  *WorkerRepo
	bookings *BookingRepo
}

// NewScope binds the repositories to db.  A zero policy uses the defaults.
func NewScope(db *sql.DB, policy service.RetryPolicy) *Scope {
	return &Scope{
		db:       db,
		policy:   policy.Normalize(),
		accounts: NewAccountRepo(db),
		workers:  NewWorkerRepo(db),
		bookings: NewBookingRepo(db),
	}
}

// Run implements service.Scope.
func (s *Scope) Run(ctx context.Context, work func(ctx context.Context, tx service.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.runOnce(ctx, work)
		if err == nil || !isContention(err) {
			return err
		}
		if attempt >= s.policy.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %v", service.ErrContention, attempt, err)
		}
		delay := s.policy.Backoff(attempt)
		logger.Log.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay.String(),
		}).WithError(err).Warn("transaction aborted on lock contention, retrying")
		if err := service.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

func (s *Scope) runOnce(ctx context.Context, work func(ctx context.Context, tx service.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := work(ctx, &boundTx{scope: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// boundTx hands the repositories to the unit of work, each bound to tx.
type boundTx struct {
	scope *Scope
	tx    *sql.Tx
}

func (b *boundTx) Accounts() service.AccountStore {
	return accountStore{repo: b.scope.accounts, tx: b.tx}
}

func (b *boundTx) Workers() service.WorkerStore {
	return workerStore{repo: b.scope.workers, tx: b.tx}
}

func (b *boundTx) Bookings() service.BookingStore {
	return bookingStore{repo: b.scope.bookings, tx: b.tx}
}
