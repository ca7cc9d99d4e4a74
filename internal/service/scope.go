package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/service-scheduling/internal/model"
)

// ErrContention is returned by a Scope when the store kept aborting the
// unit of work on lock contention (deadlock or lock wait timeout) and the
// retry budget ran out.  Nothing was committed.
var ErrContention = errors.New("lock contention")

// Scope runs a unit of work atomically.  Every write made through the Tx
// handed to work becomes visible to other scopes only when Run returns nil.
// Any error from work, a panic, a cancelled ctx or a failed commit rolls the
// whole unit back.  Scope implementations may re-run work after a
// contention abort, so work must not have side effects outside tx.
type Scope interface {
	Run(ctx context.Context, work func(ctx context.Context, tx Tx) error) error
}

// Tx exposes the stores bound to one open scope.  Nested component calls
// receive the same Tx; nothing below Scope commits.
type Tx interface {
	Accounts() AccountStore
	Workers() WorkerStore
	Bookings() BookingStore
}

// AccountStore reads accounts and writes the role column.  Lookups return
// found=false with a nil error when the row does not exist.
type AccountStore interface {
	Get(ctx context.Context, id uint64) (model.Account, bool, error)
	GetForUpdate(ctx context.Context, id uint64) (model.Account, bool, error)
	SetRole(ctx context.Context, id uint64, role model.Role) error
}

// WorkerStore persists worker profiles.  Each mutating method writes an
// explicit column list so a status change can never clobber unrelated
// fields.
type WorkerStore interface {
	Get(ctx context.Context, id uint64) (model.WorkerProfile, bool, error)
	GetForUpdate(ctx context.Context, id uint64) (model.WorkerProfile, bool, error)
	GetByAccountForUpdate(ctx context.Context, accountID uint64) (model.WorkerProfile, bool, error)
	List(ctx context.Context) ([]model.WorkerProfile, error)
	// Insert stores p with status active and fills in ID, RowVersion and
	// the timestamps.
	Insert(ctx context.Context, p *model.WorkerProfile) error
	// Reactivate rewrites name, position and compensation and sets the
	// status to active.
	Reactivate(ctx context.Context, id uint64, name, position string, compensation *int64) error
	SetStatus(ctx context.Context, id uint64, status model.WorkerStatus) error
	Delete(ctx context.Context, id uint64) error
}

// BookingStore persists bookings and provides the slot lock used to make
// check-then-insert indivisible per (date, time) key.
type BookingStore interface {
	Get(ctx context.Context, id uint64) (model.Booking, bool, error)
	GetForUpdate(ctx context.Context, id uint64) (model.Booking, bool, error)
	// LockSlot blocks until the caller holds the exclusive lock for key.
	// The lock is released when the scope ends.
	LockSlot(ctx context.Context, key model.SlotKey) error
	// ActiveInSlot returns the non-cancelled bookings occupying key.
	ActiveInSlot(ctx context.Context, key model.SlotKey) ([]model.Booking, error)
	Insert(ctx context.Context, b *model.Booking) error
	Move(ctx context.Context, id uint64, key model.SlotKey) error
	SetStatus(ctx context.Context, id uint64, status model.BookingStatus) error
	AssignWorker(ctx context.Context, id uint64, profileID uint64) error
	// ClearWorker nulls the worker reference on every booking pointing at
	// profileID and returns how many rows changed.
	ClearWorker(ctx context.Context, profileID uint64) (int64, error)
	Delete(ctx context.Context, id uint64) error
	ListByDate(ctx context.Context, date string) ([]model.Booking, error)
	ListByRequester(ctx context.Context, accountID uint64) ([]model.Booking, error)
}

// RetryPolicy bounds how often a Scope re-runs work after a contention
// abort.  Delays double from BaseDelay on every attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy is used when a Scope is built with a zero policy.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: 25 * time.Millisecond}

// Normalize fills zero fields with the defaults.
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	return p
}

// Backoff returns the delay to wait before attempt n (1-based) is re-run.
func (p RetryPolicy) Backoff(n int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < n; i++ {
		d *= 2
	}
	return d
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
