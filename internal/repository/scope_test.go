package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/service-scheduling/internal/catalog"
	"github.com/iliyamo/service-scheduling/internal/model"
	"github.com/iliyamo/service-scheduling/internal/service"
)

var (
	fastRetry   = service.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	deadlock    = &mysql.MySQLError{Number: erLockDeadlock, Message: "Deadlock found when trying to get lock; try restarting transaction"}
	lockTimeout = &mysql.MySQLError{Number: erLockWaitTimeout, Message: "Lock wait timeout exceeded; try restarting transaction"}
	slotKey     = model.SlotKey{Date: "2025-03-01", Time: "10:00"}
)

func newMock(t *testing.T) (*Scope, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewScope(db, fastRetry), mock
}

func lockSlot(ctx context.Context, tx service.Tx) error {
	return tx.Bookings().LockSlot(ctx, slotKey)
}

func TestScopeCommits(t *testing.T) {
	scope, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO slot_locks`).WithArgs("2025-03-01", "10:00").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, scope.Run(context.Background(), lockSlot))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScopeRollsBackOnWorkError(t *testing.T) {
	scope, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO slot_locks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("validation failed")
	err := scope.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
		if err := lockSlot(ctx, tx); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScopeRetriesDeadlock(t *testing.T) {
	scope, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO slot_locks`).WillReturnError(deadlock)
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO slot_locks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	calls := 0
	err := scope.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
		calls++
		return lockSlot(ctx, tx)
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScopeGivesUpAfterPolicy(t *testing.T) {
	scope, mock := newMock(t)
	for i := 0; i < fastRetry.MaxAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectExec(`INSERT INTO slot_locks`).WillReturnError(lockTimeout)
		mock.ExpectRollback()
	}

	err := scope.Run(context.Background(), lockSlot)
	require.ErrorIs(t, err, service.ErrContention)
	assert.Contains(t, err.Error(), "after 3 attempts")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScopeDoesNotRetryOtherErrors(t *testing.T) {
	scope, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO slot_locks`).WillReturnError(&mysql.MySQLError{Number: 1146, Message: "Table 'slot_locks' doesn't exist"})
	mock.ExpectRollback()

	err := scope.Run(context.Background(), lockSlot)
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrContention)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScopeCommitFailure(t *testing.T) {
	scope, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO slot_locks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	err := scope.Run(context.Background(), lockSlot)
	assert.ErrorContains(t, err, "commit: connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

var (
	accountCols = []string{"id", "email", "display_name", "password_hash", "role", "created_at", "updated_at"}
	bookingCols = []string{"id", "requester_id", "service_code", "booking_date", "time_slot", "status",
		"worker_profile_id", "row_version", "created_at", "updated_at"}
)

func TestReserveMapsActiveSlotDuplicateToSlotConflict(t *testing.T) {
	scope, mock := newMock(t)
	now := time.Now()
	guard := service.NewSlotReservationGuard(scope, catalog.NewStatic("oil-change"), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id=\?`).WithArgs(uint64(1)).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(1, "a@example.com", "A", "x", "customer", now, now))
	mock.ExpectExec(`INSERT INTO slot_locks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM bookings\s+WHERE booking_date = \? AND time_slot = \?`).
		WithArgs("2025-03-01", "10:00").
		WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectExec(`INSERT INTO bookings`).
		WillReturnError(&mysql.MySQLError{Number: erDupEntry, Message: "Duplicate entry '2025-03-01 10:00' for key 'bookings.uq_bookings_active_slot'"})
	mock.ExpectRollback()

	_, err := guard.Reserve(context.Background(), 1, "oil-change", "2025-03-01", "10:00")
	require.ErrorIs(t, err, service.ErrSlotConflict)
	assert.True(t, service.IsRetryable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveInsertsAndReloads(t *testing.T) {
	scope, mock := newMock(t)
	now := time.Now()
	guard := service.NewSlotReservationGuard(scope, catalog.NewStatic("oil-change"), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id=\?`).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(1, "a@example.com", "A", "x", "customer", now, now))
	mock.ExpectExec(`INSERT INTO slot_locks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM bookings\s+WHERE booking_date = \?`).
		WillReturnRows(sqlmock.NewRows(bookingCols))
	mock.ExpectExec(`INSERT INTO bookings`).
		WithArgs(uint64(1), "oil-change", "2025-03-01", "10:00", "pending").
		WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectQuery(`SELECT .+ FROM bookings WHERE id = \?`).WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(9, 1, "oil-change", "2025-03-01", "10:00", "pending", nil, 1, now, now))
	mock.ExpectCommit()

	b, err := guard.Reserve(context.Background(), 1, "oil-change", "2025-03-01", "10:00")
	require.NoError(t, err)
	assert.Equal(t, uint64(9), b.ID)
	assert.Equal(t, model.BookingPending, b.Status)
	assert.Nil(t, b.WorkerProfileID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveContentionSurfacesAsSlotConflict(t *testing.T) {
	scope, mock := newMock(t)
	now := time.Now()
	guard := service.NewSlotReservationGuard(scope, catalog.NewStatic("oil-change"), nil)

	for i := 0; i < fastRetry.MaxAttempts; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .+ FROM accounts`).
			WillReturnRows(sqlmock.NewRows(accountCols).AddRow(1, "a@example.com", "A", "x", "customer", now, now))
		mock.ExpectExec(`INSERT INTO slot_locks`).WillReturnError(lockTimeout)
		mock.ExpectRollback()
	}

	_, err := guard.Reserve(context.Background(), 1, "oil-change", "2025-03-01", "10:00")
	require.ErrorIs(t, err, service.ErrSlotConflict)
	assert.Equal(t, "slot is busy, retry later", service.MessageOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetRoleMatchingNothingIsAnError(t *testing.T) {
	scope, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE accounts SET role=\? WHERE id=\?`).WithArgs("worker", uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := scope.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
		return tx.Accounts().SetRole(ctx, 5, model.RoleWorker)
	})
	assert.ErrorIs(t, err, ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDuplicateProfileBecomesAlreadyAssigned(t *testing.T) {
	err := translateProfileWrite(&mysql.MySQLError{Number: erDupEntry, Message: "Duplicate entry '7' for key 'worker_profiles.uq_worker_profiles_account'"})
	assert.ErrorIs(t, err, service.ErrAlreadyAssigned)
	assert.ErrorIs(t, err, ErrDuplicateProfile)

	other := &mysql.MySQLError{Number: erDupEntry, Message: "Duplicate entry for key 'PRIMARY'"}
	assert.Same(t, other, translateBookingWrite(other))
	assert.Nil(t, translateBookingWrite(nil))
}

func TestScopeRollsBackWhenWorkPanics(t *testing.T) {
	scope, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO slot_locks`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = scope.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
			if err := lockSlot(ctx, tx); err != nil {
				return err
			}
			panic("boom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

var workerCols = []string{"id", "account_id", "display_name", "position", "status", "compensation",
	"row_version", "created_at", "updated_at"}

func TestAssignWorkerLocksAccountThenProfileThenBooking(t *testing.T) {
	scope, mock := newMock(t)
	now := time.Now()
	guard := service.NewSlotReservationGuard(scope, catalog.NewStatic("oil-change"), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM worker_profiles WHERE id = \?`).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(workerCols).AddRow(3, 7, "W", "mechanic", "active", nil, 1, now, now))
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id=\? FOR UPDATE`).WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(7, "w@example.com", "W", "x", "worker", now, now))
	mock.ExpectQuery(`SELECT .+ FROM worker_profiles WHERE id = \? FOR UPDATE`).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(workerCols).AddRow(3, 7, "W", "mechanic", "active", nil, 1, now, now))
	mock.ExpectQuery(`SELECT .+ FROM bookings WHERE id = \? FOR UPDATE`).WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(42, 1, "oil-change", "2025-03-01", "10:00", "pending", nil, 1, now, now))
	mock.ExpectExec(`UPDATE bookings SET worker_profile_id = \?`).WithArgs(uint64(3), uint64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT .+ FROM bookings WHERE id = \?`).WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(42, 1, "oil-change", "2025-03-01", "10:00", "pending", 3, 2, now, now))
	mock.ExpectCommit()

	b, err := guard.AssignWorker(context.Background(), 42, 3)
	require.NoError(t, err)
	require.NotNil(t, b.WorkerProfileID)
	assert.Equal(t, uint64(3), *b.WorkerProfileID)
	require.NoError(t, mock.ExpectationsWereMet())
}

// A Remove that commits while AssignWorker waits on the account lock leaves
// no profile to lock; the caller sees NotFound rather than a driver error.
func TestAssignWorkerLosingToRemoveIsNotFound(t *testing.T) {
	scope, mock := newMock(t)
	now := time.Now()
	guard := service.NewSlotReservationGuard(scope, catalog.NewStatic("oil-change"), nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM worker_profiles WHERE id = \?`).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(workerCols).AddRow(3, 7, "W", "mechanic", "active", nil, 1, now, now))
	mock.ExpectQuery(`SELECT .+ FROM accounts WHERE id=\? FOR UPDATE`).WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows(accountCols).AddRow(7, "w@example.com", "W", "x", "customer", now, now))
	mock.ExpectQuery(`SELECT .+ FROM worker_profiles WHERE id = \? FOR UPDATE`).WithArgs(uint64(3)).
		WillReturnRows(sqlmock.NewRows(workerCols))
	mock.ExpectRollback()

	_, err := guard.AssignWorker(context.Background(), 42, 3)
	require.ErrorIs(t, err, service.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
