package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/service-scheduling/internal/audit"
	"github.com/iliyamo/service-scheduling/internal/model"
	"github.com/iliyamo/service-scheduling/internal/service"
)

func TestRunDiscardsWritesOnError(t *testing.T) {
	s := New()
	acc := s.AddAccount(model.Account{Email: "a@example.com"})

	err := s.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
		require.NoError(t, tx.Accounts().SetRole(ctx, acc.ID, model.RoleWorker))
		p := model.WorkerProfile{AccountID: acc.ID, Name: "A", Position: "mechanic"}
		require.NoError(t, tx.Workers().Insert(ctx, &p))
		return errors.New("abort")
	})
	require.EqualError(t, err, "abort")

	got, _ := s.Account(acc.ID)
	assert.Equal(t, model.RoleCustomer, got.Role)
	assert.Empty(t, s.ProfilesForAccount(acc.ID))
}

func TestRunCommitsOnSuccess(t *testing.T) {
	s := New()
	acc := s.AddAccount(model.Account{})

	var id uint64
	err := s.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
		p := model.WorkerProfile{AccountID: acc.ID, Name: "A", Position: "mechanic"}
		if err := tx.Workers().Insert(ctx, &p); err != nil {
			return err
		}
		id = p.ID
		return tx.Accounts().SetRole(ctx, acc.ID, model.RoleWorker)
	})
	require.NoError(t, err)

	p, ok := s.Profile(id)
	require.True(t, ok)
	assert.Equal(t, model.WorkerActive, p.Status)
	assert.Equal(t, uint64(1), p.RowVersion)
}

func TestRunDiscardsWritesOnPanic(t *testing.T) {
	s := New()
	acc := s.AddAccount(model.Account{Email: "a@example.com"})

	assert.PanicsWithValue(t, "boom", func() {
		_ = s.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
			require.NoError(t, tx.Accounts().SetRole(ctx, acc.ID, model.RoleWorker))
			panic("boom")
		})
	})

	got, _ := s.Account(acc.ID)
	assert.Equal(t, model.RoleCustomer, got.Role)

	// the store lock was released
	require.NoError(t, s.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
		return tx.Accounts().SetRole(ctx, acc.ID, model.RoleWorker)
	}))
	got, _ = s.Account(acc.ID)
	assert.Equal(t, model.RoleWorker, got.Role)
}

func TestRunHonoursCancelledContext(t *testing.T) {
	s := New()
	acc := s.AddAccount(model.Account{})

	ctx, cancel := context.WithCancel(context.Background())
	err := s.Run(ctx, func(ctx context.Context, tx service.Tx) error {
		cancel()
		return tx.Accounts().SetRole(ctx, acc.ID, model.RoleWorker)
	})
	require.ErrorIs(t, err, context.Canceled)

	got, _ := s.Account(acc.ID)
	assert.Equal(t, model.RoleCustomer, got.Role)
}

func TestInsertEnforcesUniqueness(t *testing.T) {
	s := New()
	acc := s.AddAccount(model.Account{})
	s.AddBooking(model.Booking{ID: 1, RequesterID: acc.ID, Date: "2025-03-01", TimeSlot: "10:00"})

	err := s.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
		b := model.Booking{RequesterID: acc.ID, Date: "2025-03-01", TimeSlot: "10:00", Status: model.BookingPending}
		return tx.Bookings().Insert(ctx, &b)
	})
	assert.ErrorIs(t, err, service.ErrSlotConflict)

	err = s.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
		for i := 0; i < 2; i++ {
			p := model.WorkerProfile{AccountID: acc.ID, Name: "A", Position: "x"}
			if err := tx.Workers().Insert(ctx, &p); err != nil {
				return err
			}
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestClearWorkerCountsRows(t *testing.T) {
	s := New()
	acc := s.AddAccount(model.Account{})
	pid := uint64(3)
	s.AddBooking(model.Booking{ID: 1, RequesterID: acc.ID, Date: "2025-03-01", TimeSlot: "10:00", WorkerProfileID: &pid})
	s.AddBooking(model.Booking{ID: 2, RequesterID: acc.ID, Date: "2025-03-01", TimeSlot: "11:00"})

	var n int64
	err := s.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
		var err error
		n, err = tx.Bookings().ClearWorker(ctx, pid)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	b, _ := s.Booking(1)
	assert.Nil(t, b.WorkerProfileID)
	assert.Equal(t, uint64(2), b.RowVersion)
}

func TestInjectedFaultsFailTheNamedOperation(t *testing.T) {
	s := New()
	acc := s.AddAccount(model.Account{})
	s.InjectFault(OpSetRole, errors.New("boom"))

	err := s.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
		return tx.Accounts().SetRole(ctx, acc.ID, model.RoleWorker)
	})
	assert.ErrorContains(t, err, "accounts.set_role: boom")

	s.ClearFaults()
	err = s.Run(context.Background(), func(ctx context.Context, tx service.Tx) error {
		return tx.Accounts().SetRole(ctx, acc.ID, model.RoleWorker)
	})
	assert.NoError(t, err)
}

func TestFindViolationsReportsFixtures(t *testing.T) {
	s := New()
	acc := s.AddAccount(model.Account{})
	missing := uint64(99)
	s.AddBooking(model.Booking{ID: 1, RequesterID: acc.ID, Date: "2025-03-01", TimeSlot: "10:00"})
	s.AddBooking(model.Booking{ID: 2, RequesterID: acc.ID, Date: "2025-03-01", TimeSlot: "10:00", WorkerProfileID: &missing})

	vs, err := s.FindViolations(context.Background())
	require.NoError(t, err)
	require.Len(t, vs, 2)
	assert.Equal(t, audit.RuleDanglingWorker, vs[0].Rule)
	assert.Equal(t, audit.RuleDuplicateSlot, vs[1].Rule)
	assert.Equal(t, "slot:2025-03-01 10:00", vs[1].Subject)
}
