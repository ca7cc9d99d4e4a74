package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/service-scheduling/internal/model"
)

func TestCheckAssignable(t *testing.T) {
	customer := model.Account{ID: 1, Role: model.RoleCustomer}
	admin := model.Account{ID: 2, Role: model.RoleAdministrator}
	active := &model.WorkerProfile{ID: 10, Status: model.WorkerActive}
	inactive := &model.WorkerProfile{ID: 11, Status: model.WorkerInactive}

	assert.NoError(t, checkAssignable(customer, nil))
	assert.NoError(t, checkAssignable(customer, inactive))
	assert.ErrorIs(t, checkAssignable(customer, active), ErrAlreadyAssigned)
	assert.ErrorIs(t, checkAssignable(admin, nil), ErrRoleConflict)
	// administrator wins over an existing active profile
	assert.ErrorIs(t, checkAssignable(admin, active), ErrRoleConflict)
}

func TestCheckTransition(t *testing.T) {
	p := model.WorkerProfile{ID: 1, Status: model.WorkerActive}
	assert.NoError(t, checkTransition(p, model.WorkerInactive))
	assert.ErrorIs(t, checkTransition(p, model.WorkerActive), ErrInvalidState)
	assert.ErrorIs(t, checkTransition(p, "fired"), ErrInvalidInput)
}

func TestCheckReservable(t *testing.T) {
	key := model.SlotKey{Date: "2025-03-01", Time: "10:00"}
	occupying := []model.Booking{{ID: 5, Status: model.BookingPending}}

	assert.NoError(t, checkReservable(key, nil, 0))
	assert.ErrorIs(t, checkReservable(key, occupying, 0), ErrSlotConflict)
	assert.NoError(t, checkReservable(key, occupying, 5))
	assert.NoError(t, checkReservable(key, []model.Booking{{ID: 6, Status: model.BookingCancelled}}, 0))
}

func TestBookingLifecycleChecks(t *testing.T) {
	b := func(s model.BookingStatus) model.Booking { return model.Booking{ID: 1, Status: s} }

	assert.NoError(t, checkCancellable(b(model.BookingPending)))
	assert.NoError(t, checkCancellable(b(model.BookingInProgress)))
	assert.NoError(t, checkCancellable(b(model.BookingCancelled)))
	assert.ErrorIs(t, checkCancellable(b(model.BookingCompleted)), ErrInvalidState)

	assert.NoError(t, checkMovable(b(model.BookingPending)))
	assert.ErrorIs(t, checkMovable(b(model.BookingInProgress)), ErrInvalidState)
	assert.ErrorIs(t, checkMovable(b(model.BookingCancelled)), ErrInvalidState)

	assert.NoError(t, checkAdvance(b(model.BookingPending), model.BookingInProgress))
	assert.NoError(t, checkAdvance(b(model.BookingInProgress), model.BookingCompleted))
	assert.ErrorIs(t, checkAdvance(b(model.BookingPending), model.BookingCompleted), ErrInvalidState)
	assert.ErrorIs(t, checkAdvance(b(model.BookingCompleted), model.BookingPending), ErrInvalidState)
	assert.ErrorIs(t, checkAdvance(b(model.BookingPending), model.BookingCancelled), ErrInvalidState)

	active := model.WorkerProfile{ID: 9, Status: model.WorkerActive}
	assert.NoError(t, checkAssignBookingWorker(b(model.BookingInProgress), active))
	assert.ErrorIs(t, checkAssignBookingWorker(b(model.BookingCancelled), active), ErrInvalidState)
	assert.ErrorIs(t, checkAssignBookingWorker(b(model.BookingPending), model.WorkerProfile{ID: 9, Status: model.WorkerInactive}), ErrInvalidState)
}

func TestParseSlot(t *testing.T) {
	key, err := ParseSlot("2025-03-01", "23:59")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01 23:59", key.String())

	for _, tc := range [][2]string{
		{"2025-3-1", "10:00"},
		{"2025-03-01", "24:00"},
		{"2025-03-01", "10:60"},
		{"2025-03-01", "10:00:00"},
		{"", ""},
	} {
		_, err := ParseSlot(tc[0], tc[1])
		assert.ErrorIs(t, err, ErrInvalidInput, "%v", tc)
	}
}
