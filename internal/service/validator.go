package service

import (
	"context"
	"regexp"

	"github.com/iliyamo/service-scheduling/internal/model"
)

// ConsistencyValidator evaluates the preconditions that keep account roles,
// worker profiles and slot occupancy consistent.  It is bound to an open Tx
// and must run immediately before the mutation it guards.  It never writes;
// the row locks it takes are released with the scope.
type ConsistencyValidator struct {
	tx Tx
}

// NewValidator binds a validator to tx.
func NewValidator(tx Tx) ConsistencyValidator { return ConsistencyValidator{tx: tx} }

// CanAssignWorker locks the account and its profile (if any) and checks that
// the account may be promoted.  It returns the locked account and, when an
// inactive profile already exists, that profile so it can be reused.
func (v ConsistencyValidator) CanAssignWorker(ctx context.Context, accountID uint64) (model.Account, *model.WorkerProfile, error) {
	acc, ok, err := v.tx.Accounts().GetForUpdate(ctx, accountID)
	if err != nil {
		return model.Account{}, nil, StoreFailure("lock account", err)
	}
	if !ok {
		return model.Account{}, nil, notFound("account %d not found", accountID)
	}
	prof, found, err := v.tx.Workers().GetByAccountForUpdate(ctx, accountID)
	if err != nil {
		return model.Account{}, nil, StoreFailure("lock profile by account", err)
	}
	var existing *model.WorkerProfile
	if found {
		existing = &prof
	}
	if err := checkAssignable(acc, existing); err != nil {
		return model.Account{}, nil, err
	}
	return acc, existing, nil
}

// CanReactivateWorker checks that profile p may move back to active.
func (v ConsistencyValidator) CanReactivateWorker(p model.WorkerProfile) error {
	if p.Status != model.WorkerInactive {
		return invalidState("worker profile %d is %s, not inactive", p.ID, p.Status)
	}
	return nil
}

// CanReserveSlot reads the bookings occupying key and fails with
// SlotConflict when any of them is not the excluded booking.  Pass 0 to
// exclude nothing.  The caller must already hold the slot lock.
func (v ConsistencyValidator) CanReserveSlot(ctx context.Context, key model.SlotKey, excludingID uint64) error {
	occupying, err := v.tx.Bookings().ActiveInSlot(ctx, key)
	if err != nil {
		return StoreFailure("read slot", err)
	}
	return checkReservable(key, occupying, excludingID)
}

// checkAssignable rejects administrators and accounts that already hold an
// active profile.
func checkAssignable(acc model.Account, existing *model.WorkerProfile) error {
	if acc.Role == model.RoleAdministrator {
		return newError(KindRoleConflict, "account %d is an administrator and cannot hold a worker profile", acc.ID)
	}
	if existing != nil && existing.Status == model.WorkerActive {
		return newError(KindAlreadyAssigned, "account %d already has an active worker profile", acc.ID)
	}
	return nil
}

// checkTransition rejects unknown statuses and no-op transitions.
func checkTransition(p model.WorkerProfile, to model.WorkerStatus) error {
	if !to.Valid() {
		return invalidInput("unknown worker status %q", to)
	}
	if p.Status == to {
		return invalidState("worker profile %d is already %s", p.ID, to)
	}
	return nil
}

func checkReservable(key model.SlotKey, occupying []model.Booking, excludingID uint64) error {
	for _, b := range occupying {
		if b.ID == excludingID || !b.Status.Occupies() {
			continue
		}
		return newError(KindSlotConflict, "slot %s is already booked", key)
	}
	return nil
}

// checkCancellable allows cancelling anything but a completed booking.
func checkCancellable(b model.Booking) error {
	if b.Status == model.BookingCompleted {
		return invalidState("booking %d is completed and cannot be cancelled", b.ID)
	}
	return nil
}

// checkMovable allows rescheduling only bookings that have not started.
func checkMovable(b model.Booking) error {
	if b.Status != model.BookingPending {
		return invalidState("booking %d is %s and cannot be rescheduled", b.ID, b.Status)
	}
	return nil
}

// bookingFlow lists the forward transitions staff may apply.
var bookingFlow = map[model.BookingStatus]model.BookingStatus{
	model.BookingPending:    model.BookingInProgress,
	model.BookingInProgress: model.BookingCompleted,
}

func checkAdvance(b model.Booking, to model.BookingStatus) error {
	if !to.Valid() {
		return invalidInput("unknown booking status %q", to)
	}
	if next, ok := bookingFlow[b.Status]; !ok || next != to {
		return invalidState("booking %d cannot move from %s to %s", b.ID, b.Status, to)
	}
	return nil
}

func checkAssignBookingWorker(b model.Booking, p model.WorkerProfile) error {
	if b.Status == model.BookingCancelled || b.Status == model.BookingCompleted {
		return invalidState("booking %d is %s", b.ID, b.Status)
	}
	if p.Status != model.WorkerActive {
		return invalidState("worker profile %d is not active", p.ID)
	}
	return nil
}

var timeSlotPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ParseSlot validates a YYYY-MM-DD date and an HH:MM time.
func ParseSlot(date, clock string) (model.SlotKey, error) {
	if err := checkDate(date); err != nil {
		return model.SlotKey{}, err
	}
	if !timeSlotPattern.MatchString(clock) {
		return model.SlotKey{}, invalidInput("time %q must be formatted HH:MM", clock)
	}
	return model.SlotKey{Date: date, Time: clock}, nil
}
