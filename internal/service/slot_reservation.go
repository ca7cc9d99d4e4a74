package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/service-scheduling/internal/logger"
	"github.com/iliyamo/service-scheduling/internal/model"
)

// Catalog resolves a client supplied service descriptor to its canonical
// code.  It is read-only and is always consulted before a scope opens.
type Catalog interface {
	Lookup(ctx context.Context, descriptor string) (code string, found bool, err error)
}

// SlotReservationGuard creates and moves bookings so that at most one
// non-cancelled booking occupies each (date, time) key.  Every reservation
// takes the slot lock for its key, checks occupancy and writes inside the
// same scope, which makes check-then-insert indivisible per key.
type SlotReservationGuard struct {
	scope   Scope
	catalog Catalog
	events  EventPublisher
}

// NewSlotReservationGuard panics on a nil scope or catalog.  A nil
// publisher disables events.
func NewSlotReservationGuard(scope Scope, catalog Catalog, events EventPublisher) *SlotReservationGuard {
	if scope == nil || catalog == nil {
		panic("nil dependency passed to NewSlotReservationGuard")
	}
	if events == nil {
		events = NoopPublisher{}
	}
	return &SlotReservationGuard{scope: scope, catalog: catalog, events: events}
}

// Reserve books (date, clock) for requesterID.  Of two concurrent calls for
// the same key exactly one succeeds; the other gets SlotConflict.
func (g *SlotReservationGuard) Reserve(ctx context.Context, requesterID uint64, descriptor, date, clock string) (model.Booking, error) {
	key, err := ParseSlot(date, clock)
	if err != nil {
		return model.Booking{}, err
	}
	if requesterID == 0 {
		return model.Booking{}, invalidInput("requester id is required")
	}
	code, err := g.resolveService(ctx, descriptor)
	if err != nil {
		return model.Booking{}, err
	}

	var out model.Booking
	err = g.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		_, ok, err := tx.Accounts().Get(ctx, requesterID)
		if err != nil {
			return StoreFailure("get requester", err)
		}
		if !ok {
			return notFound("account %d not found", requesterID)
		}
		if err := tx.Bookings().LockSlot(ctx, key); err != nil {
			return StoreFailure("lock slot", err)
		}
		if err := NewValidator(tx).CanReserveSlot(ctx, key, 0); err != nil {
			return err
		}
		b := model.Booking{
			RequesterID: requesterID,
			ServiceCode: code,
			Date:        key.Date,
			TimeSlot:    key.Time,
			Status:      model.BookingPending,
		}
		if err := tx.Bookings().Insert(ctx, &b); err != nil {
			return StoreFailure("insert booking", err)
		}
		out = b
		return nil
	})
	if err != nil {
		return model.Booking{}, finishReservation("reserve slot", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"booking_id":   out.ID,
		"requester_id": requesterID,
		"slot":         key.String(),
	}).Info("slot reserved")
	publish(ctx, g.events, EventBookingReserved, bookingEvent(out))
	return out, nil
}

// Reschedule moves a pending booking to (date, clock).  The booking's own id
// is excluded from the conflict check so it never collides with itself.
func (g *SlotReservationGuard) Reschedule(ctx context.Context, bookingID uint64, date, clock string) (model.Booking, error) {
	key, err := ParseSlot(date, clock)
	if err != nil {
		return model.Booking{}, err
	}

	var (
		out  model.Booking
		prev model.SlotKey
	)
	err = g.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		if _, ok, err := tx.Bookings().Get(ctx, bookingID); err != nil {
			return StoreFailure("get booking", err)
		} else if !ok {
			return notFound("booking %d not found", bookingID)
		}
		// slot lock before the booking row, same order as Reserve
		if err := tx.Bookings().LockSlot(ctx, key); err != nil {
			return StoreFailure("lock slot", err)
		}
		b, ok, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return StoreFailure("lock booking", err)
		}
		if !ok {
			return notFound("booking %d not found", bookingID)
		}
		if err := checkMovable(b); err != nil {
			return err
		}
		prev = b.Slot()
		if prev == key {
			out = b
			return nil
		}
		if err := NewValidator(tx).CanReserveSlot(ctx, key, b.ID); err != nil {
			return err
		}
		if err := tx.Bookings().Move(ctx, b.ID, key); err != nil {
			return StoreFailure("move booking", err)
		}
		return reloadBooking(ctx, tx, b.ID, &out)
	})
	if err != nil {
		return model.Booking{}, finishReservation("reschedule booking", err)
	}
	if prev == key {
		return out, nil
	}

	logger.Log.WithFields(logrus.Fields{
		"booking_id": out.ID,
		"from":       prev.String(),
		"to":         key.String(),
	}).Info("booking rescheduled")
	ev := bookingEvent(out)
	ev.PreviousDate, ev.PreviousTime = prev.Date, prev.Time
	publish(ctx, g.events, EventBookingRescheduled, ev)
	return out, nil
}

// Cancel marks a booking cancelled and frees its slot.  Completed bookings
// cannot be cancelled; cancelling twice is a no-op.
func (g *SlotReservationGuard) Cancel(ctx context.Context, bookingID uint64) (model.Booking, error) {
	var (
		out     model.Booking
		changed bool
	)
	err := g.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		b, ok, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return StoreFailure("lock booking", err)
		}
		if !ok {
			return notFound("booking %d not found", bookingID)
		}
		if err := checkCancellable(b); err != nil {
			return err
		}
		if b.Status == model.BookingCancelled {
			changed = false
			out = b
			return nil
		}
		if err := tx.Bookings().SetStatus(ctx, b.ID, model.BookingCancelled); err != nil {
			return StoreFailure("cancel booking", err)
		}
		changed = true
		return reloadBooking(ctx, tx, b.ID, &out)
	})
	if err != nil {
		return model.Booking{}, finish("cancel booking", err)
	}
	if changed {
		logger.Log.WithFields(logrus.Fields{
			"booking_id": out.ID,
			"slot":       out.Slot().String(),
		}).Info("booking cancelled")
		publish(ctx, g.events, EventBookingCancelled, bookingEvent(out))
	}
	return out, nil
}

// Advance moves a booking forward: pending to in_progress, in_progress to
// completed.
func (g *SlotReservationGuard) Advance(ctx context.Context, bookingID uint64, to model.BookingStatus) (model.Booking, error) {
	var out model.Booking
	err := g.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		b, ok, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return StoreFailure("lock booking", err)
		}
		if !ok {
			return notFound("booking %d not found", bookingID)
		}
		if err := checkAdvance(b, to); err != nil {
			return err
		}
		if err := tx.Bookings().SetStatus(ctx, b.ID, to); err != nil {
			return StoreFailure("set booking status", err)
		}
		return reloadBooking(ctx, tx, b.ID, &out)
	})
	if err != nil {
		return model.Booking{}, finish("advance booking", err)
	}
	logger.Log.WithFields(logrus.Fields{"booking_id": out.ID, "status": out.Status}).Info("booking status changed")
	publish(ctx, g.events, EventBookingStatusChanged, bookingEvent(out))
	return out, nil
}

// AssignWorker points a booking at an active worker profile.  The profile
// stays locked until commit, so a concurrent Remove either finishes first
// (NotFound here) or waits for the assignment and then clears it.
func (g *SlotReservationGuard) AssignWorker(ctx context.Context, bookingID, profileID uint64) (model.Booking, error) {
	var out model.Booking
	err := g.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		// account, then profile, then booking: the order Remove takes them in
		p, _, err := lockProfile(ctx, tx, profileID)
		if err != nil {
			return err
		}
		b, ok, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return StoreFailure("lock booking", err)
		}
		if !ok {
			return notFound("booking %d not found", bookingID)
		}
		if err := checkAssignBookingWorker(b, p); err != nil {
			return err
		}
		if err := tx.Bookings().AssignWorker(ctx, b.ID, p.ID); err != nil {
			return StoreFailure("assign worker", err)
		}
		return reloadBooking(ctx, tx, b.ID, &out)
	})
	if err != nil {
		return model.Booking{}, finish("assign worker", err)
	}
	logger.Log.WithFields(logrus.Fields{"booking_id": out.ID, "profile_id": profileID}).Info("worker assigned")
	publish(ctx, g.events, EventBookingWorkerAssigned, bookingEvent(out))
	return out, nil
}

// DeleteBooking physically removes a booking.  It is an administrative
// override; deleting the row releases its slot.
func (g *SlotReservationGuard) DeleteBooking(ctx context.Context, bookingID uint64) error {
	var gone model.Booking
	err := g.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		b, ok, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return StoreFailure("lock booking", err)
		}
		if !ok {
			return notFound("booking %d not found", bookingID)
		}
		if err := tx.Bookings().Delete(ctx, b.ID); err != nil {
			return StoreFailure("delete booking", err)
		}
		gone = b
		return nil
	})
	if err != nil {
		return finish("delete booking", err)
	}
	logger.Log.WithField("booking_id", bookingID).Warn("booking deleted by administrator")
	publish(ctx, g.events, EventBookingDeleted, bookingEvent(gone))
	return nil
}

// Get returns one booking.
func (g *SlotReservationGuard) Get(ctx context.Context, bookingID uint64) (model.Booking, error) {
	var out model.Booking
	err := g.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		b, ok, err := tx.Bookings().Get(ctx, bookingID)
		if err != nil {
			return StoreFailure("get booking", err)
		}
		if !ok {
			return notFound("booking %d not found", bookingID)
		}
		out = b
		return nil
	})
	if err != nil {
		return model.Booking{}, finish("get booking", err)
	}
	return out, nil
}

// ListByDate returns every booking on date, cancelled ones included.
func (g *SlotReservationGuard) ListByDate(ctx context.Context, date string) ([]model.Booking, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	var out []model.Booking
	err := g.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		bs, err := tx.Bookings().ListByDate(ctx, date)
		if err != nil {
			return StoreFailure("list bookings by date", err)
		}
		out = bs
		return nil
	})
	if err != nil {
		return nil, finish("list bookings", err)
	}
	return out, nil
}

// ListByRequester returns the bookings requested by accountID.
func (g *SlotReservationGuard) ListByRequester(ctx context.Context, accountID uint64) ([]model.Booking, error) {
	var out []model.Booking
	err := g.scope.Run(ctx, func(ctx context.Context, tx Tx) error {
		bs, err := tx.Bookings().ListByRequester(ctx, accountID)
		if err != nil {
			return StoreFailure("list bookings by requester", err)
		}
		out = bs
		return nil
	})
	if err != nil {
		return nil, finish("list bookings", err)
	}
	return out, nil
}

// OccupiedSlots returns the HH:MM times on date held by a non-cancelled
// booking, in ascending order.
func (g *SlotReservationGuard) OccupiedSlots(ctx context.Context, date string) ([]string, error) {
	bs, err := g.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	times := make([]string, 0, len(bs))
	for _, b := range bs {
		if b.Status.Occupies() {
			times = append(times, b.TimeSlot)
		}
	}
	return times, nil
}

func (g *SlotReservationGuard) resolveService(ctx context.Context, descriptor string) (string, error) {
	descriptor = strings.TrimSpace(descriptor)
	if descriptor == "" {
		return "", invalidInput("service is required")
	}
	code, ok, err := g.catalog.Lookup(ctx, descriptor)
	if err != nil {
		return "", StoreFailure("catalog lookup", err)
	}
	if !ok {
		return "", notFound("service %q not found", descriptor)
	}
	return code, nil
}

func reloadBooking(ctx context.Context, tx Tx, id uint64, out *model.Booking) error {
	b, ok, err := tx.Bookings().Get(ctx, id)
	if err != nil {
		return StoreFailure("reload booking", err)
	}
	if !ok {
		return StoreFailure("reload booking", errMissingAfterWrite)
	}
	*out = b
	return nil
}

func checkDate(date string) error {
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return invalidInput("date %q must be formatted YYYY-MM-DD", date)
	}
	return nil
}

// finishReservation reports exhausted lock contention on a slot as
// SlotConflict, which callers may retry.
func finishReservation(op string, err error) error {
	if errors.Is(err, ErrContention) {
		return &Error{Kind: KindSlotConflict, Message: "slot is busy, retry later", Err: err}
	}
	return finish(op, err)
}
