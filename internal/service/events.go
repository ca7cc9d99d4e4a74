package service

import (
	"context"

	"github.com/iliyamo/service-scheduling/internal/logger"
	"github.com/iliyamo/service-scheduling/internal/model"
)

// Routing keys for domain events.
const (
	EventBookingReserved       = "booking.reserved"
	EventBookingRescheduled    = "booking.rescheduled"
	EventBookingCancelled      = "booking.cancelled"
	EventBookingStatusChanged  = "booking.status_changed"
	EventBookingWorkerAssigned = "booking.worker_assigned"
	EventBookingDeleted        = "booking.deleted"
	EventWorkerPromoted        = "worker.promoted"
	EventWorkerStatusChanged   = "worker.status_changed"
	EventWorkerRemoved         = "worker.removed"
)

// EventPublisher delivers a domain event to downstream consumers.  It is
// only ever called after the scope that produced the event has committed.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

// BookingEvent is the payload of every booking.* event.
type BookingEvent struct {
	BookingID       uint64              `json:"booking_id"`
	RequesterID     uint64              `json:"requester_id"`
	ServiceCode     string              `json:"service_code"`
	Date            string              `json:"date"`
	Time            string              `json:"time"`
	Status          model.BookingStatus `json:"status"`
	WorkerProfileID *uint64             `json:"worker_profile_id,omitempty"`
	PreviousDate    string              `json:"previous_date,omitempty"`
	PreviousTime    string              `json:"previous_time,omitempty"`
}

func bookingEvent(b model.Booking) BookingEvent {
	return BookingEvent{
		BookingID:       b.ID,
		RequesterID:     b.RequesterID,
		ServiceCode:     b.ServiceCode,
		Date:            b.Date,
		Time:            b.TimeSlot,
		Status:          b.Status,
		WorkerProfileID: b.WorkerProfileID,
	}
}

// WorkerEvent is the payload of every worker.* event.
type WorkerEvent struct {
	ProfileID       uint64             `json:"profile_id"`
	AccountID       uint64             `json:"account_id"`
	Status          model.WorkerStatus `json:"status,omitempty"`
	Role            model.Role         `json:"role"`
	Reused          bool               `json:"reused,omitempty"`
	ClearedBookings int64              `json:"cleared_bookings,omitempty"`
}

// publish sends an event and logs failures.  The state change it describes
// is already committed, so a broker outage must not fail the request.
func publish(ctx context.Context, p EventPublisher, key string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, key, payload); err != nil {
		logger.Log.WithError(err).WithField("event", key).Warn("publish domain event failed")
	}
}
