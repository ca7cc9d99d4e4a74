package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
    BookingPending    BookingStatus = "pending"
    BookingInProgress BookingStatus = "in_progress"
    BookingCompleted  BookingStatus = "completed"
    BookingCancelled  BookingStatus = "cancelled"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
    switch s {
    case BookingPending, BookingInProgress, BookingCompleted, BookingCancelled:
        return true
    }
    return false
}

// Occupies reports whether a booking in status s holds its slot.  Only
// cancelled bookings release the (date, time) key.
func (s BookingStatus) Occupies() bool { return s != BookingCancelled }

// SlotKey identifies a bookable slot.  Date is formatted YYYY-MM-DD and
// Time is a 24h HH:MM string.
type SlotKey struct {
    Date string `json:"date"`
    Time string `json:"time"`
}

func (k SlotKey) String() string { return k.Date + " " + k.Time }

// Booking records an account's request for a service slot.
//
// Fields:
//  ID              – primary key identifier.
//  RequesterID     – account that requested the service.
//  ServiceCode     – canonical descriptor from the service catalog.
//  Date            – bookings.booking_date as YYYY-MM-DD.
//  TimeSlot        – bookings.time_slot as HH:MM.
//  Status          – pending, in_progress, completed or cancelled.
//  WorkerProfileID – assigned worker profile (nullable).
//  RowVersion      – incremented on every write to the row.
//  CreatedAt       – creation timestamp.
//  UpdatedAt       – last update timestamp.
type Booking struct {
    ID              uint64        `json:"id"`                          // bookings.id
    RequesterID     uint64        `json:"requester_id"`                // bookings.requester_id
    ServiceCode     string        `json:"service_code"`                // bookings.service_code
    Date            string        `json:"date"`                        // bookings.booking_date
    TimeSlot        string        `json:"time"`                        // bookings.time_slot
    Status          BookingStatus `json:"status"`                      // bookings.status
    WorkerProfileID *uint64       `json:"worker_profile_id,omitempty"` // bookings.worker_profile_id (nullable)
    RowVersion      uint64        `json:"row_version"`                 // bookings.row_version
    CreatedAt       time.Time     `json:"created_at"`                  // bookings.created_at
    UpdatedAt       time.Time     `json:"updated_at"`                  // bookings.updated_at
}

// Slot returns the (date, time) key the booking occupies.
func (b Booking) Slot() SlotKey { return SlotKey{Date: b.Date, Time: b.TimeSlot} }
