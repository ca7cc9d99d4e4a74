package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/service-scheduling/internal/middleware"
    "github.com/iliyamo/service-scheduling/internal/model"
    "github.com/iliyamo/service-scheduling/internal/service"
)

// ReservationHandler serves booking endpoints.  Customers act on their own
// bookings; workers and administrators (staff) may act on any booking.
type ReservationHandler struct {
    Guard *service.SlotReservationGuard
}

// NewReservationHandler panics when guard is nil.
func NewReservationHandler(guard *service.SlotReservationGuard) *ReservationHandler {
    if guard == nil {
        panic("nil SlotReservationGuard passed to NewReservationHandler")
    }
    return &ReservationHandler{Guard: guard}
}

type reserveRequest struct {
    Service string `json:"service" validate:"required,max=64"`
    Date    string `json:"date" validate:"required,slotdate"`
    Time    string `json:"time" validate:"required,slottime"`
}

type rescheduleRequest struct {
    Date string `json:"date" validate:"required,slotdate"`
    Time string `json:"time" validate:"required,slottime"`
}

type advanceRequest struct {
    Status string `json:"status" validate:"required,oneof=in_progress completed"`
}

type assignRequest struct {
    WorkerID uint64 `json:"worker_id" validate:"required"`
}

func isStaff(role model.Role) bool {
    return role == model.RoleWorker || role == model.RoleAdministrator
}

// loadOwned fetches the booking named by :id and checks the caller may act
// on it.  When ok is false the response has already been written.
func (h *ReservationHandler) loadOwned(c echo.Context) (b model.Booking, ok bool, err error) {
    caller, authed := middleware.AccountID(c)
    if !authed {
        return b, false, unauthorized(c)
    }
    id, valid := parseID(c, "id")
    if !valid {
        return b, false, badRequest(c, "invalid booking id")
    }
    b, err = h.Guard.Get(c.Request().Context(), id)
    if err != nil {
        return b, false, respondError(c, err)
    }
    if b.RequesterID != caller && !isStaff(middleware.RoleOf(c)) {
        return b, false, forbidden(c)
    }
    return b, true, nil
}

// Reserve handles POST /v1/bookings.  The caller becomes the requester.
// A taken slot answers 409 with Retry-After.
func (h *ReservationHandler) Reserve(c echo.Context) error {
    caller, ok := middleware.AccountID(c)
    if !ok {
        return unauthorized(c)
    }
    var req reserveRequest
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    b, err := h.Guard.Reserve(c.Request().Context(), caller, req.Service, req.Date, req.Time)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, b)
}

// Get handles GET /v1/bookings/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
    b, ok, err := h.loadOwned(c)
    if !ok {
        return err
    }
    return c.JSON(http.StatusOK, b)
}

// ListMine handles GET /v1/my-bookings.
func (h *ReservationHandler) ListMine(c echo.Context) error {
    caller, ok := middleware.AccountID(c)
    if !ok {
        return unauthorized(c)
    }
    bs, err := h.Guard.ListByRequester(c.Request().Context(), caller)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": bs})
}

// ListByDate handles GET /v1/bookings?date=YYYY-MM-DD for staff.
func (h *ReservationHandler) ListByDate(c echo.Context) error {
    date := c.QueryParam("date")
    if date == "" {
        return badRequest(c, "date is required")
    }
    bs, err := h.Guard.ListByDate(c.Request().Context(), date)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"date": date, "items": bs})
}

// Reschedule handles PATCH /v1/bookings/:id with a new date and time.
func (h *ReservationHandler) Reschedule(c echo.Context) error {
    b, ok, err := h.loadOwned(c)
    if !ok {
        return err
    }
    var req rescheduleRequest
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    moved, err := h.Guard.Reschedule(c.Request().Context(), b.ID, req.Date, req.Time)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, moved)
}

// Cancel handles POST /v1/bookings/:id/cancel.  Cancelling twice is not an
// error.
func (h *ReservationHandler) Cancel(c echo.Context) error {
    b, ok, err := h.loadOwned(c)
    if !ok {
        return err
    }
    cancelled, err := h.Guard.Cancel(c.Request().Context(), b.ID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, cancelled)
}

// Advance handles POST /v1/bookings/:id/status for staff.
func (h *ReservationHandler) Advance(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid booking id")
    }
    var req advanceRequest
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    b, err := h.Guard.Advance(c.Request().Context(), id, model.BookingStatus(req.Status))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, b)
}

// AssignWorker handles POST /v1/bookings/:id/assign.
func (h *ReservationHandler) AssignWorker(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid booking id")
    }
    var req assignRequest
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    b, err := h.Guard.AssignWorker(c.Request().Context(), id, req.WorkerID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, b)
}

// Delete handles DELETE /v1/admin/bookings/:id.
func (h *ReservationHandler) Delete(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid booking id")
    }
    if err := h.Guard.DeleteBooking(c.Request().Context(), id); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// OccupiedSlots handles the public GET /v1/slots?date=YYYY-MM-DD and lists
// the times already taken on that date.
func (h *ReservationHandler) OccupiedSlots(c echo.Context) error {
    date := c.QueryParam("date")
    if date == "" {
        return badRequest(c, "date is required")
    }
    times, err := h.Guard.OccupiedSlots(c.Request().Context(), date)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"date": date, "occupied": times})
}
