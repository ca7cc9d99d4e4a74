package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/service-scheduling/internal/model"
    "github.com/iliyamo/service-scheduling/internal/service"
)

// WorkerAdminHandler exposes worker profile management to administrators.
// Role checks happen in middleware; every state change goes through
// WorkerRoleSync so the account role and profile status move together.
type WorkerAdminHandler struct {
    Workers *service.WorkerRoleSync
}

// NewWorkerAdminHandler panics when workers is nil.
func NewWorkerAdminHandler(workers *service.WorkerRoleSync) *WorkerAdminHandler {
    if workers == nil {
        panic("nil WorkerRoleSync passed to NewWorkerAdminHandler")
    }
    return &WorkerAdminHandler{Workers: workers}
}

type promoteRequest struct {
    AccountID    uint64 `json:"account_id" validate:"required"`
    Name         string `json:"name" validate:"required,max=120"`
    Position     string `json:"position" validate:"required,max=120"`
    Compensation *int64 `json:"compensation" validate:"omitempty,min=0"`
}

type setStatusRequest struct {
    Status string `json:"status" validate:"required,oneof=active inactive"`
}

// Promote handles POST /v1/admin/workers.  Responds 201 with the active
// profile; an earlier inactive profile of the same account is reused.
func (h *WorkerAdminHandler) Promote(c echo.Context) error {
    var req promoteRequest
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    p, err := h.Workers.Promote(c.Request().Context(), req.AccountID, req.Name, req.Position, req.Compensation)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, p)
}

// List handles GET /v1/admin/workers.
func (h *WorkerAdminHandler) List(c echo.Context) error {
    ps, err := h.Workers.List(c.Request().Context())
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"items": ps})
}

// Get handles GET /v1/admin/workers/:id.
func (h *WorkerAdminHandler) Get(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid worker id")
    }
    p, err := h.Workers.Get(c.Request().Context(), id)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, p)
}

// SetStatus handles PATCH /v1/admin/workers/:id with {"status": ...}.
// Setting the status the profile already has answers 409.
func (h *WorkerAdminHandler) SetStatus(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid worker id")
    }
    var req setStatusRequest
    if err := bindAndValidate(c, &req); err != nil {
        return respondError(c, err)
    }
    p, err := h.Workers.SetStatus(c.Request().Context(), id, model.WorkerStatus(req.Status))
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, p)
}

// Remove handles DELETE /v1/admin/workers/:id.  The account drops back to
// customer and bookings assigned to the profile lose their worker.
func (h *WorkerAdminHandler) Remove(c echo.Context) error {
    id, ok := parseID(c, "id")
    if !ok {
        return badRequest(c, "invalid worker id")
    }
    if err := h.Workers.Remove(c.Request().Context(), id); err != nil {
        return respondError(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}
