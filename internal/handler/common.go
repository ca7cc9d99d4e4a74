package handler // handler holds the echo handlers in front of the scheduling services

import (
    "net/http" // status codes
    "strconv"  // path parameter parsing

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/service-scheduling/internal/logger"
    "github.com/iliyamo/service-scheduling/internal/service"
)

// statusByKind maps service error kinds onto HTTP statuses.
var statusByKind = map[service.Kind]int{
    service.KindNotFound:        http.StatusNotFound,
    service.KindInvalidInput:    http.StatusBadRequest,
    service.KindInvalidState:    http.StatusConflict,
    service.KindRoleConflict:    http.StatusConflict,
    service.KindAlreadyAssigned: http.StatusConflict,
    service.KindSlotConflict:    http.StatusConflict,
    service.KindStoreFailure:    http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
    if code, ok := statusByKind[service.KindOf(err)]; ok {
        return code
    }
    return http.StatusInternalServerError
}

// respondError writes err as {"error": kind, "message": msg}.  Slot conflicts
// carry Retry-After since the caller may simply try again; store failures are
// logged with their cause and reported without it.
func respondError(c echo.Context, err error) error {
    kind := service.KindOf(err)
    code := StatusFor(err)
    if kind == service.KindSlotConflict {
        c.Response().Header().Set("Retry-After", "1")
    }
    if code >= http.StatusInternalServerError {
        logger.Log.WithError(err).WithFields(logrus.Fields{
            "method": c.Request().Method,
            "path":   c.Path(),
        }).Error("request failed")
    }
    return c.JSON(code, echo.Map{"error": string(kind), "message": service.MessageOf(err)})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": string(service.KindInvalidInput), "message": msg})
}

func forbidden(c echo.Context) error {
    return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "not allowed to access this booking"})
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "authentication required"})
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// bindAndValidate decodes the body into req and runs the registered
// validator over it.  Failures come back as InvalidInput so callers can pass
// them straight to respondError.
func bindAndValidate(c echo.Context, req any) error {
    if err := c.Bind(req); err != nil {
        return &service.Error{Kind: service.KindInvalidInput, Message: "invalid request body", Err: err}
    }
    if err := c.Validate(req); err != nil {
        return &service.Error{Kind: service.KindInvalidInput, Message: err.Error()}
    }
    return nil
}
