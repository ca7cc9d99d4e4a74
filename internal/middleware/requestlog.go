package middleware

import (
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/service-scheduling/internal/logger"
)

// RequestIDHeader carries the per-request id, echoed back when the client
// supplied one.
const RequestIDHeader = "X-Request-ID"

// RequestLog tags each request with an id and writes one log line when it
// completes.
func RequestLog() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            rid := c.Request().Header.Get(RequestIDHeader)
            if rid == "" {
                rid = uuid.NewString()
            }
            c.Response().Header().Set(RequestIDHeader, rid)

            err := next(c)
            if err != nil {
                c.Error(err)
            }

            status := c.Response().Status
            entry := logger.Log.WithFields(logrus.Fields{
                "request_id": rid,
                "method":     c.Request().Method,
                "path":       c.Path(),
                "status":     status,
                "latency_ms": time.Since(start).Milliseconds(),
                "account":    identityKey(c),
            })
            switch {
            case status >= 500:
                entry.Error("request")
            case status >= 400:
                entry.Warn("request")
            default:
                entry.Info("request")
            }
            return nil
        }
    }
}
