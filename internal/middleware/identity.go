package middleware

// identity.go holds the context keys written by JWTAuth and the helpers
// handlers and other middleware use to read them back.

import (
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/service-scheduling/internal/model"
)

const (
    ctxAccountID = "user_id"
    ctxRole      = "role"
)

// AccountID returns the authenticated account id.  ok is false for guests
// or when the subject claim is not a positive integer.
func AccountID(c echo.Context) (uint64, bool) {
    switch t := c.Get(ctxAccountID).(type) {
    case uint64:
        return t, t > 0
    case int:
        return uint64(t), t > 0
    case int64:
        return uint64(t), t > 0
    case float64:
        return uint64(t), t > 0
    case string:
        if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
            return n, true
        }
    }
    return 0, false
}

// RoleOf returns the authenticated role, or "" for guests.
func RoleOf(c echo.Context) model.Role {
    if s, ok := c.Get(ctxRole).(string); ok {
        return model.Role(s)
    }
    return ""
}

// identityKey is the per-caller part of rate limit keys: the account id, or
// "anon" when nobody is authenticated.
func identityKey(c echo.Context) string {
    if id, ok := AccountID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
