package middleware // middleware holds the echo middleware shared by every route group

import (
    "fmt"
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

func unauthorized(c echo.Context, msg string) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": msg})
}

// JWTAuth validates a Bearer access token issued by the auth service and
// stores its subject and role in the context (see AccountID and RoleOf).
// Only HS256 tokens signed with secret are accepted.
func JWTAuth(secret string) echo.MiddlewareFunc {
    keyFunc := func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }
    parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return unauthorized(c, "missing bearer token")
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            claims := jwt.MapClaims{}
            tok, err := parser.ParseWithClaims(raw, claims, keyFunc)
            if err != nil || !tok.Valid {
                return unauthorized(c, "invalid token")
            }

            // sub may be a string or a JSON number depending on the issuer
            var sub string
            switch v := claims["sub"].(type) {
            case string:
                sub = v
            case float64:
                sub = fmt.Sprintf("%.0f", v)
            }
            role, _ := claims["role"].(string)
            if sub == "" || role == "" {
                return unauthorized(c, "invalid claims")
            }

            c.Set(ctxAccountID, sub)
            c.Set(ctxRole, role)
            return next(c)
        }
    }
}
