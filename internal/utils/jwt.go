package utils // package utils provides helpers for token creation and hashing

import (
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5"

    "github.com/iliyamo/service-scheduling/internal/model"
)

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT carrying the claims the auth
// middleware expects: sub (account id as a decimal string), role, exp and
// iat.  Issuing tokens to end users belongs to the auth service; this exists
// for the seeder and for tests.
func NewAccessToken(secret string, accountID uint64, role model.Role, ttl time.Duration) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.MapClaims{
        "sub":  strconv.FormatUint(accountID, 10),
        "role": string(role),
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
