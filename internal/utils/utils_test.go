package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/service-scheduling/internal/model"
)

func TestNewAccessToken(t *testing.T) {
	tok, err := NewAccessToken("k", 42, model.RoleAdministrator, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Exp, 5*time.Second)

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(tok.Token, claims, func(*jwt.Token) (interface{}, error) { return []byte("k"), nil })
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "HS256", parsed.Method.Alg())
	assert.Equal(t, "42", claims["sub"])
	assert.Equal(t, "administrator", claims["role"])
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("changeme123", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, VerifyPassword(hash, "changeme123"))
	assert.False(t, VerifyPassword(hash, "changeme124"))
	assert.False(t, VerifyPassword("not-a-hash", "changeme123"))
	assert.False(t, VerifyPassword("", ""))

	// out of range costs fall back to the default
	hash, err = HashPassword("changeme123", 99)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestCheckPassword(t *testing.T) {
	assert.NoError(t, CheckPassword("12345678"))
	assert.NoError(t, CheckPassword("pässwörd"))
	assert.ErrorIs(t, CheckPassword("short"), ErrWeakPassword)
	assert.ErrorIs(t, CheckPassword(strings.Repeat("a", 73)), ErrWeakPassword)

	_, err := HashPassword("short", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrWeakPassword)
}
