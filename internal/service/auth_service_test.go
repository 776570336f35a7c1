package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/classpulse-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAuth(now time.Time) *AuthService {
	s := NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})
	s.now = func() time.Time { return now }
	return s
}

func TestAuthService_RoundTrip(t *testing.T) {
	now := time.Now()
	s := testAuth(now)

	token, err := s.GenerateToken(TokenTypeStudent, " 0051234 ", "Ayu", "XII-TKJ-2")
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeStudent, claims.TokenType)
	assert.Equal(t, "0051234", claims.UserID)
	assert.Equal(t, "Ayu", claims.Name)
	assert.Equal(t, "XII-TKJ-2", claims.Section)
	assert.NotEmpty(t, claims.ID)
}

func TestAuthService_TeacherTokensCarryNoSection(t *testing.T) {
	s := testAuth(time.Now())

	token, err := s.GenerateToken(TokenTypeTeacher, "t-1", "Bu Rina", "XII-TKJ-2")
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Empty(t, claims.Section)
}

func TestAuthService_GenerateRejects(t *testing.T) {
	s := testAuth(time.Now())

	_, err := s.GenerateToken("admin", "u-1", "", "")
	assert.Error(t, err)

	_, err = s.GenerateToken(TokenTypeStudent, "  ", "", "")
	assert.Error(t, err)
}

func TestAuthService_ValidateRejects(t *testing.T) {
	issued := time.Now()
	s := testAuth(issued)
	token, err := s.GenerateToken(TokenTypeStudent, "s-1", "", "")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := testAuth(issued.Add(2 * time.Hour))
		_, err := later.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewAuthService(&config.Config{JWTSecret: "other", JWTExpiry: time.Hour})
		_, err := other.ValidateToken(token)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := s.ValidateToken("not.a.token")
		assert.Error(t, err)
	})

	t.Run("no user", func(t *testing.T) {
		claims := Claims{
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour))},
			TokenType:        TokenTypeStudent,
		}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = s.ValidateToken(raw)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		claims := Claims{UserID: "s-1", TokenType: TokenTypeStudent}
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = s.ValidateToken(raw)
		assert.Error(t, err)
	})
}
