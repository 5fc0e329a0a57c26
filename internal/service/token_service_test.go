package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-adp-console/internal/models"
	appErrors "github.com/noah-isme/sma-adp-console/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService("secret", nil)
	user := models.UserInfo{ID: "user-1", Email: "admin@school.id", FullName: "Admin", Role: models.RoleAdmin}

	token, err := svc.IssueToken(user, "2024", time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	session := SessionFromClaims(claims, token)
	assert.Equal(t, "2024", session.AcademicYearID)
	assert.Equal(t, token, session.AccessToken)
	assert.Equal(t, "Admin", session.User.FullName)
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	svc := NewTokenService("secret", nil)
	user := models.UserInfo{ID: "user-1", Role: models.RoleAdmin}

	other, err := NewTokenService("other", nil).IssueToken(user, "", time.Hour)
	require.NoError(t, err)
	_, err = svc.ValidateToken(other)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))

	expired, err := svc.IssueToken(user, "", -time.Minute)
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "user-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(none)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized))
}
