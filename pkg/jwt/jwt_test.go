package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	tokenString, err := manager.GenerateToken(10, 3, "alice", false, true)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := manager.VerifyToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, uint(10), claims.UserID)
	assert.Equal(t, uint(3), claims.TenantID)
	assert.Equal(t, uint(3), claims.CurrentTenantID, "默认当前律所等于所属律所")
	assert.Equal(t, "alice", claims.Username)
	assert.False(t, claims.IsPlatformAdmin)
	assert.True(t, claims.IsFirmAdmin)
	assert.Equal(t, "FirmSync", claims.Issuer)
}

func TestGenerateTokenWithTenant(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)

	tokenString, err := manager.GenerateTokenWithTenant(1, 3, 7, "admin", true, false)
	require.NoError(t, err)

	claims, err := manager.VerifyToken(tokenString)
	require.NoError(t, err)
	assert.Equal(t, uint(3), claims.TenantID)
	assert.Equal(t, uint(7), claims.CurrentTenantID)
	assert.True(t, claims.IsPlatformAdmin)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	tokenString, err := manager.GenerateToken(1, 1, "alice", false, false)
	require.NoError(t, err)

	other := NewJWTManager("another-secret", time.Hour)
	_, err = other.VerifyToken(tokenString)
	assert.Error(t, err)
}

func TestVerifyExpiredToken(t *testing.T) {
	manager := NewJWTManager("test-secret", -time.Minute)
	tokenString, err := manager.GenerateToken(1, 1, "alice", false, false)
	require.NoError(t, err)

	_, err = manager.VerifyToken(tokenString)
	assert.Error(t, err)
}

func TestRefreshToken(t *testing.T) {
	manager := NewJWTManager("test-secret", time.Hour)
	tokenString, err := manager.GenerateTokenWithTenant(1, 3, 7, "admin", true, false)
	require.NoError(t, err)

	refreshed, err := manager.RefreshToken(tokenString)
	require.NoError(t, err)

	claims, err := manager.VerifyToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.CurrentTenantID, "刷新后保持当前律所")
}
