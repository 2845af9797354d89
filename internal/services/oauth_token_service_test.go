package services

import (
	"testing"
	"time"

	"firmsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	assert.Len(t, normalizeKey("short"), 32)
	assert.Len(t, normalizeKey(""), 32)

	long := "0123456789abcdef0123456789abcdef-extra"
	key := normalizeKey(long)
	assert.Len(t, key, 32)
	assert.Equal(t, long[:32], string(key))
}

func TestTokenEncryptionRoundTrip(t *testing.T) {
	storage := &dbTokenStorage{key: normalizeKey("firmsync-test-encryption-key")}

	plaintext := "ya29.a0AfH6SMB-access-token"
	encrypted, err := storage.encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, encrypted)

	decrypted, err := storage.decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)

	// 空串不加密
	empty, err := storage.encrypt("")
	require.NoError(t, err)
	assert.Equal(t, "", empty)
}

func TestTokenEncryptionNondeterministic(t *testing.T) {
	storage := &dbTokenStorage{key: normalizeKey("firmsync-test-encryption-key")}

	first, err := storage.encrypt("same-token")
	require.NoError(t, err)
	second, err := storage.encrypt("same-token")
	require.NoError(t, err)

	// GCM随机nonce，同一明文两次密文不同
	assert.NotEqual(t, first, second)
}

func TestTokenDecryptWrongKey(t *testing.T) {
	storage := &dbTokenStorage{key: normalizeKey("key-one")}
	encrypted, err := storage.encrypt("secret")
	require.NoError(t, err)

	other := &dbTokenStorage{key: normalizeKey("key-two")}
	_, err = other.decrypt(encrypted)
	assert.Error(t, err)
}

func TestMemoryTokenStorage(t *testing.T) {
	storage := NewMemoryTokenStorage()

	// 不存在时返回 (nil, nil)
	token, err := storage.GetTokens(1, "clio")
	require.NoError(t, err)
	assert.Nil(t, token)

	require.NoError(t, storage.SaveTokens(validToken(1, "clio")))

	token, err = storage.GetTokens(1, "clio")
	require.NoError(t, err)
	require.NotNil(t, token)
	assert.Equal(t, "test-access", token.AccessToken)

	// 同键覆盖更新
	updated := validToken(1, "clio")
	updated.AccessToken = "new-access"
	require.NoError(t, storage.SaveTokens(updated))
	token, _ = storage.GetTokens(1, "clio")
	assert.Equal(t, "new-access", token.AccessToken)

	require.NoError(t, storage.DeleteTokens(1, "clio"))
	token, err = storage.GetTokens(1, "clio")
	require.NoError(t, err)
	assert.Nil(t, token)
}

func TestOAuthTokenExpiry(t *testing.T) {
	now := time.Now()

	// ExpiresIn 为0表示不过期
	token := &models.OAuthToken{IssuedAt: now.Add(-24 * time.Hour)}
	assert.False(t, token.Expired(now))
	assert.True(t, token.ExpiresAt().IsZero())

	token = &models.OAuthToken{IssuedAt: now.Add(-2 * time.Hour), ExpiresIn: 3600}
	assert.True(t, token.Expired(now))

	token = &models.OAuthToken{IssuedAt: now, ExpiresIn: 3600}
	assert.False(t, token.Expired(now))

	// 恰好到达过期时刻视为已过期
	token = &models.OAuthToken{IssuedAt: now.Add(-time.Hour), ExpiresIn: 3600}
	assert.True(t, token.Expired(token.ExpiresAt()))
}
