package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sync"

	"firmsync/internal/models"
	"firmsync/pkg/config"

	"gorm.io/gorm"
)

// TokenStorage OAuth令牌存储
// 不存在令牌时 GetTokens 返回 (nil, nil)，由调用方决定如何处理
type TokenStorage interface {
	GetTokens(tenantID uint, provider string) (*models.OAuthToken, error)
	SaveTokens(token *models.OAuthToken) error
	DeleteTokens(tenantID uint, provider string) error
}

// dbTokenStorage 持久化令牌存储，令牌字段AES-256-GCM加密落库
type dbTokenStorage struct {
	db  *gorm.DB
	key []byte
}

// NewTokenStorage 创建令牌存储
func NewTokenStorage(db *gorm.DB) TokenStorage {
	cfg := config.GetConfig()
	return &dbTokenStorage{
		db:  db,
		key: normalizeKey(cfg.OAuth.EncryptionKey),
	}
}

// normalizeKey 规整加密密钥为32字节（AES-256）
func normalizeKey(key string) []byte {
	if len(key) < 32 {
		// 密钥不足32字节时右侧补零
		padded := make([]byte, 32)
		copy(padded, key)
		return padded
	}
	// 密钥超过32字节时截取前32字节
	return []byte(key[:32])
}

// GetTokens 查询并解密令牌
func (s *dbTokenStorage) GetTokens(tenantID uint, provider string) (*models.OAuthToken, error) {
	var token models.OAuthToken
	err := s.db.Where("tenant_id = ? AND provider = ?", tenantID, provider).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if token.AccessToken, err = s.decrypt(token.AccessToken); err != nil {
		return nil, fmt.Errorf("解密访问令牌失败: %v", err)
	}
	if token.RefreshToken, err = s.decrypt(token.RefreshToken); err != nil {
		return nil, fmt.Errorf("解密刷新令牌失败: %v", err)
	}

	return &token, nil
}

// SaveTokens 加密并保存令牌（同键存在时覆盖更新）
func (s *dbTokenStorage) SaveTokens(token *models.OAuthToken) error {
	encAccess, err := s.encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("加密访问令牌失败: %v", err)
	}
	encRefresh, err := s.encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("加密刷新令牌失败: %v", err)
	}

	var existing models.OAuthToken
	err = s.db.Where("tenant_id = ? AND provider = ?", token.TenantID, token.Provider).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		record := *token
		record.AccessToken = encAccess
		record.RefreshToken = encRefresh
		return s.db.Create(&record).Error
	}
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"access_token":  encAccess,
		"refresh_token": encRefresh,
		"token_type":    token.TokenType,
		"scope":         token.Scope,
		"expires_in":    token.ExpiresIn,
		"issued_at":     token.IssuedAt,
	}
	return s.db.Model(&existing).Updates(updates).Error
}

// DeleteTokens 删除令牌
func (s *dbTokenStorage) DeleteTokens(tenantID uint, provider string) error {
	return s.db.Where("tenant_id = ? AND provider = ?", tenantID, provider).
		Delete(&models.OAuthToken{}).Error
}

// encrypt 加密敏感数据
func (s *dbTokenStorage) encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt 解密敏感数据
func (s *dbTokenStorage) decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	ciphertextBytes, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertextBytes) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertextBytes := ciphertextBytes[:nonceSize], ciphertextBytes[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", err
	}

	return string(plaintext), nil
}

// ========== 内存实现（测试用） ==========

// memoryTokenStorage 进程内令牌存储
type memoryTokenStorage struct {
	mu     sync.RWMutex
	tokens map[string]*models.OAuthToken
}

// NewMemoryTokenStorage 创建内存令牌存储
func NewMemoryTokenStorage() TokenStorage {
	return &memoryTokenStorage{tokens: make(map[string]*models.OAuthToken)}
}

func (s *memoryTokenStorage) GetTokens(tenantID uint, provider string) (*models.OAuthToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[memoryTokenKey(tenantID, provider)]
	if !ok {
		return nil, nil
	}
	copied := *token
	return &copied, nil
}

func (s *memoryTokenStorage) SaveTokens(token *models.OAuthToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *token
	s.tokens[memoryTokenKey(token.TenantID, token.Provider)] = &copied
	return nil
}

func (s *memoryTokenStorage) DeleteTokens(tenantID uint, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, memoryTokenKey(tenantID, provider))
	return nil
}

func memoryTokenKey(tenantID uint, provider string) string {
	return fmt.Sprintf("%d:%s", tenantID, provider)
}
