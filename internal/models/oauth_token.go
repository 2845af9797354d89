package models

import (
	"time"
)

// OAuthToken OAuth令牌
// 访问令牌与刷新令牌均加密存储，不返回给前端
type OAuthToken struct {
	ID       uint   `gorm:"primarykey" json:"id"`
	TenantID uint   `gorm:"not null;index;uniqueIndex:idx_token_tenant_provider" json:"tenant_id"`
	Provider string `gorm:"size:50;not null;uniqueIndex:idx_token_tenant_provider" json:"provider"`

	AccessToken  string `gorm:"size:2000;not null" json:"-"` // 加密存储
	RefreshToken string `gorm:"size:2000" json:"-"`          // 加密存储
	TokenType    string `gorm:"size:20;default:'Bearer'" json:"token_type"`
	Scope        string `gorm:"size:500" json:"scope"`

	// 过期信息：IssuedAt + ExpiresIn 秒 为过期时刻；ExpiresIn 为0表示不过期
	ExpiresIn int64     `json:"expires_in"`
	IssuedAt  time.Time `json:"issued_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 表名
func (OAuthToken) TableName() string {
	return "oauth_tokens"
}

// ExpiresAt 计算令牌过期时刻，不过期时返回零值
func (t *OAuthToken) ExpiresAt() time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// Expired 判断令牌在指定时刻是否已过期
func (t *OAuthToken) Expired(now time.Time) bool {
	expiresAt := t.ExpiresAt()
	if expiresAt.IsZero() {
		return false
	}
	return !now.Before(expiresAt)
}
