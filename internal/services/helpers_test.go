package services

import (
	"context"
	"sync"
	"time"

	"firmsync/internal/models"
)

// fakeAdapter 可编程的集成方适配器
type fakeAdapter struct {
	provider  string
	pullFn    func(ctx context.Context, token *models.OAuthToken, opts PullOptions) ([]models.JSON, error)
	refreshFn func(ctx context.Context, token *models.OAuthToken) (*models.OAuthToken, error)
}

func (a *fakeAdapter) Provider() string {
	return a.provider
}

func (a *fakeAdapter) PullData(ctx context.Context, token *models.OAuthToken, opts PullOptions) ([]models.JSON, error) {
	return a.pullFn(ctx, token, opts)
}

func (a *fakeAdapter) RefreshToken(ctx context.Context, token *models.OAuthToken) (*models.OAuthToken, error) {
	if a.refreshFn != nil {
		return a.refreshFn(ctx, token)
	}
	refreshed := *token
	refreshed.AccessToken = "refreshed-access"
	refreshed.ExpiresIn = 3600
	refreshed.IssuedAt = time.Now()
	return &refreshed, nil
}

// fakeOAuthManager 可编程的OAuth集成管理器
type fakeOAuthManager struct {
	mu         sync.Mutex
	adapters   map[string]ProviderAdapter
	tokens     TokenStorage
	refreshErr error
	refreshed  int
	status     map[string]bool
	statusErr  error
}

func newFakeOAuthManager() *fakeOAuthManager {
	return &fakeOAuthManager{
		adapters: make(map[string]ProviderAdapter),
		status:   make(map[string]bool),
	}
}

func (m *fakeOAuthManager) GetProviderAdapter(provider string) ProviderAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adapters[provider]
}

func (m *fakeOAuthManager) RefreshTokens(ctx context.Context, tenantID uint, provider string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refreshErr != nil {
		return m.refreshErr
	}
	m.refreshed++

	// 刷新成功时让存储中的令牌恢复有效
	if m.tokens != nil {
		token, err := m.tokens.GetTokens(tenantID, provider)
		if err != nil || token == nil {
			return ErrNoTokensFound
		}
		token.ExpiresIn = 3600
		token.IssuedAt = time.Now()
		return m.tokens.SaveTokens(token)
	}
	return nil
}

func (m *fakeOAuthManager) GetIntegrationStatus(tenantID uint) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.statusErr != nil {
		return nil, m.statusErr
	}
	status := make(map[string]bool, len(m.status))
	for provider, connected := range m.status {
		status[provider] = connected
	}
	return status, nil
}

func (m *fakeOAuthManager) refreshCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshed
}

// captureAuditLogger 记录所有审计调用
type captureAuditLogger struct {
	mu      sync.Mutex
	entries []capturedAudit
}

type capturedAudit struct {
	context string
	details map[string]interface{}
}

func (l *captureAuditLogger) LogError(auditContext string, details map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, capturedAudit{context: auditContext, details: details})
}

func (l *captureAuditLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// newTestSyncService 组装全内存依赖的同步服务，退避间隔压到最小
func newTestSyncService(tokens TokenStorage, oauth OAuthManager, logs SyncLogStore, sink RecordSink, audit AuditLogger) *SyncService {
	return &SyncService{
		rateLimiter: NewRateLimiter(time.Minute, 10),
		tokens:      tokens,
		oauth:       oauth,
		transformer: NewDataTransformer(),
		logs:        logs,
		sink:        sink,
		audit:       audit,
		maxRetries:  3,
		backoffBase: time.Millisecond,
		pullTimeout: time.Second,
	}
}

// validToken 返回一个不过期的测试令牌
func validToken(tenantID uint, provider string) *models.OAuthToken {
	return &models.OAuthToken{
		TenantID:    tenantID,
		Provider:    provider,
		AccessToken: "test-access",
		TokenType:   "Bearer",
		IssuedAt:    time.Now(),
	}
}
