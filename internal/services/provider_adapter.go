package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"firmsync/internal/models"
)

// PullOptions 拉取选项
type PullOptions struct {
	RealTime bool // 是否实时触发（区别于定时同步，集成方可据此缩小时间窗口）
}

// ProviderAdapter 集成方适配器
// 封装单个外部集成方的数据拉取和令牌刷新
type ProviderAdapter interface {
	Provider() string
	PullData(ctx context.Context, token *models.OAuthToken, opts PullOptions) ([]models.JSON, error)
	RefreshToken(ctx context.Context, token *models.OAuthToken) (*models.OAuthToken, error)
}

// ProviderEndpoint 集成方接口地址配置
type ProviderEndpoint struct {
	BaseURL  string // API地址
	DataPath string // 数据拉取路径
	TokenURL string // OAuth令牌刷新地址
}

// 内置集成方的接口配置
var defaultProviderEndpoints = map[string]ProviderEndpoint{
	"google": {
		BaseURL:  "https://www.googleapis.com",
		DataPath: "/calendar/v3/events",
		TokenURL: "https://oauth2.googleapis.com/token",
	},
	"quickbooks": {
		BaseURL:  "https://quickbooks.api.intuit.com",
		DataPath: "/v3/company/records",
		TokenURL: "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer",
	},
	"dropbox": {
		BaseURL:  "https://api.dropboxapi.com",
		DataPath: "/2/files/list_folder",
		TokenURL: "https://api.dropboxapi.com/oauth2/token",
	},
	"clio": {
		BaseURL:  "https://app.clio.com",
		DataPath: "/api/v4/matters",
		TokenURL: "https://app.clio.com/oauth/token",
	},
}

// httpProviderAdapter 基于REST的通用适配器
type httpProviderAdapter struct {
	provider string
	endpoint ProviderEndpoint
	client   *http.Client
}

// NewHTTPProviderAdapter 创建REST适配器
func NewHTTPProviderAdapter(provider string, endpoint ProviderEndpoint, timeout time.Duration) ProviderAdapter {
	return &httpProviderAdapter{
		provider: provider,
		endpoint: endpoint,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Provider 集成方标识
func (a *httpProviderAdapter) Provider() string {
	return a.provider
}

// PullData 从集成方拉取原始记录
func (a *httpProviderAdapter) PullData(ctx context.Context, token *models.OAuthToken, opts PullOptions) ([]models.JSON, error) {
	pullURL := a.endpoint.BaseURL + a.endpoint.DataPath
	if opts.RealTime {
		pullURL += "?real_time=true"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pullURL, nil)
	if err != nil {
		return nil, err
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	req.Header.Set("Authorization", fmt.Sprintf("%s %s", tokenType, token.AccessToken))
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 检查状态码
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("集成方返回错误状态码 %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %v", err)
	}

	return decodeRecords(body)
}

// decodeRecords 解析集成方响应
// 兼容两种返回形态：裸数组，或 {success, data, message} 信封
func decodeRecords(body []byte) ([]models.JSON, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var records []models.JSON
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, fmt.Errorf("解析响应失败: %v", err)
		}
		return records, nil
	}

	var envelope struct {
		Success bool          `json:"success"`
		Data    []models.JSON `json:"data"`
		Message string        `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("解析响应失败: %v", err)
	}
	if !envelope.Success {
		return nil, fmt.Errorf("集成方返回失败: %s", envelope.Message)
	}

	return envelope.Data, nil
}

// RefreshToken 用刷新令牌换取新的访问令牌
func (a *httpProviderAdapter) RefreshToken(ctx context.Context, token *models.OAuthToken) (*models.OAuthToken, error) {
	if token.RefreshToken == "" {
		return nil, fmt.Errorf("缺少刷新令牌")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", token.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("刷新令牌失败，状态码 %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int64  `json:"expires_in"`
		Scope        string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("解析令牌响应失败: %v", err)
	}

	refreshed := *token
	refreshed.AccessToken = payload.AccessToken
	if payload.RefreshToken != "" {
		refreshed.RefreshToken = payload.RefreshToken
	}
	if payload.TokenType != "" {
		refreshed.TokenType = payload.TokenType
	}
	if payload.Scope != "" {
		refreshed.Scope = payload.Scope
	}
	refreshed.ExpiresIn = payload.ExpiresIn
	refreshed.IssuedAt = time.Now()

	return &refreshed, nil
}
