package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"firmsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pullRecords(records ...string) func(context.Context, *models.OAuthToken, PullOptions) ([]models.JSON, error) {
	return func(context.Context, *models.OAuthToken, PullOptions) ([]models.JSON, error) {
		result := make([]models.JSON, 0, len(records))
		for _, r := range records {
			result = append(result, models.JSON(r))
		}
		return result, nil
	}
}

func TestSyncProviderSuccess(t *testing.T) {
	tokens := NewMemoryTokenStorage()
	require.NoError(t, tokens.SaveTokens(validToken(1, "clio")))

	oauth := newFakeOAuthManager()
	oauth.adapters["clio"] = &fakeAdapter{provider: "clio", pullFn: pullRecords(`{"id":1}`, `{"id":2}`)}

	logs := NewMemorySyncLogStore()
	sink := NewMemoryRecordSink().(*memoryRecordSink)
	audit := &captureAuditLogger{}
	svc := newTestSyncService(tokens, oauth, logs, sink, audit)

	result := svc.SyncProvider(context.Background(), 1, "clio", SyncOptions{})

	assert.True(t, result.Success)
	assert.Equal(t, 2, result.RecordsSynced)
	assert.Equal(t, 0, result.Conflicts)
	assert.Empty(t, result.Errors)
	assert.NotNil(t, result.Errors, "成功结果的errors应为空数组而非nil")
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
	assert.Equal(t, 0, audit.count())

	// 转发给下游的记录已带provider标记
	require.Len(t, sink.batches, 1)
	require.Len(t, sink.batches[0], 2)
	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(sink.batches[0][0], &record))
	assert.Equal(t, "clio", record["provider"])

	// 一次调用恰好一条日志
	all, err := logs.GetLogs(1, "clio")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.SyncStatusSuccess, all[0].Status)
	assert.Equal(t, 2, all[0].RecordsSynced)
}

func TestSyncProviderNoTokens(t *testing.T) {
	oauth := newFakeOAuthManager()
	oauth.adapters["clio"] = &fakeAdapter{provider: "clio", pullFn: pullRecords(`{"id":1}`)}

	logs := NewMemorySyncLogStore()
	audit := &captureAuditLogger{}
	svc := newTestSyncService(NewMemoryTokenStorage(), oauth, logs, NewMemoryRecordSink(), audit)

	result := svc.SyncProvider(context.Background(), 1, "clio", SyncOptions{})

	assert.False(t, result.Success)
	assert.Equal(t, 0, result.RecordsSynced)
	require.Len(t, result.Errors, 3, "每次重试的失败都应记录")
	for _, msg := range result.Errors {
		assert.Equal(t, "No tokens found", msg)
	}

	// 失败也只落一条日志，并触发审计
	all, _ := logs.GetLogs(1, "clio")
	require.Len(t, all, 1)
	assert.Equal(t, models.SyncStatusError, all[0].Status)
	assert.Equal(t, 1, audit.count())
}

func TestSyncProviderNoAdapter(t *testing.T) {
	tokens := NewMemoryTokenStorage()
	require.NoError(t, tokens.SaveTokens(validToken(1, "unknown")))

	svc := newTestSyncService(tokens, newFakeOAuthManager(), NewMemorySyncLogStore(), NewMemoryRecordSink(), &captureAuditLogger{})
	result := svc.SyncProvider(context.Background(), 1, "unknown", SyncOptions{})

	assert.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "No adapter for provider", result.Errors[0])
}

func TestSyncProviderEmptyData(t *testing.T) {
	tokens := NewMemoryTokenStorage()
	require.NoError(t, tokens.SaveTokens(validToken(1, "dropbox")))

	oauth := newFakeOAuthManager()
	oauth.adapters["dropbox"] = &fakeAdapter{provider: "dropbox", pullFn: pullRecords()}

	svc := newTestSyncService(tokens, oauth, NewMemorySyncLogStore(), NewMemoryRecordSink(), &captureAuditLogger{})
	result := svc.SyncProvider(context.Background(), 1, "dropbox", SyncOptions{})

	assert.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "No data to sync", result.Errors[0])
}

func TestSyncProviderNilDataInvalidFormat(t *testing.T) {
	tokens := NewMemoryTokenStorage()
	require.NoError(t, tokens.SaveTokens(validToken(1, "google")))

	oauth := newFakeOAuthManager()
	oauth.adapters["google"] = &fakeAdapter{
		provider: "google",
		pullFn: func(context.Context, *models.OAuthToken, PullOptions) ([]models.JSON, error) {
			return nil, nil
		},
	}

	svc := newTestSyncService(tokens, oauth, NewMemorySyncLogStore(), NewMemoryRecordSink(), &captureAuditLogger{})
	result := svc.SyncProvider(context.Background(), 1, "google", SyncOptions{})

	assert.False(t, result.Success)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "Invalid data format", result.Errors[0])
}

func TestSyncProviderRetryThenSucceed(t *testing.T) {
	tokens := NewMemoryTokenStorage()
	require.NoError(t, tokens.SaveTokens(validToken(1, "clio")))

	attempts := 0
	oauth := newFakeOAuthManager()
	oauth.adapters["clio"] = &fakeAdapter{
		provider: "clio",
		pullFn: func(context.Context, *models.OAuthToken, PullOptions) ([]models.JSON, error) {
			attempts++
			if attempts < 3 {
				return nil, errors.New("temporary outage")
			}
			return []models.JSON{models.JSON(`{"id":1}`)}, nil
		},
	}

	logs := NewMemorySyncLogStore()
	audit := &captureAuditLogger{}
	svc := newTestSyncService(tokens, oauth, logs, NewMemoryRecordSink(), audit)

	result := svc.SyncProvider(context.Background(), 1, "clio", SyncOptions{})

	assert.True(t, result.Success, "最后一次尝试成功则整体成功")
	assert.Equal(t, 3, attempts)
	assert.Empty(t, result.Errors, "成功结果不携带中间尝试的错误")
	assert.Equal(t, 0, audit.count())

	all, _ := logs.GetLogs(1, "clio")
	require.Len(t, all, 1)
	assert.Equal(t, models.SyncStatusSuccess, all[0].Status)
}

func TestSyncProviderRateLimited(t *testing.T) {
	tokens := NewMemoryTokenStorage()
	require.NoError(t, tokens.SaveTokens(validToken(1, "clio")))

	oauth := newFakeOAuthManager()
	oauth.adapters["clio"] = &fakeAdapter{provider: "clio", pullFn: pullRecords(`{"id":1}`)}

	svc := newTestSyncService(tokens, oauth, NewMemorySyncLogStore(), NewMemoryRecordSink(), &captureAuditLogger{})

	// 耗尽窗口配额
	for i := 0; i < 10; i++ {
		assert.True(t, svc.rateLimiter.Allow(1, "clio"))
	}

	result := svc.SyncProvider(context.Background(), 1, "clio", SyncOptions{})
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 3)
	for _, msg := range result.Errors {
		assert.Equal(t, "Rate limit exceeded", msg)
	}
}

func TestSyncProviderOneLogPerCall(t *testing.T) {
	tokens := NewMemoryTokenStorage()
	require.NoError(t, tokens.SaveTokens(validToken(1, "clio")))

	oauth := newFakeOAuthManager()
	oauth.adapters["clio"] = &fakeAdapter{provider: "clio", pullFn: pullRecords(`{"id":1}`)}

	logs := NewMemorySyncLogStore()
	svc := newTestSyncService(tokens, oauth, logs, NewMemoryRecordSink(), &captureAuditLogger{})

	svc.SyncProvider(context.Background(), 1, "clio", SyncOptions{})
	svc.SyncProvider(context.Background(), 1, "clio", SyncOptions{})
	svc.TriggerRealTimeSync(context.Background(), 1, "clio")

	all, err := logs.GetLogs(1, "clio")
	require.NoError(t, err)
	assert.Len(t, all, 3, "每次顶层调用恰好一条日志")
}

func TestSyncProviderContextCanceled(t *testing.T) {
	tokens := NewMemoryTokenStorage()
	require.NoError(t, tokens.SaveTokens(validToken(1, "clio")))

	oauth := newFakeOAuthManager()
	oauth.adapters["clio"] = &fakeAdapter{
		provider: "clio",
		pullFn: func(context.Context, *models.OAuthToken, PullOptions) ([]models.JSON, error) {
			return nil, errors.New("temporary outage")
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestSyncService(tokens, oauth, NewMemorySyncLogStore(), NewMemoryRecordSink(), &captureAuditLogger{})
	result := svc.SyncProvider(ctx, 1, "clio", SyncOptions{})

	// 调用方已取消时放弃剩余重试
	assert.False(t, result.Success)
	assert.Less(t, len(result.Errors), 4)
	assert.Contains(t, result.Errors, "context canceled")
}

func TestGetSyncStatus(t *testing.T) {
	tokens := NewMemoryTokenStorage()
	require.NoError(t, tokens.SaveTokens(validToken(1, "clio")))

	oauth := newFakeOAuthManager()
	oauth.adapters["clio"] = &fakeAdapter{provider: "clio", pullFn: pullRecords(`{"id":1}`)}

	logs := NewMemorySyncLogStore()
	svc := newTestSyncService(tokens, oauth, logs, NewMemoryRecordSink(), &captureAuditLogger{})

	status, err := svc.GetSyncStatus(1, "clio")
	require.NoError(t, err)
	assert.Nil(t, status, "无同步记录时返回nil")

	svc.SyncProvider(context.Background(), 1, "clio", SyncOptions{})

	status, err = svc.GetSyncStatus(1, "clio")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, models.SyncStatusSuccess, status.Status)
	assert.Equal(t, 1, status.RecordsSynced)
}
