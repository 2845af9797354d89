package services

import (
	"testing"

	"firmsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySyncLogStoreLatestStatus(t *testing.T) {
	store := NewMemorySyncLogStore()

	// 无记录时返回 (nil, nil)
	latest, err := store.GetLatestStatus(1, "clio")
	require.NoError(t, err)
	assert.Nil(t, latest)

	require.NoError(t, store.LogSync(&models.SyncLog{TenantID: 1, Provider: "clio", Status: models.SyncStatusError}))
	require.NoError(t, store.LogSync(&models.SyncLog{TenantID: 1, Provider: "clio", Status: models.SyncStatusSuccess, RecordsSynced: 5}))

	latest, err = store.GetLatestStatus(1, "clio")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.SyncStatusSuccess, latest.Status)
	assert.Equal(t, 5, latest.RecordsSynced)
}

func TestMemorySyncLogStoreTenantIsolation(t *testing.T) {
	store := NewMemorySyncLogStore()

	require.NoError(t, store.LogSync(&models.SyncLog{TenantID: 1, Provider: "clio"}))
	require.NoError(t, store.LogSync(&models.SyncLog{TenantID: 2, Provider: "clio"}))
	require.NoError(t, store.LogSync(&models.SyncLog{TenantID: 1, Provider: "dropbox"}))

	logs, err := store.GetLogs(1, "clio")
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	latest, err := store.GetLatestStatus(2, "dropbox")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestMemorySyncLogStoreGetLogsOrder(t *testing.T) {
	store := NewMemorySyncLogStore()

	for i := 1; i <= 3; i++ {
		require.NoError(t, store.LogSync(&models.SyncLog{TenantID: 1, Provider: "clio", RecordsSynced: i}))
	}

	// GetLogs 按插入顺序
	logs, err := store.GetLogs(1, "clio")
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, 1, logs[0].RecordsSynced)
	assert.Equal(t, 3, logs[2].RecordsSynced)
}

func TestMemorySyncLogStorePagination(t *testing.T) {
	store := NewMemorySyncLogStore()

	for i := 1; i <= 5; i++ {
		require.NoError(t, store.LogSync(&models.SyncLog{TenantID: 1, Provider: "clio", RecordsSynced: i}))
	}

	// 分页按新的在前
	page, total, err := store.GetLogsPage(1, "clio", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, 5, page[0].RecordsSynced)
	assert.Equal(t, 4, page[1].RecordsSynced)

	// 第二页
	page, _, err = store.GetLogsPage(1, "clio", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 3, page[0].RecordsSynced)

	// 越界offset返回空页
	page, total, err = store.GetLogsPage(1, "clio", 10, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Empty(t, page)
}
