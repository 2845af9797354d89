package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisQueue Redis队列实现
// 同步完成的记录经此队列转发给下游处理（文档分析Agent、入库等）
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// SyncMessage 队列中的同步消息
type SyncMessage struct {
	SyncID      string            `json:"sync_id"`
	TenantID    uint              `json:"tenant_id"`
	Provider    string            `json:"provider"`     // 外部集成标识
	RecordCount int               `json:"record_count"` // 本次同步的记录数
	Records     []json.RawMessage `json:"records"`      // 归一化后的记录
	RealTime    bool              `json:"real_time"`    // 是否实时触发
	Created     int64             `json:"created"`
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisQueue 创建Redis队列实例
func NewRedisQueue(config *Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "firmsync:sync"
	}

	return &RedisQueue{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *RedisQueue) Ping() error {
	ctx := context.Background()
	return q.client.Ping(ctx).Err()
}

// Enqueue 将同步结果加入队列
func (q *RedisQueue) Enqueue(message *SyncMessage) error {
	ctx := context.Background()

	if message.Created == 0 {
		message.Created = time.Now().Unix()
	}

	// 序列化消息
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化同步消息失败: %v", err)
	}

	// 加入队列（左侧入队）
	queueKey := q.getQueueKey(message.Provider)
	if err := q.client.LPush(ctx, queueKey, data).Err(); err != nil {
		return fmt.Errorf("同步消息入队失败: %v", err)
	}

	// 记录同步运行状态（用于状态查询）
	syncKey := q.getSyncKey(message.SyncID)
	syncInfo := map[string]interface{}{
		"sync_id":      message.SyncID,
		"tenant_id":    message.TenantID,
		"provider":     message.Provider,
		"record_count": message.RecordCount,
		"status":       "queued",
		"queued_at":    time.Now().Unix(),
	}
	if err := q.client.HSet(ctx, syncKey, syncInfo).Err(); err != nil {
		return fmt.Errorf("记录同步状态失败: %v", err)
	}

	// 设置过期时间（24小时）
	q.client.Expire(ctx, syncKey, 24*time.Hour)

	return nil
}

// GetSyncStatus 获取同步运行状态
func (q *RedisQueue) GetSyncStatus(syncID string) (map[string]string, error) {
	ctx := context.Background()
	syncKey := q.getSyncKey(syncID)

	result, err := q.client.HGetAll(ctx, syncKey).Result()
	if err != nil {
		return nil, fmt.Errorf("获取同步状态失败: %v", err)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("同步记录不存在")
	}

	return result, nil
}

// GetQueueStats 获取各集成队列的积压统计
func (q *RedisQueue) GetQueueStats(providers []string) (map[string]int, error) {
	ctx := context.Background()
	stats := make(map[string]int)

	total := 0
	for _, provider := range providers {
		queueKey := q.getQueueKey(provider)
		length, err := q.client.LLen(ctx, queueKey).Result()
		if err != nil {
			return nil, fmt.Errorf("获取队列长度失败: %v", err)
		}
		stats[provider] = int(length)
		total += int(length)
	}
	stats["total"] = total

	return stats, nil
}

// ClearQueue 清空指定集成的队列
func (q *RedisQueue) ClearQueue(provider string) error {
	ctx := context.Background()
	return q.client.Del(ctx, q.getQueueKey(provider)).Err()
}

// PublishMessage 发布消息到指定频道
func (q *RedisQueue) PublishMessage(channel string, message interface{}) error {
	ctx := context.Background()

	// 序列化消息
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %v", err)
	}

	// 发布消息
	channelKey := fmt.Sprintf("%s:channel:%s", q.prefix, channel)
	if err := q.client.Publish(ctx, channelKey, data).Err(); err != nil {
		return fmt.Errorf("发布消息失败: %v", err)
	}

	return nil
}

// SubscribeChannel 订阅指定频道
func (q *RedisQueue) SubscribeChannel(channel string) *redis.PubSub {
	ctx := context.Background()
	channelKey := fmt.Sprintf("%s:channel:%s", q.prefix, channel)
	return q.client.Subscribe(ctx, channelKey)
}

// GetClient 获取Redis客户端（用于高级操作）
func (q *RedisQueue) GetClient() *redis.Client {
	return q.client
}

// 辅助方法

// getQueueKey 获取队列键名
func (q *RedisQueue) getQueueKey(provider string) string {
	return fmt.Sprintf("%s:records:%s", q.prefix, provider)
}

// getSyncKey 获取同步运行键名
func (q *RedisQueue) getSyncKey(syncID string) string {
	return fmt.Sprintf("%s:run:%s", q.prefix, syncID)
}
