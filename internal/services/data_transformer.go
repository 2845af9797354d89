package services

import (
	"encoding/json"
	"sync"

	"firmsync/internal/models"
)

// TransformFunc 单条记录的集成方定制转换函数
// 入参是解析后的记录副本，可以就地修改并返回
type TransformFunc func(record map[string]interface{}) map[string]interface{}

// DataTransformer 数据转换器
// 把各集成方拉取的原始记录归一化为平台统一形态：
// 保留原始字段并追加 provider 标记；不做过滤，不做去重
type DataTransformer struct {
	mu         sync.RWMutex
	transforms map[string]TransformFunc
}

// NewDataTransformer 创建数据转换器
func NewDataTransformer() *DataTransformer {
	return &DataTransformer{
		transforms: make(map[string]TransformFunc),
	}
}

// Register 注册集成方定制的转换函数，未注册的集成方走默认转换
func (t *DataTransformer) Register(provider string, fn TransformFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transforms[provider] = fn
}

// Transform 执行数据转换
// 纯函数语义：不修改输入记录，输出条数等于输入条数，
// 同样的输入多次调用产生结构相同的输出
func (t *DataTransformer) Transform(raw []models.JSON, provider string) []models.JSON {
	t.mu.RLock()
	custom := t.transforms[provider]
	t.mu.RUnlock()

	result := make([]models.JSON, 0, len(raw))
	for _, record := range raw {
		// 反序列化得到独立副本，避免改动原始数据
		var data map[string]interface{}
		if err := json.Unmarshal(record, &data); err != nil {
			// 非对象记录原样透传
			result = append(result, record)
			continue
		}

		if custom != nil {
			data = custom(data)
		}
		data["provider"] = provider

		normalized, err := json.Marshal(data)
		if err != nil {
			result = append(result, record)
			continue
		}
		result = append(result, models.JSON(normalized))
	}

	return result
}
