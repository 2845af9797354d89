package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// BaseModel 基础模型
type BaseModel struct {
	ID        uint      `json:"id" gorm:"primarykey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JSON 类型定义（用于JSONB字段和在途的原始记录）
type JSON json.RawMessage

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	*j = bytes
	return nil
}

// Value 实现 driver.Valuer 接口
func (j *JSON) Value() (driver.Value, error) {
	if len(*j) == 0 {
		return nil, nil
	}
	return json.RawMessage(*j), nil
}

// MarshalJSON 实现 json.Marshaler 接口
func (j *JSON) MarshalJSON() ([]byte, error) {
	if j == nil || len(*j) == 0 {
		return []byte("null"), nil
	}
	return *j, nil
}

// UnmarshalJSON 实现 json.Unmarshaler 接口
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = data
	return nil
}
