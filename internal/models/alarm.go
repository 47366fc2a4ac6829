package models

import (
	"time"
)

// AlarmStatus 告警状态枚举
type AlarmStatus string

const (
	AlarmStatusActive   AlarmStatus = "pending"  // 活跃状态
	AlarmStatusResolved AlarmStatus = "resolved" // 已解决
)

// AlarmEvent 事件类型枚举
type AlarmEvent string

const (
	AlarmEventCPU       AlarmEvent = "cpu"       // CPU 使用率过高
	AlarmEventMemory    AlarmEvent = "memory"    // 内存使用率过高
	AlarmEventDisk      AlarmEvent = "disk"      // 磁盘空间不足
	AlarmEventCollector AlarmEvent = "collector" // 采集超时、采集失败
	AlarmEventSystem    AlarmEvent = "system"    // 指标源不可用，需要人工重启
)

// Alarm 告警数据模型
type Alarm struct {
	ID          uint        `json:"id" gorm:"primaryKey;autoIncrement" example:"1"`
	Key         string      `json:"key" gorm:"column:alarm_key;size:255;index" example:"disk_/var"`
	Name        string      `json:"name" gorm:"not null;size:255" example:"磁盘空间不足"`
	EventType   AlarmEvent  `json:"event_type" gorm:"not null;size:50" example:"disk"`
	Status      AlarmStatus `json:"status" gorm:"not null;size:20;default:'pending'" example:"pending"`
	Value       float64     `json:"value" example:"93.5"`
	Description string      `json:"description" gorm:"type:text" example:"挂载点 /var 使用率 93.50% 超过阈值 90.00%"`
	CreatedAt   time.Time   `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time   `json:"updated_at" gorm:"autoUpdateTime"`
	ResolvedAt  *time.Time  `json:"resolved_at,omitempty"`
}
