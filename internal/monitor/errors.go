package monitor

import (
	"errors"
	"fmt"

	"go-sysdash/internal/models"
)

var (
	// ErrMetricUnavailable 单个指标读取失败，快照中标记为不可用
	ErrMetricUnavailable = errors.New("metric unavailable")
	// ErrSourceTimeout 一个采集周期超时，放弃本周期并保留上一份快照
	ErrSourceTimeout = errors.New("metrics source timed out")
	// ErrSourceFatal 指标源永久不可用，停止采集直到人工重启
	ErrSourceFatal = errors.New("metrics source unreachable")
	// ErrNoSnapshot 还没有任何快照被发布
	ErrNoSnapshot = errors.New("no snapshot available")
)

// SectionError 某个分区读取失败
type SectionError struct {
	Section models.Section
	Err     error
}

func (e *SectionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Section, e.Err)
}

func (e *SectionError) Unwrap() error {
	return e.Err
}

// Is 让 errors.Is(err, ErrMetricUnavailable) 对所有分区错误成立
func (e *SectionError) Is(target error) bool {
	return target == ErrMetricUnavailable
}
