package monitor

import "time"

// Decision 新鲜度策略的判定结果
type Decision int

const (
	// ServeCached 快照足够新，直接返回
	ServeCached Decision = iota
	// RefreshAndWait 触发刷新并等待新快照（仅在还没有任何快照时）
	RefreshAndWait
	// RefreshAndServeStale 触发异步刷新，立即返回旧快照
	RefreshAndServeStale
)

func (d Decision) String() string {
	switch d {
	case ServeCached:
		return "serve-cached"
	case RefreshAndWait:
		return "refresh-and-wait"
	case RefreshAndServeStale:
		return "refresh-and-serve-stale"
	default:
		return "unknown"
	}
}

const (
	DefaultMaxAge      = 30 * time.Second
	DefaultWaitTimeout = 3 * time.Second
)

// StalenessPolicy 决定缓存快照能否直接返回
type StalenessPolicy struct {
	// MaxAge 快照的最大年龄，<= 0 表示永不过期
	MaxAge time.Duration
	// WaitTimeout 没有快照时最多等待多久
	WaitTimeout time.Duration
}

// DefaultStalenessPolicy 默认策略：30 秒过期，首次最多等 3 秒
func DefaultStalenessPolicy() StalenessPolicy {
	return StalenessPolicy{
		MaxAge:      DefaultMaxAge,
		WaitTimeout: DefaultWaitTimeout,
	}
}

// Decide 根据当前快照年龄做出判定。过期时从不阻塞调用方
func (p StalenessPolicy) Decide(age time.Duration, have bool) Decision {
	if !have {
		return RefreshAndWait
	}
	if p.MaxAge <= 0 || age < p.MaxAge {
		return ServeCached
	}
	return RefreshAndServeStale
}

// Stale 判断给定年龄是否已经过期
func (p StalenessPolicy) Stale(age time.Duration) bool {
	return p.MaxAge > 0 && age >= p.MaxAge
}
