package monitor

import (
	"testing"
	"time"
)

func TestStalenessDecide(t *testing.T) {
	policy := StalenessPolicy{MaxAge: 30 * time.Second, WaitTimeout: time.Second}

	tests := []struct {
		name string
		age  time.Duration
		have bool
		want Decision
	}{
		{"没有快照", 0, false, RefreshAndWait},
		{"新鲜", 10 * time.Second, true, ServeCached},
		{"刚好过期", 30 * time.Second, true, RefreshAndServeStale},
		{"过期", 40 * time.Second, true, RefreshAndServeStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := policy.Decide(tt.age, tt.have); got != tt.want {
				t.Errorf("Decide(%s, %v) = %s, 期望 %s", tt.age, tt.have, got, tt.want)
			}
		})
	}
}

func TestStalenessNeverExpires(t *testing.T) {
	policy := StalenessPolicy{MaxAge: 0}
	if got := policy.Decide(24*time.Hour, true); got != ServeCached {
		t.Errorf("MaxAge <= 0 时应永不过期, got %s", got)
	}
	if policy.Stale(24 * time.Hour) {
		t.Error("MaxAge <= 0 时 Stale 应为 false")
	}
	if got := policy.Decide(0, false); got != RefreshAndWait {
		t.Errorf("没有快照时仍应等待, got %s", got)
	}
}

func TestDefaultStalenessPolicy(t *testing.T) {
	p := DefaultStalenessPolicy()
	if p.MaxAge != DefaultMaxAge || p.WaitTimeout != DefaultWaitTimeout {
		t.Errorf("默认策略 = %+v", p)
	}
	if !p.Stale(DefaultMaxAge) || p.Stale(DefaultMaxAge-time.Second) {
		t.Error("Stale 边界错误")
	}
	if Decision(42).String() != "unknown" {
		t.Error("未知判定应输出 unknown")
	}
}
