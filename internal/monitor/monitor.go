// Package monitor 实现主机指标的轮询采集：采集器定时构建不可变快照，
// Store 以写时复制的方式发布，新鲜度策略决定缓存快照能否直接返回。
package monitor

import (
	"context"
	"time"

	"go-sysdash/internal/models"
)

// Refresher 能够接受带外刷新请求的组件，通常是 *Collector
type Refresher interface {
	Trigger() bool
}

// Monitor 把 Store、采集器和新鲜度策略组合在一起，供查询层读取快照
type Monitor struct {
	store     *Store
	refresher Refresher
	policy    StalenessPolicy
	now       func() time.Time
}

// NewMonitor 创建 Monitor。refresher 可以为 nil，此时过期快照不会触发刷新
func NewMonitor(store *Store, refresher Refresher, policy StalenessPolicy) *Monitor {
	return &Monitor{
		store:     store,
		refresher: refresher,
		policy:    policy,
		now:       time.Now,
	}
}

// SetClock 替换时间源，测试用
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// Now 当前时间
func (m *Monitor) Now() time.Time {
	return m.now()
}

func (m *Monitor) Store() *Store {
	return m.store
}

func (m *Monitor) Policy() StalenessPolicy {
	return m.policy
}

// Refresh 请求一次异步刷新
func (m *Monitor) Refresh() bool {
	if m.refresher == nil {
		return false
	}
	return m.refresher.Trigger()
}

// Snapshot 按新鲜度策略返回快照。快照过期时触发异步刷新并立即返回旧快照；
// 只有在还没有任何快照时才会等待，最多等待 WaitTimeout
func (m *Monitor) Snapshot(ctx context.Context) (*models.Snapshot, error) {
	cur := m.store.Current()

	switch m.policy.Decide(cur.Age(m.now()), cur != nil) {
	case ServeCached:
		return cur, nil
	case RefreshAndServeStale:
		m.Refresh()
		return cur, nil
	}

	// 先拿到通知通道再复查，避免错过两次读取之间的发布
	updated := m.store.Updated()
	if cur = m.store.Current(); cur != nil {
		return cur, nil
	}
	m.Refresh()

	wait := m.policy.WaitTimeout
	if wait <= 0 {
		wait = DefaultWaitTimeout
	}
	wctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	select {
	case <-updated:
		return m.store.Current(), nil
	case <-wctx.Done():
		return nil, ErrNoSnapshot
	}
}

// Stale 判断快照相对当前时间是否过期
func (m *Monitor) Stale(snap *models.Snapshot) bool {
	if snap == nil {
		return true
	}
	return m.policy.Stale(snap.Age(m.now()))
}
