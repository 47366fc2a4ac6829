package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeRefresher 记录触发次数，onTrigger 不为 nil 时在触发时执行
type fakeRefresher struct {
	calls     atomic.Int32
	onTrigger func()
}

func (r *fakeRefresher) Trigger() bool {
	r.calls.Add(1)
	if r.onTrigger != nil {
		go r.onTrigger()
	}
	return true
}

func newTestMonitor(refresher Refresher, now time.Time) (*Monitor, *Store) {
	store := NewStore(3)
	m := NewMonitor(store, refresher, StalenessPolicy{MaxAge: 30 * time.Second, WaitTimeout: 200 * time.Millisecond})
	m.SetClock(func() time.Time { return now })
	return m, store
}

// TestSnapshotFresh 测试 10 秒前的快照直接返回，不触发刷新
func TestSnapshotFresh(t *testing.T) {
	refresher := &fakeRefresher{}
	m, store := newTestMonitor(refresher, base.Add(10*time.Second))
	store.Publish(snapAt(0))

	snap, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot 失败: %v", err)
	}
	if snap != store.Current() {
		t.Error("应返回当前快照")
	}
	if refresher.calls.Load() != 0 {
		t.Errorf("新鲜快照不应触发刷新, 触发了 %d 次", refresher.calls.Load())
	}
	if m.Stale(snap) {
		t.Error("10 秒前的快照不应过期")
	}
}

// TestSnapshotStale 测试 40 秒前的快照：触发一次刷新，立即返回旧快照
func TestSnapshotStale(t *testing.T) {
	refresher := &fakeRefresher{}
	m, store := newTestMonitor(refresher, base.Add(40*time.Second))
	old := snapAt(0)
	store.Publish(old)

	start := time.Now()
	snap, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot 失败: %v", err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("过期快照不应阻塞调用方")
	}
	if snap != old {
		t.Error("应立即返回旧快照")
	}
	if refresher.calls.Load() != 1 {
		t.Errorf("应触发 1 次刷新, 实际 %d 次", refresher.calls.Load())
	}
	if !m.Stale(snap) {
		t.Error("40 秒前的快照应过期")
	}
}

// TestSnapshotWaitsForFirst 测试没有快照时触发刷新并等待第一份快照
func TestSnapshotWaitsForFirst(t *testing.T) {
	refresher := &fakeRefresher{}
	m, store := newTestMonitor(refresher, base)
	refresher.onTrigger = func() {
		time.Sleep(20 * time.Millisecond)
		store.Publish(snapAt(0))
	}

	snap, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot 失败: %v", err)
	}
	if snap == nil || snap.Seq != 1 {
		t.Errorf("应返回第一份快照, got %+v", snap)
	}
	if refresher.calls.Load() != 1 {
		t.Errorf("应触发 1 次刷新, 实际 %d 次", refresher.calls.Load())
	}
}

// TestSnapshotWaitTimeout 测试没有快照且采集一直不完成时返回 ErrNoSnapshot
func TestSnapshotWaitTimeout(t *testing.T) {
	m, _ := newTestMonitor(&fakeRefresher{}, base)

	start := time.Now()
	snap, err := m.Snapshot(context.Background())
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err = %v, 期望 ErrNoSnapshot", err)
	}
	if snap != nil {
		t.Error("超时时不应返回快照")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("等待时间 %s 超过了 WaitTimeout", elapsed)
	}
}

// TestSnapshotCallerCancel 测试调用方 context 取消时提前返回
func TestSnapshotCallerCancel(t *testing.T) {
	store := NewStore(3)
	m := NewMonitor(store, nil, StalenessPolicy{MaxAge: time.Minute, WaitTimeout: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Snapshot(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("err = %v, 期望 ErrNoSnapshot", err)
	}
	if m.Refresh() {
		t.Error("没有 refresher 时 Refresh 应返回 false")
	}
}
