package service

import (
	"path/filepath"
	"testing"
	"time"

	"go-sysdash/internal/models"
	"go-sysdash/internal/repository"
	"go-sysdash/pkg/database"
)

func newTestAlarmService(t *testing.T) *AlarmService {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "alarm.db"), "admin123", nil)
	if err != nil {
		t.Fatalf("打开数据库失败: %v", err)
	}
	t.Cleanup(func() { database.Close(db) })
	return NewAlarmService(repository.NewAlarmRepository(db))
}

// TestAlarmServiceResolveByKey 测试按 key 解决活跃告警，不影响其他 key
func TestAlarmServiceResolveByKey(t *testing.T) {
	s := newTestAlarmService(t)

	for _, a := range []*models.Alarm{
		{Key: "disk_/", Name: "磁盘空间不足: /", EventType: models.AlarmEventDisk, Value: 95},
		{Key: "disk_/", Name: "磁盘空间不足: /", EventType: models.AlarmEventDisk, Value: 97},
		{Key: "cpu", Name: "CPU使用率过高", EventType: models.AlarmEventCPU, Value: 99},
	} {
		if err := s.CreateAlarm(a); err != nil {
			t.Fatalf("CreateAlarm 失败: %v", err)
		}
	}

	n, err := s.ResolveActiveByKey("disk_/")
	if err != nil {
		t.Fatalf("ResolveActiveByKey 失败: %v", err)
	}
	if n != 2 {
		t.Errorf("解决数量 = %d, 期望 2", n)
	}

	active, err := s.GetActiveAlarms()
	if err != nil {
		t.Fatalf("GetActiveAlarms 失败: %v", err)
	}
	if len(active) != 1 || active[0].Key != "cpu" {
		t.Errorf("活跃告警 = %+v, 期望只剩 cpu", active)
	}

	// 已解决的告警不会被再次解决
	if n, _ := s.ResolveActiveByKey("disk_/"); n != 0 {
		t.Errorf("重复解决数量 = %d, 期望 0", n)
	}
	if _, err := s.ResolveActiveByKey(""); err == nil {
		t.Error("空 key 应返回错误")
	}
}

// TestAlarmServiceRecent 测试最近告警按创建时间倒序，包含已解决的
func TestAlarmServiceRecent(t *testing.T) {
	s := newTestAlarmService(t)

	for i, key := range []string{"cpu", "memory", "disk_/"} {
		a := &models.Alarm{Key: key, Name: key, EventType: models.AlarmEventSystem, Value: float64(i)}
		if err := s.CreateAlarm(a); err != nil {
			t.Fatalf("CreateAlarm 失败: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := s.ResolveActiveByKey("memory"); err != nil {
		t.Fatalf("ResolveActiveByKey 失败: %v", err)
	}

	recent, err := s.GetRecentAlarms(2)
	if err != nil {
		t.Fatalf("GetRecentAlarms 失败: %v", err)
	}
	if len(recent) != 2 || recent[0].Key != "disk_/" || recent[1].Key != "memory" {
		t.Errorf("最近告警 = %+v, 期望 [disk_/ memory]", recent)
	}
	if recent[1].Status != models.AlarmStatusResolved {
		t.Errorf("memory 状态 = %s, 期望已解决", recent[1].Status)
	}

	// limit <= 0 时使用默认数量
	if all, _ := s.GetRecentAlarms(0); len(all) != 3 {
		t.Errorf("默认数量 = %d, 期望 3", len(all))
	}
}

// TestAlarmServiceList 测试按状态和事件类型过滤
func TestAlarmServiceList(t *testing.T) {
	s := newTestAlarmService(t)

	for i := 0; i < 3; i++ {
		s.CreateAlarm(&models.Alarm{Key: "cpu", Name: "cpu", EventType: models.AlarmEventCPU})
	}
	s.CreateAlarm(&models.Alarm{Key: "memory", Name: "memory", EventType: models.AlarmEventMemory})

	alarms, total, err := s.GetAlarmList(1, 2, "", string(models.AlarmEventCPU))
	if err != nil {
		t.Fatalf("GetAlarmList 失败: %v", err)
	}
	if total != 3 || len(alarms) != 2 {
		t.Errorf("total=%d len=%d, 期望 3/2", total, len(alarms))
	}

	if err := s.ResolveAlarm(alarms[0].ID); err != nil {
		t.Fatalf("ResolveAlarm 失败: %v", err)
	}
	if err := s.ResolveAlarm(alarms[0].ID); err == nil {
		t.Error("重复解决应返回错误")
	}

	_, resolved, _ := s.GetAlarmList(1, 10, string(models.AlarmStatusResolved), "")
	if resolved != 1 {
		t.Errorf("已解决数量 = %d, 期望 1", resolved)
	}

	stats, err := s.GetAlarmStats()
	if err != nil {
		t.Fatalf("GetAlarmStats 失败: %v", err)
	}
	if stats.TotalCount != 4 || stats.ActiveCount != 3 || stats.ResolvedCount != 1 {
		t.Errorf("stats = %+v", stats)
	}

	if err := s.ReactivateAlarm(alarms[0].ID); err != nil {
		t.Errorf("ReactivateAlarm 失败: %v", err)
	}
}

// TestAlarmServiceValidation 测试无效的事件类型被拒绝
func TestAlarmServiceValidation(t *testing.T) {
	s := newTestAlarmService(t)

	err := s.CreateAlarm(&models.Alarm{Key: "x", Name: "x", EventType: "device_offline"})
	if err == nil {
		t.Error("无效的事件类型应被拒绝")
	}
	if err := s.BatchResolveAlarms(nil); err == nil {
		t.Error("空 ID 列表应返回错误")
	}
}
