package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"go-sysdash/internal/models"
	"go-sysdash/internal/monitor"
)

// AlarmThresholds 告警阈值配置（百分比）
type AlarmThresholds struct {
	MaxCPUPercent    float64
	MaxMemoryPercent float64
	MaxDiskPercent   float64
}

// DefaultAlarmThresholds 默认告警阈值
var DefaultAlarmThresholds = AlarmThresholds{
	MaxCPUPercent:    90,
	MaxMemoryPercent: 90,
	MaxDiskPercent:   90,
}

// AlarmSink 告警的持久化出口，通常是 *AlarmService
type AlarmSink interface {
	CreateAlarm(alarm *models.Alarm) error
	ResolveActiveByKey(key string) (int, error)
}

type alarmTask struct {
	alarm   *models.Alarm // 非 nil 时创建告警
	resolve string        // 非空时解决该 key 的活跃告警
}

// AlarmMonitor 订阅采集器事件，把阈值越界和采集故障转换为告警。
// 回调只做阈值判断和入队，数据库写入由 Run 在独立 goroutine 中完成，不阻塞采集器
type AlarmMonitor struct {
	sink       AlarmSink
	logger     *zap.Logger
	thresholds AlarmThresholds
	mutex      sync.RWMutex

	// 告警去重: 相同 key 的告警在冷却时间内只产生一次
	lastAlarmTime map[string]time.Time
	firing        map[string]bool // 当前处于越界状态的 key
	cooldown      time.Duration

	tasks chan alarmTask
	now   func() time.Time
	wg    conc.WaitGroup
}

// NewAlarmMonitor 创建告警监控器
func NewAlarmMonitor(sink AlarmSink, logger *zap.Logger) *AlarmMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlarmMonitor{
		sink:          sink,
		logger:        logger,
		thresholds:    DefaultAlarmThresholds,
		lastAlarmTime: make(map[string]time.Time),
		firing:        make(map[string]bool),
		cooldown:      5 * time.Minute, // 同 key 告警5分钟内只触发一次
		tasks:         make(chan alarmTask, 64),
		now:           time.Now,
	}
}

// SetThresholds 设置自定义阈值
func (m *AlarmMonitor) SetThresholds(thresholds AlarmThresholds) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.thresholds = thresholds
}

// SetCooldown 设置冷却时间
func (m *AlarmMonitor) SetCooldown(d time.Duration) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.cooldown = d
}

// Start 在后台运行 Run，ctx 结束后用 Wait 等待它退出
func (m *AlarmMonitor) Start(ctx context.Context) {
	m.wg.Go(func() { m.Run(ctx) })
}

// Wait 等待 Start 启动的 Run 退出。关闭数据库之前调用
func (m *AlarmMonitor) Wait() {
	m.wg.Wait()
}

// Run 处理告警队列，直到 ctx 结束。退出前处理完已入队的任务
func (m *AlarmMonitor) Run(ctx context.Context) {
	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			m.flush()
			return
		case <-cleanup.C:
			m.CleanupOldAlarms()
		case task := <-m.tasks:
			m.handle(task)
		}
	}
}

func (m *AlarmMonitor) flush() {
	for {
		select {
		case task := <-m.tasks:
			m.handle(task)
		default:
			return
		}
	}
}

func (m *AlarmMonitor) handle(task alarmTask) {
	if task.alarm != nil {
		if err := m.sink.CreateAlarm(task.alarm); err != nil {
			m.logger.Error("create alarm failed", zap.String("key", task.alarm.Key), zap.Error(err))
			return
		}
		m.logger.Warn("alarm raised",
			zap.String("key", task.alarm.Key),
			zap.String("name", task.alarm.Name),
			zap.String("description", task.alarm.Description),
		)
		return
	}

	n, err := m.sink.ResolveActiveByKey(task.resolve)
	if err != nil {
		m.logger.Error("resolve alarm failed", zap.String("key", task.resolve), zap.Error(err))
		return
	}
	if n > 0 {
		m.logger.Info("alarm recovered", zap.String("key", task.resolve), zap.Int("resolved", n))
	}
}

// SnapshotPublished 检查新快照是否越过阈值
func (m *AlarmMonitor) SnapshotPublished(snap *models.Snapshot) {
	m.mutex.RLock()
	thresholds := m.thresholds
	m.mutex.RUnlock()

	// 1. 检查 CPU 平均使用率
	if snap.CPU != nil {
		cpu := average(snap.CPU.PerCorePercent)
		m.check("cpu", cpu > thresholds.MaxCPUPercent, func() *models.Alarm {
			return &models.Alarm{
				Name:      "CPU使用率过高",
				EventType: models.AlarmEventCPU,
				Value:     cpu,
				Description: fmt.Sprintf("%d 核平均使用率 %.2f%% 超过阈值 %.2f%%",
					snap.CPU.Count, cpu, thresholds.MaxCPUPercent),
			}
		})
	}

	// 2. 检查内存使用率
	if snap.Memory != nil {
		mem := snap.Memory.Percent
		m.check("memory", mem > thresholds.MaxMemoryPercent, func() *models.Alarm {
			return &models.Alarm{
				Name:      "内存使用率过高",
				EventType: models.AlarmEventMemory,
				Value:     mem,
				Description: fmt.Sprintf("内存使用率 %.2f%% 超过阈值 %.2f%%",
					mem, thresholds.MaxMemoryPercent),
			}
		})
	}

	// 3. 检查每个挂载点
	for _, d := range snap.Disks {
		if d.Usage == nil {
			continue
		}
		usage := d.Usage.Percent
		mountpoint := d.Mountpoint
		m.check("disk_"+mountpoint, usage > thresholds.MaxDiskPercent, func() *models.Alarm {
			return &models.Alarm{
				Name:      fmt.Sprintf("磁盘空间不足: %s", mountpoint),
				EventType: models.AlarmEventDisk,
				Value:     usage,
				Description: fmt.Sprintf("挂载点 %s 使用率 %.2f%% 超过阈值 %.2f%%",
					mountpoint, usage, thresholds.MaxDiskPercent),
			}
		})
	}

	// 采集恢复
	m.check("collector_timeout", false, nil)
	m.check("collector_fatal", false, nil)
}

// CycleFailed 采集周期失败
func (m *AlarmMonitor) CycleFailed(err error) {
	if !errors.Is(err, monitor.ErrSourceTimeout) {
		return
	}
	m.check("collector_timeout", true, func() *models.Alarm {
		return &models.Alarm{
			Name:        "指标采集超时",
			EventType:   models.AlarmEventCollector,
			Description: fmt.Sprintf("采集周期超时，继续使用上一份快照: %v", err),
		}
	})
}

// SourceFatal 指标源不可达，采集已停止
func (m *AlarmMonitor) SourceFatal(err error) {
	m.check("collector_fatal", true, func() *models.Alarm {
		return &models.Alarm{
			Name:        "指标源不可用",
			EventType:   models.AlarmEventSystem,
			Description: fmt.Sprintf("采集已停止，需要人工重启: %v", err),
		}
	})
}

// check 越界时创建告警（带冷却），从越界恢复时解决该 key 的活跃告警。
// 冷却只作用于持续中的越界，恢复后再次越界会立即告警
func (m *AlarmMonitor) check(key string, breached bool, build func() *models.Alarm) {
	m.mutex.Lock()
	wasFiring := m.firing[key]
	m.firing[key] = breached
	if wasFiring && !breached {
		delete(m.lastAlarmTime, key)
	}
	m.mutex.Unlock()

	if breached {
		m.createAlarm(key, build())
		return
	}
	if wasFiring {
		m.enqueue(alarmTask{resolve: key})
	}
}

// createAlarm 创建告警（带去重）
func (m *AlarmMonitor) createAlarm(key string, alarm *models.Alarm) {
	m.mutex.Lock()
	// 检查冷却时间
	if lastTime, exists := m.lastAlarmTime[key]; exists && m.now().Sub(lastTime) < m.cooldown {
		m.mutex.Unlock()
		return
	}
	m.lastAlarmTime[key] = m.now()
	m.mutex.Unlock()

	alarm.Key = key
	alarm.Status = models.AlarmStatusActive
	m.enqueue(alarmTask{alarm: alarm})
}

func (m *AlarmMonitor) enqueue(task alarmTask) {
	select {
	case m.tasks <- task:
	default:
		m.logger.Warn("alarm queue full, dropping task")
	}
}

// CleanupOldAlarms 清理旧的告警时间记录（定期清理，避免内存泄漏）
func (m *AlarmMonitor) CleanupOldAlarms() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	for key, lastTime := range m.lastAlarmTime {
		if now.Sub(lastTime) > m.cooldown*2 {
			delete(m.lastAlarmTime, key)
		}
	}
}

var _ monitor.Observer = (*AlarmMonitor)(nil)
