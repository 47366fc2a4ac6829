package service

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"go-sysdash/internal/models"
	"go-sysdash/internal/monitor"
)

// createdLayout 进程创建时间的展示格式
const createdLayout = "2006-01-02 15:04:05"

// StatusReporter 提供采集器运行状态，通常是 *monitor.Collector
type StatusReporter interface {
	Status() monitor.CollectorStatus
}

// MonitorService 查询层：把快照字段转换为展示记录。
// 所有格式化都在读取时进行，不会写回快照
type MonitorService struct {
	monitor *monitor.Monitor
	status  StatusReporter
}

func NewMonitorService(m *monitor.Monitor, status StatusReporter) *MonitorService {
	return &MonitorService{
		monitor: m,
		status:  status,
	}
}

// snapshot 按新鲜度策略获取快照，拿不到时返回 nil
func (s *MonitorService) snapshot(ctx context.Context) *models.Snapshot {
	snap, err := s.monitor.Snapshot(ctx)
	if err != nil {
		return nil
	}
	return snap
}

// Refresh 请求一次异步刷新
func (s *MonitorService) Refresh() bool {
	return s.monitor.Refresh()
}

// Updates 返回在下一次快照发布时关闭的通道
func (s *MonitorService) Updates() <-chan struct{} {
	return s.monitor.Store().Updated()
}

// CPUView 获取 CPU 信息
func (s *MonitorService) CPUView(ctx context.Context) models.CPUView {
	return cpuView(s.snapshot(ctx))
}

// MemoryView 获取内存信息
func (s *MonitorService) MemoryView(ctx context.Context) models.MemoryView {
	return memoryView(s.snapshot(ctx))
}

// SwapView 获取交换分区信息
func (s *MonitorService) SwapView(ctx context.Context) models.SwapView {
	return swapView(s.snapshot(ctx))
}

// DiskViews 获取挂载点列表，读取失败的挂载点带有不可用标记
func (s *MonitorService) DiskViews(ctx context.Context) models.SectionView[models.DiskView] {
	return diskViews(s.snapshot(ctx))
}

// InterfaceAddresses 获取网卡 IPv4 地址列表
func (s *MonitorService) InterfaceAddresses(ctx context.Context) models.SectionView[models.InterfaceAddressView] {
	return interfaceAddresses(s.snapshot(ctx))
}

// NetworkViews 获取网卡流量列表，每个 IPv4 地址一行
func (s *MonitorService) NetworkViews(ctx context.Context) models.SectionView[models.NetworkInterfaceView] {
	snap := s.snapshot(ctx)
	section := models.SectionView[models.NetworkInterfaceView]{Records: make([]models.NetworkInterfaceView, 0)}
	if !snap.Available(models.SectionNetwork) {
		section.ViewStatus = unavailable(snap, models.SectionNetwork)
		return section
	}

	section.Available = true
	for _, iface := range snap.Interfaces {
		for _, ip := range iface.IPv4 {
			view := models.NetworkInterfaceView{
				Interface: iface.Name,
				IP:        ip,
			}
			if iface.Counters == nil {
				view.Reason = "io counters unavailable"
			} else {
				c := iface.Counters
				view.Available = true
				view.BytesSent = humanize.IBytes(c.BytesSent)
				view.BytesRecv = humanize.IBytes(c.BytesRecv)
				view.PacketsSent = c.PacketsSent
				view.PacketsRecv = c.PacketsRecv
				view.Errin = c.Errin
				view.Errout = c.Errout
				view.Dropin = c.Dropin
				view.Dropout = c.Dropout
			}
			section.Records = append(section.Records, view)
		}
	}
	return section
}

// ConnectionViews 分页获取连接列表
func (s *MonitorService) ConnectionViews(ctx context.Context, current, size int) models.ListView[models.ConnectionView] {
	snap := s.snapshot(ctx)
	list := models.ListView[models.ConnectionView]{Records: make([]models.ConnectionView, 0)}
	if !snap.Available(models.SectionConnections) {
		list.Reason = snap.Reason(models.SectionConnections)
		return list
	}

	list.Available = true
	list.Collected = len(snap.Connections)
	list.Total = snap.ConnectionsTotal
	list.Truncated = list.Total > list.Collected

	for _, c := range paginate(snap.Connections, current, size) {
		list.Records = append(list.Records, models.ConnectionView{
			Fd:            c.Fd,
			Pid:           c.Pid,
			Family:        familyName(c.Family),
			Type:          socketTypeName(c.Type),
			LocalAddress:  joinAddress(c.LocalIP, c.LocalPort),
			RemoteAddress: joinAddress(c.RemoteIP, c.RemotePort),
			Status:        c.Status,
		})
	}
	return list
}

// ProcessViews 分页获取进程列表
func (s *MonitorService) ProcessViews(ctx context.Context, current, size int) models.ListView[models.ProcessView] {
	snap := s.snapshot(ctx)
	list := models.ListView[models.ProcessView]{Records: make([]models.ProcessView, 0)}
	if !snap.Available(models.SectionProcesses) {
		list.Reason = snap.Reason(models.SectionProcesses)
		return list
	}

	list.Available = true
	list.Collected = len(snap.Processes)
	list.Total = snap.ProcessesTotal
	list.Truncated = list.Total > list.Collected

	for _, p := range paginate(snap.Processes, current, size) {
		view := models.ProcessView{
			Pid:           p.Pid,
			Name:          p.Name,
			Status:        p.Status,
			Username:      p.Username,
			RSS:           humanize.IBytes(p.RSS),
			VMS:           humanize.IBytes(p.VMS),
			CPUPercent:    p.CPUPercent,
			MemoryPercent: p.MemoryPercent,
		}
		if p.CreateTimeMillis > 0 {
			view.Created = time.UnixMilli(p.CreateTimeMillis).Format(createdLayout)
		}
		list.Records = append(list.Records, view)
	}
	return list
}

// HistoryView 历史快照的趋势点，从新到旧
func (s *MonitorService) HistoryView() []models.HistoryPoint {
	history := s.monitor.Store().History()
	points := make([]models.HistoryPoint, 0, len(history))
	for _, snap := range history {
		point := models.HistoryPoint{
			Timestamp: snap.Timestamp.Format(time.RFC3339),
		}
		if snap.CPU != nil {
			point.CPUPercent = average(snap.CPU.PerCorePercent)
		}
		if snap.Memory != nil {
			point.MemoryPercent = snap.Memory.Percent
		}
		if snap.Swap != nil {
			point.SwapPercent = snap.Swap.Percent
		}
		points = append(points, point)
	}
	return points
}

// Dashboard 仪表盘页：CPU、内存、交换分区、磁盘和网卡地址，来自同一份快照
func (s *MonitorService) Dashboard(ctx context.Context) models.DashboardView {
	snap := s.snapshot(ctx)
	view := models.DashboardView{
		CPU:     cpuView(snap),
		Memory:  memoryView(snap),
		Swap:    swapView(snap),
		Disks:   diskViews(snap),
		Network: interfaceAddresses(snap),
		Stale:   s.monitor.Stale(snap),
	}
	if snap != nil {
		view.CollectedAt = snap.Timestamp.Format(createdLayout)
		view.Age = humanize.RelTime(snap.Timestamp, s.monitor.Now(), "ago", "from now")
	}
	return view
}

// Health 采集器健康状态，不触发刷新
func (s *MonitorService) Health() models.MonitorHealth {
	store := s.monitor.Store()
	health := models.MonitorHealth{
		State:      string(monitor.StateStopped),
		HistoryLen: store.Len(),
	}

	if s.status != nil {
		st := s.status.Status()
		health.State = string(st.State)
		health.LastError = st.LastError
		health.ConsecutiveFailures = st.ConsecutiveFailures
		health.Cycles = st.Cycles
		health.Published = st.Published
		if !st.LastSuccess.IsZero() {
			health.LastSuccess = st.LastSuccess.Format(time.RFC3339)
		}
	}

	if cur := store.Current(); cur != nil {
		health.SnapshotAge = humanize.RelTime(cur.Timestamp, s.monitor.Now(), "ago", "from now")
		for _, section := range cur.UnavailableSections() {
			health.Unavailable = append(health.Unavailable, string(section))
		}
	}
	return health
}

func cpuView(snap *models.Snapshot) models.CPUView {
	if !snap.Available(models.SectionCPU) || snap.CPU == nil {
		return models.CPUView{
			ViewStatus:     unavailable(snap, models.SectionCPU),
			PerCorePercent: []float64{},
		}
	}

	view := models.CPUView{
		ViewStatus:     models.ViewStatus{Available: true},
		Count:          snap.CPU.Count,
		PerCorePercent: append([]float64(nil), snap.CPU.PerCorePercent...),
		AveragePercent: average(snap.CPU.PerCorePercent),
	}
	if snap.CPU.FrequencyMHz > 0 {
		view.Frequency = fmt.Sprintf("%.0f MHz", snap.CPU.FrequencyMHz)
	}
	return view
}

func memoryView(snap *models.Snapshot) models.MemoryView {
	if !snap.Available(models.SectionMemory) || snap.Memory == nil {
		return models.MemoryView{ViewStatus: unavailable(snap, models.SectionMemory)}
	}
	m := snap.Memory
	return models.MemoryView{
		ViewStatus:    models.ViewStatus{Available: true},
		Total:         humanize.IBytes(m.Total),
		AvailableSize: humanize.IBytes(m.Available),
		Used:          humanize.IBytes(m.Used),
		Free:          humanize.IBytes(m.Free),
		Percent:       m.Percent,
	}
}

func swapView(snap *models.Snapshot) models.SwapView {
	if !snap.Available(models.SectionSwap) || snap.Swap == nil {
		return models.SwapView{ViewStatus: unavailable(snap, models.SectionSwap)}
	}
	sw := snap.Swap
	return models.SwapView{
		ViewStatus: models.ViewStatus{Available: true},
		Total:      humanize.IBytes(sw.Total),
		Used:       humanize.IBytes(sw.Used),
		Free:       humanize.IBytes(sw.Free),
		Percent:    sw.Percent,
	}
}

func diskViews(snap *models.Snapshot) models.SectionView[models.DiskView] {
	section := models.SectionView[models.DiskView]{Records: make([]models.DiskView, 0)}
	if !snap.Available(models.SectionDisks) {
		section.ViewStatus = unavailable(snap, models.SectionDisks)
		return section
	}

	section.Available = true
	for _, d := range snap.Disks {
		view := models.DiskView{
			Device:     d.Device,
			Mountpoint: d.Mountpoint,
			Fstype:     d.Fstype,
			Opts:       d.Opts,
		}
		if d.Usage == nil {
			view.Reason = d.Err
			if view.Reason == "" {
				view.Reason = monitor.ErrMetricUnavailable.Error()
			}
		} else {
			view.Available = true
			view.Total = humanize.IBytes(d.Usage.Total)
			view.Used = humanize.IBytes(d.Usage.Used)
			view.Free = humanize.IBytes(d.Usage.Free)
			view.Percent = d.Usage.Percent
		}
		section.Records = append(section.Records, view)
	}
	return section
}

func interfaceAddresses(snap *models.Snapshot) models.SectionView[models.InterfaceAddressView] {
	section := models.SectionView[models.InterfaceAddressView]{Records: make([]models.InterfaceAddressView, 0)}
	if !snap.Available(models.SectionNetwork) {
		section.ViewStatus = unavailable(snap, models.SectionNetwork)
		return section
	}

	section.Available = true
	for _, iface := range snap.Interfaces {
		for _, ip := range iface.IPv4 {
			section.Records = append(section.Records, models.InterfaceAddressView{Interface: iface.Name, IP: ip})
		}
	}
	return section
}

func unavailable(snap *models.Snapshot, section models.Section) models.ViewStatus {
	reason := snap.Reason(section)
	if reason == "" {
		reason = monitor.ErrMetricUnavailable.Error()
	}
	return models.ViewStatus{Reason: reason}
}

// paginate 按页截取，current 从 1 开始，size <= 0 时返回全部
func paginate[T any](items []T, current, size int) []T {
	if size <= 0 {
		return items
	}
	if current < 1 {
		current = 1
	}
	start := (current - 1) * size
	if start >= len(items) {
		return nil
	}
	end := min(start+size, len(items))
	return items[start:end]
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func joinAddress(ip string, port uint32) string {
	if ip == "" {
		return ""
	}
	return net.JoinHostPort(ip, strconv.FormatUint(uint64(port), 10))
}

func familyName(family uint32) string {
	switch family {
	case syscall.AF_INET:
		return "AF_INET"
	case syscall.AF_INET6:
		return "AF_INET6"
	case syscall.AF_UNIX:
		return "AF_UNIX"
	default:
		return strconv.FormatUint(uint64(family), 10)
	}
}

func socketTypeName(t uint32) string {
	switch t {
	case syscall.SOCK_STREAM:
		return "SOCK_STREAM"
	case syscall.SOCK_DGRAM:
		return "SOCK_DGRAM"
	case syscall.SOCK_RAW:
		return "SOCK_RAW"
	default:
		return strconv.FormatUint(uint64(t), 10)
	}
}
