package monitor

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"go-sysdash/internal/models"
)

// PsutilSource 基于 gopsutil 的指标源
type PsutilSource struct {
	// ConnectionKind 传给 net.Connections 的连接种类，默认 "inet"
	ConnectionKind string
	// AllPartitions 为 true 时包含伪文件系统
	AllPartitions bool
}

// NewPsutilSource 创建 gopsutil 指标源
func NewPsutilSource() *PsutilSource {
	return &PsutilSource{ConnectionKind: "inet"}
}

func (s *PsutilSource) CPU(ctx context.Context) (*models.CPUStat, error) {
	count, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("cpu count: %w", err)
	}

	// 间隔为 0 时与上一次调用比较，首次调用全部为 0
	percent, err := cpu.PercentWithContext(ctx, 0, true)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}

	stat := &models.CPUStat{
		Count:          count,
		PerCorePercent: percent,
	}

	// 部分虚拟机拿不到主频，不影响整个分区
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		stat.FrequencyMHz = infos[0].Mhz
	}

	return stat, nil
}

func (s *PsutilSource) Memory(ctx context.Context) (*models.MemoryStat, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	return &models.MemoryStat{
		Total:     vm.Total,
		Available: vm.Available,
		Used:      vm.Used,
		Free:      vm.Free,
		Percent:   vm.UsedPercent,
	}, nil
}

func (s *PsutilSource) Swap(ctx context.Context) (*models.SwapStat, error) {
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("swap memory: %w", err)
	}
	return &models.SwapStat{
		Total:   sw.Total,
		Used:    sw.Used,
		Free:    sw.Free,
		Percent: sw.UsedPercent,
	}, nil
}

func (s *PsutilSource) Partitions(ctx context.Context) ([]models.DiskStat, error) {
	parts, err := disk.PartitionsWithContext(ctx, s.AllPartitions)
	if err != nil {
		return nil, fmt.Errorf("disk partitions: %w", err)
	}

	disks := make([]models.DiskStat, 0, len(parts))
	for _, p := range parts {
		disks = append(disks, models.DiskStat{
			Device:     p.Device,
			Mountpoint: p.Mountpoint,
			Fstype:     p.Fstype,
			Opts:       strings.Join(p.Opts, ","),
		})
	}
	return disks, nil
}

func (s *PsutilSource) DiskUsage(ctx context.Context, mountpoint string) (*models.DiskUsage, error) {
	u, err := disk.UsageWithContext(ctx, mountpoint)
	if err != nil {
		return nil, fmt.Errorf("disk usage %s: %w", mountpoint, err)
	}
	return &models.DiskUsage{
		Total:   u.Total,
		Used:    u.Used,
		Free:    u.Free,
		Percent: u.UsedPercent,
	}, nil
}

func (s *PsutilSource) Interfaces(ctx context.Context) ([]models.InterfaceStat, error) {
	ifaces, err := net.InterfacesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("net interfaces: %w", err)
	}

	result := make([]models.InterfaceStat, 0, len(ifaces))
	for _, iface := range ifaces {
		stat := models.InterfaceStat{Name: iface.Name}
		for _, addr := range iface.Addrs {
			if ip, ok := ipv4(addr.Addr); ok {
				stat.IPv4 = append(stat.IPv4, ip)
			}
		}
		result = append(result, stat)
	}
	return result, nil
}

// ipv4 从 "192.168.1.10/24" 或 "192.168.1.10" 中提取 IPv4 地址
func ipv4(addr string) (string, bool) {
	if prefix, err := netip.ParsePrefix(addr); err == nil {
		if prefix.Addr().Is4() {
			return prefix.Addr().String(), true
		}
		return "", false
	}
	if ip, err := netip.ParseAddr(addr); err == nil && ip.Is4() {
		return ip.String(), true
	}
	return "", false
}

func (s *PsutilSource) NetCounters(ctx context.Context) (map[string]models.NetCounters, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("net io counters: %w", err)
	}

	result := make(map[string]models.NetCounters, len(counters))
	for _, c := range counters {
		result[c.Name] = models.NetCounters{
			BytesSent:   c.BytesSent,
			BytesRecv:   c.BytesRecv,
			PacketsSent: c.PacketsSent,
			PacketsRecv: c.PacketsRecv,
			Errin:       c.Errin,
			Errout:      c.Errout,
			Dropin:      c.Dropin,
			Dropout:     c.Dropout,
		}
	}
	return result, nil
}

func (s *PsutilSource) Connections(ctx context.Context) ([]models.ConnectionStat, error) {
	kind := s.ConnectionKind
	if kind == "" {
		kind = "inet"
	}

	conns, err := net.ConnectionsWithContext(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("net connections: %w", err)
	}

	result := make([]models.ConnectionStat, 0, len(conns))
	for _, c := range conns {
		result = append(result, models.ConnectionStat{
			Fd:         c.Fd,
			Pid:        c.Pid,
			Family:     c.Family,
			Type:       c.Type,
			LocalIP:    c.Laddr.IP,
			LocalPort:  c.Laddr.Port,
			RemoteIP:   c.Raddr.IP,
			RemotePort: c.Raddr.Port,
			Status:     c.Status,
		})
	}
	return result, nil
}

func (s *PsutilSource) ProcessIDs(ctx context.Context) ([]int32, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process list: %w", err)
	}
	return pids, nil
}

// Process 读取单个进程。进程在读取过程中退出时返回错误，由采集器跳过；
// 用户名等无权限读取的字段留空
func (s *PsutilSource) Process(ctx context.Context, pid int32) (*models.ProcessStat, error) {
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}

	name, err := p.NameWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process %d name: %w", pid, err)
	}

	stat := &models.ProcessStat{
		Pid:  pid,
		Name: name,
	}

	if status, err := p.StatusWithContext(ctx); err == nil && len(status) > 0 {
		stat.Status = status[0]
	}
	if username, err := p.UsernameWithContext(ctx); err == nil {
		stat.Username = username
	}
	if created, err := p.CreateTimeWithContext(ctx); err == nil {
		stat.CreateTimeMillis = created
	}
	if memInfo, err := p.MemoryInfoWithContext(ctx); err == nil && memInfo != nil {
		stat.RSS = memInfo.RSS
		stat.VMS = memInfo.VMS
	}
	if cpuPercent, err := p.CPUPercentWithContext(ctx); err == nil {
		stat.CPUPercent = cpuPercent
	}
	if memPercent, err := p.MemoryPercentWithContext(ctx); err == nil {
		stat.MemoryPercent = memPercent
	}

	return stat, nil
}

// 编译期接口检查
var _ Source = (*PsutilSource)(nil)
