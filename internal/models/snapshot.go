package models

import (
	"sort"
	"time"
)

// Section 快照中可独立失败的指标分区
type Section string

const (
	SectionCPU         Section = "cpu"
	SectionMemory      Section = "memory"
	SectionSwap        Section = "swap"
	SectionDisks       Section = "disks"
	SectionNetwork     Section = "network"
	SectionConnections Section = "connections"
	SectionProcesses   Section = "processes"
)

// AllSections 采集器每个周期读取的全部分区
var AllSections = []Section{
	SectionCPU,
	SectionMemory,
	SectionSwap,
	SectionDisks,
	SectionNetwork,
	SectionConnections,
	SectionProcesses,
}

// Snapshot 某一时刻的主机指标快照
// 发布到 Store 之后不可再修改，读者之间共享同一个指针
type Snapshot struct {
	Seq       uint64    `json:"seq"`       // 发布序号，单调递增
	Timestamp time.Time `json:"timestamp"` // 采集开始时间

	CPU    *CPUStat    `json:"cpu,omitempty"`    // nil 表示不可用
	Memory *MemoryStat `json:"memory,omitempty"` // nil 表示不可用
	Swap   *SwapStat   `json:"swap,omitempty"`   // nil 表示不可用

	Disks      []DiskStat      `json:"disks"`
	Interfaces []InterfaceStat `json:"interfaces"`

	Connections      []ConnectionStat `json:"connections"`
	ConnectionsTotal int              `json:"connections_total"` // 截断前的连接总数

	Processes      []ProcessStat `json:"processes"`
	ProcessesTotal int           `json:"processes_total"` // 截断前的进程总数

	// Unavailable 整体读取失败的分区及原因
	Unavailable map[Section]string `json:"unavailable,omitempty"`
}

// CPUStat CPU 信息
type CPUStat struct {
	Count          int       `json:"count"`            // 逻辑核数
	FrequencyMHz   float64   `json:"frequency_mhz"`    // 0 表示无法获取
	PerCorePercent []float64 `json:"per_core_percent"` // 每核使用率 (0-100)
}

// MemoryStat 物理内存 (bytes)
type MemoryStat struct {
	Total     uint64  `json:"total"`
	Available uint64  `json:"available"`
	Used      uint64  `json:"used"`
	Free      uint64  `json:"free"`
	Percent   float64 `json:"percent"`
}

// SwapStat 交换分区 (bytes)
type SwapStat struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}

// DiskStat 单个挂载点
type DiskStat struct {
	Device     string     `json:"device"`
	Mountpoint string     `json:"mountpoint"`
	Fstype     string     `json:"fstype"`
	Opts       string     `json:"opts"`
	Usage      *DiskUsage `json:"usage,omitempty"` // nil 表示该挂载点读取失败
	Err        string     `json:"error,omitempty"`
}

// DiskUsage 挂载点容量 (bytes)
type DiskUsage struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}

// InterfaceStat 网卡
type InterfaceStat struct {
	Name     string       `json:"name"`
	IPv4     []string     `json:"ipv4"`
	Counters *NetCounters `json:"counters,omitempty"` // nil 表示没有计数器
}

// NetCounters 网卡收发计数
type NetCounters struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	Errin       uint64 `json:"errin"`
	Errout      uint64 `json:"errout"`
	Dropin      uint64 `json:"dropin"`
	Dropout     uint64 `json:"dropout"`
}

// ConnectionStat 套接字连接，Family/Type 保留原始数值，展示时再转换
type ConnectionStat struct {
	Fd         uint32 `json:"fd"`
	Pid        int32  `json:"pid"`
	Family     uint32 `json:"family"`
	Type       uint32 `json:"type"`
	LocalIP    string `json:"local_ip"`
	LocalPort  uint32 `json:"local_port"`
	RemoteIP   string `json:"remote_ip"`
	RemotePort uint32 `json:"remote_port"`
	Status     string `json:"status"`
}

// ProcessStat 进程
type ProcessStat struct {
	Pid              int32   `json:"pid"`
	Name             string  `json:"name"`
	Status           string  `json:"status"`
	Username         string  `json:"username"`
	CreateTimeMillis int64   `json:"create_time"` // Unix 毫秒
	RSS              uint64  `json:"rss"`
	VMS              uint64  `json:"vms"`
	CPUPercent       float64 `json:"cpu_percent"`
	MemoryPercent    float32 `json:"memory_percent"`
}

// Available 判断分区是否可用
func (s *Snapshot) Available(section Section) bool {
	if s == nil {
		return false
	}
	_, failed := s.Unavailable[section]
	return !failed
}

// Reason 返回分区不可用的原因
func (s *Snapshot) Reason(section Section) string {
	if s == nil {
		return "no snapshot collected yet"
	}
	return s.Unavailable[section]
}

// Age 快照相对 now 的年龄
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	return now.Sub(s.Timestamp)
}

// NewerThan 判断 s 是否比 other 更新（先比较时间戳，再比较序号）
func (s *Snapshot) NewerThan(other *Snapshot) bool {
	if other == nil {
		return true
	}
	if s == nil {
		return false
	}
	if !s.Timestamp.Equal(other.Timestamp) {
		return s.Timestamp.After(other.Timestamp)
	}
	return s.Seq > other.Seq
}

// UnavailableSections 按固定顺序返回失败的分区
func (s *Snapshot) UnavailableSections() []Section {
	if s == nil {
		return nil
	}
	out := make([]Section, 0, len(s.Unavailable))
	for section := range s.Unavailable {
		out = append(out, section)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
