package models

// ViewStatus 每个展示视图都带有的可用性标记
type ViewStatus struct {
	Available bool   `json:"available"`        // 数据是否可用
	Reason    string `json:"reason,omitempty"` // 不可用原因
}

// CPUView CPU 展示记录
type CPUView struct {
	ViewStatus
	Count          int       `json:"count"`            // 逻辑核数
	Frequency      string    `json:"frequency"`        // 例如 "2400 MHz"
	PerCorePercent []float64 `json:"per_core_percent"` // 每核使用率
	AveragePercent float64   `json:"average_percent"`  // 各核平均使用率
}

// MemoryView 内存展示记录，容量字段为人类可读格式
type MemoryView struct {
	ViewStatus
	Total         string  `json:"total"`
	AvailableSize string  `json:"available_size"`
	Used          string  `json:"used"`
	Free          string  `json:"free"`
	Percent       float64 `json:"percent"`
}

// SwapView 交换分区展示记录
type SwapView struct {
	ViewStatus
	Total   string  `json:"total"`
	Used    string  `json:"used"`
	Free    string  `json:"free"`
	Percent float64 `json:"percent"`
}

// DiskView 挂载点展示记录
type DiskView struct {
	ViewStatus
	Device     string  `json:"device"`
	Mountpoint string  `json:"mountpoint"`
	Fstype     string  `json:"fstype"`
	Opts       string  `json:"opts"`
	Total      string  `json:"total"`
	Used       string  `json:"used"`
	Free       string  `json:"free"`
	Percent    float64 `json:"percent"`
}

// InterfaceAddressView 网卡与 IPv4 地址（仪表盘页）
type InterfaceAddressView struct {
	Interface string `json:"interface"`
	IP        string `json:"ip"`
}

// NetworkInterfaceView 网卡流量展示记录（网络页）
type NetworkInterfaceView struct {
	ViewStatus
	Interface   string `json:"interface"`
	IP          string `json:"ip"`
	BytesSent   string `json:"bytes_sent"`
	BytesRecv   string `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	Errin       uint64 `json:"errin"`
	Errout      uint64 `json:"errout"`
	Dropin      uint64 `json:"dropin"`
	Dropout     uint64 `json:"dropout"`
}

// ConnectionView 连接展示记录
type ConnectionView struct {
	Fd            uint32 `json:"fd"`
	Pid           int32  `json:"pid"`
	Family        string `json:"family"` // AF_INET / AF_INET6 / AF_UNIX
	Type          string `json:"type"`   // SOCK_STREAM / SOCK_DGRAM
	LocalAddress  string `json:"local_address"`
	RemoteAddress string `json:"remote_address"`
	Status        string `json:"status"`
}

// ProcessView 进程展示记录
type ProcessView struct {
	Pid           int32   `json:"pid"`
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	Username      string  `json:"username"`
	Created       string  `json:"created"` // 2006-01-02 15:04:05
	RSS           string  `json:"rss"`
	VMS           string  `json:"vms"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float32 `json:"memory_percent"`
}

// ListView 分页后的列表，Total 为截断前的总数
type ListView[T any] struct {
	ViewStatus
	Records   []T  `json:"records"`
	Collected int  `json:"collected"` // 快照中保留的条数
	Total     int  `json:"total"`     // 主机上的实际条数
	Truncated bool `json:"truncated"` // 是否因上限被截断
}

// SectionView 一个分区的全部记录。分区不可用时 Available 为 false 且 Records 为空，
// 与主机上确实没有记录（Available 为 true）区分开
type SectionView[T any] struct {
	ViewStatus
	Records []T `json:"records"`
}

// HistoryPoint 历史快照中的一个采样点，用于前端趋势图
type HistoryPoint struct {
	Timestamp     string  `json:"timestamp"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	SwapPercent   float64 `json:"swap_percent"`
}

// DashboardView 仪表盘页
type DashboardView struct {
	CollectedAt string                            `json:"collected_at"` // 采集时间
	Age         string                            `json:"age"`          // 例如 "3 seconds ago"
	Stale       bool                              `json:"stale"`        // 是否超过最大新鲜度
	CPU         CPUView                           `json:"cpu_info"`
	Memory      MemoryView                        `json:"memory_info"`
	Swap        SwapView                          `json:"swap_info"`
	Disks       SectionView[DiskView]             `json:"disks_info"`
	Network     SectionView[InterfaceAddressView] `json:"network_info"`
}

// MonitorHealth 采集器健康状态
type MonitorHealth struct {
	State               string   `json:"state"` // running / stopped / fatal
	LastSuccess         string   `json:"last_success,omitempty"`
	LastError           string   `json:"last_error,omitempty"`
	ConsecutiveFailures int      `json:"consecutive_failures"`
	Cycles              uint64   `json:"cycles"`
	Published           uint64   `json:"published"`
	HistoryLen          int      `json:"history_len"`
	SnapshotAge         string   `json:"snapshot_age,omitempty"`
	Unavailable         []string `json:"unavailable,omitempty"`
}
