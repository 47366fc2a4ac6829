package monitor

import (
	"context"

	"go-sysdash/internal/models"
)

// Source 外部指标源。每个方法都可能阻塞在系统调用上，
// 只允许在采集器自己的 goroutine 中调用，不能在请求处理路径上调用
type Source interface {
	CPU(ctx context.Context) (*models.CPUStat, error)
	Memory(ctx context.Context) (*models.MemoryStat, error)
	Swap(ctx context.Context) (*models.SwapStat, error)

	// Partitions 返回挂载点列表（不含容量），容量由 DiskUsage 逐个读取
	Partitions(ctx context.Context) ([]models.DiskStat, error)
	DiskUsage(ctx context.Context, mountpoint string) (*models.DiskUsage, error)

	// Interfaces 返回网卡及其 IPv4 地址（不含计数器）
	Interfaces(ctx context.Context) ([]models.InterfaceStat, error)
	NetCounters(ctx context.Context) (map[string]models.NetCounters, error)

	Connections(ctx context.Context) ([]models.ConnectionStat, error)

	// ProcessIDs 返回所有进程号，详情由 Process 逐个读取
	ProcessIDs(ctx context.Context) ([]int32, error)
	Process(ctx context.Context, pid int32) (*models.ProcessStat, error)
}
