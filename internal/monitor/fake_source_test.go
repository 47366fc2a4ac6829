package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"go-sysdash/internal/models"
)

// fakeSource 可配置的指标源，字段通过 set 修改，可以在采集器运行时安全调整
type fakeSource struct {
	mu sync.Mutex

	cpuErr, memErr, swapErr error
	partErr, countersErr    error
	ifaceErr, connErr       error
	pidsErr                 error
	usageErr                map[string]error
	procErr                 map[int32]error

	pids  []int32
	conns int

	block    chan struct{} // 非 nil 时 CPU 阻塞到通道关闭，忽略 ctx
	panicCPU bool

	cpuCalls atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pids:     []int32{3, 1, 2},
		conns:    2,
		usageErr: map[string]error{},
		procErr:  map[int32]error{},
	}
}

func (f *fakeSource) set(fn func(f *fakeSource)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeSource) CPU(ctx context.Context) (*models.CPUStat, error) {
	f.cpuCalls.Add(1)
	f.mu.Lock()
	block, panicCPU, err := f.block, f.panicCPU, f.cpuErr
	f.mu.Unlock()

	if panicCPU {
		panic("cpu exploded")
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &models.CPUStat{Count: 2, FrequencyMHz: 2400, PerCorePercent: []float64{10, 30}}, nil
}

func (f *fakeSource) Memory(ctx context.Context) (*models.MemoryStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.memErr != nil {
		return nil, f.memErr
	}
	return &models.MemoryStat{Total: 1 << 30, Available: 1 << 29, Used: 1 << 29, Free: 1 << 28, Percent: 50}, nil
}

func (f *fakeSource) Swap(ctx context.Context) (*models.SwapStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.swapErr != nil {
		return nil, f.swapErr
	}
	return &models.SwapStat{Total: 1 << 30, Used: 0, Free: 1 << 30}, nil
}

func (f *fakeSource) Partitions(ctx context.Context) ([]models.DiskStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.partErr != nil {
		return nil, f.partErr
	}
	return []models.DiskStat{
		{Device: "/dev/sda1", Mountpoint: "/", Fstype: "ext4", Opts: "rw"},
		{Device: "/dev/sdb1", Mountpoint: "/mnt/broken", Fstype: "ext4", Opts: "rw"},
	}, nil
}

func (f *fakeSource) DiskUsage(ctx context.Context, mountpoint string) (*models.DiskUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.usageErr[mountpoint]; err != nil {
		return nil, err
	}
	return &models.DiskUsage{Total: 100 << 30, Used: 40 << 30, Free: 60 << 30, Percent: 40}, nil
}

func (f *fakeSource) Interfaces(ctx context.Context) ([]models.InterfaceStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ifaceErr != nil {
		return nil, f.ifaceErr
	}
	return []models.InterfaceStat{
		{Name: "lo", IPv4: []string{"127.0.0.1"}},
		{Name: "eth0", IPv4: []string{"10.0.0.5", "10.0.0.6"}},
	}, nil
}

func (f *fakeSource) NetCounters(ctx context.Context) (map[string]models.NetCounters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countersErr != nil {
		return nil, f.countersErr
	}
	return map[string]models.NetCounters{
		"eth0": {BytesSent: 2048, BytesRecv: 4096},
	}, nil
}

func (f *fakeSource) Connections(ctx context.Context) ([]models.ConnectionStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connErr != nil {
		return nil, f.connErr
	}
	conns := make([]models.ConnectionStat, 0, f.conns)
	for i := 0; i < f.conns; i++ {
		conns = append(conns, models.ConnectionStat{
			Fd:        uint32(i + 3),
			Pid:       int32(100 + i),
			Family:    syscall.AF_INET,
			Type:      syscall.SOCK_STREAM,
			LocalIP:   "127.0.0.1",
			LocalPort: uint32(8000 + i),
			Status:    "LISTEN",
		})
	}
	return conns, nil
}

func (f *fakeSource) ProcessIDs(ctx context.Context) ([]int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pidsErr != nil {
		return nil, f.pidsErr
	}
	return append([]int32(nil), f.pids...), nil
}

func (f *fakeSource) Process(ctx context.Context, pid int32) (*models.ProcessStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.procErr[pid]; err != nil {
		return nil, err
	}
	return &models.ProcessStat{
		Pid:              pid,
		Name:             fmt.Sprintf("proc-%d", pid),
		Status:           "sleep",
		Username:         "root",
		CreateTimeMillis: 1700000000000,
		RSS:              1 << 20,
		VMS:              1 << 24,
	}, nil
}

// failAll 让每个分区都失败
func (f *fakeSource) failAll(err error) {
	f.set(func(f *fakeSource) {
		f.cpuErr, f.memErr, f.swapErr = err, err, err
		f.partErr, f.ifaceErr, f.connErr, f.pidsErr = err, err, err, err
	})
}

var _ Source = (*fakeSource)(nil)

// recorder 记录采集器回调
type recorder struct {
	mu        sync.Mutex
	published []*models.Snapshot
	failed    []error
	fatal     []error
}

func (r *recorder) SnapshotPublished(snap *models.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, snap)
}

func (r *recorder) CycleFailed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
}

func (r *recorder) SourceFatal(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fatal = append(r.fatal, err)
}

func (r *recorder) counts() (published, failed, fatal int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.published), len(r.failed), len(r.fatal)
}

// waitFor 轮询直到 cond 成立，超时则失败
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("等待超时: %s", what)
}
