package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"go-sysdash/internal/models"
)

const (
	DefaultInterval        = 5 * time.Second
	DefaultTimeout         = 10 * time.Second
	DefaultProcessLimit    = 500
	DefaultConnectionLimit = 1000
	DefaultMaxFailures     = 5
)

// ErrCollectorRunning 采集器已经在运行
var ErrCollectorRunning = errors.New("collector already running")

// CollectorState 采集器生命周期状态
type CollectorState string

const (
	StateStopped CollectorState = "stopped"
	StateRunning CollectorState = "running"
	StateFatal   CollectorState = "fatal" // 指标源不可达，等待人工重启
)

// CollectorStatus 采集器运行状态
type CollectorStatus struct {
	State               CollectorState
	LastSuccess         time.Time
	LastError           string
	ConsecutiveFailures int
	Cycles              uint64
	Published           uint64
}

// Observer 接收采集事件，回调在采集器 goroutine 中同步执行，不能阻塞
type Observer interface {
	SnapshotPublished(snap *models.Snapshot)
	CycleFailed(err error)
	SourceFatal(err error)
}

// Option 采集器选项
type Option func(*Collector)

func WithInterval(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.interval = d
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Collector) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProcessLimit 每个快照最多保留的进程数，<= 0 表示不限制
func WithProcessLimit(n int) Option {
	return func(c *Collector) { c.processLimit = n }
}

// WithConnectionLimit 每个快照最多保留的连接数，<= 0 表示不限制
func WithConnectionLimit(n int) Option {
	return func(c *Collector) { c.connectionLimit = n }
}

// WithMaxFailures 连续失败多少个周期后进入 fatal 状态，<= 0 表示只有 ErrSourceFatal 才会
func WithMaxFailures(n int) Option {
	return func(c *Collector) { c.maxFailures = n }
}

func WithObserver(o Observer) Option {
	return func(c *Collector) { c.observer = o }
}

// WithClock 替换时间源，测试用
func WithClock(now func() time.Time) Option {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// Collector 定时轮询指标源，构建完整快照后发布到 Store。它是 Store 唯一的写者
type Collector struct {
	source   Source
	store    *Store
	logger   *zap.Logger
	observer Observer
	now      func() time.Time

	interval        time.Duration
	timeout         time.Duration
	processLimit    int
	connectionLimit int
	maxFailures     int

	trigger  chan struct{}
	inflight atomic.Bool // 上一次构建是否仍卡在指标源中

	lifecycle sync.Mutex // 串行化 Start 和 Stop，Stop 持有它直到循环退出

	mutex  sync.Mutex // 保护以下字段
	cancel context.CancelFunc
	done   chan struct{}
	status CollectorStatus
}

// NewCollector 创建采集器
func NewCollector(source Source, store *Store, opts ...Option) *Collector {
	c := &Collector{
		source:          source,
		store:           store,
		logger:          zap.NewNop(),
		now:             time.Now,
		interval:        DefaultInterval,
		timeout:         DefaultTimeout,
		processLimit:    DefaultProcessLimit,
		connectionLimit: DefaultConnectionLimit,
		maxFailures:     DefaultMaxFailures,
		trigger:         make(chan struct{}, 1),
		status:          CollectorStatus{State: StateStopped},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Interval 轮询间隔
func (c *Collector) Interval() time.Duration {
	return c.interval
}

// Start 启动后台轮询。fatal 状态下再次调用 Start 即为人工重启
func (c *Collector) Start(ctx context.Context) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.done != nil {
		select {
		case <-c.done:
			// 上一轮循环已退出（fatal）
			c.cancel()
		default:
			return ErrCollectorRunning
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.status.State = StateRunning
	c.status.ConsecutiveFailures = 0
	c.status.LastError = ""

	go c.run(runCtx, c.done)

	c.logger.Info("collector started",
		zap.Duration("interval", c.interval),
		zap.Duration("timeout", c.timeout),
	)
	return nil
}

// Stop 停止轮询并等待循环退出。已经发布的快照不受影响
func (c *Collector) Stop() {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mutex.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	c.mutex.Lock()
	if c.status.State == StateRunning {
		c.status.State = StateStopped
	}
	c.mutex.Unlock()

	c.logger.Info("collector stopped")
}

// Trigger 请求一次带外刷新，不阻塞。多次请求会合并为一次。
// 采集器未运行时返回 false
func (c *Collector) Trigger() bool {
	c.mutex.Lock()
	running := c.status.State == StateRunning
	c.mutex.Unlock()

	if !running {
		return false
	}

	select {
	case c.trigger <- struct{}{}:
	default:
		// 已有待处理的刷新请求
	}
	return true
}

// Status 返回采集器状态的副本
func (c *Collector) Status() CollectorStatus {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.status
}

func (c *Collector) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if c.cycle(ctx) {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-c.trigger:
		}

		if c.cycle(ctx) {
			return
		}
	}
}

// cycle 执行一个采集周期，返回 true 表示进入 fatal 状态需要退出循环
func (c *Collector) cycle(ctx context.Context) bool {
	started := time.Now()
	snap, err := c.CollectOnce(ctx)

	c.mutex.Lock()
	c.status.Cycles++
	c.mutex.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		return c.recordFailure(err)
	}

	if !c.store.Publish(snap) {
		c.logger.Warn("snapshot rejected: older than current", zap.Time("timestamp", snap.Timestamp))
		return false
	}

	c.mutex.Lock()
	c.status.LastSuccess = snap.Timestamp
	c.status.ConsecutiveFailures = 0
	c.status.LastError = ""
	c.status.Published++
	c.mutex.Unlock()

	c.logger.Debug("snapshot published",
		zap.Uint64("seq", snap.Seq),
		zap.Duration("took", time.Since(started)),
		zap.Int("processes", len(snap.Processes)),
		zap.Int("connections", len(snap.Connections)),
		zap.Int("unavailable", len(snap.Unavailable)),
	)

	if c.observer != nil {
		c.observer.SnapshotPublished(snap)
	}
	return false
}

func (c *Collector) recordFailure(err error) bool {
	c.mutex.Lock()
	c.status.ConsecutiveFailures++
	c.status.LastError = err.Error()
	failures := c.status.ConsecutiveFailures
	fatal := errors.Is(err, ErrSourceFatal) || (c.maxFailures > 0 && failures >= c.maxFailures)
	if fatal {
		c.status.State = StateFatal
	}
	c.mutex.Unlock()

	c.logger.Warn("collection cycle failed, keeping previous snapshot",
		zap.Error(err),
		zap.Int("consecutive_failures", failures),
	)
	if c.observer != nil {
		c.observer.CycleFailed(err)
	}

	if fatal {
		if !errors.Is(err, ErrSourceFatal) {
			err = fmt.Errorf("%d consecutive failures, last: %v: %w", failures, err, ErrSourceFatal)
		}
		c.logger.Error("metrics source unreachable, collection stopped until restart", zap.Error(err))
		if c.observer != nil {
			c.observer.SourceFatal(err)
		}
	}
	return fatal
}

type buildResult struct {
	snap *models.Snapshot
	err  error
}

// CollectOnce 在超时限制内构建一份快照，不发布。
// 指标源不响应超时信号时，本次构建会被放弃，后续周期在它返回之前都按超时处理
func (c *Collector) CollectOnce(ctx context.Context) (*models.Snapshot, error) {
	if !c.inflight.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("previous cycle still blocked in source: %w", ErrSourceTimeout)
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	results := make(chan buildResult, 1)
	go func() {
		snap, err := c.build(cctx)
		c.inflight.Store(false)
		results <- buildResult{snap: snap, err: err}
	}()

	select {
	case res := <-results:
		if errors.Is(cctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("cycle exceeded %s: %w", c.timeout, ErrSourceTimeout)
		}
		return res.snap, res.err
	case <-cctx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("cycle exceeded %s: %w", c.timeout, ErrSourceTimeout)
	}
}

// build 并发读取各个分区。单个分区或单个条目失败只影响它自己
func (c *Collector) build(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{
		Timestamp:   c.now(),
		Unavailable: make(map[models.Section]string),
	}

	var (
		mu   sync.Mutex
		errs error
	)
	fail := func(section models.Section, err error) {
		mu.Lock()
		defer mu.Unlock()
		snap.Unavailable[section] = err.Error()
		errs = multierr.Append(errs, &SectionError{Section: section, Err: err})
	}

	var wg conc.WaitGroup
	wg.Go(func() {
		stat, err := c.source.CPU(ctx)
		if err != nil {
			fail(models.SectionCPU, err)
			return
		}
		snap.CPU = stat
	})
	wg.Go(func() {
		stat, err := c.source.Memory(ctx)
		if err != nil {
			fail(models.SectionMemory, err)
			return
		}
		snap.Memory = stat
	})
	wg.Go(func() {
		stat, err := c.source.Swap(ctx)
		if err != nil {
			fail(models.SectionSwap, err)
			return
		}
		snap.Swap = stat
	})
	wg.Go(func() {
		disks, err := c.readDisks(ctx)
		if err != nil {
			fail(models.SectionDisks, err)
			return
		}
		snap.Disks = disks
	})
	wg.Go(func() {
		ifaces, err := c.readInterfaces(ctx)
		if err != nil {
			fail(models.SectionNetwork, err)
			return
		}
		snap.Interfaces = ifaces
	})
	wg.Go(func() {
		conns, total, err := c.readConnections(ctx)
		if err != nil {
			fail(models.SectionConnections, err)
			return
		}
		snap.Connections, snap.ConnectionsTotal = conns, total
	})
	wg.Go(func() {
		procs, total, err := c.readProcesses(ctx)
		if err != nil {
			fail(models.SectionProcesses, err)
			return
		}
		snap.Processes, snap.ProcessesTotal = procs, total
	})

	if r := wg.WaitAndRecover(); r != nil {
		return nil, fmt.Errorf("collect panicked: %w", r.AsError())
	}

	if errors.Is(errs, ErrSourceFatal) {
		return nil, errs
	}
	if len(snap.Unavailable) == len(models.AllSections) {
		return nil, fmt.Errorf("every section failed: %w", errs)
	}
	if errs != nil {
		c.logger.Warn("partial snapshot", zap.Error(errs))
	}
	return snap, nil
}

func (c *Collector) readDisks(ctx context.Context) ([]models.DiskStat, error) {
	disks, err := c.source.Partitions(ctx)
	if err != nil {
		return nil, err
	}

	for i := range disks {
		usage, err := c.source.DiskUsage(ctx, disks[i].Mountpoint)
		if err != nil {
			disks[i].Err = err.Error()
			c.logger.Debug("mountpoint unavailable",
				zap.String("mountpoint", disks[i].Mountpoint),
				zap.Error(err),
			)
			continue
		}
		disks[i].Usage = usage
	}
	return disks, nil
}

func (c *Collector) readInterfaces(ctx context.Context) ([]models.InterfaceStat, error) {
	ifaces, err := c.source.Interfaces(ctx)
	if err != nil {
		return nil, err
	}

	// 计数器读取失败时网卡仍然保留，只是没有计数器
	counters, err := c.source.NetCounters(ctx)
	if err != nil {
		c.logger.Debug("net counters unavailable", zap.Error(err))
		return ifaces, nil
	}
	for i := range ifaces {
		if cnt, ok := counters[ifaces[i].Name]; ok {
			cnt := cnt
			ifaces[i].Counters = &cnt
		}
	}
	return ifaces, nil
}

func (c *Collector) readConnections(ctx context.Context) ([]models.ConnectionStat, int, error) {
	conns, err := c.source.Connections(ctx)
	if err != nil {
		return nil, 0, err
	}
	total := len(conns)
	if c.connectionLimit > 0 && total > c.connectionLimit {
		conns = conns[:c.connectionLimit:c.connectionLimit]
	}
	return conns, total, nil
}

// readProcesses 按进程号升序读取，最多 processLimit 个。读取中途退出的进程直接跳过
func (c *Collector) readProcesses(ctx context.Context) ([]models.ProcessStat, int, error) {
	pids, err := c.source.ProcessIDs(ctx)
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	total := len(pids)
	if c.processLimit > 0 && len(pids) > c.processLimit {
		pids = pids[:c.processLimit]
	}

	procs := make([]models.ProcessStat, 0, len(pids))
	for _, pid := range pids {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		p, err := c.source.Process(ctx, pid)
		if err != nil {
			continue
		}
		procs = append(procs, *p)
	}
	return procs, total, nil
}
