package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"go-sysdash/internal/models"
	"go-sysdash/internal/service"
	"go-sysdash/pkg/logger"
	"go-sysdash/pkg/utils"
)

const (
	defaultListSize = 50
	maxListSize     = 1000
	streamWriteWait = 5 * time.Second
)

// SystemHandler 主机指标查询接口
type SystemHandler struct {
	monitorService *service.MonitorService
	restart        func() error
	streamInterval time.Duration
	logger         *zap.Logger
	upgrader       websocket.Upgrader
}

// NewSystemHandler 创建处理器。restart 用于 fatal 后人工重启采集器，可以为 nil
func NewSystemHandler(monitorService *service.MonitorService, restart func() error, streamInterval time.Duration, log *zap.Logger) *SystemHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SystemHandler{
		monitorService: monitorService,
		restart:        restart,
		streamInterval: streamInterval,
		logger:         log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 8192,
		},
	}
}

// MemoryInfo 内存页
type MemoryInfo struct {
	Memory models.MemoryView `json:"memory_info"`
	Swap   models.SwapView   `json:"swap_info"`
}

// NetworkInfo 网络页：网卡流量和连接
type NetworkInfo struct {
	Interfaces  models.SectionView[models.NetworkInterfaceView] `json:"network_info"`
	Connections models.ListView[models.ConnectionView]          `json:"connections"`
}

// parseListPage 读取列表分页参数。size=0 表示返回快照中的全部记录
func parseListPage(c *gin.Context) (current, size int) {
	current, err := strconv.Atoi(c.DefaultQuery("current", "1"))
	if err != nil || current < 1 {
		current = 1
	}
	size, err = strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(defaultListSize)))
	if err != nil || size < 0 || size > maxListSize {
		size = defaultListSize
	}
	return current, size
}

// GetDashboard godoc
// @Summary 仪表盘
// @Description CPU、内存、交换分区、磁盘和网卡地址，来自同一份快照
// @Tags 系统监控
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=models.DashboardView}
// @Router /system/dashboard [get]
func (h *SystemHandler) GetDashboard(c *gin.Context) {
	utils.Success(c, h.monitorService.Dashboard(c.Request.Context()))
}

// GetCPU godoc
// @Summary CPU 信息
// @Tags 系统监控
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=models.CPUView}
// @Router /system/cpu [get]
func (h *SystemHandler) GetCPU(c *gin.Context) {
	utils.Success(c, h.monitorService.CPUView(c.Request.Context()))
}

// GetMemory godoc
// @Summary 内存和交换分区
// @Tags 系统监控
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=MemoryInfo}
// @Router /system/memory [get]
func (h *SystemHandler) GetMemory(c *gin.Context) {
	ctx := c.Request.Context()
	utils.Success(c, MemoryInfo{
		Memory: h.monitorService.MemoryView(ctx),
		Swap:   h.monitorService.SwapView(ctx),
	})
}

// GetDisks godoc
// @Summary 挂载点列表
// @Tags 系统监控
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=models.SectionView[models.DiskView]}
// @Router /system/disks [get]
func (h *SystemHandler) GetDisks(c *gin.Context) {
	utils.Success(c, h.monitorService.DiskViews(c.Request.Context()))
}

// GetNetwork godoc
// @Summary 网卡流量和连接
// @Tags 系统监控
// @Produce json
// @Security ApiKeyAuth
// @Param current query int false "连接列表页码" default(1)
// @Param size query int false "每页数量，0 表示全部" default(50)
// @Success 200 {object} utils.Response{data=NetworkInfo}
// @Router /system/network [get]
func (h *SystemHandler) GetNetwork(c *gin.Context) {
	ctx := c.Request.Context()
	current, size := parseListPage(c)
	utils.Success(c, NetworkInfo{
		Interfaces:  h.monitorService.NetworkViews(ctx),
		Connections: h.monitorService.ConnectionViews(ctx, current, size),
	})
}

// GetProcesses godoc
// @Summary 进程列表
// @Description 按进程号升序，数量受 monitor.process_limit 限制
// @Tags 系统监控
// @Produce json
// @Security ApiKeyAuth
// @Param current query int false "页码" default(1)
// @Param size query int false "每页数量，0 表示全部" default(50)
// @Success 200 {object} utils.Response{data=models.ListView[models.ProcessView]}
// @Router /system/processes [get]
func (h *SystemHandler) GetProcesses(c *gin.Context) {
	current, size := parseListPage(c)
	utils.Success(c, h.monitorService.ProcessViews(c.Request.Context(), current, size))
}

// GetHistory godoc
// @Summary 最近快照的趋势点
// @Tags 系统监控
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=[]models.HistoryPoint}
// @Router /system/history [get]
func (h *SystemHandler) GetHistory(c *gin.Context) {
	utils.Success(c, h.monitorService.HistoryView())
}

// GetHealth godoc
// @Summary 采集器详细状态
// @Tags 系统监控
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response{data=models.MonitorHealth}
// @Router /system/health [get]
func (h *SystemHandler) GetHealth(c *gin.Context) {
	utils.Success(c, h.monitorService.Health())
}

// Refresh godoc
// @Summary 请求立即采集
// @Description 异步触发一次采集，不等待结果。已有待处理的请求时合并
// @Tags 系统监控
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response
// @Router /system/refresh [post]
func (h *SystemHandler) Refresh(c *gin.Context) {
	accepted := h.monitorService.Refresh()
	utils.Success(c, gin.H{"accepted": accepted})
}

// RestartCollector godoc
// @Summary 重启采集器
// @Description 采集器因指标源不可用进入 fatal 状态后人工重启
// @Tags 系统监控
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response
// @Failure 400 {object} utils.Response{data=models.MonitorHealth}
// @Router /system/collector/restart [post]
func (h *SystemHandler) RestartCollector(c *gin.Context) {
	if h.restart == nil {
		utils.Error(c, utils.ERROR, "采集器不支持重启")
		return
	}
	if err := h.restart(); err != nil {
		// 附带当前状态，便于判断采集器是否仍在运行
		utils.ErrorWithData(c, utils.VALIDATION_ERROR, err.Error(), h.monitorService.Health())
		return
	}

	logger.FromContext(c.Request.Context(), h.logger).Info("collector restarted by admin",
		zap.String("user", c.GetString("username")))
	utils.SuccessWithMessage(c, h.monitorService.Health(), "采集器已重启")
}

// Stream godoc
// @Summary 实时仪表盘
// @Description 升级为 websocket，每次发布新快照时推送仪表盘数据，推送间隔不小于 monitor.stream_interval
// @Tags 系统监控
// @Security ApiKeyAuth
// @Param token query string false "访问令牌（浏览器无法设置请求头时使用）"
// @Success 101
// @Router /system/stream [get]
func (h *SystemHandler) Stream(c *gin.Context) {
	log := logger.FromContext(c.Request.Context(), h.logger)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()

	// 只读取控制帧，客户端关闭时结束推送
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		updated := h.monitorService.Updates()

		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(h.monitorService.Dashboard(ctx)); err != nil {
			log.Debug("websocket write failed", zap.Error(err))
			return
		}

		select {
		case <-closed:
			return
		case <-ctx.Done():
			return
		case <-updated:
		}

		if h.streamInterval > 0 {
			select {
			case <-closed:
				return
			case <-time.After(h.streamInterval):
			}
		}
	}
}
