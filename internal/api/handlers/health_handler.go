package handlers

import (
	"time"

	"go-sysdash/internal/monitor"
	"go-sysdash/internal/service"
	"go-sysdash/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Version 服务版本
const Version = "1.0.0"

// HealthHandler 处理健康检查相关的请求
type HealthHandler struct {
	monitorService *service.MonitorService
	started        time.Time
}

// NewHealthHandler 创建一个新的健康检查处理器
func NewHealthHandler(monitorService *service.MonitorService) *HealthHandler {
	return &HealthHandler{
		monitorService: monitorService,
		started:        time.Now(),
	}
}

// CheckHealth godoc
// @Summary      健康检查接口
// @Description  返回服务运行状态和采集器状态，无需认证。采集器 fatal 时 status 为 degraded
// @Tags         系统监控
// @Produce      json
// @Success      200  {object}  utils.Response
// @Router       /health [get]
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	status := "up"
	collector := string(monitor.StateStopped)
	if h.monitorService != nil {
		collector = h.monitorService.Health().State
		if collector != string(monitor.StateRunning) {
			status = "degraded"
		}
	}

	utils.Success(c, gin.H{
		"status":    status,
		"collector": collector,
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"service":   "go-sysdash",
		"version":   Version,
	})
}
