package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-sysdash/internal/api"
	"go-sysdash/internal/config"
	"go-sysdash/internal/monitor"
	"go-sysdash/internal/repository"
	"go-sysdash/internal/service"
	"go-sysdash/pkg/database"
	"go-sysdash/pkg/logger"
	"go-sysdash/pkg/utils"
)

// @title           主机监控面板 API
// @version         1.0
// @description     定时采集本机 CPU、内存、磁盘、网络和进程指标，供管理员查看

// @BasePath  /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
// @description 请在此输入 'Bearer {token}' 格式的 JWT token

const shutdownTimeout = 10 * time.Second

func main() {
	// 加载配置文件
	cfg, err := config.InitConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Flush(zl)

	if err := run(cfg, zl); err != nil {
		zl.Error("server exited with error", zap.Error(err))
		logger.Flush(zl)
		os.Exit(1)
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	// 初始化 JWT 密钥，未配置时生成随机密钥
	secret := cfg.JWT.Secret
	if secret == "" {
		generated, err := utils.GenerateRandomString(32)
		if err != nil {
			return err
		}
		secret = generated
		zl.Warn("jwt.secret is empty, using a random secret; tokens will not survive a restart")
	}
	utils.InitJWT(secret, cfg.JWT.Expiration)

	// 初始化数据库连接
	db, err := database.Open(cfg.Database.Path, cfg.Database.AdminPassword, zl)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	alarmService := service.NewAlarmService(repository.NewAlarmRepository(db))

	// 采集器
	source := monitor.NewPsutilSource()
	source.ConnectionKind = cfg.Monitor.ConnectionKind
	source.AllPartitions = cfg.Monitor.AllPartitions

	store := monitor.NewStore(cfg.Monitor.HistorySize)
	opts := []monitor.Option{
		monitor.WithInterval(cfg.Monitor.Interval),
		monitor.WithTimeout(cfg.Monitor.Timeout),
		monitor.WithProcessLimit(cfg.Monitor.ProcessLimit),
		monitor.WithConnectionLimit(cfg.Monitor.ConnectionLimit),
		monitor.WithMaxFailures(cfg.Monitor.MaxFailures),
		monitor.WithLogger(zl.Named("collector")),
	}

	if cfg.Alarm.Enabled {
		alarmMonitor := service.NewAlarmMonitor(alarmService, zl.Named("alarm"))
		alarmMonitor.SetThresholds(service.AlarmThresholds{
			MaxCPUPercent:    cfg.Alarm.CPUPercent,
			MaxMemoryPercent: cfg.Alarm.MemoryPercent,
			MaxDiskPercent:   cfg.Alarm.DiskPercent,
		})
		if cfg.Alarm.Cooldown > 0 {
			alarmMonitor.SetCooldown(cfg.Alarm.Cooldown)
		}
		alarmMonitor.Start(ctx)
		// 先于数据库关闭，等待告警队列写完
		defer func() {
			stop()
			alarmMonitor.Wait()
		}()
		opts = append(opts, monitor.WithObserver(alarmMonitor))
	}

	collector := monitor.NewCollector(source, store, opts...)
	mon := monitor.NewMonitor(store, collector, monitor.StalenessPolicy{
		MaxAge:      cfg.Monitor.MaxAge,
		WaitTimeout: cfg.Monitor.WaitTimeout,
	})
	monitorService := service.NewMonitorService(mon, collector)

	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer collector.Stop()

	// 设置Gin模式
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Dependencies{
		DB:             db,
		Logger:         zl,
		MonitorService: monitorService,
		AlarmService:   alarmService,
		RestartCollector: func() error {
			return collector.Start(ctx)
		},
		StreamInterval: cfg.Monitor.StreamInterval,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		zl.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
