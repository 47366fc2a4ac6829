package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

// DefaultPath 默认配置文件路径
const DefaultPath = "configs/config.yaml"

// EnvPrefix 环境变量前缀，例如 SYSDASH_MONITOR_INTERVAL=10s
const EnvPrefix = "SYSDASH"

type DatabaseConfig struct {
	Path          string `yaml:"path"`
	AdminPassword string `yaml:"admin_password"` // 首次启动时创建的 admin 账户密码
}

type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	Expiration time.Duration `yaml:"expiration"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// MonitorConfig 采集器与新鲜度策略
type MonitorConfig struct {
	Interval        time.Duration `yaml:"interval"`         // 采集周期
	Timeout         time.Duration `yaml:"timeout"`          // 单个周期的超时
	MaxAge          time.Duration `yaml:"max_age"`          // 快照最大新鲜度，<=0 表示永不过期
	WaitTimeout     time.Duration `yaml:"wait_timeout"`     // 首次无快照时查询的最长等待
	HistorySize     int           `yaml:"history_size"`     // 历史环大小
	ProcessLimit    int           `yaml:"process_limit"`    // 每个快照保留的进程数上限
	ConnectionLimit int           `yaml:"connection_limit"` // 每个快照保留的连接数上限
	MaxFailures     int           `yaml:"max_failures"`     // 连续失败多少次后进入 fatal
	StreamInterval  time.Duration `yaml:"stream_interval"`  // websocket 推送的最小间隔
	ConnectionKind  string        `yaml:"connection_kind"`  // inet / tcp / udp / all ...
	AllPartitions   bool          `yaml:"all_partitions"`   // 是否包含伪文件系统
}

// AlarmConfig 告警阈值（百分比）
type AlarmConfig struct {
	Enabled       bool          `yaml:"enabled"`
	CPUPercent    float64       `yaml:"cpu_percent"`
	MemoryPercent float64       `yaml:"memory_percent"`
	DiskPercent   float64       `yaml:"disk_percent"`
	Cooldown      time.Duration `yaml:"cooldown"`
}

type Config struct {
	Port     string         `yaml:"port"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Alarm    AlarmConfig    `yaml:"alarm"`
}

// Default 返回全部字段都有合理取值的配置
func Default() *Config {
	return &Config{
		Port:     "8080",
		Database: DatabaseConfig{Path: "./data.db", AdminPassword: "admin123"},
		JWT:      JWTConfig{Expiration: 24 * time.Hour},
		Log:      LogConfig{Level: "info"},
		Monitor: MonitorConfig{
			Interval:        5 * time.Second,
			Timeout:         10 * time.Second,
			MaxAge:          30 * time.Second,
			WaitTimeout:     3 * time.Second,
			HistorySize:     5,
			ProcessLimit:    500,
			ConnectionLimit: 1000,
			MaxFailures:     5,
			StreamInterval:  time.Second,
			ConnectionKind:  "inet",
		},
		Alarm: AlarmConfig{
			Enabled:       true,
			CPUPercent:    90,
			MemoryPercent: 90,
			DiskPercent:   90,
			Cooldown:      5 * time.Minute,
		},
	}
}

// LoadConfig 读取 yaml 配置文件，再用环境变量覆盖。文件不存在时只使用默认值和环境变量
func LoadConfig(filePath string) (*Config, error) {
	config := Default()

	file, err := os.Open(filePath)
	switch {
	case err == nil:
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(config); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filePath, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// applyEnv 用 SYSDASH_* 环境变量覆盖配置项，键名与 yaml 一致，"." 换成 "_"
func applyEnv(c *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	pct := func(key string, dst *float64) {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	flag := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("port", &c.Port)
	str("database.path", &c.Database.Path)
	str("database.admin_password", &c.Database.AdminPassword)
	str("jwt.secret", &c.JWT.Secret)
	dur("jwt.expiration", &c.JWT.Expiration)
	str("log.level", &c.Log.Level)

	dur("monitor.interval", &c.Monitor.Interval)
	dur("monitor.timeout", &c.Monitor.Timeout)
	dur("monitor.max_age", &c.Monitor.MaxAge)
	dur("monitor.wait_timeout", &c.Monitor.WaitTimeout)
	num("monitor.history_size", &c.Monitor.HistorySize)
	num("monitor.process_limit", &c.Monitor.ProcessLimit)
	num("monitor.connection_limit", &c.Monitor.ConnectionLimit)
	num("monitor.max_failures", &c.Monitor.MaxFailures)
	dur("monitor.stream_interval", &c.Monitor.StreamInterval)
	str("monitor.connection_kind", &c.Monitor.ConnectionKind)
	flag("monitor.all_partitions", &c.Monitor.AllPartitions)

	flag("alarm.enabled", &c.Alarm.Enabled)
	pct("alarm.cpu_percent", &c.Alarm.CPUPercent)
	pct("alarm.memory_percent", &c.Alarm.MemoryPercent)
	pct("alarm.disk_percent", &c.Alarm.DiskPercent)
	dur("alarm.cooldown", &c.Alarm.Cooldown)
}

// Validate 检查配置的取值范围
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}
	if c.JWT.Expiration <= 0 {
		return errors.New("jwt.expiration must be positive")
	}
	m := c.Monitor
	if m.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %s", m.Interval)
	}
	if m.Timeout <= 0 {
		return fmt.Errorf("monitor.timeout must be positive, got %s", m.Timeout)
	}
	if m.HistorySize <= 0 {
		return fmt.Errorf("monitor.history_size must be positive, got %d", m.HistorySize)
	}
	if m.ProcessLimit < 0 || m.ConnectionLimit < 0 {
		return errors.New("monitor limits must not be negative")
	}
	if m.MaxFailures <= 0 {
		return fmt.Errorf("monitor.max_failures must be positive, got %d", m.MaxFailures)
	}
	for name, p := range map[string]float64{
		"alarm.cpu_percent":    c.Alarm.CPUPercent,
		"alarm.memory_percent": c.Alarm.MemoryPercent,
		"alarm.disk_percent":   c.Alarm.DiskPercent,
	} {
		if p <= 0 || p > 100 {
			return fmt.Errorf("%s must be in (0, 100], got %v", name, p)
		}
	}
	return nil
}

// InitConfig 加载默认路径的配置，可用 SYSDASH_CONFIG 指定其他文件
func InitConfig() (*Config, error) {
	path := os.Getenv(EnvPrefix + "_CONFIG")
	if path == "" {
		path = DefaultPath
	}
	return LoadConfig(path)
}
