// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

// ConfigPathEnv 配置文件路径环境变量
const ConfigPathEnv = "FLEETPLAN_CONFIG"

// Config 应用配置
type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	API        APIConfig        `yaml:"api"`
	Optimizer  OptimizerConfig  `yaml:"optimizer"`
	Scheduling SchedulingConfig `yaml:"scheduling"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Tenants    []TenantConfig   `yaml:"tenants"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name      string `yaml:"name"`
	Env       string `yaml:"env"`
	Port      int    `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // console/json
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis配置（行驶成本缓存）
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"pool_size"`
	CostTTL  time.Duration `yaml:"cost_ttl"`
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit int           `yaml:"rate_limit"` // 每租户每秒请求数
	Burst     int           `yaml:"burst"`
	Timeout   time.Duration `yaml:"timeout"`
	CORS      CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// OptimizerConfig 线路优化配置
type OptimizerConfig struct {
	Enabled     bool          `yaml:"enabled"` // false 时只做贪心构造
	Timeout     time.Duration `yaml:"timeout"` // 局部搜索与评分的时限
	Workers     int           `yaml:"workers"`
	AvgSpeedKmh float64       `yaml:"avg_speed_kmh"`
}

// SchedulingConfig 排班规则配置
type SchedulingConfig struct {
	MaxDailyHours      float64          `yaml:"max_daily_hours"`
	NearMaxRatio       float64          `yaml:"near_max_ratio"`
	MinTurnaround      time.Duration    `yaml:"min_turnaround"`
	Timezone           string           `yaml:"timezone"`
	DefaultTripMinutes int              `yaml:"default_trip_minutes"`
	DailyTargetHours   DailyTargetHours `yaml:"daily_target_hours"`
}

// DailyTargetHours 按用工类型的每日目标工时
type DailyTargetHours struct {
	FullTime float64 `yaml:"full_time"`
	PartTime float64 `yaml:"part_time"`
	Casual   float64 `yaml:"casual"`
}

// ScoringConfig 司机评分配置
type ScoringConfig struct {
	BaseScore         float64 `yaml:"base_score"`
	RegularBonus      float64 `yaml:"regular_bonus"`
	WorkloadWeight    float64 `yaml:"workload_weight"`
	CompletionWeight  float64 `yaml:"completion_weight"`
	ProximityWeight   float64 `yaml:"proximity_weight"`
	ProximityRadiusKm float64 `yaml:"proximity_radius_km"`
	BalanceMultiplier float64 `yaml:"balance_multiplier"`
	HighlyRecommended float64 `yaml:"highly_recommended"`
	Recommended       float64 `yaml:"recommended"`
	Acceptable        float64 `yaml:"acceptable"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "fleetplan",
			Env:      "development",
			Port:     7012,
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Enabled:         false,
			Host:            "localhost",
			Port:            5432,
			Name:            "fleetplan",
			User:            "fleetplan",
			Password:        "fleetplan",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     6379,
			PoolSize: 10,
			CostTTL:  24 * time.Hour,
		},
		API: APIConfig{
			RateLimit: 100,
			Burst:     200,
			Timeout:   30 * time.Second,
			CORS: CORSConfig{
				Enabled: true,
				Origins: []string{"*"},
			},
		},
		Optimizer: OptimizerConfig{
			Enabled:     true,
			Timeout:     5 * time.Second,
			Workers:     4,
			AvgSpeedKmh: 40,
		},
		Scheduling: SchedulingConfig{
			MaxDailyHours:      10,
			NearMaxRatio:       0.9,
			MinTurnaround:      5 * time.Minute,
			Timezone:           "UTC",
			DefaultTripMinutes: 60,
			DailyTargetHours: DailyTargetHours{
				FullTime: 8,
				PartTime: 5,
				Casual:   4,
			},
		},
		Scoring: ScoringConfig{
			BaseScore:         50,
			RegularBonus:      20,
			WorkloadWeight:    15,
			CompletionWeight:  15,
			ProximityWeight:   10,
			ProximityRadiusKm: 25,
			BalanceMultiplier: 2,
			HighlyRecommended: 80,
			Recommended:       60,
			Acceptable:        40,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// TenantConfig 已登记租户，列表为空时接受任何合法租户ID
type TenantConfig struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Status    string `yaml:"status"`
	RateLimit int    `yaml:"rate_limit"`
}

// Load 加载配置：默认值 -> YAML 文件（可选）-> 环境变量
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv 使用 FLEETPLAN_CONFIG 指定的文件加载配置
func LoadFromEnv() (*Config, error) {
	return Load(os.Getenv(ConfigPathEnv))
}

func applyEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Port = getEnvInt("APP_PORT", cfg.App.Port)
	cfg.App.LogLevel = getEnv("APP_LOG_LEVEL", cfg.App.LogLevel)
	cfg.App.LogFormat = getEnv("APP_LOG_FORMAT", cfg.App.LogFormat)

	cfg.Database.Enabled = getEnvBool("DB_ENABLED", cfg.Database.Enabled)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvInt("DB_PORT", cfg.Database.Port)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.SSLMode = getEnv("DB_SSL_MODE", cfg.Database.SSLMode)
	cfg.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)
	cfg.Database.ConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", cfg.Database.ConnMaxLifetime)

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Host = getEnv("REDIS_HOST", cfg.Redis.Host)
	cfg.Redis.Port = getEnvInt("REDIS_PORT", cfg.Redis.Port)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.PoolSize = getEnvInt("REDIS_POOL_SIZE", cfg.Redis.PoolSize)
	cfg.Redis.CostTTL = getEnvDuration("REDIS_COST_TTL", cfg.Redis.CostTTL)

	cfg.API.RateLimit = getEnvInt("API_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.Burst = getEnvInt("API_RATE_BURST", cfg.API.Burst)
	cfg.API.Timeout = getEnvDuration("API_TIMEOUT", cfg.API.Timeout)
	cfg.API.CORS.Enabled = getEnvBool("API_CORS_ENABLED", cfg.API.CORS.Enabled)
	if origins := getEnv("API_CORS_ORIGINS", ""); origins != "" {
		cfg.API.CORS.Origins = strings.Split(origins, ",")
	}

	cfg.Optimizer.Enabled = getEnvBool("OPTIMIZER_ENABLED", cfg.Optimizer.Enabled)
	cfg.Optimizer.Timeout = getEnvDuration("OPTIMIZER_TIMEOUT", cfg.Optimizer.Timeout)
	cfg.Optimizer.Workers = getEnvInt("OPTIMIZER_WORKERS", cfg.Optimizer.Workers)
	cfg.Optimizer.AvgSpeedKmh = getEnvFloat("OPTIMIZER_AVG_SPEED_KMH", cfg.Optimizer.AvgSpeedKmh)

	cfg.Scheduling.MaxDailyHours = getEnvFloat("SCHEDULING_MAX_DAILY_HOURS", cfg.Scheduling.MaxDailyHours)
	cfg.Scheduling.NearMaxRatio = getEnvFloat("SCHEDULING_NEAR_MAX_RATIO", cfg.Scheduling.NearMaxRatio)
	cfg.Scheduling.MinTurnaround = getEnvDuration("SCHEDULING_MIN_TURNAROUND", cfg.Scheduling.MinTurnaround)
	cfg.Scheduling.Timezone = getEnv("SCHEDULING_TIMEZONE", cfg.Scheduling.Timezone)
	cfg.Scheduling.DefaultTripMinutes = getEnvInt("SCHEDULING_DEFAULT_TRIP_MINUTES", cfg.Scheduling.DefaultTripMinutes)

	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.Path = getEnv("METRICS_PATH", cfg.Metrics.Path)
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("无效的端口: %d", c.App.Port)
	}
	if _, err := time.LoadLocation(c.Scheduling.Timezone); err != nil {
		return fmt.Errorf("无效的时区 %q: %w", c.Scheduling.Timezone, err)
	}
	if c.Scheduling.MaxDailyHours <= 0 {
		return fmt.Errorf("max_daily_hours 必须大于0")
	}
	if c.Scheduling.NearMaxRatio <= 0 || c.Scheduling.NearMaxRatio > 1 {
		return fmt.Errorf("near_max_ratio 必须在 (0, 1] 之间")
	}
	if c.Scheduling.DefaultTripMinutes <= 0 {
		return fmt.Errorf("default_trip_minutes 必须大于0")
	}
	if c.Optimizer.AvgSpeedKmh <= 0 {
		return fmt.Errorf("avg_speed_kmh 必须大于0")
	}
	return nil
}

// Location 返回排班时区
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Scheduling.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// LoggerFormat 返回日志格式，未配置时开发环境用 console，其余用 json
func (c *Config) LoggerFormat() string {
	if c.App.LogFormat != "" {
		return c.App.LogFormat
	}
	if c.IsDevelopment() {
		return "console"
	}
	return "json"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
