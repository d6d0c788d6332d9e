// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	tenantIDKey
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))

		var output io.Writer = os.Stdout
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				if f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
					output = f
				}
			}
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	Init(DefaultConfig())
	return &logger
}

// WithRequestID 在上下文中记录请求ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID 从上下文取出请求ID
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithTenantID 在上下文中记录租户ID
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	c := Get().With()
	if reqID, ok := ctx.Value(requestIDKey).(string); ok {
		c = c.Str("request_id", reqID)
	}
	if tenantID, ok := ctx.Value(tenantIDKey).(string); ok {
		c = c.Str("tenant_id", tenantID)
	}
	l := c.Logger()
	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// OptimizerLogger 路线优化专用日志器
type OptimizerLogger struct {
	base zerolog.Logger
}

// NewOptimizerLogger 创建路线优化日志器
func NewOptimizerLogger(ctx context.Context) *OptimizerLogger {
	return &OptimizerLogger{base: WithContext(ctx).With().Str("component", "optimizer").Logger()}
}

// Start 记录优化开始
func (l *OptimizerLogger) Start(method string, trips, capacity int, level string) {
	l.base.Info().
		Str("method", method).
		Int("trips", trips).
		Int("capacity", capacity).
		Str("level", level).
		Msg("开始路线优化")
}

// Fallback 记录降级为贪心结果
func (l *OptimizerLogger) Fallback(reason string, err error) {
	l.base.Warn().
		Err(err).
		Str("reason", reason).
		Msg("路线优化降级为贪心方案")
}

// Truncated 记录搜索超时截断
func (l *OptimizerLogger) Truncated(stage string, elapsed time.Duration) {
	l.base.Warn().
		Str("stage", stage).
		Dur("elapsed", elapsed).
		Msg("搜索超时，返回当前最优解")
}

// Complete 记录优化完成
func (l *OptimizerLogger) Complete(routes, iterations int, improvement float64, duration time.Duration) {
	l.base.Info().
		Int("routes", routes).
		Int("iterations", iterations).
		Float64("improvement", improvement).
		Dur("duration", duration).
		Msg("路线优化完成")
}

// DispatchLogger 自动派车日志器
type DispatchLogger struct {
	base zerolog.Logger
}

// NewDispatchLogger 创建自动派车日志器
func NewDispatchLogger(ctx context.Context) *DispatchLogger {
	return &DispatchLogger{base: WithContext(ctx).With().Str("component", "dispatcher").Logger()}
}

// BatchStart 记录批量派车开始
func (l *DispatchLogger) BatchStart(date string, trips, drivers int) {
	l.base.Info().
		Str("date", date).
		Int("trips", trips).
		Int("drivers", drivers).
		Msg("开始自动派车")
}

// NoDriver 记录行程无可用司机
func (l *DispatchLogger) NoDriver(tripID string) {
	l.base.Debug().Str("trip_id", tripID).Msg("行程无可用司机")
}

// BatchComplete 记录批量派车完成
func (l *DispatchLogger) BatchComplete(assigned, unassigned int, applied bool, duration time.Duration) {
	l.base.Info().
		Int("assigned", assigned).
		Int("unassigned", unassigned).
		Bool("applied", applied).
		Dur("duration", duration).
		Msg("自动派车完成")
}
