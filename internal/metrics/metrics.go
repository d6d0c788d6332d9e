// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry 服务专用注册表
	Registry = prometheus.NewRegistry()

	// HTTPRequests 请求计数
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleetplan_http_requests_total", Help: "HTTP请求总数"},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration 请求延迟
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetplan_http_request_duration_seconds",
			Help:    "HTTP请求延迟",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"method", "path"},
	)

	// OptimizerRuns 线路优化次数
	OptimizerRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleetplan_route_optimizations_total", Help: "线路优化次数"},
		[]string{"method", "level", "truncated"},
	)
	// OptimizerDuration 线路优化耗时
	OptimizerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetplan_route_optimization_duration_seconds",
			Help:    "线路优化耗时",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"method"},
	)
	// OptimizerIterations 2-opt 搜索轮数
	OptimizerIterations = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetplan_route_optimization_iterations",
			Help:    "2-opt 搜索轮数",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"level"},
	)
	// OptimizerImprovement 相对贪心基线的改进百分比
	OptimizerImprovement = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetplan_route_optimization_improvement_percent",
			Help:    "相对贪心基线的成本降低百分比",
			Buckets: []float64{0, 1, 5, 10, 20, 30, 50},
		},
	)

	// ConflictsDetected 检测到的冲突数
	ConflictsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleetplan_conflicts_detected_total", Help: "检测到的排班冲突数"},
		[]string{"severity"},
	)

	// AutoAssignTrips 自动派车行程数
	AutoAssignTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fleetplan_auto_assign_trips_total", Help: "自动派车处理的行程数"},
		[]string{"outcome", "applied"},
	)

	// DBQueryDuration 数据库查询耗时
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetplan_db_query_duration_seconds",
			Help:    "数据库查询耗时",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"op"},
	)
)

var regOnce sync.Once

// RegisterDefault 注册全部指标
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(
			HTTPRequests,
			HTTPDuration,
			OptimizerRuns,
			OptimizerDuration,
			OptimizerIterations,
			OptimizerImprovement,
			ConflictsDetected,
			AutoAssignTrips,
			DBQueryDuration,
		)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler 返回指标端点
func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRequestMetrics 记录HTTP请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordOptimization 记录一次线路优化
func RecordOptimization(method, level string, iterations int, improvement float64, truncated bool, duration time.Duration) {
	OptimizerRuns.WithLabelValues(method, level, strconv.FormatBool(truncated)).Inc()
	OptimizerDuration.WithLabelValues(method).Observe(duration.Seconds())
	if iterations > 0 {
		OptimizerIterations.WithLabelValues(level).Observe(float64(iterations))
	}
	OptimizerImprovement.Observe(improvement)
}

// RecordConflicts 记录冲突检测结果
func RecordConflicts(critical, warnings, info int) {
	ConflictsDetected.WithLabelValues("critical").Add(float64(critical))
	ConflictsDetected.WithLabelValues("warning").Add(float64(warnings))
	ConflictsDetected.WithLabelValues("info").Add(float64(info))
}

// RecordAutoAssign 记录自动派车结果
func RecordAutoAssign(assigned, unassigned int, applied bool) {
	a := strconv.FormatBool(applied)
	AutoAssignTrips.WithLabelValues("assigned", a).Add(float64(assigned))
	AutoAssignTrips.WithLabelValues("unassigned", a).Add(float64(unassigned))
}

// RecordDBQuery 记录数据库查询耗时
func RecordDBQuery(op string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(op).Observe(duration.Seconds())
}
