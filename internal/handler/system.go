package handler

import (
	"context"
	"net/http"
	"time"
)

// BuildInfo 构建信息
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// HealthCheck 依赖健康检查
type HealthCheck func(ctx context.Context) error

// SystemHandler 系统端点
type SystemHandler struct {
	service string
	build   BuildInfo
	checks  map[string]HealthCheck
}

// NewSystemHandler 创建系统端点处理器
func NewSystemHandler(service string, build BuildInfo, checks map[string]HealthCheck) *SystemHandler {
	if checks == nil {
		checks = map[string]HealthCheck{}
	}
	return &SystemHandler{service: service, build: build, checks: checks}
}

// Register 注册系统路由
func (h *SystemHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /version", h.Version)
	mux.HandleFunc("GET /api/v1/{$}", h.Index)
}

// Health 健康检查，任一依赖失败返回 503
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, map[string]interface{}{
		"status":       status,
		"service":      h.service,
		"dependencies": deps,
	})
}

// Version 版本信息
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.build)
}

// Index API 路由目录
func (h *SystemHandler) Index(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "fleetplan 线路优化与司机调度 API v1",
		"endpoints": map[string]string{
			"optimize_routes":    "POST /api/v1/routes/optimize",
			"check_availability": "GET /api/v1/drivers/{id}/availability",
			"detect_conflicts":   "GET /api/v1/conflicts",
			"suggest_drivers":    "POST /api/v1/drivers/suggest",
			"auto_assign":        "POST /api/v1/assignments/auto",
			"workload":           "GET /api/v1/workload",
			"dashboard":          "GET /api/v1/dashboard",
			"rules":              "GET /api/v1/rules",
		},
	})
}
