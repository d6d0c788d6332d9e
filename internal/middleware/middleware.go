// Package middleware 提供HTTP中间件
package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/paiban/fleetplan/internal/metrics"
	"github.com/paiban/fleetplan/internal/tenant"
	apperrors "github.com/paiban/fleetplan/pkg/errors"
	"github.com/paiban/fleetplan/pkg/logger"
)

// RequestIDHeader 请求ID请求头
const RequestIDHeader = "X-Request-ID"

// Middleware HTTP中间件
type Middleware func(http.Handler) http.Handler

// Chain 按顺序组合中间件，第一个位于最外层
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// writeError 以统一格式输出错误
func writeError(w http.ResponseWriter, err *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
	})
}

// RequestID 透传或生成请求ID
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
	})
}

// Recovery 捕获panic
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.WithContext(r.Context()).Error().Interface("panic", p).Str("path", r.URL.Path).Msg("请求处理发生panic")
				writeError(w, apperrors.New(apperrors.CodeInternal, "服务器内部错误"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders 安全响应头
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// CORS 跨域中间件，origins 为空或包含 "*" 时允许任意来源
func CORS(origins []string) Middleware {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{"Content-Type", tenant.Header, RequestIDHeader}, ", "))
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Tenant 解析 X-Tenant-ID，skip 中的路径前缀不要求租户
func Tenant(manager *tenant.Manager, skip ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range skip {
				if r.URL.Path == prefix || strings.HasPrefix(r.URL.Path, prefix+"/") {
					next.ServeHTTP(w, r)
					return
				}
			}

			id, err := tenant.FromRequest(r)
			if err != nil {
				writeError(w, apperrors.InvalidInput(tenant.Header, err.Error()))
				return
			}
			t, err := manager.Resolve(id)
			if err != nil {
				appErr := apperrors.New(apperrors.CodeUnauthorized, err.Error())
				writeError(w, appErr)
				return
			}

			ctx := tenant.WithTenant(r.Context(), t)
			ctx = logger.WithTenantID(ctx, id.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// limiterIdleTTL 限流器闲置超过该时长即回收，回收前桶已回满
const limiterIdleTTL = 10 * time.Minute

type tenantLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter 按租户的令牌桶限流
type RateLimiter struct {
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	now       func() time.Time
	mu        sync.Mutex
	limiters  map[uuid.UUID]*tenantLimiter
	lastSweep time.Time
}

// NewRateLimiter 创建限流器，perSecond <= 0 表示不限流
func NewRateLimiter(perSecond, burst int) *RateLimiter {
	if burst <= 0 {
		burst = perSecond
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimiter{
		limit:    limit,
		burst:    burst,
		idleTTL:  limiterIdleTTL,
		now:      time.Now,
		limiters: make(map[uuid.UUID]*tenantLimiter),
	}
}

// Allow 检查租户是否还有配额，租户配置的限额优先
func (rl *RateLimiter) Allow(t *tenant.Tenant) bool {
	now := rl.now()

	rl.mu.Lock()
	rl.sweep(now)
	tl, ok := rl.limiters[t.ID]
	if !ok {
		limit, burst := rl.limit, rl.burst
		if t.RateLimit > 0 {
			limit, burst = rate.Limit(t.RateLimit), t.RateLimit
		}
		tl = &tenantLimiter{limiter: rate.NewLimiter(limit, burst)}
		rl.limiters[t.ID] = tl
	}
	tl.lastSeen = now
	rl.mu.Unlock()
	return tl.limiter.AllowN(now, 1)
}

// sweep 每个 idleTTL 周期回收一次闲置限流器，调用方持有锁
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.idleTTL {
		return
	}
	rl.lastSweep = now
	for id, tl := range rl.limiters {
		if now.Sub(tl.lastSeen) >= rl.idleTTL {
			delete(rl.limiters, id)
		}
	}
}

// Middleware 限流中间件，需位于 Tenant 之后
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, ok := tenant.FromContext(r.Context())
		if ok && !rl.Allow(t) {
			writeError(w, apperrors.New(apperrors.CodeRateLimited, "请求频率超限"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder 记录响应状态码
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging 访问日志与请求指标，需位于路由之外的最内层
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		duration := time.Since(start)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordRequestMetrics(r.Method, route, rec.status, duration)

		event := logger.WithContext(r.Context()).Info()
		if rec.status >= http.StatusInternalServerError {
			event = logger.WithContext(r.Context()).Error()
		}
		event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", duration).
			Msg("HTTP请求")
	})
}
