// fleetplan 线路优化与司机调度服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paiban/fleetplan/internal/config"
	"github.com/paiban/fleetplan/internal/constraints"
	"github.com/paiban/fleetplan/internal/database"
	"github.com/paiban/fleetplan/internal/handler"
	"github.com/paiban/fleetplan/internal/metrics"
	"github.com/paiban/fleetplan/internal/middleware"
	"github.com/paiban/fleetplan/internal/repository"
	"github.com/paiban/fleetplan/internal/service"
	"github.com/paiban/fleetplan/internal/tenant"
	"github.com/paiban/fleetplan/pkg/cost"
	"github.com/paiban/fleetplan/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:      cfg.App.LogLevel,
		Format:     cfg.LoggerFormat(),
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})

	fmt.Printf("fleetplan 线路优化与司机调度 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	ctx := context.Background()
	checks := map[string]handler.HealthCheck{}

	// 存储
	var store service.Store
	if cfg.Database.Enabled {
		db, err := database.New(ctx, &cfg.Database)
		if err != nil {
			logger.Error().Err(err).Msg("数据库初始化失败")
			os.Exit(1)
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			logger.Error().Err(err).Msg("数据库迁移失败")
			os.Exit(1)
		}
		store = repository.NewPostgres(db, cfg.Location())
		checks["database"] = db.Health
	} else {
		logger.Warn().Msg("未启用数据库，使用内存存储")
		store = repository.NewMemory()
	}

	// 行驶成本缓存
	var cache cost.Cache
	if cfg.Redis.Enabled {
		rdb := cost.NewRedisClient(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		defer rdb.Close()

		redisCache := cost.NewRedisCache(rdb)
		cache = redisCache
		checks["redis"] = redisCache.Ping
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("行驶成本缓存已启用")
	}

	svc := service.New(cfg, store, service.NewCostProvider(cfg, cache))

	mux := http.NewServeMux()
	handler.NewSystemHandler(cfg.App.Name, handler.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}, checks).Register(mux)
	handler.NewAPIHandler(svc, constraints.Build(cfg)).Register(mux)

	skip := []string{"/health", "/version", "/api/v1/"}
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
		skip = append(skip, cfg.Metrics.Path)
	}

	tenants, err := registerTenants(cfg.Tenants)
	if err != nil {
		logger.Error().Err(err).Msg("租户配置无效")
		os.Exit(1)
	}
	limiter := middleware.NewRateLimiter(cfg.API.RateLimit, cfg.API.Burst)

	// 中间件执行顺序：requestID -> recovery -> security -> cors -> tenant -> rateLimit -> logging -> handler
	mws := []middleware.Middleware{middleware.RequestID, middleware.Recovery, middleware.SecurityHeaders}
	if cfg.API.CORS.Enabled {
		mws = append(mws, middleware.CORS(cfg.API.CORS.Origins))
	}
	mws = append(mws, middleware.Tenant(tenants, skip...), limiter.Middleware, middleware.Logging)

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      middleware.Chain(mux, mws...),
		ReadTimeout:  cfg.API.Timeout,
		WriteTimeout: cfg.API.Timeout + cfg.Optimizer.Timeout,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Str("addr", addr).
			Str("env", cfg.App.Env).
			Str("version", Version).
			Bool("database", cfg.Database.Enabled).
			Bool("redis", cfg.Redis.Enabled).
			Str("timezone", cfg.Scheduling.Timezone).
			Str("api_docs", fmt.Sprintf("http://localhost%s/api/v1/", addr)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		return
	}

	logger.Info().Msg("服务器已关闭")
}

// registerTenants 登记配置中的租户，未配置时接受任何合法租户ID
func registerTenants(entries []config.TenantConfig) (*tenant.Manager, error) {
	m := tenant.NewManager()
	for _, e := range entries {
		id, err := tenant.Parse(e.ID)
		if err != nil {
			return nil, fmt.Errorf("租户 %q: %w", e.ID, err)
		}
		if err := m.Register(&tenant.Tenant{ID: id, Name: e.Name, Status: e.Status, RateLimit: e.RateLimit}); err != nil {
			return nil, err
		}
	}
	if len(entries) == 0 {
		logger.Warn().Msg("未登记租户，接受任何合法的租户ID")
	} else {
		logger.Info().Int("tenants", len(entries)).Msg("租户目录已加载")
	}
	return m, nil
}
