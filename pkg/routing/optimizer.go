package routing

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paiban/fleetplan/pkg/cost"
	"github.com/paiban/fleetplan/pkg/logger"
	"github.com/paiban/fleetplan/pkg/model"
)

const (
	// MethodLocalSearch 2-opt 局部搜索
	MethodLocalSearch = "local_search"
	// MethodFallback 仅贪心构造
	MethodFallback = "fallback"
)

// Request 线路优化请求
type Request struct {
	Trips           []*model.Trip
	VehicleCapacity int
	Level           Level
}

// Result 线路优化结果
type Result struct {
	Routes       []*model.Route `json:"routes"`
	Method       string         `json:"method"`
	Level        Level          `json:"optimization_level"`
	Improvement  float64        `json:"improvement"` // 相对贪心基线的成本降低百分比
	Iterations   int            `json:"iterations"`
	BaselineCost float64        `json:"baseline_cost"`
	TotalCost    float64        `json:"total_cost"`
	Truncated    bool           `json:"truncated"`
	DurationMs   int64          `json:"duration_ms"`
}

// RouteOptimizer 线路优化策略
type RouteOptimizer interface {
	Optimize(ctx context.Context, req Request) (*Result, error)
}

// Options 优化器配置
type Options struct {
	Enabled bool
	Timeout time.Duration
	Workers int
}

// New 根据配置选择优化策略
func New(opts Options, provider cost.Provider) RouteOptimizer {
	if !opts.Enabled || provider == nil {
		return Greedy{}
	}
	return NewLocalSearch(provider, opts.Timeout, opts.Workers)
}

// Greedy 只做贪心构造的策略
type Greedy struct{}

// Optimize 实现 RouteOptimizer
func (Greedy) Optimize(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	level := req.Level
	if level == "" {
		level = LevelStandard
	}
	log := logger.NewOptimizerLogger(ctx)
	log.Start(MethodFallback, len(req.Trips), req.VehicleCapacity, string(level))

	res := fallbackResult(Build(req.Trips, req.VehicleCapacity), level)
	res.DurationMs = time.Since(start).Milliseconds()
	log.Complete(len(res.Routes), 0, 0, time.Since(start))
	return res, nil
}

func fallbackResult(groups []*Group, level Level) *Result {
	return &Result{
		Routes: Routes(groups),
		Method: MethodFallback,
		Level:  level,
	}
}

// LocalSearch 贪心构造后对每条线路并行执行 2-opt
type LocalSearch struct {
	provider cost.Provider
	timeout  time.Duration
	workers  int
}

// NewLocalSearch 创建局部搜索策略
func NewLocalSearch(provider cost.Provider, timeout time.Duration, workers int) *LocalSearch {
	if workers <= 0 {
		workers = 4
	}
	return &LocalSearch{provider: provider, timeout: timeout, workers: workers}
}

// Optimize 实现 RouteOptimizer
// 成本服务失败或矩阵超时时降级为贪心结果，仅调用方取消时返回错误
func (o *LocalSearch) Optimize(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	level := req.Level
	if level == "" {
		level = LevelStandard
	}
	log := logger.NewOptimizerLogger(ctx)
	log.Start(MethodLocalSearch, len(req.Trips), req.VehicleCapacity, string(level))

	groups := Build(req.Trips, req.VehicleCapacity)

	// 时限同时约束成本矩阵与搜索
	searchCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	matrices, err := o.matrices(searchCtx, groups)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		res := fallbackResult(groups, level)
		if searchCtx.Err() != nil {
			res.Truncated = true
			log.Truncated("cost_matrix", time.Since(start))
		} else {
			log.Fallback("cost provider unavailable", err)
		}
		res.DurationMs = time.Since(start).Milliseconds()
		return res, nil
	}

	// 结果按下标写入，合并顺序与并发无关
	outcomes := make([]Outcome, len(groups))
	var g errgroup.Group
	g.SetLimit(o.workers)
	for i := range groups {
		i := i
		g.Go(func() error {
			outcomes[i] = TwoOpt(searchCtx, matrices[i], level)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{
		Routes: make([]*model.Route, len(groups)),
		Method: MethodLocalSearch,
		Level:  level,
	}
	for i, grp := range groups {
		out := outcomes[i]
		grp.reorder(out.Order)
		grp.Route.Cost = out.Cost
		grp.Route.BaselineCost = out.BaselineCost
		grp.Route.Iterations = out.Iterations

		res.Routes[i] = grp.Route
		res.Iterations += out.Iterations
		res.BaselineCost += out.BaselineCost
		res.TotalCost += out.Cost
		res.Truncated = res.Truncated || out.Truncated
	}
	if res.BaselineCost > 0 {
		res.Improvement = (res.BaselineCost - res.TotalCost) / res.BaselineCost * 100
	}
	if res.Improvement < 0 {
		res.Improvement = 0
	}
	if res.Truncated {
		log.Truncated("two_opt", time.Since(start))
	}

	res.DurationMs = time.Since(start).Milliseconds()
	log.Complete(len(res.Routes), res.Iterations, res.Improvement, time.Since(start))
	return res, nil
}

// matrices 并行计算每条线路的成本矩阵
func (o *LocalSearch) matrices(ctx context.Context, groups []*Group) ([]Matrix, error) {
	matrices := make([]Matrix, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, grp := range groups {
		i, grp := i, grp
		g.Go(func() error {
			m, err := BuildMatrix(gctx, o.provider, grp)
			if err != nil {
				return err
			}
			matrices[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return matrices, nil
}
