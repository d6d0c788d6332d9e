package routing

import (
	"context"
	"fmt"
	"math"

	"github.com/paiban/fleetplan/pkg/cost"
)

// Level 优化级别
type Level string

const (
	LevelQuick    Level = "quick"
	LevelStandard Level = "standard"
	LevelThorough Level = "thorough"
)

// epsilon 低于该值的改进视为相等，保持原顺序
const epsilon = 1e-9

// minSearchStops 少于该站数的线路不做局部搜索
const minSearchStops = 3

// ParseLevel 解析优化级别，空值为 standard
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case "":
		return LevelStandard, nil
	case LevelQuick, LevelStandard, LevelThorough:
		return Level(s), nil
	default:
		return "", fmt.Errorf("未知的优化级别: %s", s)
	}
}

// Budget 返回 n 站线路的最大搜索轮数
func (l Level) Budget(n int) int {
	if n < 1 {
		return 1
	}
	var budget int
	switch l {
	case LevelQuick:
		budget = n
	case LevelThorough:
		budget = n * n
	default:
		budget = int(math.Ceil(float64(n) * math.Log2(float64(n))))
	}
	if budget < 1 {
		budget = 1
	}
	return budget
}

// Matrix 站点间行驶成本矩阵（分钟）
type Matrix [][]float64

// BuildMatrix 计算线路各行程接客点之间的成本，上下文结束即停止
func BuildMatrix(ctx context.Context, provider cost.Provider, g *Group) (Matrix, error) {
	n := len(g.Trips)
	m := make(Matrix, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			est, err := provider.Between(ctx, g.Trips[i].Pickup, g.Trips[j].Pickup)
			if err != nil {
				return nil, fmt.Errorf("计算行程 %s -> %s 成本失败: %w", g.Trips[i].ID, g.Trips[j].ID, err)
			}
			m[i][j] = est.Duration.Minutes()
		}
	}
	return m, nil
}

// PathCost 按顺序累计相邻站点成本
func (m Matrix) PathCost(order []int) float64 {
	total := 0.0
	for k := 0; k+1 < len(order); k++ {
		total += m[order[k]][order[k+1]]
	}
	return total
}

// Outcome 单条线路的优化结果
type Outcome struct {
	Order        []int
	BaselineCost float64
	Cost         float64
	Iterations   int
	Truncated    bool
}

// TwoOpt 对单条线路执行 2-opt 局部搜索
// 每轮取最优的严格改进反转，无改进或轮数用尽时停止。
// 上下文结束时返回当前最优顺序并标记截断。
func TwoOpt(ctx context.Context, m Matrix, level Level) Outcome {
	n := len(m)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	current := m.PathCost(order)
	out := Outcome{BaselineCost: current, Cost: current}
	if n < minSearchStops {
		out.Order = order
		return out
	}

	budget := level.Budget(n)
	for out.Iterations < budget {
		bestI, bestJ, ok := m.bestReversal(ctx, order)
		if !ok {
			out.Truncated = true
			break
		}
		out.Iterations++

		if bestI < 0 {
			break
		}
		reverse(order[bestI : bestJ+1])
		current = m.PathCost(order)
	}

	out.Order = order
	out.Cost = current
	return out
}

// bestReversal 扫描一轮，返回改进最大的反转区间，无改进时下标为 -1
// 区间延长一站时增量更新正反向内部成本，非对称矩阵同样成立。
// 上下文结束时 ok 为 false。
func (m Matrix) bestReversal(ctx context.Context, order []int) (bestI, bestJ int, ok bool) {
	n := len(order)
	bestI, bestJ = -1, -1
	bestDelta := 0.0
	for i := 0; i < n-1; i++ {
		if ctx.Err() != nil {
			return -1, -1, false
		}
		var before float64
		if i > 0 {
			before = m[order[i-1]][order[i]]
		}
		forward, backward := 0.0, 0.0
		for j := i + 1; j < n; j++ {
			forward += m[order[j-1]][order[j]]
			backward += m[order[j]][order[j-1]]

			delta := backward - forward
			if i > 0 {
				delta += m[order[i-1]][order[j]] - before
			}
			if j < n-1 {
				delta += m[order[i]][order[j+1]] - m[order[j]][order[j+1]]
			}
			if delta < -epsilon && delta < bestDelta {
				bestDelta = delta
				bestI, bestJ = i, j
			}
		}
	}
	return bestI, bestJ, true
}

func reverse(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
