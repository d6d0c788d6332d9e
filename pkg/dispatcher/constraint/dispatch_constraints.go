// Package constraint 提供司机评分的硬性门槛与加减分因子
package constraint

import (
	"fmt"
	"math"

	"github.com/paiban/fleetplan/pkg/model"
)

// 因子类型
const (
	TypeHard = "hard"
	TypeSoft = "soft"
)

// DispatchConstraint 派车评分因子
// Evaluate 返回是否满足、加减分与原因（无贡献时原因为空）
type DispatchConstraint interface {
	Name() string
	Type() string
	Evaluate(ctx *DispatchContext) (bool, float64, string)
}

// DispatchContext 评分上下文
type DispatchContext struct {
	Trip              *model.Trip
	Driver            *model.Driver
	Vehicle           *model.Vehicle // 未配车时为空
	History           model.DriverHistory
	DailyHours        float64 // 当日已分配工时（含本批次已暂定的分配）
	TargetHours       float64 // 当日目标工时
	BalanceWorkload   bool
	ConsiderProximity bool
}

// Weights 各因子权重
type Weights struct {
	RegularBonus      float64
	Workload          float64
	Completion        float64
	Proximity         float64
	ProximityRadiusKm float64
	BalanceMultiplier float64
}

// DefaultWeights 默认权重
func DefaultWeights() Weights {
	return Weights{
		RegularBonus:      20,
		Workload:          15,
		Completion:        15,
		Proximity:         10,
		ProximityRadiusKm: 25,
		BalanceMultiplier: 2,
	}
}

type baseConstraint struct {
	name  string
	ctype string
}

func (b baseConstraint) Name() string { return b.name }
func (b baseConstraint) Type() string { return b.ctype }

// =========================================
// 1. SeatCapacityConstraint 座位数门槛
// =========================================
type SeatCapacityConstraint struct {
	baseConstraint
}

func NewSeatCapacityConstraint() *SeatCapacityConstraint {
	return &SeatCapacityConstraint{baseConstraint{name: "SeatCapacity", ctype: TypeHard}}
}

func (c *SeatCapacityConstraint) Evaluate(ctx *DispatchContext) (bool, float64, string) {
	if ctx.Vehicle == nil {
		// 未配车时由调度员另行派车，不做座位检查
		return true, 0, ""
	}
	if ctx.Vehicle.Seats < ctx.Trip.PassengerCount {
		return false, 0, fmt.Sprintf("车辆仅 %d 座，乘客 %d 人", ctx.Vehicle.Seats, ctx.Trip.PassengerCount)
	}
	return true, 0, ""
}

// =========================================
// 2. WheelchairConstraint 轮椅位门槛
// =========================================
type WheelchairConstraint struct {
	baseConstraint
}

func NewWheelchairConstraint() *WheelchairConstraint {
	return &WheelchairConstraint{baseConstraint{name: "Wheelchair", ctype: TypeHard}}
}

func (c *WheelchairConstraint) Evaluate(ctx *DispatchContext) (bool, float64, string) {
	if !ctx.Trip.RequiresWheelchair {
		return true, 0, ""
	}
	if ctx.Vehicle == nil || !ctx.Vehicle.IsWheelchairAccessible() {
		return false, 0, "车辆无轮椅位"
	}
	return true, 0, "车辆有轮椅位"
}

// =========================================
// 3. RegularDriverConstraint 熟客加分
// =========================================
type RegularDriverConstraint struct {
	baseConstraint
	Bonus float64
}

func NewRegularDriverConstraint(bonus float64) *RegularDriverConstraint {
	return &RegularDriverConstraint{baseConstraint{name: "RegularDriver", ctype: TypeSoft}, bonus}
}

func (c *RegularDriverConstraint) Evaluate(ctx *DispatchContext) (bool, float64, string) {
	if ctx.History.CustomerTrips <= 0 {
		return true, 0, ""
	}
	return true, c.Bonus, fmt.Sprintf("曾为该客户服务 %d 次", ctx.History.CustomerTrips)
}

// =========================================
// 4. WorkloadConstraint 当日工作量
// =========================================
type WorkloadConstraint struct {
	baseConstraint
	Weight            float64
	BalanceMultiplier float64
}

func NewWorkloadConstraint(weight, balanceMultiplier float64) *WorkloadConstraint {
	return &WorkloadConstraint{baseConstraint{name: "Workload", ctype: TypeSoft}, weight, balanceMultiplier}
}

// Evaluate 低于目标工时加分，超过目标减分，开启均衡时放大
func (c *WorkloadConstraint) Evaluate(ctx *DispatchContext) (bool, float64, string) {
	if ctx.TargetHours <= 0 {
		return true, 0, ""
	}
	ratio := ctx.DailyHours / ctx.TargetHours
	factor := math.Max(-1, math.Min(1, 1-ratio))
	points := c.Weight * factor
	if ctx.BalanceWorkload && c.BalanceMultiplier > 0 {
		points *= c.BalanceMultiplier
	}

	switch {
	case ctx.DailyHours == 0:
		return true, points, "当日尚无任务"
	case ratio < 1:
		return true, points, fmt.Sprintf("当日已排 %.1f 小时，低于目标 %.1f 小时", ctx.DailyHours, ctx.TargetHours)
	default:
		return true, points, fmt.Sprintf("当日已排 %.1f 小时，达到目标 %.1f 小时", ctx.DailyHours, ctx.TargetHours)
	}
}

// =========================================
// 5. CompletionRateConstraint 历史完成率
// =========================================
type CompletionRateConstraint struct {
	baseConstraint
	Weight float64
}

func NewCompletionRateConstraint(weight float64) *CompletionRateConstraint {
	return &CompletionRateConstraint{baseConstraint{name: "CompletionRate", ctype: TypeSoft}, weight}
}

func (c *CompletionRateConstraint) Evaluate(ctx *DispatchContext) (bool, float64, string) {
	if ctx.History.TotalTrips <= 0 {
		return true, 0, ""
	}
	rate := ctx.History.CompletionRate()
	return true, c.Weight * rate, fmt.Sprintf("历史完成率 %.0f%%", rate*100)
}

// =========================================
// 6. ProximityConstraint 距离接客点远近
// =========================================
type ProximityConstraint struct {
	baseConstraint
	Weight   float64
	RadiusKm float64
}

func NewProximityConstraint(weight, radiusKm float64) *ProximityConstraint {
	return &ProximityConstraint{baseConstraint{name: "Proximity", ctype: TypeSoft}, weight, radiusKm}
}

func (c *ProximityConstraint) Evaluate(ctx *DispatchContext) (bool, float64, string) {
	if !ctx.ConsiderProximity || c.RadiusKm <= 0 {
		return true, 0, ""
	}
	if ctx.Driver.BaseLocation == nil || !ctx.Driver.BaseLocation.HasCoordinates() || !ctx.Trip.Pickup.HasCoordinates() {
		return true, 0, ""
	}
	distance := ctx.Driver.BaseLocation.Distance(ctx.Trip.Pickup)
	if distance >= c.RadiusKm {
		return true, 0, ""
	}
	return true, c.Weight * (1 - distance/c.RadiusKm), fmt.Sprintf("距接客点 %.1f 公里", distance)
}

// DefaultDispatchConstraints 默认因子：先门槛后加分
func DefaultDispatchConstraints(w Weights) []DispatchConstraint {
	return []DispatchConstraint{
		NewSeatCapacityConstraint(),
		NewWheelchairConstraint(),
		NewRegularDriverConstraint(w.RegularBonus),
		NewWorkloadConstraint(w.Workload, w.BalanceMultiplier),
		NewCompletionRateConstraint(w.Completion),
		NewProximityConstraint(w.Proximity, w.ProximityRadiusKm),
	}
}
