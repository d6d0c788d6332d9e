// Package constraints 描述当前生效的冲突规则与派车因子
package constraints

import (
	"fmt"
	"strconv"

	"github.com/paiban/fleetplan/internal/config"
	"github.com/paiban/fleetplan/pkg/dispatcher/constraint"
	"github.com/paiban/fleetplan/pkg/validator"
)

// 规则类别
const (
	CategoryConflict = "conflict"
	CategoryDispatch = "dispatch"
)

// Param 规则参数
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, float, duration
	Description string `json:"description"`
	Value       string `json:"value"`
}

// Definition 规则定义
type Definition struct {
	Name        string  `json:"name"`
	DisplayName string  `json:"display_name"`
	Category    string  `json:"category"`
	Type        string  `json:"type"` // 冲突规则为严重程度，派车因子为 hard/soft
	Order       int     `json:"order"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

// Library 规则目录
type Library struct {
	Rules []Definition `json:"rules"`
}

func float(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var conflictText = map[validator.ConflictType][2]string{
	validator.ConflictDoubleBooking:    {"重复预订", "同一司机的两条正式分配时间重叠"},
	validator.ConflictTentativeOverlap: {"暂定分配重叠", "重叠的分配中至少一条为暂定状态"},
	validator.ConflictTravelTime:       {"行驶时间不足", "前一条分配结束到下一条接客之间的间隔不足以赶到接客点"},
	validator.ConflictMaxHours:         {"超出每日工时上限", "司机单日工时超过上限"},
	validator.ConflictNearMaxHours:     {"接近每日工时上限", "司机单日工时达到上限的提示比例"},
}

var dispatchText = map[string][2]string{
	"SeatCapacity":   {"座位容量", "车辆座位数须容纳全部乘客"},
	"Wheelchair":     {"轮椅通道", "需要轮椅的行程只能由有轮椅位的车辆承运"},
	"RegularDriver":  {"熟悉司机", "曾为该客户服务的司机加分"},
	"Workload":       {"工作量", "当日工时低于目标的司机加分，超出则减分"},
	"CompletionRate": {"历史完成率", "按历史行程完成率加分"},
	"Proximity":      {"距离", "司机常驻点靠近接客点时加分"},
}

// Build 根据配置生成规则目录，顺序与求值顺序一致
func Build(cfg *config.Config) Library {
	sched := cfg.Scheduling
	rules := make([]Definition, 0, 16)

	order := 0
	for _, r := range validator.DefaultPairRules() {
		order++
		text := conflictText[r.Type]
		def := Definition{
			Name:        string(r.Type),
			DisplayName: text[0],
			Category:    CategoryConflict,
			Type:        string(r.Severity),
			Order:       order,
			Description: text[1],
			Params:      []Param{},
		}
		if r.Type == validator.ConflictTravelTime {
			def.Params = append(def.Params, Param{Name: "min_turnaround", Type: "duration", Description: "最小间隔", Value: sched.MinTurnaround.String()})
		}
		rules = append(rules, def)
	}
	for _, r := range validator.DefaultLoadRules() {
		order++
		text := conflictText[r.Type]
		params := []Param{{Name: "max_daily_hours", Type: "float", Description: "每日工时上限", Value: float(sched.MaxDailyHours)}}
		if r.Type == validator.ConflictNearMaxHours {
			params = append(params, Param{Name: "near_max_ratio", Type: "float", Description: "提示比例", Value: float(sched.NearMaxRatio)})
		}
		rules = append(rules, Definition{
			Name:        string(r.Type),
			DisplayName: text[0],
			Category:    CategoryConflict,
			Type:        string(r.Severity),
			Order:       order,
			Description: text[1],
			Params:      params,
		})
	}

	s := cfg.Scoring
	weights := map[string][]Param{
		"RegularDriver":  {{Name: "regular_bonus", Type: "float", Description: "加分", Value: float(s.RegularBonus)}},
		"Workload":       {{Name: "workload_weight", Type: "float", Description: "权重", Value: float(s.WorkloadWeight)}, {Name: "balance_multiplier", Type: "float", Description: "均衡模式倍数", Value: float(s.BalanceMultiplier)}},
		"CompletionRate": {{Name: "completion_weight", Type: "float", Description: "权重", Value: float(s.CompletionWeight)}},
		"Proximity":      {{Name: "proximity_weight", Type: "float", Description: "权重", Value: float(s.ProximityWeight)}, {Name: "proximity_radius_km", Type: "float", Description: "计分半径(公里)", Value: float(s.ProximityRadiusKm)}},
	}

	for i, c := range constraint.DefaultDispatchConstraints(constraint.Weights{}) {
		text, ok := dispatchText[c.Name()]
		if !ok {
			text = [2]string{c.Name(), ""}
		}
		params := weights[c.Name()]
		if params == nil {
			params = []Param{}
		}
		rules = append(rules, Definition{
			Name:        c.Name(),
			DisplayName: text[0],
			Category:    CategoryDispatch,
			Type:        c.Type(),
			Order:       i + 1,
			Description: text[1],
			Params:      params,
		})
	}

	return Library{Rules: rules}
}

// Find 按名称查找规则
func (l Library) Find(name string) (Definition, error) {
	for _, d := range l.Rules {
		if d.Name == name {
			return d, nil
		}
	}
	return Definition{}, fmt.Errorf("规则 %q 不存在", name)
}
