// Package validator 检测司机排班冲突
package validator

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/fleetplan/pkg/cost"
	"github.com/paiban/fleetplan/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictDoubleBooking    ConflictType = "double_booking"           // 正式分配重叠
	ConflictTentativeOverlap ConflictType = "tentative_overlap"        // 与待定分配重叠
	ConflictTravelTime       ConflictType = "insufficient_travel_time" // 间隔不足以赶到下一接客点
	ConflictMaxHours         ConflictType = "max_hours_exceeded"       // 超过每日工时上限
	ConflictNearMaxHours     ConflictType = "approaching_max_hours"    // 接近每日工时上限
)

// Severity 严重程度
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Conflict 冲突信息
type Conflict struct {
	Type        ConflictType      `json:"type"`
	Severity    Severity          `json:"severity"`
	DriverID    uuid.UUID         `json:"driver_id"`
	Date        string            `json:"date"`
	Message     string            `json:"message"`
	Assignments []uuid.UUID       `json:"assignments,omitempty"`
	Windows     []model.TimeRange `json:"windows,omitempty"`
	Hours       float64           `json:"hours,omitempty"`
}

// Summary 冲突统计
type Summary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// Report 冲突检测结果
type Report struct {
	Conflicts []Conflict `json:"conflicts"`
	Summary   Summary    `json:"summary"`
}

// Summarize 按列表统计各严重程度数量
func Summarize(conflicts []Conflict) Summary {
	s := Summary{Total: len(conflicts)}
	for _, c := range conflicts {
		switch c.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityWarning:
			s.Warnings++
		default:
			s.Info++
		}
	}
	return s
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	MaxDailyHours float64       // 每日工时上限
	NearMaxRatio  float64       // 达到上限的该比例即提示
	MinTurnaround time.Duration // 相邻分配之间的最小间隔
	PairRules     []PairRule
	LoadRules     []LoadRule
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() *DetectorConfig {
	return &DetectorConfig{
		MaxDailyHours: 10,
		NearMaxRatio:  0.9,
		MinTurnaround: 5 * time.Minute,
		PairRules:     DefaultPairRules(),
		LoadRules:     DefaultLoadRules(),
	}
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config *DetectorConfig
	travel cost.Provider
}

// NewConflictDetector 创建冲突检测器，travel 为空时只使用最小间隔
func NewConflictDetector(config *DetectorConfig, travel cost.Provider) *ConflictDetector {
	if config == nil {
		config = DefaultDetectorConfig()
	}
	if config.PairRules == nil {
		config.PairRules = DefaultPairRules()
	}
	if config.LoadRules == nil {
		config.LoadRules = DefaultLoadRules()
	}
	return &ConflictDetector{config: config, travel: travel}
}

// Detect 检测日期范围内所有司机的冲突
func (d *ConflictDetector) Detect(ctx context.Context, assignments []*model.Assignment, dr model.DateRange) Report {
	byDriver := make(map[uuid.UUID][]*model.Assignment)
	for _, a := range assignments {
		if !a.IsActive() || !dr.Contains(a.Date) {
			continue
		}
		byDriver[a.DriverID] = append(byDriver[a.DriverID], a)
	}

	drivers := make([]uuid.UUID, 0, len(byDriver))
	for id := range byDriver {
		drivers = append(drivers, id)
	}
	sort.Slice(drivers, func(i, j int) bool {
		return drivers[i].String() < drivers[j].String()
	})

	conflicts := make([]Conflict, 0)
	for _, id := range drivers {
		conflicts = append(conflicts, d.detectDriver(ctx, id, byDriver[id])...)
	}

	return Report{Conflicts: conflicts, Summary: Summarize(conflicts)}
}

// detectDriver 检测单个司机的分配重叠、间隔与每日工时
func (d *ConflictDetector) detectDriver(ctx context.Context, driverID uuid.UUID, assignments []*model.Assignment) []Conflict {
	sorted := make([]*model.Assignment, len(assignments))
	copy(sorted, assignments)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartTime.Equal(sorted[j].StartTime) {
			return sorted[i].ID.String() < sorted[j].ID.String()
		}
		return sorted[i].StartTime.Before(sorted[j].StartTime)
	})

	var conflicts []Conflict

	// 相邻分配按规则匹配；更早但尚未结束的分配只检查重叠
	var open []*model.Assignment
	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		facts := PairFacts{
			Current: prev,
			Next:    next,
			Overlap: prev.Window().Overlaps(next.Window()),
			Gap:     next.StartTime.Sub(prev.EndTime),
		}
		if !facts.Overlap {
			facts.Required = d.requiredTravel(ctx, prev, next)
		}
		if c, ok := d.pairConflict(driverID, facts); ok {
			conflicts = append(conflicts, c)
		}

		kept := open[:0]
		for _, a := range open {
			if a.EndTime.After(next.StartTime) {
				kept = append(kept, a)
			}
		}
		open = kept
		for _, a := range open {
			if !a.Window().Overlaps(next.Window()) {
				continue
			}
			c, ok := d.pairConflict(driverID, PairFacts{
				Current: a,
				Next:    next,
				Overlap: true,
				Gap:     next.StartTime.Sub(a.EndTime),
			})
			if ok {
				conflicts = append(conflicts, c)
			}
		}
		open = append(open, prev)
	}

	// 按日期统计工时
	daily := make(map[string]*LoadFacts)
	dates := make([]string, 0)
	for _, a := range sorted {
		f, ok := daily[a.Date]
		if !ok {
			f = &LoadFacts{Date: a.Date, MaxHours: d.config.MaxDailyHours, NearMaxRatio: d.config.NearMaxRatio}
			daily[a.Date] = f
			dates = append(dates, a.Date)
		}
		f.Hours += a.WorkingHours()
		f.Assignments++
	}
	sort.Strings(dates)

	for _, date := range dates {
		f := daily[date]
		rule, ok := matchLoad(d.config.LoadRules, *f)
		if !ok {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Type:     rule.Type,
			Severity: rule.Severity,
			DriverID: driverID,
			Date:     date,
			Message:  rule.Message(*f),
			Hours:    f.Hours,
		})
	}

	return conflicts
}

func (d *ConflictDetector) pairConflict(driverID uuid.UUID, facts PairFacts) (Conflict, bool) {
	rule, ok := matchPair(d.config.PairRules, facts)
	if !ok {
		return Conflict{}, false
	}
	return Conflict{
		Type:        rule.Type,
		Severity:    rule.Severity,
		DriverID:    driverID,
		Date:        facts.Next.Date,
		Message:     rule.Message(facts),
		Assignments: []uuid.UUID{facts.Current.ID, facts.Next.ID},
		Windows:     []model.TimeRange{facts.Current.Window(), facts.Next.Window()},
	}, true
}

// requiredTravel 从上一下客点到下一接客点所需时间，不低于最小间隔
func (d *ConflictDetector) requiredTravel(ctx context.Context, current, next *model.Assignment) time.Duration {
	required := d.config.MinTurnaround
	if d.travel == nil || current.Dropoff == nil || next.Pickup == nil {
		return required
	}
	est, err := d.travel.Between(ctx, *current.Dropoff, *next.Pickup)
	if err != nil {
		return required
	}
	if est.Duration > required {
		required = est.Duration
	}
	return required
}
