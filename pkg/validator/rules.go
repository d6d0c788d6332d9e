package validator

import (
	"fmt"
	"time"

	"github.com/paiban/fleetplan/pkg/model"
)

// PairFacts 同一司机相邻两条分配的事实
type PairFacts struct {
	Current  *model.Assignment
	Next     *model.Assignment
	Overlap  bool
	Gap      time.Duration // 前者结束到后者开始的间隔，重叠时为负
	Required time.Duration // 赶到下一个接客点所需时间
}

// LoadFacts 司机单日工时事实
type LoadFacts struct {
	Date         string
	Hours        float64
	MaxHours     float64
	NearMaxRatio float64
	Assignments  int
}

// PairRule 相邻分配规则
type PairRule struct {
	Type     ConflictType
	Severity Severity
	Match    func(f PairFacts) bool
	Message  func(f PairFacts) string
}

// LoadRule 单日工时规则
type LoadRule struct {
	Type     ConflictType
	Severity Severity
	Match    func(f LoadFacts) bool
	Message  func(f LoadFacts) string
}

// DefaultPairRules 默认相邻分配规则，自上而下匹配，命中即停
func DefaultPairRules() []PairRule {
	return []PairRule{
		{
			Type:     ConflictDoubleBooking,
			Severity: SeverityCritical,
			Match: func(f PairFacts) bool {
				return f.Overlap && f.Current.IsBookable() && f.Next.IsBookable()
			},
			Message: func(f PairFacts) string {
				return fmt.Sprintf("%s-%s 与 %s-%s 两条正式分配时间重叠",
					clock(f.Current.StartTime), clock(f.Current.EndTime), clock(f.Next.StartTime), clock(f.Next.EndTime))
			},
		},
		{
			Type:     ConflictTentativeOverlap,
			Severity: SeverityWarning,
			Match: func(f PairFacts) bool {
				return f.Overlap
			},
			Message: func(f PairFacts) string {
				return fmt.Sprintf("%s-%s 与待定分配 %s-%s 时间重叠",
					clock(f.Current.StartTime), clock(f.Current.EndTime), clock(f.Next.StartTime), clock(f.Next.EndTime))
			},
		},
		{
			Type:     ConflictTravelTime,
			Severity: SeverityWarning,
			Match: func(f PairFacts) bool {
				return !f.Overlap && f.Gap < f.Required
			},
			Message: func(f PairFacts) string {
				return fmt.Sprintf("%s 结束后仅有 %.0f 分钟赶往下一接客点，需要 %.0f 分钟",
					clock(f.Current.EndTime), f.Gap.Minutes(), f.Required.Minutes())
			},
		},
	}
}

// DefaultLoadRules 默认单日工时规则
func DefaultLoadRules() []LoadRule {
	return []LoadRule{
		{
			Type:     ConflictMaxHours,
			Severity: SeverityWarning,
			Match: func(f LoadFacts) bool {
				return f.MaxHours > 0 && f.Hours > f.MaxHours
			},
			Message: func(f LoadFacts) string {
				return fmt.Sprintf("%s 工作 %.1f 小时，超过上限 %.1f 小时", f.Date, f.Hours, f.MaxHours)
			},
		},
		{
			Type:     ConflictNearMaxHours,
			Severity: SeverityInfo,
			Match: func(f LoadFacts) bool {
				return f.MaxHours > 0 && f.NearMaxRatio > 0 && f.Hours >= f.MaxHours*f.NearMaxRatio
			},
			Message: func(f LoadFacts) string {
				return fmt.Sprintf("%s 工作 %.1f 小时，接近上限 %.1f 小时", f.Date, f.Hours, f.MaxHours)
			},
		},
	}
}

func matchPair(rules []PairRule, f PairFacts) (PairRule, bool) {
	for _, r := range rules {
		if r.Match(f) {
			return r, true
		}
	}
	return PairRule{}, false
}

func matchLoad(rules []LoadRule, f LoadFacts) (LoadRule, bool) {
	for _, r := range rules {
		if r.Match(f) {
			return r, true
		}
	}
	return LoadRule{}, false
}

func clock(t time.Time) string {
	return t.Format(model.ClockFormat)
}
