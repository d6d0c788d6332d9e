package dispatcher

import (
	"context"
	"math"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/paiban/fleetplan/pkg/dispatcher/constraint"
	"github.com/paiban/fleetplan/pkg/model"
)

// 推荐等级
const (
	TierHighlyRecommended = "highly_recommended"
	TierRecommended       = "recommended"
	TierAcceptable        = "acceptable"
	TierNotRecommended    = "not_recommended"
	TierUnavailable       = "unavailable"
)

// MaxRecommendations 推荐列表长度上限
const MaxRecommendations = 5

// ScorerConfig 评分配置
type ScorerConfig struct {
	BaseScore   float64
	Weights     constraint.Weights
	Highly      float64 // highly_recommended 最低分
	Recommended float64 // recommended 最低分
	Acceptable  float64 // acceptable 最低分
	Workers     int
}

// DefaultScorerConfig 默认评分配置
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		BaseScore:   50,
		Weights:     constraint.DefaultWeights(),
		Highly:      80,
		Recommended: 60,
		Acceptable:  40,
		Workers:     8,
	}
}

// Candidate 待评分的司机及其当日状态
type Candidate struct {
	Driver      *model.Driver
	Vehicle     *model.Vehicle
	History     model.DriverHistory
	DailyTrips  int
	DailyHours  float64
	TargetHours float64
	Available   bool
}

// VehicleSummary 车辆摘要
type VehicleSummary struct {
	ID               uuid.UUID `json:"id"`
	Registration     string    `json:"registration"`
	Description      string    `json:"description,omitempty"`
	Seats            int       `json:"seats"`
	WheelchairSpaces int       `json:"wheelchairSpaces"`
}

// DailyWorkload 当日工作量
type DailyWorkload struct {
	Trips int     `json:"trips"`
	Hours float64 `json:"hours"`
}

// Recommendation 司机推荐
type Recommendation struct {
	DriverID        uuid.UUID       `json:"driverId"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone"`
	Score           float64         `json:"score"`
	Reasons         []string        `json:"reasons"`
	Tier            string          `json:"recommendation"`
	Eligible        bool            `json:"eligible"`
	Vehicle         *VehicleSummary `json:"vehicle"`
	DailyWorkload   DailyWorkload   `json:"dailyWorkload"`
	CompletionRate  float64         `json:"completionRate"`
	IsRegularDriver bool            `json:"isRegularDriver"`
}

// ScoreOptions 单次评分选项
type ScoreOptions struct {
	BalanceWorkload   bool
	ConsiderProximity bool
}

// Scorer 司机评分器
type Scorer struct {
	config      ScorerConfig
	constraints []constraint.DispatchConstraint
}

// NewScorer 创建评分器
func NewScorer(config ScorerConfig) *Scorer {
	return &Scorer{
		config:      config,
		constraints: constraint.DefaultDispatchConstraints(config.Weights),
	}
}

// Score 为司机与行程评分
func (s *Scorer) Score(trip *model.Trip, c Candidate, opts ScoreOptions) Recommendation {
	rec := Recommendation{
		DriverID:        c.Driver.ID,
		Name:            c.Driver.Name,
		Phone:           c.Driver.Phone,
		Reasons:         []string{},
		Vehicle:         summarizeVehicle(c.Vehicle),
		DailyWorkload:   DailyWorkload{Trips: c.DailyTrips, Hours: round2(c.DailyHours)},
		CompletionRate:  round2(c.History.CompletionRate()),
		IsRegularDriver: c.History.CustomerTrips > 0,
	}

	if !c.Available {
		rec.Tier = TierUnavailable
		rec.Reasons = append(rec.Reasons, "该时段已有安排")
		return rec
	}

	ctx := &constraint.DispatchContext{
		Trip:              trip,
		Driver:            c.Driver,
		Vehicle:           c.Vehicle,
		History:           c.History,
		DailyHours:        c.DailyHours,
		TargetHours:       c.TargetHours,
		BalanceWorkload:   opts.BalanceWorkload,
		ConsiderProximity: opts.ConsiderProximity,
	}

	score := s.config.BaseScore
	eligible := true
	for _, ct := range s.constraints {
		ok, points, reason := ct.Evaluate(ctx)
		if !ok {
			eligible = false
		}
		score += points
		if reason != "" {
			rec.Reasons = append(rec.Reasons, reason)
		}
	}

	if !eligible {
		rec.Score = 0
		rec.Tier = TierNotRecommended
		return rec
	}

	rec.Eligible = true
	rec.Score = round2(math.Max(0, score))
	rec.Tier = s.tier(rec.Score)
	return rec
}

func (s *Scorer) tier(score float64) string {
	switch {
	case score >= s.config.Highly:
		return TierHighlyRecommended
	case score >= s.config.Recommended:
		return TierRecommended
	case score >= s.config.Acceptable:
		return TierAcceptable
	default:
		return TierNotRecommended
	}
}

// Rank 并行为所有候选人评分，排除不可用司机后按分数降序排列
// 上下文结束时只保留已完成评分的候选人
func (s *Scorer) Rank(ctx context.Context, trip *model.Trip, candidates []Candidate, opts ScoreOptions) ([]Recommendation, bool) {
	results := make([]*Recommendation, len(candidates))

	var g errgroup.Group
	if s.config.Workers > 0 {
		g.SetLimit(s.config.Workers)
	}
	for i := range candidates {
		i := i
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			rec := s.Score(trip, candidates[i], opts)
			results[i] = &rec
			return nil
		})
	}
	_ = g.Wait()

	truncated := false
	ranked := make([]Recommendation, 0, len(candidates))
	for _, r := range results {
		if r == nil {
			truncated = true
			continue
		}
		if r.Tier == TierUnavailable {
			continue
		}
		ranked = append(ranked, *r)
	}

	SortRecommendations(ranked)
	return ranked, truncated
}

// SortRecommendations 按分数降序，同分按司机ID升序
func SortRecommendations(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].DriverID.String() < recs[j].DriverID.String()
	})
}

// Top 截取前 n 个推荐
func Top(recs []Recommendation, n int) []Recommendation {
	if len(recs) <= n {
		return recs
	}
	return recs[:n]
}

func summarizeVehicle(v *model.Vehicle) *VehicleSummary {
	if v == nil {
		return nil
	}
	return &VehicleSummary{
		ID:               v.ID,
		Registration:     v.Registration,
		Description:      v.Description,
		Seats:            v.Seats,
		WheelchairSpaces: v.WheelchairSpaces,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
