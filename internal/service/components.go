package service

import (
	"github.com/paiban/fleetplan/internal/config"
	"github.com/paiban/fleetplan/pkg/cost"
	"github.com/paiban/fleetplan/pkg/dispatcher"
	"github.com/paiban/fleetplan/pkg/dispatcher/constraint"
	"github.com/paiban/fleetplan/pkg/model"
	"github.com/paiban/fleetplan/pkg/routing"
	"github.com/paiban/fleetplan/pkg/stats"
	"github.com/paiban/fleetplan/pkg/validator"
)

// NewCostProvider 创建行驶成本估算，cache 不为空时缓存估算结果
func NewCostProvider(cfg *config.Config, cache cost.Cache) cost.Provider {
	base := cost.NewHaversine(cfg.Optimizer.AvgSpeedKmh)
	if cache == nil {
		return base
	}
	return cost.NewCached(base, cache, cfg.Redis.CostTTL)
}

func targetHours(cfg *config.Config) map[string]float64 {
	t := cfg.Scheduling.DailyTargetHours
	return map[string]float64{
		model.EmploymentFullTime: t.FullTime,
		model.EmploymentPartTime: t.PartTime,
		model.EmploymentCasual:   t.Casual,
	}
}

func optimizerOptions(cfg *config.Config) routing.Options {
	return routing.Options{
		Enabled: cfg.Optimizer.Enabled,
		Timeout: cfg.Optimizer.Timeout,
		Workers: cfg.Optimizer.Workers,
	}
}

func detectorConfig(cfg *config.Config) *validator.DetectorConfig {
	dc := validator.DefaultDetectorConfig()
	dc.MaxDailyHours = cfg.Scheduling.MaxDailyHours
	dc.NearMaxRatio = cfg.Scheduling.NearMaxRatio
	dc.MinTurnaround = cfg.Scheduling.MinTurnaround
	return dc
}

func engineConfig(cfg *config.Config) dispatcher.EngineConfig {
	s := cfg.Scoring
	ec := dispatcher.DefaultEngineConfig()
	ec.Scorer = dispatcher.ScorerConfig{
		BaseScore: s.BaseScore,
		Weights: constraint.Weights{
			RegularBonus:      s.RegularBonus,
			Workload:          s.WorkloadWeight,
			Completion:        s.CompletionWeight,
			Proximity:         s.ProximityWeight,
			ProximityRadiusKm: s.ProximityRadiusKm,
			BalanceMultiplier: s.BalanceMultiplier,
		},
		Highly:      s.HighlyRecommended,
		Recommended: s.Recommended,
		Acceptable:  s.Acceptable,
		Workers:     cfg.Optimizer.Workers,
	}
	ec.TargetHours = targetHours(cfg)
	ec.DefaultTarget = cfg.Scheduling.DailyTargetHours.FullTime
	ec.Location = cfg.Location()
	return ec
}

func workloadConfig(cfg *config.Config) stats.WorkloadConfig {
	wc := stats.DefaultWorkloadConfig()
	wc.TargetHours = targetHours(cfg)
	wc.DefaultTarget = cfg.Scheduling.DailyTargetHours.FullTime
	return wc
}
