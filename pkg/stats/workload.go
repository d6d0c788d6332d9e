package stats

import (
	"sort"

	"github.com/google/uuid"

	"github.com/paiban/fleetplan/pkg/model"
)

// 利用率状态
const (
	StatusUnderutilized = "underutilized"
	StatusBalanced      = "balanced"
	StatusOverutilized  = "overutilized"
)

// WorkloadConfig 工作量分析配置
type WorkloadConfig struct {
	TargetHours    map[string]float64 // 按用工类型的每日目标工时
	DefaultTarget  float64
	UnderThreshold float64 // 低于该利用率（%）为不饱和
	OverThreshold  float64 // 高于该利用率（%）为过载
}

// DefaultWorkloadConfig 默认配置
func DefaultWorkloadConfig() WorkloadConfig {
	return WorkloadConfig{
		TargetHours: map[string]float64{
			model.EmploymentFullTime: 8,
			model.EmploymentPartTime: 5,
			model.EmploymentCasual:   4,
		},
		DefaultTarget:  8,
		UnderThreshold: 50,
		OverThreshold:  90,
	}
}

// WorkloadMetric 单个司机的工作量
type WorkloadMetric struct {
	DriverID       uuid.UUID `json:"driver_id"`
	DriverName     string    `json:"driver_name"`
	EmploymentType string    `json:"employment_type"`
	Assignments    int       `json:"assignments"`
	TotalHours     float64   `json:"total_hours"`
	TargetHours    float64   `json:"target_hours"`
	Utilization    float64   `json:"utilization_percentage"`
	Status         string    `json:"status"`
}

// WorkloadSummary 工作量汇总
type WorkloadSummary struct {
	TotalDrivers       int     `json:"totalDrivers"`
	TotalHours         float64 `json:"totalHours"`
	AverageUtilization float64 `json:"averageUtilization"`
	Underutilized      int     `json:"underutilized"`
	Overutilized       int     `json:"overutilized"`
	Balanced           int     `json:"balanced"`
	MaxHours           float64 `json:"maxHours"`
	MinHours           float64 `json:"minHours"`
	StdDevHours        float64 `json:"stdDevHours"`
	Gini               float64 `json:"gini"`
}

// WorkloadReport 工作量分析结果
type WorkloadReport struct {
	StartDate string           `json:"start_date"`
	EndDate   string           `json:"end_date"`
	Days      int              `json:"days"`
	Drivers   []WorkloadMetric `json:"drivers"`
	Summary   WorkloadSummary  `json:"summary"`
}

// WorkloadAnalyzer 工作量分析器
type WorkloadAnalyzer struct {
	config WorkloadConfig
}

// NewWorkloadAnalyzer 创建工作量分析器
func NewWorkloadAnalyzer(config WorkloadConfig) *WorkloadAnalyzer {
	return &WorkloadAnalyzer{config: config}
}

// Analyze 统计日期范围内每个在岗司机的工时与利用率
// 没有任何分配的司机也计入，利用率为0
func (w *WorkloadAnalyzer) Analyze(drivers []*model.Driver, assignments []*model.Assignment, dr model.DateRange) *WorkloadReport {
	days := dr.Days()
	report := &WorkloadReport{
		StartDate: dr.StartDate,
		EndDate:   dr.EndDate,
		Days:      days,
		Drivers:   make([]WorkloadMetric, 0, len(drivers)),
	}

	hours := make(map[uuid.UUID]float64)
	counts := make(map[uuid.UUID]int)
	for _, a := range assignments {
		if !a.IsActive() || !dr.Contains(a.Date) {
			continue
		}
		hours[a.DriverID] += a.WorkingHours()
		counts[a.DriverID]++
	}

	for _, d := range drivers {
		if !d.IsActive() {
			continue
		}
		target := w.targetHours(d) * float64(days)
		m := WorkloadMetric{
			DriverID:       d.ID,
			DriverName:     d.Name,
			EmploymentType: d.EmploymentType,
			Assignments:    counts[d.ID],
			TotalHours:     round2(hours[d.ID]),
			TargetHours:    target,
		}
		if target > 0 {
			m.Utilization = round2(hours[d.ID] / target * 100)
		}
		m.Status = w.classify(m.Utilization)
		report.Drivers = append(report.Drivers, m)
	}

	sort.SliceStable(report.Drivers, func(i, j int) bool {
		if report.Drivers[i].Utilization != report.Drivers[j].Utilization {
			return report.Drivers[i].Utilization > report.Drivers[j].Utilization
		}
		return report.Drivers[i].DriverID.String() < report.Drivers[j].DriverID.String()
	})

	report.Summary = summarize(report.Drivers)
	return report
}

func (w *WorkloadAnalyzer) classify(utilization float64) string {
	switch {
	case utilization < w.config.UnderThreshold:
		return StatusUnderutilized
	case utilization > w.config.OverThreshold:
		return StatusOverutilized
	default:
		return StatusBalanced
	}
}

func (w *WorkloadAnalyzer) targetHours(d *model.Driver) float64 {
	if h, ok := w.config.TargetHours[d.EmploymentType]; ok {
		return h
	}
	return w.config.DefaultTarget
}

// summarize 汇总，balanced = 总数 - 不饱和 - 过载
func summarize(metrics []WorkloadMetric) WorkloadSummary {
	s := WorkloadSummary{TotalDrivers: len(metrics)}
	if len(metrics) == 0 {
		return s
	}

	utilizations := make([]float64, len(metrics))
	hours := make([]float64, len(metrics))
	for i, m := range metrics {
		utilizations[i] = m.Utilization
		hours[i] = m.TotalHours
		s.TotalHours += m.TotalHours
		switch m.Status {
		case StatusUnderutilized:
			s.Underutilized++
		case StatusOverutilized:
			s.Overutilized++
		}
	}
	s.Balanced = s.TotalDrivers - s.Underutilized - s.Overutilized
	s.TotalHours = round2(s.TotalHours)
	s.AverageUtilization = mean(utilizations)

	avgHours := mean(hours)
	s.MaxHours, s.MinHours = valueRange(hours)
	s.StdDevHours = round2(stdDev(hours, avgHours))
	s.Gini = round2(Gini(hours))
	return s
}
