// Package dashboard 汇总工作量、冲突与未分配行程
package dashboard

import (
	"context"

	"github.com/paiban/fleetplan/pkg/model"
	"github.com/paiban/fleetplan/pkg/stats"
	"github.com/paiban/fleetplan/pkg/validator"
)

// Dashboard 运营看板
type Dashboard struct {
	StartDate       string                `json:"startDate"`
	EndDate         string                `json:"endDate"`
	Workload        *stats.WorkloadReport `json:"workload"`
	Conflicts       validator.Report      `json:"conflicts"`
	UnassignedTrips int                   `json:"unassignedTrips"`
}

// Input 看板所需快照
type Input struct {
	Range       model.DateRange
	Drivers     []*model.Driver
	Assignments []*model.Assignment
	Trips       []*model.Trip
}

// Aggregator 看板聚合器
type Aggregator struct {
	workload  *stats.WorkloadAnalyzer
	conflicts *validator.ConflictDetector
}

// NewAggregator 创建聚合器
func NewAggregator(workload *stats.WorkloadAnalyzer, conflicts *validator.ConflictDetector) *Aggregator {
	return &Aggregator{workload: workload, conflicts: conflicts}
}

// Build 组合三个组件的结果
func (a *Aggregator) Build(ctx context.Context, in Input) *Dashboard {
	unassigned := 0
	for _, t := range in.Trips {
		if !t.IsAssigned() && in.Range.Contains(t.Date()) {
			unassigned++
		}
	}

	return &Dashboard{
		StartDate:       in.Range.StartDate,
		EndDate:         in.Range.EndDate,
		Workload:        a.workload.Analyze(in.Drivers, in.Assignments, in.Range),
		Conflicts:       a.conflicts.Detect(ctx, in.Assignments, in.Range),
		UnassignedTrips: unassigned,
	}
}
