package stats

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/fleetplan/pkg/model"
)

func driver(name, employment string) *model.Driver {
	return &model.Driver{ID: uuid.New(), Name: name, EmploymentType: employment, Status: "active"}
}

func work(driverID uuid.UUID, date string, hours float64) *model.Assignment {
	start, _ := time.Parse(model.DateFormat, date)
	start = start.Add(8 * time.Hour)
	return &model.Assignment{
		ID:        uuid.New(),
		DriverID:  driverID,
		Date:      date,
		StartTime: start,
		EndTime:   start.Add(time.Duration(hours * float64(time.Hour))),
		Status:    model.AssignmentScheduled,
	}
}

func TestWorkloadAnalyzer_Analyze(t *testing.T) {
	idle := driver("idle", model.EmploymentFullTime)
	steady := driver("steady", model.EmploymentFullTime)
	busy := driver("busy", model.EmploymentPartTime)
	inactive := driver("gone", model.EmploymentFullTime)
	inactive.Status = "inactive"

	dr := model.DateRange{StartDate: "2025-01-13", EndDate: "2025-01-14"}
	assignments := []*model.Assignment{
		work(steady.ID, "2025-01-13", 6),
		work(steady.ID, "2025-01-14", 6),
		work(busy.ID, "2025-01-13", 5),
		work(busy.ID, "2025-01-14", 5),
		work(busy.ID, "2025-01-15", 5), // 范围外
		work(inactive.ID, "2025-01-13", 8),
	}
	cancelled := work(idle.ID, "2025-01-13", 8)
	cancelled.Status = model.AssignmentCancelled
	assignments = append(assignments, cancelled)

	report := NewWorkloadAnalyzer(DefaultWorkloadConfig()).Analyze([]*model.Driver{idle, steady, busy, inactive}, assignments, dr)

	require.Len(t, report.Drivers, 3)
	assert.Equal(t, 2, report.Days)

	byID := make(map[uuid.UUID]WorkloadMetric)
	for _, m := range report.Drivers {
		byID[m.DriverID] = m
	}
	assert.Equal(t, 0.0, byID[idle.ID].Utilization)
	assert.Equal(t, StatusUnderutilized, byID[idle.ID].Status)
	assert.Equal(t, 75.0, byID[steady.ID].Utilization)
	assert.Equal(t, StatusBalanced, byID[steady.ID].Status)
	assert.Equal(t, 100.0, byID[busy.ID].Utilization)
	assert.Equal(t, StatusOverutilized, byID[busy.ID].Status)

	s := report.Summary
	assert.Equal(t, 3, s.TotalDrivers)
	assert.Equal(t, 22.0, s.TotalHours)
	assert.Equal(t, 1, s.Underutilized)
	assert.Equal(t, 1, s.Overutilized)
	assert.Equal(t, s.TotalDrivers-s.Underutilized-s.Overutilized, s.Balanced)
	assert.InDelta(t, (0.0+75+100)/3, s.AverageUtilization, 1e-9)
	assert.Equal(t, 12.0, s.MaxHours)
	assert.Equal(t, 0.0, s.MinHours)
	assert.Greater(t, s.Gini, 0.0)

	// 按利用率降序
	assert.Equal(t, busy.ID, report.Drivers[0].DriverID)
}

func TestWorkloadAnalyzer_SummaryConsistency(t *testing.T) {
	analyzer := NewWorkloadAnalyzer(DefaultWorkloadConfig())
	dr := model.SingleDay("2025-01-15")

	var drivers []*model.Driver
	var assignments []*model.Assignment
	for i := 0; i < 12; i++ {
		d := driver("d", model.EmploymentFullTime)
		drivers = append(drivers, d)
		if i > 0 {
			assignments = append(assignments, work(d.ID, "2025-01-15", float64(i)*0.75))
		}
	}

	report := analyzer.Analyze(drivers, assignments, dr)
	s := report.Summary

	assert.Equal(t, s.TotalDrivers-s.Underutilized-s.Overutilized, s.Balanced)
	sum := 0.0
	for _, m := range report.Drivers {
		assert.GreaterOrEqual(t, m.Utilization, 0.0)
		sum += m.Utilization
	}
	assert.True(t, math.Abs(sum/float64(len(report.Drivers))-s.AverageUtilization) < 1e-9)
}

func TestWorkloadAnalyzer_Empty(t *testing.T) {
	report := NewWorkloadAnalyzer(DefaultWorkloadConfig()).Analyze(nil, nil, model.SingleDay("2025-01-15"))

	assert.NotNil(t, report.Drivers)
	assert.Equal(t, WorkloadSummary{}, report.Summary)
}
