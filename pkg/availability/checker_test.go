package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paiban/fleetplan/pkg/model"
)

func at(clock string) time.Time {
	t, _ := model.ParseClock("2025-01-15", clock, time.UTC)
	return t
}

func assignment(driverID uuid.UUID, start, end, status string) *model.Assignment {
	return &model.Assignment{
		ID:        uuid.New(),
		DriverID:  driverID,
		Date:      "2025-01-15",
		StartTime: at(start),
		EndTime:   at(end),
		Status:    status,
	}
}

func TestCheck_OverlappingAssignment(t *testing.T) {
	driverID := uuid.New()
	existing := assignment(driverID, "09:00", "09:30", model.AssignmentScheduled)
	c := NewChecker(time.UTC)

	q, err := NewQuery(driverID, "2025-01-15", "09:10", 30, time.UTC)
	require.NoError(t, err)
	res := c.Check(q, Snapshot{Assignments: []*model.Assignment{existing}})

	assert.False(t, res.Available)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, SourceAssignment, res.Conflicts[0].Source)
	assert.Equal(t, existing.ID, res.Conflicts[0].ID)
}

func TestCheck_NoRecordsMeansAvailable(t *testing.T) {
	c := NewChecker(nil)
	q, err := NewQuery(uuid.New(), "2025-01-15", "09:10", 30, time.UTC)
	require.NoError(t, err)

	res := c.Check(q, Snapshot{})

	assert.True(t, res.Available)
	assert.NotNil(t, res.Conflicts)
	assert.Empty(t, res.Conflicts)
}

func TestCheck_HalfOpenBoundaries(t *testing.T) {
	driverID := uuid.New()
	snap := Snapshot{Assignments: []*model.Assignment{
		assignment(driverID, "09:00", "09:30", model.AssignmentConfirmed),
	}}
	c := NewChecker(time.UTC)

	tests := []struct {
		name      string
		start     string
		minutes   int
		available bool
	}{
		{"紧接其后", "09:30", 30, true},
		{"恰在其前结束", "08:30", 30, true},
		{"跨越开始", "08:45", 30, false},
		{"完全包含", "08:00", 120, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := NewQuery(driverID, "2025-01-15", tt.start, tt.minutes, time.UTC)
			require.NoError(t, err)
			assert.Equal(t, tt.available, c.Available(q, snap))
		})
	}
}

func TestCheck_IgnoresOtherDriversAndCancelled(t *testing.T) {
	driverID := uuid.New()
	snap := Snapshot{Assignments: []*model.Assignment{
		assignment(uuid.New(), "09:00", "10:00", model.AssignmentScheduled),
		assignment(driverID, "09:00", "10:00", model.AssignmentCancelled),
	}}

	q, err := NewQuery(driverID, "2025-01-15", "09:15", 30, time.UTC)
	require.NoError(t, err)

	assert.True(t, NewChecker(time.UTC).Available(q, snap))
}

func TestCheck_Holiday(t *testing.T) {
	driverID := uuid.New()
	approved := &model.Holiday{ID: uuid.New(), DriverID: driverID, StartDate: "2025-01-14", EndDate: "2025-01-16", Status: "approved"}
	pending := &model.Holiday{ID: uuid.New(), DriverID: driverID, StartDate: "2025-01-15", EndDate: "2025-01-15", Status: "pending"}
	c := NewChecker(time.UTC)

	q, err := NewQuery(driverID, "2025-01-15", "14:00", 60, time.UTC)
	require.NoError(t, err)

	res := c.Check(q, Snapshot{Holidays: []*model.Holiday{approved, pending}})
	assert.False(t, res.Available)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, SourceHoliday, res.Conflicts[0].Source)
	assert.Equal(t, approved.ID, res.Conflicts[0].ID)

	assert.True(t, c.Available(q, Snapshot{Holidays: []*model.Holiday{pending}}))
}

func TestCheck_WindowPastMidnight(t *testing.T) {
	driverID := uuid.New()
	nextDay := time.Date(2025, 1, 16, 0, 15, 0, 0, time.UTC)
	early := &model.Assignment{ID: uuid.New(), DriverID: driverID, Date: "2025-01-16",
		StartTime: nextDay, EndTime: nextDay.Add(time.Hour), Status: model.AssignmentScheduled}
	holiday := &model.Holiday{ID: uuid.New(), DriverID: driverID, StartDate: "2025-01-16", EndDate: "2025-01-16", Status: "approved"}
	c := NewChecker(time.UTC)

	q, err := NewQuery(driverID, "2025-01-15", "23:30", 90, time.UTC)
	require.NoError(t, err)

	res := c.Check(q, Snapshot{Assignments: []*model.Assignment{early}})
	assert.False(t, res.Available)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, early.ID, res.Conflicts[0].ID)

	res = c.Check(q, Snapshot{Holidays: []*model.Holiday{holiday}})
	assert.False(t, res.Available)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, SourceHoliday, res.Conflicts[0].Source)
	assert.Equal(t, "2025-01-16", res.Conflicts[0].Window.Start.Format(model.DateFormat))

	// 恰好结束于零点时不涉及下一天
	q, err = NewQuery(driverID, "2025-01-15", "23:30", 30, time.UTC)
	require.NoError(t, err)
	assert.True(t, c.Available(q, Snapshot{Holidays: []*model.Holiday{holiday}}))
}

func TestCheck_Roster(t *testing.T) {
	driverID := uuid.New()
	off := &model.RosterEntry{ID: uuid.New(), DriverID: driverID, Date: "2025-01-15",
		Window: model.TimeRange{Start: at("12:00"), End: at("13:00")}, Type: "off"}
	open := &model.RosterEntry{ID: uuid.New(), DriverID: driverID, Date: "2025-01-15",
		Window: model.TimeRange{Start: at("06:00"), End: at("18:00")}, Type: "available"}
	c := NewChecker(time.UTC)

	lunch, err := NewQuery(driverID, "2025-01-15", "12:30", 15, time.UTC)
	require.NoError(t, err)
	res := c.Check(lunch, Snapshot{Roster: []*model.RosterEntry{off, open}})
	assert.False(t, res.Available)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "off", res.Conflicts[0].Status)

	morning, err := NewQuery(driverID, "2025-01-15", "10:00", 30, time.UTC)
	require.NoError(t, err)
	assert.True(t, c.Available(morning, Snapshot{Roster: []*model.RosterEntry{off, open}}))
}

func TestNewQuery_InvalidClock(t *testing.T) {
	_, err := NewQuery(uuid.New(), "2025-01-15", "9am", 30, time.UTC)
	assert.Error(t, err)
}

func TestNewIndex(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	idx := NewIndex(
		[]*model.Assignment{assignment(a, "09:00", "10:00", model.AssignmentScheduled), assignment(b, "09:00", "10:00", model.AssignmentScheduled)},
		[]*model.Holiday{{DriverID: a, StartDate: "2025-01-15", EndDate: "2025-01-15", Status: "approved"}},
		nil,
	)

	assert.Len(t, idx[a].Assignments, 1)
	assert.Len(t, idx[a].Holidays, 1)
	assert.Len(t, idx[b].Assignments, 1)
	assert.Empty(t, idx[b].Holidays)
}
