// Package availability 判断司机在指定时段是否空闲
package availability

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/fleetplan/pkg/model"
)

// 冲突来源
const (
	SourceAssignment = "assignment"
	SourceHoliday    = "holiday"
	SourceRoster     = "roster"
)

// Snapshot 司机在查询日期的既有安排
type Snapshot struct {
	Assignments []*model.Assignment
	Holidays    []*model.Holiday
	Roster      []*model.RosterEntry
}

// Blocker 导致不可用的具体条目
type Blocker struct {
	Source string          `json:"source"`
	ID     uuid.UUID       `json:"id"`
	Window model.TimeRange `json:"window"`
	Status string          `json:"status,omitempty"`
	Reason string          `json:"reason,omitempty"`
}

// Query 可用性查询
type Query struct {
	DriverID uuid.UUID
	Date     string
	Window   model.TimeRange
}

// NewQuery 由日期、HH:MM 和分钟数构造查询
func NewQuery(driverID uuid.UUID, date, startTime string, durationMinutes int, loc *time.Location) (Query, error) {
	start, err := model.ParseClock(date, startTime, loc)
	if err != nil {
		return Query{}, err
	}
	return Query{
		DriverID: driverID,
		Date:     date,
		Window: model.TimeRange{
			Start: start,
			End:   start.Add(time.Duration(durationMinutes) * time.Minute),
		},
	}, nil
}

// Result 可用性结果
type Result struct {
	DriverID  uuid.UUID       `json:"driver_id"`
	Date      string          `json:"date"`
	Window    model.TimeRange `json:"window"`
	Available bool            `json:"available"`
	Conflicts []Blocker       `json:"conflicts"`
}

// Checker 可用性检查器
type Checker struct {
	loc *time.Location
}

// NewChecker 创建检查器，loc 用于解释休假的整天范围
func NewChecker(loc *time.Location) *Checker {
	if loc == nil {
		loc = time.UTC
	}
	return &Checker{loc: loc}
}

// Check 检查司机在查询时段是否空闲
// 没有任何记录时视为空闲
func (c *Checker) Check(q Query, snap Snapshot) Result {
	res := Result{
		DriverID:  q.DriverID,
		Date:      q.Date,
		Window:    q.Window,
		Conflicts: []Blocker{},
	}

	for _, a := range snap.Assignments {
		if a.DriverID != q.DriverID || !a.IsActive() {
			continue
		}
		if a.Window().Overlaps(q.Window) {
			res.Conflicts = append(res.Conflicts, Blocker{
				Source: SourceAssignment,
				ID:     a.ID,
				Window: a.Window(),
				Status: a.Status,
			})
		}
	}

	dates := q.Window.Span(c.loc).Dates()
	for _, h := range snap.Holidays {
		if h.DriverID != q.DriverID || !h.IsApproved() {
			continue
		}
		for _, date := range dates {
			if !h.Covers(date) {
				continue
			}
			day, err := model.DayWindow(date, c.loc)
			if err != nil || !day.Overlaps(q.Window) {
				continue
			}
			res.Conflicts = append(res.Conflicts, Blocker{
				Source: SourceHoliday,
				ID:     h.ID,
				Window: day,
				Status: h.Status,
				Reason: h.Reason,
			})
		}
	}

	for _, r := range snap.Roster {
		if r.DriverID != q.DriverID || !r.Blocks() {
			continue
		}
		if r.Window.Overlaps(q.Window) {
			res.Conflicts = append(res.Conflicts, Blocker{
				Source: SourceRoster,
				ID:     r.ID,
				Window: r.Window,
				Status: r.Type,
				Reason: r.Reason,
			})
		}
	}

	sort.SliceStable(res.Conflicts, func(i, j int) bool {
		return res.Conflicts[i].Window.Start.Before(res.Conflicts[j].Window.Start)
	})
	res.Available = len(res.Conflicts) == 0
	return res
}

// Available 仅返回是否空闲
func (c *Checker) Available(q Query, snap Snapshot) bool {
	return c.Check(q, snap).Available
}

// Index 按司机分组的快照，供批量检查使用
type Index map[uuid.UUID]Snapshot

// NewIndex 将整批记录按司机分组
func NewIndex(assignments []*model.Assignment, holidays []*model.Holiday, roster []*model.RosterEntry) Index {
	idx := make(Index)
	for _, a := range assignments {
		s := idx[a.DriverID]
		s.Assignments = append(s.Assignments, a)
		idx[a.DriverID] = s
	}
	for _, h := range holidays {
		s := idx[h.DriverID]
		s.Holidays = append(s.Holidays, h)
		idx[h.DriverID] = s
	}
	for _, r := range roster {
		s := idx[r.DriverID]
		s.Roster = append(s.Roster, r)
		idx[r.DriverID] = s
	}
	return idx
}

// Add 追加一条分配（用于批量派车中的暂定分配）
func (idx Index) Add(a *model.Assignment) {
	s := idx[a.DriverID]
	s.Assignments = append(s.Assignments, a)
	idx[a.DriverID] = s
}
