// Package dispatcher 提供司机推荐与自动派车
package dispatcher

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/fleetplan/pkg/availability"
	"github.com/paiban/fleetplan/pkg/logger"
	"github.com/paiban/fleetplan/pkg/model"
)

// EngineConfig 派车引擎配置
type EngineConfig struct {
	Scorer        ScorerConfig
	TargetHours   map[string]float64 // 按用工类型的每日目标工时
	DefaultTarget float64
	Location      *time.Location
}

// DefaultEngineConfig 默认配置
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Scorer: DefaultScorerConfig(),
		TargetHours: map[string]float64{
			model.EmploymentFullTime: 8,
			model.EmploymentPartTime: 5,
			model.EmploymentCasual:   4,
		},
		DefaultTarget: 8,
		Location:      time.UTC,
	}
}

// HistoryByCustomer 客户 -> 司机 -> 服务历史
type HistoryByCustomer map[uuid.UUID]map[uuid.UUID]model.DriverHistory

// Lookup 查询司机为客户服务的历史，没有记录时返回零值
func (h HistoryByCustomer) Lookup(customerID, driverID uuid.UUID) model.DriverHistory {
	if byDriver, ok := h[customerID]; ok {
		if hist, ok := byDriver[driverID]; ok {
			return hist
		}
	}
	return model.DriverHistory{DriverID: driverID}
}

// Fleet 派车所需的只读快照
type Fleet struct {
	Drivers     []*model.Driver
	Vehicles    []*model.Vehicle
	Assignments []*model.Assignment
	Holidays    []*model.Holiday
	Roster      []*model.RosterEntry
	History     HistoryByCustomer
}

// DispatchEngine 派车引擎
type DispatchEngine struct {
	config  EngineConfig
	scorer  *Scorer
	checker *availability.Checker
}

// NewDispatchEngine 创建派车引擎
func NewDispatchEngine(config EngineConfig) *DispatchEngine {
	return &DispatchEngine{
		config:  config,
		scorer:  NewScorer(config.Scorer),
		checker: availability.NewChecker(config.Location),
	}
}

// SuggestRequest 司机推荐请求
type SuggestRequest struct {
	Trip              *model.Trip
	Fleet             Fleet
	ConsiderProximity bool
}

// Suggest 为单个行程推荐司机，最多返回 MaxRecommendations 个
func (e *DispatchEngine) Suggest(ctx context.Context, req SuggestRequest) []Recommendation {
	state := e.newState(req.Fleet, req.Trip.Date())
	candidates := state.candidates(req.Trip, req.Fleet.History)

	ranked, truncated := e.scorer.Rank(ctx, req.Trip, candidates, ScoreOptions{ConsiderProximity: req.ConsiderProximity})
	if truncated {
		logger.WithContext(ctx).Warn().Int("scored", len(ranked)).Msg("司机评分超时，返回已完成的评分")
	}
	return Top(ranked, MaxRecommendations)
}

// AutoAssignRequest 自动派车请求
type AutoAssignRequest struct {
	Date              string
	Trips             []*model.Trip // 待分配行程
	Fleet             Fleet
	BalanceWorkload   bool
	ConsiderProximity bool
	MaxAssignments    int // 0 表示不限
}

// PlannedAssignment 计划中的分配
type PlannedAssignment struct {
	TripID     uuid.UUID `json:"tripId"`
	DriverID   uuid.UUID `json:"driverId"`
	DriverName string    `json:"driverName"`
	PickupTime time.Time `json:"pickupTime"`
	Score      float64   `json:"score"`
	Reasons    []string  `json:"reasons"`
}

// AutoAssignResult 自动派车结果
type AutoAssignResult struct {
	Date              string              `json:"date"`
	Assigned          int                 `json:"assigned"`
	Unassigned        int                 `json:"unassigned"`
	Assignments       []PlannedAssignment `json:"assignments"`
	UnassignedTripIDs []uuid.UUID         `json:"unassignedTripIds"`
	Applied           bool                `json:"applied"`
	Truncated         bool                `json:"truncated"`

	// Records 待提交的分配记录，ID 在提交时生成
	Records []*model.Assignment `json:"-"`
}

// AutoAssign 按接客时间依次为行程选择得分最高的可用司机
// 本批次的暂定分配会计入后续行程的可用性与工作量
func (e *DispatchEngine) AutoAssign(ctx context.Context, req AutoAssignRequest) *AutoAssignResult {
	start := time.Now()
	log := logger.NewDispatchLogger(ctx)
	log.BatchStart(req.Date, len(req.Trips), len(req.Fleet.Drivers))

	trips := make([]*model.Trip, len(req.Trips))
	copy(trips, req.Trips)
	sort.SliceStable(trips, func(i, j int) bool {
		if trips[i].PickupTime.Equal(trips[j].PickupTime) {
			return trips[i].ID.String() < trips[j].ID.String()
		}
		return trips[i].PickupTime.Before(trips[j].PickupTime)
	})

	result := &AutoAssignResult{
		Date:              req.Date,
		Assignments:       []PlannedAssignment{},
		UnassignedTripIDs: []uuid.UUID{},
		Records:           []*model.Assignment{},
	}

	state := e.newState(req.Fleet, req.Date)
	opts := ScoreOptions{BalanceWorkload: req.BalanceWorkload, ConsiderProximity: req.ConsiderProximity}

	for i, trip := range trips {
		if req.MaxAssignments > 0 && len(result.Assignments) >= req.MaxAssignments {
			result.unassign(trips[i:])
			break
		}
		if ctx.Err() != nil {
			result.Truncated = true
			result.unassign(trips[i:])
			break
		}

		ranked, truncated := e.scorer.Rank(ctx, trip, state.candidates(trip, req.Fleet.History), opts)
		if truncated {
			result.Truncated = true
			result.unassign(trips[i:])
			break
		}

		best := firstEligible(ranked)
		if best == nil {
			log.NoDriver(trip.ID.String())
			result.UnassignedTripIDs = append(result.UnassignedTripIDs, trip.ID)
			continue
		}

		record := model.AssignmentForTrip(trip, best.DriverID, model.AssignmentScheduled)
		state.commit(record)
		result.Records = append(result.Records, record)
		result.Assignments = append(result.Assignments, PlannedAssignment{
			TripID:     trip.ID,
			DriverID:   best.DriverID,
			DriverName: best.Name,
			PickupTime: trip.PickupTime,
			Score:      best.Score,
			Reasons:    best.Reasons,
		})
	}

	if result.Truncated {
		logger.WithContext(ctx).Warn().Int("assigned", len(result.Assignments)).Msg("自动派车超时，返回当前方案")
	}
	result.Assigned = len(result.Assignments)
	result.Unassigned = len(result.UnassignedTripIDs)
	log.BatchComplete(result.Assigned, result.Unassigned, false, time.Since(start))
	return result
}

func (r *AutoAssignResult) unassign(trips []*model.Trip) {
	for _, t := range trips {
		r.UnassignedTripIDs = append(r.UnassignedTripIDs, t.ID)
	}
}

func firstEligible(recs []Recommendation) *Recommendation {
	for i := range recs {
		if recs[i].Eligible {
			return &recs[i]
		}
	}
	return nil
}

// dispatchState 单次请求内的局部状态：可用性索引与当日工作量累加器
type dispatchState struct {
	engine   *DispatchEngine
	drivers  []*model.Driver
	vehicles map[uuid.UUID]*model.Vehicle
	index    availability.Index
	hours    map[uuid.UUID]float64
	trips    map[uuid.UUID]int
}

func (e *DispatchEngine) newState(fleet Fleet, date string) *dispatchState {
	st := &dispatchState{
		engine:   e,
		vehicles: make(map[uuid.UUID]*model.Vehicle, len(fleet.Vehicles)),
		hours:    make(map[uuid.UUID]float64),
		trips:    make(map[uuid.UUID]int),
	}
	for _, d := range fleet.Drivers {
		if d.IsActive() {
			st.drivers = append(st.drivers, d)
		}
	}
	for _, v := range fleet.Vehicles {
		st.vehicles[v.ID] = v
	}

	active := make([]*model.Assignment, 0, len(fleet.Assignments))
	for _, a := range fleet.Assignments {
		if !a.IsActive() {
			continue
		}
		active = append(active, a)
		if a.Date == date {
			st.hours[a.DriverID] += a.WorkingHours()
			st.trips[a.DriverID]++
		}
	}
	st.index = availability.NewIndex(active, fleet.Holidays, fleet.Roster)
	return st
}

func (st *dispatchState) candidates(trip *model.Trip, history HistoryByCustomer) []Candidate {
	query := availability.Query{Date: trip.Date(), Window: trip.Window()}
	out := make([]Candidate, 0, len(st.drivers))
	for _, d := range st.drivers {
		query.DriverID = d.ID
		var vehicle *model.Vehicle
		if d.VehicleID != nil {
			vehicle = st.vehicles[*d.VehicleID]
		}
		out = append(out, Candidate{
			Driver:      d,
			Vehicle:     vehicle,
			History:     history.Lookup(trip.CustomerID, d.ID),
			DailyTrips:  st.trips[d.ID],
			DailyHours:  st.hours[d.ID],
			TargetHours: st.engine.targetHours(d),
			Available:   st.engine.checker.Available(query, st.index[d.ID]),
		})
	}
	return out
}

// commit 记录暂定分配
func (st *dispatchState) commit(a *model.Assignment) {
	st.index.Add(a)
	st.hours[a.DriverID] += a.WorkingHours()
	st.trips[a.DriverID]++
}

func (e *DispatchEngine) targetHours(d *model.Driver) float64 {
	if h, ok := e.config.TargetHours[d.EmploymentType]; ok {
		return h
	}
	return e.config.DefaultTarget
}
