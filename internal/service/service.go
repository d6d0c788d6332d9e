// Package service 编排数据读取、调度组件与提交路径
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/paiban/fleetplan/internal/config"
	"github.com/paiban/fleetplan/internal/metrics"
	"github.com/paiban/fleetplan/internal/repository"
	"github.com/paiban/fleetplan/pkg/availability"
	"github.com/paiban/fleetplan/pkg/cost"
	"github.com/paiban/fleetplan/pkg/dashboard"
	"github.com/paiban/fleetplan/pkg/dispatcher"
	apperrors "github.com/paiban/fleetplan/pkg/errors"
	"github.com/paiban/fleetplan/pkg/logger"
	"github.com/paiban/fleetplan/pkg/model"
	"github.com/paiban/fleetplan/pkg/routing"
	"github.com/paiban/fleetplan/pkg/stats"
	"github.com/paiban/fleetplan/pkg/validator"
)

// historyWorkers 并行查询客户历史的上限
const historyWorkers = 4

// Service 调度服务
type Service struct {
	store Store
	cfg   *config.Config
	loc   *time.Location

	optimizer routing.RouteOptimizer
	checker   *availability.Checker
	detector  *validator.ConflictDetector
	engine    *dispatcher.DispatchEngine
	workload  *stats.WorkloadAnalyzer
	dashboard *dashboard.Aggregator
}

// New 根据配置创建服务
func New(cfg *config.Config, store Store, provider cost.Provider) *Service {
	loc := cfg.Location()
	detector := validator.NewConflictDetector(detectorConfig(cfg), provider)
	workload := stats.NewWorkloadAnalyzer(workloadConfig(cfg))

	return &Service{
		store:     store,
		cfg:       cfg,
		loc:       loc,
		optimizer: routing.New(optimizerOptions(cfg), provider),
		checker:   availability.NewChecker(loc),
		detector:  detector,
		engine:    dispatcher.NewDispatchEngine(engineConfig(cfg)),
		workload:  workload,
		dashboard: dashboard.NewAggregator(workload, detector),
	}
}

// OptimizeRoutes 线路优化
// 提供 date 时读取当日未分配行程，否则使用请求中的行程
func (s *Service) OptimizeRoutes(ctx context.Context, tenantID uuid.UUID, in OptimizeRoutesInput) (*routing.Result, error) {
	level, err := in.validate()
	if err != nil {
		return nil, err
	}

	trips := in.Trips
	if in.Date != "" {
		trips, err = s.store.FetchTrips(ctx, tenantID, repository.TripQuery{Range: model.SingleDay(in.Date), UnassignedOnly: true})
		if err != nil {
			return nil, apperrors.Database(err, "查询行程")
		}
	}
	if trips == nil {
		trips = []*model.Trip{}
	}

	start := time.Now()
	res, err := s.optimizer.Optimize(ctx, routing.Request{Trips: trips, VehicleCapacity: in.VehicleCapacity, Level: level})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "线路优化失败")
	}
	metrics.RecordOptimization(res.Method, string(res.Level), res.Iterations, res.Improvement, res.Truncated, time.Since(start))
	return res, nil
}

// CheckAvailability 司机可用性检查
func (s *Service) CheckAvailability(ctx context.Context, tenantID uuid.UUID, in AvailabilityInput) (*availability.Result, error) {
	q, err := in.query(s.loc)
	if err != nil {
		return nil, err
	}

	snap, err := s.snapshot(ctx, tenantID, &q.DriverID, lookupRange(s.loc, q.Window))
	if err != nil {
		return nil, err
	}
	res := s.checker.Check(q, snap)
	return &res, nil
}

// DetectConflicts 冲突检测
func (s *Service) DetectConflicts(ctx context.Context, tenantID uuid.UUID, in RangeInput) (*validator.Report, error) {
	dr, err := in.dateRange()
	if err != nil {
		return nil, err
	}

	assignments, err := s.store.FetchAssignments(ctx, tenantID, nil, dr)
	if err != nil {
		return nil, apperrors.Database(err, "查询分配")
	}
	report := s.detector.Detect(ctx, assignments, dr)
	metrics.RecordConflicts(report.Summary.Critical, report.Summary.Warnings, report.Summary.Info)
	return &report, nil
}

// SuggestDrivers 为单个行程推荐司机
func (s *Service) SuggestDrivers(ctx context.Context, tenantID uuid.UUID, in SuggestInput) ([]dispatcher.Recommendation, error) {
	trip, err := in.trip(tenantID, s.loc, s.cfg.Scheduling.DefaultTripMinutes)
	if err != nil {
		return nil, err
	}

	fleet, err := s.fleet(ctx, tenantID, lookupRange(s.loc, trip.Window()), []uuid.UUID{trip.CustomerID})
	if err != nil {
		return nil, err
	}

	scoreCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.engine.Suggest(scoreCtx, dispatcher.SuggestRequest{
		Trip:              trip,
		Fleet:             fleet,
		ConsiderProximity: in.ConsiderProximity,
	}), nil
}

// AutoAssign 自动派车，ApplyChanges 为 false 时只返回方案
func (s *Service) AutoAssign(ctx context.Context, tenantID uuid.UUID, in AutoAssignInput) (*dispatcher.AutoAssignResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	trips, err := s.store.FetchTrips(ctx, tenantID, repository.TripQuery{Range: model.SingleDay(in.Date), UnassignedOnly: true})
	if err != nil {
		return nil, apperrors.Database(err, "查询行程")
	}
	fleet, err := s.fleet(ctx, tenantID, tripsRange(s.loc, in.Date, trips), customers(trips))
	if err != nil {
		return nil, err
	}

	planCtx, cancel := s.withTimeout(ctx)
	defer cancel()
	res := s.engine.AutoAssign(planCtx, dispatcher.AutoAssignRequest{
		Date:              in.Date,
		Trips:             trips,
		Fleet:             fleet,
		BalanceWorkload:   in.BalanceWorkload,
		ConsiderProximity: in.ConsiderProximity,
		MaxAssignments:    in.MaxAssignments,
	})

	if in.ApplyChanges {
		if err := s.store.PersistAssignments(ctx, tenantID, res.Records); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeCommitFailed, "提交分配失败")
		}
		res.Applied = true
		logger.WithContext(ctx).Info().
			Str("date", in.Date).
			Int("assigned", res.Assigned).
			Msg("自动派车方案已提交")
	}
	metrics.RecordAutoAssign(res.Assigned, res.Unassigned, res.Applied)
	return res, nil
}

// Workload 工作量分析
func (s *Service) Workload(ctx context.Context, tenantID uuid.UUID, in RangeInput) (*stats.WorkloadReport, error) {
	dr, err := in.dateRange()
	if err != nil {
		return nil, err
	}

	var drivers []*model.Driver
	var assignments []*model.Assignment
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		drivers, err = s.store.FetchDrivers(gctx, tenantID)
		return wrapStore(err, "查询司机")
	})
	g.Go(func() (err error) {
		assignments, err = s.store.FetchAssignments(gctx, tenantID, nil, dr)
		return wrapStore(err, "查询分配")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return s.workload.Analyze(drivers, assignments, dr), nil
}

// Dashboard 运营看板
func (s *Service) Dashboard(ctx context.Context, tenantID uuid.UUID, in RangeInput) (*dashboard.Dashboard, error) {
	dr, err := in.dateRange()
	if err != nil {
		return nil, err
	}

	input := dashboard.Input{Range: dr}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		input.Drivers, err = s.store.FetchDrivers(gctx, tenantID)
		return wrapStore(err, "查询司机")
	})
	g.Go(func() (err error) {
		input.Assignments, err = s.store.FetchAssignments(gctx, tenantID, nil, dr)
		return wrapStore(err, "查询分配")
	})
	g.Go(func() (err error) {
		input.Trips, err = s.store.FetchTrips(gctx, tenantID, repository.TripQuery{Range: dr})
		return wrapStore(err, "查询行程")
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d := s.dashboard.Build(ctx, input)
	metrics.RecordConflicts(d.Conflicts.Summary.Critical, d.Conflicts.Summary.Warnings, d.Conflicts.Summary.Info)
	return d, nil
}

// snapshot 读取司机在日期范围内的分配、休假与排班表
func (s *Service) snapshot(ctx context.Context, tenantID uuid.UUID, driverID *uuid.UUID, dr model.DateRange) (availability.Snapshot, error) {
	var snap availability.Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.Assignments, err = s.store.FetchAssignments(gctx, tenantID, driverID, dr)
		return wrapStore(err, "查询分配")
	})
	g.Go(func() (err error) {
		snap.Holidays, err = s.store.FetchApprovedHolidays(gctx, tenantID, driverID, dr)
		return wrapStore(err, "查询休假")
	})
	g.Go(func() (err error) {
		snap.Roster, err = s.store.FetchRoster(gctx, tenantID, driverID, dr)
		return wrapStore(err, "查询排班表")
	})
	if err := g.Wait(); err != nil {
		return availability.Snapshot{}, err
	}
	return snap, nil
}

// lookupRange 时段涉及的日期，向前多取一天以包含前一日跨零点的分配
func lookupRange(loc *time.Location, windows ...model.TimeRange) model.DateRange {
	var dr model.DateRange
	for i, w := range windows {
		span := w.Span(loc)
		if i == 0 || span.StartDate < dr.StartDate {
			dr.StartDate = span.StartDate
		}
		if i == 0 || span.EndDate > dr.EndDate {
			dr.EndDate = span.EndDate
		}
	}
	if start, err := time.ParseInLocation(model.DateFormat, dr.StartDate, loc); err == nil {
		dr.StartDate = start.AddDate(0, 0, -1).Format(model.DateFormat)
	}
	return dr
}

// tripsRange 当日全部行程涉及的日期
func tripsRange(loc *time.Location, date string, trips []*model.Trip) model.DateRange {
	windows := make([]model.TimeRange, 0, len(trips)+1)
	if day, err := model.DayWindow(date, loc); err == nil {
		windows = append(windows, model.TimeRange{Start: day.Start, End: day.Start})
	}
	for _, t := range trips {
		windows = append(windows, t.Window())
	}
	if len(windows) == 0 {
		return model.SingleDay(date)
	}
	return lookupRange(loc, windows...)
}

// fleet 读取派车所需的全部快照
func (s *Service) fleet(ctx context.Context, tenantID uuid.UUID, dr model.DateRange, customerIDs []uuid.UUID) (dispatcher.Fleet, error) {
	var fleet dispatcher.Fleet
	var snap availability.Snapshot

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fleet.Drivers, err = s.store.FetchDrivers(gctx, tenantID)
		return wrapStore(err, "查询司机")
	})
	g.Go(func() (err error) {
		fleet.Vehicles, err = s.store.FetchVehicles(gctx, tenantID)
		return wrapStore(err, "查询车辆")
	})
	g.Go(func() (err error) {
		snap, err = s.snapshot(gctx, tenantID, nil, dr)
		return err
	})
	g.Go(func() (err error) {
		fleet.History, err = s.history(gctx, tenantID, customerIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return dispatcher.Fleet{}, err
	}

	fleet.Assignments = snap.Assignments
	fleet.Holidays = snap.Holidays
	fleet.Roster = snap.Roster
	return fleet, nil
}

// history 按客户并行查询司机历史
func (s *Service) history(ctx context.Context, tenantID uuid.UUID, customerIDs []uuid.UUID) (dispatcher.HistoryByCustomer, error) {
	results := make([][]model.DriverHistory, len(customerIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyWorkers)
	for i, id := range customerIDs {
		i, id := i, id
		g.Go(func() error {
			h, err := s.store.FetchDriverHistory(gctx, tenantID, &id)
			if err != nil {
				return wrapStore(err, "查询司机历史")
			}
			results[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byCustomer := make(dispatcher.HistoryByCustomer, len(customerIDs))
	for i, id := range customerIDs {
		byDriver := make(map[uuid.UUID]model.DriverHistory, len(results[i]))
		for _, h := range results[i] {
			byDriver[h.DriverID] = h
		}
		byCustomer[id] = byDriver
	}
	return byCustomer, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.Optimizer.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.Optimizer.Timeout)
}

// customers 返回行程涉及的客户，保持首次出现顺序
func customers(trips []*model.Trip) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(trips))
	ids := make([]uuid.UUID, 0, len(trips))
	for _, t := range trips {
		if !seen[t.CustomerID] {
			seen[t.CustomerID] = true
			ids = append(ids, t.CustomerID)
		}
	}
	return ids
}

func wrapStore(err error, op string) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*apperrors.AppError); ok {
		return err
	}
	return apperrors.Database(err, op)
}
