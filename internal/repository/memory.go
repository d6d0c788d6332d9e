package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/paiban/fleetplan/pkg/model"
)

// Dataset 单个租户的内存数据
type Dataset struct {
	Trips       []*model.Trip
	Drivers     []*model.Driver
	Vehicles    []*model.Vehicle
	Assignments []*model.Assignment
	Holidays    []*model.Holiday
	Roster      []*model.RosterEntry
}

// Memory 内存数据访问实现（未启用数据库时及测试中使用）
// 返回的记录为副本，调用方修改不会影响存储
type Memory struct {
	mu      sync.RWMutex
	tenants map[uuid.UUID]*Dataset
}

// NewMemory 创建内存仓储
func NewMemory() *Memory {
	return &Memory{tenants: make(map[uuid.UUID]*Dataset)}
}

// Seed 追加租户数据
func (m *Memory) Seed(tenantID uuid.UUID, ds Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.dataset(tenantID)
	cur.Trips = append(cur.Trips, ds.Trips...)
	cur.Drivers = append(cur.Drivers, ds.Drivers...)
	cur.Vehicles = append(cur.Vehicles, ds.Vehicles...)
	cur.Assignments = append(cur.Assignments, ds.Assignments...)
	cur.Holidays = append(cur.Holidays, ds.Holidays...)
	cur.Roster = append(cur.Roster, ds.Roster...)
}

func (m *Memory) dataset(tenantID uuid.UUID) *Dataset {
	ds, ok := m.tenants[tenantID]
	if !ok {
		ds = &Dataset{}
		m.tenants[tenantID] = ds
	}
	return ds
}

func (m *Memory) read(tenantID uuid.UUID) Dataset {
	if ds, ok := m.tenants[tenantID]; ok {
		return *ds
	}
	return Dataset{}
}

func matchDriver(filter *uuid.UUID, id uuid.UUID) bool {
	return filter == nil || *filter == id
}

// FetchTrips 查询日期范围内的行程
func (m *Memory) FetchTrips(ctx context.Context, tenantID uuid.UUID, q TripQuery) ([]*model.Trip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	trips := make([]*model.Trip, 0)
	for _, t := range m.read(tenantID).Trips {
		if q.Matches(t) {
			cp := *t
			trips = append(trips, &cp)
		}
	}
	sort.SliceStable(trips, func(i, j int) bool {
		if trips[i].PickupTime.Equal(trips[j].PickupTime) {
			return trips[i].ID.String() < trips[j].ID.String()
		}
		return trips[i].PickupTime.Before(trips[j].PickupTime)
	})
	return trips, nil
}

// FetchDrivers 查询租户的全部司机
func (m *Memory) FetchDrivers(ctx context.Context, tenantID uuid.UUID) ([]*model.Driver, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	drivers := make([]*model.Driver, 0)
	for _, d := range m.read(tenantID).Drivers {
		cp := *d
		drivers = append(drivers, &cp)
	}
	return drivers, nil
}

// FetchVehicles 查询租户的全部车辆
func (m *Memory) FetchVehicles(ctx context.Context, tenantID uuid.UUID) ([]*model.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	vehicles := make([]*model.Vehicle, 0)
	for _, v := range m.read(tenantID).Vehicles {
		cp := *v
		vehicles = append(vehicles, &cp)
	}
	return vehicles, nil
}

// FetchAssignments 查询日期范围内的分配
func (m *Memory) FetchAssignments(ctx context.Context, tenantID uuid.UUID, driverID *uuid.UUID, dr model.DateRange) ([]*model.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	assignments := make([]*model.Assignment, 0)
	for _, a := range m.read(tenantID).Assignments {
		if matchDriver(driverID, a.DriverID) && dr.Contains(a.Date) {
			cp := *a
			assignments = append(assignments, &cp)
		}
	}
	return assignments, nil
}

// FetchApprovedHolidays 查询与日期范围相交的已批准休假
func (m *Memory) FetchApprovedHolidays(ctx context.Context, tenantID uuid.UUID, driverID *uuid.UUID, dr model.DateRange) ([]*model.Holiday, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	holidays := make([]*model.Holiday, 0)
	for _, h := range m.read(tenantID).Holidays {
		if !h.IsApproved() || !matchDriver(driverID, h.DriverID) {
			continue
		}
		if h.StartDate <= dr.EndDate && h.EndDate >= dr.StartDate {
			cp := *h
			holidays = append(holidays, &cp)
		}
	}
	return holidays, nil
}

// FetchRoster 查询日期范围内的排班表条目
func (m *Memory) FetchRoster(ctx context.Context, tenantID uuid.UUID, driverID *uuid.UUID, dr model.DateRange) ([]*model.RosterEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]*model.RosterEntry, 0)
	for _, e := range m.read(tenantID).Roster {
		if matchDriver(driverID, e.DriverID) && dr.Contains(e.Date) {
			cp := *e
			entries = append(entries, &cp)
		}
	}
	return entries, nil
}

// FetchDriverHistory 根据已有行程分配统计司机历史
func (m *Memory) FetchDriverHistory(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) ([]model.DriverHistory, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	ds := m.read(tenantID)
	customers := make(map[uuid.UUID]uuid.UUID, len(ds.Trips))
	for _, t := range ds.Trips {
		customers[t.ID] = t.CustomerID
	}

	byDriver := make(map[uuid.UUID]*model.DriverHistory)
	for _, a := range ds.Assignments {
		if a.TripID == nil {
			continue
		}
		cust, ok := customers[*a.TripID]
		if !ok {
			continue
		}
		h, ok := byDriver[a.DriverID]
		if !ok {
			h = &model.DriverHistory{DriverID: a.DriverID}
			byDriver[a.DriverID] = h
		}
		if a.Status != model.AssignmentTentative {
			h.TotalTrips++
		}
		if a.Status == model.AssignmentCompleted {
			h.CompletedTrips++
		}
		if customerID != nil && cust == *customerID && a.IsActive() {
			h.CustomerTrips++
		}
	}

	history := make([]model.DriverHistory, 0, len(byDriver))
	for _, h := range byDriver {
		history = append(history, *h)
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].DriverID.String() < history[j].DriverID.String()
	})
	return history, nil
}

// PersistAssignments 写入分配并标记行程已分配
func (m *Memory) PersistAssignments(ctx context.Context, tenantID uuid.UUID, assignments []*model.Assignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ds := m.dataset(tenantID)
	trips := make(map[uuid.UUID]*model.Trip, len(ds.Trips))
	for _, t := range ds.Trips {
		trips[t.ID] = t
	}

	for _, a := range assignments {
		a.ID = uuid.New()
		a.TenantID = tenantID
		cp := *a
		ds.Assignments = append(ds.Assignments, &cp)
		if a.TripID == nil {
			continue
		}
		if t, ok := trips[*a.TripID]; ok {
			driverID := a.DriverID
			t.DriverID = &driverID
		}
	}
	return nil
}
