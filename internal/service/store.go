package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/paiban/fleetplan/internal/repository"
	"github.com/paiban/fleetplan/pkg/model"
)

// Store 服务依赖的数据访问接口
// 由 repository.Postgres 与 repository.Memory 实现
type Store interface {
	FetchTrips(ctx context.Context, tenantID uuid.UUID, q repository.TripQuery) ([]*model.Trip, error)
	FetchDrivers(ctx context.Context, tenantID uuid.UUID) ([]*model.Driver, error)
	FetchVehicles(ctx context.Context, tenantID uuid.UUID) ([]*model.Vehicle, error)
	FetchAssignments(ctx context.Context, tenantID uuid.UUID, driverID *uuid.UUID, dr model.DateRange) ([]*model.Assignment, error)
	FetchApprovedHolidays(ctx context.Context, tenantID uuid.UUID, driverID *uuid.UUID, dr model.DateRange) ([]*model.Holiday, error)
	FetchRoster(ctx context.Context, tenantID uuid.UUID, driverID *uuid.UUID, dr model.DateRange) ([]*model.RosterEntry, error)
	FetchDriverHistory(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) ([]model.DriverHistory, error)
	PersistAssignments(ctx context.Context, tenantID uuid.UUID, assignments []*model.Assignment) error
}

var (
	_ Store = (*repository.Postgres)(nil)
	_ Store = (*repository.Memory)(nil)
)
