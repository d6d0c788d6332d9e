package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/paiban/fleetplan/pkg/model"
)

// Postgres 基于PostgreSQL的数据访问实现
type Postgres struct {
	db  TxDB
	loc *time.Location
}

// NewPostgres 创建PostgreSQL仓储
func NewPostgres(db TxDB, loc *time.Location) *Postgres {
	if loc == nil {
		loc = time.UTC
	}
	return &Postgres{db: db, loc: loc}
}

// FetchTrips 查询日期范围内的行程
func (r *Postgres) FetchTrips(ctx context.Context, tenantID uuid.UUID, q TripQuery) ([]*model.Trip, error) {
	query := `
		SELECT id, tenant_id, customer_id, passenger_count,
			pickup_address, pickup_latitude, pickup_longitude,
			dest_address, dest_latitude, dest_longitude,
			pickup_time, duration_minutes, requires_wheelchair, driver_id
		FROM trips
		WHERE tenant_id = $1
			AND (pickup_time AT TIME ZONE $4)::date BETWEEN $2 AND $3
			AND status <> 'cancelled'
			AND ($5 = FALSE OR driver_id IS NULL)
		ORDER BY pickup_time, id
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, q.Range.StartDate, q.Range.EndDate, r.loc.String(), q.UnassignedOnly)
	if err != nil {
		return nil, fmt.Errorf("查询行程失败: %w", err)
	}
	defer rows.Close()

	trips := make([]*model.Trip, 0)
	for rows.Next() {
		t, err := r.scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (r *Postgres) scanTrip(row Scanner) (*model.Trip, error) {
	var t model.Trip
	var driverID uuid.NullUUID
	err := row.Scan(
		&t.ID, &t.TenantID, &t.CustomerID, &t.PassengerCount,
		&t.Pickup.Address, &t.Pickup.Latitude, &t.Pickup.Longitude,
		&t.Destination.Address, &t.Destination.Latitude, &t.Destination.Longitude,
		&t.PickupTime, &t.DurationMinutes, &t.RequiresWheelchair, &driverID,
	)
	if err != nil {
		return nil, fmt.Errorf("扫描行程失败: %w", err)
	}
	t.PickupTime = t.PickupTime.In(r.loc)
	if driverID.Valid {
		id := driverID.UUID
		t.DriverID = &id
	}
	return &t, nil
}

// FetchDrivers 查询租户的全部司机
func (r *Postgres) FetchDrivers(ctx context.Context, tenantID uuid.UUID) ([]*model.Driver, error) {
	query := `
		SELECT id, tenant_id, name, phone, employment_type, status, vehicle_id,
			base_address, base_latitude, base_longitude
		FROM drivers
		WHERE tenant_id = $1
		ORDER BY name, id
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("查询司机失败: %w", err)
	}
	defer rows.Close()

	drivers := make([]*model.Driver, 0)
	for rows.Next() {
		var d model.Driver
		var vehicleID uuid.NullUUID
		var address sql.NullString
		var lat, lng sql.NullFloat64
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Name, &d.Phone, &d.EmploymentType, &d.Status,
			&vehicleID, &address, &lat, &lng); err != nil {
			return nil, fmt.Errorf("扫描司机失败: %w", err)
		}
		if vehicleID.Valid {
			id := vehicleID.UUID
			d.VehicleID = &id
		}
		if lat.Valid && lng.Valid {
			d.BaseLocation = &model.Location{Address: address.String, Latitude: lat.Float64, Longitude: lng.Float64}
		}
		drivers = append(drivers, &d)
	}
	return drivers, rows.Err()
}

// FetchVehicles 查询租户的全部车辆
func (r *Postgres) FetchVehicles(ctx context.Context, tenantID uuid.UUID) ([]*model.Vehicle, error) {
	query := `
		SELECT id, tenant_id, registration, description, seats, wheelchair_spaces
		FROM vehicles
		WHERE tenant_id = $1
		ORDER BY registration
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("查询车辆失败: %w", err)
	}
	defer rows.Close()

	vehicles := make([]*model.Vehicle, 0)
	for rows.Next() {
		var v model.Vehicle
		if err := rows.Scan(&v.ID, &v.TenantID, &v.Registration, &v.Description, &v.Seats, &v.WheelchairSpaces); err != nil {
			return nil, fmt.Errorf("扫描车辆失败: %w", err)
		}
		vehicles = append(vehicles, &v)
	}
	return vehicles, rows.Err()
}

// FetchAssignments 查询日期范围内的分配，driverID 为 nil 时返回全部司机
func (r *Postgres) FetchAssignments(ctx context.Context, tenantID uuid.UUID, driverID *uuid.UUID, dr model.DateRange) ([]*model.Assignment, error) {
	query := `
		SELECT a.id, a.tenant_id, a.driver_id, a.trip_id, a.service_id, a.date,
			a.start_time, a.end_time, a.status,
			t.pickup_address, t.pickup_latitude, t.pickup_longitude,
			t.dest_address, t.dest_latitude, t.dest_longitude
		FROM assignments a
		LEFT JOIN trips t ON t.id = a.trip_id
		WHERE a.tenant_id = $1
			AND a.date BETWEEN $2 AND $3
			AND ($4::uuid IS NULL OR a.driver_id = $4)
		ORDER BY a.start_time, a.id
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, dr.StartDate, dr.EndDate, driverID)
	if err != nil {
		return nil, fmt.Errorf("查询分配失败: %w", err)
	}
	defer rows.Close()

	assignments := make([]*model.Assignment, 0)
	for rows.Next() {
		a, err := r.scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (r *Postgres) scanAssignment(row Scanner) (*model.Assignment, error) {
	var a model.Assignment
	var tripID, serviceID uuid.NullUUID
	var date time.Time
	var pAddr, dAddr sql.NullString
	var pLat, pLng, dLat, dLng sql.NullFloat64
	err := row.Scan(
		&a.ID, &a.TenantID, &a.DriverID, &tripID, &serviceID, &date,
		&a.StartTime, &a.EndTime, &a.Status,
		&pAddr, &pLat, &pLng, &dAddr, &dLat, &dLng,
	)
	if err != nil {
		return nil, fmt.Errorf("扫描分配失败: %w", err)
	}
	a.Date = date.Format(model.DateFormat)
	a.StartTime = a.StartTime.In(r.loc)
	a.EndTime = a.EndTime.In(r.loc)
	if tripID.Valid {
		id := tripID.UUID
		a.TripID = &id
	}
	if serviceID.Valid {
		id := serviceID.UUID
		a.ServiceID = &id
	}
	if pLat.Valid && pLng.Valid {
		a.Pickup = &model.Location{Address: pAddr.String, Latitude: pLat.Float64, Longitude: pLng.Float64}
	}
	if dLat.Valid && dLng.Valid {
		a.Dropoff = &model.Location{Address: dAddr.String, Latitude: dLat.Float64, Longitude: dLng.Float64}
	}
	return &a, nil
}

// FetchApprovedHolidays 查询与日期范围相交的已批准休假
func (r *Postgres) FetchApprovedHolidays(ctx context.Context, tenantID uuid.UUID, driverID *uuid.UUID, dr model.DateRange) ([]*model.Holiday, error) {
	query := `
		SELECT id, driver_id, start_date, end_date, status, reason
		FROM holidays
		WHERE tenant_id = $1
			AND status = 'approved'
			AND start_date <= $3 AND end_date >= $2
			AND ($4::uuid IS NULL OR driver_id = $4)
		ORDER BY start_date, id
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, dr.StartDate, dr.EndDate, driverID)
	if err != nil {
		return nil, fmt.Errorf("查询休假失败: %w", err)
	}
	defer rows.Close()

	holidays := make([]*model.Holiday, 0)
	for rows.Next() {
		var h model.Holiday
		var start, end time.Time
		if err := rows.Scan(&h.ID, &h.DriverID, &start, &end, &h.Status, &h.Reason); err != nil {
			return nil, fmt.Errorf("扫描休假失败: %w", err)
		}
		h.StartDate = start.Format(model.DateFormat)
		h.EndDate = end.Format(model.DateFormat)
		holidays = append(holidays, &h)
	}
	return holidays, rows.Err()
}

// FetchRoster 查询日期范围内的排班表条目
func (r *Postgres) FetchRoster(ctx context.Context, tenantID uuid.UUID, driverID *uuid.UUID, dr model.DateRange) ([]*model.RosterEntry, error) {
	query := `
		SELECT id, driver_id, date, start_time, end_time, type, reason
		FROM roster_entries
		WHERE tenant_id = $1
			AND date BETWEEN $2 AND $3
			AND ($4::uuid IS NULL OR driver_id = $4)
		ORDER BY start_time, id
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, dr.StartDate, dr.EndDate, driverID)
	if err != nil {
		return nil, fmt.Errorf("查询排班表失败: %w", err)
	}
	defer rows.Close()

	entries := make([]*model.RosterEntry, 0)
	for rows.Next() {
		var e model.RosterEntry
		var date time.Time
		if err := rows.Scan(&e.ID, &e.DriverID, &date, &e.Window.Start, &e.Window.End, &e.Type, &e.Reason); err != nil {
			return nil, fmt.Errorf("扫描排班表失败: %w", err)
		}
		e.Date = date.Format(model.DateFormat)
		e.Window.Start = e.Window.Start.In(r.loc)
		e.Window.End = e.Window.End.In(r.loc)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// FetchDriverHistory 统计每位司机的行程服务历史
// customerID 不为空时同时统计为该客户服务的次数
func (r *Postgres) FetchDriverHistory(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID) ([]model.DriverHistory, error) {
	query := `
		SELECT a.driver_id,
			COUNT(*) FILTER (WHERE a.status <> 'tentative'),
			COUNT(*) FILTER (WHERE a.status = 'completed'),
			COUNT(*) FILTER (WHERE $2::uuid IS NOT NULL AND t.customer_id = $2 AND a.status <> 'cancelled')
		FROM assignments a
		JOIN trips t ON t.id = a.trip_id
		WHERE a.tenant_id = $1
		GROUP BY a.driver_id
		ORDER BY a.driver_id
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, customerID)
	if err != nil {
		return nil, fmt.Errorf("查询司机历史失败: %w", err)
	}
	defer rows.Close()

	history := make([]model.DriverHistory, 0)
	for rows.Next() {
		var h model.DriverHistory
		if err := rows.Scan(&h.DriverID, &h.TotalTrips, &h.CompletedTrips, &h.CustomerTrips); err != nil {
			return nil, fmt.Errorf("扫描司机历史失败: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// PersistAssignments 在一个事务中写入分配并标记行程已分配
// 成功后为每条记录填充ID
func (r *Postgres) PersistAssignments(ctx context.Context, tenantID uuid.UUID, assignments []*model.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(assignments))
	tripIDs := make([]string, 0, len(assignments))
	driverIDs := make([]string, 0, len(assignments))
	for i, a := range assignments {
		ids[i] = uuid.New()
		if a.TripID != nil {
			tripIDs = append(tripIDs, a.TripID.String())
			driverIDs = append(driverIDs, a.DriverID.String())
		}
	}

	insert := `
		INSERT INTO assignments (id, tenant_id, driver_id, trip_id, service_id, date, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	markAssigned := `
		UPDATE trips SET driver_id = v.driver_id::uuid, status = 'assigned'
		FROM unnest($2::text[], $3::text[]) AS v(trip_id, driver_id)
		WHERE trips.tenant_id = $1 AND trips.id = v.trip_id::uuid
	`

	err := r.db.Transaction(ctx, func(tx *sql.Tx) error {
		for i, a := range assignments {
			if _, err := tx.ExecContext(ctx, insert,
				ids[i], tenantID, a.DriverID, a.TripID, a.ServiceID, a.Date, a.StartTime, a.EndTime, a.Status,
			); err != nil {
				return fmt.Errorf("写入分配失败: %w", err)
			}
		}
		if len(tripIDs) > 0 {
			if _, err := tx.ExecContext(ctx, markAssigned, tenantID, pq.Array(tripIDs), pq.Array(driverIDs)); err != nil {
				return fmt.Errorf("标记行程已分配失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i, a := range assignments {
		a.ID = ids[i]
		a.TenantID = tenantID
	}
	return nil
}
