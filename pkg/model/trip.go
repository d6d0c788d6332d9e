package model

import (
	"time"

	"github.com/google/uuid"
)

// Trip 乘客行程（由上游CRM创建，本子系统只读）
type Trip struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	TenantID           uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	CustomerID         uuid.UUID  `json:"customer_id" db:"customer_id"`
	PassengerCount     int        `json:"passenger_count" db:"passenger_count"`
	Pickup             Location   `json:"pickup" db:"-"`
	Destination        Location   `json:"destination" db:"-"`
	PickupTime         time.Time  `json:"pickup_time" db:"pickup_time"`
	DurationMinutes    int        `json:"duration_minutes" db:"duration_minutes"`
	RequiresWheelchair bool       `json:"requires_wheelchair" db:"requires_wheelchair"`
	DriverID           *uuid.UUID `json:"driver_id,omitempty" db:"driver_id"`
}

// Date 返回接客日期
func (t *Trip) Date() string {
	return t.PickupTime.Format(DateFormat)
}

// Window 返回行程占用的时间范围
func (t *Trip) Window() TimeRange {
	return TimeRange{
		Start: t.PickupTime,
		End:   t.PickupTime.Add(time.Duration(t.DurationMinutes) * time.Minute),
	}
}

// IsAssigned 检查行程是否已分配司机
func (t *Trip) IsAssigned() bool {
	return t.DriverID != nil
}

// Vehicle 车辆
type Vehicle struct {
	ID               uuid.UUID `json:"id" db:"id"`
	TenantID         uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Registration     string    `json:"registration" db:"registration"`
	Description      string    `json:"description,omitempty" db:"description"`
	Seats            int       `json:"seats" db:"seats"`
	WheelchairSpaces int       `json:"wheelchair_spaces" db:"wheelchair_spaces"`
}

// IsWheelchairAccessible 检查车辆是否有轮椅位
func (v *Vehicle) IsWheelchairAccessible() bool {
	return v.WheelchairSpaces > 0
}

// Route 线路：按顺序执行的一组行程
type Route struct {
	TripIDs            []uuid.UUID `json:"trip_ids"`
	TotalPassengers    int         `json:"total_passengers"`
	VehicleCapacity    int         `json:"vehicle_capacity"`
	OccupiedSeats      int         `json:"occupied_seats"`
	EmptySeats         int         `json:"empty_seats"`
	CapacityUsed       float64     `json:"capacity_used"` // 百分比
	CapacityViolated   bool        `json:"capacity_violated"`
	OverflowPassengers int         `json:"overflow_passengers,omitempty"`
	Cost               float64     `json:"cost"`
	BaselineCost       float64     `json:"baseline_cost"`
	Iterations         int         `json:"iterations"`
}

// NewRoute 创建指定车辆容量的空线路
func NewRoute(capacity int) *Route {
	return &Route{VehicleCapacity: capacity, TripIDs: make([]uuid.UUID, 0, 4)}
}

// Remaining 返回剩余座位数
func (r *Route) Remaining() int {
	return r.VehicleCapacity - r.TotalPassengers
}

// Add 追加行程并刷新座位统计
func (r *Route) Add(trip *Trip) {
	r.TripIDs = append(r.TripIDs, trip.ID)
	r.TotalPassengers += trip.PassengerCount
	r.refreshSeats()
}

// refreshSeats 更新座位统计，保证 occupied + empty == capacity
func (r *Route) refreshSeats() {
	r.OccupiedSeats = r.TotalPassengers
	if r.OccupiedSeats > r.VehicleCapacity {
		r.OccupiedSeats = r.VehicleCapacity
	}
	if r.OccupiedSeats < 0 {
		r.OccupiedSeats = 0
	}
	r.EmptySeats = r.VehicleCapacity - r.OccupiedSeats
	r.CapacityViolated = r.TotalPassengers > r.VehicleCapacity
	r.OverflowPassengers = 0
	if r.CapacityViolated {
		r.OverflowPassengers = r.TotalPassengers - r.VehicleCapacity
	}
	r.CapacityUsed = 0
	if r.VehicleCapacity > 0 {
		r.CapacityUsed = float64(r.TotalPassengers) / float64(r.VehicleCapacity) * 100
	}
}
