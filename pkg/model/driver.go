package model

import (
	"github.com/google/uuid"
)

// 用工类型
const (
	EmploymentFullTime = "full_time"
	EmploymentPartTime = "part_time"
	EmploymentCasual   = "casual"
)

// Driver 司机
type Driver struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	TenantID       uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	Name           string     `json:"name" db:"name"`
	Phone          string     `json:"phone" db:"phone"`
	EmploymentType string     `json:"employment_type" db:"employment_type"`
	Status         string     `json:"status" db:"status"` // active/inactive
	VehicleID      *uuid.UUID `json:"vehicle_id,omitempty" db:"vehicle_id"`
	BaseLocation   *Location  `json:"base_location,omitempty" db:"-"`
}

// IsActive 检查司机是否在岗
func (d *Driver) IsActive() bool {
	return d.Status == "" || d.Status == "active"
}

// Holiday 司机休假
type Holiday struct {
	ID        uuid.UUID `json:"id" db:"id"`
	DriverID  uuid.UUID `json:"driver_id" db:"driver_id"`
	StartDate string    `json:"start_date" db:"start_date"`
	EndDate   string    `json:"end_date" db:"end_date"`
	Status    string    `json:"status" db:"status"` // pending/approved/rejected
	Reason    string    `json:"reason,omitempty" db:"reason"`
}

// IsApproved 检查休假是否已批准
func (h *Holiday) IsApproved() bool {
	return h.Status == "approved"
}

// Covers 检查休假是否覆盖某日
func (h *Holiday) Covers(date string) bool {
	return DateRange{StartDate: h.StartDate, EndDate: h.EndDate}.Contains(date)
}

// RosterEntry 排班表条目（标记司机某时段不可用）
type RosterEntry struct {
	ID       uuid.UUID `json:"id" db:"id"`
	DriverID uuid.UUID `json:"driver_id" db:"driver_id"`
	Date     string    `json:"date" db:"date"`
	Window   TimeRange `json:"window" db:"-"`
	Type     string    `json:"type" db:"type"` // available/off/unavailable
	Reason   string    `json:"reason,omitempty" db:"reason"`
}

// Blocks 检查该条目是否使司机不可用
func (r *RosterEntry) Blocks() bool {
	return r.Type != "available"
}

// DriverHistory 司机历史服务统计
type DriverHistory struct {
	DriverID       uuid.UUID `json:"driver_id" db:"driver_id"`
	TotalTrips     int       `json:"total_trips" db:"total_trips"`
	CompletedTrips int       `json:"completed_trips" db:"completed_trips"`
	CustomerTrips  int       `json:"customer_trips" db:"customer_trips"` // 为指定客户服务的次数
}

// CompletionRate 历史完成率（0-1），无历史时返回0
func (h DriverHistory) CompletionRate() float64 {
	if h.TotalTrips <= 0 {
		return 0
	}
	rate := float64(h.CompletedTrips) / float64(h.TotalTrips)
	if rate > 1 {
		return 1
	}
	return rate
}
