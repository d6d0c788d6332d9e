package model

import (
	"time"

	"github.com/google/uuid"
)

// 分配状态
const (
	AssignmentScheduled = "scheduled"
	AssignmentConfirmed = "confirmed"
	AssignmentTentative = "tentative"
	AssignmentCancelled = "cancelled"
	AssignmentCompleted = "completed"
)

// Assignment 司机任务分配（行程或时刻表班次）
type Assignment struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	TenantID  uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	DriverID  uuid.UUID  `json:"driver_id" db:"driver_id"`
	TripID    *uuid.UUID `json:"trip_id,omitempty" db:"trip_id"`
	ServiceID *uuid.UUID `json:"service_id,omitempty" db:"service_id"`
	Date      string     `json:"date" db:"date"`
	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   time.Time  `json:"end_time" db:"end_time"`
	Status    string     `json:"status" db:"status"`
	Pickup    *Location  `json:"pickup,omitempty" db:"-"`
	Dropoff   *Location  `json:"dropoff,omitempty" db:"-"`
}

// WorkingHours 计算工作时长（小时）
func (a *Assignment) WorkingHours() float64 {
	return a.EndTime.Sub(a.StartTime).Hours()
}

// Window 返回分配的时间范围
func (a *Assignment) Window() TimeRange {
	return TimeRange{Start: a.StartTime, End: a.EndTime}
}

// IsActive 检查分配是否仍然有效
func (a *Assignment) IsActive() bool {
	return a.Status != AssignmentCancelled
}

// IsBookable 检查分配是否为正式预订
func (a *Assignment) IsBookable() bool {
	return a.IsActive() && a.Status != AssignmentTentative
}

// AssignmentForTrip 根据行程构造一条分配
func AssignmentForTrip(trip *Trip, driverID uuid.UUID, status string) *Assignment {
	tripID := trip.ID
	pickup := trip.Pickup
	dropoff := trip.Destination
	w := trip.Window()
	return &Assignment{
		TenantID:  trip.TenantID,
		DriverID:  driverID,
		TripID:    &tripID,
		Date:      trip.Date(),
		StartTime: w.Start,
		EndTime:   w.End,
		Status:    status,
		Pickup:    &pickup,
		Dropoff:   &dropoff,
	}
}
