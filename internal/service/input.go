package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/paiban/fleetplan/pkg/availability"
	apperrors "github.com/paiban/fleetplan/pkg/errors"
	"github.com/paiban/fleetplan/pkg/model"
	"github.com/paiban/fleetplan/pkg/routing"
)

func validDate(ve *apperrors.ValidationErrors, field, value string) bool {
	if !ve.Required(field, value) {
		return false
	}
	if _, err := time.Parse(model.DateFormat, value); err != nil {
		ve.Add(field, "日期格式应为 YYYY-MM-DD")
		return false
	}
	return true
}

func validClock(ve *apperrors.ValidationErrors, field, value string) bool {
	if !ve.Required(field, value) {
		return false
	}
	if _, err := time.Parse(model.ClockFormat, value); err != nil {
		ve.Add(field, "时间格式应为 HH:MM")
		return false
	}
	return true
}

// RangeInput 日期范围参数
type RangeInput struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

func (in RangeInput) dateRange() (model.DateRange, error) {
	ve := &apperrors.ValidationErrors{}
	okStart := validDate(ve, "startDate", in.StartDate)
	okEnd := validDate(ve, "endDate", in.EndDate)
	if err := ve.Err(); err != nil {
		return model.DateRange{}, err
	}
	if okStart && okEnd && in.EndDate < in.StartDate {
		return model.DateRange{}, apperrors.InvalidTimeRange(in.StartDate, in.EndDate)
	}
	return model.DateRange{StartDate: in.StartDate, EndDate: in.EndDate}, nil
}

// OptimizeRoutesInput 线路优化参数
type OptimizeRoutesInput struct {
	Date              string        `json:"date,omitempty"`
	Trips             []*model.Trip `json:"trips,omitempty"`
	VehicleCapacity   int           `json:"vehicleCapacity"`
	OptimizationLevel string        `json:"optimizationLevel"`
}

func (in OptimizeRoutesInput) validate() (routing.Level, error) {
	ve := &apperrors.ValidationErrors{}
	if in.VehicleCapacity <= 0 {
		ve.Add("vehicleCapacity", "必须为正整数")
	}
	level, err := routing.ParseLevel(in.OptimizationLevel)
	if err != nil {
		ve.Add("optimizationLevel", "取值应为 quick/standard/thorough")
	}
	if in.Date != "" {
		validDate(ve, "date", in.Date)
	}

	seen := make(map[uuid.UUID]bool, len(in.Trips))
	for i, t := range in.Trips {
		field := "trips[" + strconv.Itoa(i) + "]"
		switch {
		case t == nil:
			ve.Add(field, "行程不能为空")
		case t.ID == uuid.Nil:
			ve.Add(field+".id", "必填")
		case seen[t.ID]:
			ve.Add(field+".id", "行程ID重复")
		case t.PassengerCount < 0:
			ve.Add(field+".passenger_count", "不能为负数")
		case t.PickupTime.IsZero():
			ve.Add(field+".pickup_time", "必填")
		}
		if t != nil {
			seen[t.ID] = true
		}
	}
	return level, ve.Err()
}

// AvailabilityInput 可用性检查参数（原始查询字符串）
type AvailabilityInput struct {
	DriverID        string
	Date            string
	StartTime       string
	DurationMinutes string
}

func (in AvailabilityInput) query(loc *time.Location) (availability.Query, error) {
	ve := &apperrors.ValidationErrors{}

	var driverID uuid.UUID
	if ve.Required("driverId", in.DriverID) {
		id, err := uuid.Parse(in.DriverID)
		if err != nil {
			ve.Add("driverId", "无效的司机ID")
		}
		driverID = id
	}
	validDate(ve, "date", in.Date)
	validClock(ve, "startTime", in.StartTime)

	var minutes int
	if ve.Required("durationMinutes", in.DurationMinutes) {
		n, err := strconv.Atoi(strings.TrimSpace(in.DurationMinutes))
		if err != nil || n <= 0 {
			ve.Add("durationMinutes", "必须为正整数")
		}
		minutes = n
	}
	if err := ve.Err(); err != nil {
		return availability.Query{}, err
	}

	q, err := availability.NewQuery(driverID, in.Date, in.StartTime, minutes, loc)
	if err != nil {
		return availability.Query{}, apperrors.Wrap(err, apperrors.CodeInvalidInput, "无效的查询时段")
	}
	return q, nil
}

// SuggestInput 司机推荐参数
type SuggestInput struct {
	CustomerID         string          `json:"customerId"`
	TripDate           string          `json:"tripDate"`
	PickupTime         string          `json:"pickupTime"`
	RequiresWheelchair bool            `json:"requiresWheelchair"`
	PassengerCount     *int            `json:"passengerCount"`
	DurationMinutes    int             `json:"durationMinutes,omitempty"`
	Pickup             *model.Location `json:"pickup,omitempty"`
	ConsiderProximity  bool            `json:"considerProximity"`
}

func (in SuggestInput) trip(tenantID uuid.UUID, loc *time.Location, defaultMinutes int) (*model.Trip, error) {
	ve := &apperrors.ValidationErrors{}

	var customerID uuid.UUID
	if ve.Required("customerId", in.CustomerID) {
		id, err := uuid.Parse(in.CustomerID)
		if err != nil {
			ve.Add("customerId", "无效的客户ID")
		}
		customerID = id
	}
	okDate := validDate(ve, "tripDate", in.TripDate)
	okClock := validClock(ve, "pickupTime", in.PickupTime)
	switch {
	case in.PassengerCount == nil:
		ve.Add("passengerCount", "必填")
	case *in.PassengerCount <= 0:
		ve.Add("passengerCount", "必须为正整数")
	}
	if in.DurationMinutes < 0 {
		ve.Add("durationMinutes", "不能为负数")
	}
	if err := ve.Err(); err != nil {
		return nil, err
	}

	var pickupTime time.Time
	if okDate && okClock {
		t, err := model.ParseClock(in.TripDate, in.PickupTime, loc)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidInput, "无效的接客时间")
		}
		pickupTime = t
	}

	minutes := in.DurationMinutes
	if minutes == 0 {
		minutes = defaultMinutes
	}
	trip := &model.Trip{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		CustomerID:         customerID,
		PassengerCount:     *in.PassengerCount,
		PickupTime:         pickupTime,
		DurationMinutes:    minutes,
		RequiresWheelchair: in.RequiresWheelchair,
	}
	if in.Pickup != nil {
		trip.Pickup = *in.Pickup
	}
	return trip, nil
}

// AutoAssignInput 自动派车参数
type AutoAssignInput struct {
	Date              string `json:"date"`
	BalanceWorkload   bool   `json:"balanceWorkload"`
	ConsiderProximity bool   `json:"considerProximity"`
	MaxAssignments    int    `json:"maxAssignments,omitempty"`
	ApplyChanges      bool   `json:"applyChanges"`
}

func (in AutoAssignInput) validate() error {
	ve := &apperrors.ValidationErrors{}
	validDate(ve, "date", in.Date)
	if in.MaxAssignments < 0 {
		ve.Add("maxAssignments", "不能为负数")
	}
	return ve.Err()
}
